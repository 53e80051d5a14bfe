// kfile init [name], kfile new [path]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/go-git/go-git/v6"
	"github.com/qobs-build/kfile/internal/kfile"
	"github.com/qobs-build/kfile/internal/msg"
	"github.com/spf13/cobra"
	"go.trai.ch/zerr"
)

var validProjectName = regexp.MustCompile(`^[A-Za-z0-9_.+-]+$`)

var errInvalidName = zerr.New("project name can only contain letters, digits and `_ . + -`")

// writefile creates a file unless it already exists
func writefile(content string, elem ...string) error {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return zerr.Wrap(err, "create file "+path)
	}
	msg.Status("Created", "file: %s", filepath.ToSlash(path))
	return nil
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "kfile"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

// initGitRepo makes dir a git repository unless it already is one
func initGitRepo(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return nil
	}
	if _, err := git.PlainInit(dir, false); err != nil {
		return zerr.Wrap(err, "git init "+dir)
	}
	msg.Status("Initialized", "git repository in %s", filepath.ToSlash(dir))
	return nil
}

// initIn initializes a project in an existing directory
func initIn(dir, name string, withGit bool) error {
	if !validProjectName.MatchString(name) {
		return zerr.With(zerr.Wrap(errInvalidName, strconv.Quote(name)), "name", name)
	}

	if err := writefile(kfile.Template(name), dir, kfile.Filename); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(dir, "Sources"), 0o755); err != nil {
		return err
	}

	if err := writefile(`#include <stdio.h>

int main(int argc, char **argv) {
    puts("Hello, World!");
    return 0;
}
`, dir, "Sources", "main.c"); err != nil {
		return err
	}

	if err := writefile("build/\n", dir, ".gitignore"); err != nil {
		return err
	}

	if withGit {
		if err := initGitRepo(dir); err != nil {
			return err
		}
	}

	programName := getProgramName()
	fmt.Fprintf(msg.Out, "You can now do %s to build, or %s to build and run.\n",
		color.HiCyanString(programName+" "+filepath.ToSlash(dir)),
		color.HiCyanString(programName+" run "+filepath.ToSlash(dir)))
	return nil
}

var flagGit bool

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a new project in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := initIn(".", args[0], flagGit); err != nil {
			msg.Fail(err)
		}
	},
}

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Create a new project in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := os.MkdirAll(args[0], 0o755); err != nil {
			msg.Fail(zerr.Wrap(err, "mkdir "+args[0]))
		}
		if err := initIn(args[0], filepath.Base(args[0]), flagGit); err != nil {
			msg.Fail(err)
		}
	},
}

func init() {
	// kfile init subcommand
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&flagGit, "git", false, "Initialize a git repository")

	// kfile new subcommand
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().BoolVar(&flagGit, "git", false, "Initialize a git repository")
}
