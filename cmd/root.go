// kfile [path], kfile build [path]
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/qobs-build/kfile/internal/kfile"
	"github.com/qobs-build/kfile/internal/msg"
	"github.com/qobs-build/kfile/internal/platform"
	"github.com/qobs-build/kfile/internal/project"
	"github.com/qobs-build/kfile/internal/resolve"
	"github.com/spf13/cobra"
	"go.trai.ch/zerr"
)

var (
	flagLibrary   bool
	flagGitIgnore bool
	flagPlatform  EnumValue = NewEnumValue(defaultPlatform(), platformChoices())
	flagGenerator EnumValue = NewEnumValue(resolve.GeneratorNative, map[string]string{
		resolve.GeneratorNative: "Compile and link directly (default)",
		resolve.GeneratorNinja:  "Generate build/build.ninja and run ninja",
		resolve.GeneratorVS2022: "Generate a Visual Studio 2022 solution and run msbuild",
	})
)

func defaultPlatform() string {
	p, err := platform.Current()
	if err != nil {
		return platform.Linux.String()
	}
	return p.String()
}

func platformChoices() map[string]string {
	choices := make(map[string]string)
	for _, p := range platform.All() {
		choices[p.String()] = ""
	}
	return choices
}

func selectedPlatform() platform.Platform {
	p, err := platform.Parse(flagPlatform.Value())
	if err != nil {
		msg.Fail(err)
	}
	return p
}

// loadSnapshot parses the Kfile in dir with the selected platform and library switch and freezes it
func loadSnapshot(dir string) project.Snapshot {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		msg.Fail(err)
	}

	env := kfile.NewEnv(absDir, selectedPlatform(), flagLibrary)
	p, err := kfile.ParseFile(filepath.Join(absDir, kfile.Filename), env)
	if err != nil {
		msg.Fail(zerr.Wrap(err, kfile.Filename))
	}
	return p.Freeze()
}

func newResolver(dir string) *resolve.Resolver {
	g, err := resolve.NewGenerator(flagGenerator.Value())
	if err != nil {
		msg.Fail(err)
	}
	r, err := resolve.New(dir, selectedPlatform(), g)
	if err != nil {
		msg.Fail(err)
	}
	r.RespectGitIgnore = flagGitIgnore
	return r
}

func doBuild(cmd *cobra.Command, args []string) {
	dir := projectDir(args)
	snap := loadSnapshot(dir)
	if err := newResolver(dir).Resolve(cmd.Context(), snap); err != nil {
		msg.Fail(err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kfile [project path]",
	Short: "Build C/C++ projects described by a Kfile.toml",
	Long:  `Build C/C++ projects described by a Kfile.toml. If no project path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

var buildCmd = &cobra.Command{
	Use:   "build [project path]",
	Short: "Build the project",
	Long:  `Build the project. If no project path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

func init() {
	addProjectFlags(rootCmd)
	addBuildFlags(rootCmd)

	// kfile build subcommand
	rootCmd.AddCommand(buildCmd)
	addProjectFlags(buildCmd)
	addBuildFlags(buildCmd)
}

// addProjectFlags registers the inputs that select what the Kfile describes
func addProjectFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&flagLibrary, "lib", "l", false, "Configure a library build")
	cmd.Flags().VarP(&flagPlatform, "platform", "p", "Target platform, one of "+flagPlatform.HelpString())
	cmd.RegisterFlagCompletionFunc("platform", flagPlatform.CompletionFunc())
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().VarP(&flagGenerator, "gen", "g", "Generator to build with, one of "+flagGenerator.HelpString())
	cmd.Flags().BoolVar(&flagGitIgnore, "gitignore", false, "Skip files ignored by the project's .gitignore")
	cmd.RegisterFlagCompletionFunc("gen", flagGenerator.CompletionFunc())
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
