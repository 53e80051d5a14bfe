package gen

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/qobs-build/kfile/internal/msg"
)

// sourceFile represents a single source file and its corresponding object file path
type sourceFile struct {
	src   string
	rel   string // slash-separated, relative to the target's base dir
	obj   string
	isCxx bool
}

// objectsFor maps target sources to object paths under objects/<target>.dir
func objectsFor(t Target) []sourceFile {
	files := make([]sourceFile, 0, len(t.Sources))
	for _, srcPath := range t.Sources {
		rel, err := filepath.Rel(t.BaseDir, srcPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(srcPath)
			msg.Warn("source file %s is outside of base directory %s", srcPath, t.BaseDir)
		}

		obj := filepath.Join("objects", t.Name+".dir", rel+".o")
		files = append(files, sourceFile{src: srcPath, rel: filepath.ToSlash(rel), obj: obj, isCxx: IsCxx(srcPath)})
	}
	return files
}

type NinjaGen struct {
	cc, cxx string
	targets map[string]Target
}

func NewNinjaGen() *NinjaGen {
	return &NinjaGen{targets: make(map[string]Target)}
}

func (g *NinjaGen) SetCompiler(cc, cxx string) {
	g.cc, g.cxx = cc, cxx
}

func (g *NinjaGen) BuildFile() string { return "build.ninja" }

var (
	ninjaPathEscaper  = strings.NewReplacer("$", "$$", ":", "$:", " ", "$ ")
	ninjaValueEscaper = strings.NewReplacer("$", "$$")
)

func quote(s string) string { return ninjaPathEscaper.Replace(filepath.ToSlash(s)) }

func flags(f []string) string { return ninjaValueEscaper.Replace(strings.Join(f, " ")) }

func (g *NinjaGen) AddTarget(t Target) {
	g.targets[t.Name] = t
}

func (g *NinjaGen) Generate() string {
	var sb strings.Builder

	writeln(&sb, "ninja_required_version = 1.1")
	writeln(&sb, "cc = ", g.cc)
	writeln(&sb, "cxx = ", g.cxx)
	writeln(&sb)

	write(&sb,
		`rule cc
  command = $cc $cflags -c $in -o $out
  description = CC $out
`)
	write(&sb,
		`rule cxx
  command = $cxx $cflags -c $in -o $out
  description = CXX $out
`)
	write(&sb,
		`rule link
  command = $ld -o $out $in $ldflags
  description = LINK $out
`)
	write(&sb,
		`rule ar
  command = ar rcs $out $in
  description = AR $out
`)
	writeln(&sb)

	names := make([]string, 0, len(g.targets))
	for name := range g.targets {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		target := g.targets[name]
		objects := objectsFor(target)
		hasCxx := false

		for _, source := range objects {
			rule := "cc"
			if source.isCxx {
				rule = "cxx"
				hasCxx = true
			}
			writeln(&sb, "build ", quote(source.obj), ": ", rule, " ", quote(source.src))
			writeln(&sb, "  cflags = ", flags(target.Cflags))
		}

		write(&sb, "build ", quote(target.Name), ": ")
		if target.IsLib {
			write(&sb, "ar")
		} else {
			write(&sb, "link")
		}
		for _, source := range objects {
			write(&sb, " ", quote(source.obj))
		}
		writeln(&sb)

		if !target.IsLib {
			ld := "$cc"
			if hasCxx {
				ld = "$cxx"
			}
			writeln(&sb, "  ld = ", ld)
			writeln(&sb, "  ldflags = ", flags(target.Ldflags))
		}
		writeln(&sb)
	}

	return sb.String()
}

func (g *NinjaGen) Invoke(ctx context.Context, buildDir string) error {
	cmd := exec.CommandContext(ctx, "ninja", "-C", buildDir)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
