// Package resolve is the consumer of a frozen project: it expands the
// project's file patterns, derives compiler and linker flags and drives a
// generator to produce the build.
package resolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/denormal/go-gitignore"
	"github.com/qobs-build/kfile/internal/msg"
	"github.com/qobs-build/kfile/internal/platform"
	"github.com/qobs-build/kfile/internal/project"
	"github.com/qobs-build/kfile/internal/resolve/gen"
	"go.trai.ch/zerr"
)

const (
	GeneratorNative = "native"
	GeneratorNinja  = "ninja"
	GeneratorVS2022 = "vs2022"
)

var (
	// ErrNoSources is returned when the file patterns match no compilable source.
	ErrNoSources = zerr.New("no source files matched")

	// ErrCantRunLibrary is returned by Run for library projects.
	ErrCantRunLibrary = zerr.New("can't run a library project")

	// ErrBadPattern is returned for malformed include or exclude globs.
	ErrBadPattern = zerr.New("invalid glob pattern")

	// ErrUnknownGenerator is returned by NewGenerator.
	ErrUnknownGenerator = zerr.New("unknown generator")
)

// NewGenerator creates the generator registered under name.
func NewGenerator(name string) (gen.Generator, error) {
	switch name {
	case GeneratorNative:
		return gen.NewNativeBuilder(), nil
	case GeneratorNinja:
		return gen.NewNinjaGen(), nil
	case GeneratorVS2022:
		return gen.NewVS2022Gen(), nil
	default:
		return nil, zerr.With(zerr.Wrap(ErrUnknownGenerator, strconv.Quote(name)), "generator", name)
	}
}

type Resolver struct {
	BaseDir   string
	BuildDir  string
	Platform  platform.Platform
	Generator gen.Generator
	// RespectGitIgnore drops files ignored by the project's root .gitignore.
	RespectGitIgnore bool
	// CC and CXX override compiler discovery when set.
	CC, CXX string
}

// New creates a resolver building into <basedir>/build.
func New(basedir string, plat platform.Platform, g gen.Generator) (*Resolver, error) {
	basedir, err := filepath.Abs(basedir)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		BaseDir:   basedir,
		BuildDir:  filepath.Join(basedir, "build"),
		Platform:  plat,
		Generator: g,
	}, nil
}

func (r *Resolver) loadGitIgnore() (gitignore.GitIgnore, error) {
	data, err := os.ReadFile(filepath.Join(r.BaseDir, ".gitignore"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read .gitignore")
	}
	return gitignore.New(bytes.NewReader(data), r.BaseDir, nil), nil
}

func excluded(rel string, excludes []string, ignore gitignore.GitIgnore) bool {
	for _, pat := range excludes {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	if ignore != nil {
		if match := ignore.Relative(filepath.FromSlash(rel), false); match != nil && match.Ignore() {
			return true
		}
	}
	return false
}

// CollectSources expands the snapshot's file patterns relative to BaseDir,
// drops excluded paths and non-sources, and returns sorted absolute paths.
// Absolute file entries are taken literally but still honor the excludes.
func (r *Resolver) CollectSources(snap project.Snapshot) ([]string, error) {
	excludes := snap.Excludes()
	for _, pat := range excludes {
		if !doublestar.ValidatePattern(pat) {
			return nil, zerr.With(zerr.Wrap(ErrBadPattern, "exclude "+strconv.Quote(pat)), "pattern", pat)
		}
	}

	var ignore gitignore.GitIgnore
	if r.RespectGitIgnore {
		var err error
		if ignore, err = r.loadGitIgnore(); err != nil {
			return nil, err
		}
	}

	fsys := os.DirFS(r.BaseDir)
	seen := make(map[string]struct{})
	var files []string

	add := func(absPath string) {
		absPath = filepath.Clean(absPath)
		if _, ok := seen[absPath]; ok || !gen.IsSource(absPath) {
			return
		}
		seen[absPath] = struct{}{}
		files = append(files, absPath)
	}

	for _, pat := range snap.Files() {
		if filepath.IsAbs(pat) {
			// excludes are base-relative, so only paths under BaseDir can match them
			rel, err := filepath.Rel(r.BaseDir, pat)
			if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) &&
				excluded(filepath.ToSlash(rel), excludes, ignore) {
				continue
			}
			add(pat)
			continue
		}
		matches, err := doublestar.Glob(fsys, pat, doublestar.WithFilesOnly())
		if err != nil {
			return nil, zerr.With(zerr.Wrap(ErrBadPattern, fmt.Sprintf("file %q (%v)", pat, err)), "pattern", pat)
		}
		for _, match := range matches {
			if excluded(match, excludes, ignore) {
				continue
			}
			add(filepath.Join(r.BaseDir, filepath.FromSlash(match)))
		}
	}

	slices.Sort(files)
	return files, nil
}

// Flags derives compiler and linker flags, keeping the snapshot's order.
func (r *Resolver) Flags(snap project.Snapshot) (cflags, ldflags []string) {
	for _, define := range snap.Defines() {
		cflags = append(cflags, "-D"+define)
	}
	for _, dir := range snap.IncludeDirs() {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(r.BaseDir, dir)
		}
		cflags = append(cflags, "-I"+dir)
	}
	for _, lib := range snap.Libraries() {
		ldflags = append(ldflags, "-l"+lib)
	}
	// Windows executables are GUI programs unless marked command-line
	if r.Platform.IsWindows() && !snap.IsLibrary() && !snap.IsCommandLine() {
		ldflags = append(ldflags, "-mwindows")
	}
	return cflags, ldflags
}

// OutputName returns the artifact name for the snapshot on the resolver's platform.
func (r *Resolver) OutputName(snap project.Snapshot) string {
	if snap.IsLibrary() {
		return r.Platform.StaticLibName(snap.Name())
	}
	return r.Platform.ExecutableName(snap.Name())
}

// Plan resolves the snapshot into a generator target without building anything.
func (r *Resolver) Plan(snap project.Snapshot) (gen.Target, error) {
	sources, err := r.CollectSources(snap)
	if err != nil {
		return gen.Target{}, zerr.Wrap(err, "failed to collect sources for "+snap.Name())
	}
	if len(sources) == 0 {
		return gen.Target{}, zerr.With(zerr.Wrap(ErrNoSources, "project "+snap.Name()), "patterns", snap.Files())
	}

	cflags, ldflags := r.Flags(snap)
	return gen.Target{
		Name:    r.OutputName(snap),
		BaseDir: r.BaseDir,
		Sources: sources,
		IsLib:   snap.IsLibrary(),
		Cflags:  cflags,
		Ldflags: ldflags,
	}, nil
}

// Resolve plans the snapshot, writes the generator's build file (if any) and invokes it.
func (r *Resolver) Resolve(ctx context.Context, snap project.Snapshot) error {
	target, err := r.Plan(snap)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(r.BuildDir, 0o755); err != nil {
		return err
	}

	cc, cxx := r.CC, r.CXX
	if cc == "" {
		cc = FindCompiler(false)
	}
	if cxx == "" {
		cxx = FindCompiler(true)
	}
	if cc == "" && cxx == "" {
		msg.Warn("no C or C++ compiler found, set $CC or $CXX")
	}

	g := r.Generator
	g.SetCompiler(cc, cxx)
	g.AddTarget(target)

	if out := g.Generate(); out != "" {
		buildFile := filepath.Join(r.BuildDir, g.BuildFile())
		if err := os.WriteFile(buildFile, []byte(out), 0o644); err != nil {
			return err
		}
	}

	return g.Invoke(ctx, r.BuildDir)
}

// Run builds an executable snapshot and runs it with args. The working
// directory is the project's debug dir, or BaseDir when none is set.
func (r *Resolver) Run(ctx context.Context, snap project.Snapshot, args []string) error {
	if snap.IsLibrary() {
		return zerr.With(zerr.Wrap(ErrCantRunLibrary, snap.Name()), "project", snap.Name())
	}

	if err := r.Resolve(ctx, snap); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, filepath.Join(r.BuildDir, r.OutputName(snap)), args...)
	cmd.Dir = r.workDir(snap)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}

func (r *Resolver) workDir(snap project.Snapshot) string {
	dir := snap.DebugDir()
	if dir == "" {
		return r.BaseDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.BaseDir, dir)
	}
	return dir
}
