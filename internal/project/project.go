// Package project holds the build-project descriptor: a mutable record that
// collects a target's defines, file patterns and libraries, and the frozen
// snapshot handed to the resolve step.
package project

import (
	"slices"
	"strconv"

	"go.trai.ch/zerr"
)

// Project is the mutable descriptor of a single build target.
// It has exactly one owner and is not safe for concurrent use.
type Project struct {
	name        string
	library     bool
	commandLine bool
	debugDir    string
	defines     []string
	excludes    []string
	files       []string
	includeDirs []string
	libraries   []string
	frozen      bool
}

// New creates an executable-mode project with empty collections.
func New(name string) (*Project, error) {
	if name == "" {
		return nil, zerr.Wrap(ErrInvalidArgument, "project name must not be empty")
	}
	return &Project{name: name}, nil
}

func (p *Project) mutate() {
	if p.frozen {
		panic(zerr.With(zerr.Wrap(ErrFrozen, strconv.Quote(p.name)+" was already handed off"), "project", p.name))
	}
}

// SetLibrary switches the project to library output.
func (p *Project) SetLibrary() {
	p.mutate()
	p.library = true
}

// SetCommandLineMode marks the executable as a command-line program.
// It is accepted in library mode too; the flag is then carried but unused.
func (p *Project) SetCommandLineMode() {
	p.mutate()
	p.commandLine = true
}

// SetDebugDir sets the working directory used when running the built executable.
func (p *Project) SetDebugDir(dir string) {
	p.mutate()
	p.debugDir = dir
}

// AddDefine appends a preprocessor symbol; duplicates are kept.
func (p *Project) AddDefine(symbol string) {
	p.mutate()
	p.defines = append(p.defines, symbol)
}

// AddExclude appends a glob removed from the expanded file set.
func (p *Project) AddExclude(pattern string) {
	p.mutate()
	p.excludes = append(p.excludes, pattern)
}

// AddFile adds a glob pattern to the project's file set.
func (p *Project) AddFile(pattern string) {
	p.mutate()
	p.files = append(p.files, pattern)
}

// AddIncludeDir appends a header search path, relative to the project directory.
func (p *Project) AddIncludeDir(dir string) {
	p.mutate()
	p.includeDirs = append(p.includeDirs, dir)
}

// AddLibrary appends a library to link against.
func (p *Project) AddLibrary(name string) {
	p.mutate()
	p.libraries = append(p.libraries, name)
}

// The accessors below mirror Snapshot's; slices are returned as copies.

func (p *Project) Name() string          { return p.name }
func (p *Project) IsLibrary() bool       { return p.library }
func (p *Project) IsCommandLine() bool   { return p.commandLine }
func (p *Project) DebugDir() string      { return p.debugDir }
func (p *Project) Defines() []string     { return slices.Clone(p.defines) }
func (p *Project) Excludes() []string    { return slices.Clone(p.excludes) }
func (p *Project) Files() []string       { return slices.Clone(p.files) }
func (p *Project) IncludeDirs() []string { return slices.Clone(p.includeDirs) }
func (p *Project) Libraries() []string   { return slices.Clone(p.libraries) }

// Frozen reports whether Freeze has been called.
func (p *Project) Frozen() bool { return p.frozen }

// Freeze hands the project off. It returns an immutable copy of the current
// state; any mutator called afterwards panics with ErrFrozen.
func (p *Project) Freeze() Snapshot {
	p.frozen = true
	return Snapshot{
		name:        p.name,
		library:     p.library,
		commandLine: p.commandLine,
		debugDir:    p.debugDir,
		defines:     slices.Clone(p.defines),
		excludes:    slices.Clone(p.excludes),
		files:       slices.Clone(p.files),
		includeDirs: slices.Clone(p.includeDirs),
		libraries:   slices.Clone(p.libraries),
	}
}
