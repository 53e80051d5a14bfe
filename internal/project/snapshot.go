package project

import "slices"

// Snapshot is the read-only view of a frozen Project. Its zero value is not
// meaningful; obtain one from Project.Freeze.
type Snapshot struct {
	name        string
	library     bool
	commandLine bool
	debugDir    string
	defines     []string
	excludes    []string
	files       []string
	includeDirs []string
	libraries   []string
}

// Name is the target name given to New.
func (s Snapshot) Name() string { return s.name }

// IsLibrary reports whether the target builds a static library.
func (s Snapshot) IsLibrary() bool { return s.library }

// IsCommandLine reports whether the executable is a command-line program.
func (s Snapshot) IsCommandLine() bool { return s.commandLine }

// DebugDir is the working directory for running the executable, or "".
func (s Snapshot) DebugDir() string { return s.debugDir }

// Defines returns the preprocessor symbols in the order they were added.
func (s Snapshot) Defines() []string { return slices.Clone(s.defines) }

// Excludes returns the exclude globs in the order they were added.
func (s Snapshot) Excludes() []string { return slices.Clone(s.excludes) }

// Files returns the file globs in the order they were added.
func (s Snapshot) Files() []string { return slices.Clone(s.files) }

// IncludeDirs returns the header search paths in the order they were added.
func (s Snapshot) IncludeDirs() []string { return slices.Clone(s.includeDirs) }

// Libraries returns the linked libraries in the order they were added.
func (s Snapshot) Libraries() []string { return slices.Clone(s.libraries) }

// Equal reports whether two snapshots describe the same target.
// nil and empty collections compare equal.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.name == o.name &&
		s.library == o.library &&
		s.commandLine == o.commandLine &&
		s.debugDir == o.debugDir &&
		slices.Equal(s.defines, o.defines) &&
		slices.Equal(s.excludes, o.excludes) &&
		slices.Equal(s.files, o.files) &&
		slices.Equal(s.includeDirs, o.includeDirs) &&
		slices.Equal(s.libraries, o.libraries)
}

// Manifest is the serializable form of a Snapshot, used for printing.
type Manifest struct {
	Name        string   `toml:"name" yaml:"name"`
	Library     bool     `toml:"lib" yaml:"lib"`
	CommandLine bool     `toml:"cmd" yaml:"cmd"`
	DebugDir    string   `toml:"debug-dir,omitempty" yaml:"debug-dir,omitempty"`
	Defines     []string `toml:"defines" yaml:"defines"`
	Excludes    []string `toml:"excludes" yaml:"excludes"`
	Files       []string `toml:"files" yaml:"files"`
	IncludeDirs []string `toml:"include-dirs,omitempty" yaml:"include-dirs,omitempty"`
	Libraries   []string `toml:"libs" yaml:"libs"`
}

// Manifest converts the snapshot for printing; nil lists become empty.
func (s Snapshot) Manifest() Manifest {
	orEmpty := func(v []string) []string {
		if v == nil {
			return []string{}
		}
		return slices.Clone(v)
	}
	return Manifest{
		Name:        s.name,
		Library:     s.library,
		CommandLine: s.commandLine,
		DebugDir:    s.debugDir,
		Defines:     orEmpty(s.defines),
		Excludes:    orEmpty(s.excludes),
		Files:       orEmpty(s.files),
		IncludeDirs: slices.Clone(s.includeDirs),
		Libraries:   orEmpty(s.libraries),
	}
}
