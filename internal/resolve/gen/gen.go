// Package gen turns resolved targets into build files or runs the build itself.
package gen

import (
	"context"
	"path/filepath"
	"strings"
)

// Target is one fully resolved unit to build (a library or an executable).
type Target struct {
	// Name is the output file name, e.g. `Kongruent.exe` or `libkong.a`.
	Name    string
	BaseDir string
	// Sources are absolute, cleaned paths.
	Sources []string
	IsLib   bool
	Cflags  []string
	Ldflags []string
}

type Generator interface {
	SetCompiler(cc, cxx string)
	AddTarget(t Target)
	// Generate returns the build file contents, or "" if none is needed.
	Generate() string
	BuildFile() string
	Invoke(ctx context.Context, buildDir string) error
}

var cxxExtensions = map[string]bool{
	".cc":  true,
	".cpp": true,
	".cxx": true,
	".c++": true,
	".mm":  true,
}

// IsCxx reports whether a source file must be compiled as C++.
func IsCxx(path string) bool {
	return cxxExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsSource reports whether a file is a compilable C, C++ or Objective-C source.
func IsSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".c" || ext == ".m" || cxxExtensions[ext]
}

func write(sb *strings.Builder, s ...string) {
	for _, str := range s {
		sb.WriteString(str)
	}
}

func writeln(sb *strings.Builder, s ...string) {
	write(sb, s...)
	sb.WriteByte('\n')
}
