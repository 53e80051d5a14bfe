package kfile

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/qobs-build/kfile/internal/platform"
)

// Env is the environment Kfile expressions are compiled and run against.
// Both inputs that select behavior, the platform and the library switch, are
// passed in explicitly rather than read from globals.
type Env struct {
	Platform string            `expr:"platform"`
	Arch     string            `expr:"arch"`
	Library  bool              `expr:"library"`
	Environ  map[string]string `expr:"environ"`
	basedir  string
}

func NewEnv(basedir string, plat platform.Platform, library bool) Env {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	return Env{
		Platform: plat.String(),
		Arch:     runtime.GOARCH,
		Library:  library,
		Environ:  environ,
		basedir:  basedir,
	}
}

func (env Env) resolvePath(path string) (string, error) {
	fullPath := filepath.Join(env.basedir, path)
	rel, err := filepath.Rel(env.basedir, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside of project directory %q", path, env.basedir)
	}
	return fullPath, nil
}

// Exists reports whether path exists relative to the project directory.
// Available in expressions as `Exists("Sources/backends")`.
func (env Env) Exists(path string) bool {
	fullPath, err := env.resolvePath(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// ReadFile returns the trimmed contents of a file in the project directory.
func (env Env) ReadFile(path string) (string, error) {
	fullPath, err := env.resolvePath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
