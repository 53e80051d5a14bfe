// Package platform enumerates the target platforms a project can be
// configured for.
package platform

import (
	"runtime"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

type Platform string

const (
	Windows    Platform = "windows"
	WindowsApp Platform = "windowsapp"
	Linux      Platform = "linux"
	OSX        Platform = "osx"
	IOS        Platform = "ios"
	Android    Platform = "android"
	FreeBSD    Platform = "freebsd"
	HTML5      Platform = "html5"
	Wasm       Platform = "wasm"
	Emscripten Platform = "emscripten"
	Pi         Platform = "pi"
)

var (
	// ErrUnknownPlatform is returned when a platform name or GOOS has no mapping.
	ErrUnknownPlatform = zerr.New("unknown platform")
)

var all = []Platform{Windows, WindowsApp, Linux, OSX, IOS, Android, FreeBSD, HTML5, Wasm, Emscripten, Pi}

// GOOS values that map onto a platform directly
var goosPlatforms = map[string]Platform{
	"windows": Windows,
	"linux":   Linux,
	"darwin":  OSX,
	"ios":     IOS,
	"android": Android,
	"freebsd": FreeBSD,
	"js":      HTML5,
	"wasip1":  Wasm,
}

// All returns every known platform in declaration order.
func All() []Platform {
	return append([]Platform(nil), all...)
}

func (p Platform) String() string { return string(p) }

// Parse looks up a platform by name, ignoring case and surrounding space.
func Parse(s string) (Platform, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, p := range all {
		if string(p) == name {
			return p, nil
		}
	}
	return "", zerr.With(zerr.Wrap(ErrUnknownPlatform, strconv.Quote(s)), "platform", s)
}

func FromGOOS(goos string) (Platform, error) {
	if p, ok := goosPlatforms[goos]; ok {
		return p, nil
	}
	return "", zerr.With(zerr.Wrap(ErrUnknownPlatform, "GOOS "+strconv.Quote(goos)), "goos", goos)
}

// Current returns the platform of the running host.
func Current() (Platform, error) {
	return FromGOOS(runtime.GOOS)
}

// IsWindows reports whether p produces Windows binaries.
func (p Platform) IsWindows() bool {
	return p == Windows || p == WindowsApp
}

// ExecutableName returns the file name of an executable called name.
func (p Platform) ExecutableName(name string) string {
	switch {
	case p.IsWindows():
		return name + ".exe"
	case p == HTML5 || p == Wasm || p == Emscripten:
		return name + ".wasm"
	default:
		return name
	}
}

// StaticLibName returns the file name of a static library called name
// (e.g. `my_lib.lib` or `libmy_lib.a`).
func (p Platform) StaticLibName(name string) string {
	if p.IsWindows() {
		return name + ".lib"
	}
	return "lib" + name + ".a"
}
