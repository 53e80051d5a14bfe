package kfile

import (
	"strings"
	"unicode"
)

// KongruentKfile is the Kfile form of Kongruent.
const KongruentKfile = `[project]
name = "Kongruent"
excludes = [".git/**", "build/**"]
files = ["Sources/**"]

[project."library"]
lib = true
defines = ["KONG_LIBRARY"]

[project."not library"]
cmd = true
# debug-dir = "tests"

[project."platform == 'windows'"]
defines = ["_CRT_SECURE_NO_WARNINGS"]
libs = ["d3dcompiler"]
`

// Template returns the Kfile written by `kfile init` for a new project.
func Template(name string) string {
	return `[project]
name = "` + name + `"
excludes = [".git/**", "build/**"]
files = ["Sources/**"]

[project."library"]
lib = true
defines = ["` + LibraryDefine(name) + `"]

[project."not library"]
cmd = true

[project."platform == 'windows'"]
defines = ["_CRT_SECURE_NO_WARNINGS"]
`
}

// LibraryDefine derives a preprocessor symbol such as MY_APP_LIBRARY from a project name.
func LibraryDefine(name string) string {
	var sb strings.Builder
	for _, r := range name {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			sb.WriteRune(unicode.ToUpper(r))
		} else {
			sb.WriteByte('_')
		}
	}
	sb.WriteString("_LIBRARY")
	return sb.String()
}
