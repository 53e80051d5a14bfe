package resolve

import (
	"os"
	"os/exec"
)

var (
	commonCCompilers   = []string{"clang", "gcc", "icx", "icc", "tcc", "cl"}
	commonCxxCompilers = []string{"clang++", "g++", "clang", "gcc", "icpx", "icx", "icpc", "icc", "cl"}
)

// FindCompiler attempts to find a suitable C or C++ compiler on the system.
// $CC and $CXX win over anything found on PATH.
func FindCompiler(needCxx bool) string {
	return findCompiler(needCxx, os.Getenv, exec.LookPath)
}

func findCompiler(needCxx bool, getenv func(string) string, lookPath func(string) (string, error)) string {
	cc := getenv("CC")
	cxx := getenv("CXX")

	if needCxx && cxx != "" {
		return cxx
	}
	if !needCxx && cc != "" {
		return cc
	}

	// a C++ driver compiles C, and a C driver is better than nothing for C++
	if cxx != "" {
		return cxx
	}
	if cc != "" {
		return cc
	}

	compilersToTry := commonCCompilers
	if needCxx {
		compilersToTry = commonCxxCompilers
	}

	for _, compiler := range compilersToTry {
		if path, err := lookPath(compiler); err == nil {
			return path
		}
	}

	return ""
}
