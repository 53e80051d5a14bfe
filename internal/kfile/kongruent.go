package kfile

import (
	"github.com/qobs-build/kfile/internal/platform"
	"github.com/qobs-build/kfile/internal/project"
)

// Kongruent builds the descriptor of the Kongruent shader compiler.
// library selects a library build; plat decides the Windows-only define and
// the d3dcompiler link.
func Kongruent(library bool, plat platform.Platform) (project.Snapshot, error) {
	p, err := project.New("Kongruent")
	if err != nil {
		return project.Snapshot{}, err
	}

	if library {
		p.SetLibrary()
		p.AddDefine("KONG_LIBRARY")
	} else {
		p.SetCommandLineMode()
	}

	p.AddExclude(".git/**")
	p.AddExclude("build/**")

	p.AddFile("Sources/**")

	if plat == platform.Windows {
		p.AddDefine("_CRT_SECURE_NO_WARNINGS")
		p.AddLibrary("d3dcompiler")
	}

	return p.Freeze(), nil
}
