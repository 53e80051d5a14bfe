package project_test

import (
	"errors"
	"testing"

	"github.com/qobs-build/kfile/internal/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, name := range []string{"Kongruent", "a", "with space", "ümlaut"} {
		p, err := project.New(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
		assert.False(t, p.IsLibrary())
		assert.False(t, p.IsCommandLine())
		assert.Empty(t, p.Defines())
		assert.Empty(t, p.Excludes())
		assert.Empty(t, p.Files())
		assert.Empty(t, p.Libraries())
		assert.Empty(t, p.IncludeDirs())
		assert.Empty(t, p.DebugDir())
	}
}

func TestNew_EmptyName(t *testing.T) {
	p, err := project.New("")
	require.Error(t, err)
	assert.Nil(t, p)
	assert.True(t, errors.Is(err, project.ErrInvalidArgument))
}

func TestAddDefine_KeepsOrderAndDuplicates(t *testing.T) {
	tests := [][]string{
		{},
		{"A"},
		{"A", "B", "A"},
		{"Z", "Y", "X", "X"},
	}
	for _, seq := range tests {
		p, err := project.New("p")
		require.NoError(t, err)
		for _, d := range seq {
			p.AddDefine(d)
		}
		assert.Equal(t, len(seq), len(p.Defines()))
		if len(seq) > 0 {
			assert.Equal(t, seq, p.Defines())
		}
	}
}

func TestAddExclude_Order(t *testing.T) {
	p, err := project.New("p")
	require.NoError(t, err)

	p.AddExclude("a")
	p.AddExclude("b")
	assert.Equal(t, []string{"a", "b"}, p.Excludes())

	p.AddExclude("a")
	assert.Equal(t, []string{"a", "b", "a"}, p.Excludes())
}

func TestAddFileAndLibrary_Order(t *testing.T) {
	p, err := project.New("p")
	require.NoError(t, err)

	p.AddFile("src/**")
	p.AddFile("include/**")
	p.AddFile("src/**")
	p.AddLibrary("m")
	p.AddLibrary("pthread")
	p.AddLibrary("m")
	p.AddIncludeDir("include")

	assert.Equal(t, []string{"src/**", "include/**", "src/**"}, p.Files())
	assert.Equal(t, []string{"m", "pthread", "m"}, p.Libraries())
	assert.Equal(t, []string{"include"}, p.IncludeDirs())
}

func TestCommandLineModeInLibrary(t *testing.T) {
	p, err := project.New("p")
	require.NoError(t, err)

	p.SetLibrary()
	p.SetCommandLineMode()
	assert.True(t, p.IsLibrary())
	assert.True(t, p.IsCommandLine())
}

func TestFreeze(t *testing.T) {
	p, err := project.New("Kongruent")
	require.NoError(t, err)
	p.SetCommandLineMode()
	p.SetDebugDir("tests")
	p.AddExclude(".git/**")
	p.AddFile("Sources/**")
	p.AddDefine("X")
	p.AddLibrary("d3dcompiler")

	snap := p.Freeze()
	assert.True(t, p.Frozen())
	assert.Equal(t, "Kongruent", snap.Name())
	assert.True(t, snap.IsCommandLine())
	assert.Equal(t, "tests", snap.DebugDir())
	assert.Equal(t, []string{".git/**"}, snap.Excludes())
	assert.Equal(t, []string{"Sources/**"}, snap.Files())
	assert.Equal(t, []string{"X"}, snap.Defines())
	assert.Equal(t, []string{"d3dcompiler"}, snap.Libraries())

	// accessors hand out copies
	defs := snap.Defines()
	defs[0] = "Y"
	assert.Equal(t, []string{"X"}, snap.Defines())

	assert.True(t, snap.Equal(p.Freeze()))
}

func TestFreeze_MutationPanics(t *testing.T) {
	mutators := map[string]func(*project.Project){
		"AddDefine":          func(p *project.Project) { p.AddDefine("A") },
		"AddExclude":         func(p *project.Project) { p.AddExclude("a") },
		"AddFile":            func(p *project.Project) { p.AddFile("a") },
		"AddLibrary":         func(p *project.Project) { p.AddLibrary("a") },
		"AddIncludeDir":      func(p *project.Project) { p.AddIncludeDir("a") },
		"SetLibrary":         func(p *project.Project) { p.SetLibrary() },
		"SetCommandLineMode": func(p *project.Project) { p.SetCommandLineMode() },
		"SetDebugDir":        func(p *project.Project) { p.SetDebugDir("a") },
	}
	for name, mutate := range mutators {
		t.Run(name, func(t *testing.T) {
			p, err := project.New("p")
			require.NoError(t, err)
			snap := p.Freeze()

			defer func() {
				r := recover()
				require.NotNil(t, r)
				err, ok := r.(error)
				require.True(t, ok)
				assert.True(t, errors.Is(err, project.ErrFrozen))
				assert.True(t, snap.Equal(p.Freeze()))
			}()
			mutate(p)
		})
	}
}

func TestManifest(t *testing.T) {
	p, err := project.New("p")
	require.NoError(t, err)
	p.AddFile("src/**")

	m := p.Freeze().Manifest()
	assert.Equal(t, "p", m.Name)
	assert.Equal(t, []string{"src/**"}, m.Files)
	assert.NotNil(t, m.Defines)
	assert.Empty(t, m.Defines)
	assert.Nil(t, m.IncludeDirs)
}
