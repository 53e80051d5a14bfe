package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/go-git/go-git/v6"
	"github.com/qobs-build/kfile/internal/kfile"
	"github.com/qobs-build/kfile/internal/msg"
	"github.com/qobs-build/kfile/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func quiet(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldOut, oldNoColor := msg.Out, color.NoColor
	msg.Out, color.NoColor = &buf, true
	t.Cleanup(func() { msg.Out, color.NoColor = oldOut, oldNoColor })
	return &buf
}

func TestInitIn(t *testing.T) {
	out := quiet(t)
	dir := t.TempDir()

	require.NoError(t, initIn(dir, "demo", true))

	for _, f := range []string{kfile.Filename, ".gitignore", filepath.Join("Sources", "main.c")} {
		assert.FileExists(t, filepath.Join(dir, f))
	}
	_, err := git.PlainOpen(dir)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Created file:")

	p, err := kfile.ParseFile(filepath.Join(dir, kfile.Filename), kfile.NewEnv(dir, platform.Linux, false))
	require.NoError(t, err)
	snap := p.Freeze()
	assert.Equal(t, "demo", snap.Name())
	assert.True(t, snap.IsCommandLine())
}

func TestInitIn_KeepsExistingFiles(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	existing := "[project]\nname = \"mine\"\nfiles = [\"src/**\"]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, kfile.Filename), []byte(existing), 0o644))

	require.NoError(t, initIn(dir, "demo", false))

	data, err := os.ReadFile(filepath.Join(dir, kfile.Filename))
	require.NoError(t, err)
	assert.Equal(t, existing, string(data))
	assert.NoDirExists(t, filepath.Join(dir, ".git"))
}

func TestInitIn_InvalidName(t *testing.T) {
	quiet(t)
	err := initIn(t.TempDir(), `bad"name`, false)
	assert.ErrorIs(t, err, errInvalidName)
}

func TestRenderManifest(t *testing.T) {
	snap, err := kfile.Kongruent(false, platform.Windows)
	require.NoError(t, err)

	out, err := renderManifest(snap, "toml")
	require.NoError(t, err)

	// the TOML form is itself a loadable Kfile
	p, err := kfile.Parse(bytes.NewBufferString(out), kfile.NewEnv(t.TempDir(), platform.Linux, false))
	require.NoError(t, err)
	assert.True(t, snap.Equal(p.Freeze()))

	out, err = renderManifest(snap, "yaml")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "Kongruent", decoded["name"])
	assert.Equal(t, true, decoded["cmd"])
	assert.Equal(t, []any{"d3dcompiler"}, decoded["libs"])

	_, err = renderManifest(snap, "json")
	assert.Error(t, err)
}

func TestEnumValue(t *testing.T) {
	e := NewEnumValue("b", map[string]string{"a": "first", "b": "", "c": "third"})
	assert.Equal(t, "b", e.Value())
	assert.Equal(t, "[a, b, c]", e.HelpString())

	require.NoError(t, e.Set("c"))
	assert.Equal(t, "c", e.String())
	assert.Error(t, e.Set("d"))
	assert.Equal(t, "c", e.Value())

	items, _ := e.CompletionFunc()(nil, nil, "")
	assert.Equal(t, []string{"a\tfirst", "b", "c\tthird"}, items)

	assert.Panics(t, func() { NewEnumValue("x", map[string]string{"a": ""}) })
}

func TestProjectDir(t *testing.T) {
	assert.Equal(t, ".", projectDir(nil))
	assert.Equal(t, filepath.Clean("a/b"), projectDir([]string{"a/b/"}))
}
