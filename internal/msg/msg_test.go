package msg

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"go.trai.ch/zerr"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldOut, oldNoColor := Out, color.NoColor
	Out, color.NoColor = &buf, true
	t.Cleanup(func() { Out, color.NoColor = oldOut, oldNoColor })
	return &buf
}

func TestLevels(t *testing.T) {
	buf := capture(t)

	Info("built %s", "Kongruent")
	Warn("no sources in %q", "Sources/**")
	Error("exit %d", 2)
	Status("Compiling", "%s", "kong.c")

	assert.Equal(t,
		"info: built Kongruent\n"+
			"warn: no sources in \"Sources/**\"\n"+
			"error: exit 2\n"+
			"Compiling kong.c\n",
		buf.String())
}

func stubExit(t *testing.T) *int {
	t.Helper()
	code := -1
	oldExit := exit
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = oldExit })
	return &code
}

func TestFatal(t *testing.T) {
	buf := capture(t)
	code := stubExit(t)

	Fatal("boom")
	assert.Equal(t, 1, *code)
	assert.Equal(t, "fatal: boom\n", buf.String())
}

func TestFail(t *testing.T) {
	errUnknown := zerr.New("unknown platform")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain", errors.New("boom"), "fatal: boom\n"},
		{
			"metadata",
			zerr.With(zerr.With(zerr.Wrap(errUnknown, `"amiga"`), "platform", "amiga"), "arch", "m68k"),
			"fatal: \"amiga\": unknown platform (arch=m68k platform=amiga)\n",
		},
		{
			"behind fmt wrap",
			fmt.Errorf("Kfile.toml: %w", zerr.With(errUnknown, "platform", "amiga")),
			"fatal: Kfile.toml: unknown platform (platform=amiga)\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t)
			code := stubExit(t)

			Fail(tt.err)
			assert.Equal(t, 1, *code)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestIndentWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &IndentWriter{Indent: "  ", W: &buf}

	_, _ = w.Write([]byte("a\nb"))
	_, _ = w.Write([]byte("c\n"))
	n, err := w.Write([]byte("d\n"))

	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "  a\n  bc\n  d\n", buf.String())
}
