package msg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"go.trai.ch/zerr"
)

// Out receives every message. Tests swap it for a buffer.
var Out io.Writer = color.Output

// exit is swapped in tests so Fatal can be observed
var exit = os.Exit

func line(level, format string, a ...any) {
	fmt.Fprintf(Out, "%s: %s\n", level, fmt.Sprintf(format, a...))
}

func Error(format string, a ...any) {
	line(color.HiRedString("error"), format, a...)
}

func Warn(format string, a ...any) {
	line(color.YellowString("warn"), format, a...)
}

func Fatal(format string, a ...any) {
	line(color.RedString("fatal"), format, a...)
	exit(1)
}

// Fail reports err as fatal, followed by the metadata attached along its chain.
func Fail(err error) {
	if fields := metadata(err); fields != "" {
		Fatal("%v (%s)", err, fields)
		return
	}
	Fatal("%v", err)
}

// metadata renders zerr key/value pairs as "k=v", outermost error first
func metadata(err error) string {
	var pairs []string
	for ; err != nil; err = errors.Unwrap(err) {
		z, ok := err.(*zerr.Error)
		if !ok {
			continue
		}
		md := z.Metadata()
		for _, k := range slices.Sorted(maps.Keys(md)) {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, md[k]))
		}
	}
	return strings.Join(pairs, " ")
}

func Info(format string, a ...any) {
	line(color.HiGreenString("info"), format, a...)
}

// Status prints a cargo-style progress line, e.g. "Compiling Sources/kong.c".
func Status(verb, format string, a ...any) {
	fmt.Fprintf(Out, "%s %s\n", color.HiGreenString(verb), fmt.Sprintf(format, a...))
}

// IndentWriter prefixes every line written through it with Indent.
type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	var buf bytes.Buffer
	for _, c := range p {
		if !w.didIndent {
			buf.WriteString(w.Indent)
			w.didIndent = true
		}
		buf.WriteByte(c)
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	if _, err := w.W.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}
