package core

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/zeebo/blake3"
)

var prefixPalette = []color.Attribute{
	color.FgCyan,
	color.FgMagenta,
	color.FgYellow,
	color.FgBlue,
	color.FgGreen,
	color.FgHiCyan,
	color.FgHiMagenta,
	color.FgHiYellow,
	color.FgHiBlue,
	color.FgHiGreen,
}

// Console writes operator-facing task output. Every line is attributed to a
// task by a coloured prefix, and whole lines are written atomically so
// concurrent tasks never interleave mid-line.
type Console struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
	color  bool
}

// NewConsole returns a Console writing to stdout and stderr.
func NewConsole(stdout, stderr io.Writer, colorEnabled bool) *Console {
	return &Console{stdout: stdout, stderr: stderr, color: colorEnabled}
}

// Color reports whether the console emits ANSI colours.
func (c *Console) Color() bool { return c.color }

func (c *Console) paint(s string, attrs ...color.Attribute) string {
	p := color.New(attrs...)
	if c.color {
		p.EnableColor()
	} else {
		p.DisableColor()
	}
	return p.Sprint(s)
}

// Prefix renders the attribution prefix of key. The colour is derived from
// the key, so it is stable across runs.
func (c *Console) Prefix(key string) string {
	sum := blake3.Sum256([]byte(key))
	return c.paint(key, prefixPalette[int(sum[0])%len(prefixPalette)], color.Bold)
}

// Gray dims s.
func (c *Console) Gray(s string) string { return c.paint(s, color.FgHiBlack) }

// Print writes one prefixed line to stdout.
func (c *Console) Print(key, msg string) {
	c.writeLine(c.stdout, c.Prefix(key)+" "+msg)
}

// Printf formats and writes one prefixed line to stdout.
func (c *Console) Printf(key, format string, args ...any) {
	c.Print(key, fmt.Sprintf(format, args...))
}

// Fail writes an unattributed error message to stderr.
func (c *Console) Fail(msg string) {
	c.writeLine(c.stderr, c.paint("✖ ", color.FgRed, color.Bold)+msg)
}

// Run announces that command is about to execute for key.
func (c *Console) Run(key, command string) {
	c.writeLine(c.stdout, c.Prefix(key)+c.paint(" RUN ", color.Bold)+c.paint(command, color.FgGreen, color.Bold))
}

// Stdout returns a writer that prefixes each line of a task's stdout.
func (c *Console) Stdout(key string) *LineWriter {
	return &LineWriter{console: c, out: c.stdout, prefix: c.Prefix(key) + " "}
}

// Stderr returns a writer that prefixes each line of a task's stderr.
func (c *Console) Stderr(key string) *LineWriter {
	return &LineWriter{console: c, out: c.stderr, prefix: c.Prefix(key) + " "}
}

func (c *Console) writeLine(w io.Writer, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(w, line+"\n")
}

// LineWriter buffers a byte stream and forwards it line by line with a
// prefix. Carriage returns are dropped. Flush emits a trailing partial line.
type LineWriter struct {
	console *Console
	out     io.Writer
	prefix  string
	buf     []byte
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush writes any buffered partial line.
func (w *LineWriter) Flush() {
	if len(w.buf) == 0 {
		return
	}
	w.emit(w.buf)
	w.buf = nil
}

func (w *LineWriter) emit(line []byte) {
	w.console.writeLine(w.out, w.prefix+string(bytes.ReplaceAll(line, []byte("\r"), nil)))
}
