package codegen

import (
	"fmt"
	"strings"
)

// Style selects how a CodeWriter opens and closes blocks.
type Style int

const (
	// Braces writes "head {" ... "}" blocks.
	Braces Style = iota
	// Colons writes "head:" blocks closed by dedenting.
	Colons
)

// CodeWriter is an indentation-aware text writer shared by the C++ and
// Python emitters. It hands out unique temporary names per artifact.
type CodeWriter struct {
	buf   strings.Builder
	style Style
	unit  string
	depth int
	temps map[string]int
}

// NewCodeWriter creates a writer with four-space indentation.
func NewCodeWriter(style Style) *CodeWriter {
	return &CodeWriter{style: style, unit: "    ", temps: make(map[string]int)}
}

// Println writes one line at the current indentation. The line is a format
// string only when args are given.
func (w *CodeWriter) Println(line string, args ...any) {
	if len(args) > 0 {
		line = fmt.Sprintf(line, args...)
	}
	if line == "" {
		w.buf.WriteByte('\n')
		return
	}
	for i := 0; i < w.depth; i++ {
		w.buf.WriteString(w.unit)
	}
	w.buf.WriteString(line)
	w.buf.WriteByte('\n')
}

// Blank writes an empty line.
func (w *CodeWriter) Blank() { w.buf.WriteByte('\n') }

// Lines writes a multi-line text block, re-indented to the current level.
func (w *CodeWriter) Lines(text string) {
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		w.Println(strings.TrimRight(l, " \t"))
	}
}

// Indent runs body one level deeper.
func (w *CodeWriter) Indent(body func()) {
	w.depth++
	body()
	w.depth--
}

// Block writes head, then body one level deeper, closing the block in the
// writer's style.
func (w *CodeWriter) Block(head string, body func()) {
	switch w.style {
	case Colons:
		if !strings.HasSuffix(head, ":") {
			head += ":"
		}
		w.Println(head)
		w.Indent(body)
	default:
		w.Println(head + " {")
		w.Indent(body)
		w.Println("}")
	}
}

// Temp returns a fresh identifier starting with prefix.
func (w *CodeWriter) Temp(prefix string) string {
	n := w.temps[prefix]
	w.temps[prefix] = n + 1
	return fmt.Sprintf("%s%d", prefix, n)
}

// ResetTemps restarts temporary numbering, e.g. at a new function.
func (w *CodeWriter) ResetTemps() {
	w.temps = make(map[string]int)
}

func (w *CodeWriter) String() string { return w.buf.String() }

// Bytes returns the written text.
func (w *CodeWriter) Bytes() []byte { return []byte(w.buf.String()) }
