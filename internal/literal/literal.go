// Package literal renders arbitrary bytes as string literals for C and Go
// source.
//
// Every byte is written either in short form (the printable character itself
// or a named escape such as \n) or in long form (\xHH). A new literal fragment
// is started whenever the form changes between two adjacent bytes, so a hex
// escape is never followed by a character it could absorb. Adjacent fragments
// are joined by the syntax's concatenation, which makes the encoding lossless
// in both languages.
package literal

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ContentLineSize is the number of content bytes per emitted line.
const ContentLineSize = 80

// Style is the escape form of one byte.
type Style uint8

const (
	// Short is a printable character or a named escape.
	Short Style = iota
	// Long is a \xHH escape.
	Long
)

var escapes [256]string

func init() {
	const hex = "0123456789abcdef"
	for i := range escapes {
		c := byte(i)
		switch {
		case c >= 32 && c <= 126:
			escapes[i] = string(c)
		default:
			escapes[i] = `\x` + string(hex[c>>4]) + string(hex[c&0xf])
		}
	}
	for c, s := range map[byte]string{
		'\\': `\\`,
		'"':  `\"`,
		'\a': `\a`,
		'\b': `\b`,
		'\t': `\t`,
		'\n': `\n`,
		'\v': `\v`,
		'\f': `\f`,
		'\r': `\r`,
	} {
		escapes[c] = s
	}
}

// Escape returns the literal form of b and its style.
func Escape(b byte) (string, Style) {
	s := escapes[b]
	if len(s) == 4 {
		return s, Long
	}
	return s, Short
}

// Syntax describes how a target language joins literal fragments.
type Syntax struct {
	// FragmentSep joins fragments on one line.
	FragmentSep string
	// LineSep ends every line that is followed by another.
	LineSep string
	// Indent prefixes every line.
	Indent string
	// Trigraphs escapes a '?' that follows another '?' in the same fragment
	// as \?, so no ??X sequence reaches a compiler that replaces trigraphs.
	Trigraphs bool
}

var (
	// C joins fragments by juxtaposition.
	C = Syntax{FragmentSep: " ", Indent: "  ", Trigraphs: true}

	// Go joins fragments with +. The operator ends the line so that no
	// semicolon is inserted.
	Go = Syntax{FragmentSep: " + ", LineSep: " +", Indent: "\t"}
)

// Encoder writes a multi-line string literal expression.
//
// Errors are sticky: after a write fails every call is a no-op and Close
// returns the error.
type Encoder struct {
	w        io.Writer
	syn      Syntax
	style    Style
	lines    int
	comments []string
	buf      []byte
	err      error
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer, syn Syntax) *Encoder {
	return &Encoder{w: w, syn: syn}
}

// Comment adds a comment line before the next literal line. Bytes that could
// end or extend a line comment are replaced with '?'.
func (e *Encoder) Comment(text string) {
	e.comments = append(e.comments, SanitizeComment(text))
}

// Line writes b as one line of fragments.
func (e *Encoder) Line(b []byte) {
	if e.err != nil {
		return
	}
	buf := e.buf[:0]
	if e.lines > 0 {
		buf = append(buf, e.syn.LineSep...)
		buf = append(buf, '\n')
	}
	buf = e.appendComments(buf)

	buf = append(buf, e.syn.Indent...)
	buf = append(buf, '"')
	empty := true
	var prev byte
	for _, c := range b {
		s, style := Escape(c)
		if style != e.style {
			if !empty {
				buf = append(buf, '"')
				buf = append(buf, e.syn.FragmentSep...)
				buf = append(buf, '"')
			}
			e.style = style
			prev = 0
		}
		if e.syn.Trigraphs && c == '?' && prev == '?' {
			s = `\?`
		}
		buf = append(buf, s...)
		prev = c
		empty = false
	}
	buf = append(buf, '"')

	e.lines++
	e.buf = buf
	e.write(buf)
}

// Chunks writes b as lines of at most size bytes. Empty input writes nothing.
func (e *Encoder) Chunks(b []byte, size int) {
	if size <= 0 {
		size = ContentLineSize
	}
	for len(b) > 0 {
		n := min(size, len(b))
		e.Line(b[:n])
		b = b[n:]
	}
}

// Close terminates the expression. An encoder that wrote no line writes an
// empty literal.
func (e *Encoder) Close() error {
	if e.err != nil {
		return e.err
	}
	var buf []byte
	if e.lines == 0 {
		buf = e.appendComments(buf)
		buf = append(buf, e.syn.Indent...)
		buf = append(buf, `""`...)
	}
	buf = append(buf, '\n')
	if e.lines > 0 {
		buf = e.appendComments(buf)
	}
	e.write(buf)
	return e.err
}

func (e *Encoder) appendComments(buf []byte) []byte {
	for _, c := range e.comments {
		buf = append(buf, e.syn.Indent...)
		buf = append(buf, "// "...)
		buf = append(buf, c...)
		buf = append(buf, '\n')
	}
	e.comments = e.comments[:0]
	return buf
}

func (e *Encoder) write(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

// SanitizeComment makes text safe inside a // comment in C and Go: control
// bytes, non-ASCII bytes and backslashes are replaced with '?', and so is a
// '/' after "??", which is the backslash trigraph.
func SanitizeComment(text string) string {
	out := []byte(strings.Map(func(r rune) rune {
		if r < 32 || r > 126 || r == '\\' {
			return '?'
		}
		return r
	}, text))
	for i := 2; i < len(out); i++ {
		if out[i] == '/' && out[i-1] == '?' && out[i-2] == '?' {
			out[i] = '?'
		}
	}
	return string(out)
}

// ErrSyntax is returned by Decode for input it cannot parse.
var ErrSyntax = errors.New("literal: invalid syntax")

// Decode parses the output of an Encoder back into bytes. Whitespace, '+'
// and // comments between fragments are ignored.
func Decode(src string) ([]byte, error) {
	var out []byte
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '+':
			i++
		case strings.HasPrefix(src[i:], "//"):
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				return out, nil
			}
			i += end + 1
		case c == '"':
			n, b, err := decodeFragment(src[i+1:], out)
			if err != nil {
				return nil, fmt.Errorf("%w at offset %d: %w", ErrSyntax, i, err)
			}
			out = b
			i += 1 + n
		default:
			return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, c, i)
		}
	}
	return out, nil
}

// decodeFragment decodes one fragment body up to and including its closing
// quote and returns the number of bytes consumed.
func decodeFragment(s string, out []byte) (int, []byte, error) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			return i + 1, out, nil
		case '\n':
			return 0, nil, errors.New("newline in literal")
		case '\\':
		default:
			out = append(out, c)
			continue
		}

		if i+1 >= len(s) {
			return 0, nil, errors.New("unterminated escape")
		}
		i++
		switch s[i] {
		case '\\':
			out = append(out, '\\')
		case '"':
			out = append(out, '"')
		case '?':
			out = append(out, '?')
		case 'a':
			out = append(out, '\a')
		case 'b':
			out = append(out, '\b')
		case 't':
			out = append(out, '\t')
		case 'n':
			out = append(out, '\n')
		case 'v':
			out = append(out, '\v')
		case 'f':
			out = append(out, '\f')
		case 'r':
			out = append(out, '\r')
		case 'x':
			if i+2 >= len(s) {
				return 0, nil, errors.New("short hex escape")
			}
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if !ok1 || !ok2 {
				return 0, nil, errors.New("bad hex escape")
			}
			out = append(out, hi<<4|lo)
			i += 2
		default:
			return 0, nil, fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return 0, nil, errors.New("unterminated literal")
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
