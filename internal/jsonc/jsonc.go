// Package jsonc preprocesses the host's comment-tolerant JSON
// dialect: // and /* */ comments, backtick-delimited multi-line
// strings, and @{NAME:-default} variable substitution. Strip emits
// strict JSON; Expand resolves variables against an environment.
package jsonc

import (
	"bytes"
	"strings"

	"github.com/mocktide/mocktide/internal/core"
)

// IsCommentTolerant implements the loader's auto-detection rule: a
// .jsonmc file name, a document starting with /*, or a document
// containing // anywhere.
func IsCommentTolerant(name string, content []byte) bool {
	if strings.HasSuffix(name, ".jsonmc") {
		return true
	}
	if bytes.HasPrefix(content, []byte("/*")) {
		return true
	}
	return bytes.Contains(content, []byte("//"))
}

// Strip converts comment-tolerant JSON into strict JSON. Double-quoted
// string interiors pass through untouched; line comments keep their
// terminators; block comments must be closed; backtick strings are
// rewritten to standard JSON strings. Strip is idempotent on its own
// output.
func Strip(src []byte) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(src))

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '"':
			end, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			out.Write(src[i:end])
			i = end

		case c == '`':
			end, err := rewriteBacktick(src, i, &out)
			if err != nil {
				return nil, err
			}
			i = end

		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			// Drop up to, but not including, the line terminator.
			i += 2
			for i < len(src) && src[i] != '\n' && src[i] != '\r' {
				i++
			}

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := bytes.Index(src[i+2:], []byte("*/"))
			if end < 0 {
				return nil, &core.ErrParse{Detail: "unclosed block comment"}
			}
			i += 2 + end + 2

		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.Bytes(), nil
}

// scanString returns the index just past the closing quote of the
// double-quoted string starting at src[start].
func scanString(src []byte, start int) (int, error) {
	i := start + 1
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1, nil
		default:
			i++
		}
	}
	return 0, &core.ErrParse{Detail: "unclosed string"}
}

// rewriteBacktick emits a standard JSON string for the backtick
// string starting at src[start] and returns the index just past the
// closing backtick.
func rewriteBacktick(src []byte, start int, out *bytes.Buffer) (int, error) {
	out.WriteByte('"')
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch c {
		case '`':
			out.WriteByte('"')
			return i + 1, nil
		case '\n':
			out.WriteString(`\n`)
		case '\r':
			// CR before LF is swallowed; a lone CR becomes \n.
			if i+1 < len(src) && src[i+1] == '\n' {
				break
			}
			out.WriteString(`\n`)
		case '\t':
			out.WriteString(`\t`)
		case '\b':
			out.WriteString(`\b`)
		case '\f':
			out.WriteString(`\f`)
		case '"':
			out.WriteString(`\"`)
		case '\\':
			out.WriteString(`\\`)
		default:
			out.WriteByte(c)
		}
		i++
	}
	return 0, &core.ErrParse{Detail: "unclosed multi-line string"}
}
