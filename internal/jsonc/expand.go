package jsonc

import (
	"bytes"
	"strings"

	"github.com/mocktide/mocktide/internal/core"
)

// LookupFunc resolves a variable name, reporting whether it exists.
// os.LookupEnv satisfies it.
type LookupFunc func(name string) (string, bool)

// Expand replaces every @{NAME} or @{NAME:-DEFAULT} occurrence with
// the value of NAME from the lookup. A missing name without a default
// is an error; the default literal is taken verbatim up to the
// closing brace. NAME may not contain '}' or ':'.
func Expand(src []byte, lookup LookupFunc) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(src))

	i := 0
	for i < len(src) {
		if src[i] != '@' || i+1 >= len(src) || src[i+1] != '{' {
			out.WriteByte(src[i])
			i++
			continue
		}

		end := bytes.IndexByte(src[i+2:], '}')
		if end < 0 {
			return nil, &core.ErrParse{Detail: "unterminated @{...} reference"}
		}
		ref := string(src[i+2 : i+2+end])
		i += 2 + end + 1

		name, def, hasDefault := strings.Cut(ref, ":-")
		if strings.ContainsAny(name, "}:") {
			return nil, &core.ErrParse{Detail: "invalid variable name " + name}
		}

		value, ok := lookup(name)
		if !ok {
			if !hasDefault {
				return nil, &core.ErrVariableNotFound{Name: name}
			}
			value = def
		}
		out.WriteString(value)
	}
	return out.Bytes(), nil
}
