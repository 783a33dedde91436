// Package template renders expectation bodies and file prefixes
// against the request context. The documented syntax is ${expr}
// interpolation (dotted paths with optional ['key'] and [index]
// steps over headers, body, cookies and pathVariables) plus full
// text/template actions with the sprig function map for conditionals
// and loops.
package template

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/mocktide/mocktide/internal/core"
)

// markers are the substrings whose presence flags a string as a
// template. The bracket and angle directive markers are recognized
// for compatibility with configs written for directive-style engines.
var markers = []string{"${", "<#", "[#", "<@", "[@", "{{"}

// LooksLikeTemplate reports whether s contains any template marker.
func LooksLikeTemplate(s string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Render evaluates src against the request-context tree. Syntax
// errors and references to missing values surface as
// *core.ErrTemplate.
func Render(src string, data map[string]any) (string, error) {
	compiled, err := compile(src)
	if err != nil {
		return "", err
	}

	t, err := texttemplate.New("inline").
		Funcs(sprig.TxtFuncMap()).
		Funcs(texttemplate.FuncMap{"lookup": lookup}).
		Option("missingkey=error").
		Parse(compiled)
	if err != nil {
		return "", &core.ErrTemplate{Message: err.Error()}
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", &core.ErrTemplate{Message: err.Error()}
	}
	return buf.String(), nil
}

// compile rewrites every ${expr} reference into a strict lookup
// action, leaving the rest of the source (including {{ }} actions)
// untouched.
func compile(src string) (string, error) {
	var out strings.Builder
	out.Grow(len(src))

	for {
		start := strings.Index(src, "${")
		if start < 0 {
			out.WriteString(src)
			return out.String(), nil
		}
		out.WriteString(src[:start])

		end := strings.IndexByte(src[start:], '}')
		if end < 0 {
			return "", &core.ErrTemplate{Message: "unterminated ${...} reference"}
		}
		expr := src[start+2 : start+end]
		src = src[start+end+1:]

		action, err := compileExpr(expr)
		if err != nil {
			return "", err
		}
		out.WriteString(action)
	}
}

// compileExpr turns "headers['X-Who']" or "body.items[0].name" into a
// lookup call over the context tree.
func compileExpr(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", &core.ErrTemplate{Message: "empty ${} reference"}
	}

	var steps []string
	rest := expr
	for rest != "" {
		switch rest[0] {
		case '.':
			rest = rest[1:]
		case '[':
			close := strings.IndexByte(rest, ']')
			if close < 0 {
				return "", &core.ErrTemplate{Message: "unterminated index in " + expr}
			}
			step, err := indexStep(rest[1:close])
			if err != nil {
				return "", err
			}
			steps = append(steps, step)
			rest = rest[close+1:]
		default:
			n := strings.IndexAny(rest, ".[")
			if n < 0 {
				n = len(rest)
			}
			steps = append(steps, strconv.Quote(rest[:n]))
			rest = rest[n:]
		}
	}
	if len(steps) == 0 {
		return "", &core.ErrTemplate{Message: "empty ${} reference"}
	}
	return "{{lookup . " + strings.Join(steps, " ") + "}}", nil
}

// indexStep compiles one bracketed index: a quoted key or a numeric
// position.
func indexStep(inner string) (string, error) {
	inner = strings.TrimSpace(inner)
	if len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') {
		if inner[len(inner)-1] != inner[0] {
			return "", &core.ErrTemplate{Message: "unterminated key " + inner}
		}
		return strconv.Quote(inner[1 : len(inner)-1]), nil
	}
	if _, err := strconv.Atoi(inner); err != nil {
		return "", &core.ErrTemplate{Message: "invalid index " + inner}
	}
	return inner, nil
}

// lookup walks the context tree, failing loudly on a missing step so
// that typos surface as template errors rather than empty output.
func lookup(data any, steps ...any) (any, error) {
	current := data
	for _, step := range steps {
		switch node := current.(type) {
		case map[string]any:
			key := fmt.Sprint(step)
			value, ok := node[key]
			if !ok {
				return nil, fmt.Errorf("missing value for %q", key)
			}
			current = value
		case map[string]string:
			key := fmt.Sprint(step)
			value, ok := node[key]
			if !ok {
				return nil, fmt.Errorf("missing value for %q", key)
			}
			current = value
		case []any:
			idx, ok := step.(int)
			if !ok {
				return nil, fmt.Errorf("non-numeric index %v into array", step)
			}
			if idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("index %d out of range", idx)
			}
			current = node[idx]
		default:
			return nil, fmt.Errorf("cannot descend into %T with %v", current, step)
		}
	}
	return normalize(current), nil
}

// normalize makes integral JSON numbers render without an exponent or
// trailing zeros.
func normalize(v any) any {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return v
}
