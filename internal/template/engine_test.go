package template

import (
	"errors"
	"testing"

	"github.com/mocktide/mocktide/internal/core"
)

func testData() map[string]any {
	return map[string]any{
		"headers": map[string]string{
			"X-Who":        "ada",
			"Content-Type": "application/json",
		},
		"body": map[string]any{
			"k":     float64(1),
			"name":  "widget",
			"items": []any{map[string]any{"id": "a1"}, map[string]any{"id": "b2"}},
		},
		"cookies": map[string]string{
			"session": "s-123",
		},
		"pathVariables": map[string]string{
			"id": "42",
		},
	}
}

func TestLooksLikeTemplate(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Hello ${name}", true},
		{"<#if x>y</#if>", true},
		{"[#list xs as x][/#list]", true},
		{"<@macro/>", true},
		{"[@macro/]", true},
		{"{{ .x }}", true},
		{"plain text", false},
		{"$name without brace", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := LooksLikeTemplate(tt.in); got != tt.want {
			t.Errorf("LooksLikeTemplate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRender_Interpolation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "path variable", src: "Hello ${pathVariables.id}", want: "Hello 42"},
		{name: "bracket header", src: "${headers['X-Who']}", want: "ada"},
		{name: "double-quoted key", src: `${headers["X-Who"]}`, want: "ada"},
		{name: "mixed", src: "Hello ${pathVariables.id} / ${headers['X-Who']}", want: "Hello 42 / ada"},
		{name: "body value", src: "${body.name}", want: "widget"},
		{name: "integral number", src: "${body.k}", want: "1"},
		{name: "array index", src: "${body.items[1].id}", want: "b2"},
		{name: "cookie", src: "${cookies.session}", want: "s-123"},
		{name: "no references", src: "static text", want: "static text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.src, testData())
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestRender_TemplateActions(t *testing.T) {
	src := `{{if eq (lookup . "pathVariables" "id") "42"}}match{{else}}miss{{end}}`
	got, err := Render(src, testData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "match" {
		t.Errorf("Render = %q, want match", got)
	}
}

func TestRender_SprigFunctions(t *testing.T) {
	got, err := Render(`{{upper "ok"}}`, testData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "OK" {
		t.Errorf("Render = %q, want OK", got)
	}
}

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "missing header", src: "${headers['X-Nope']}"},
		{name: "missing path variable", src: "${pathVariables.nope}"},
		{name: "index out of range", src: "${body.items[9].id}"},
		{name: "descend into scalar", src: "${body.name.deeper}"},
		{name: "unterminated reference", src: "${headers"},
		{name: "empty reference", src: "${}"},
		{name: "bad action syntax", src: "{{if}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.src, testData())
			var terr *core.ErrTemplate
			if !errors.As(err, &terr) {
				t.Fatalf("Render(%q) err = %v, want *core.ErrTemplate", tt.src, err)
			}
		})
	}
}

func TestRender_PathVariableRoundTrip(t *testing.T) {
	// Rendering ${pathVariables.name} must reproduce the bound
	// segment exactly.
	data := testData()
	data["pathVariables"] = map[string]string{"name": "alpha-beta_9"}
	got, err := Render("${pathVariables.name}", data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "alpha-beta_9" {
		t.Errorf("Render = %q, want alpha-beta_9", got)
	}
}
