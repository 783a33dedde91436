package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mocktide/mocktide/internal/core"
	"github.com/mocktide/mocktide/internal/template"
)

// contentTypes maps download extensions to media types. Unknown
// extensions fall back to application/octet-stream.
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".json": "application/json",
	".xml":  "application/xml",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// fileTemplateStrategy serves file downloads resolved from a path
// prefix and renders templated bodies. A configured file wins over a
// templated body.
type fileTemplateStrategy struct {
	log *slog.Logger
}

func (s *fileTemplateStrategy) Name() string  { return "file-template" }
func (s *fileTemplateStrategy) Priority() int { return 10 }

func (s *fileTemplateStrategy) Supports(exp *core.Expectation) bool {
	return exp.Response.File != "" || template.LooksLikeTemplate(exp.Response.Body)
}

func (s *fileTemplateStrategy) Handle(_ context.Context, req *core.RequestContext, exp *core.Expectation) (*core.Response, error) {
	if exp.Response.File != "" {
		return s.serveFile(req, exp)
	}

	rendered, err := template.Render(exp.Response.Body, req.TemplateData())
	if err != nil {
		return nil, err
	}
	resp := core.NewResponse(exp.Response.StatusCode)
	resp.Headers = append(resp.Headers, exp.Response.Headers...)
	resp.Body = []byte(rendered)
	return resp, nil
}

// serveFile resolves the (possibly templated) path prefix to the first
// matching file and streams it as an attachment.
func (s *fileTemplateStrategy) serveFile(req *core.RequestContext, exp *core.Expectation) (*core.Response, error) {
	prefix := exp.Response.File
	if template.LooksLikeTemplate(prefix) {
		rendered, err := template.Render(prefix, req.TemplateData())
		if err != nil {
			return nil, err
		}
		prefix = strings.TrimSpace(rendered)
	}

	name, err := resolvePrefix(prefix)
	if err != nil {
		return core.TextResponse(404, "File not found: "+prefix), nil
	}

	path := filepath.Join(filepath.Dir(prefix), name)
	info, err := os.Stat(path)
	if err != nil {
		return core.TextResponse(404, "File not found: "+prefix), nil
	}
	if !info.Mode().IsRegular() {
		return core.TextResponse(400, "Not a regular file: "+name), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.log.Error("file read failed", "path", path, "error", err)
		return core.TextResponse(500, "Error reading file: "+name), nil
	}

	resp := core.NewResponse(exp.Response.StatusCode)
	resp.Headers = append(resp.Headers, exp.Response.Headers...)
	if !resp.HasHeader("Content-Type") {
		resp.SetHeader("Content-Type", contentTypeFor(name))
	}
	resp.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	resp.Body = data
	return resp, nil
}

// resolvePrefix lists the prefix's directory and returns the first
// entry, in lexicographic order, whose name starts with the prefix's
// base name.
func resolvePrefix(prefix string) (string, error) {
	base := filepath.Base(prefix)
	entries, err := os.ReadDir(filepath.Dir(prefix))
	if err != nil {
		return "", err
	}
	for _, entry := range entries { // ReadDir sorts by name
		if strings.HasPrefix(entry.Name(), base) {
			return entry.Name(), nil
		}
	}
	return "", os.ErrNotExist
}

func contentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}
