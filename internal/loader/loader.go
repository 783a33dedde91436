// Package loader bootstraps the listener fleet from a definition
// document at startup. Definitions may come from a configured file, a
// well-known path or an inline base64 blob, in that order.
package loader

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mocktide/mocktide/internal/config"
	"github.com/mocktide/mocktide/internal/core"
	"github.com/mocktide/mocktide/internal/jsonc"
)

// WellKnownPath is consulted when no definition file is configured.
const WellKnownPath = "/server.jsonmc"

// Definition is one bootstrap entry: a listener plus its initial
// expectations.
type Definition struct {
	Server       core.ListenerConfig `json:"server"`
	Expectations []*core.Expectation `json:"expectations,omitempty"`
}

// Fleet is the slice of the listener manager the loader drives.
type Fleet interface {
	CreateListener(ctx context.Context, cfg core.ListenerConfig) (*core.ListenerView, error)
	AddExpectation(id string, exp *core.Expectation) error
}

// Loader reads, decodes and applies startup definitions.
type Loader struct {
	conf  *config.Config
	fleet Fleet
	log   *slog.Logger

	// lookupEnv is swapped in tests.
	lookupEnv jsonc.LookupFunc
}

func NewLoader(conf *config.Config, fleet Fleet) *Loader {
	return &Loader{
		conf:      conf,
		fleet:     fleet,
		log:       slog.Default().With("component", "loader"),
		lookupEnv: os.LookupEnv,
	}
}

// Load applies the startup definitions, if any. A broken definition
// document is an error; a single listener that fails to come up is
// logged and skipped so the rest of the fleet still starts.
func (l *Loader) Load(ctx context.Context) error {
	name, raw, err := l.source()
	if err != nil {
		return err
	}
	if raw == nil {
		l.log.Info("no startup definitions")
		return nil
	}

	defs, err := l.decode(name, raw)
	if err != nil {
		return fmt.Errorf("decode definitions from %s: %w", name, err)
	}

	created := 0
	for _, def := range defs {
		if err := l.apply(ctx, def); err != nil {
			l.log.Error("startup listener skipped", "listener", def.Server.ListenerID, "error", err)
			continue
		}
		created++
	}
	l.log.Info("startup definitions applied", "source", name, "defined", len(defs), "created", created)
	return nil
}

// source picks the definition document: configured file first, then
// the well-known path, then the inline base64 blob.
func (l *Loader) source() (string, []byte, error) {
	if path := l.conf.ConfigFile(); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("read definition file: %w", err)
		}
		return path, raw, nil
	}

	if raw, err := os.ReadFile(WellKnownPath); err == nil {
		return WellKnownPath, raw, nil
	}

	if blob := l.conf.ConfigBase64(); blob != "" {
		raw, err := base64.StdEncoding.DecodeString(blob)
		if err != nil {
			return "", nil, fmt.Errorf("decode base64 definitions: %w", err)
		}
		return "base64", raw, nil
	}

	return "", nil, nil
}

// decode strips comments when the document is comment-tolerant,
// expands variable references and unmarshals the definition list.
func (l *Loader) decode(name string, raw []byte) ([]Definition, error) {
	if jsonc.IsCommentTolerant(name, raw) {
		stripped, err := jsonc.Strip(raw)
		if err != nil {
			return nil, err
		}
		raw = stripped
	}

	expanded, err := jsonc.Expand(raw, l.lookupEnv)
	if err != nil {
		return nil, err
	}

	var defs []Definition
	if err := json.Unmarshal(expanded, &defs); err != nil {
		return nil, &core.ErrParse{Detail: err.Error()}
	}
	return defs, nil
}

func (l *Loader) apply(ctx context.Context, def Definition) error {
	if _, err := l.fleet.CreateListener(ctx, def.Server); err != nil {
		return err
	}
	for _, exp := range def.Expectations {
		if err := l.fleet.AddExpectation(def.Server.ListenerID, exp); err != nil {
			return err
		}
	}
	return nil
}
