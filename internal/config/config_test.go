package config

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestDefaults(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Address(); got != ":8299" {
		t.Errorf("Address = %q, want :8299", got)
	}
	if got := c.KubectlPath(); got != "kubectl" {
		t.Errorf("KubectlPath = %q, want kubectl", got)
	}
	if !c.CleanupOnShutdown() {
		t.Error("CleanupOnShutdown = false, want true")
	}
	if c.ConfigFile() != "" || c.ConfigBase64() != "" {
		t.Error("config sources should default to empty")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MOCKTIDE_SERVE_ADDRESS", ":9999")
	t.Setenv("MOCKTIDE_SERVE_KUBECTL_PATH", "/usr/local/bin/kubectl")

	c, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Address(); got != ":9999" {
		t.Errorf("Address = %q, want :9999", got)
	}
	if got := c.KubectlPath(); got != "/usr/local/bin/kubectl" {
		t.Errorf("KubectlPath = %q", got)
	}
}

func TestBindFlags(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := c.BindFlags(fs, ServeOptions); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if err := fs.Parse([]string{"--address", ":7777", "--config-file", "/tmp/defs.jsonmc"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := c.Address(); got != ":7777" {
		t.Errorf("Address = %q, want :7777", got)
	}
	if got := c.ConfigFile(); got != "/tmp/defs.jsonmc" {
		t.Errorf("ConfigFile = %q", got)
	}
}

func TestFlagNames(t *testing.T) {
	// serve.* keys lose their section prefix, dots and underscores
	// become dashes.
	tests := map[string]string{
		KeyServeAddress:           "address",
		KeyServeAllowedOrigins:    "allowed-origins",
		KeyServeConfigBase64:      "config-base64",
		KeyServeCleanupOnShutdown: "cleanup-on-shutdown",
		KeyServeDebugEnabled:      "debug-enabled",
	}
	for key, want := range tests {
		if got := flag(key); got != want {
			t.Errorf("flag(%q) = %q, want %q", key, got, want)
		}
	}
}
