// Package config loads host configuration from defaults, an optional
// yaml config file, environment variables and command-line flags, in
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type ConfigOption struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

const (
	KeyServeAddress           = "serve.address"
	KeyServeAllowedOrigins    = "serve.allowed_origins"
	KeyServeConfigFile        = "serve.config_file"
	KeyServeConfigBase64      = "serve.config_base64"
	KeyServeScratchDir        = "serve.scratch_dir"
	KeyServeCleanupOnShutdown = "serve.cleanup_on_shutdown"
	KeyServeKubectlPath       = "serve.kubectl_path"
	KeyServeDebugEnabled      = "serve.debug.enabled"
)

var ServeOptions = []ConfigOption{
	{Key: KeyServeAddress, Flag: flag(KeyServeAddress), Default: ":8299", Description: "Admin API listen address"},
	{Key: KeyServeAllowedOrigins, Flag: flag(KeyServeAllowedOrigins), Default: []string{}, Description: "Admin API allowed CORS origins"},
	{Key: KeyServeConfigFile, Flag: flag(KeyServeConfigFile), Default: "", Description: "Path to a listener definition file"},
	{Key: KeyServeConfigBase64, Flag: flag(KeyServeConfigBase64), Default: "", Description: "Base64-encoded listener definitions"},
	{Key: KeyServeScratchDir, Flag: flag(KeyServeScratchDir), Default: "", Description: "Scratch directory for TLS material"},
	{Key: KeyServeCleanupOnShutdown, Flag: flag(KeyServeCleanupOnShutdown), Default: true, Description: "Remove scratch files on shutdown"},
	{Key: KeyServeKubectlPath, Flag: flag(KeyServeKubectlPath), Default: "kubectl", Description: "Port-forward command"},
	{Key: KeyServeDebugEnabled, Flag: flag(KeyServeDebugEnabled), Default: false, Description: "Debug logging"},
}

type Config struct {
	v *viper.Viper
}

func New() (*Config, error) {
	v := viper.New()

	// default values
	for _, o := range ServeOptions {
		v.SetDefault(o.Key, o.Default)
	}

	// load config from file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/mocktide/")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// load config from environment variables
	v.SetEnvPrefix("MOCKTIDE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

func (c *Config) BindFlags(fs *pflag.FlagSet, options []ConfigOption) error {
	for _, o := range options {
		switch v := o.Default.(type) {
		case string:
			fs.String(o.Flag, v, o.Description)
		case int:
			fs.Int(o.Flag, v, o.Description)
		case bool:
			fs.Bool(o.Flag, v, o.Description)
		case []string:
			fs.StringSlice(o.Flag, v, o.Description)
		default:
			return fmt.Errorf("unsupported flag type for key: %s", o.Key)
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

func (c *Config) Address() string {
	return c.v.GetString(KeyServeAddress) // MOCKTIDE_SERVE_ADDRESS
}

func (c *Config) AllowedOrigins() []string {
	return c.v.GetStringSlice(KeyServeAllowedOrigins) // MOCKTIDE_SERVE_ALLOWED_ORIGINS
}

func (c *Config) ConfigFile() string {
	return c.v.GetString(KeyServeConfigFile) // MOCKTIDE_SERVE_CONFIG_FILE
}

func (c *Config) ConfigBase64() string {
	return c.v.GetString(KeyServeConfigBase64) // MOCKTIDE_SERVE_CONFIG_BASE64
}

func (c *Config) ScratchDir() string {
	return c.v.GetString(KeyServeScratchDir) // MOCKTIDE_SERVE_SCRATCH_DIR
}

func (c *Config) CleanupOnShutdown() bool {
	return c.v.GetBool(KeyServeCleanupOnShutdown) // MOCKTIDE_SERVE_CLEANUP_ON_SHUTDOWN
}

func (c *Config) KubectlPath() string {
	return c.v.GetString(KeyServeKubectlPath) // MOCKTIDE_SERVE_KUBECTL_PATH
}

func (c *Config) DebugEnabled() bool {
	return c.v.GetBool(KeyServeDebugEnabled) // MOCKTIDE_SERVE_DEBUG_ENABLED
}

func flag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	return strings.TrimPrefix(flag, "serve-")
}
