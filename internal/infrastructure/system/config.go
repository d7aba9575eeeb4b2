// Package system provides infrastructure for system-level configuration
// loaded from ~/.classrunner/config.yaml.
package system

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	apperrors "github.com/reglet-dev/classrunner/internal/application/errors"
)

// Defaults used when the config file is absent or leaves a field unset.
const (
	DefaultBaseURL         = "http://localhost:8080/resources/java/"
	DefaultProfile         = "Default"
	DefaultKey             = "clpkg"
	DefaultWiki            = "xwiki"
	DefaultParser          = "plain/1.0"
	DefaultAdminRole       = "admin"
	DefaultServerAddr      = ":8080"
	DefaultMaxIncludeDepth = 16
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreYAML     = "yaml"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config represents the global configuration file (~/.classrunner/config.yaml).
// This is infrastructure-level configuration separate from profile documents.
type Config struct {
	Profiles          ProfilesConfig      `yaml:"profiles"`
	Store             StoreConfig         `yaml:"store"`
	Packages          PackagesConfig      `yaml:"packages"`
	Auth              AuthConfig          `yaml:"auth"`
	Server            ServerConfig        `yaml:"server"`
	Render            RenderConfig        `yaml:"render"`
	SensitiveData     SensitiveDataConfig `yaml:"sensitive_data"`
	Redaction         RedactionConfig     `yaml:"redaction"`
	WasmMemoryLimitMB int                 `yaml:"wasm_memory_limit_mb"`
}

// ProfilesConfig configures profile resolution.
type ProfilesConfig struct {
	// Default is the caller default profile name.
	Default string `yaml:"default"`
	// Key names both the request parameter and the persisted override.
	Key string `yaml:"key"`
	// Wiki is the wiki id used when qualifying unit names.
	Wiki string `yaml:"wiki"`
	// BaseURL is the repository base for packages without an include override.
	BaseURL         string `yaml:"base_url"`
	MaxIncludeDepth int    `yaml:"max_include_depth"`
}

// StoreConfig selects the profile document backend.
type StoreConfig struct {
	// Driver is one of memory, yaml, sqlite, postgres.
	Driver string `yaml:"driver"`
	// Path is the profile directory (yaml) or database file (sqlite).
	Path string `yaml:"path"`
	// DSN is the connection string for postgres.
	DSN string `yaml:"dsn"`
}

// PackagesConfig configures package fetching.
type PackagesConfig struct {
	S3 S3Config `yaml:"s3"`
	// Credentials maps a host to the secrets holding its credentials.
	Credentials map[string]CredentialConfig `yaml:"credentials"`
}

// S3Config configures the s3:// fetcher.
type S3Config struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	UseSSL   bool   `yaml:"use_ssl"`
}

// CredentialConfig names the secrets for one host.
type CredentialConfig struct {
	UsernameSecret string `yaml:"username_secret"`
	PasswordSecret string `yaml:"password_secret"`
}

// AuthConfig configures requester identity for the HTTP surface.
type AuthConfig struct {
	// JWTSecret is the name of the secret holding the HMAC signing key.
	// Empty disables token verification; every request is anonymous.
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	// AdminRole in the token's roles claim grants elevated rights.
	AdminRole string `yaml:"admin_role"`
	// Admins lists identities that always have elevated rights.
	Admins []string `yaml:"admins"`
}

// ServerConfig configures `classrunner serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RenderConfig configures output rendering.
type RenderConfig struct {
	// DefaultParser is used when neither the caller nor the unit picks one.
	DefaultParser string `yaml:"default_parser"`
}

// SensitiveDataConfig configures secret resolution.
type SensitiveDataConfig struct {
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig configures secret resolution sources.
type SecretsConfig struct {
	// Local defines static secrets for development (name -> value)
	Local map[string]string `yaml:"local"`

	// Env defines environment variable mappings (secret_name -> env_var_name)
	Env map[string]string `yaml:"env"`

	// Files defines file path mappings (secret_name -> file_path)
	Files map[string]string `yaml:"files"`
}

// RedactionConfig configures how sensitive data is sanitized.
type RedactionConfig struct {
	HashMode HashModeConfig `yaml:"hash_mode"`
	Patterns []string       `yaml:"patterns"`
	// Keys are context keys whose values are never logged.
	Keys []string `yaml:"keys"`
}

// HashModeConfig controls hash-based redaction.
type HashModeConfig struct {
	Salt    string `yaml:"salt"`
	Enabled bool   `yaml:"enabled"`
}

// ConfigLoader loads system configuration from disk.
type ConfigLoader struct{}

// NewConfigLoader creates a new system config loader.
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

// DefaultConfig returns a Config with safe defaults for all fields.
// This is used when no system config file exists.
func DefaultConfig() *Config {
	return &Config{
		Profiles: ProfilesConfig{
			Default:         DefaultProfile,
			Key:             DefaultKey,
			Wiki:            DefaultWiki,
			BaseURL:         DefaultBaseURL,
			MaxIncludeDepth: DefaultMaxIncludeDepth,
		},
		Store: StoreConfig{
			Driver: StoreMemory,
		},
		Packages: PackagesConfig{
			Credentials: make(map[string]CredentialConfig),
		},
		Auth: AuthConfig{
			AdminRole: DefaultAdminRole,
			Admins:    []string{},
		},
		Server: ServerConfig{
			Addr: DefaultServerAddr,
		},
		Render: RenderConfig{
			DefaultParser: DefaultParser,
		},
		SensitiveData: SensitiveDataConfig{
			Secrets: SecretsConfig{
				Local: make(map[string]string),
				Env:   make(map[string]string),
				Files: make(map[string]string),
			},
		},
		Redaction: RedactionConfig{
			Patterns: []string{},
			Keys:     []string{},
		},
		WasmMemoryLimitMB: 0, // 0 means use runtime default
	}
}

// Load loads the system configuration from the specified path. Fields the
// file leaves out keep their DefaultConfig() value. A missing file yields
// DefaultConfig() so classrunner works without configuration.
func (l *ConfigLoader) Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	//nolint:gosec // G304: path is user-provided config file, validated to exist above
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read system config: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse system config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StoreYAML, StoreSQLite:
		if c.Store.Path == "" {
			return apperrors.NewConfigurationError("store", fmt.Sprintf("store driver %q requires store.path", c.Store.Driver), nil)
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			return apperrors.NewConfigurationError("store", fmt.Sprintf("store driver %q requires store.dsn", c.Store.Driver), nil)
		}
	default:
		return apperrors.NewConfigurationError("store", fmt.Sprintf("unknown store driver %q", c.Store.Driver), nil)
	}

	if c.Profiles.Key == "" {
		return apperrors.NewConfigurationError("profiles", "profiles.key cannot be empty", nil)
	}
	if c.Profiles.MaxIncludeDepth < 0 {
		return apperrors.NewConfigurationError("profiles",
			fmt.Sprintf("profiles.max_include_depth must be >= 0, got %d", c.Profiles.MaxIncludeDepth), nil)
	}
	if c.WasmMemoryLimitMB < -1 {
		return apperrors.NewConfigurationError("wasm",
			fmt.Sprintf("wasm_memory_limit_mb must be >= -1, got %d", c.WasmMemoryLimitMB), nil)
	}
	return nil
}

// IsAdmin reports whether identity is listed in auth.admins.
func (c *AuthConfig) IsAdmin(identity string) bool {
	for _, admin := range c.Admins {
		if admin == identity {
			return true
		}
	}
	return false
}
