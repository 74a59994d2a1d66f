// Package config loads and validates the runtime's configuration,
// following the teacher's config package conventions: a single
// yaml-tagged struct loaded with gopkg.in/yaml.v3, with ${VAR} /
// ${VAR:-default} environment expansion applied to the raw file
// before parsing (config/env.go in the teacher), via
// github.com/joho/godotenv for .env loading.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ToolConfig mirrors tool.Config's YAML-facing shape, resolved into a
// tool.Config once the runtime's tool factories are known.
type ToolConfig struct {
	Name              string         `yaml:"name"`
	AlwaysInclude     bool           `yaml:"always_include"`
	AlwaysIncludeRoot bool           `yaml:"always_include_root"`
	Kwargs            map[string]any `yaml:"kwargs"`
}

// Config is the runtime's full configuration surface.
type Config struct {
	Version string `yaml:"version"`
	Name    string `yaml:"name"`

	RootSystemPrompt     string `yaml:"root_system_prompt"`
	DelegateSystemPrompt string `yaml:"delegate_system_prompt"`

	RootEngine     string `yaml:"root_engine"`
	DelegateEngine string `yaml:"delegate_engine"`

	MaxDelegationDepth     int `yaml:"max_delegation_depth"`
	RequestConcurrency     int `yaml:"request_concurrency"`
	RetryAttempts          int `yaml:"retry_attempts"`
	AutoAggregateThreshold int `yaml:"auto_aggregate_threshold"`

	RootHasTools bool         `yaml:"root_has_tools"`
	Tools        []ToolConfig `yaml:"tools"`

	LogLevel string `yaml:"log_level"`
}

// defaults mirrors the values delegation.NewShared falls back to, so
// a zero-value Config loaded from an incomplete file still behaves
// sensibly.
func (c *Config) applyDefaults() {
	if c.MaxDelegationDepth <= 0 {
		c.MaxDelegationDepth = 4
	}
	if c.RequestConcurrency <= 0 {
		c.RequestConcurrency = 3
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.AutoAggregateThreshold <= 0 {
		c.AutoAggregateThreshold = 4
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

// Validate reports a descriptive error for any configuration the
// runtime cannot start with.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config: name is required")
	}
	if c.RootEngine == "" {
		return fmt.Errorf("config: root_engine is required")
	}
	if c.DelegateEngine == "" {
		return fmt.Errorf("config: delegate_engine is required")
	}
	if c.MaxDelegationDepth < 0 {
		return fmt.Errorf("config: max_delegation_depth cannot be negative")
	}
	seen := make(map[string]bool, len(c.Tools))
	for _, tc := range c.Tools {
		if tc.Name == "" {
			return fmt.Errorf("config: a tool entry is missing a name")
		}
		if seen[tc.Name] {
			return fmt.Errorf("config: duplicate tool name %q", tc.Name)
		}
		seen[tc.Name] = true
	}
	return nil
}

// Load reads, env-expands, and parses the YAML config at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded := ExpandEnvVars(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads a .env file (if present) into the process
// environment, so ExpandEnvVars can resolve secrets kept out of the
// YAML file itself. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

var (
	envWithDefault = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*):-([^}]*)\}`)
	envBraced      = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	envSimple      = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// ExpandEnvVars expands ${VAR}, ${VAR:-default}, and $VAR references
// in s against the process environment, the way the teacher's
// config/env.go expandEnvVars does.
func ExpandEnvVars(s string) string {
	s = envWithDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envWithDefault.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(parts[1]); ok && v != "" {
			return v
		}
		return parts[2]
	})
	s = envBraced.ReplaceAllStringFunc(s, func(match string) string {
		name := envBraced.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
	s = envSimple.ReplaceAllStringFunc(s, func(match string) string {
		name := envSimple.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
	return s
}
