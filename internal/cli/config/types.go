// Package config provides configuration management for the leapboard CLI.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	StatePath    string             `koanf:"state_path"`
	Verbose      bool               `koanf:"verbose"`
	OutputFormat string             `koanf:"output"`
	User         string             `koanf:"user"`
	Server       ServerConfig       `koanf:"server"`
	Query        QueryConfig        `koanf:"query"`
	Provisioning ProvisioningConfig `koanf:"provisioning"`
	Backend      BackendConfig      `koanf:"backend"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `koanf:"-"`
}

// ServerConfig holds configuration for the UI server.
type ServerConfig struct {
	Host          string        `koanf:"host"`
	Port          int           `koanf:"port"`
	SessionSecret string        `koanf:"session_secret"`
	Password      string        `koanf:"password"`
	APIToken      string        `koanf:"api_token"`
	TitleDebounce time.Duration `koanf:"title_debounce"`
	SessionIdle   time.Duration `koanf:"session_idle"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// QueryConfig tunes the dashboard fetch cache.
type QueryConfig struct {
	StaleTime    time.Duration `koanf:"stale_time"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
	MaxEntries   int           `koanf:"max_entries"`
}

// ProvisioningConfig names a directory of dashboard JSON files to import.
type ProvisioningConfig struct {
	Dir   string `koanf:"dir"`
	Watch bool   `koanf:"watch"`
}

// BackendConfig points the CLI and the UI at a remote leapboard API instead
// of the local state database.
type BackendConfig struct {
	URL   string `koanf:"url"`
	Token string `koanf:"token"`
}

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// Default configuration values.
const (
	DefaultStateFile     = ".leapboard/state.db"
	DefaultOutput        = OutputTable
	DefaultUser          = "cli"
	DefaultHost          = ""
	DefaultPort          = 8766
	DefaultSessionSecret = "leapboard-dev-session-secret-change-me"
	DefaultTitleDebounce = 500 * time.Millisecond
	DefaultSessionIdle   = 30 * time.Minute
	DefaultSweepInterval = time.Minute
	DefaultStaleTime     = 30 * time.Second
	DefaultFetchTimeout  = 10 * time.Second
	DefaultMaxEntries    = 1024
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case OutputTable, OutputJSON, OutputYAML:
	default:
		return &FieldError{Field: "output", Reason: "must be one of table, json, yaml"}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return &FieldError{Field: "server.port", Reason: "must be between 0 and 65535"}
	}
	if c.Query.MaxEntries < 0 {
		return &FieldError{Field: "query.max_entries", Reason: "must not be negative"}
	}
	if c.Provisioning.Watch && c.Provisioning.Dir == "" {
		return &FieldError{Field: "provisioning.watch", Reason: "requires provisioning.dir"}
	}
	return nil
}

// FieldError reports an invalid configuration value.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}
