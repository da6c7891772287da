package hexazine

import (
	"errors"
	"time"
)

// Config defines the engine's tunable behavior. Construct it once, pass it
// to [Builder.WithConfig], and treat it as immutable afterwards.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Account     AccountConfig     `yaml:"account"`
	EmailChange EmailChangeConfig `yaml:"email_change"`
	Notify      NotifyConfig      `yaml:"notify"`
	Audit       AuditConfig       `yaml:"audit"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig locates the backing data file.
type StorageConfig struct {
	// DataPath is the whole-document JSON file the aggregate persists to.
	DataPath string `yaml:"data_path"`
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls account creation.
type AccountConfig struct {
	// CreationEnabled gates CreateAccount. Admin creation through the data
	// tool is not affected.
	CreationEnabled bool `yaml:"creation_enabled"`
}

/*
====================================
EMAIL CHANGE CONFIG
====================================
*/

// EmailChangeConfig controls the verify/revert code lifecycle.
type EmailChangeConfig struct {
	// CodeTTL is the validity window of a verify or revert code, checked
	// lazily when a code is read or used. Default 24h.
	CodeTTL time.Duration `yaml:"code_ttl"`
}

/*
====================================
NOTIFY CONFIG
====================================
*/

// NotifyConfig shapes the links embedded in outbound notifications.
type NotifyConfig struct {
	// APIBase is the public base URL verify and revert links are built
	// from, including a trailing slash.
	APIBase string `yaml:"api_base"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit pipeline.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	// DropIfFull drops events instead of blocking when the buffer is full.
	DropIfFull bool `yaml:"drop_if_full"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			DataPath: "data.json",
		},
		Account: AccountConfig{
			CreationEnabled: true,
		},
		EmailChange: EmailChangeConfig{
			CodeTTL: 24 * time.Hour,
		},
		Notify: NotifyConfig{
			APIBase: "",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func (c *Config) validate() error {
	if c.Storage.DataPath == "" {
		return errors.New("hexazine: storage data_path must be set")
	}
	if c.EmailChange.CodeTTL <= 0 {
		return errors.New("hexazine: email change code_ttl must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("hexazine: audit buffer_size must be positive when audit is enabled")
	}
	return nil
}
