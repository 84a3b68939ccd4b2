package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Deployment names a fixed controller set registered at startup. The two
// deployments exist because the production hosts and the analysis hosts expose
// different command surfaces; the choice is explicit configuration, never
// inferred.
type Deployment string

const (
	// DeploymentProduction exposes the full command set used on data-production hosts
	DeploymentProduction Deployment = "production"
	// DeploymentAnalysis exposes the reduced command set used on analysis hosts
	DeploymentAnalysis Deployment = "analysis"
)

// String returns the string representation
func (d Deployment) String() string {
	return string(d)
}

// IsValid checks if the deployment is valid
func (d Deployment) IsValid() bool {
	switch d {
	case DeploymentProduction, DeploymentAnalysis:
		return true
	default:
		return false
	}
}

// Config holds all configuration for the pm tool
type Config struct {
	// Deployment selects which controller set is registered at startup
	Deployment Deployment `mapstructure:"deployment"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Output struct {
		// Format is the default render format: text, json or yaml
		Format string `mapstructure:"format"`
	} `mapstructure:"output"`

	Archive struct {
		// Root is the directory holding finished run folders
		Root string `mapstructure:"root"`
		// RetentionDays is how long run folders are kept before 'archive clean'
		// offers them for removal
		RetentionDays int `mapstructure:"retention_days"`
	} `mapstructure:"archive"`

	Production struct {
		// Root is the production data directory (demultiplexed runs)
		Root          string `mapstructure:"root"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"production"`

	Analysis struct {
		// Root is the analysis working directory
		Root          string `mapstructure:"root"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"analysis"`

	Project struct {
		// Root is the directory under which project data directories live
		Root string `mapstructure:"root"`
	} `mapstructure:"project"`

	Delivery struct {
		// Inbox is the destination root for sample deliveries; the project name
		// is appended per delivery
		Inbox string `mapstructure:"inbox"`
	} `mapstructure:"delivery"`

	Database struct {
		// Path is the SQLite project registry; empty derives <confdir>/pm.db
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`

	StatusDB struct {
		Enabled  bool          `mapstructure:"enabled"`
		URI      string        `mapstructure:"uri"`
		Database string        `mapstructure:"database"`
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"statusdb"`

	Distributed struct {
		Enabled   bool   `mapstructure:"enabled"`
		Account   string `mapstructure:"account"`
		Partition string `mapstructure:"partition"`
		Time      string `mapstructure:"time"`
		// Extra holds verbatim extra arguments appended to every submission
		Extra []string `mapstructure:"extra"`
	} `mapstructure:"distributed"`

	// Extensions lists the extension names loaded at startup
	Extensions []string `mapstructure:"extensions"`
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment", string(DeploymentProduction))
	v.SetDefault("log.level", "info")
	v.SetDefault("output.format", "text")
	v.SetDefault("archive.root", "")
	v.SetDefault("archive.retention_days", 90)
	v.SetDefault("production.root", "")
	v.SetDefault("production.retention_days", 30)
	v.SetDefault("analysis.root", "")
	v.SetDefault("analysis.retention_days", 30)
	v.SetDefault("project.root", "")
	v.SetDefault("delivery.inbox", "")
	v.SetDefault("database.path", "")
	v.SetDefault("statusdb.enabled", false)
	v.SetDefault("statusdb.uri", "mongodb://localhost:27017")
	v.SetDefault("statusdb.database", "statusdb")
	v.SetDefault("statusdb.timeout", 10*time.Second)
	v.SetDefault("distributed.enabled", false)
	v.SetDefault("distributed.account", "")
	v.SetDefault("distributed.partition", "core")
	v.SetDefault("distributed.time", "04:00:00")
	v.SetDefault("extensions", []string{"distributed", "statusdb", "qc"})
}

// loadFromEnv binds environment variable overrides
func loadFromEnv(v *viper.Viper) {
	v.SetEnvPrefix("PM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("deployment", "PM_DEPLOYMENT")
	_ = v.BindEnv("database.path", "PM_DATABASE_PATH")
	_ = v.BindEnv("statusdb.uri", "PM_STATUSDB_URI")
}

// Default returns the built-in baseline configuration, before any file is
// parsed. The bootstrap sequence constructs the application with these values
// and merges the on-disk file over them later.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Unmarshal of pure defaults cannot fail
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads the configuration file at path and merges it over the defaults.
// Any read or parse failure is returned to the caller; the bootstrap sequence
// converts it into a user-guidance warning rather than a crash.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)
	loadFromEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config file %s: %w", path, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return &cfg, nil
}

// validate checks the configuration for correctness
func validate(cfg *Config) error {
	if !cfg.Deployment.IsValid() {
		return fmt.Errorf("invalid deployment %q: must be %q or %q",
			cfg.Deployment, DeploymentProduction, DeploymentAnalysis)
	}

	switch cfg.Output.Format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q: must be text, json or yaml", cfg.Output.Format)
	}

	if cfg.StatusDB.Enabled {
		if !strings.HasPrefix(cfg.StatusDB.URI, "mongodb://") && !strings.HasPrefix(cfg.StatusDB.URI, "mongodb+srv://") {
			return fmt.Errorf("invalid statusdb URI: must start with mongodb:// or mongodb+srv://")
		}
		if cfg.StatusDB.Database == "" {
			return fmt.Errorf("statusdb.database is required when statusdb is enabled")
		}
	}

	for _, root := range []struct{ key, val string }{
		{"archive.root", cfg.Archive.Root},
		{"production.root", cfg.Production.Root},
		{"analysis.root", cfg.Analysis.Root},
		{"project.root", cfg.Project.Root},
		{"delivery.inbox", cfg.Delivery.Inbox},
	} {
		if root.val != "" && !filepath.IsAbs(root.val) {
			return fmt.Errorf("%s must be an absolute path, got %q", root.key, root.val)
		}
	}

	return nil
}

// DatabasePath returns the resolved SQLite registry path, deriving it from the
// configuration directory when not explicitly set.
func (c *Config) DatabasePath(confDir string) string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(confDir, "pm.db")
}
