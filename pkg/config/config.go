package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/fulmenhq/repodeploy/pkg/pattern"
	"github.com/spf13/viper"
)

// ErrInvalidConfig marks a configuration that cannot be read or fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	// AppName names the XDG subdirectories and the config file.
	AppName = "repodeploy"
	// EnvPrefix prefixes every environment override, e.g. REPODEPLOY_WORK_DIR.
	EnvPrefix = "REPODEPLOY"
	// EnvHome relocates every default directory under one root.
	EnvHome = "REPODEPLOY_HOME"
)

// Config holds all configuration for repodeploy
type Config struct {
	WorkDir string       `mapstructure:"work_dir"`
	DBPath  string       `mapstructure:"db_path"`
	Log     LogConfig    `mapstructure:"log"`
	At      AtConfig     `mapstructure:"at"`
	Git     GitConfig    `mapstructure:"git"`
	Expand  ExpandConfig `mapstructure:"expand"`
}

// LogConfig controls the log file; console output is driven by CLI flags.
type LogConfig struct {
	File    bool   `mapstructure:"file"`
	Dir     string `mapstructure:"dir"`
	Backups int    `mapstructure:"backups"`
}

// AtConfig selects the at(1) binary.
type AtConfig struct {
	Binary string `mapstructure:"binary"`
}

// GitConfig holds commit identity and HTTP credentials.
type GitConfig struct {
	AuthorName    string `mapstructure:"author_name"`
	AuthorEmail   string `mapstructure:"author_email"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	CommitMessage string `mapstructure:"commit_message"` // Handlebars template
}

// ExpandConfig holds the pattern expansion policies.
type ExpandConfig struct {
	ExistingDirectory    string   `mapstructure:"existing_directory"`    // merge | error
	DuplicateDestination string   `mapstructure:"duplicate_destination"` // overwrite | error
	Gitignore            bool     `mapstructure:"gitignore"`
	Exclude              []string `mapstructure:"exclude"`
}

// New returns a viper instance with defaults, search paths and environment
// binding set up. Callers may bind flags before passing it to Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("work_dir", GetWorkDir())
	v.SetDefault("db_path", filepath.Join(GetDataDir(), "db.json"))
	v.SetDefault("log.file", true)
	v.SetDefault("log.dir", GetLogDir())
	v.SetDefault("log.backups", 19)
	v.SetDefault("at.binary", "at")
	v.SetDefault("git.author_name", "repodeploy")
	v.SetDefault("git.author_email", "repodeploy@localhost")
	v.SetDefault("git.username", "")
	v.SetDefault("git.password", "")
	v.SetDefault("git.commit_message", "Automated commit for event {{id}}")
	v.SetDefault("expand.existing_directory", string(pattern.DirectoryMerge))
	v.SetDefault("expand.duplicate_destination", string(pattern.DuplicateOverwrite))
	v.SetDefault("expand.gitignore", false)
	v.SetDefault("expand.exclude", []string{})

	// Configuration file search paths
	v.SetConfigName(AppName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(GetConfigDir())

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads configFile (or the first repodeploy.yaml on the search path when
// empty) into v and decodes the result. A missing search-path file is fine; a
// missing explicit file is an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidConfig, configFile, err)
		}
	} else if err := v.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("%w: reading config: %w", ErrInvalidConfig, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("%w: error unmarshaling config: %v", ErrInvalidConfig, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &config, nil
}

// LoadConfig loads configuration from defaults, config file and environment.
func LoadConfig(configFile string) (*Config, error) {
	return Load(New(), configFile)
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}

// Validate rejects unknown policies and nonsensical values.
func (c *Config) Validate() error {
	if _, err := c.ExpandOptions(); err != nil {
		return err
	}
	if c.Log.Backups < 0 {
		return fmt.Errorf("log.backups must be >= 0, got %d", c.Log.Backups)
	}
	if c.WorkDir == "" {
		return fmt.Errorf("work_dir must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	return nil
}

// ExpandOptions converts the expand section into expander options.
func (c *Config) ExpandOptions() (pattern.Options, error) {
	dir, err := pattern.ParseDirectoryPolicy(c.Expand.ExistingDirectory)
	if err != nil {
		return pattern.Options{}, fmt.Errorf("expand.existing_directory: %w", err)
	}
	dup, err := pattern.ParseDuplicatePolicy(c.Expand.DuplicateDestination)
	if err != nil {
		return pattern.Options{}, fmt.Errorf("expand.duplicate_destination: %w", err)
	}
	return pattern.Options{
		ExistingDirectory:    dir,
		DuplicateDestination: dup,
		Gitignore:            c.Expand.Gitignore,
		Exclude:              c.Expand.Exclude,
	}, nil
}

// GetHome returns REPODEPLOY_HOME, or "" when the XDG layout applies.
func GetHome() string {
	return os.Getenv(EnvHome)
}

// GetDataDir holds the registry: $REPODEPLOY_HOME or $XDG_DATA_HOME/repodeploy.
func GetDataDir() string {
	if home := GetHome(); home != "" {
		return home
	}
	return filepath.Join(xdg.DataHome, AppName)
}

// GetConfigDir returns $REPODEPLOY_HOME/config or $XDG_CONFIG_HOME/repodeploy.
func GetConfigDir() string {
	if home := GetHome(); home != "" {
		return filepath.Join(home, "config")
	}
	return filepath.Join(xdg.ConfigHome, AppName)
}

// GetLogDir returns $REPODEPLOY_HOME/logs or $XDG_STATE_HOME/repodeploy/logs.
func GetLogDir() string {
	if home := GetHome(); home != "" {
		return filepath.Join(home, "logs")
	}
	return filepath.Join(xdg.StateHome, AppName, "logs")
}

// GetWorkDir returns $REPODEPLOY_HOME/work or $XDG_CACHE_HOME/repodeploy/work.
func GetWorkDir() string {
	if home := GetHome(); home != "" {
		return filepath.Join(home, "work")
	}
	return filepath.Join(xdg.CacheHome, AppName, "work")
}

// EnsureDir creates dir if it doesn't exist
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %v", dir, err)
	}
	return dir, nil
}
