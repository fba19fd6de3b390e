package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/mako10k/vosh/internal/utils"
)

// Bytes per MB
const MB = 1024 * 1024

// EnvPrefix prefixes every environment override, e.g. VOSH_QUOTA.
const EnvPrefix = "VOSH"

// Default configuration constants. See [ConfigFile] for field descriptions.
const (
	DefaultQuota           = 64 * MB
	DefaultHostName        = "vosh"
	DefaultUser            = "Guest"
	DefaultFileMode        = "0644"
	DefaultDirMode         = "0755"
	DefaultMaxAliasDepth   = 10
	DefaultMaxTreeDepth    = 256
	DefaultJobNoticeBuffer = 64
	DefaultHistorySize     = 100
	DefaultSnapshotKey     = "fsdata"
	DefaultLogLevel        = utils.WarnLevel
)

// UserSpec declares an extra simulated user.
type UserSpec struct {
	Name         string   `yaml:"name" json:"name"`
	PrimaryGroup string   `yaml:"primary_group,omitempty" json:"primary_group,omitempty"`
	Groups       []string `yaml:"groups,omitempty" json:"groups,omitempty"`
}

// ConfigFile contains the runtime settings of a shell session.
type ConfigFile struct {
	Quota           int64      // Maximum total file content in bytes, 0 for unlimited (Default 64MB)
	HostName        string     // Value of $HOST and the prompt host (Default "vosh")
	DefaultUser     string     // User the session starts as (Default "Guest")
	DefaultFileMode string     // Octal mode of new files (Default "0644")
	DefaultDirMode  string     // Octal mode of new directories (Default "0755")
	MaxAliasDepth   int        // Alias expansions allowed per line (Default 10)
	MaxTreeDepth    int        // Deepest tree recursion allowed (Default 256)
	JobNoticeBuffer int        // Buffered job notices before drops (Default 64)
	HistorySize     int        // Remembered command lines (Default 100)
	StorePath       string     // buntdb file for snapshots, empty keeps them in memory
	SnapshotKey     string     // Store key holding the tree (Default "fsdata")
	Compress        bool       // lz4 compress snapshots
	Checksum        bool       // xxhash checksum snapshots
	LogLevel        int        // utils log level (Default Warn)
	Users           []UserSpec // Extra users created at startup
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [ConfigFile] for field descriptions.
type ConfigOverride struct {
	Quota           *int64     `yaml:"quota,omitempty" json:"quota,omitempty" envconfig:"QUOTA"`
	HostName        *string    `yaml:"host_name,omitempty" json:"host_name,omitempty" envconfig:"HOST_NAME"`
	DefaultUser     *string    `yaml:"default_user,omitempty" json:"default_user,omitempty" envconfig:"USER"`
	DefaultFileMode *string    `yaml:"file_mode,omitempty" json:"file_mode,omitempty" envconfig:"FILE_MODE"`
	DefaultDirMode  *string    `yaml:"dir_mode,omitempty" json:"dir_mode,omitempty" envconfig:"DIR_MODE"`
	MaxAliasDepth   *int       `yaml:"max_alias_depth,omitempty" json:"max_alias_depth,omitempty" envconfig:"MAX_ALIAS_DEPTH"`
	MaxTreeDepth    *int       `yaml:"max_tree_depth,omitempty" json:"max_tree_depth,omitempty" envconfig:"MAX_TREE_DEPTH"`
	JobNoticeBuffer *int       `yaml:"job_notice_buffer,omitempty" json:"job_notice_buffer,omitempty" envconfig:"JOB_NOTICE_BUFFER"`
	HistorySize     *int       `yaml:"history_size,omitempty" json:"history_size,omitempty" envconfig:"HISTORY_SIZE"`
	StorePath       *string    `yaml:"store_path,omitempty" json:"store_path,omitempty" envconfig:"STORE_PATH"`
	SnapshotKey     *string    `yaml:"snapshot_key,omitempty" json:"snapshot_key,omitempty" envconfig:"SNAPSHOT_KEY"`
	Compress        *bool      `yaml:"compress,omitempty" json:"compress,omitempty" envconfig:"COMPRESS"`
	Checksum        *bool      `yaml:"checksum,omitempty" json:"checksum,omitempty" envconfig:"CHECKSUM"`
	LogLevel        *int       `yaml:"log_level,omitempty" json:"log_level,omitempty" envconfig:"LOG_LEVEL"`
	Users           []UserSpec `yaml:"users,omitempty" json:"users,omitempty" ignored:"true"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *ConfigFile {
	return &ConfigFile{
		Quota:           DefaultQuota,
		HostName:        DefaultHostName,
		DefaultUser:     DefaultUser,
		DefaultFileMode: DefaultFileMode,
		DefaultDirMode:  DefaultDirMode,
		MaxAliasDepth:   DefaultMaxAliasDepth,
		MaxTreeDepth:    DefaultMaxTreeDepth,
		JobNoticeBuffer: DefaultJobNoticeBuffer,
		HistorySize:     DefaultHistorySize,
		SnapshotKey:     DefaultSnapshotKey,
		Checksum:        true,
		LogLevel:        DefaultLogLevel,
	}
}

// Merge applies non-nil values from override onto this ConfigFile.
func (c *ConfigFile) Merge(o *ConfigOverride) {
	if o == nil {
		return
	}
	if o.Quota != nil {
		c.Quota = *o.Quota
	}
	if o.HostName != nil {
		c.HostName = *o.HostName
	}
	if o.DefaultUser != nil {
		c.DefaultUser = *o.DefaultUser
	}
	if o.DefaultFileMode != nil {
		c.DefaultFileMode = *o.DefaultFileMode
	}
	if o.DefaultDirMode != nil {
		c.DefaultDirMode = *o.DefaultDirMode
	}
	if o.MaxAliasDepth != nil {
		c.MaxAliasDepth = *o.MaxAliasDepth
	}
	if o.MaxTreeDepth != nil {
		c.MaxTreeDepth = *o.MaxTreeDepth
	}
	if o.JobNoticeBuffer != nil {
		c.JobNoticeBuffer = *o.JobNoticeBuffer
	}
	if o.HistorySize != nil {
		c.HistorySize = *o.HistorySize
	}
	if o.StorePath != nil {
		c.StorePath = *o.StorePath
	}
	if o.SnapshotKey != nil {
		c.SnapshotKey = *o.SnapshotKey
	}
	if o.Compress != nil {
		c.Compress = *o.Compress
	}
	if o.Checksum != nil {
		c.Checksum = *o.Checksum
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
	if len(o.Users) > 0 {
		c.Users = append(c.Users, o.Users...)
	}
}

// Validate checks values that cannot be enforced by types alone.
func (c *ConfigFile) Validate() error {
	if c.Quota < 0 {
		return fmt.Errorf("quota must not be negative: %d", c.Quota)
	}
	if _, err := utils.ParseFileMode(c.DefaultFileMode); err != nil {
		return fmt.Errorf("file_mode: %w", err)
	}
	if _, err := utils.ParseFileMode(c.DefaultDirMode); err != nil {
		return fmt.Errorf("dir_mode: %w", err)
	}
	if c.MaxAliasDepth < 1 {
		return fmt.Errorf("max_alias_depth must be at least 1: %d", c.MaxAliasDepth)
	}
	if c.HostName == "" || c.DefaultUser == "" {
		return fmt.Errorf("host_name and default_user must be set")
	}
	for _, u := range c.Users {
		if u.Name == "" {
			return fmt.Errorf("users: entry without name")
		}
	}
	return nil
}

// LoadConfigFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}
	return &override, nil
}

// LoadEnvironmentConfig reads VOSH_* environment overrides.
func LoadEnvironmentConfig() (*ConfigOverride, error) {
	var override ConfigOverride
	if err := envconfig.Process(EnvPrefix, &override); err != nil {
		return nil, fmt.Errorf("environment config: %w", err)
	}
	return &override, nil
}

// LoadAndMergeConfig layers defaults, the config file, the environment and
// finally the command line options, in increasing priority.
func LoadAndMergeConfig(opts *Config) (*ConfigFile, error) {
	cfg := DefaultConfig()

	if opts.ConfigFile != "" {
		override, err := LoadConfigFile(opts.ConfigFile)
		if err != nil {
			if !os.IsNotExist(err) || opts.ConfigExplicit {
				return nil, fmt.Errorf("config file %s: %w", opts.ConfigFile, err)
			}
		} else {
			cfg.Merge(override)
		}
	}

	env, err := LoadEnvironmentConfig()
	if err != nil {
		return nil, err
	}
	cfg.Merge(env)

	if opts.StorePath != "" {
		cfg.StorePath = opts.StorePath
	}
	if opts.User != "" {
		cfg.DefaultUser = opts.User
	}
	if opts.Verbosity > 0 {
		cfg.LogLevel = utils.LevelFromVerbosity(opts.Verbosity)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
