package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultLogLevel   = "info"
	DefaultMaxSizeMB  = 100
	DefaultMaxBackups = 7
	DefaultMaxAgeDays = 30
)

type Config struct {
	URL       string   `json:"url" toml:"url" yaml:"url"`
	Token     string   `json:"token" toml:"token" yaml:"token"`
	ProbeID   string   `json:"probe_id" toml:"probe_id" yaml:"probe_id"`
	NodeID    string   `json:"node_id" toml:"node_id" yaml:"node_id"`
	ReplicaID string   `json:"replica_id" toml:"replica_id" yaml:"replica_id"`
	Interval  Duration `json:"interval" toml:"interval" yaml:"interval"`
	Timeout   Duration `json:"timeout,omitempty" toml:"timeout,omitempty" yaml:"timeout,omitempty"`
	Log       Log      `json:"log" toml:"log" yaml:"log"`
}

// Log controls where and how verbosely the agent logs.
type Log struct {
	Level      string `json:"level,omitempty" toml:"level,omitempty" yaml:"level,omitempty"`
	File       string `json:"file,omitempty" toml:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" toml:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" toml:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" toml:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
}

// Load reads a config file and fills in defaults for the optional fields.
// The format follows the file extension: .yaml/.yml, .json, anything else is TOML.
// Required fields are not checked here, see Validate.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	switch formatOf(path) {
	case "yaml":
		err = yaml.Unmarshal(content, cfg)
	case "json":
		err = json.Unmarshal(content, cfg)
	default:
		_, err = toml.Decode(string(content), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var (
		content []byte
		err     error
	)
	switch formatOf(path) {
	case "yaml":
		content, err = yaml.Marshal(cfg)
	case "json":
		content, err = json.MarshalIndent(cfg, "", "  ")
		content = append(content, '\n')
	default:
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(cfg)
		content = buf.Bytes()
	}
	if err != nil {
		return err
	}
	// the file carries the reporter token
	return os.WriteFile(path, content, 0o600)
}

func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = Duration(DefaultTimeout)
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = DefaultMaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultMaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = DefaultMaxAgeDays
	}
}

// Validate checks the required reporter fields in a fixed order and reports
// the first one that is missing or unusable.
func (c *Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"url", c.URL},
		{"token", c.Token},
		{"probe_id", c.ProbeID},
		{"node_id", c.NodeID},
		{"replica_id", c.ReplicaID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &Error{Field: r.field, Reason: "must not be empty"}
		}
	}
	if c.Interval <= 0 {
		return &Error{Field: "interval", Reason: "must be a positive duration"}
	}
	if c.Timeout < 0 {
		return &Error{Field: "timeout", Reason: "must not be negative"}
	}
	return ValidateURL(c.URL)
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return "toml"
	}
}
