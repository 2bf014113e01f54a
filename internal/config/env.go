package config

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "VIGIL_"

// LoadEnvFile loads variables from a .env file into the process environment.
// Variables that are already set win. Returns true if a file was loaded.
func LoadEnvFile(logger log.FieldLogger, envFile string) bool {
	if envFile == "" {
		envFile = ".env"
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		logger.Debugf("No env file found at %s", envFile)
		return false
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warnf("Failed to load env file %s: %v", envFile, err)
		return false
	}

	logger.Debugf("Loaded env file %s", envFile)
	return true
}

// ApplyEnv overrides config values with VIGIL_* environment variables.
func (c *Config) ApplyEnv() error {
	fields := map[string]*string{
		"URL":        &c.URL,
		"TOKEN":      &c.Token,
		"PROBE_ID":   &c.ProbeID,
		"NODE_ID":    &c.NodeID,
		"REPLICA_ID": &c.ReplicaID,
		"LOG_LEVEL":  &c.Log.Level,
		"LOG_FILE":   &c.Log.File,
	}
	for key, dst := range fields {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}

	durations := []struct {
		key   string
		field string
		dst   *Duration
	}{
		{"INTERVAL", "interval", &c.Interval},
		{"TIMEOUT", "timeout", &c.Timeout},
	}
	for _, d := range durations {
		v, ok := os.LookupEnv(envPrefix + d.key)
		if !ok {
			continue
		}
		parsed, err := ParseDuration(v)
		if err != nil {
			return &Error{Field: d.field, Reason: "from " + envPrefix + d.key + ": " + err.Error()}
		}
		*d.dst = parsed
	}
	return nil
}
