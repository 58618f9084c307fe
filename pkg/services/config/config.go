package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full configuration surface of one conversion run.
// TrackedTags is kept comma-separated so the same value works from a
// config file, an env var and an ini profile alike.
type Config struct {
	ReportPath   string `mapstructure:"report_path"`   // file://... or s3://bucket/prefix
	GraphiteHost string `mapstructure:"graphite_host"` // "stdout" or host[:port]
	MetricPrefix string `mapstructure:"metric_prefix"`
	TrackedTags  string `mapstructure:"tracked_tags"`
	AWSRegion    string `mapstructure:"aws_region"`
}

// Tags returns the tracked tag names as a list.
func (c *Config) Tags() []string {
	if c.TrackedTags == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(c.TrackedTags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

const envPrefix = "AWSBILL"

// Load reads configuration from an optional file plus AWSBILL_* env
// vars (env wins). path may be empty for env-only operation.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	for _, key := range []string{"report_path", "graphite_host", "metric_prefix", "tracked_tags", "aws_region"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	applyDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("graphite_host", "stdout")
	v.SetDefault("metric_prefix", "awsbill")
	v.SetDefault("aws_region", "us-west-1")
}
