package config

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/ini.v1"
)

// ErrProfileNotFound is returned when the requested profile has no
// section in the registry file.
var ErrProfileNotFound = errors.New("profile not found")

// Registry resolves named profiles from an awsbill.cfg file, one ini
// section per environment (report location, graphite target, tags).
type Registry interface {
	GetProfiles(ctx context.Context) ([]string, error)
	GetProfile(ctx context.Context, name string) (*Config, error)
}

type cfgRegistry struct {
	cfg *ini.File
}

func NewRegistry(path string) (Registry, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile registry %s: %w", path, err)
	}
	return &cfgRegistry{cfg: cfg}, nil
}

func (cr *cfgRegistry) GetProfiles(_ context.Context) ([]string, error) {
	var profiles []string
	for _, section := range cr.cfg.Sections() {
		if len(section.Keys()) > 0 {
			profiles = append(profiles, section.Name())
		}
	}
	return profiles, nil
}

func (cr *cfgRegistry) GetProfile(_ context.Context, name string) (*Config, error) {
	section, err := cr.cfg.GetSection(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	cfg := &Config{
		ReportPath:   section.Key("report_path").String(),
		GraphiteHost: section.Key("graphite_host").MustString("stdout"),
		MetricPrefix: section.Key("metric_prefix").MustString("awsbill"),
		TrackedTags:  section.Key("tracked_tags").String(),
		AWSRegion:    section.Key("aws_region").MustString("us-west-1"),
	}
	if cfg.ReportPath == "" {
		return nil, fmt.Errorf("profile %s has no report_path", name)
	}
	return cfg, nil
}
