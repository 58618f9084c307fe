// Package conversion ties the report fetcher and the billing pipeline
// together behind the profile registry, for callers (the web surface)
// that address reports by profile name.
package conversion

import (
	"context"
	"fmt"

	"github.com/de-tools/awsbill/pkg/models/api"
	"github.com/de-tools/awsbill/pkg/models/domain"
	"github.com/de-tools/awsbill/pkg/services/classify"
	"github.com/de-tools/awsbill/pkg/services/config"
	"github.com/de-tools/awsbill/pkg/services/pipeline"
	"github.com/de-tools/awsbill/pkg/store/report"
)

type Service struct {
	registry config.Registry
}

func NewService(registry config.Registry) *Service {
	return &Service{registry: registry}
}

func (s *Service) Profiles(ctx context.Context) ([]string, error) {
	return s.registry.GetProfiles(ctx)
}

// Convert fetches the profile's report, runs it through the engine and
// returns the finalized points with the metric prefix applied.
func (s *Service) Convert(ctx context.Context, profile string) (api.ConversionResult, error) {
	var result api.ConversionResult

	cfg, err := s.registry.GetProfile(ctx, profile)
	if err != nil {
		return result, err
	}

	fetcher, err := report.NewFetcher(ctx, cfg.ReportPath, cfg.AWSRegion)
	if err != nil {
		return result, fmt.Errorf("fetch stage: %w", err)
	}
	body, err := fetcher.Fetch(ctx)
	if err != nil {
		return result, fmt.Errorf("fetch stage: %w", err)
	}
	defer body.Close()

	converter := pipeline.NewConverter(classify.Settings{TrackedTags: cfg.Tags()})
	points, stats, err := converter.Convert(ctx, body)
	if err != nil {
		return result, fmt.Errorf("convert stage: %w", err)
	}

	prefix := cfg.MetricPrefix
	if prefix == "" {
		prefix = "awsbill"
	}
	result = api.ConversionResult{
		Profile: profile,
		Points:  make([]api.MetricPoint, 0, len(points)),
		Stats: api.ConversionStats{
			Rows:         stats.Rows,
			Malformed:    stats.Malformed,
			NonUsage:     stats.NonUsage,
			Unclassified: stats.Unclassified,
		},
	}
	for _, p := range points {
		result.Points = append(result.Points, toAPIPoint(prefix, p))
	}
	return result, nil
}

func toAPIPoint(prefix string, p domain.MetricPoint) api.MetricPoint {
	value, _ := p.Value.Float64()
	return api.MetricPoint{
		Path:      prefix + "." + p.Key.String(),
		Value:     value,
		Timestamp: p.Timestamp.Unix(),
	}
}
