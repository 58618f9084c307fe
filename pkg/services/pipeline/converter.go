package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/de-tools/awsbill/pkg/models/domain"
	"github.com/de-tools/awsbill/pkg/services/aggregate"
	"github.com/de-tools/awsbill/pkg/services/classify"
	"github.com/de-tools/awsbill/pkg/services/report"
	"github.com/rs/zerolog"
)

// ErrEmptyReport is returned when a report yields no usable rows at
// all. Per-row problems are skipped and counted; a report with nothing
// in it is a failure.
var ErrEmptyReport = errors.New("billing report contains no usable rows")

// Converter runs one report through parse, classify and aggregate in a
// single streaming pass: one row in memory at a time, the full bucket
// set held until the final flush.
type Converter struct {
	classifier *classify.Classifier
}

func NewConverter(settings classify.Settings) *Converter {
	return &Converter{classifier: classify.New(settings)}
}

// Convert reads the billing CSV and returns the ordered metric points
// plus the per-run counters. Malformed and non-usage rows are skipped;
// a structurally unusable report (bad header, no usable rows) aborts.
func (c *Converter) Convert(ctx context.Context, r io.Reader) ([]domain.MetricPoint, domain.ReportStats, error) {
	logger := zerolog.Ctx(ctx)
	var stats domain.ReportStats

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, stats, fmt.Errorf("read report header: %w", err)
	}
	schema, err := report.NewSchema(header)
	if err != nil {
		return nil, stats, fmt.Errorf("parse report header: %w", err)
	}

	ledger := aggregate.NewLedger()
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			stats.Rows++
			stats.Malformed++
			logger.Debug().Err(err).Int("line", line).Msg("skipping unreadable row")
			continue
		}
		stats.Rows++

		item, err := schema.ParseRow(line, record)
		if err != nil {
			var malformed *report.MalformedRowError
			switch {
			case errors.Is(err, report.ErrNonUsage):
				stats.NonUsage++
			case errors.As(err, &malformed):
				stats.Malformed++
				logger.Debug().Err(err).Int("line", line).Msg("skipping malformed row")
			default:
				return nil, stats, fmt.Errorf("parse row %d: %w", line, err)
			}
			continue
		}

		cls := c.classifier.Classify(item)
		if cls.Category == "" {
			stats.Unclassified++
		}
		ledger.Add(item, cls.Keys)
	}

	if stats.Usable() == 0 {
		return nil, stats, ErrEmptyReport
	}

	points := ledger.Flush()
	logger.Info().
		Int("rows", stats.Rows).
		Int("malformed", stats.Malformed).
		Int("non_usage", stats.NonUsage).
		Int("unclassified", stats.Unclassified).
		Int("points", len(points)).
		Msg("billing report converted")
	return points, stats, nil
}
