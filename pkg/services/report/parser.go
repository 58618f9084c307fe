package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/awsbill/pkg/models/domain"
	"github.com/shopspring/decimal"
)

// Column names used by the hourly billing report. AWS has shuffled the
// optional columns between schema versions, so everything except the
// required set is looked up best-effort.
const (
	ColTimeInterval     = "identity/TimeInterval"
	ColUsageStartDate   = "lineItem/UsageStartDate"
	ColUsageEndDate     = "lineItem/UsageEndDate"
	ColLineItemType     = "lineItem/LineItemType"
	ColProductCode      = "lineItem/ProductCode"
	ColOperation        = "lineItem/Operation"
	ColUsageType        = "lineItem/UsageType"
	ColAvailabilityZone = "lineItem/AvailabilityZone"
	ColBlendedCost      = "lineItem/BlendedCost"
	ColUnblendedCost    = "lineItem/UnblendedCost"
	ColDescription      = "lineItem/LineItemDescription"
	ColLocation         = "product/location"
	ColVolumeType       = "product/volumeType"

	tagColumnPrefix = "resourceTags/user:"

	// Sentinel value of lineItem/LineItemType for rows that carry
	// actual usage. Everything else (Tax, Credit summaries, RIFee,
	// monthly rollups) is skipped.
	usageLineItemType = "Usage"
)

// ErrNonUsage marks rows whose line-item type is not "Usage". They are
// counted and skipped, never fatal.
var ErrNonUsage = errors.New("not a usage line item")

// MalformedRowError reports a row that could not be turned into a
// LineItem. The run continues; callers count these.
type MalformedRowError struct {
	Line   int
	Field  string
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed billing row %d: field %q: %s", e.Line, e.Field, e.Reason)
}

// Schema maps the semantic billing fields onto the column layout of one
// concrete report, derived from its header row.
type Schema struct {
	cols    map[string]int
	tagCols map[string]int // bare tag name -> column index
}

// NewSchema builds a Schema from the report's header row. It fails when
// a required column (usage start time, product code, usage type, cost)
// has no home in the header; that is a report-wide structural problem,
// not a per-row one.
func NewSchema(header []string) (*Schema, error) {
	s := &Schema{
		cols:    make(map[string]int, len(header)),
		tagCols: make(map[string]int),
	}
	for i, name := range header {
		name = strings.TrimSpace(name)
		if tag, ok := strings.CutPrefix(name, tagColumnPrefix); ok {
			s.tagCols[tag] = i
			continue
		}
		s.cols[name] = i
	}

	if !s.has(ColTimeInterval) && !s.has(ColUsageStartDate) {
		return nil, fmt.Errorf("report header has neither %q nor %q", ColTimeInterval, ColUsageStartDate)
	}
	for _, required := range []string{ColProductCode, ColUsageType} {
		if !s.has(required) {
			return nil, fmt.Errorf("report header is missing required column %q", required)
		}
	}
	if !s.has(ColBlendedCost) && !s.has(ColUnblendedCost) {
		return nil, fmt.Errorf("report header has neither %q nor %q", ColBlendedCost, ColUnblendedCost)
	}
	return s, nil
}

func (s *Schema) has(col string) bool {
	_, ok := s.cols[col]
	return ok
}

func (s *Schema) field(record []string, col string) string {
	i, ok := s.cols[col]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

// TrackedTags reports which of the given tag names actually have a
// column in this report.
func (s *Schema) TrackedTags(names []string) []string {
	var present []string
	for _, n := range names {
		if _, ok := s.tagCols[n]; ok {
			present = append(present, n)
		}
	}
	return present
}

// ParseRow turns one CSV record into a LineItem. line is the 1-based
// position in the report, used only for error reporting.
func (s *Schema) ParseRow(line int, record []string) (domain.LineItem, error) {
	var item domain.LineItem

	if t := s.field(record, ColLineItemType); t != "" && t != usageLineItemType {
		return item, ErrNonUsage
	}

	start, end, err := s.parseUsageWindow(record)
	if err != nil {
		return item, &MalformedRowError{Line: line, Field: ColTimeInterval, Reason: err.Error()}
	}

	costField := ColBlendedCost
	raw := s.field(record, costField)
	if raw == "" && s.has(ColUnblendedCost) {
		costField = ColUnblendedCost
		raw = s.field(record, costField)
	}
	if raw == "" {
		return item, &MalformedRowError{Line: line, Field: costField, Reason: "missing cost"}
	}
	cost, err := decimal.NewFromString(raw)
	if err != nil {
		return item, &MalformedRowError{Line: line, Field: costField, Reason: fmt.Sprintf("cost %q is not numeric", raw)}
	}

	product := s.field(record, ColProductCode)
	if product == "" {
		return item, &MalformedRowError{Line: line, Field: ColProductCode, Reason: "missing product code"}
	}
	usageType := s.field(record, ColUsageType)
	if usageType == "" {
		return item, &MalformedRowError{Line: line, Field: ColUsageType, Reason: "missing usage type"}
	}

	item = domain.LineItem{
		Start:            start,
		End:              end,
		ProductCode:      product,
		Operation:        s.field(record, ColOperation),
		UsageType:        usageType,
		AvailabilityZone: s.field(record, ColAvailabilityZone),
		Location:         s.field(record, ColLocation),
		Description:      s.field(record, ColDescription),
		VolumeType:       s.field(record, ColVolumeType),
		Cost:             cost,
	}

	for tag, i := range s.tagCols {
		if i >= len(record) || record[i] == "" {
			continue
		}
		if item.Tags == nil {
			item.Tags = make(map[string]string)
		}
		item.Tags[tag] = record[i]
	}
	return item, nil
}

func (s *Schema) parseUsageWindow(record []string) (start, end time.Time, err error) {
	if interval := s.field(record, ColTimeInterval); interval != "" {
		rawStart, rawEnd, ok := strings.Cut(interval, "/")
		if !ok {
			return start, end, fmt.Errorf("interval %q is not start/end", interval)
		}
		if start, err = parseTimestamp(rawStart); err != nil {
			return start, end, err
		}
		if end, err = parseTimestamp(rawEnd); err != nil {
			return start, end, err
		}
	} else {
		if start, err = parseTimestamp(s.field(record, ColUsageStartDate)); err != nil {
			return start, end, err
		}
		if rawEnd := s.field(record, ColUsageEndDate); rawEnd != "" {
			if end, err = parseTimestamp(rawEnd); err != nil {
				return start, end, err
			}
		} else {
			end = start
		}
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("usage end %s precedes start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return start, end, nil
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q is not ISO-8601", raw)
}
