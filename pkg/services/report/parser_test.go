package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHeader = []string{
	ColTimeInterval,
	ColLineItemType,
	ColProductCode,
	ColOperation,
	ColUsageType,
	ColAvailabilityZone,
	ColLocation,
	ColVolumeType,
	ColDescription,
	ColBlendedCost,
	"resourceTags/user:team",
	"resourceTags/user:env",
}

func testRecord(overrides map[string]string) []string {
	values := map[string]string{
		ColTimeInterval: "2024-01-01T00:00:00Z/2024-01-01T01:00:00Z",
		ColLineItemType: "Usage",
		ColProductCode:  "AmazonEC2",
		ColUsageType:    "BoxUsage:t2.micro",
		ColBlendedCost:  "0.0116",
	}
	for k, v := range overrides {
		values[k] = v
	}
	record := make([]string, len(testHeader))
	for i, col := range testHeader {
		record[i] = values[col]
	}
	return record
}

func TestNewSchema(t *testing.T) {
	t.Run("accepts the full header", func(t *testing.T) {
		s, err := NewSchema(testHeader)
		require.NoError(t, err)
		assert.True(t, s.has(ColProductCode))
	})

	t.Run("accepts usage start/end columns instead of the interval", func(t *testing.T) {
		_, err := NewSchema([]string{ColUsageStartDate, ColUsageEndDate, ColProductCode, ColUsageType, ColUnblendedCost})
		require.NoError(t, err)
	})

	t.Run("rejects a header without timestamps", func(t *testing.T) {
		_, err := NewSchema([]string{ColProductCode, ColUsageType, ColBlendedCost})
		assert.Error(t, err)
	})

	t.Run("rejects a header without a cost column", func(t *testing.T) {
		_, err := NewSchema([]string{ColTimeInterval, ColProductCode, ColUsageType})
		assert.Error(t, err)
	})

	t.Run("rejects a header without a usage type", func(t *testing.T) {
		_, err := NewSchema([]string{ColTimeInterval, ColProductCode, ColBlendedCost})
		assert.Error(t, err)
	})
}

func TestSchema_TrackedTags(t *testing.T) {
	s, err := NewSchema(testHeader)
	require.NoError(t, err)

	assert.Equal(t, []string{"team", "env"}, s.TrackedTags([]string{"team", "env", "owner"}))
	assert.Empty(t, s.TrackedTags([]string{"owner"}))
}

func TestSchema_ParseRow(t *testing.T) {
	s, err := NewSchema(testHeader)
	require.NoError(t, err)

	t.Run("parses a usage row", func(t *testing.T) {
		item, err := s.ParseRow(2, testRecord(map[string]string{
			ColAvailabilityZone:      "us-east-1a",
			ColLocation:              "US East (N. Virginia)",
			"resourceTags/user:team": "data",
		}))
		require.NoError(t, err)

		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), item.Start)
		assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), item.End)
		assert.Equal(t, "AmazonEC2", item.ProductCode)
		assert.Equal(t, "BoxUsage:t2.micro", item.UsageType)
		assert.Equal(t, "us-east-1a", item.AvailabilityZone)
		assert.True(t, item.Cost.Equal(decimal.RequireFromString("0.0116")))
		assert.Equal(t, map[string]string{"team": "data"}, item.Tags)
	})

	t.Run("accepts a negative cost", func(t *testing.T) {
		item, err := s.ParseRow(2, testRecord(map[string]string{ColBlendedCost: "-1.25"}))
		require.NoError(t, err)
		assert.True(t, item.Cost.IsNegative())
	})

	t.Run("skips non-usage rows", func(t *testing.T) {
		_, err := s.ParseRow(2, testRecord(map[string]string{ColLineItemType: "Tax"}))
		assert.ErrorIs(t, err, ErrNonUsage)
	})

	t.Run("rejects a non-numeric cost", func(t *testing.T) {
		_, err := s.ParseRow(3, testRecord(map[string]string{ColBlendedCost: "free"}))
		var malformed *MalformedRowError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, 3, malformed.Line)
		assert.Equal(t, ColBlendedCost, malformed.Field)
	})

	t.Run("rejects a missing cost", func(t *testing.T) {
		_, err := s.ParseRow(2, testRecord(map[string]string{ColBlendedCost: ""}))
		var malformed *MalformedRowError
		assert.ErrorAs(t, err, &malformed)
	})

	t.Run("rejects a bad timestamp", func(t *testing.T) {
		_, err := s.ParseRow(2, testRecord(map[string]string{ColTimeInterval: "yesterday/today"}))
		var malformed *MalformedRowError
		assert.ErrorAs(t, err, &malformed)
	})

	t.Run("rejects an inverted usage window", func(t *testing.T) {
		_, err := s.ParseRow(2, testRecord(map[string]string{
			ColTimeInterval: "2024-01-02T00:00:00Z/2024-01-01T00:00:00Z",
		}))
		var malformed *MalformedRowError
		assert.ErrorAs(t, err, &malformed)
	})

	t.Run("rejects a missing product code", func(t *testing.T) {
		_, err := s.ParseRow(2, testRecord(map[string]string{ColProductCode: ""}))
		var malformed *MalformedRowError
		assert.ErrorAs(t, err, &malformed)
	})

	t.Run("is pure", func(t *testing.T) {
		record := testRecord(nil)
		first, err := s.ParseRow(2, record)
		require.NoError(t, err)
		second, err := s.ParseRow(2, record)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestSchema_ParseRow_FallbackColumns(t *testing.T) {
	s, err := NewSchema([]string{ColUsageStartDate, ColUsageEndDate, ColProductCode, ColUsageType, ColUnblendedCost})
	require.NoError(t, err)

	item, err := s.ParseRow(2, []string{"2024-03-05T00:00:00Z", "2024-03-06T00:00:00Z", "AmazonEC2", "EBS:SnapshotUsage", "2.40"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), item.Start)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), item.End)
	assert.True(t, item.Cost.Equal(decimal.RequireFromString("2.4")))
}

func TestParseTimestamp(t *testing.T) {
	for _, raw := range []string{
		"2024-01-01T00:00:00Z",
		"2024-01-01T00:00:00+00:00",
		"2024-01-01 00:00:00",
	} {
		parsed, err := parseTimestamp(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), parsed)
	}

	_, err := parseTimestamp("")
	assert.Error(t, err)
	_, err = parseTimestamp("01/02/2024")
	assert.Error(t, err)
}
