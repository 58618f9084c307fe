package graphite

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/de-tools/awsbill/pkg/models/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatter(t *testing.T) {
	point := domain.MetricPoint{
		Key:       domain.MetricKey{"us-east-1", "ec2-instance", "t2-micro"},
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Value:     decimal.RequireFromString("0.05"),
	}

	t.Run("with explicit prefix", func(t *testing.T) {
		f := NewFormatter("billing.prod")
		assert.Equal(t, "billing.prod.us-east-1.ec2-instance.t2-micro 0.05 1704067200\n", f.Format(point))
	})

	t.Run("falls back to the default prefix", func(t *testing.T) {
		f := NewFormatter("")
		assert.Equal(t, "awsbill.us-east-1.ec2-instance.t2-micro 0.05 1704067200\n", f.Format(point))
	})
}

func TestWriterEmitter(t *testing.T) {
	points := []domain.MetricPoint{
		{
			Key:       domain.MetricKey{"total"},
			Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Value:     decimal.RequireFromString("0.05"),
		},
		{
			Key:       domain.MetricKey{"total"},
			Timestamp: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
			Value:     decimal.RequireFromString("-1.25"),
		},
	}

	var buf bytes.Buffer
	e := NewWriterEmitter(&buf, "awsbill")
	require.NoError(t, e.Emit(context.Background(), points))

	assert.Equal(t,
		"awsbill.total 0.05 1704067200\n"+
			"awsbill.total -1.25 1704070800\n",
		buf.String())
}

func TestNewTCPEmitter_DefaultPort(t *testing.T) {
	e := NewTCPEmitter("graphite.internal", "awsbill")
	assert.Equal(t, "graphite.internal:2003", e.addr)

	e = NewTCPEmitter("graphite.internal:2004", "awsbill")
	assert.Equal(t, "graphite.internal:2004", e.addr)
}
