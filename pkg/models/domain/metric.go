package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MetricKey identifies one output series as an ordered path,
// e.g. ["us-east-1", "ec2-instance", "t2-micro"].
type MetricKey []string

func (k MetricKey) String() string {
	return strings.Join(k, ".")
}

func (k MetricKey) Equal(other MetricKey) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// Compare orders keys lexicographically segment by segment; a key that
// is a prefix of another sorts first.
func (k MetricKey) Compare(other MetricKey) int {
	for i := 0; i < len(k) && i < len(other); i++ {
		if c := strings.Compare(k[i], other[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(k) < len(other):
		return -1
	case len(k) > len(other):
		return 1
	}
	return 0
}

// MetricPoint is one finalized (series, hour, value) triple.
type MetricPoint struct {
	Key       MetricKey
	Timestamp time.Time
	Value     decimal.Decimal
}
