package aggregate

import (
	"sort"
	"time"

	"github.com/de-tools/awsbill/pkg/models/domain"
	"github.com/shopspring/decimal"
)

type bucketKey struct {
	series string
	hour   int64
}

// Ledger buckets classified costs by (metric key, hour) and sums them.
// Summation is plain decimal addition, so the final values do not
// depend on the order rows arrive in, and two ledgers built from
// disjoint slices of a report can be merged.
type Ledger struct {
	buckets map[bucketKey]decimal.Decimal
	keys    map[string]domain.MetricKey
}

func NewLedger() *Ledger {
	return &Ledger{
		buckets: make(map[bucketKey]decimal.Decimal),
		keys:    make(map[string]domain.MetricKey),
	}
}

// Add attributes the item's entire cost to the hour bucket containing
// its usage start, for every given key. Items billed less often than
// hourly (daily snapshot storage, for one) land wholly in that single
// hour rather than being spread across their usage window.
func (l *Ledger) Add(item domain.LineItem, keys []domain.MetricKey) {
	hour := item.Start.Truncate(time.Hour)
	for _, key := range keys {
		series := key.String()
		bk := bucketKey{series: series, hour: hour.Unix()}
		l.buckets[bk] = l.buckets[bk].Add(item.Cost)
		if _, ok := l.keys[series]; !ok {
			l.keys[series] = key
		}
	}
}

// Merge folds another ledger into this one by pairwise addition. It
// exists so partial ledgers built independently stay combinable.
func (l *Ledger) Merge(other *Ledger) {
	for bk, value := range other.buckets {
		l.buckets[bk] = l.buckets[bk].Add(value)
		if _, ok := l.keys[bk.series]; !ok {
			l.keys[bk.series] = other.keys[bk.series]
		}
	}
}

// Len reports the number of populated buckets.
func (l *Ledger) Len() int {
	return len(l.buckets)
}

// Flush returns every bucket as a metric point, ordered by metric key
// (lexicographic over path segments) then by timestamp. The order is a
// function of the bucket contents only, never of input row order.
func (l *Ledger) Flush() []domain.MetricPoint {
	points := make([]domain.MetricPoint, 0, len(l.buckets))
	for bk, value := range l.buckets {
		points = append(points, domain.MetricPoint{
			Key:       l.keys[bk.series],
			Timestamp: time.Unix(bk.hour, 0).UTC(),
			Value:     value,
		})
	}
	sort.Slice(points, func(i, j int) bool {
		if c := points[i].Key.Compare(points[j].Key); c != 0 {
			return c < 0
		}
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}
