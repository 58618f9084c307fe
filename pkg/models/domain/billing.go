package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one usage row of the hourly billing export.
type LineItem struct {
	Start            time.Time
	End              time.Time
	ProductCode      string // AmazonEC2, AmazonRDS, AmazonElastiCache, ...
	Operation        string
	UsageType        string // e.g. "USW2-BoxUsage:t2.micro", "EBS:SnapshotUsage"
	AvailabilityZone string
	Location         string // product/location, e.g. "US West (Oregon)"
	Description      string
	VolumeType       string            // product/volumeType, set for EBS storage rows
	Cost             decimal.Decimal   // negative for credits/refunds
	Tags             map[string]string // resourceTags/user:* columns
}

type ReportStats struct {
	Rows         int
	Malformed    int
	NonUsage     int
	Unclassified int
}

func (s ReportStats) Usable() int {
	return s.Rows - s.Malformed - s.NonUsage
}
