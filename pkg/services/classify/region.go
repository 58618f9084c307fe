package classify

import "github.com/de-tools/awsbill/pkg/models/domain"

// regionNames maps the human-readable product/location values the
// billing report uses onto canonical region codes.
var regionNames = map[string]string{
	"US East (N. Virginia)":     "us-east-1",
	"US East (Ohio)":            "us-east-2",
	"US West (N. California)":   "us-west-1",
	"US West (Oregon)":          "us-west-2",
	"EU (Ireland)":              "eu-west-1",
	"EU (Frankfurt)":            "eu-central-1",
	"Asia Pacific (Tokyo)":      "ap-northeast-1",
	"Asia Pacific (Seoul)":      "ap-northeast-2",
	"Asia Pacific (Singapore)":  "ap-southeast-1",
	"Asia Pacific (Sydney)":     "ap-southeast-2",
	"South America (Sao Paulo)": "sa-east-1",
}

// noRegion is used when neither product/location nor the availability
// zone yields a region. The cost still has to land somewhere.
const noRegion = "noregion"

// regionOf derives the canonical region for a line item. Most services
// set product/location; some (ElastiCache among them) only set the
// availability zone, whose trailing zone letter is stripped. An
// availability-zone value already ending in a digit is a bare region.
func regionOf(item domain.LineItem) string {
	if r, ok := regionNames[item.Location]; ok {
		return r
	}
	return regionFromZone(item.AvailabilityZone)
}

func regionFromZone(zone string) string {
	if zone == "" {
		return noRegion
	}
	last := zone[len(zone)-1]
	switch {
	case last >= '0' && last <= '9':
		return zone
	case last >= 'a' && last <= 'z':
		if len(zone) == 1 {
			return noRegion
		}
		return zone[:len(zone)-1]
	}
	return noRegion
}
