package classify

import (
	"strings"

	"github.com/de-tools/awsbill/pkg/models/domain"
)

// Settings carries the classifier's configuration surface: the resource
// tag names for which per-value cost series are fanned out.
type Settings struct {
	TrackedTags []string
}

// Classification is the outcome for one line item. Category is the
// name of the matching rule, or empty when the item fell through to
// the residual bucket (it still contributes to the totals).
type Classification struct {
	Keys     []domain.MetricKey
	Category string
}

// rule pairs a predicate over the line item with a key builder, per
// the priority order documented on New. The first matching rule wins
// the category key; totals and tag fan-out are appended regardless.
type rule struct {
	name  string
	match func(c candidate) bool
	key   func(c candidate) domain.MetricKey
}

// candidate is a line item with the derived fields every rule needs.
type candidate struct {
	item   domain.LineItem
	region string
	usage  string // usage type with any leading region code stripped
}

type Classifier struct {
	rules       []rule
	trackedTags []string
}

// New builds a Classifier with the rule set evaluated in priority
// order: EC2 instance hours, the EBS-adjacent usage billed under EC2
// (PIOPS, volume storage, IOPS, snapshots), RDS, then ElastiCache.
func New(settings Settings) *Classifier {
	return &Classifier{
		trackedTags: settings.TrackedTags,
		rules: []rule{
			{
				name:  "ec2-instance",
				match: func(c candidate) bool { return instanceType(c.usage, "BoxUsage:") != "" },
				key: func(c candidate) domain.MetricKey {
					return domain.MetricKey{c.region, "ec2-instance", instanceType(c.usage, "BoxUsage:")}
				},
			},
			{
				name:  "ebs-piops",
				match: func(c candidate) bool { return c.usage == "EBS:VolumeP-IOPS.piops" },
				key: func(c candidate) domain.MetricKey {
					return domain.MetricKey{c.region, "ebs", "piops"}
				},
			},
			{
				name:  "ebs-storage",
				match: func(c candidate) bool { return strings.HasPrefix(c.usage, "EBS:VolumeUsage") },
				key: func(c candidate) domain.MetricKey {
					return domain.MetricKey{c.region, "ebs", "storage", ebsVolumeType(c.item.VolumeType)}
				},
			},
			{
				name:  "ebs-iops",
				match: func(c candidate) bool { return c.usage == "EBS:VolumeIOUsage" },
				key: func(c candidate) domain.MetricKey {
					return domain.MetricKey{c.region, "ebs", "iops"}
				},
			},
			{
				name:  "ebs-snapshot",
				match: func(c candidate) bool { return c.usage == "EBS:SnapshotUsage" },
				key: func(c candidate) domain.MetricKey {
					return domain.MetricKey{c.region, "ebs", "snapshot"}
				},
			},
			{
				name: "rds-instance",
				match: func(c candidate) bool {
					return instanceType(c.usage, "InstanceUsage:") != "" ||
						instanceType(c.usage, "Multi-AZUsage:") != ""
				},
				key: func(c candidate) domain.MetricKey {
					t := instanceType(c.usage, "InstanceUsage:")
					if t == "" {
						t = instanceType(c.usage, "Multi-AZUsage:")
					}
					return domain.MetricKey{c.region, "rds", t}
				},
			},
			{
				name: "rds-piops",
				match: func(c candidate) bool {
					return c.usage == "RDS:PIOPS" || c.usage == "RDS:Multi-AZ-PIOPS"
				},
				key: func(c candidate) domain.MetricKey {
					return domain.MetricKey{c.region, "rds", "piops"}
				},
			},
			{
				name: "rds-storage",
				match: func(c candidate) bool {
					return strings.HasPrefix(c.usage, "RDS:") && strings.HasSuffix(c.usage, "Storage")
				},
				key: func(c candidate) domain.MetricKey {
					return domain.MetricKey{c.region, "rds", "storage", rdsVolumeType(c.item.Description)}
				},
			},
			{
				name:  "elasticache-instance",
				match: func(c candidate) bool { return instanceType(c.usage, "NodeUsage:") != "" },
				key: func(c candidate) domain.MetricKey {
					return domain.MetricKey{c.region, "elasticache", instanceType(c.usage, "NodeUsage:")}
				},
			},
		},
	}
}

// Classify maps a line item to its metric keys. An item matching no
// category rule is not an error; it still feeds the totals and any
// tracked tag series.
func (cl *Classifier) Classify(item domain.LineItem) Classification {
	c := candidate{
		item:   item,
		region: regionOf(item),
		usage:  stripRegionCode(item.UsageType),
	}

	var result Classification
	for _, r := range cl.rules {
		if r.match(c) {
			result.Category = r.name
			result.Keys = append(result.Keys, r.key(c))
			break
		}
	}

	for _, tag := range cl.trackedTags {
		value, ok := item.Tags[tag]
		if !ok || value == "" {
			continue
		}
		result.Keys = append(result.Keys, domain.MetricKey{sanitizeSegment(tag), sanitizeSegment(value), "total"})
	}

	result.Keys = append(result.Keys,
		domain.MetricKey{"total"},
		domain.MetricKey{"total-cost", c.region},
	)
	return result
}

// stripRegionCode removes a leading region code token such as "USW2-"
// or "APN1-" from a usage type. The token is four uppercase characters
// starting with a geography pair and ending in a digit; anything else
// is left alone.
func stripRegionCode(usageType string) string {
	code, rest, ok := strings.Cut(usageType, "-")
	if !ok || len(code) != 4 {
		return usageType
	}
	switch code[:2] {
	case "US", "EU", "AP", "SA":
	default:
		return usageType
	}
	if code != strings.ToUpper(code) || code[3] < '0' || code[3] > '9' {
		return usageType
	}
	return rest
}

// instanceType extracts the normalized instance type from usage types
// like "BoxUsage:t2.micro" ("t2-micro"). Empty when the prefix does not
// match or no type follows the colon.
func instanceType(usage, prefix string) string {
	rest, ok := strings.CutPrefix(usage, prefix)
	if !ok || rest == "" {
		return ""
	}
	return strings.ReplaceAll(rest, ".", "-")
}

// ebsVolumeType maps product/volumeType onto the short volume type
// names used in metric paths.
func ebsVolumeType(volumeType string) string {
	switch volumeType {
	case "Magnetic":
		return "standard"
	case "General Purpose":
		return "gp2"
	case "Provisioned IOPS":
		return "io1"
	}
	return "unknown"
}

// rdsVolumeType recovers the RDS volume type from the line-item
// description; the report stopped filling product/volumeType for RDS
// storage rows, so a substring check is the best available signal.
func rdsVolumeType(description string) string {
	switch {
	case strings.Contains(description, "Provisioned IOPS Storage"):
		return "io1"
	case strings.Contains(description, "provisioned GP2 storage"):
		return "gp2"
	}
	return "unknown"
}

// sanitizeSegment makes a tag name or value safe as a metric path
// segment: the path delimiter and whitespace are replaced.
func sanitizeSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
