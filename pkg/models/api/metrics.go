package api

type Profile struct {
	Name string `json:"name"`
}

type MetricPoint struct {
	Path      string  `json:"path"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

type ConversionStats struct {
	Rows         int `json:"rows"`
	Malformed    int `json:"malformed"`
	NonUsage     int `json:"non_usage"`
	Unclassified int `json:"unclassified"`
}

type ConversionResult struct {
	Profile string          `json:"profile"`
	Points  []MetricPoint   `json:"points"`
	Stats   ConversionStats `json:"stats"`
}
