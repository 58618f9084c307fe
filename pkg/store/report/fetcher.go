// Package report retrieves the hourly billing CSV the engine consumes,
// either from a local path or by resolving the latest report through
// the manifests AWS writes next to its billing exports in S3.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Fetcher produces the concatenated billing CSV for one report
// location. The returned reader owns any temp files backing it.
type Fetcher interface {
	Fetch(ctx context.Context) (io.ReadCloser, error)
}

// NewFetcher picks a fetcher from the report path scheme.
func NewFetcher(ctx context.Context, reportPath, awsRegion string) (Fetcher, error) {
	switch {
	case strings.HasPrefix(reportPath, "file://"):
		return &fileFetcher{path: strings.TrimPrefix(reportPath, "file://")}, nil
	case strings.HasPrefix(reportPath, "s3://"):
		return newS3Fetcher(ctx, reportPath, awsRegion)
	}
	return nil, fmt.Errorf("report path %q must start with file:// or s3://", reportPath)
}

type fileFetcher struct {
	path string
}

func (f *fileFetcher) Fetch(_ context.Context) (io.ReadCloser, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open billing report: %w", err)
	}
	return file, nil
}
