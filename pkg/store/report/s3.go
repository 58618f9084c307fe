package report

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// The billing export lands under
// <bucket>/<prefix>/<YYYYMMDD-YYYYMMDD>/<report>-Manifest.json with the
// gzipped CSV parts listed in the manifest's reportKeys. The primary
// manifest for a cycle is the one directly under the cycle directory,
// which is also the shortest key for that cycle.
var cyclePattern = regexp.MustCompile(`/(\d{8}-\d{8})/`)

type s3Fetcher struct {
	client *s3.Client
	bucket string
	prefix string
}

func newS3Fetcher(ctx context.Context, reportPath, awsRegion string) (*s3Fetcher, error) {
	rest := strings.TrimPrefix(reportPath, "s3://")
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return nil, fmt.Errorf("report path %q has no bucket", reportPath)
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithDefaultRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return &s3Fetcher{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Fetch resolves the most recent billing cycles, downloads every CSV
// part their primary manifests name, and concatenates them into one
// local temp file with a single header row.
func (f *s3Fetcher) Fetch(ctx context.Context) (io.ReadCloser, error) {
	logger := zerolog.Ctx(ctx)

	keys, err := f.listKeys(ctx)
	if err != nil {
		return nil, err
	}
	primaries, err := primaryManifests(keys)
	if err != nil {
		return nil, err
	}
	logger.Info().Strs("manifests", primaries).Msg("using primary manifests")

	var parts []string
	for _, key := range primaries {
		reportKeys, err := f.readManifest(ctx, key)
		if err != nil {
			return nil, err
		}
		parts = append(parts, reportKeys...)
	}

	out, err := os.CreateTemp("", "awsbill-*.csv")
	if err != nil {
		return nil, fmt.Errorf("create temp report file: %w", err)
	}
	if err := f.concatParts(ctx, out, parts); err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, err
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, fmt.Errorf("rewind temp report file: %w", err)
	}
	return &tempFile{File: out}, nil
}

func (f *s3Fetcher) listKeys(ctx context.Context) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket: &f.bucket,
		Prefix: &f.prefix,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list report bucket %s: %w", f.bucket, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

func (f *s3Fetcher) readManifest(ctx context.Context, key string) ([]string, error) {
	obj, err := f.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &f.bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("fetch manifest %s: %w", key, err)
	}
	defer obj.Body.Close()

	var manifest struct {
		ReportKeys []string `json:"reportKeys"`
	}
	if err := json.NewDecoder(obj.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", key, err)
	}
	return manifest.ReportKeys, nil
}

func (f *s3Fetcher) concatParts(ctx context.Context, out *os.File, parts []string) error {
	logger := zerolog.Ctx(ctx)
	w := bufio.NewWriter(out)
	headerWritten := false

	for _, part := range parts {
		logger.Info().Str("key", part).Msg("downloading report part")
		obj, err := f.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &f.bucket, Key: &part})
		if err != nil {
			return fmt.Errorf("fetch report part %s: %w", part, err)
		}

		gz, err := gzip.NewReader(obj.Body)
		if err != nil {
			obj.Body.Close()
			return fmt.Errorf("decompress report part %s: %w", part, err)
		}

		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "identity/LineItemId,") {
				if headerWritten {
					continue
				}
				headerWritten = true
			}
			if _, err := w.WriteString(line + "\n"); err != nil {
				gz.Close()
				obj.Body.Close()
				return fmt.Errorf("write report part %s: %w", part, err)
			}
		}
		err = scanner.Err()
		gz.Close()
		obj.Body.Close()
		if err != nil {
			return fmt.Errorf("read report part %s: %w", part, err)
		}
	}
	return w.Flush()
}

// primaryManifests returns the primary manifest keys for the two most
// recent billing cycles, oldest first; a single key when only one
// cycle exists.
func primaryManifests(keys []string) ([]string, error) {
	byCycle := make(map[string][]string)
	for _, key := range keys {
		if !strings.HasSuffix(key, "Manifest.json") {
			continue
		}
		m := cyclePattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		byCycle[m[1]] = append(byCycle[m[1]], key)
	}
	if len(byCycle) == 0 {
		return nil, fmt.Errorf("no billing manifests found")
	}

	cycles := make([]string, 0, len(byCycle))
	for c := range byCycle {
		cycles = append(cycles, c)
	}
	sort.Strings(cycles)
	if len(cycles) > 2 {
		cycles = cycles[len(cycles)-2:]
	}

	var primaries []string
	for _, c := range cycles {
		manifests := byCycle[c]
		sort.Slice(manifests, func(i, j int) bool { return len(manifests[i]) < len(manifests[j]) })
		primaries = append(primaries, manifests[0])
	}
	return primaries, nil
}

// tempFile removes itself on close.
type tempFile struct {
	*os.File
}

func (t *tempFile) Close() error {
	err := t.File.Close()
	if rmErr := os.Remove(t.Name()); err == nil {
		err = rmErr
	}
	return err
}
