package conversion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/de-tools/awsbill/pkg/services/config"
	"github.com/de-tools/awsbill/pkg/services/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testReport = `identity/TimeInterval,lineItem/LineItemType,lineItem/ProductCode,lineItem/UsageType,lineItem/AvailabilityZone,lineItem/BlendedCost,resourceTags/user:team
2024-01-01T00:00:00Z/2024-01-01T01:00:00Z,Usage,AmazonEC2,BoxUsage:t2.micro,us-east-1a,0.02,data
2024-01-01T00:00:00Z/2024-01-01T01:00:00Z,Usage,AmazonEC2,BoxUsage:t2.micro,us-east-1b,0.03,data
`

func setupService(t *testing.T, reportBody string) *Service {
	t.Helper()
	dir := t.TempDir()

	reportPath := filepath.Join(dir, "billing.csv")
	require.NoError(t, os.WriteFile(reportPath, []byte(reportBody), 0o600))

	registryPath := filepath.Join(dir, "awsbill.cfg")
	require.NoError(t, os.WriteFile(registryPath, []byte(
		"[prod]\nreport_path = file://"+reportPath+"\nmetric_prefix = billing.prod\ntracked_tags = team\n",
	), 0o600))

	registry, err := config.NewRegistry(registryPath)
	require.NoError(t, err)
	return NewService(registry)
}

func TestService_Convert(t *testing.T) {
	svc := setupService(t, testReport)

	result, err := svc.Convert(context.Background(), "prod")
	require.NoError(t, err)

	assert.Equal(t, "prod", result.Profile)
	assert.Equal(t, 2, result.Stats.Rows)

	byPath := make(map[string]float64)
	for _, p := range result.Points {
		byPath[p.Path] = p.Value
		assert.Equal(t, int64(1704067200), p.Timestamp)
	}
	assert.InDelta(t, 0.05, byPath["billing.prod.us-east-1.ec2-instance.t2-micro"], 1e-9)
	assert.InDelta(t, 0.05, byPath["billing.prod.total"], 1e-9)
	assert.InDelta(t, 0.05, byPath["billing.prod.team.data.total"], 1e-9)
	assert.InDelta(t, 0.05, byPath["billing.prod.total-cost.us-east-1"], 1e-9)
}

func TestService_Convert_UnknownProfile(t *testing.T) {
	svc := setupService(t, testReport)
	_, err := svc.Convert(context.Background(), "missing")
	assert.ErrorIs(t, err, config.ErrProfileNotFound)
}

func TestService_Convert_EmptyReport(t *testing.T) {
	svc := setupService(t, "identity/TimeInterval,lineItem/ProductCode,lineItem/UsageType,lineItem/BlendedCost\n")
	_, err := svc.Convert(context.Background(), "prod")
	assert.ErrorIs(t, err, pipeline.ErrEmptyReport)
}

func TestService_Profiles(t *testing.T) {
	svc := setupService(t, testReport)
	profiles, err := svc.Profiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"prod"}, profiles)
}
