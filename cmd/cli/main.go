package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/de-tools/awsbill/pkg/export/graphite"
	"github.com/de-tools/awsbill/pkg/services/classify"
	"github.com/de-tools/awsbill/pkg/services/config"
	"github.com/de-tools/awsbill/pkg/services/pipeline"
	"github.com/de-tools/awsbill/pkg/store/report"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type convertFlags struct {
	cfgPath      string
	registryPath string
	profile      string
	reportPath   string
	graphiteHost string
	metricPrefix string
	trackedTags  string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "awsbill",
		Short: "Convert AWS hourly billing reports into time-series metrics",
	}
	rootCmd.AddCommand(newConvertCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newConvertCmd() *cobra.Command {
	var flags convertFlags
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Fetch the latest billing report and emit its metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConvert(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.cfgPath, "config", "c", "", "Path to a config file (env vars used otherwise)")
	cmd.Flags().StringVar(&flags.registryPath, "registry", "", "Path to an awsbill.cfg profile registry")
	cmd.Flags().StringVar(&flags.profile, "profile", "", "Profile name within the registry")
	cmd.Flags().StringVar(&flags.reportPath, "report", "", "Billing report location (file://... or s3://bucket/prefix)")
	cmd.Flags().StringVar(&flags.graphiteHost, "graphite", "", "Graphite host[:port], or 'stdout'")
	cmd.Flags().StringVar(&flags.metricPrefix, "prefix", "", "Metric name prefix")
	cmd.Flags().StringVar(&flags.trackedTags, "tags", "", "Comma-separated resource tag names to track")
	cmd.MarkFlagsRequiredTogether("registry", "profile")

	return cmd
}

func runConvert(cmd *cobra.Command, flags convertFlags) error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	cfg, err := resolveConfig(ctx, flags)
	if err != nil {
		return err
	}
	if cfg.ReportPath == "" {
		return errors.New("no report location: set --report, AWSBILL_REPORT_PATH or a profile's report_path")
	}

	fetcher, err := report.NewFetcher(ctx, cfg.ReportPath, cfg.AWSRegion)
	if err != nil {
		return fmt.Errorf("fetch stage: %w", err)
	}
	body, err := fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch stage: %w", err)
	}
	defer body.Close()

	converter := pipeline.NewConverter(classify.Settings{TrackedTags: cfg.Tags()})
	points, _, err := converter.Convert(ctx, body)
	if err != nil {
		return fmt.Errorf("convert stage: %w", err)
	}

	var emitter graphite.Emitter
	if cfg.GraphiteHost == "" || cfg.GraphiteHost == "stdout" {
		emitter = graphite.NewWriterEmitter(os.Stdout, cfg.MetricPrefix)
	} else {
		emitter = graphite.NewTCPEmitter(cfg.GraphiteHost, cfg.MetricPrefix)
	}
	if err := emitter.Emit(ctx, points); err != nil {
		return fmt.Errorf("emit stage: %w", err)
	}

	logger.Info().Int("points", len(points)).Msg("mission complete")
	return nil
}

// resolveConfig layers the configuration sources: profile registry when
// requested, then config file plus env, then explicit flags on top.
func resolveConfig(ctx context.Context, flags convertFlags) (*config.Config, error) {
	var cfg *config.Config

	if flags.registryPath != "" {
		registry, err := config.NewRegistry(flags.registryPath)
		if err != nil {
			return nil, err
		}
		cfg, err = registry.GetProfile(ctx, flags.profile)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		cfg, err = config.Load(flags.cfgPath)
		if err != nil {
			return nil, err
		}
	}

	if flags.reportPath != "" {
		cfg.ReportPath = flags.reportPath
	}
	if flags.graphiteHost != "" {
		cfg.GraphiteHost = flags.graphiteHost
	}
	if flags.metricPrefix != "" {
		cfg.MetricPrefix = flags.metricPrefix
	}
	if flags.trackedTags != "" {
		cfg.TrackedTags = flags.trackedTags
	}
	return cfg, nil
}
