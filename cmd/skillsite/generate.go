package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillsite/pkg/enrich"
	"github.com/jingkaihe/skillsite/pkg/pipeline"
	"github.com/jingkaihe/skillsite/pkg/presenter"
)

// GenerateConfig holds the generate command configuration
type GenerateConfig struct {
	SourceDir   string
	OutputDir   string
	Force       bool
	DryRun      bool
	Concurrency int
	Model       string
	MaxTokens   int64
	Timeout     time.Duration
}

func getGenerateConfigFromViper() *GenerateConfig {
	return &GenerateConfig{
		SourceDir:   viper.GetString("source_dir"),
		OutputDir:   viper.GetString("output_dir"),
		Force:       viper.GetBool("force"),
		DryRun:      viper.GetBool("dry_run"),
		Concurrency: viper.GetInt("concurrency"),
		Model:       viper.GetString("model"),
		MaxTokens:   viper.GetInt64("max_tokens"),
		Timeout:     viper.GetDuration("enrich_timeout"),
	}
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate site data artifacts from the plugin source tree",
	Long: `Generate walks the source tree, digests every plugin, skill, and
diagram, and rewrites the JSON artifacts whose source content changed.
Descriptive fields missing from the curated descriptors are synthesized
through the Anthropic API; curated fields always win over generated
ones.

Exit status is non-zero when any unit failed or a fatal precondition
(missing source root, missing ANTHROPIC_API_KEY when enrichment is
needed) was unmet.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		config := getGenerateConfigFromViper()

		summary, err := pipeline.Run(ctx, pipeline.Options{
			SourceRoot:  config.SourceDir,
			OutputRoot:  config.OutputDir,
			Force:       config.Force,
			DryRun:      config.DryRun,
			Concurrency: config.Concurrency,
			NewEnricher: func() (pipeline.Enricher, error) {
				return newEnricher(config)
			},
		})
		if err != nil {
			return err
		}

		reportSummary(summary, config.DryRun)

		if summary.Failed > 0 {
			return errors.Errorf("%d unit(s) failed", summary.Failed)
		}
		return nil
	},
}

func newEnricher(config *GenerateConfig) (pipeline.Enricher, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is not set")
	}

	return enrich.NewAdapter(enrich.Config{
		APIKey:    apiKey,
		Model:     config.Model,
		MaxTokens: config.MaxTokens,
		Timeout:   config.Timeout,
	})
}

func reportSummary(summary *pipeline.Summary, dryRun bool) {
	for _, result := range summary.Results {
		switch result.State {
		case pipeline.StateWritten:
			presenter.Success(fmt.Sprintf("generated %s", result.UnitID))
		case pipeline.StateStale:
			presenter.Info(fmt.Sprintf("stale     %s (%s)", result.UnitID, result.Reason))
		case pipeline.StateFresh:
			presenter.Info(fmt.Sprintf("unchanged %s", result.UnitID))
		case pipeline.StateFailed:
			presenter.Error(result.Err, result.UnitID)
		}
	}

	presenter.Separator()
	if dryRun {
		presenter.Info("dry run: no artifacts were written")
	}
	presenter.Summary(presenter.RunStats{
		Generated: summary.Generated,
		Unchanged: summary.Unchanged,
		Failed:    summary.Failed,
	})
}

func init() {
	generateCmd.Flags().String("source", "plugins", "Source tree root directory")
	generateCmd.Flags().String("output", "site/data", "Artifact output root directory")
	generateCmd.Flags().Bool("force", false, "Regenerate every unit, ignoring recorded digests")
	generateCmd.Flags().Bool("dry-run", false, "Report the plan without enriching or writing")
	generateCmd.Flags().Int("concurrency", 1, "Bounded worker pool size (1 = sequential)")
	generateCmd.Flags().String("model", "", "Anthropic model for enrichment (overrides default)")
	generateCmd.Flags().Int64("enrich-max-tokens", 0, "Max tokens per enrichment reply (0 = default)")
	generateCmd.Flags().Duration("enrich-timeout", enrich.DefaultTimeout, "Timeout per enrichment request")

	viper.BindPFlag("source_dir", generateCmd.Flags().Lookup("source"))
	viper.BindPFlag("output_dir", generateCmd.Flags().Lookup("output"))
	viper.BindPFlag("force", generateCmd.Flags().Lookup("force"))
	viper.BindPFlag("dry_run", generateCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("concurrency", generateCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("model", generateCmd.Flags().Lookup("model"))
	viper.BindPFlag("max_tokens", generateCmd.Flags().Lookup("enrich-max-tokens"))
	viper.BindPFlag("enrich_timeout", generateCmd.Flags().Lookup("enrich-timeout"))
}
