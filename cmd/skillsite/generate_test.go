package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestGetGenerateConfigFromViper(t *testing.T) {
	viper.Set("source_dir", "content/plugins")
	viper.Set("output_dir", "public/data")
	viper.Set("force", true)
	viper.Set("dry_run", true)
	viper.Set("concurrency", 4)
	viper.Set("model", "claude-3-5-haiku-latest")
	viper.Set("max_tokens", 1024)
	viper.Set("enrich_timeout", "30s")
	t.Cleanup(viper.Reset)

	config := getGenerateConfigFromViper()

	assert.Equal(t, "content/plugins", config.SourceDir)
	assert.Equal(t, "public/data", config.OutputDir)
	assert.True(t, config.Force)
	assert.True(t, config.DryRun)
	assert.Equal(t, 4, config.Concurrency)
	assert.Equal(t, "claude-3-5-haiku-latest", config.Model)
	assert.Equal(t, int64(1024), config.MaxTokens)
	assert.Equal(t, 30*time.Second, config.Timeout)
}

func TestNewEnricherRequiresCredential(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := newEnricher(&GenerateConfig{})
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")
}

func TestNewEnricherWithCredential(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	enricher, err := newEnricher(&GenerateConfig{})
	assert.NoError(t, err)
	assert.NotNil(t, enricher)
}
