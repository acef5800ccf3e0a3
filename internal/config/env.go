package config

import (
	"strings"

	"github.com/spf13/viper"
)

// envKeyReplacer maps nested keys to env names: storage.ledger -> STORAGE_LEDGER.
var envKeyReplacer = strings.NewReplacer(".", "_")

// setDefaults registers every leaf key so a config file that sets one field
// of a section keeps the defaults for the rest, and so each leaf can be
// overridden from the environment.
func setDefaults(v *viper.Viper, d *Config) {
	providers := make(map[string]any, len(d.LLMProviders))
	for name, p := range d.LLMProviders {
		providers[name] = map[string]any{
			"type":     p.Type,
			"model":    p.Model,
			"api_key":  p.APIKey,
			"base_url": p.BaseURL,
			"rpm":      p.RPM,
			"enabled":  p.Enabled,
		}
	}
	v.SetDefault("llm_providers", providers)

	v.SetDefault("defaults.llm_provider", d.Defaults.LLMProvider)
	v.SetDefault("defaults.temperature", d.Defaults.Temperature)

	g := d.Generation
	v.SetDefault("generation.chunk_threshold", g.ChunkThreshold)
	v.SetDefault("generation.chunk_size", g.ChunkSize)
	v.SetDefault("generation.max_research_bytes", g.MaxResearchBytes)
	v.SetDefault("generation.max_attempts", g.MaxAttempts)
	v.SetDefault("generation.retry_base_delay_ms", g.RetryBaseDelayMs)
	v.SetDefault("generation.retry_max_delay_seconds", g.RetryMaxDelaySeconds)
	v.SetDefault("generation.job_timeout_seconds", g.JobTimeoutSeconds)
	v.SetDefault("generation.large_job_timeout_seconds", g.LargeJobTimeoutSeconds)

	v.SetDefault("cache.ttl_minutes", d.Cache.TTLMinutes)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.sweep_interval_seconds", d.Cache.SweepIntervalSeconds)

	v.SetDefault("retention.jobs_minutes", d.Retention.JobsMinutes)
	v.SetDefault("retention.ledger_minutes", d.Retention.LedgerMinutes)
	v.SetDefault("retention.results_hours", d.Retention.ResultsHours)
	v.SetDefault("retention.sweep_interval_seconds", d.Retention.SweepIntervalSeconds)

	v.SetDefault("storage.results", d.Storage.Results)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.ledger", d.Storage.Ledger)
	v.SetDefault("storage.redis_url", d.Storage.RedisURL)
}
