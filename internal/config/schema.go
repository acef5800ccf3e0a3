package config

import "time"

// Config holds roadmap configuration.
// Stored at: {home}/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Generation   GenerationCfg             `mapstructure:"generation" yaml:"generation"`
	Cache        CacheCfg                  `mapstructure:"cache" yaml:"cache"`
	Retention    RetentionCfg              `mapstructure:"retention" yaml:"retention"`
	Storage      StorageCfg                `mapstructure:"storage" yaml:"storage"`
}

// LLMProviderCfg configures a generation service provider.
type LLMProviderCfg struct {
	Type    string `mapstructure:"type" yaml:"type"`         // "openrouter", "openai"
	Model   string `mapstructure:"model" yaml:"model"`       // Default model name
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`   // API key (supports ${ENV_VAR} syntax)
	BaseURL string `mapstructure:"base_url" yaml:"base_url"` // Optional endpoint override
	RPM     int    `mapstructure:"rpm" yaml:"rpm"`           // Requests per minute
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default provider selections.
type DefaultsCfg struct {
	LLMProvider string  `mapstructure:"llm_provider" yaml:"llm_provider"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
}

// GenerationCfg bounds a single job.
type GenerationCfg struct {
	ChunkThreshold         int `mapstructure:"chunk_threshold" yaml:"chunk_threshold"`       // Research bytes above which input is chunked
	ChunkSize              int `mapstructure:"chunk_size" yaml:"chunk_size"`                 // Byte budget per chunk
	MaxResearchBytes       int `mapstructure:"max_research_bytes" yaml:"max_research_bytes"` // Submissions above this are rejected
	MaxAttempts            int `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryBaseDelayMs       int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelaySeconds   int `mapstructure:"retry_max_delay_seconds" yaml:"retry_max_delay_seconds"`
	JobTimeoutSeconds      int `mapstructure:"job_timeout_seconds" yaml:"job_timeout_seconds"`
	LargeJobTimeoutSeconds int `mapstructure:"large_job_timeout_seconds" yaml:"large_job_timeout_seconds"`
}

// CacheCfg configures the report cache.
type CacheCfg struct {
	TTLMinutes           int `mapstructure:"ttl_minutes" yaml:"ttl_minutes"`
	MaxEntries           int `mapstructure:"max_entries" yaml:"max_entries"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" yaml:"sweep_interval_seconds"`
}

// RetentionCfg controls how long finished work is kept.
type RetentionCfg struct {
	JobsMinutes          int `mapstructure:"jobs_minutes" yaml:"jobs_minutes"`
	LedgerMinutes        int `mapstructure:"ledger_minutes" yaml:"ledger_minutes"`
	ResultsHours         int `mapstructure:"results_hours" yaml:"results_hours"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" yaml:"sweep_interval_seconds"`
}

// StorageCfg selects the ledger and result store backends.
type StorageCfg struct {
	Results    string `mapstructure:"results" yaml:"results"`         // "memory" or "sqlite"
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"` // Relative paths resolve under the home dir
	Ledger     string `mapstructure:"ledger" yaml:"ledger"`           // "memory" or "redis"
	RedisURL   string `mapstructure:"redis_url" yaml:"redis_url"`     // Supports ${ENV_VAR} syntax
}

func (g GenerationCfg) RetryBaseDelay() time.Duration {
	return time.Duration(g.RetryBaseDelayMs) * time.Millisecond
}

func (g GenerationCfg) RetryMaxDelay() time.Duration {
	return time.Duration(g.RetryMaxDelaySeconds) * time.Second
}

func (g GenerationCfg) JobTimeout() time.Duration {
	return time.Duration(g.JobTimeoutSeconds) * time.Second
}

func (g GenerationCfg) LargeJobTimeout() time.Duration {
	return time.Duration(g.LargeJobTimeoutSeconds) * time.Second
}

func (c CacheCfg) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

func (c CacheCfg) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (r RetentionCfg) Jobs() time.Duration {
	return time.Duration(r.JobsMinutes) * time.Minute
}

func (r RetentionCfg) Ledger() time.Duration {
	return time.Duration(r.LedgerMinutes) * time.Minute
}

func (r RetentionCfg) Results() time.Duration {
	return time.Duration(r.ResultsHours) * time.Hour
}

func (r RetentionCfg) SweepInterval() time.Duration {
	return time.Duration(r.SweepIntervalSeconds) * time.Second
}
