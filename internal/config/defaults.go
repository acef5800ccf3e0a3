package config

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:    "openrouter",
				Model:   "anthropic/claude-sonnet-4",
				APIKey:  "${OPENROUTER_API_KEY}",
				RPM:     60,
				Enabled: true,
			},
			"openai": {
				Type:    "openai",
				Model:   "gpt-4o-mini",
				APIKey:  "${OPENAI_API_KEY}",
				RPM:     60,
				Enabled: false,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider: "openrouter",
			Temperature: 0.2,
		},
		Generation: GenerationCfg{
			ChunkThreshold:         50_000,
			ChunkSize:              40_000,
			MaxResearchBytes:       5 << 20,
			MaxAttempts:            3,
			RetryBaseDelayMs:       2000,
			RetryMaxDelaySeconds:   30,
			JobTimeoutSeconds:      300,
			LargeJobTimeoutSeconds: 900,
		},
		Cache: CacheCfg{
			TTLMinutes:           60,
			MaxEntries:           100,
			SweepIntervalSeconds: 300,
		},
		Retention: RetentionCfg{
			JobsMinutes:          60,
			LedgerMinutes:        24 * 60,
			ResultsHours:         24,
			SweepIntervalSeconds: 300,
		},
		Storage: StorageCfg{
			Results:    "memory",
			SQLitePath: "results.db",
			Ledger:     "memory",
			RedisURL:   "${REDIS_URL}",
		},
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
