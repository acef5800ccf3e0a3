package endpoints

import "github.com/jackzampolin/roadmap/internal/api"

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		&HealthEndpoint{},
		&StatusEndpoint{},
		&MetricsEndpoint{},

		&SubmitJobEndpoint{},
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
		&ResumeJobEndpoint{},

		&GetResultEndpoint{},

		&CacheStatsEndpoint{},
		&ClearCacheEndpoint{},

		&ListLLMCallsEndpoint{},
		&ListPromptsEndpoint{},
	}
}
