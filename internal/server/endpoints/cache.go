package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/roadmap/internal/api"
	"github.com/jackzampolin/roadmap/internal/cache"
	"github.com/jackzampolin/roadmap/internal/svcctx"
)

// ClearCacheResponse reports how many entries were dropped.
type ClearCacheResponse struct {
	Cleared int `json:"cleared"`
}

// CacheStatsEndpoint handles GET /api/cache/stats.
type CacheStatsEndpoint struct{}

func (e *CacheStatsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/cache/stats", e.handler
}

func (e *CacheStatsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Cache statistics
//	@Tags			cache
//	@Produce		json
//	@Success		200	{object}	cache.Stats
//	@Router			/api/cache/stats [get]
func (e *CacheStatsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, svcctx.CacheFrom(r.Context()).Stats())
}

func (e *CacheStatsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache hit rate and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp cache.Stats
			if err := client.Get(cmd.Context(), "/api/cache/stats", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ClearCacheEndpoint handles DELETE /api/cache.
type ClearCacheEndpoint struct{}

func (e *ClearCacheEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/cache", e.handler
}

func (e *ClearCacheEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Clear the cache
//	@Tags			cache
//	@Produce		json
//	@Success		200	{object}	ClearCacheResponse
//	@Router			/api/cache [delete]
func (e *ClearCacheEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	n := svcctx.CacheFrom(r.Context()).Clear()
	svcctx.LoggerFrom(r.Context()).Info("cache cleared", "entries", n)
	writeJSON(w, http.StatusOK, ClearCacheResponse{Cleared: n})
}

func (e *ClearCacheEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached report",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ClearCacheResponse
			if err := client.Delete(cmd.Context(), "/api/cache", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
