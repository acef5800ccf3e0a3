package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/roadmap/internal/svcctx"
)

// MetricsEndpoint handles GET /metrics.
type MetricsEndpoint struct{}

func (e *MetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/metrics", e.handler
}

func (e *MetricsEndpoint) RequiresInit() bool { return true }

func (e *MetricsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	m := svcctx.ServicesFrom(r.Context()).Metrics
	if m == nil {
		writeError(w, http.StatusNotFound, "metrics are disabled")
		return
	}
	m.Handler().ServeHTTP(w, r)
}

// Command is nil: the exposition format is meant for scrapers.
func (e *MetricsEndpoint) Command(func() string) *cobra.Command { return nil }
