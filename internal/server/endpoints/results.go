package endpoints

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/roadmap/internal/api"
	"github.com/jackzampolin/roadmap/internal/results"
	"github.com/jackzampolin/roadmap/internal/svcctx"
)

// GetResultEndpoint handles GET /api/results/{id}.
type GetResultEndpoint struct{}

func (e *GetResultEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/results/{id}", e.handler
}

func (e *GetResultEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a stored report
//	@Description	Returns the report of a completed job until its retention window passes.
//	@Tags			results
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	report.Report
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/results/{id} [get]
func (e *GetResultEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.ResultsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusNotFound, "result storage is disabled")
		return
	}
	payload, err := store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, results.ErrNotFound) {
			writeError(w, http.StatusNotFound, "result not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (e *GetResultEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get the stored report of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp map[string]any
			if err := client.Get(cmd.Context(), "/api/results/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
