package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/roadmap/internal/api"
	"github.com/jackzampolin/roadmap/internal/jobs"
	"github.com/jackzampolin/roadmap/internal/pipeline"
	"github.com/jackzampolin/roadmap/internal/svcctx"
)

// requestOverhead is the body allowance on top of the research limit for
// the prompt, document names and JSON escaping.
const requestOverhead = 1 << 20

// SubmitJobResponse is returned when a job is accepted.
type SubmitJobResponse struct {
	ID string `json:"id"`
}

// ListJobsResponse is the response for listing jobs.
type ListJobsResponse struct {
	Jobs []jobs.Job `json:"jobs"`
}

// SubmitJobEndpoint handles POST /api/jobs.
type SubmitJobEndpoint struct{}

func (e *SubmitJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/jobs", e.handler
}

func (e *SubmitJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Submit research
//	@Description	Start generating a report from research documents. Input errors are rejected before a job is created.
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			request	body		pipeline.Request	true	"Prompt, documents and options"
//	@Success		202		{object}	SubmitJobResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		413		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/jobs [post]
func (e *SubmitJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	orch := svcctx.OrchestratorFrom(r.Context())

	limit := int64(orch.Config().MaxResearchBytes) + requestOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	id, err := orch.Submit(r.Context(), req)
	if err != nil {
		writeJobError(w, err)
		return
	}
	svcctx.LoggerFrom(r.Context()).Info("job submitted", "job_id", id, "documents", len(req.Documents))
	writeJSON(w, http.StatusAccepted, SubmitJobResponse{ID: id})
}

func (e *SubmitJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		prompt      string
		model       string
		temperature float64
		slides      bool
		wait        bool
	)
	cmd := &cobra.Command{
		Use:   "submit <file>...",
		Short: "Submit research documents for generation",
		Long: `Submit one or more research documents. Each file becomes a document
named after its base name.

With --wait the command polls until the job finishes and prints the report.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req := pipeline.Request{Prompt: prompt, Options: pipeline.Options{Model: model}}
			for _, path := range args {
				text, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				req.Documents = append(req.Documents, pipeline.Document{Name: filepath.Base(path), Text: string(text)})
			}
			if cmd.Flags().Changed("temperature") {
				req.Options.Temperature = &temperature
			}
			if cmd.Flags().Changed("slides") {
				req.Options.Slides = &slides
			}

			client := api.NewClient(getServerURL())
			var resp SubmitJobResponse
			if err := client.Post(ctx, "/api/jobs", req, &resp); err != nil {
				return err
			}
			if !wait {
				return api.Output(resp)
			}

			job, err := pollJob(cmd, client, resp.ID)
			if err != nil {
				return err
			}
			if job.Status == jobs.StatusError {
				return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
			}
			return api.Output(job.Result)
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "What the report should cover (required)")
	cmd.Flags().StringVar(&model, "model", "", "Model override")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature (0-2)")
	cmd.Flags().BoolVar(&slides, "slides", true, "Generate a slide deck")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the job to finish")
	cmd.MarkFlagRequired("prompt")
	return cmd
}

// pollJob polls until the job reaches a terminal state, reporting progress
// on stderr.
func pollJob(cmd *cobra.Command, client *api.Client, id string) (jobs.Job, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := ""
	for {
		var job jobs.Job
		if err := client.Get(cmd.Context(), "/api/jobs/"+id, &job); err != nil {
			return job, err
		}
		if job.Status.Terminal() {
			return job, nil
		}
		if job.Progress != last {
			last = job.Progress
			if job.Percent != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%3d%%] %s\n", *job.Percent, job.Progress)
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), job.Progress)
			}
		}
		select {
		case <-cmd.Context().Done():
			return job, cmd.Context().Err()
		case <-ticker.C:
		}
	}
}

// GetJobEndpoint handles GET /api/jobs/{id}.
type GetJobEndpoint struct{}

func (e *GetJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{id}", e.handler
}

func (e *GetJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get job by ID
//	@Description	Poll a job. Running jobs report progress, finished jobs carry the report or an error message.
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	jobs.Job
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/jobs/{id} [get]
func (e *GetJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	job, err := svcctx.JobsFrom(r.Context()).Get(r.PathValue("id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (e *GetJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a job by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var job jobs.Job
			if err := client.Get(cmd.Context(), "/api/jobs/"+url.PathEscape(args[0]), &job); err != nil {
				return err
			}
			return api.Output(job)
		},
	}
}

// ListJobsEndpoint handles GET /api/jobs.
type ListJobsEndpoint struct{}

func (e *ListJobsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs", e.handler
}

func (e *ListJobsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List jobs
//	@Description	List live jobs, newest first. Results are omitted.
//	@Tags			jobs
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"
//	@Success		200		{object}	ListJobsResponse
//	@Router			/api/jobs [get]
func (e *ListJobsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	status := jobs.Status(r.URL.Query().Get("status"))
	resp := ListJobsResponse{Jobs: []jobs.Job{}}
	for _, job := range svcctx.JobsFrom(r.Context()).List() {
		if status != "" && job.Status != status {
			continue
		}
		job.Result = nil
		resp.Jobs = append(resp.Jobs, job)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListJobsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/jobs"
			if status != "" {
				path += "?" + url.Values{"status": {status}}.Encode()
			}
			client := api.NewClient(getServerURL())
			var resp ListJobsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (queued, processing, complete, error)")
	return cmd
}

// ResumeJobEndpoint handles POST /api/jobs/{id}/resume.
type ResumeJobEndpoint struct{}

func (e *ResumeJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/jobs/{id}/resume", e.handler
}

func (e *ResumeJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Resume a failed job
//	@Description	Start a new job for the failed job's request, reusing phases it already produced.
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Failed job ID"
//	@Success		202	{object}	SubmitJobResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/api/jobs/{id}/resume [post]
func (e *ResumeJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id, err := svcctx.OrchestratorFrom(r.Context()).Resume(r.Context(), r.PathValue("id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitJobResponse{ID: id})
}

func (e *ResumeJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SubmitJobResponse
			if err := client.Post(cmd.Context(), "/api/jobs/"+url.PathEscape(args[0])+"/resume", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// writeJobError maps orchestration errors to HTTP statuses.
func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrResearchTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, pipeline.ErrNotResumable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
