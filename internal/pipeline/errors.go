package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackzampolin/roadmap/internal/llmcall"
	"github.com/jackzampolin/roadmap/internal/providers"
	"github.com/jackzampolin/roadmap/internal/report"
)

// phaseError attributes a failure to the stage that produced it.
type phaseError struct {
	phase string
	err   error
}

func (e *phaseError) Error() string {
	return fmt.Sprintf("%s phase: %v", e.phase, e.err)
}

func (e *phaseError) Unwrap() error {
	return e.err
}

// Describe turns an orchestration error into the message stored on a failed job.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	prefix := "Generation failed"
	var pe *phaseError
	if errors.As(err, &pe) {
		prefix = strings.ToUpper(pe.phase[:1]) + pe.phase[1:] + " generation failed"
	}

	var apiErr *providers.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return prefix + ": the job ran out of time. Try again, or submit less research."
	case errors.Is(err, context.Canceled):
		return prefix + ": the job was cancelled because the server is shutting down."
	case errors.Is(err, providers.ErrContentFiltered):
		return prefix + ": the generation service declined this content. Remove sensitive material and try again."
	case errors.Is(err, llmcall.ErrMalformedOutput):
		return fmt.Sprintf("%s: the generation service returned output that could not be read (%v). Try again.", prefix, rootCause(err))
	case errors.Is(err, report.ErrNothingToMerge):
		return prefix + ": no chart could be produced from the research."
	case errors.Is(err, llmcall.ErrRetriesExhausted):
		return fmt.Sprintf("%s: the generation service kept failing (%v). Resume the job to retry.", prefix, rootCause(err))
	case errors.As(err, &apiErr):
		return fmt.Sprintf("%s: the generation service rejected the request (%s).", prefix, apiErr.Message)
	default:
		return fmt.Sprintf("%s: %v", prefix, err)
	}
}

// rootCause follows the wrap chain to the innermost error. For errors that
// wrap several, the last one is the cause.
func rootCause(err error) error {
	for {
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			next := u.Unwrap()
			if next == nil {
				return err
			}
			err = next
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) == 0 {
				return err
			}
			err = errs[len(errs)-1]
		default:
			return err
		}
	}
}
