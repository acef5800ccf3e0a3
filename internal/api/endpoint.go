// Package api ties HTTP routes to the CLI commands that call them.
package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint defines both an HTTP route and its corresponding CLI command.
type Endpoint interface {
	// Route returns the HTTP method, path, and handler for this endpoint.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit returns true if the handler needs the generation
	// services (orchestrator, stores) to be wired.
	RequiresInit() bool

	// Command returns a Cobra command that calls this endpoint via HTTP.
	// getServerURL is evaluated when the command runs.
	Command(getServerURL func() string) *cobra.Command
}
