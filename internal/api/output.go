package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// OutputFormat defines the output format for CLI commands.
type OutputFormat string

const (
	OutputFormatYAML OutputFormat = "yaml"
	OutputFormatJSON OutputFormat = "json"
)

var outputFormat = OutputFormatYAML

// SetOutputFormat sets the format used by Output. Unknown values fall back
// to YAML.
func SetOutputFormat(format string) {
	if OutputFormat(format) == OutputFormatJSON {
		outputFormat = OutputFormatJSON
		return
	}
	outputFormat = OutputFormatYAML
}

// GetOutputFormat returns the current output format.
func GetOutputFormat() OutputFormat {
	return outputFormat
}

// Output writes data to stdout in the configured format.
func Output(data any) error {
	return OutputTo(os.Stdout, outputFormat, data)
}

// OutputTo writes data to w in the given format. Raw JSON payloads are
// decoded first so YAML output shows their structure rather than bytes.
func OutputTo(w io.Writer, format OutputFormat, data any) error {
	if raw, ok := data.(json.RawMessage); ok {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("failed to decode payload: %w", err)
		}
		data = v
	}

	switch format {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
