package providers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseFormatFor returns the response_format sent to OpenRouter for model.
// anthropic/* models may be routed to backends that reject native structured
// output, so they get none and rely on the prompt plus local validation.
func responseFormatFor(model string, rf *ResponseFormat) *openRouterResponseFormat {
	if rf == nil || isAnthropicModel(model) {
		return nil
	}
	return &openRouterResponseFormat{Type: rf.Type, JSONSchema: rf.JSONSchema}
}

func isAnthropicModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "anthropic/")
}

// ParseStructuredJSON reads a JSON document out of model output. The output
// may be bare JSON, wrapped in a markdown code fence, or surrounded by prose.
// The returned document is compacted.
func ParseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("empty structured output")
	}

	var firstErr error
	for _, candidate := range jsonCandidates(content) {
		var buf bytes.Buffer
		err := json.Compact(&buf, []byte(candidate))
		if err == nil {
			return json.RawMessage(buf.Bytes()), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("failed to parse structured JSON: %w", firstErr)
}

// jsonCandidates lists the distinct substrings of content that may hold the
// document, most literal first.
func jsonCandidates(content string) []string {
	out := []string{content}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		for _, c := range out {
			if c == s {
				return
			}
		}
		out = append(out, s)
	}
	add(stripCodeFence(content))
	add(outermostJSON(content))
	return out
}

func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return ""
	}
	_, body, ok := strings.Cut(content, "\n")
	if !ok {
		return ""
	}
	body = strings.TrimSpace(body)
	return strings.TrimSpace(strings.TrimSuffix(body, "```"))
}

// outermostJSON returns the span from the first '{' or '[' to the last
// matching closer.
func outermostJSON(content string) string {
	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return ""
	}
	closer := "}"
	if content[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(content, closer)
	if end < start {
		return ""
	}
	return content[start : end+1]
}

// compiled caches compiled schemas by their source text. Every stage sends
// the same few schemas on every call.
var compiled sync.Map

// ValidateStructuredJSON validates parsed against a schema. The schema may be
// bare or wrapped as {"name","strict","schema"}. An empty schema or document
// is not validated.
func ValidateStructuredJSON(schemaRaw, parsed json.RawMessage) error {
	if len(schemaRaw) == 0 || len(parsed) == 0 {
		return nil
	}

	schema, err := compileSchema(schemaRaw)
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return fmt.Errorf("failed to decode structured JSON for validation: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}
	return nil
}

func compileSchema(schemaRaw json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaRaw)
	if s, ok := compiled.Load(key); ok {
		return s.(*jsonschema.Schema), nil
	}

	core, err := unwrapSchema(schemaRaw)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(core)); err != nil {
		return nil, fmt.Errorf("failed to load structured schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile structured schema: %w", err)
	}

	compiled.Store(key, schema)
	return schema, nil
}

// unwrapSchema strips the {"name","strict","schema"} envelope, or the
// {"type":"json_schema","json_schema":{"schema":...}} one, when present.
func unwrapSchema(schemaRaw json.RawMessage) (json.RawMessage, error) {
	var envelope struct {
		Schema     json.RawMessage `json:"schema"`
		JSONSchema *struct {
			Schema json.RawMessage `json:"schema"`
		} `json:"json_schema"`
	}
	if err := json.Unmarshal(schemaRaw, &envelope); err != nil {
		return nil, fmt.Errorf("invalid structured schema JSON: %w", err)
	}
	switch {
	case len(envelope.Schema) > 0:
		return envelope.Schema, nil
	case envelope.JSONSchema != nil && len(envelope.JSONSchema.Schema) > 0:
		return envelope.JSONSchema.Schema, nil
	default:
		return schemaRaw, nil
	}
}
