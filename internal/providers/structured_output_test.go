package providers

import (
	"encoding/json"
	"testing"
)

func TestResponseFormatFor(t *testing.T) {
	rf := &ResponseFormat{Type: "json_schema", JSONSchema: json.RawMessage(`{"schema":{"type":"object"}}`)}

	if got := responseFormatFor("anthropic/claude-sonnet-4", rf); got != nil {
		t.Errorf("anthropic models should fall back to prompt-only JSON, got %+v", got)
	}
	if got := responseFormatFor("openai/gpt-4o", nil); got != nil {
		t.Errorf("nil format should stay nil, got %+v", got)
	}
	got := responseFormatFor("openai/gpt-4o", rf)
	if got == nil || got.Type != "json_schema" || string(got.JSONSchema) != string(rf.JSONSchema) {
		t.Errorf("schema should pass through unchanged, got %+v", got)
	}
}

func TestParseStructuredJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain object", `{"ok":true}`, false},
		{"code fence", "```json\n{\"ok\":true}\n```", false},
		{"surrounding prose", "Here is the chart:\n{\"ok\":true}\nLet me know!", false},
		{"fence without language", "```\n{ \"ok\" : true }\n```", false},
		{"empty", "   ", true},
		{"not json", "no braces here", true},
		{"truncated", `{"ok":tru`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStructuredJSON(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStructuredJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			var parsed map[string]any
			if err := json.Unmarshal(got, &parsed); err != nil {
				t.Fatalf("result is not JSON: %v", err)
			}
			if ok, _ := parsed["ok"].(bool); !ok {
				t.Errorf("expected ok=true, got %#v", parsed)
			}
		})
	}
}

func TestValidateStructuredJSON(t *testing.T) {
	schema := json.RawMessage(`{
		"name":"summary",
		"strict":true,
		"schema":{
			"type":"object",
			"properties":{
				"title":{"type":"string"},
				"paragraphs":{"type":"array","items":{"type":"string"}}
			},
			"required":["title","paragraphs"],
			"additionalProperties":false
		}
	}`)

	if err := ValidateStructuredJSON(schema, json.RawMessage(`{"title":"t","paragraphs":["a"]}`)); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
	if err := ValidateStructuredJSON(schema, json.RawMessage(`{"title":"t"}`)); err == nil {
		t.Fatal("missing required field accepted")
	}
	if err := ValidateStructuredJSON(schema, json.RawMessage(`{"title":"t","paragraphs":[],"extra":1}`)); err == nil {
		t.Fatal("additional property accepted")
	}
	if err := ValidateStructuredJSON(schema, json.RawMessage(`{"title":"again","paragraphs":[]}`)); err != nil {
		t.Fatalf("cached schema rejected a valid document: %v", err)
	}

	bare := json.RawMessage(`{"type":"object","required":["slides"]}`)
	if err := ValidateStructuredJSON(bare, json.RawMessage(`{}`)); err == nil {
		t.Fatal("bare schema not applied")
	}
	if err := ValidateStructuredJSON(nil, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("empty schema should skip validation: %v", err)
	}
}
