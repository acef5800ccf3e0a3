package llmcall

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jackzampolin/roadmap/internal/providers"
)

func TestFromChatResult_TruncatesOnRuneBoundary(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"short", "日本", len("日本")},
		{"exact", strings.Repeat("a", maxRecordedResponse), maxRecordedResponse},
		{"rune straddles limit", strings.Repeat("a", maxRecordedResponse-1) + "日本", maxRecordedResponse - 1},
		{"ascii over limit", strings.Repeat("a", maxRecordedResponse+10), maxRecordedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &providers.ChatResult{Provider: "mock", Success: true, Content: tt.content}
			call := FromChatResult(result, &providers.ChatRequest{PromptKey: "k"}, 1)
			if len(call.Response) != tt.want {
				t.Errorf("len(Response) = %d, want %d", len(call.Response), tt.want)
			}
			if !utf8.ValidString(call.Response) {
				t.Error("Response is not valid UTF-8")
			}
			if !strings.HasPrefix(tt.content, call.Response) {
				t.Error("Response is not a prefix of the content")
			}
		})
	}
}
