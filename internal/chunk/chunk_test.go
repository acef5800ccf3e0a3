package chunk

import (
	"strings"
	"testing"
)

func TestSplit_FitsInBudget(t *testing.T) {
	text := "A short research note."
	chunks := Split(text, 100)
	if len(chunks) != 1 {
		t.Fatalf("Split() got %d chunks, want 1", len(chunks))
	}
	if chunks[0].HasMore {
		t.Error("single chunk should have HasMore=false")
	}
	if chunks[0].Text != text || chunks[0].Size != len(text) {
		t.Errorf("unexpected chunk %+v", chunks[0])
	}
}

func TestSplit_Empty(t *testing.T) {
	chunks := Split("", 10)
	if len(chunks) != 1 || chunks[0].Text != "" || chunks[0].HasMore {
		t.Fatalf("Split(\"\") = %+v, want one empty final chunk", chunks)
	}
}

func TestSplit_BreaksAtSentence(t *testing.T) {
	// 100-byte budget; the window is bytes 80..99.
	first := strings.Repeat("a", 84) + ". "
	text := first + strings.Repeat("b", 60)

	chunks := Split(text, 100)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Text != strings.Repeat("a", 84)+"." {
		t.Errorf("chunk[0] should end at the period, got %q", chunks[0].Text[80:])
	}
	if !chunks[0].HasMore || chunks[1].HasMore {
		t.Errorf("HasMore flags wrong: %v %v", chunks[0].HasMore, chunks[1].HasMore)
	}
	if Join(chunks) != text {
		t.Error("round trip mismatch")
	}
}

func TestSplit_IgnoresSentenceOutsideWindow(t *testing.T) {
	// Period at byte 10 is outside the trailing 20% window, so the cut is forced.
	text := strings.Repeat("x", 10) + ". " + strings.Repeat("y", 150)
	chunks := Split(text, 100)
	if chunks[0].Size != 100 {
		t.Errorf("expected forced split at 100, got %d", chunks[0].Size)
	}
}

func TestSplit_NewlineIsBoundary(t *testing.T) {
	text := strings.Repeat("a", 90) + "\n" + strings.Repeat("b", 50)
	chunks := Split(text, 100)
	if chunks[0].Size != 91 {
		t.Errorf("expected break after newline at 91, got %d", chunks[0].Size)
	}
}

func TestSplit_DoesNotCutRunes(t *testing.T) {
	text := strings.Repeat("é", 120) // 2 bytes each
	chunks := Split(text, 101)
	for i, c := range chunks {
		if !strings.HasPrefix(c.Text, "é") && c.Text != "" {
			t.Errorf("chunk[%d] starts mid-rune", i)
		}
		if c.Size > 101 {
			t.Errorf("chunk[%d] size %d exceeds budget", i, c.Size)
		}
	}
	if Join(chunks) != text {
		t.Error("round trip mismatch")
	}
}

func TestSplit_WideFinalRune(t *testing.T) {
	tests := []struct {
		text   string
		budget int
		want   []string
	}{
		{"ab日", 2, []string{"ab", "日"}},
		{"日", 1, []string{"日"}},
		{"日本", 2, []string{"日", "本"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			chunks := Split(tt.text, tt.budget)
			if len(chunks) != len(tt.want) {
				t.Fatalf("got %d chunks %+v, want %d", len(chunks), chunks, len(tt.want))
			}
			for i, c := range chunks {
				if c.Text != tt.want[i] {
					t.Errorf("chunk[%d].Text = %q, want %q", i, c.Text, tt.want[i])
				}
				if c.HasMore != (i < len(chunks)-1) {
					t.Errorf("chunk[%d].HasMore = %v", i, c.HasMore)
				}
			}
		})
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	sentence := "The migration finished in Q3! Was it on time? Mostly.\n"
	texts := []string{
		strings.Repeat(sentence, 500),
		strings.Repeat("no punctuation at all ", 700),
		strings.Repeat("混合文本。Mixed text. ", 300),
	}
	budgets := []int{1, 7, 64, 333, 4096}

	for _, text := range texts {
		for _, budget := range budgets {
			chunks := Split(text, budget)
			if got := Join(chunks); got != text {
				t.Fatalf("budget %d: round trip mismatch", budget)
			}
			for i, c := range chunks {
				if c.Index != i {
					t.Errorf("budget %d: chunk[%d].Index = %d", budget, i, c.Index)
				}
				if c.Size != len(c.Text) {
					t.Errorf("budget %d: chunk[%d].Size = %d, len = %d", budget, i, c.Size, len(c.Text))
				}
				if c.HasMore != (i < len(chunks)-1) {
					t.Errorf("budget %d: chunk[%d].HasMore = %v", budget, i, c.HasMore)
				}
			}
		}
	}
}

func TestSplit_EightyFiveThousandChars(t *testing.T) {
	sentence := strings.Repeat("w", 99) + "." // 100 bytes, no trailing space
	text := strings.Repeat(sentence+" ", 850)[:85_000]

	chunks := Split(text, 40_000)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if Join(chunks) != text {
		t.Fatal("round trip mismatch")
	}
	for i := 0; i < 2; i++ {
		if !strings.HasSuffix(chunks[i].Text, ".") {
			t.Errorf("chunk[%d] should end on a sentence boundary", i)
		}
	}
}
