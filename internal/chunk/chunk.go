// Package chunk splits oversized research text into bounded, sentence-aligned
// segments whose concatenation reproduces the input byte for byte.
package chunk

import (
	"unicode/utf8"
)

// DefaultBudget is the chunk size used when a non-positive budget is given.
const DefaultBudget = 40_000

// searchWindow is the trailing fraction of the budget scanned for a sentence end.
const searchWindow = 0.2

// Chunk is one bounded slice of the input.
type Chunk struct {
	Text    string `json:"text"`
	Index   int    `json:"index"`
	Size    int    `json:"size"`
	HasMore bool   `json:"has_more"`
}

// Split divides text into chunks of at most budget bytes.
//
// Each non-final chunk ends just after the last sentence terminator found in
// the trailing 20% of its budget. When none exists the chunk is cut at the
// budget, moved back to the nearest rune start.
func Split(text string, budget int) []Chunk {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if len(text) <= budget {
		return []Chunk{{Text: text, Index: 0, Size: len(text), HasMore: false}}
	}

	var chunks []Chunk
	rest := text
	for len(rest) > 0 {
		if len(rest) <= budget {
			chunks = append(chunks, Chunk{Text: rest, Index: len(chunks), Size: len(rest)})
			break
		}

		cut := sentenceBreak(rest, budget)
		if cut <= 0 {
			cut = forcedBreak(rest, budget)
		}

		chunks = append(chunks, Chunk{
			Text:    rest[:cut],
			Index:   len(chunks),
			Size:    cut,
			HasMore: cut < len(rest),
		})
		rest = rest[cut:]
	}
	return chunks
}

// Join concatenates chunks in index order.
func Join(chunks []Chunk) string {
	size := 0
	for _, c := range chunks {
		size += len(c.Text)
	}
	buf := make([]byte, 0, size)
	for _, c := range chunks {
		buf = append(buf, c.Text...)
	}
	return string(buf)
}

// sentenceBreak returns the byte offset just past the last sentence end inside
// the trailing window of text[:budget], or 0 if there is none.
func sentenceBreak(text string, budget int) int {
	floor := budget - int(float64(budget)*searchWindow)
	if floor < 1 {
		floor = 1
	}
	for i := budget - 1; i >= floor; i-- {
		switch text[i] {
		case '\n':
			return i + 1
		case '.', '!', '?':
			if i+1 < len(text) && isSpace(text[i+1]) {
				return i + 1
			}
		}
	}
	return 0
}

// forcedBreak cuts at budget, stepping back so a multi-byte rune stays whole.
func forcedBreak(text string, budget int) int {
	cut := budget
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		// A single rune wider than the budget; take it whole.
		_, size := utf8.DecodeRuneInString(text)
		return size
	}
	return cut
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
