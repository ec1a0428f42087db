// Package brief turns an uploaded PDF creative brief into prompt text.
//
// We use the ledongthuc/pdf library for text extraction. It's a pure Go
// implementation with no CGO, so the service still ships as a single binary.
package brief

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PromptWordLimit caps the suggested prompt. Longer briefs are cut at a
// sentence boundary when one falls inside the limit.
const PromptWordLimit = 120

// ErrNotPDF is returned for uploads without the PDF magic bytes.
var ErrNotPDF = errors.New("file is not a PDF")

// Brief is the text pulled from a creative brief.
type Brief struct {
	Text      string `json:"text"`
	Prompt    string `json:"prompt"`
	PageCount int    `json:"page_count"`
	WordCount int    `json:"word_count"`
}

// Extract reads every page of a PDF and builds the suggested prompt.
//
// Go Pattern: We accept a byte slice instead of a filename because the data
// comes from an HTTP upload (in memory). The pdf library needs an
// io.ReaderAt for random access, which bytes.Reader provides.
func Extract(data []byte) (*Brief, error) {
	if !IsPDF(data) {
		return nil, ErrNotPDF
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	pages := r.NumPage()
	parts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Image-only pages have no text layer; skip them.
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}

	text := strings.Join(parts, "\n\n")
	return &Brief{
		Text:      text,
		Prompt:    SuggestPrompt(text, PromptWordLimit),
		PageCount: pages,
		WordCount: len(strings.Fields(text)),
	}, nil
}

// SuggestPrompt collapses whitespace and keeps at most limit words, ending
// on the last full sentence when that keeps at least half of them.
func SuggestPrompt(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) <= limit {
		return strings.Join(words, " ")
	}
	cut := strings.Join(words[:limit], " ")
	if i := strings.LastIndexAny(cut, ".!?"); i >= 0 && len(strings.Fields(cut[:i+1])) >= limit/2 {
		return cut[:i+1]
	}
	return cut
}

// IsPDF checks the magic bytes. PDF files start with "%PDF-".
func IsPDF(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}
