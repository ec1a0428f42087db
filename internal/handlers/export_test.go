package handlers

import (
	"strings"
	"testing"
)

// TestSanitizeFilename verifies filename sanitization.
func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "clean filename",
			input:    "Morning Coffee Ritual",
			expected: "Morning Coffee Ritual",
		},
		{
			name:     "slashes and colons",
			input:    "Part 1/2: The Pour",
			expected: "Part 1-2- The Pour",
		},
		{
			name:     "special characters",
			input:    "Why Latte Art? <Explained>",
			expected: "Why Latte Art- -Explained-",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "long title gets truncated",
			input:    strings.Repeat("a", 200),
			expected: strings.Repeat("a", 100),
		},
		{
			name:     "truncation keeps runes whole",
			input:    "a" + strings.Repeat("é", 60),
			expected: "a" + strings.Repeat("é", 49),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
