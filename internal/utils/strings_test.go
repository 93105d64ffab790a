package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single id",
			input:    "510300",
			expected: []string{"510300"},
		},
		{
			name:     "ids with varied spacing",
			input:    "510300,  159915 , 518880",
			expected: []string{"510300", "159915", "518880"},
		},
		{
			name:     "trailing comma",
			input:    "510300,",
			expected: []string{"510300"},
		},
		{
			name:     "only spaces",
			input:    "   ",
			expected: nil,
		},
		{
			name:     "multiple commas",
			input:    ",,510300,,513100,,",
			expected: []string{"510300", "513100"},
		},
		{
			name:     "internal spaces preserved",
			input:    "CSI 300, Gold ETF",
			expected: []string{"CSI 300", "Gold ETF"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCSV(tt.input))
		})
	}
}
