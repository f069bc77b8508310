package contenthash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases and collapses whitespace",
			input:    "  Hello\t\tWorld\n",
			expected: "hello world",
		},
		{
			name:     "keeps basic punctuation",
			input:    "Ship it: now, or never!?",
			expected: "ship it: now, or never!?",
		},
		{
			name:     "strips emoji and symbols",
			input:    "launch 🚀 day #1 @here",
			expected: "launch day 1 here",
		},
		{
			name:     "keeps unicode letters",
			input:    "Café Münster 東京",
			expected: "café münster 東京",
		},
		{
			name:     "keeps slashes and hyphens",
			input:    "a/b-test",
			expected: "a/b-test",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "symbols only",
			input:    "***###",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestHash(t *testing.T) {
	t.Run("stable across formatting differences", func(t *testing.T) {
		a := Hash("Big Launch", "Everyone   noticed the LAUNCH.")
		b := Hash("big launch", "everyone noticed the launch.")
		assert.Equal(t, a, b)
	})

	t.Run("different content differs", func(t *testing.T) {
		assert.NotEqual(t, Hash("first insight"), Hash("second insight"))
	})

	t.Run("empty parts are skipped", func(t *testing.T) {
		assert.Equal(t, Hash("title", "", "summary"), Hash("title", "summary"))
	})

	t.Run("symbol-only parts still occupy a position", func(t *testing.T) {
		assert.NotEqual(t, Hash("a", "***", "b"), Hash("a", "b"))
	})

	t.Run("part order matters", func(t *testing.T) {
		assert.NotEqual(t, Hash("a", "b"), Hash("b", "a"))
	})

	t.Run("hex encoded sha256", func(t *testing.T) {
		h := Hash("anything")
		require.Len(t, h, 64)
	})
}
