package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// The dictionary uses specific words to avoid partial collisions
// (e.g., "he" inside "The")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dictionary := []string{"weasel", "viper", "toadstool"}
	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The weasel is here",
			expected: "The ****** is here",
			words:    []string{"weasel"},
		},
		{
			name:     "Multiple occurrences and preserved spacing",
			input:    "weasel weasel weasel",
			expected: "****** ****** ******",
			words:    []string{"weasel", "weasel", "weasel"},
		},
		{
			name: "Leet speak and internal punctuation",
			// W (index 8) . 3 . 4 . 5 . € l (index 19) -> 10 characters
			input:    "Look at W.3.4.5.€l !",
			expected: "Look at ********** !",
			words:    []string{"weasel"},
		},
		{
			name:     "Uppercase and extreme noise",
			input:    "V-I-P-E-R is a W.E.A.S.E.L",
			expected: "********* is a ***********",
			words:    []string{"viper", "weasel"},
		},
		{
			name:     "Accents and special characters (UTF-8)",
			input:    "Un été avec un weasel",
			expected: "Un été avec un ******",
			words:    []string{"weasel"},
		},
		{
			name:     "Word adjacent to trailing punctuation",
			input:    "I love weasel!",
			expected: "I love ******!",
			words:    []string{"weasel"},
		},
		{
			name:     "Nothing to censor",
			input:    "This youth group is amazing",
			expected: "This youth group is amazing",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content, "test=%s,", tt.name)
			req.Equal(tt.words, words, "expected=%s,words=%s", tt.expected, words)
		})
	}
}

func TestModerator_CornerCases(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given real noise and not Leet Speak associated
	dictionary := []string{"...", ",,,", "", "weasel"}

	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	// Then the sentence is censored
	input := "The weasel is safe"
	expected := "The ****** is safe"
	content, words := mod.Censor(input)
	req.Equal(expected, content)
	req.Equal([]string{"weasel"}, words)

	// Then real noise is uncensored
	input = "Hello ..."
	expected = "Hello ..."
	content, words = mod.Censor(input)
	req.Equal(expected, content)
	req.Nil(words)
}

func TestCensoredLoader_LoadAll(t *testing.T) {
	req := require.New(t)

	// Given the embedded dictionaries
	loader := NewCensoredLoader()

	// When loading every language file
	data, err := loader.LoadAll()

	// Then the merged word list is non-empty and both languages are seen
	req.NoError(err)
	req.NotEmpty(data.Words)
	req.Contains(data.Languages, "en")
	req.Contains(data.Languages, "fr")
	req.Contains(data.Words, "idiot")
}
