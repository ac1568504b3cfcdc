package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristic_Count(t *testing.T) {
	c := Heuristic{}

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty text", "", 0},
		{"single character", "a", 1},
		{"four characters", "abcd", 1},
		{"five characters", "abcde", 2},
		{"forty characters", strings.Repeat("x", 40), 10},
		{"multi-byte runes counted once", "héllo wörld!", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Count(tt.text))
		})
	}
}

func TestHeuristic_Deterministic(t *testing.T) {
	c := Heuristic{}
	text := "The same text must always count the same."

	first := c.Count(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Count(text))
	}
}
