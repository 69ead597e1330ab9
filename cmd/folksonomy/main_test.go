package main

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"ascii", "hello world", 8, "hello..."},
		{"newlines", "a\nb", 10, "a b"},
		{"multibyte fits", "héllo", 5, "héllo"},
		{"multibyte cut", "héllo wörld ünïcode", 10, "héllo w..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.max)
		})
	}
}

func TestTruncate_NeverSplitsRunes(t *testing.T) {
	title := "日本語のタイトルがとても長い場合"
	for max := 4; max < 20; max++ {
		got := truncate(title, max)
		assert.True(t, utf8.ValidString(got), "max %d", max)
	}
}
