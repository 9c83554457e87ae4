package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{
			name:  "short title unchanged",
			title: "短视频教程",
			want:  "短视频教程",
		},
		{
			name:  "exactly at the limit unchanged",
			title: strings.Repeat("x", MaxTitleLength),
			want:  strings.Repeat("x", MaxTitleLength),
		},
		{
			name:  "ascii overflow trimmed to the limit",
			title: strings.Repeat("x", MaxTitleLength+45),
			want:  strings.Repeat("x", MaxTitleLength),
		},
		{
			name:  "multi-byte overflow trimmed without splitting runes",
			title: strings.Repeat("长", MaxTitleLength+45),
			want:  strings.Repeat("长", MaxTitleLength),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateTitle(tt.title)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, len([]rune(got)), MaxTitleLength)
		})
	}
}
