package regex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmatch(t *testing.T) {
	p := MustCompile(`^[0-9]+\.?\s+(.*)$`)

	tests := []struct {
		in    string
		want  string
		found bool
	}{
		{in: "1. Intro", want: "Intro", found: true},
		{in: "12 Chapter two", want: "Chapter two", found: true},
		{in: "Intro", found: false},
		{in: "2.Intro", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, found, err := Submatch(tt.in, p, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheck(t *testing.T) {
	p := MustCompile(`(?i)thumbs\.db$`)

	match, err := Check("Thumbs.db", p)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = Check("video.mp4", p)
	require.NoError(t, err)
	assert.False(t, match)
}

func TestCompileInvalid(t *testing.T) {
	_, err := Compile(`(unclosed`)
	assert.Error(t, err)
}

func TestReplaceAll(t *testing.T) {
	out, err := ReplaceAll(`<p>Intro to <b>limits</b></p>`, MustCompile(`<[^>]*?>`), "")
	require.NoError(t, err)
	assert.Equal(t, "Intro to limits", out)
}
