package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTestament(t *testing.T) {
	tests := []struct {
		in      string
		want    Testament
		wantErr bool
	}{
		{"", "", false},
		{"old", TestamentOld, false},
		{"NEW", TestamentNew, false},
		{"nt", "nt", false},
		{"apocrypha", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTestament(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseExclusions(t *testing.T) {
	ex, err := ParseExclusions("chapter, BOOK")
	require.NoError(t, err)
	assert.Equal(t, Exclusions{SameChapter: true, SameBook: true}, ex)

	ex, err = ParseExclusions("")
	require.NoError(t, err)
	assert.Equal(t, Exclusions{}, ex)

	ex, err = ParseExclusions("work")
	require.NoError(t, err)
	assert.True(t, ex.SameWork)

	_, err = ParseExclusions("chapter,testament")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestScope_WithBook(t *testing.T) {
	s, err := Scope{WorkID: "w1"}.WithBook("psalms")
	require.NoError(t, err)
	assert.Equal(t, Scope{WorkID: "w1", SeqMin: 19, SeqMax: 19}, s)
	assert.True(t, s.Matches("b", "w1", 19))
	assert.False(t, s.Matches("b", "w1", 20))

	s, err = Scope{SeqMin: 3}.WithBook("")
	require.NoError(t, err)
	assert.Equal(t, Scope{SeqMin: 3}, s)

	_, err = Scope{}.WithBook("Maccabees")
	assert.ErrorIs(t, err, ErrUnknownBook)
}

func TestNewScope(t *testing.T) {
	s, err := NewScope("", "w1", 0, 0, "new")
	require.NoError(t, err)
	assert.Equal(t, Scope{WorkID: "w1", SeqMin: 40, SeqMax: 66}, s.Resolve())

	s, err = NewScope("John", "", 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 43, s.SeqMin)
	assert.Equal(t, 43, s.SeqMax)

	_, err = NewScope("", "", 10, 5, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewScope("", "", 0, 0, "middle")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewScope("Tobit", "", 0, 0, "")
	assert.ErrorIs(t, err, ErrUnknownBook)
}
