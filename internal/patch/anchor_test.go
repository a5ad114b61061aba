package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate_FirstOccurrence(t *testing.T) {
	off, err := Locate("xxAByyAB", "AB")
	require.NoError(t, err)
	assert.Equal(t, 2, off)
}

func TestLocate_NotFound(t *testing.T) {
	_, err := Locate("hello", "world")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "world", pe.Anchor)
	assert.Equal(t, -1, pe.Index)
}

func TestLocate_EmptyAnchor(t *testing.T) {
	_, err := Locate("hello", "")
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidOp, CodeOf(err))
}

func TestLocate_NoNormalization(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		anchor string
	}{
		{"whitespace", "<div  className>", "<div className>"},
		{"case", "<Div>", "<div>"},
		{"tab vs spaces", "\t<div>", "    <div>"},
		{"composed vs decomposed", "caf\u00e9", "cafe\u0301"},
		{"crlf", "a\r\nb", "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Locate(tt.doc, tt.anchor)
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestLocateUnique(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		anchor   string
		wantOff  int
		wantCode ErrorCode
	}{
		{"single", "abc", "b", 1, ""},
		{"repeated", "AA", "A", 0, ErrCodeAnchorAmbiguous},
		{"overlapping", "AAA", "AA", 0, ErrCodeAnchorAmbiguous},
		{"distant repeat", "<x>...<x>", "<x>", 0, ErrCodeAnchorAmbiguous},
		{"absent", "abc", "z", 0, ErrCodeAnchorNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			off, err := LocateUnique(tt.doc, tt.anchor)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOff, off)
		})
	}
}

func TestLocateFrom(t *testing.T) {
	doc := "start...mid...end...end"

	off, err := LocateFrom(doc, "end", 5)
	require.NoError(t, err)
	assert.Equal(t, 14, off)

	off, err = LocateFrom(doc, "end", 15)
	require.NoError(t, err)
	assert.Equal(t, 20, off)

	_, err = LocateFrom(doc, "start", 1)
	assert.True(t, IsNotFound(err))

	_, err = LocateFrom(doc, "end", len(doc)+1)
	assert.True(t, IsNotFound(err))
}
