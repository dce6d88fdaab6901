package invitecode

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membership-service/internal/apperrors"
)

func TestGenerateShape(t *testing.T) {
	g := NewRandomGenerator()
	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		require.True(t, Valid(code), code)
		seen[code] = struct{}{}
	}
	assert.Len(t, seen, 200)
}

func TestGenerateRejectsBiasedBytes(t *testing.T) {
	// 255 and 248 are above the rejection threshold and must be skipped.
	src := bytes.NewReader(append(bytes.Repeat([]byte{255, 248}, 10), []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 61, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}...))
	g := &RandomGenerator{src: src}

	code, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHI9", code)
}

func TestGenerateSourceError(t *testing.T) {
	g := &RandomGenerator{src: bytes.NewReader(nil)}
	_, err := g.Generate()
	require.Error(t, err)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("aB3dE6gH9j"))
	assert.False(t, Valid("short"))
	assert.False(t, Valid("aB3dE6gH9-"))
	assert.False(t, Valid("aB3dE6gH9jk"))
}

func TestBuildAndExtractLink(t *testing.T) {
	link, err := BuildLink("vidgroups://join?src=share", "aB3dE6gH9j")
	require.NoError(t, err)

	code, err := ExtractCode(link)
	require.NoError(t, err)
	assert.Equal(t, "aB3dE6gH9j", code)

	code, err = ExtractCode("https://app.example.com/join?code=Zz00Zz00Zz")
	require.NoError(t, err)
	assert.Equal(t, "Zz00Zz00Zz", code)

	code, err = ExtractCode("  Zz00Zz00Zz ")
	require.NoError(t, err)
	assert.Equal(t, "Zz00Zz00Zz", code)
}

func TestExtractCodeInvalid(t *testing.T) {
	for _, raw := range []string{"", "https://app.example.com/join", "https://app.example.com/join?code=bad", "%zz"} {
		_, err := ExtractCode(raw)
		require.True(t, errors.Is(err, apperrors.ErrInvalidInvite), raw)
	}
}
