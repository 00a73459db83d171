package token

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIssue_lengthAndEncoding(t *testing.T) {
	tok, err := Issue()
	require.NoError(t, err)
	require.Len(t, tok, Size*2)

	raw, err := hex.DecodeString(tok)
	require.NoError(t, err)
	require.Len(t, raw, Size)
}

func TestIssue_unique(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		tok, err := Issue()
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup, "duplicate token %s", tok)
		seen[tok] = struct{}{}
	}
}
