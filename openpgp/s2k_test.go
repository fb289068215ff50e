package openpgp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeS2KCount(t *testing.T) {
	// 0xff is the maximum-strength encoded count.
	require.Equal(t, (16+15)<<(15+6), decodeS2KCount(0xff))
}

func TestS2KDeriveKeyDeterministic(t *testing.T) {
	s := S2K{Mode: S2KIteratedSalted, Salt: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, Count: decodeS2KCount(0xff)}
	k1, err := s.DeriveKey([]byte("correct horse battery staple"), 32)
	require.NoError(t, err)
	k2, err := s.DeriveKey([]byte("correct horse battery staple"), 32)
	require.NoError(t, err)
	require.Equal(t, k1, k2)
	require.Len(t, k1, 32)
}

func TestS2KDeriveKeyDifferentPassphrasesDiffer(t *testing.T) {
	s := S2K{Mode: S2KSalted, Salt: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
	k1, err := s.DeriveKey([]byte("alpha"), 16)
	require.NoError(t, err)
	k2, err := s.DeriveKey([]byte("beta"), 16)
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)
}

func TestS2KSimpleModeIgnoresSalt(t *testing.T) {
	s1 := S2K{Mode: S2KSimple, Salt: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
	s2 := S2K{Mode: S2KSimple, Salt: [8]byte{9, 9, 9, 9, 9, 9, 9, 9}}
	k1, err := s1.DeriveKey([]byte("pw"), 16)
	require.NoError(t, err)
	k2, err := s2.DeriveKey([]byte("pw"), 16)
	require.NoError(t, err)
	require.Equal(t, k1, k2)
}

func TestS2KUnsupportedMode(t *testing.T) {
	s := S2K{Mode: S2KMode(99)}
	_, err := s.DeriveKey([]byte("pw"), 16)
	require.Error(t, err)
}

func TestS2KKeySizeTooLarge(t *testing.T) {
	s := S2K{Mode: S2KSimple}
	_, err := s.DeriveKey([]byte("pw"), 1024)
	require.Error(t, err)
}

func TestParseS2KSimple(t *testing.T) {
	s, n, err := parseS2K([]byte{byte(S2KSimple), byte(HashSHA256), 0xff})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, S2KSimple, s.Mode)
}

func TestParseS2KSalted(t *testing.T) {
	data := append([]byte{byte(S2KSalted), byte(HashSHA256)}, 1, 2, 3, 4, 5, 6, 7, 8)
	s, n, err := parseS2K(data)
	require.NoError(t, err)
	require.Equal(t, 10, n)
	require.Equal(t, [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, s.Salt)
}

func TestParseS2KIteratedSalted(t *testing.T) {
	data := append([]byte{byte(S2KIteratedSalted), byte(HashSHA256)}, 1, 2, 3, 4, 5, 6, 7, 8, 0xff)
	s, n, err := parseS2K(data)
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.Equal(t, decodeS2KCount(0xff), s.Count)
}

func TestParseS2KTruncated(t *testing.T) {
	_, _, err := parseS2K([]byte{byte(S2KSalted)})
	require.Error(t, err)
}

func TestParseS2KUnsupportedMode(t *testing.T) {
	_, _, err := parseS2K([]byte{99, byte(HashSHA256)})
	require.Error(t, err)
}
