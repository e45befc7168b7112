package primitives

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	nonce := make([]byte, 12)
	aad := []byte("header-aad")
	plaintext := []byte("hello veil")

	ct, err := Seal(key, nonce, aad, plaintext)
	require.NoError(t, err)
	require.Len(t, ct, len(plaintext)+16)

	pt, err := Open(key, nonce, aad, ct)
	require.NoError(t, err)
	require.Equal(t, plaintext, pt)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key := make([]byte, 32)
	nonce := make([]byte, 12)
	ct, err := Seal(key, nonce, nil, []byte("payload"))
	require.NoError(t, err)
	ct[0] ^= 0xFF

	_, err = Open(key, nonce, nil, ct)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestOpenRejectsMismatchedAAD(t *testing.T) {
	key := make([]byte, 32)
	nonce := make([]byte, 12)
	ct, err := Seal(key, nonce, []byte("aad-a"), []byte("payload"))
	require.NoError(t, err)

	_, err = Open(key, nonce, []byte("aad-b"), ct)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestDeriveNonceXORsLowBytes(t *testing.T) {
	var base [12]byte
	for i := range base {
		base[i] = 0xAA
	}
	n0 := DeriveNonce(base, 0)
	require.Equal(t, base, n0)

	n1 := DeriveNonce(base, 1)
	require.NotEqual(t, n0, n1)
	require.Equal(t, base[8:], n1[8:], "high 4 bytes untouched by counter XOR")
}

func TestX25519SharedIsSymmetric(t *testing.T) {
	var r SystemRandom
	aPub, aPriv, err := X25519Keypair(r)
	require.NoError(t, err)
	bPub, bPriv, err := X25519Keypair(r)
	require.NoError(t, err)

	ss1, err := X25519Shared(aPriv, bPub)
	require.NoError(t, err)
	ss2, err := X25519Shared(bPriv, aPub)
	require.NoError(t, err)
	require.Equal(t, ss1, ss2)
}

func TestHKDFExpandDeterministic(t *testing.T) {
	prk := HKDFExtract([]byte("salt"), []byte("ikm"))
	out1, err := HKDFExpand(prk, []byte("info"), 32)
	require.NoError(t, err)
	out2, err := HKDFExpand(prk, []byte("info"), 32)
	require.NoError(t, err)
	require.Equal(t, out1, out2)

	out3, err := HKDFExpand(prk, []byte("other-info"), 32)
	require.NoError(t, err)
	require.NotEqual(t, out1, out3)
}

func TestHMACVerify(t *testing.T) {
	key := []byte("secret")
	mac := HMACSHA256(key, []byte("msg"))
	require.True(t, HMACEqual(mac, HMACSHA256(key, []byte("msg"))))
	require.False(t, HMACEqual(mac, HMACSHA256(key, []byte("other"))))
}
