package mse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharedSecretMatchesBetweenPeers(t *testing.T) {
	a, err := NewKeyPair()
	require.NoError(t, err)
	b, err := NewKeyPair()
	require.NoError(t, err)

	sa, err := a.SharedSecret(b.Public)
	require.NoError(t, err)
	sb, err := b.SharedSecret(a.Public)
	require.NoError(t, err)
	require.Equal(t, sa, sb)
}

func TestSharedSecretRejectsZeroPublicKey(t *testing.T) {
	a, err := NewKeyPair()
	require.NoError(t, err)
	_, err = a.SharedSecret([]byte{0})
	require.ErrorIs(t, err, ErrInvalidPubKey)
}

func TestRC4KeysAreDistinctButDeterministic(t *testing.T) {
	secret := []byte("shared-secret")
	infoHash := []byte("01234567890123456789")

	ca1, cb1, err := RC4Keys(secret, infoHash)
	require.NoError(t, err)
	ca2, cb2, err := RC4Keys(secret, infoHash)
	require.NoError(t, err)

	plain := []byte("hello")
	out1 := make([]byte, len(plain))
	ca1.XORKeyStream(out1, plain)
	out2 := make([]byte, len(plain))
	ca2.XORKeyStream(out2, plain)
	require.Equal(t, out1, out2)

	outB := make([]byte, len(plain))
	cb1.XORKeyStream(outB, plain)
	require.NotEqual(t, out1, outB)
}

func TestXorHashIsSelfInverse(t *testing.T) {
	a := Req2Hash([20]byte{1, 2, 3})
	b := Req2Hash([20]byte{4, 5, 6})
	x := XorHash(a, b)
	back := XorHash(x, b)
	require.Equal(t, a, back)
}
