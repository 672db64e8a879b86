// Package mse implements Message Stream Encryption, the Diffie-Hellman
// key exchange plus RC4 obfuscation BitTorrent peers use to mask traffic
// from simple protocol fingerprinting. No library in the retrieved
// example pack implements BitTorrent's MSE; this package is built
// directly on stdlib crypto/big primitives per the scheme peers
// interoperate on in the wild.
package mse

import (
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha1"
	"errors"
	"io"
	"math/big"
)

// p and g are the fixed 768-bit DH modulus and generator MSE specifies.
var (
	p, _ = new(big.Int).SetString(
		"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74"+
			"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437"+
			"4FE1356D6D51C245E485B576625E7EC6F44C42E9A63A36210000000000090563", 16)
	g = big.NewInt(2)
)

const keyLen = 96 // bytes; p is 768 bits

// ErrInvalidPubKey is returned when a peer's DH public key is 0 mod p,
// which would make the shared secret predictable.
var ErrInvalidPubKey = errors.New("mse: invalid public key")

// KeyPair is one side's ephemeral Diffie-Hellman key pair.
type KeyPair struct {
	private *big.Int
	Public  []byte // big-endian, zero-padded to keyLen
}

// NewKeyPair generates a fresh ephemeral DH key pair.
func NewKeyPair() (*KeyPair, error) {
	priv, err := rand.Int(rand.Reader, p)
	if err != nil {
		return nil, err
	}
	pub := new(big.Int).Exp(g, priv, p)
	return &KeyPair{private: priv, Public: padded(pub, keyLen)}, nil
}

// SharedSecret computes the DH shared secret given the peer's public key.
func (k *KeyPair) SharedSecret(peerPublic []byte) ([]byte, error) {
	pub := new(big.Int).SetBytes(peerPublic)
	if pub.Sign() == 0 || pub.Cmp(p) >= 0 {
		return nil, ErrInvalidPubKey
	}
	secret := new(big.Int).Exp(pub, k.private, p)
	return padded(secret, keyLen), nil
}

func padded(n *big.Int, size int) []byte {
	b := n.Bytes()
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// RC4Keys derives the two RC4 ciphers (outgoing, incoming) from the DH
// shared secret and the torrent's info hash, per the "keyA"/"keyB"
// derivation (sha1("keyA"+S+SKEY) and sha1("keyB"+S+SKEY)): the
// initiator encrypts with keyA and decrypts with keyB, the receiver the
// reverse.
func RC4Keys(sharedSecret, infoHash []byte) (encryptKeyInitiator, encryptKeyReceiver *rc4.Cipher, err error) {
	ka := sha1.Sum(append(append([]byte("keyA"), sharedSecret...), infoHash...))
	kb := sha1.Sum(append(append([]byte("keyB"), sharedSecret...), infoHash...))
	ca, err := rc4.NewCipher(ka[:])
	if err != nil {
		return nil, nil, err
	}
	cb, err := rc4.NewCipher(kb[:])
	if err != nil {
		return nil, nil, err
	}
	// Per spec, the first 1024 bytes of keystream are discarded.
	discard := make([]byte, 1024)
	ca.XORKeyStream(discard, discard)
	cb.XORKeyStream(discard, discard)
	return ca, cb, nil
}

// ReadFull is a small helper used by handshake negotiation code to read
// exactly len(buf) bytes, surfacing io.ErrUnexpectedEOF on short reads.
func ReadFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

// Req3Hash computes HASH('req3', S), used by the initiator to mask which
// torrent it is requesting via XOR with Req2Hash(infoHash), and by the
// responder to unmask it by trying each served torrent's info hash.
func Req3Hash(sharedSecret []byte) [20]byte {
	return sha1.Sum(append([]byte("req3"), sharedSecret...))
}

// Req2Hash computes HASH('req2', SKEY) for the given torrent info hash.
func Req2Hash(infoHash [20]byte) [20]byte {
	return sha1.Sum(append([]byte("req2"), infoHash[:]...))
}

// XorHash XORs two 20-byte hashes, used both to mask and unmask the
// SKEY-identifying value exchanged during negotiation.
func XorHash(a, b [20]byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}
