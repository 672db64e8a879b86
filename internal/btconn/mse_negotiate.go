package btconn

import (
	"errors"
	"io"
	"net"

	"github.com/tearfur/transmission/internal/mse"
)

// errNoMatchingInfoHash is returned by the responder when none of the
// torrents it serves matches the SKEY value masked into the negotiation.
var errNoMatchingInfoHash = errors.New("btconn: no matching info hash for incoming MSE negotiation")

// negotiateOutgoingMSE performs the initiator side of the DH exchange,
// masks infoHash into the stream per req2/req3 so the responder (who
// does not yet know which torrent this connection is for) can recover
// it, and returns an RC4-wrapped stream keyed off the shared secret and
// infoHash.
func negotiateOutgoingMSE(conn net.Conn, infoHash []byte) (io.ReadWriter, error) {
	kp, err := mse.NewKeyPair()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(kp.Public); err != nil {
		return nil, err
	}
	var theirPub [96]byte
	if err := mse.ReadFull(conn, theirPub[:]); err != nil {
		return nil, err
	}
	secret, err := kp.SharedSecret(theirPub[:])
	if err != nil {
		return nil, err
	}

	var ih [20]byte
	copy(ih[:], infoHash)
	masked := mse.XorHash(mse.Req2Hash(ih), mse.Req3Hash(secret))
	if _, err := conn.Write(masked[:]); err != nil {
		return nil, err
	}

	encryptKey, decryptKey, err := mse.RC4Keys(secret, infoHash)
	if err != nil {
		return nil, err
	}
	return rc4Stream(conn, encryptKey, decryptKey), nil
}

// negotiateIncomingMSE performs the responder side. firstByte is the byte
// already consumed while peeking the stream type, folded back in as the
// first byte of the peer's public key. knownInfoHashes lists the info
// hashes of torrents currently served, so the masked SKEY value can be
// unmasked by trial.
func negotiateIncomingMSE(conn net.Conn, firstByte byte, knownInfoHashes func() [][20]byte) (io.ReadWriter, [20]byte, error) {
	var zero [20]byte
	kp, err := mse.NewKeyPair()
	if err != nil {
		return nil, zero, err
	}
	var theirPub [96]byte
	theirPub[0] = firstByte
	if err := mse.ReadFull(conn, theirPub[1:]); err != nil {
		return nil, zero, err
	}
	if _, err := conn.Write(kp.Public); err != nil {
		return nil, zero, err
	}
	secret, err := kp.SharedSecret(theirPub[:])
	if err != nil {
		return nil, zero, err
	}

	var masked [20]byte
	if err := mse.ReadFull(conn, masked[:]); err != nil {
		return nil, zero, err
	}
	req3 := mse.Req3Hash(secret)
	var infoHash [20]byte
	found := false
	for _, candidate := range knownInfoHashes() {
		if mse.XorHash(masked, req3) == mse.Req2Hash(candidate) {
			infoHash = candidate
			found = true
			break
		}
	}
	if !found {
		return nil, zero, errNoMatchingInfoHash
	}

	encryptKey, decryptKey, err := mse.RC4Keys(secret, infoHash[:])
	if err != nil {
		return nil, zero, err
	}
	return rc4Stream(conn, decryptKey, encryptKey), infoHash, nil
}
