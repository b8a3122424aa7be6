package proof

import (
	"crypto/sha256"
	"encoding/base64"
	"math/big"
)

// Hash returns base64(SHA-256(value)), the digest committed on chain.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Sid is the identity string an accessor signs to produce its secret.
func Sid(namespace, identifier string) string {
	return namespace + ":" + identifier
}

// SidHash is the base64 SHA-256 of the sid, sent to the accessor signer.
func SidHash(namespace, identifier string) string {
	return Hash(Sid(namespace, identifier))
}

// sha256DigestInfo is the DER DigestInfo prefix for SHA-256 in PKCS #1 v1.5.
var sha256DigestInfo = []byte{0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x01, 0x05, 0x00, 0x04, 0x20}

// pkcs1Encode returns the PKCS #1 v1.5 signature encoding of the sid hash
// for a modulus of k bytes. An accessor secret s satisfies s^e = pkcs1Encode mod n.
func pkcs1Encode(sid string, k int) *big.Int {
	digest := sha256.Sum256([]byte(sid))
	t := append(append([]byte{}, sha256DigestInfo...), digest[:]...)

	em := make([]byte, k)
	em[1] = 0x01
	for i := 2; i < k-len(t)-1; i++ {
		em[i] = 0xff
	}
	copy(em[k-len(t):], t)
	return new(big.Int).SetBytes(em)
}

func challengeHash(challenge string, blockchainProof *big.Int, padding string) *big.Int {
	h := sha256.New()
	h.Write([]byte(challenge))
	h.Write(blockchainProof.Bytes())
	h.Write([]byte(padding))
	return new(big.Int).SetBytes(h.Sum(nil))
}

func encodeInt(v *big.Int) string {
	return base64.StdEncoding.EncodeToString(v.Bytes())
}

func decodeInt(s string) (*big.Int, bool) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	return new(big.Int).SetBytes(raw), true
}
