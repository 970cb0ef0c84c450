package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"math/big"

	"github.com/btcsuite/btcd/btcec"

	"github.com/chronomesh/timechunk/src/common"
)

/*
Author keys and record signing are based on elliptic curve cryptography with
the secp256k1 curve, so that existing Bitcoin or Ethereum keys can be reused
as author identities.
*/

// secp256k1N is the order of the secp256k1 curve. It is used to verify that a
// parsed private key is valid.
var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)

const (
	// number of bits in a big.Word
	wordBits = 32 << (uint64(^big.Word(0)) >> 63)
	// number of bytes in a big.Word
	wordBytes = wordBits / 8
)

// Curve returns the secp256k1 elliptic.Curve from btcsuite's implementation.
func Curve() elliptic.Curve {
	return btcec.S256()
}

// GenerateECDSAKey creates a new ecdsa.PrivateKey on the secp256k1 curve.
func GenerateECDSAKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(Curve(), rand.Reader)
}

// DumpPrivateKey exports a private key into a binary dump of its D value.
func DumpPrivateKey(priv *ecdsa.PrivateKey) []byte {
	if priv == nil {
		return nil
	}
	return paddedBigBytes(priv.D, priv.Params().BitSize/8)
}

// ParsePrivateKey creates a private key with the given D value, as produced by
// DumpPrivateKey.
func ParsePrivateKey(d []byte) (*ecdsa.PrivateKey, error) {
	priv := new(ecdsa.PrivateKey)
	priv.PublicKey.Curve = Curve()

	if 8*len(d) != priv.Params().BitSize {
		return nil, fmt.Errorf("invalid length, need %d bits", priv.Params().BitSize)
	}

	priv.D = new(big.Int).SetBytes(d)

	// The D value must be in ]0, N[
	if priv.D.Cmp(secp256k1N) >= 0 {
		return nil, fmt.Errorf("invalid private key, >=N")
	}
	if priv.D.Sign() <= 0 {
		return nil, fmt.Errorf("invalid private key, zero or negative")
	}

	priv.PublicKey.X, priv.PublicKey.Y = priv.PublicKey.Curve.ScalarBaseMult(d)
	if priv.PublicKey.X == nil {
		return nil, errors.New("invalid private key")
	}

	return priv, nil
}

// PrivateKeyHex returns the hexadecimal representation of a raw private key as
// returned by DumpPrivateKey.
func PrivateKeyHex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(DumpPrivateKey(key))
}

// ToPublicKey is a wrapper around elliptic.Unmarshal on the secp256k1 curve.
// The argument pub is expected to be the uncompressed form of a point on the
// curve, as returned by FromPublicKey.
func ToPublicKey(pub []byte) *ecdsa.PublicKey {
	if len(pub) == 0 {
		return nil
	}
	x, y := elliptic.Unmarshal(Curve(), pub)
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}
}

// FromPublicKey is a wrapper around elliptic.Marshal on the secp256k1 curve.
// It outputs the point in uncompressed form.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(Curve(), pub.X, pub.Y)
}

// PublicKeyHex returns the hexadecimal representation of the uncompressed form
// of the public key, with a 0x prefix.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return common.EncodeToString(FromPublicKey(pub))
}

// PublicKeyID gives a compact uint32 representation of a public key. There is
// obviously a risk of collision; the uint32 is only used for log readability
// and map keys, never for validation.
func PublicKeyID(pubBytes []byte) uint32 {
	h := fnv.New32a()
	h.Write(pubBytes)
	return h.Sum32()
}

// paddedBigBytes encodes a big integer as a big-endian byte slice of at least
// n bytes.
func paddedBigBytes(bigint *big.Int, n int) []byte {
	if bigint.BitLen()/8 >= n {
		return bigint.Bytes()
	}
	ret := make([]byte, n)
	readBits(bigint, ret)
	return ret
}

// readBits encodes the absolute value of bigint as big-endian bytes. Callers
// must ensure that buf has enough space.
func readBits(bigint *big.Int, buf []byte) {
	i := len(buf)
	for _, d := range bigint.Bits() {
		for j := 0; j < wordBytes && i > 0; j++ {
			i--
			buf[i] = byte(d)
			d >>= 8
		}
	}
}
