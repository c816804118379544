// Package encryption implements the asymmetric share-encryption capability
// of spec component 4.C. A receiver's EncryptionPublicKey and a sender's
// secret scalar yield a shared EncryptionKey; the key can encrypt/decrypt a
// 32-byte share, and — because both public keys carry a G1 and a G2
// projection of the same secret — anyone can publicly verify that a
// claimed shared key really was derived from two specific public keys via
// a pairing check. That public verifiability is what makes a dispute over
// a dealt share adjudicable on-chain without revealing either secret.
package encryption

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/dkgmesh/dkg-node/pkg/crypto/scalar"
)

// EncryptionPublicKey carries both group projections of a secret scalar so
// that shared-key derivation can later be checked by pairing.
type EncryptionPublicKey struct {
	G1 kyber.Point
	G2 kyber.Point
}

// FromRawScalar derives the dual public key for a locally held secret.
func FromRawScalar(secret kyber.Scalar) EncryptionPublicKey {
	return EncryptionPublicKey{
		G1: scalar.Suite.G1().Point().Mul(secret, nil),
		G2: scalar.Suite.G2().Point().Mul(secret, nil),
	}
}

// MarshalBinary serializes both projections, G1 then G2.
func (pk EncryptionPublicKey) MarshalBinary() ([]byte, error) {
	g1, err := pk.G1.MarshalBinary()
	if err != nil {
		return nil, err
	}
	g2, err := pk.G2.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(g1, g2...), nil
}

// EncryptionKey is the Diffie-Hellman secret shared between two parties,
// represented as a point in G1.
type EncryptionKey struct {
	K kyber.Point
}

// ToEncryptionKey derives the shared key between the holder of mySecret and
// the peer whose public key is pk: K = mySecret · pk.G1.
func ToEncryptionKey(pk EncryptionPublicKey, mySecret kyber.Scalar) EncryptionKey {
	return EncryptionKey{K: scalar.Suite.G1().Point().Mul(mySecret, pk.G1)}
}

// IsCorrect publicly verifies that ek is indeed the shared key between
// pkCreator and pkIssuer, without needing either party's secret scalar.
// It holds because e(s_c·s_i·G1, G2) == e(s_c·G1, s_i·G2) by bilinearity.
func (ek EncryptionKey) IsCorrect(pkCreator, pkIssuer EncryptionPublicKey) bool {
	g2Base := scalar.Suite.G2().Point().Base()
	lhs := scalar.Suite.Pair(ek.K, g2Base)
	rhs := scalar.Suite.Pair(pkCreator.G1, pkIssuer.G2)
	return lhs.Equal(rhs)
}

func (ek EncryptionKey) symmetricKey() (*[32]byte, error) {
	raw, err := ek.K.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encryption: marshal shared point: %w", err)
	}
	key := sha256.Sum256(raw)
	return &key, nil
}

// EncryptedShare is a 32-byte share sealed with a random 24-byte nonce and
// secretbox's Poly1305 tag, all inline.
type EncryptedShare []byte

// Encrypt seals a 32-byte scalar share under ek.
func (ek EncryptionKey) Encrypt(share [scalar.Len]byte) (EncryptedShare, error) {
	key, err := ek.symmetricKey()
	if err != nil {
		return nil, err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("encryption: nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], share[:], &nonce, key)
	return EncryptedShare(sealed), nil
}

// Decrypt opens a share previously sealed with Encrypt. It returns an error
// if the ciphertext is malformed or authentication fails.
func (ek EncryptionKey) Decrypt(es EncryptedShare) (*[scalar.Len]byte, error) {
	if len(es) < 24+secretbox.Overhead {
		return nil, fmt.Errorf("encryption: ciphertext too short")
	}
	key, err := ek.symmetricKey()
	if err != nil {
		return nil, err
	}
	var nonce [24]byte
	copy(nonce[:], es[:24])
	opened, ok := secretbox.Open(nil, es[24:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("encryption: authentication failed")
	}
	if len(opened) != scalar.Len {
		return nil, fmt.Errorf("encryption: unexpected plaintext length %d", len(opened))
	}
	var out [scalar.Len]byte
	copy(out[:], opened)
	return &out, nil
}
