// Package commitment implements the Feldman/Pedersen commitment capability
// the DKG protocol treats as an opaque primitive (spec component 4.B):
// hiding/binding commitments to scalars, homomorphic polynomial evaluation
// in the commitment group, and aggregate verify-key derivation. Commitments
// and verify keys live in the same BN256 G2 group, so a VerifyKey is simply
// a Commitment under another name — the same representation the original
// sp_dkg crate uses.
package commitment

import (
	"go.dedis.ch/kyber/v3"

	"github.com/dkgmesh/dkg-node/pkg/crypto/scalar"
)

// Commitment is a hiding/binding commitment to a scalar, realized as a
// point in the BN256 G2 group.
type Commitment struct {
	P kyber.Point
}

// VerifyKey is the aggregate public key produced at finalization. It shares
// Commitment's representation since both live in G2.
type VerifyKey = Commitment

// New computes a commitment to s: s·G2.
func New(s kyber.Scalar) Commitment {
	return Commitment{P: scalar.Suite.G2().Point().Mul(s, nil)}
}

// MarshalBinary serializes the commitment for on-chain storage/transmission.
func (c Commitment) MarshalBinary() ([]byte, error) {
	return c.P.MarshalBinary()
}

// UnmarshalCommitment decodes a commitment previously produced by MarshalBinary.
func UnmarshalCommitment(raw []byte) (Commitment, error) {
	p := scalar.Suite.G2().Point()
	if err := p.UnmarshalBinary(raw); err != nil {
		return Commitment{}, err
	}
	return Commitment{P: p}, nil
}

// PolyEval returns the commitment to P(x), where commitments[i] is the
// commitment to the degree-i coefficient of P. This is the homomorphic
// evaluation that lets a recipient verify a dealt share without learning
// the polynomial: evaluation is done directly in the commitment group via
// Horner's rule, mirroring scalar.Eval but operating on points.
func PolyEval(commitments []Commitment, x kyber.Scalar) Commitment {
	acc := scalar.Suite.G2().Point().Null()
	for i := len(commitments) - 1; i >= 0; i-- {
		acc = scalar.Suite.G2().Point().Mul(x, acc)
		acc = scalar.Suite.G2().Point().Add(acc, commitments[i].P)
	}
	return Commitment{P: acc}
}

// DeriveKey aggregates a set of commitments (the degree-0 coefficient
// commitments of the qualified dealers, or their per-member poly
// evaluations) into a single VerifyKey by summing them in the group.
func DeriveKey(commitments []Commitment) VerifyKey {
	acc := scalar.Suite.G2().Point().Null()
	for _, c := range commitments {
		acc = scalar.Suite.G2().Point().Add(acc, c.P)
	}
	return VerifyKey{P: acc}
}

// VerifyShare returns true iff s is the scalar opening of c, i.e. c == s·G2.
func (c Commitment) VerifyShare(s kyber.Scalar) bool {
	expected := scalar.Suite.G2().Point().Mul(s, nil)
	return expected.Equal(c.P)
}

// Equal reports whether two commitments are the same group element.
func (c Commitment) Equal(other Commitment) bool {
	return c.P.Equal(other.P)
}
