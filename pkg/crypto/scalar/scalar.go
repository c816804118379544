// Package scalar provides the prime-field arithmetic the DKG protocol is
// built on: uniformly random field elements, byte (de)serialization, and
// polynomial evaluation by Horner's rule. All arithmetic happens in the
// scalar field of the BN256 pairing curve used by pkg/crypto/commitment and
// pkg/crypto/encryption, so a value produced here can be fed directly into
// either package.
package scalar

import (
	"fmt"
	"io"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/util/random"
)

// Suite is the shared BN256 pairing suite. Every scalar, commitment and
// encryption key in the DKG is drawn from this one suite so that group
// operations compose correctly across packages.
var Suite = bn256.NewSuite()

// Len is the byte length of a scalar's canonical little-endian encoding.
const Len = 32

// Random draws a uniformly random scalar using the suite's own field order.
func Random(stream ...io.Reader) kyber.Scalar {
	var src io.Reader
	if len(stream) > 0 && stream[0] != nil {
		src = stream[0]
	} else {
		src = random.New()
	}
	return Suite.G1().Scalar().Pick(src)
}

// RandomPoly samples the coefficients of a degree (t-1) polynomial, with
// coefficient 0 being the secret to be shared.
func RandomPoly(t int) []kyber.Scalar {
	coeffs := make([]kyber.Scalar, t)
	for i := range coeffs {
		coeffs[i] = Random()
	}
	return coeffs
}

// FromBytes decodes a 32-byte little-endian representation into a scalar.
func FromBytes(raw [Len]byte) (kyber.Scalar, error) {
	s := Suite.G1().Scalar()
	if err := s.UnmarshalBinary(raw[:]); err != nil {
		return nil, fmt.Errorf("scalar: unmarshal: %w", err)
	}
	return s, nil
}

// ToBytes encodes a scalar into its 32-byte little-endian representation.
func ToBytes(s kyber.Scalar) ([Len]byte, error) {
	var out [Len]byte
	raw, err := s.MarshalBinary()
	if err != nil {
		return out, fmt.Errorf("scalar: marshal: %w", err)
	}
	if len(raw) != Len {
		return out, fmt.Errorf("scalar: unexpected encoded length %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// FromUint64 returns the scalar representation of a small non-negative
// integer, used to build evaluation points x = index+1.
func FromUint64(v uint64) kyber.Scalar {
	return Suite.G1().Scalar().SetInt64(int64(v))
}

// Zero returns the additive identity of the scalar field.
func Zero() kyber.Scalar {
	return Suite.G1().Scalar().Zero()
}

// Eval evaluates the polynomial with the given coefficients (lowest degree
// first) at x, using Horner's rule from the highest-degree coefficient down.
func Eval(coeffs []kyber.Scalar, x kyber.Scalar) kyber.Scalar {
	result := Suite.G1().Scalar().Zero()
	for i := len(coeffs) - 1; i >= 0; i-- {
		result = Suite.G1().Scalar().Mul(result, x)
		result = Suite.G1().Scalar().Add(result, coeffs[i])
	}
	return result
}
