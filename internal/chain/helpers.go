package chain

import (
	"fmt"

	"go.dedis.ch/kyber/v3"

	"github.com/dkgmesh/dkg-node/pkg/crypto/scalar"
)

// positionOf returns the polynomial evaluation point assigned to ix: shares
// are evaluated at ix+1 so that no committee member ever holds the
// constant-term secret at x=0.
func positionOf(ix AuthIndex) kyber.Scalar {
	return scalar.FromUint64(uint64(ix) + 1)
}

func shareToScalar(raw [scalar.Len]byte) (kyber.Scalar, error) {
	s, err := scalar.FromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("chain: decode share scalar: %w", err)
	}
	return s, nil
}
