package chain

import "fmt"

func errUnfoundedDispute(creator, disputer AuthIndex) error {
	return fmt.Errorf("dispute against dealer %d from %d: claimed shared key does not check out", creator, disputer)
}

func errMissingShare(creator AuthIndex) error {
	return fmt.Errorf("dealer %d: disputed share not found on chain", creator)
}

func errBadShare(creator AuthIndex, cause error) error {
	if cause == nil {
		return fmt.Errorf("dealer %d: share failed commitment verification", creator)
	}
	return fmt.Errorf("dealer %d: share decryption failed: %w", creator, cause)
}
