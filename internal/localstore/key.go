package localstore

import (
	"encoding/hex"

	"github.com/dkgmesh/dkg-node/internal/chain"
)

// BuildKey reproduces the Rust build_storage_key(prefix, round_number)
// scheme: "dkw::" + prefix, suffixed with the hex-encoded hash of the
// previous round's deadline block for round >= 1. Round 0 keys (enc_key,
// local_key_info) carry no suffix, since there is no previous round.
func BuildKey(prefix string, round int, dkgReady uint64, hashes chain.HashSource) (string, error) {
	key := "dkw::" + prefix
	if round < 1 {
		return key, nil
	}
	h, err := hashes.BlockHash(chain.RoundEnd(dkgReady, round-1))
	if err != nil {
		return "", err
	}
	return key + hex.EncodeToString(h[:]), nil
}
