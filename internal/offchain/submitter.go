package offchain

import (
	"go.uber.org/zap"

	"github.com/dkgmesh/dkg-node/internal/chain"
	"github.com/dkgmesh/dkg-node/pkg/crypto/commitment"
	"github.com/dkgmesh/dkg-node/pkg/crypto/encryption"
)

// DirectSubmitter applies transactions straight to the shared chain.Store,
// standing in for send_signed_transaction in this single-process design
// where the replicated log (spec.md §1) is assumed, not implemented.
type DirectSubmitter struct {
	Store  *chain.Store
	Hashes chain.HashSource
	Log    *zap.Logger
}

func (d *DirectSubmitter) SubmitEncryptionKey(origin chain.Origin, bn uint64, pk encryption.EncryptionPublicKey) error {
	d.Store.PostEncryptionKey(origin, bn, pk, d.Log)
	return nil
}

func (d *DirectSubmitter) SubmitSecretShares(origin chain.Origin, bn uint64, shares map[chain.AuthIndex]encryption.EncryptedShare, commPoly []commitment.Commitment, hashRound0 chain.Hash) error {
	d.Store.PostSecretShares(origin, bn, shares, commPoly, hashRound0, d.Hashes, d.Log)
	return nil
}

func (d *DirectSubmitter) SubmitDisputes(origin chain.Origin, bn uint64, disputes []chain.Dispute, hashRound1 chain.Hash) error {
	return d.Store.PostDisputes(origin, bn, disputes, hashRound1, d.Hashes, d.Log)
}
