// Package offchain implements the per-authority offchain worker: the local
// logic each committee member runs once per block to advance its own
// participation in the DKG (spec component 4.G). The host capabilities the
// original Substrate pallet pulls from its runtime trait bounds
// (local_authority_key, signer.can_sign, send_signed_transaction) are
// modeled here as small injected interfaces, per the design note in
// spec.md §9 ("expose the DKG pallet logic over a capability set").
package offchain

import (
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.uber.org/zap"

	"github.com/dkgmesh/dkg-node/internal/chain"
	"github.com/dkgmesh/dkg-node/internal/localstore"
	"github.com/dkgmesh/dkg-node/internal/obs"
	"github.com/dkgmesh/dkg-node/pkg/crypto/commitment"
	"github.com/dkgmesh/dkg-node/pkg/crypto/encryption"
	"github.com/dkgmesh/dkg-node/pkg/crypto/scalar"
)

// AuthorityKeyFinder resolves which committee member, if any, this node
// speaks for locally. It stands in for the original's
// local_authority_key(), which scans the node's configured session keys
// against the on-chain authority set.
type AuthorityKeyFinder interface {
	LocalAuthorityKey(store *chain.Store) (ix chain.AuthIndex, authority string, ok bool)
}

// Signer reports whether the node currently holds signing capability for
// an authority, standing in for signer.can_sign().
type Signer interface {
	CanSign(authority string) bool
}

// TxSubmitter dispatches a signed transaction to the host chain, standing
// in for send_signed_transaction. Implementations apply the transaction
// directly against the shared chain.Store in this single-process design
// (spec.md §1's replicated log is an external collaborator this module
// never constructs).
type TxSubmitter interface {
	SubmitEncryptionKey(origin chain.Origin, bn uint64, pk encryption.EncryptionPublicKey) error
	SubmitSecretShares(origin chain.Origin, bn uint64, shares map[chain.AuthIndex]encryption.EncryptedShare, commPoly []commitment.Commitment, hashRound0 chain.Hash) error
	SubmitDisputes(origin chain.Origin, bn uint64, disputes []chain.Dispute, hashRound1 chain.Hash) error
}

// Worker runs the per-block offchain routine for one local authority.
type Worker struct {
	Store   *chain.Store
	Local   *localstore.Store
	Keys    AuthorityKeyFinder
	Signer  Signer
	Tx      TxSubmitter
	Hashes  chain.HashSource
	Log     *zap.Logger
}

// RunBlock dispatches the round matching bn and recovers any panic inside
// it, reporting to Sentry and logging at Error — an offchain round must
// never crash the host (spec.md §7.3).
func (w *Worker) RunBlock(bn uint64) {
	defer obs.RecoverAndReport(w.Log, "offchain-worker")

	dkgReady := w.Store.DKGReady()
	round, ok := chain.RoundOf(dkgReady, bn)
	if !ok {
		return
	}
	if !chain.IsRoundEnd(dkgReady, round, bn) {
		// Only the original pallet's on_finalize-style trigger matters for
		// round 0-3 submission timing in this design: rounds run exactly
		// once, at their own deadline block, mirroring the "handle_roundN
		// invoked at round_end(n)" contract derived from lib.rs.
		return
	}

	ix, authority, ok := w.Keys.LocalAuthorityKey(w.Store)
	if !ok {
		w.Log.Debug("offchain: local authority key not found, skipping round", zap.Uint64("block", bn))
		return
	}
	if !w.Signer.CanSign(authority) {
		w.Log.Info("offchain: no signing capability, skipping round", zap.Uint32("index", uint32(ix)))
		return
	}

	switch round {
	case 0:
		w.runRound0(ix, authority, bn)
	case 1:
		w.runRound1(ix, authority, bn, dkgReady)
	case 2:
		w.runRound2(ix, authority, bn, dkgReady)
	case 3:
		w.runRound3(ix, authority, bn)
	}
}

func (w *Worker) runRound0(ix chain.AuthIndex, authority string, bn uint64) {
	key, err := localstore.BuildKey("enc_key", 0, w.Store.DKGReady(), w.Hashes)
	if err != nil {
		w.Log.Error("offchain round0: build key", zap.Error(err))
		return
	}

	secret, err := localstore.Mutate(w.Local, key, func() ([32]byte, error) {
		s := scalar.Random()
		return scalar.ToBytes(s)
	})
	if err == localstore.ErrAlreadySet {
		return
	}
	if err != nil {
		w.Log.Error("offchain round0: generate secret", zap.Error(err))
		return
	}

	s, err := scalar.FromBytes(secret)
	if err != nil {
		w.Log.Error("offchain round0: decode secret", zap.Error(err))
		return
	}
	pk := encryption.FromRawScalar(s)
	if err := w.Tx.SubmitEncryptionKey(chain.Origin{Index: ix, Signer: authority}, bn, pk); err != nil {
		w.Log.Error("offchain round0: submit tx", zap.Error(err))
	}
}

func (w *Worker) runRound1(ix chain.AuthIndex, authority string, bn uint64, dkgReady uint64) {
	key, err := localstore.BuildKey("secret_poly", 1, dkgReady, w.Hashes)
	if err != nil {
		w.Log.Error("offchain round1: build key", zap.Error(err))
		return
	}

	threshold := w.Store.Threshold()
	poly, err := localstore.Mutate(w.Local, key, func() ([][scalar.Len]byte, error) {
		coeffs := scalar.RandomPoly(int(threshold))
		out := make([][scalar.Len]byte, len(coeffs))
		for i, c := range coeffs {
			raw, err := scalar.ToBytes(c)
			if err != nil {
				return nil, err
			}
			out[i] = raw
		}
		return out, nil
	})
	if err == localstore.ErrAlreadySet {
		return
	}
	if err != nil {
		w.Log.Error("offchain round1: generate polynomial", zap.Error(err))
		return
	}

	coeffs, err := decodeScalars(poly)
	if err != nil {
		w.Log.Error("offchain round1: decode polynomial", zap.Error(err))
		return
	}

	myEncSecretRaw, ok, err := localstore.Get[[scalar.Len]byte](w.Local, mustKey(w, "enc_key", 0, dkgReady))
	if err != nil || !ok {
		w.Log.Error("offchain round1: missing local round-0 encryption secret", zap.Error(err))
		return
	}
	myEncSecret, err := scalar.FromBytes(myEncSecretRaw)
	if err != nil {
		w.Log.Error("offchain round1: decode encryption secret", zap.Error(err))
		return
	}

	commPoly := make([]commitment.Commitment, len(coeffs))
	for i, c := range coeffs {
		commPoly[i] = commitment.New(c)
	}

	peers := w.Store.EncryptionPKs()
	shares := make(map[chain.AuthIndex]encryption.EncryptedShare, len(peers))
	n := w.Store.NMembers()
	for j := uint64(0); j < n; j++ {
		peerIx := chain.AuthIndex(j)
		peerPK, ok := peers[peerIx]
		if !ok {
			continue
		}
		ek := encryption.ToEncryptionKey(peerPK, myEncSecret)
		x := scalar.FromUint64(j + 1)
		shareScalar := scalar.Eval(coeffs, x)
		raw, err := scalar.ToBytes(shareScalar)
		if err != nil {
			w.Log.Error("offchain round1: encode share", zap.Error(err), zap.Uint64("peer", j))
			continue
		}
		ct, err := ek.Encrypt(raw)
		if err != nil {
			w.Log.Error("offchain round1: encrypt share", zap.Error(err), zap.Uint64("peer", j))
			continue
		}
		shares[peerIx] = ct
	}

	hash0, err := w.Hashes.BlockHash(chain.RoundEnd(dkgReady, 0))
	if err != nil {
		w.Log.Error("offchain round1: resolve hash_round0", zap.Error(err))
		return
	}

	if err := w.Tx.SubmitSecretShares(chain.Origin{Index: ix, Signer: authority}, bn, shares, commPoly, hash0); err != nil {
		w.Log.Error("offchain round1: submit tx", zap.Error(err))
	}
}

func (w *Worker) runRound2(ix chain.AuthIndex, authority string, bn uint64, dkgReady uint64) {
	key, err := localstore.BuildKey("verified_shares", 2, dkgReady, w.Hashes)
	if err != nil {
		w.Log.Error("offchain round2: build key", zap.Error(err))
		return
	}

	if _, already, _ := localstore.Get[map[string][scalar.Len]byte](w.Local, key); already {
		return
	}

	mySecret, ok, err := localstore.Get[[scalar.Len]byte](w.Local, mustKey(w, "enc_key", 0, dkgReady))
	if err != nil || !ok {
		w.Log.Debug("offchain round2: no local encryption secret, skipping")
		return
	}
	mySecretScalar, err := scalar.FromBytes(mySecret)
	if err != nil {
		w.Log.Error("offchain round2: decode secret", zap.Error(err))
		return
	}

	n := w.Store.NMembers()
	verified := make(map[string][scalar.Len]byte)
	var disputes []chain.Dispute

	for c := uint64(0); c < n; c++ {
		creator := chain.AuthIndex(c)
		creatorPK, ok := w.Store.EncryptionPK(creator)
		if !ok {
			continue
		}
		sharedKey := encryption.ToEncryptionKey(creatorPK, mySecretScalar)

		es, ok := w.Store.EncryptedShare(creator, ix)
		if !ok {
			disputes = append(disputes, chain.Dispute{Creator: creator, SharedKey: sharedKey})
			continue
		}
		share, err := sharedKey.Decrypt(es)
		if err != nil {
			disputes = append(disputes, chain.Dispute{Creator: creator, SharedKey: sharedKey})
			continue
		}
		poly, ok := w.Store.CommittedPolynomial(creator)
		if !ok {
			disputes = append(disputes, chain.Dispute{Creator: creator, SharedKey: sharedKey})
			continue
		}
		shareScalar, err := scalar.FromBytes(*share)
		if err != nil {
			disputes = append(disputes, chain.Dispute{Creator: creator, SharedKey: sharedKey})
			continue
		}
		expected := commitment.PolyEval(poly, scalar.FromUint64(uint64(ix)+1))
		if !expected.VerifyShare(shareScalar) {
			disputes = append(disputes, chain.Dispute{Creator: creator, SharedKey: sharedKey})
			continue
		}
		verified[fmt.Sprintf("%d", c)] = *share
	}

	if _, err := localstore.Mutate(w.Local, key, func() (map[string][scalar.Len]byte, error) {
		return verified, nil
	}); err != nil && err != localstore.ErrAlreadySet {
		w.Log.Error("offchain round2: persist verified shares", zap.Error(err))
		return
	}

	hash1, err := w.Hashes.BlockHash(chain.RoundEnd(dkgReady, 1))
	if err != nil {
		w.Log.Error("offchain round2: resolve hash_round1", zap.Error(err))
		return
	}
	if err := w.Tx.SubmitDisputes(chain.Origin{Index: ix, Signer: authority}, bn, disputes, hash1); err != nil {
		w.Log.Error("offchain round2: submit tx", zap.Error(err))
	}
}

func (w *Worker) runRound3(ix chain.AuthIndex, authority string, bn uint64) {
	dkgReady := w.Store.DKGReady()
	verifiedKey, err := localstore.BuildKey("verified_shares", 2, dkgReady, w.Hashes)
	if err != nil {
		w.Log.Error("offchain round3: build key", zap.Error(err))
		return
	}
	verified, ok, err := localstore.Get[map[string][scalar.Len]byte](w.Local, verifiedKey)
	if err != nil || !ok {
		w.Log.Debug("offchain round3: no verified shares recorded locally, skipping")
		return
	}

	secretKey, ok := w.Store.StorageKeySK(w.Hashes)
	if !ok {
		w.Log.Error("offchain round3: storage_key_sk unavailable before round 2's deadline hash resolves")
		return
	}

	_, err = localstore.Mutate(w.Local, secretKey, func() ([scalar.Len]byte, error) {
		sum := scalar.Zero()
		n := w.Store.NMembers()
		for c := uint64(0); c < n; c++ {
			if !w.Store.IsCorrectDealer(chain.AuthIndex(c)) {
				continue
			}
			raw, ok := verified[fmt.Sprintf("%d", c)]
			if !ok {
				continue
			}
			s, err := scalar.FromBytes(raw)
			if err != nil {
				return [scalar.Len]byte{}, err
			}
			sum = sum.Add(sum, s)
		}
		return scalar.ToBytes(sum)
	})
	if err != nil && err != localstore.ErrAlreadySet {
		w.Log.Error("offchain round3: derive secret key", zap.Error(err))
		return
	}
	w.Log.Info("offchain round3: threshold secret key share derived", zap.Uint32("index", uint32(ix)))
}

func decodeScalars(raw [][scalar.Len]byte) ([]kyber.Scalar, error) {
	out := make([]kyber.Scalar, len(raw))
	for i, r := range raw {
		s, err := scalar.FromBytes(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func mustKey(w *Worker, prefix string, round int, dkgReady uint64) string {
	k, err := localstore.BuildKey(prefix, round, dkgReady, w.Hashes)
	if err != nil {
		return prefix
	}
	return k
}
