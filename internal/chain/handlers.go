package chain

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dkgmesh/dkg-node/pkg/crypto/commitment"
	"github.com/dkgmesh/dkg-node/pkg/crypto/encryption"
)

// HashSource resolves the canonical hash of a finalized block, standing in
// for the host chain's block_hash(bn) query (spec.md §4.F). The DKG module
// never produces hashes itself.
type HashSource interface {
	BlockHash(bn uint64) (Hash, error)
}

// Origin is a transaction's claimed sender: an authority index plus the
// public identifier that actually signed it. Handlers only check that the
// two agree with the genesis roster — real signature verification is
// "transaction signing infrastructure" and out of scope per spec.md §1.
type Origin struct {
	Index  AuthIndex
	Signer string
}

func (s *Store) checkAuthority(o Origin) bool {
	a, ok := s.AuthorityAt(o.Index)
	return ok && a == o.Signer
}

// Dispute is one item of a post_disputes batch: a claim that creator's
// round-1 submission was bad, backed by the shared key the disputer
// derived with the dealer.
type Dispute struct {
	Creator   AuthIndex
	SharedKey encryption.EncryptionKey
}

// PostEncryptionKey handles a round-0 submission. Invalid submissions are
// silently dropped — nothing here can fail the enclosing transaction, per
// spec.md §4.F.
func (s *Store) PostEncryptionKey(origin Origin, bn uint64, pk encryption.EncryptionPublicKey, log *zap.Logger) {
	r, ok := RoundOf(s.DKGReady(), bn)
	if !ok || r != 0 {
		log.Debug("post_encryption_key: outside round 0 window", zap.Uint64("block", bn))
		return
	}
	if !s.checkAuthority(origin) {
		log.Debug("post_encryption_key: signer mismatch", zap.Uint32("index", uint32(origin.Index)))
		return
	}
	s.setEncryptionPK(origin.Index, pk)
}

// PostSecretShares handles a round-1 submission.
func (s *Store) PostSecretShares(
	origin Origin,
	bn uint64,
	shares map[AuthIndex]encryption.EncryptedShare,
	commPoly []commitment.Commitment,
	hashRound0 Hash,
	hashes HashSource,
	log *zap.Logger,
) {
	dkgReady := s.DKGReady()
	r, ok := RoundOf(dkgReady, bn)
	if !ok || r != 1 {
		log.Debug("post_secret_shares: outside round 1 window", zap.Uint64("block", bn))
		return
	}
	if !s.checkAuthority(origin) {
		log.Debug("post_secret_shares: signer mismatch", zap.Uint32("index", uint32(origin.Index)))
		return
	}
	if uint64(len(commPoly)) != s.Threshold() {
		log.Debug("post_secret_shares: wrong commitment vector length", zap.Int("got", len(commPoly)))
		return
	}
	if uint64(len(shares)) > s.NMembers() {
		log.Debug("post_secret_shares: too many shares", zap.Int("got", len(shares)))
		return
	}
	want, err := hashes.BlockHash(RoundEnd(dkgReady, 0))
	if err != nil || want != hashRound0 {
		log.Debug("post_secret_shares: stale or invalid hash_round0", zap.Uint32("index", uint32(origin.Index)))
		return
	}
	if _, haveKey := s.EncryptionPK(origin.Index); !haveKey {
		log.Debug("post_secret_shares: no registered encryption key", zap.Uint32("index", uint32(origin.Index)))
		return
	}

	nonEmpty := make(map[AuthIndex]encryption.EncryptedShare, len(shares))
	for j, share := range shares {
		if len(share) > 0 {
			nonEmpty[j] = share
		}
	}
	s.setRound1(origin.Index, nonEmpty, commPoly)
	log.Debug("post_secret_shares: accepted", zap.Uint32("index", uint32(origin.Index)), zap.Int("shares", len(nonEmpty)))
}

// PostDisputes handles a round-2 submission. Every item in the batch is
// processed independently: a malformed or unfounded dispute is dropped
// without affecting its siblings (the fault-isolation invariant of
// spec.md §4.F). Per-item diagnostic notes are aggregated and logged at
// Debug level only; the returned error is always nil, since nothing here
// fails the transaction.
func (s *Store) PostDisputes(
	origin Origin,
	bn uint64,
	disputes []Dispute,
	hashRound1 Hash,
	hashes HashSource,
	log *zap.Logger,
) error {
	dkgReady := s.DKGReady()
	r, ok := RoundOf(dkgReady, bn)
	if !ok || r != 2 {
		log.Debug("post_disputes: outside round 2 window", zap.Uint64("block", bn))
		return nil
	}
	if !s.checkAuthority(origin) {
		log.Debug("post_disputes: signer mismatch", zap.Uint32("index", uint32(origin.Index)))
		return nil
	}
	want, err := hashes.BlockHash(RoundEnd(dkgReady, 1))
	if err != nil || want != hashRound1 {
		log.Debug("post_disputes: stale or invalid hash_round1", zap.Uint32("index", uint32(origin.Index)))
		return nil
	}

	var notes error
	for _, d := range disputes {
		if err := s.resolveDispute(origin.Index, d); err != nil {
			notes = multierr.Append(notes, err)
		}
	}
	if notes != nil {
		log.Debug("post_disputes: batch notes", zap.Error(notes), zap.Uint32("disputer", uint32(origin.Index)))
	}
	return nil
}

func (s *Store) resolveDispute(disputer AuthIndex, d Dispute) error {
	if !s.IsCorrectDealer(d.Creator) {
		return nil
	}

	creatorPK, ok := s.EncryptionPK(d.Creator)
	if !ok {
		return nil
	}
	disputerPK, ok := s.EncryptionPK(disputer)
	if !ok {
		return nil
	}
	if !d.SharedKey.IsCorrect(creatorPK, disputerPK) {
		return errUnfoundedDispute(d.Creator, disputer)
	}

	es, ok := s.EncryptedShare(d.Creator, disputer)
	if !ok {
		s.markIncorrectDealer(d.Creator)
		return errMissingShare(d.Creator)
	}

	share, err := d.SharedKey.Decrypt(es)
	if err != nil {
		s.markIncorrectDealer(d.Creator)
		return errBadShare(d.Creator, err)
	}

	commPoly, ok := s.CommittedPolynomial(d.Creator)
	if !ok {
		s.markIncorrectDealer(d.Creator)
		return errMissingShare(d.Creator)
	}
	scalarShare, err := shareToScalar(*share)
	if err != nil {
		s.markIncorrectDealer(d.Creator)
		return errBadShare(d.Creator, err)
	}
	expected := commitment.PolyEval(commPoly, positionOf(disputer))
	if !expected.VerifyShare(scalarShare) {
		s.markIncorrectDealer(d.Creator)
		return errBadShare(d.Creator, nil)
	}
	return nil
}
