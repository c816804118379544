package chain

import (
	"go.uber.org/zap"

	"github.com/dkgmesh/dkg-node/pkg/crypto/commitment"
)

// RoundEndedRecorder receives the RoundEnded(round, count) event for metrics
// export. internal/obs implements this over Prometheus counters/gauges;
// tests can supply a no-op.
type RoundEndedRecorder interface {
	RoundEnded(round int, count uint64)
}

// Finalize runs the round-2-deadline hook: it computes the qualified set,
// derives the master verification key and the per-member verification
// keys, and emits the RoundEnded event for round 2 (spec.md §4.H). Callers
// run this once, when the block-finalization hook observes
// bn == RoundEnd(dkgReady, 2).
func (s *Store) Finalize(log *zap.Logger, rec RoundEndedRecorder) {
	q := s.QualifiedSet()

	constantTerms := make([]commitment.Commitment, 0, len(q))
	for _, i := range q {
		poly, _ := s.CommittedPolynomial(i)
		if len(poly) > 0 {
			constantTerms = append(constantTerms, poly[0])
		}
	}
	mvk := commitment.DeriveKey(constantTerms)

	n := s.NMembers()
	vks := make([]commitment.VerifyKey, n)
	for ix := uint64(0); ix < n; ix++ {
		var atIX []commitment.Commitment
		for _, i := range q {
			poly, _ := s.CommittedPolynomial(i)
			atIX = append(atIX, commitment.PolyEval(poly, positionOf(AuthIndex(ix))))
		}
		vks[ix] = commitment.DeriveKey(atIX)
	}

	s.setFinalKeys(mvk, vks)

	count := s.CountSuccessfulNodes()
	log.Info("round ended", zap.Int("round", 2), zap.Uint64("count", count), zap.Int("qualified", len(q)))
	if rec != nil {
		rec.RoundEnded(2, count)
	}
}

// EmitRoundEnded logs and records the RoundEnded event for rounds other
// than 2, whose count is derived differently (round 0: registered keys;
// round 1, 3: qualified dealers) but which carry no state transition of
// their own.
func (s *Store) EmitRoundEnded(round int, log *zap.Logger, rec RoundEndedRecorder) {
	var count uint64
	if round == 0 {
		count = s.CountEncryptionKeysReceived()
	} else {
		count = s.CountSuccessfulNodes()
	}
	log.Info("round ended", zap.Int("round", round), zap.Uint64("count", count))
	if rec != nil {
		rec.RoundEnded(round, count)
	}
}
