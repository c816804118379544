package randomgate

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dkgmesh/dkg-node/internal/obs"
)

// Hash is a block hash as produced by the host chain.
type Hash [32]byte

func hashToNonce(h Hash) Nonce {
	return Nonce(h[:])
}

// Header carries the minimal block metadata the filter needs.
type Header struct {
	Hash       Hash
	ParentHash Hash
	Number     uint64
	HasBody    bool
}

// ImportResult mirrors the host's sp_consensus::ImportResult at the level
// of detail this filter cares about: did the inner importer accept it.
type ImportResult struct {
	Imported bool
}

// Inner is the wrapped block-import path this filter sits in front of,
// standing in for the generic `I: BlockImport<B>` the Rust type wraps.
type Inner interface {
	ImportBlock(ctx context.Context, header Header) (ImportResult, error)
}

// StatusChecker reports whether a hash has already been imported, letting
// the filter skip re-notifying the beacon for a nonce it already resolved
// in a previous run — the Rust hash_to_nonce's BlockStatus::InChain check.
type StatusChecker interface {
	InChain(h Hash) bool
}

// BlockImport wraps Inner with the randomness gate: import_block first
// clears stale randomness for the new block's parent, then — if the block
// carries a body — blocks until the parent's randomness nonce resolves
// before delegating to Inner.
type BlockImport struct {
	Inner  Inner
	Gate   *Gate
	Status StatusChecker
	Log    *zap.Logger

	// CheckInherentsAfter mirrors check_inherents_after: blocks numbered below
	// this skip the randomness wait entirely (genesis bootstrap); the block
	// at exactly this number already waits.
	CheckInherentsAfter uint64

	mu              sync.Mutex
	alreadyNotified map[Nonce]struct{}
}

// NewBlockImport wires a gated importer. log and status may be nil in
// tests that don't care about logging or dedup.
func NewBlockImport(inner Inner, gate *Gate, status StatusChecker, log *zap.Logger) *BlockImport {
	if log == nil {
		log = zap.NewNop()
	}
	return &BlockImport{
		Inner:           inner,
		Gate:            gate,
		Status:          status,
		Log:             log,
		alreadyNotified: make(map[Nonce]struct{}),
	}
}

// ImportBlock is the redesigned import_block: randomness eviction runs
// unconditionally (clear_old_random_bytes), the wait runs only when the
// block carries a body and the block number is at least CheckInherentsAfter,
// and any panic inside the wait is recovered and reported rather than
// crashing the host (spec.md §7.3).
func (b *BlockImport) ImportBlock(ctx context.Context, header Header) (res ImportResult, err error) {
	defer obs.RecoverAndReport(b.Log, "randomgate-import")

	parentNonce := hashToNonce(header.ParentHash)
	b.Gate.Evict(parentNonce)

	if header.HasBody && header.Number >= b.CheckInherentsAfter {
		if _, err := b.Gate.Await(ctx, parentNonce); err != nil {
			b.Log.Info("randomgate: import blocked waiting for randomness",
				zap.String("nonce", fmt.Sprintf("%x", []byte(parentNonce))), zap.Error(err))
			return ImportResult{}, err
		}
	}

	if nonce, ok := b.hashToNonce(header.Hash); ok {
		if err := b.Gate.Request(nonce); err != nil {
			b.Log.Info("randomgate: failed to request randomness for new block",
				zap.String("nonce", fmt.Sprintf("%x", []byte(nonce))), zap.Error(err))
			return ImportResult{}, err
		}
	}

	return b.Inner.ImportBlock(ctx, header)
}

// hashToNonce returns the nonce for h, or false if h was already imported
// (mirrors the original's "returns None if hash was already processed").
func (b *BlockImport) hashToNonce(h Hash) (Nonce, bool) {
	if b.Status != nil && b.Status.InChain(h) {
		return "", false
	}
	nonce := hashToNonce(h)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, seen := b.alreadyNotified[nonce]; seen {
		return "", false
	}
	b.alreadyNotified[nonce] = struct{}{}
	return nonce, true
}
