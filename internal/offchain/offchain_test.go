package offchain

import (
	"fmt"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/dkgmesh/dkg-node/internal/chain"
	"github.com/dkgmesh/dkg-node/internal/localstore"
)

type fakeHashes struct{}

func (fakeHashes) BlockHash(bn uint64) (chain.Hash, error) {
	var h chain.Hash
	copy(h[:], fmt.Sprintf("block-%d", bn))
	return h, nil
}

type staticKeyFinder struct {
	ix        chain.AuthIndex
	authority string
}

func (f staticKeyFinder) LocalAuthorityKey(*chain.Store) (chain.AuthIndex, string, bool) {
	return f.ix, f.authority, true
}

type alwaysCanSign struct{}

func (alwaysCanSign) CanSign(string) bool { return true }

func newWorker(t *testing.T, store *chain.Store, ix chain.AuthIndex, authority string) *Worker {
	t.Helper()
	dir := t.TempDir()
	local, err := localstore.Open(filepath.Join(dir, fmt.Sprintf("authority-%d.json", ix)))
	if err != nil {
		t.Fatalf("localstore.Open failed: %v", err)
	}
	log := zap.NewNop()
	hashes := fakeHashes{}
	return &Worker{
		Store:  store,
		Local:  local,
		Keys:   staticKeyFinder{ix: ix, authority: authority},
		Signer: alwaysCanSign{},
		Tx:     &DirectSubmitter{Store: store, Hashes: hashes, Log: log},
		Hashes: hashes,
		Log:    log,
	}
}

func TestFullDKGRunWithTwoHonestAuthorities(t *testing.T) {
	const dkgReady = 100
	auths := []string{"authority-0", "authority-1"}
	store := chain.NewStore()
	if err := store.Init(auths, 2, dkgReady); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	w0 := newWorker(t, store, 0, auths[0])
	w1 := newWorker(t, store, 1, auths[1])
	workers := []*Worker{w0, w1}

	round0End := chain.RoundEnd(dkgReady, 0)
	round1End := chain.RoundEnd(dkgReady, 1)
	round2End := chain.RoundEnd(dkgReady, 2)
	round3End := chain.RoundEnd(dkgReady, 3)

	for _, w := range workers {
		w.RunBlock(round0End)
	}
	if store.CountEncryptionKeysReceived() != 2 {
		t.Fatalf("expected both authorities to register an encryption key, got %d", store.CountEncryptionKeysReceived())
	}

	for _, w := range workers {
		w.RunBlock(round1End)
	}
	if !store.IsCorrectDealer(0) || !store.IsCorrectDealer(1) {
		t.Fatalf("expected both dealers to be marked correct after round 1")
	}

	for _, w := range workers {
		w.RunBlock(round2End)
	}
	if !store.IsCorrectDealer(0) || !store.IsCorrectDealer(1) {
		t.Fatalf("honest dealers should survive round 2 with no disputes")
	}

	log := zap.NewNop()
	store.Finalize(log, nil)

	for _, w := range workers {
		w.RunBlock(round3End)
	}

	mvk, ok := store.MasterVerificationKey()
	if !ok {
		t.Fatalf("expected master verification key after finalize")
	}
	if _, ok := store.VerificationKeys(); !ok {
		t.Fatalf("expected verification keys after finalize")
	}
	_ = mvk
}

func TestRunBlockSkipsWhenNotRoundEnd(t *testing.T) {
	const dkgReady = 100
	auths := []string{"authority-0"}
	store := chain.NewStore()
	if err := store.Init(auths, 1, dkgReady); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	w := newWorker(t, store, 0, auths[0])

	w.RunBlock(1) // not a round-end block
	if store.CountEncryptionKeysReceived() != 0 {
		t.Fatalf("expected no submission on a non-deadline block")
	}
}

func TestRunBlockIsIdempotentAcrossRepeatedCalls(t *testing.T) {
	const dkgReady = 100
	auths := []string{"authority-0", "authority-1"}
	store := chain.NewStore()
	if err := store.Init(auths, 2, dkgReady); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	w0 := newWorker(t, store, 0, auths[0])

	round0End := chain.RoundEnd(dkgReady, 0)
	w0.RunBlock(round0End)
	first, _ := store.EncryptionPK(0)

	w0.RunBlock(round0End)
	second, _ := store.EncryptionPK(0)

	firstRaw, _ := first.MarshalBinary()
	secondRaw, _ := second.MarshalBinary()
	if string(firstRaw) != string(secondRaw) {
		t.Fatalf("expected re-running round 0 to be a no-op (idempotent local slot)")
	}
}
