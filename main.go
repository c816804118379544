package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dkgmesh/dkg-node/internal/chain"
	"github.com/dkgmesh/dkg-node/internal/localstore"
	"github.com/dkgmesh/dkg-node/internal/obs"
	"github.com/dkgmesh/dkg-node/internal/offchain"
	"github.com/dkgmesh/dkg-node/internal/randomgate"
)

// blockClock drives the per-block hooks (offchain worker, finalization)
// this node would otherwise receive from the host chain's import and
// finalization pipeline. The replicated log itself (spec.md §1's
// "broadcast channel") is an external collaborator this module never
// implements; blockClock exists only to give a standalone binary
// something to tick against, and to answer block_hash() queries.
type blockClock struct {
	hashes map[uint64]chain.Hash
}

func newBlockClock() *blockClock {
	return &blockClock{hashes: make(map[uint64]chain.Hash)}
}

func (c *blockClock) BlockHash(bn uint64) (chain.Hash, error) {
	if h, ok := c.hashes[bn]; ok {
		return h, nil
	}
	var h chain.Hash
	copy(h[:], fmt.Sprintf("block-%d", bn))
	c.hashes[bn] = h
	return h, nil
}

type localAuthorityKey struct {
	id string
}

func (k localAuthorityKey) LocalAuthorityKey(store *chain.Store) (chain.AuthIndex, string, bool) {
	return store.IndexOf(k.id)
}

type alwaysCanSign struct{}

func (alwaysCanSign) CanSign(string) bool { return true }

func main() {
	var (
		authorityID   = flag.String("authority", "", "This node's authority identifier (must appear in -authorities)")
		authorityList = flag.String("authorities", "", "Comma-separated, sorted list of committee authority identifiers")
		threshold     = flag.Uint64("threshold", 0, "Reconstruction threshold t")
		dkgReady      = flag.Uint64("dkg-ready", 0, "Terminal block number D for this DKG run")
		dataDir       = flag.String("data-dir", "", "Local data directory (default: ~/.dkgmesh/<authority>)")
		importTimeout = flag.Duration("import-timeout", 30*time.Second, "Max time the admission filter waits for randomness")
		env           = flag.String("env", "production", "Runtime environment (production or dev)")
	)
	flag.Parse()

	if *authorityID == "" || *authorityList == "" || *threshold == 0 || *dkgReady == 0 {
		fmt.Fprintln(os.Stderr, "usage: dkg-node -authority=<id> -authorities=<a,b,c> -threshold=<t> -dkg-ready=<D>")
		os.Exit(2)
	}

	log, err := obs.NewLogger(*env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	sentryCfg := obs.LoadConfigFromEnv()
	if active, err := obs.InitSentry(sentryCfg); err != nil {
		log.Warn("sentry initialization failed", zap.Error(err))
	} else if active {
		log.Info("sentry error reporting active")
	}
	metrics := obs.NewMetrics()

	authorities := strings.Split(*authorityList, ",")
	for i := range authorities {
		authorities[i] = strings.TrimSpace(authorities[i])
	}

	cm := NewConfigManager(*authorityID)
	cm.SetGenesis(authorities, *threshold, *dkgReady)
	cfg := cm.GetConfig()
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if err := cm.SaveConfig(cfg); err != nil {
		log.Warn("failed to persist config", zap.Error(err))
	}

	log.Info("starting dkg node",
		zap.String("authority", *authorityID),
		zap.Int("n_members", len(authorities)),
		zap.Uint64("threshold", *threshold),
		zap.Uint64("dkg_ready", *dkgReady),
	)

	store := chain.NewStore()
	if err := store.Init(authorities, *threshold, *dkgReady); err != nil {
		log.Fatal("failed to initialize committee", zap.Error(err))
	}

	localPath := filepath.Join(cfg.DataDir, "state.json")
	local, err := localstore.Open(localPath)
	if err != nil {
		log.Fatal("failed to open local store", zap.Error(err))
	}

	clock := newBlockClock()
	gate := randomgate.NewGate(0)
	gate.ImportTimeout = *importTimeout

	worker := &offchain.Worker{
		Store:  store,
		Local:  local,
		Keys:   localAuthorityKey{id: *authorityID},
		Signer: alwaysCanSign{},
		Tx:     &offchain.DirectSubmitter{Store: store, Hashes: clock, Log: log},
		Hashes: clock,
		Log:    log,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// An immediate-publish beacon stands in for the upstream randomness
	// worker: it answers every notification request right away. This
	// keeps the admission filter's wait contract (total deadline,
	// cancellable, condition-variable-style wake) genuinely exercised by
	// the block driver below, without depending on a real beacon service.
	go runImmediateBeacon(ctx, gate)
	admission := randomgate.NewBlockImport(noopInner{}, gate, neverInChainStatus{}, log)

	runDKG(ctx, store, worker, admission, clock, *dkgReady, log, metrics)
}

// noopInner is the block-import path the admission filter wraps; in this
// standalone binary there is no real chain to hand the block to, so it
// simply reports success once the randomness wait has cleared.
type noopInner struct{}

func (noopInner) ImportBlock(context.Context, randomgate.Header) (randomgate.ImportResult, error) {
	return randomgate.ImportResult{Imported: true}, nil
}

type neverInChainStatus struct{}

func (neverInChainStatus) InChain(randomgate.Hash) bool { return false }

// runImmediateBeacon answers every randomness request as soon as it
// arrives, simulating an upstream beacon worker that is always caught up.
func runImmediateBeacon(ctx context.Context, gate *randomgate.Gate) {
	for {
		select {
		case <-ctx.Done():
			return
		case nonce := <-gate.Notifications():
			gate.Publish(nonce, randomgate.RandomBytes("beacon-output"))
		}
	}
}

// runDKG drives the DKG run block by block to completion or cancellation:
// each block is first admitted through the randomness gate, then handed to
// the offchain worker, with the finalization hook firing at round_end(2).
func runDKG(
	ctx context.Context,
	store *chain.Store,
	worker *offchain.Worker,
	admission *randomgate.BlockImport,
	clock *blockClock,
	dkgReady uint64,
	log *zap.Logger,
	metrics *obs.Metrics,
) {
	finalizeAt := chain.RoundEnd(dkgReady, 2)

	for bn := uint64(1); bn <= dkgReady; bn++ {
		select {
		case <-ctx.Done():
			log.Info("shutting down before DKG run completed", zap.Uint64("last_block", bn))
			return
		default:
		}

		header := blockHeader(clock, bn)
		if _, err := admission.ImportBlock(ctx, header); err != nil {
			log.Error("block rejected by admission filter", zap.Uint64("block", bn), zap.Error(err))
			return
		}

		worker.RunBlock(bn)
		if bn == finalizeAt {
			store.Finalize(log, metrics)
		}
		if r, ok := chain.RoundOf(dkgReady, bn); ok && chain.IsRoundEnd(dkgReady, r, bn) && r != 2 {
			store.EmitRoundEnded(r, log, metrics)
		}
	}

	if mvk, ok := store.MasterVerificationKey(); ok {
		raw, _ := mvk.MarshalBinary()
		log.Info("dkg run complete", zap.Int("master_verification_key_len", len(raw)))
	} else {
		log.Warn("dkg run ended without a master verification key")
	}
}

func blockHeader(clock *blockClock, bn uint64) randomgate.Header {
	hash, _ := clock.BlockHash(bn)
	var parent randomgate.Hash
	if bn > 0 {
		parentHash, _ := clock.BlockHash(bn - 1)
		parent = randomgate.Hash(parentHash)
	}
	return randomgate.Header{
		Hash:       randomgate.Hash(hash),
		ParentHash: parent,
		Number:     bn,
		HasBody:    true,
	}
}
