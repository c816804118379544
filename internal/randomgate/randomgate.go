// Package randomgate implements the randomness-gated block admission filter
// (spec component 4.I): a block import wrapper that blocks a block's import
// until an upstream beacon worker has supplied the randomness value keyed
// by that block's parent hash. Grounded on
// _examples/original_source/client/randomness-beacon/src/import.rs's
// RandomnessBeaconBlockImport, redesigned per spec.md §9's open question:
// the original's `thread::sleep(100ms)` poll loop is replaced with a
// condition-variable-style wait (one broadcast channel per pending nonce)
// gated by a total configurable deadline, since an unbounded poll loop can
// never detect "the beacon gave up."
package randomgate

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Nonce is the serialized parent-hash key a beacon worker publishes
// randomness against, mirroring the Rust Nonce = encode(parent_hash).
type Nonce string

// RandomBytes is an opaque beacon output.
type RandomBytes []byte

// ErrRandomnessTimeout is returned when ImportTimeout elapses before the
// awaited nonce's randomness arrives.
var ErrRandomnessTimeout = errors.New("randomgate: timed out waiting for randomness")

// ErrTransmit mirrors the original's TransmitErr: the bounded notification
// channel to the beacon worker is full.
var ErrTransmit = errors.New("randomgate: failed to notify beacon of pending nonce")

const defaultImportTimeout = 30 * time.Second
const defaultNotifyBuffer = 256

// Gate is the shared, mutex-protected randomness table plus its waiter
// bookkeeping. One Gate is shared by every block-import worker in the
// process.
type Gate struct {
	mu      sync.Mutex
	ready   map[Nonce]RandomBytes
	waiters map[Nonce][]chan struct{}

	notify chan Nonce

	// ImportTimeout bounds how long Await blocks for a single nonce before
	// giving up. Configurable; defaults to 30s.
	ImportTimeout time.Duration
}

// NewGate builds an empty Gate. notifyBuffer sizes the channel used to tell
// an upstream beacon worker that a new nonce needs randomness; 0 selects
// the default.
func NewGate(notifyBuffer int) *Gate {
	if notifyBuffer <= 0 {
		notifyBuffer = defaultNotifyBuffer
	}
	return &Gate{
		ready:         make(map[Nonce]RandomBytes),
		waiters:       make(map[Nonce][]chan struct{}),
		notify:        make(chan Nonce, notifyBuffer),
		ImportTimeout: defaultImportTimeout,
	}
}

// Notifications returns the channel a beacon worker drains to learn which
// nonces need randomness produced for them.
func (g *Gate) Notifications() <-chan Nonce {
	return g.notify
}

// Publish records randomness for nonce and wakes every goroutine currently
// waiting on it, replacing the original's poll-and-sleep with an immediate
// broadcast.
func (g *Gate) Publish(nonce Nonce, bytes RandomBytes) {
	g.mu.Lock()
	g.ready[nonce] = bytes
	waiting := g.waiters[nonce]
	delete(g.waiters, nonce)
	g.mu.Unlock()

	for _, ch := range waiting {
		close(ch)
	}
}

// Evict drops any stored randomness and pending waiters for nonce,
// mirroring clear_old_random_bytes: called unconditionally on every block
// import, even when the block carries no body.
func (g *Gate) Evict(nonce Nonce) {
	g.mu.Lock()
	delete(g.ready, nonce)
	delete(g.waiters, nonce)
	g.mu.Unlock()
}

// Request notifies the beacon worker that nonce needs a randomness value,
// mirroring randomness_nonce_tx.try_send. It does not block: callers that
// also need the value call Await separately (the original pipeline
// requests randomness for a block's own hash so it is ready by the time
// that block becomes somebody's parent, while the wait in check_inherents
// is against the *parent's* hash).
func (g *Gate) Request(nonce Nonce) error {
	select {
	case g.notify <- nonce:
		return nil
	default:
		return ErrTransmit
	}
}

// Await blocks until randomness for nonce is available, the context is
// cancelled, or ImportTimeout elapses — the redesigned, deadline-bounded
// equivalent of check_inherents' unbounded poll loop. It does not itself
// request the value; the caller (or an earlier Request for the same
// nonce) is responsible for prompting the beacon worker.
func (g *Gate) Await(ctx context.Context, nonce Nonce) (RandomBytes, error) {
	g.mu.Lock()
	if bytes, ok := g.ready[nonce]; ok {
		g.mu.Unlock()
		return bytes, nil
	}
	ch := make(chan struct{})
	g.waiters[nonce] = append(g.waiters[nonce], ch)
	g.mu.Unlock()

	timeout := g.ImportTimeout
	if timeout <= 0 {
		timeout = defaultImportTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		g.mu.Lock()
		bytes := g.ready[nonce]
		g.mu.Unlock()
		return bytes, nil
	case <-timer.C:
		return nil, ErrRandomnessTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
