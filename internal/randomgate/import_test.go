package randomgate

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordingInner struct {
	imported []Header
}

func (r *recordingInner) ImportBlock(ctx context.Context, h Header) (ImportResult, error) {
	r.imported = append(r.imported, h)
	return ImportResult{Imported: true}, nil
}

type neverInChain struct{}

func (neverInChain) InChain(Hash) bool { return false }

func TestImportBlockWaitsForParentRandomness(t *testing.T) {
	gate := NewGate(4)
	gate.ImportTimeout = 200 * time.Millisecond
	inner := &recordingInner{}
	bi := NewBlockImport(inner, gate, neverInChain{}, zap.NewNop())

	var parent, self Hash
	parent[0] = 1
	self[0] = 2
	header := Header{Hash: self, ParentHash: parent, Number: 10, HasBody: true}

	go func() {
		time.Sleep(15 * time.Millisecond)
		gate.Publish(hashToNonce(parent), RandomBytes("parent-random"))
	}()

	_, err := bi.ImportBlock(context.Background(), header)
	if err != nil {
		t.Fatalf("ImportBlock failed: %v", err)
	}
	if len(inner.imported) != 1 {
		t.Fatalf("expected inner importer to be invoked once, got %d", len(inner.imported))
	}
}

func TestImportBlockTimesOutWithoutParentRandomness(t *testing.T) {
	gate := NewGate(4)
	gate.ImportTimeout = 15 * time.Millisecond
	inner := &recordingInner{}
	bi := NewBlockImport(inner, gate, neverInChain{}, zap.NewNop())

	var parent, self Hash
	parent[0] = 9
	self[0] = 10
	header := Header{Hash: self, ParentHash: parent, Number: 10, HasBody: true}

	_, err := bi.ImportBlock(context.Background(), header)
	if err != ErrRandomnessTimeout {
		t.Fatalf("expected ErrRandomnessTimeout, got %v", err)
	}
	if len(inner.imported) != 0 {
		t.Fatalf("expected inner importer not to run after a timed-out wait")
	}
}

func TestImportBlockSkipsWaitWithoutBody(t *testing.T) {
	gate := NewGate(4)
	gate.ImportTimeout = 15 * time.Millisecond
	inner := &recordingInner{}
	bi := NewBlockImport(inner, gate, neverInChain{}, zap.NewNop())

	var parent, self Hash
	parent[0] = 5
	self[0] = 6
	header := Header{Hash: self, ParentHash: parent, Number: 10, HasBody: false}

	_, err := bi.ImportBlock(context.Background(), header)
	if err != nil {
		t.Fatalf("bodyless block should import without waiting, got %v", err)
	}
	if len(inner.imported) != 1 {
		t.Fatalf("expected inner importer to run for a bodyless block")
	}
}

func TestImportBlockRequestsRandomnessForOwnHashOnce(t *testing.T) {
	gate := NewGate(1)
	inner := &recordingInner{}
	bi := NewBlockImport(inner, gate, neverInChain{}, zap.NewNop())

	var parent, self Hash
	parent[0] = 1
	self[0] = 2
	header := Header{Hash: self, ParentHash: parent, Number: 0, HasBody: false}

	if _, err := bi.ImportBlock(context.Background(), header); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	select {
	case n := <-gate.Notifications():
		if n != hashToNonce(self) {
			t.Fatalf("expected notification for the block's own hash")
		}
	default:
		t.Fatalf("expected a randomness request to be queued for a new block hash")
	}

	if _, err := bi.ImportBlock(context.Background(), header); err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	select {
	case <-gate.Notifications():
		t.Fatalf("expected no second randomness request for an already-notified hash")
	default:
	}
}
