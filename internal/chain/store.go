// Package chain models the on-chain side of the DKG pallet: the storage
// schema (spec component 4.D), the round scheduler (4.E), the submission
// handlers (4.F) and finalization (4.H). It is written against small
// capability interfaces (HashSource, RoundEndedRecorder) rather than a concrete chain,
// per the design note in spec.md §9 — the host replicated state machine
// itself is an external collaborator.
package chain

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/dkgmesh/dkg-node/pkg/crypto/commitment"
	"github.com/dkgmesh/dkg-node/pkg/crypto/encryption"
)

// AuthIndex is a committee member's stable position in the sorted
// authority list for one DKG run.
type AuthIndex uint32

// Hash is the canonical binary encoding of a block hash, as produced by the
// host chain. The DKG module never constructs one itself.
type Hash [32]byte

// shareKey identifies one (creator, recipient) encrypted-share slot.
type shareKey struct {
	Creator  AuthIndex
	Receiver AuthIndex
}

// Store holds every piece of on-chain state named in spec.md §3, all
// guarded by one mutex — following the teacher's Store/NodeStore pattern of
// one mutex-protected map collection per concern (internal/store/store.go),
// generalized here from a single node map to the DKG's several round maps.
type Store struct {
	mu sync.RWMutex

	// Configuration, write-once at genesis.
	authorities    map[AuthIndex]string // opaque authority public identifier
	nMembers       uint64
	nMembersSet    bool
	threshold      uint64
	thresholdSet   bool
	dkgReady       uint64

	// Round 0.
	encryptionPKs map[AuthIndex]encryption.EncryptionPublicKey

	// Round 1.
	committedPolynomials map[AuthIndex][]commitment.Commitment
	encryptedShares      map[shareKey]encryption.EncryptedShare

	// Round 2.
	isCorrectDealer map[AuthIndex]bool

	// Round 3.
	masterVerificationKey    *commitment.VerifyKey
	verificationKeys         []commitment.VerifyKey
}

// NewStore returns an empty store, ready for Init.
func NewStore() *Store {
	return &Store{
		authorities:          make(map[AuthIndex]string),
		encryptionPKs:        make(map[AuthIndex]encryption.EncryptionPublicKey),
		committedPolynomials: make(map[AuthIndex][]commitment.Commitment),
		encryptedShares:      make(map[shareKey]encryption.EncryptedShare),
		isCorrectDealer:      make(map[AuthIndex]bool),
	}
}

// Init sets the genesis configuration exactly once. authorities must
// already be sorted into their final AuthIndex order by the caller (the
// host chain's genesis builder does the lexicographic sort; this module
// only assigns positions 0..N-1).
func (s *Store) Init(authorities []string, threshold uint64, dkgReady uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nMembersSet {
		return fmt.Errorf("chain: authorities already initialized")
	}
	if len(authorities) == 0 {
		return fmt.Errorf("chain: n_authorities must be >= 1")
	}
	if threshold == 0 || threshold > uint64(len(authorities)) {
		return fmt.Errorf("chain: invalid threshold %d for %d members", threshold, len(authorities))
	}

	for ix, auth := range authorities {
		s.authorities[AuthIndex(ix)] = auth
	}
	s.nMembers = uint64(len(authorities))
	s.nMembersSet = true
	s.threshold = threshold
	s.thresholdSet = true
	s.dkgReady = dkgReady
	return nil
}

// NMembers returns the configured committee size.
func (s *Store) NMembers() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nMembers
}

// Threshold returns the configured threshold t.
func (s *Store) Threshold() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

// DKGReady returns the configured terminal block number.
func (s *Store) DKGReady() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dkgReady
}

// AuthorityAt returns the public identifier registered at ix, if any.
func (s *Store) AuthorityAt(ix AuthIndex) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.authorities[ix]
	return a, ok
}

// IndexOf returns the AuthIndex for a given public identifier, if it is a
// committee member.
func (s *Store) IndexOf(authority string) (AuthIndex, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ix, a := range s.authorities {
		if a == authority {
			return ix, true
		}
	}
	return 0, false
}

// --- Round 0 ---

func (s *Store) setEncryptionPK(ix AuthIndex, pk encryption.EncryptionPublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encryptionPKs[ix] = pk
}

// EncryptionPK returns the round-0 encryption public key registered for ix.
func (s *Store) EncryptionPK(ix AuthIndex) (encryption.EncryptionPublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pk, ok := s.encryptionPKs[ix]
	return pk, ok
}

// EncryptionPKs returns a snapshot of every registered round-0 key, keyed
// by AuthIndex; members with no registered key have no entry.
func (s *Store) EncryptionPKs() map[AuthIndex]encryption.EncryptionPublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[AuthIndex]encryption.EncryptionPublicKey, len(s.encryptionPKs))
	for k, v := range s.encryptionPKs {
		out[k] = v
	}
	return out
}

// CountEncryptionKeysReceived is the round-0 RoundEnded event count.
func (s *Store) CountEncryptionKeysReceived() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.encryptionPKs))
}

// --- Round 1 ---

func (s *Store) setRound1(ix AuthIndex, shares map[AuthIndex]encryption.EncryptedShare, commPoly []commitment.Commitment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for recipient, share := range shares {
		s.encryptedShares[shareKey{Creator: ix, Receiver: recipient}] = share
	}
	s.committedPolynomials[ix] = commPoly
	s.isCorrectDealer[ix] = true
}

// CommittedPolynomial returns the degree-(t-1) commitment vector dealer ix
// posted in round 1.
func (s *Store) CommittedPolynomial(ix AuthIndex) ([]commitment.Commitment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.committedPolynomials[ix]
	return p, ok
}

// EncryptedShare returns the share creator dealt to receiver in round 1.
func (s *Store) EncryptedShare(creator, receiver AuthIndex) (encryption.EncryptedShare, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	es, ok := s.encryptedShares[shareKey{Creator: creator, Receiver: receiver}]
	return es, ok
}

// --- Round 2 ---

// IsCorrectDealer reports ix's current qualification status (defaults to
// false until a valid round-1 submission, and may flip back to false via a
// confirmed dispute).
func (s *Store) IsCorrectDealer(ix AuthIndex) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isCorrectDealer[ix]
}

func (s *Store) markIncorrectDealer(ix AuthIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isCorrectDealer[ix] = false
}

// QualifiedSet returns the set Q of dealers currently marked correct and
// with a stored polynomial commitment, indexed 0..NMembers-1.
func (s *Store) QualifiedSet() []AuthIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var q []AuthIndex
	for ix := AuthIndex(0); uint64(ix) < s.nMembers; ix++ {
		if s.isCorrectDealer[ix] {
			if _, ok := s.committedPolynomials[ix]; ok {
				q = append(q, ix)
			}
		}
	}
	return q
}

// CountSuccessfulNodes is the rounds-1..3 RoundEnded event count: the
// number of currently qualified dealers. Reused for both the round-1 ("has
// submitted") and round-2 ("survived disputes") deadlines, per spec.md §9's
// documented, harmless ambiguity.
func (s *Store) CountSuccessfulNodes() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count uint64
	for ix := AuthIndex(0); uint64(ix) < s.nMembers; ix++ {
		if s.isCorrectDealer[ix] {
			count++
		}
	}
	return count
}

// --- Round 3 ---

func (s *Store) setFinalKeys(mvk commitment.VerifyKey, vks []commitment.VerifyKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masterVerificationKey = &mvk
	s.verificationKeys = vks
}

// MasterVerificationKey returns the finalized master key, if finalization
// has run.
func (s *Store) MasterVerificationKey() (commitment.VerifyKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.masterVerificationKey == nil {
		return commitment.VerifyKey{}, false
	}
	return *s.masterVerificationKey, true
}

// VerificationKeys returns the per-member verify keys, if finalization has
// run.
func (s *Store) VerificationKeys() ([]commitment.VerifyKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.verificationKeys == nil {
		return nil, false
	}
	out := make([]commitment.VerifyKey, len(s.verificationKeys))
	copy(out, s.verificationKeys)
	return out, true
}

// PublicKeyboxParts implements the public_keybox_parts() read query: the
// local member's index (if it is a committee member), the verify keys, the
// master key, and the threshold.
func (s *Store) PublicKeyboxParts(local string) (ix *AuthIndex, vks []commitment.VerifyKey, mvk commitment.VerifyKey, threshold uint64, ok bool) {
	vks, haveVKs := s.VerificationKeys()
	mvk, haveMVK := s.MasterVerificationKey()
	if !haveVKs || !haveMVK {
		return nil, nil, commitment.VerifyKey{}, 0, false
	}
	if found, isMember := s.IndexOf(local); isMember {
		ix = &found
	}
	return ix, vks, mvk, s.Threshold(), true
}

// StorageKeySK implements the storage_key_sk() read query (spec.md line
// 181): the internal/localstore key under which this authority's threshold
// secret share is persisted in round 3, available only once round 2's
// deadline block has a resolvable hash. It reproduces
// internal/localstore.BuildKey's "dkw::" + prefix + hex(hash) scheme
// in-package, since localstore already imports chain and cannot be
// imported back.
func (s *Store) StorageKeySK(hashes HashSource) (key string, ok bool) {
	dkgReady := s.DKGReady()
	if dkgReady == 0 {
		return "", false
	}
	h, err := hashes.BlockHash(RoundEnd(dkgReady, 2))
	if err != nil {
		return "", false
	}
	return "dkw::secret_key" + hex.EncodeToString(h[:]), true
}
