package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"idp-node/internal/app/model"
)

type callbackKey struct {
	nodeID  string
	purpose model.CallbackPurpose
}

// MemoryStore keeps everything in process memory. It is used by tests and
// by nodes started without a database section.
type MemoryStore struct {
	mu sync.Mutex

	messages       map[string]model.QueueMessage
	expected       map[int64]map[string]struct{}
	counterparties map[string]string
	contributions  map[string][]model.ProofContribution
	pending        map[string]uint64
	pendingSeq     uint64
	challenges     map[string]string
	identities     map[string]model.PendingIdentity
	sessions       map[string]model.OnboardingSession
	callbackURLs   map[callbackKey]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages:       make(map[string]model.QueueMessage),
		expected:       make(map[int64]map[string]struct{}),
		counterparties: make(map[string]string),
		contributions:  make(map[string][]model.ProofContribution),
		pending:        make(map[string]uint64),
		challenges:     make(map[string]string),
		identities:     make(map[string]model.PendingIdentity),
		sessions:       make(map[string]model.OnboardingSession),
		callbackURLs:   make(map[callbackKey]string),
	}
}

func (ms *MemoryStore) SaveQueueMessage(_ context.Context, msg model.QueueMessage) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.messages[msg.RequestID] = msg
	return nil
}

func (ms *MemoryStore) GetQueueMessage(_ context.Context, requestID string) (model.QueueMessage, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	msg, ok := ms.messages[requestID]
	return msg, ok, nil
}

func (ms *MemoryStore) RemoveQueueMessage(_ context.Context, requestID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.messages, requestID)
	return nil
}

func (ms *MemoryStore) AddExpectedRequest(_ context.Context, height int64, requestID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ids, ok := ms.expected[height]
	if !ok {
		ids = make(map[string]struct{})
		ms.expected[height] = ids
	}
	ids[requestID] = struct{}{}
	return nil
}

func (ms *MemoryStore) ExpectedRequestsInRange(_ context.Context, from, to int64) ([]string, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	heights := make([]int64, 0)
	for h := range ms.expected {
		if h >= from && h <= to {
			heights = append(heights, h)
		}
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	seen := make(map[string]struct{})
	result := make([]string, 0)
	for _, h := range heights {
		ids := make([]string, 0, len(ms.expected[h]))
		for id := range ms.expected[h] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}
	return result, nil
}

func (ms *MemoryStore) RemoveExpectedRequestsInRange(_ context.Context, from, to int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for h := range ms.expected {
		if h >= from && h <= to {
			delete(ms.expected, h)
		}
	}
	return nil
}

func (ms *MemoryStore) SetCounterparty(_ context.Context, requestID, nodeID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.counterparties[requestID] = nodeID
	return nil
}

func (ms *MemoryStore) GetCounterparty(_ context.Context, requestID string) (string, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	nodeID, ok := ms.counterparties[requestID]
	return nodeID, ok, nil
}

func (ms *MemoryStore) RemoveCounterparty(_ context.Context, requestID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.counterparties, requestID)
	return nil
}

func (ms *MemoryStore) AppendProofContribution(_ context.Context, requestID string, contribution model.ProofContribution) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, existing := range ms.contributions[requestID] {
		if existing.IdpID == contribution.IdpID {
			return nil
		}
	}
	ms.contributions[requestID] = append(ms.contributions[requestID], contribution)
	return nil
}

func (ms *MemoryStore) ProofContributions(_ context.Context, requestID string) ([]model.ProofContribution, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]model.ProofContribution(nil), ms.contributions[requestID]...), nil
}

func (ms *MemoryStore) RemoveProofContributions(_ context.Context, requestID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.contributions, requestID)
	return nil
}

func (ms *MemoryStore) MarkDispatchPending(_ context.Context, requestID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.pendingSeq++
	ms.pending[requestID] = ms.pendingSeq
	return nil
}

func (ms *MemoryStore) PendingDispatches(_ context.Context) ([]string, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	requestIDs := make([]string, 0, len(ms.pending))
	for requestID := range ms.pending {
		requestIDs = append(requestIDs, requestID)
	}
	sort.Slice(requestIDs, func(i, j int) bool {
		return ms.pending[requestIDs[i]] < ms.pending[requestIDs[j]]
	})
	return requestIDs, nil
}

func (ms *MemoryStore) RemoveDispatchPending(_ context.Context, requestID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.pending, requestID)
	return nil
}

func (ms *MemoryStore) SaveChallenge(_ context.Context, requestID, challenge string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.challenges[requestID] = challenge
	return nil
}

func (ms *MemoryStore) GetChallenge(_ context.Context, requestID string) (string, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	challenge, ok := ms.challenges[requestID]
	return challenge, ok, nil
}

func (ms *MemoryStore) RemoveChallenge(_ context.Context, requestID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.challenges, requestID)
	return nil
}

func (ms *MemoryStore) SavePendingIdentity(_ context.Context, requestID string, identity model.PendingIdentity) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.identities[requestID] = identity
	return nil
}

func (ms *MemoryStore) GetPendingIdentity(_ context.Context, requestID string) (model.PendingIdentity, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	identity, ok := ms.identities[requestID]
	return identity, ok, nil
}

func (ms *MemoryStore) RemovePendingIdentity(_ context.Context, requestID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.identities, requestID)
	return nil
}

func (ms *MemoryStore) SaveSession(_ context.Context, session model.OnboardingSession) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now().UTC()
	}
	ms.sessions[session.RequestID] = session
	return nil
}

func (ms *MemoryStore) GetSession(_ context.Context, requestID string) (model.OnboardingSession, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	session, ok := ms.sessions[requestID]
	return session, ok, nil
}

func (ms *MemoryStore) DeleteSession(_ context.Context, requestID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.sessions, requestID)
	return nil
}

func (ms *MemoryStore) SessionsInPhases(_ context.Context, phases ...model.OnboardingPhase) ([]model.OnboardingSession, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	wanted := make(map[model.OnboardingPhase]struct{}, len(phases))
	for _, p := range phases {
		wanted[p] = struct{}{}
	}

	sessions := make([]model.OnboardingSession, 0)
	for _, s := range ms.sessions {
		if _, ok := wanted[s.Phase]; ok {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].UpdatedAt.Before(sessions[j].UpdatedAt) })
	return sessions, nil
}

func (ms *MemoryStore) SetCallbackURL(_ context.Context, nodeID string, purpose model.CallbackPurpose, url string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.callbackURLs[callbackKey{nodeID: nodeID, purpose: purpose}] = url
	return nil
}

func (ms *MemoryStore) GetCallbackURL(_ context.Context, nodeID string, purpose model.CallbackPurpose) (string, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	url, ok := ms.callbackURLs[callbackKey{nodeID: nodeID, purpose: purpose}]
	return url, ok, nil
}
