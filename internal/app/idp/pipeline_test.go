package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"idp-node/internal/app/chain"
	"idp-node/internal/app/chain/chaintest"
	"idp-node/internal/app/model"
	"idp-node/internal/app/proof"
	"idp-node/internal/app/store"
	"idp-node/pkg/logger"
	reasoncodes "idp-node/pkg/reason_codes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const requestMessage = "msg"

type notification struct {
	purpose model.CallbackPurpose
	payload any
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []notification
}

func (rn *recordingNotifier) Notify(_ context.Context, purpose model.CallbackPurpose, payload any) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	rn.notifications = append(rn.notifications, notification{purpose: purpose, payload: payload})
}

func (rn *recordingNotifier) of(purpose model.CallbackPurpose) []notification {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	var matching []notification
	for _, n := range rn.notifications {
		if n.purpose == purpose {
			matching = append(matching, n)
		}
	}
	return matching
}

type fakeOnboarding struct {
	mu       sync.Mutex
	received []model.QueueMessage
	ctxErrs  []error
	err      error
	panics   bool
	// hold, when set, keeps every call waiting until it is closed.
	hold chan struct{}
}

func (fo *fakeOnboarding) HandleConsentResponse(ctx context.Context, msg model.QueueMessage) error {
	if fo.panics {
		panic("boom")
	}
	if fo.hold != nil {
		<-fo.hold
	}
	fo.mu.Lock()
	defer fo.mu.Unlock()
	fo.received = append(fo.received, msg)
	fo.ctxErrs = append(fo.ctxErrs, ctx.Err())
	return fo.err
}

func (fo *fakeOnboarding) count() int {
	fo.mu.Lock()
	defer fo.mu.Unlock()
	return len(fo.received)
}

type pipelineFixture struct {
	pipeline   *Pipeline
	store      *store.MemoryStore
	gateway    *chaintest.FakeGateway
	notifier   *recordingNotifier
	onboarding *fakeOnboarding
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	return newPipelineFixtureOn(t, store.NewMemoryStore())
}

// newPipelineFixtureOn builds a pipeline over an existing store, the way a
// restarted node finds it.
func newPipelineFixtureOn(t *testing.T, s *store.MemoryStore) *pipelineFixture {
	t.Helper()

	gateway := chaintest.NewFakeGateway()
	gateway.Returns(chain.MethodGetRequest, model.Request{
		RequestMessageHash: proof.Hash(requestMessage),
	})
	ledger, err := chain.NewLedger(gateway, chain.NewNonceSource())
	require.NoError(t, err)
	t.Cleanup(ledger.Close)

	f := &pipelineFixture{
		store:      s,
		gateway:    gateway,
		notifier:   &recordingNotifier{},
		onboarding: &fakeOnboarding{},
	}
	f.pipeline = NewPipeline(
		f.store,
		gateway,
		NewRequestIntegrity(ledger, logger.Nop()),
		f.onboarding,
		f.notifier,
		SyncConfigJson{}.ConvertToDomain(),
		logger.Nop(),
	)
	return f
}

func (f *pipelineFixture) receive(t *testing.T, msg model.QueueMessage) {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, f.pipeline.OnQueueMessage(context.Background(), raw))
	f.pipeline.Drain()
}

func missed(n int64) *int64 {
	return &n
}

func consentRequest(requestID string, height int64) model.QueueMessage {
	return model.QueueMessage{
		RequestID:      requestID,
		Height:         height,
		RpID:           "rp1",
		Namespace:      "citizen_id",
		Identifier:     "123",
		RequestMessage: requestMessage,
		MinIal:         2.3,
		MinAal:         3,
	}
}

func TestEarlyMessageWaitsForConfirmingBlock(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	f.gateway.SetHeight(99)
	f.pipeline.OnNewBlockHeader(ctx, 99, nil)

	f.receive(t, consentRequest("R1", 100))

	assert.Empty(t, f.notifier.of(model.IncomingRequestURL))
	assert.Empty(t, f.gateway.Transactions(""))
	expected, err := f.store.ExpectedRequestsInRange(ctx, 100, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1"}, expected)

	fromHeight, toHeight := f.pipeline.window(101, missed(0))
	assert.Equal(t, int64(99), fromHeight)
	assert.Equal(t, int64(100), toHeight)

	f.gateway.SetHeight(101)
	f.pipeline.OnNewBlockHeader(ctx, 101, missed(0))

	sent := f.notifier.of(model.IncomingRequestURL)
	require.Len(t, sent, 1)
	assert.Equal(t, model.ConsentRequestEvent{
		Type:               model.EventConsentRequest,
		RequestID:          "R1",
		Namespace:          "citizen_id",
		Identifier:         "123",
		RequestMessage:     requestMessage,
		RequestMessageHash: proof.Hash(requestMessage),
		RequesterNodeID:    "rp1",
		MinIal:             2.3,
		MinAal:             3,
	}, sent[0].payload)

	expected, err = f.store.ExpectedRequestsInRange(ctx, 99, 100)
	require.NoError(t, err)
	assert.Empty(t, expected)
}

func TestMessageAtLatestHeightIsBuffered(t *testing.T) {
	f := newPipelineFixture(t)
	f.gateway.SetHeight(100)

	f.receive(t, consentRequest("R1", 100))

	assert.Empty(t, f.notifier.of(model.IncomingRequestURL))
	expected, err := f.store.ExpectedRequestsInRange(context.Background(), 100, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1"}, expected)
}

func TestLateMessageIsDispatchedOnce(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	f.gateway.SetHeight(60)
	f.pipeline.OnNewBlockHeader(ctx, 60, nil)

	f.receive(t, consentRequest("R1", 50))
	require.Len(t, f.notifier.of(model.IncomingRequestURL), 1)

	f.gateway.SetHeight(61)
	f.pipeline.OnNewBlockHeader(ctx, 61, missed(0))
	f.pipeline.OnNewBlockHeader(ctx, 62, missed(0))

	assert.Len(t, f.notifier.of(model.IncomingRequestURL), 1)
	counterparty, found, err := f.store.GetCounterparty(ctx, "R1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "rp1", counterparty)
}

func TestLateOnboardingResponseGoesToOnboarding(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	f.gateway.SetHeight(60)

	f.receive(t, model.QueueMessage{
		RequestID:         "R2",
		Height:            50,
		IdpID:             "idp2",
		AccessorID:        "A1",
		Challenge:         "abc",
		PrivateProofValue: "proof",
		Padding:           "pad",
	})

	require.Equal(t, 1, f.onboarding.count())
	assert.Equal(t, "A1", f.onboarding.received[0].AccessorID)
	assert.Empty(t, f.notifier.of(model.IncomingRequestURL))

	expected, err := f.store.ExpectedRequestsInRange(ctx, 1, 100)
	require.NoError(t, err)
	assert.Empty(t, expected)

	contributions, err := f.store.ProofContributions(ctx, "R2")
	require.NoError(t, err)
	assert.Equal(t, []model.ProofContribution{{
		IdpID: "idp2",
		PrivateProof: model.PrivateProofObject{
			PrivateProofValue: "proof",
			AccessorID:        "A1",
			Padding:           "pad",
		},
	}}, contributions)

	_, found, err := f.store.GetQueueMessage(ctx, "R2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEarlyOnboardingResponseIsReconciled(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	f.gateway.SetHeight(10)

	f.receive(t, model.QueueMessage{RequestID: "R2", Height: 12, IdpID: "idp2", AccessorID: "A1"})
	f.receive(t, model.QueueMessage{RequestID: "R2", Height: 12, IdpID: "idp3", AccessorID: "A1"})
	assert.Equal(t, 0, f.onboarding.count())

	contributions, err := f.store.ProofContributions(ctx, "R2")
	require.NoError(t, err)
	assert.Len(t, contributions, 2)

	f.gateway.SetHeight(13)
	f.pipeline.OnNewBlockHeader(ctx, 13, missed(0))

	assert.Equal(t, 1, f.onboarding.count())
}

func TestTamperedRequestIsNotNotified(t *testing.T) {
	f := newPipelineFixture(t)
	f.gateway.SetHeight(60)

	msg := consentRequest("R1", 50)
	msg.RequestMessage = "tampered"
	f.receive(t, msg)

	assert.Empty(t, f.notifier.of(model.IncomingRequestURL))
	assert.Empty(t, f.notifier.of(model.ErrorURL))
}

func TestDispatchErrorsAreReportedToErrorCallback(t *testing.T) {
	f := newPipelineFixture(t)
	f.gateway.SetHeight(60)
	f.gateway.OnQuery(chain.MethodGetRequest, func(json.RawMessage) (any, bool, error) {
		return nil, false, nil
	})

	f.receive(t, consentRequest("R1", 50))

	errorsSent := f.notifier.of(model.ErrorURL)
	require.Len(t, errorsSent, 1)
	event, ok := errorsSent[0].payload.(model.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, "R1", event.RequestID)
	assert.Equal(t, reasoncodes.ErrRequestNotFound.String(), event.Code)
}

func TestOnboardingErrorIsReported(t *testing.T) {
	f := newPipelineFixture(t)
	f.gateway.SetHeight(60)
	f.onboarding.err = errors.New("store down")

	f.receive(t, model.QueueMessage{RequestID: "R2", Height: 50, IdpID: "idp2", AccessorID: "A1"})

	errorsSent := f.notifier.of(model.ErrorURL)
	require.Len(t, errorsSent, 1)
	assert.Contains(t, errorsSent[0].payload.(model.ErrorEvent).Message, "store down")
}

func TestPanicDuringReconcileIsContained(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	f.gateway.SetHeight(10)
	f.onboarding.panics = true

	f.receive(t, model.QueueMessage{RequestID: "R2", Height: 12, IdpID: "idp2", AccessorID: "A1"})
	f.receive(t, consentRequest("R1", 12))

	f.gateway.SetHeight(13)
	require.NotPanics(t, func() {
		f.pipeline.OnNewBlockHeader(ctx, 13, missed(0))
	})

	assert.Len(t, f.notifier.of(model.ErrorURL), 1)
	assert.Len(t, f.notifier.of(model.IncomingRequestURL), 1)
	expected, err := f.store.ExpectedRequestsInRange(ctx, 12, 12)
	require.NoError(t, err)
	assert.Empty(t, expected)
}

func TestUnparsableMessagesAreRejected(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	err := f.pipeline.OnQueueMessage(ctx, []byte("{not json"))
	assert.ErrorIs(t, err, reasoncodes.New(reasoncodes.ErrUnmarshal))

	err = f.pipeline.OnQueueMessage(ctx, []byte(`{"height": 3}`))
	assert.ErrorIs(t, err, reasoncodes.New(reasoncodes.ErrInvalidMessage))
}

func TestReconcileWindow(t *testing.T) {
	tests := []struct {
		name           string
		blockLag       int64
		lastReconciled int64
		height         int64
		missed         *int64
		wantFrom       int64
		wantTo         int64
	}{
		{name: "first block", blockLag: 1, height: 10, wantFrom: 1, wantTo: 9},
		{name: "no missed blocks", blockLag: 1, height: 10, missed: missed(0), wantFrom: 9, wantTo: 9},
		{name: "missed blocks", blockLag: 1, height: 10, missed: missed(3), wantFrom: 7, wantTo: 9},
		{name: "gap since last reconcile", blockLag: 1, lastReconciled: 5, height: 10, missed: missed(0), wantFrom: 6, wantTo: 9},
		{name: "contiguous", blockLag: 1, lastReconciled: 8, height: 10, missed: missed(0), wantFrom: 9, wantTo: 9},
		{name: "larger lag", blockLag: 2, height: 10, missed: missed(0), wantFrom: 8, wantTo: 8},
		{name: "no lag", blockLag: 0, lastReconciled: 9, height: 10, missed: missed(0), wantFrom: 10, wantTo: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Pipeline{cfg: SyncConfig{BlockLag: tt.blockLag}, lastReconciled: tt.lastReconciled}
			fromHeight, toHeight := p.window(tt.height, tt.missed)
			assert.Equal(t, tt.wantFrom, fromHeight)
			assert.Equal(t, tt.wantTo, toHeight)
		})
	}
}

func TestEveryMessageDispatchedExactlyOnceUnderConcurrency(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	f.gateway.SetHeight(10)
	f.pipeline.OnNewBlockHeader(ctx, 10, nil)

	const messages = 100
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < messages; i++ {
			msg := consentRequest(fmt.Sprintf("R%d", i), int64(10+i%20))
			raw, _ := json.Marshal(msg)
			assert.NoError(t, f.pipeline.OnQueueMessage(ctx, raw))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for height := int64(11); height <= 31; height++ {
			f.gateway.SetHeight(height)
			f.pipeline.OnNewBlockHeader(ctx, height, missed(0))
		}
	}()
	wg.Wait()
	f.pipeline.Drain()

	f.gateway.SetHeight(40)
	f.pipeline.OnNewBlockHeader(ctx, 40, missed(0))

	counts := map[string]int{}
	for _, n := range f.notifier.of(model.IncomingRequestURL) {
		counts[n.payload.(model.ConsentRequestEvent).RequestID]++
	}
	require.Len(t, counts, messages)
	for requestID, count := range counts {
		assert.Equal(t, 1, count, requestID)
	}
}

func TestSlowOnboardingDoesNotHoldBackOtherMessages(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	f.gateway.SetHeight(60)
	f.onboarding.hold = make(chan struct{})

	onboardingResponse, err := json.Marshal(model.QueueMessage{RequestID: "R2", Height: 50, IdpID: "idp2", AccessorID: "A1"})
	require.NoError(t, err)
	consent, err := json.Marshal(consentRequest("R1", 50))
	require.NoError(t, err)

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		assert.NoError(t, f.pipeline.OnQueueMessage(ctx, onboardingResponse))
		assert.NoError(t, f.pipeline.OnQueueMessage(ctx, consent))
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("queue handling waited for the onboarding transition")
	}
	assert.Eventually(t, func() bool {
		return len(f.notifier.of(model.IncomingRequestURL)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.onboarding.count())

	close(f.onboarding.hold)
	f.pipeline.Drain()
	assert.Equal(t, 1, f.onboarding.count())
}

func TestPanicDuringFastPathIsContained(t *testing.T) {
	f := newPipelineFixture(t)
	f.gateway.SetHeight(60)
	f.onboarding.panics = true

	require.NotPanics(t, func() {
		f.receive(t, model.QueueMessage{RequestID: "R2", Height: 50, IdpID: "idp2", AccessorID: "A1"})
	})

	errorsSent := f.notifier.of(model.ErrorURL)
	require.Len(t, errorsSent, 1)
	assert.Equal(t, "R2", errorsSent[0].payload.(model.ErrorEvent).RequestID)
}

func TestUnfinishedDispatchIsResumedAfterRestart(t *testing.T) {
	ctx := context.Background()
	before := newPipelineFixture(t)
	before.gateway.SetHeight(60)
	before.onboarding.hold = make(chan struct{})

	raw, err := json.Marshal(model.QueueMessage{RequestID: "R2", Height: 50, IdpID: "idp2", AccessorID: "A1"})
	require.NoError(t, err)
	require.NoError(t, before.pipeline.OnQueueMessage(ctx, raw))

	pending, err := before.store.PendingDispatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"R2"}, pending)

	after := newPipelineFixtureOn(t, before.store)
	after.gateway.SetHeight(200)
	require.NoError(t, after.pipeline.ResumeDispatches(ctx))
	after.pipeline.Drain()
	after.pipeline.OnNewBlockHeader(ctx, 200, nil)

	assert.Equal(t, 1, after.onboarding.count())
	assert.Equal(t, "R2", after.onboarding.received[0].RequestID)
	pending, err = after.store.PendingDispatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	close(before.onboarding.hold)
	before.pipeline.Drain()
}

func TestFinishedDispatchIsNotResumed(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.gateway.SetHeight(60)

	f.receive(t, consentRequest("R1", 50))
	require.Len(t, f.notifier.of(model.IncomingRequestURL), 1)

	require.NoError(t, f.pipeline.ResumeDispatches(ctx))
	f.pipeline.Drain()
	assert.Len(t, f.notifier.of(model.IncomingRequestURL), 1)
}

func TestResumeDropsPendingDispatchWithoutMessage(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	require.NoError(t, f.store.MarkDispatchPending(ctx, "gone"))

	require.NoError(t, f.pipeline.ResumeDispatches(ctx))
	f.pipeline.Drain()

	pending, err := f.store.PendingDispatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, 0, f.onboarding.count())
}

func TestDrainFinishesDispatchAfterConsumerStops(t *testing.T) {
	f := newPipelineFixture(t)
	f.gateway.SetHeight(60)
	f.onboarding.hold = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	raw, err := json.Marshal(model.QueueMessage{RequestID: "R2", Height: 50, IdpID: "idp2", AccessorID: "A1"})
	require.NoError(t, err)
	require.NoError(t, f.pipeline.OnQueueMessage(ctx, raw))

	cancel()
	close(f.onboarding.hold)
	f.pipeline.Drain()

	require.Equal(t, 1, f.onboarding.count())
	assert.NoError(t, f.onboarding.ctxErrs[0])
	pending, err := f.store.PendingDispatches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}
