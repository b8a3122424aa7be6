package chain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func TestBlockRelayMergesEventsWhileHandlerIsBusy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan blockEvent, 4)
	release := make(chan struct{})
	first := true
	relay := newBlockRelay(func(_ context.Context, height int64, missed *int64) {
		received <- blockEvent{height: height, missed: missed}
		if first {
			first = false
			<-release
		}
	})
	go relay.run(ctx)

	relay.push(10, nil)
	select {
	case event := <-received:
		assert.Equal(t, int64(10), event.height)
		assert.Nil(t, event.missed)
	case <-time.After(2 * time.Second):
		t.Fatal("first block was not delivered")
	}

	// The handler is still busy with block 10.
	relay.push(11, int64Ptr(0))
	relay.push(12, int64Ptr(0))
	relay.push(14, int64Ptr(1))
	close(release)

	select {
	case event := <-received:
		assert.Equal(t, int64(14), event.height)
		require.NotNil(t, event.missed)
		assert.Equal(t, int64(3), *event.missed)
	case <-time.After(2 * time.Second):
		t.Fatal("merged block was not delivered")
	}

	select {
	case event := <-received:
		t.Fatalf("unexpected extra block %d", event.height)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBlockRelayPushDoesNotWaitForHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hold := make(chan struct{})
	defer close(hold)
	relay := newBlockRelay(func(context.Context, int64, *int64) { <-hold })
	go relay.run(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for height := int64(1); height <= 100; height++ {
			relay.push(height, int64Ptr(0))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("push blocked on a busy handler")
	}
}
