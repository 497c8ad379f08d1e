package server

import (
	"testing"
	"time"

	"github.com/mcpruntime/core/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionManagerTracksMembership(t *testing.T) {
	ct := newCapturingTransport()
	s := New(ct)

	assert.False(t, s.subscriptions.isSubscribed("file:///a.txt"))
	s.subscriptions.subscribe("file:///a.txt")
	assert.True(t, s.subscriptions.isSubscribed("file:///a.txt"))
	s.subscriptions.unsubscribe("file:///a.txt")
	assert.False(t, s.subscriptions.isSubscribed("file:///a.txt"))
	s.subscriptions.stop()
}

func TestQueueUpdateCoalescesAndFlushesOnTicker(t *testing.T) {
	ct := newCapturingTransport()
	s := New(ct)
	defer s.subscriptions.stop()

	s.subscriptions.subscribe("file:///a.txt")

	s.subscriptions.QueueUpdate("file:///a.txt")
	s.subscriptions.QueueUpdate("file:///a.txt")
	s.subscriptions.QueueUpdate("file:///a.txt")

	require.Eventually(t, func() bool {
		count := 0
		for _, m := range ct.sent {
			if m == protocol.NotificationResourcesUpdated {
				count++
			}
		}
		return count == 1
	}, time.Second, 10*time.Millisecond)
}

func TestQueueUpdateIgnoresUnsubscribedURI(t *testing.T) {
	ct := newCapturingTransport()
	s := New(ct)
	defer s.subscriptions.stop()

	s.subscriptions.QueueUpdate("file:///never-subscribed.txt")

	time.Sleep(150 * time.Millisecond)
	assert.NotContains(t, ct.sent, protocol.NotificationResourcesUpdated)
}

func TestStopDrainsRunLoop(t *testing.T) {
	ct := newCapturingTransport()
	s := New(ct)

	done := make(chan struct{})
	go func() {
		s.subscriptions.stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop did not return")
	}
}
