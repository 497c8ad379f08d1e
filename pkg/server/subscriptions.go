package server

import (
	"context"
	"sync"
	"time"

	"github.com/mcpruntime/core/pkg/logging"
	"github.com/mcpruntime/core/pkg/protocol"
)

// subscriptionManager tracks which resource URIs a client has subscribed to
// and batches resources/updated notifications over a short window so a burst
// of writes to one URI collapses into a single wire notification.
type subscriptionManager struct {
	server *Server

	mu            sync.RWMutex
	subscriptions map[string]time.Time

	pending chan string
	done    chan struct{}
	wg      sync.WaitGroup
}

func newSubscriptionManager(s *Server) *subscriptionManager {
	m := &subscriptionManager{
		server:        s,
		subscriptions: make(map[string]time.Time),
		pending:       make(chan string, 256),
		done:          make(chan struct{}),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

func (m *subscriptionManager) subscribe(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[uri] = time.Now()
}

func (m *subscriptionManager) unsubscribe(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, uri)
}

func (m *subscriptionManager) isSubscribed(uri string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.subscriptions[uri]
	return ok
}

// QueueUpdate asks the manager to notify the client that uri changed, once,
// the next time the batching window flushes. Multiple calls for the same URI
// within a window collapse into a single notification. A provider that wants
// the update delivered immediately should call Server.NotifyResourceUpdated
// directly instead.
func (m *subscriptionManager) QueueUpdate(uri string) {
	select {
	case m.pending <- uri:
	default:
		m.server.logger.Warn("subscription update queue full, dropping update", logging.String("uri", uri))
	}
}

func (m *subscriptionManager) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	dirty := make(map[string]struct{})
	for {
		select {
		case <-m.done:
			return
		case uri := <-m.pending:
			if m.isSubscribed(uri) {
				dirty[uri] = struct{}{}
			}
		case <-ticker.C:
			if len(dirty) == 0 {
				continue
			}
			for uri := range dirty {
				if err := m.server.SendNotification(context.Background(), protocol.NotificationResourcesUpdated, &protocol.ResourceUpdatedParams{URI: uri}); err != nil {
					m.server.logger.Error("failed to send resources/updated notification", logging.String("uri", uri), logging.ErrorField(err))
				}
			}
			dirty = make(map[string]struct{})
		}
	}
}

func (m *subscriptionManager) stop() {
	close(m.done)
	m.wg.Wait()
}
