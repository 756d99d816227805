package api

import (
	"sync"
)

// SSEEvent is a route-progress event delivered to SSE and WebSocket
// subscribers of a cluster.
type SSEEvent struct {
	Type string
	Data map[string]any
}

// Broker fans out progress events per cluster within one process.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan SSEEvent]struct{} // clusterId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(clusterID string) chan SSEEvent {
	ch := make(chan SSEEvent, 8)
	b.mu.Lock()
	if b.subs[clusterID] == nil {
		b.subs[clusterID] = map[chan SSEEvent]struct{}{}
	}
	b.subs[clusterID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(clusterID string, ch chan SSEEvent) {
	b.mu.Lock()
	if m := b.subs[clusterID]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, clusterID)
		}
	}
	b.mu.Unlock()
	close(ch)
}

// Publish delivers evt to current subscribers; slow consumers are
// skipped rather than blocking the ledger.
func (b *Broker) Publish(clusterID string, evt SSEEvent) {
	b.mu.Lock()
	m := b.subs[clusterID]
	for ch := range m {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
