// Package hub serves the persistent subscriber channel: it fans tab events
// out to every connected client and relays inbound control messages back to
// the browsers.
package hub

import (
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/tab_relay/internal/types"
)

// Broker fans serialized frames out to all connected subscribers. Delivery
// is best effort: a subscriber whose socket fails is removed, everyone else
// keeps receiving.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int64]*subscriber
	nextID atomic.Int64
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int64]*subscriber)}
}

// add registers a connection and starts its writer goroutine.
func (b *Broker) add(conn net.Conn) *subscriber {
	id := b.nextID.Add(1)
	sub := newSubscriber(id, conn)
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	go sub.writeLoop(func() { b.remove(id) })
	slog.Info("subscriber connected", "subscriber", id, "remote", conn.RemoteAddr())
	return sub
}

// remove drops a subscriber and closes its socket. Removing an id twice is
// harmless; the writer's failure callback and the reader's exit path race
// for it.
func (b *Broker) remove(id int64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if ok {
		sub.close()
		slog.Info("subscriber removed", "subscriber", id)
	}
}

// Publish serializes one tab event and broadcasts it. Implements the
// tracker's publisher contract.
func (b *Broker) Publish(evt types.TabEvent) {
	data, err := json.Marshal(evt.Message())
	if err != nil {
		slog.Error("marshal tab event", "error", err)
		return
	}
	b.broadcast(data)
}

// broadcast enqueues one frame for every current subscriber. The frame is
// marshaled once and shared; subscribers must not mutate it.
func (b *Broker) broadcast(data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		sub.enqueue(data)
	}
}

// SubscriberCount returns the number of connected subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
