package hub

import (
	"log/slog"
	"net"
	"sync"

	"github.com/gobwas/ws/wsutil"
)

const subscriberBufSize = 256

// subscriber is one connected live-update client. All frames travel through
// the buffered out channel so a slow socket never blocks the broadcast path
// or the other subscribers.
type subscriber struct {
	id   int64
	conn net.Conn

	mu           sync.Mutex
	out          chan []byte
	closed       bool
	snapshotting bool
	held         [][]byte
}

func newSubscriber(id int64, conn net.Conn) *subscriber {
	return &subscriber{
		id:   id,
		conn: conn,
		out:  make(chan []byte, subscriberBufSize),
	}
}

// enqueue queues a broadcast frame. While a snapshot is being built the
// frame is parked instead, so it cannot interleave with the snapshot.
func (s *subscriber) enqueue(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshotting {
		s.held = append(s.held, data)
		return
	}
	s.push(data)
}

// send queues a frame directly, bypassing the snapshot gate. Used for the
// snapshot frames themselves.
func (s *subscriber) send(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push(data)
}

// push requires s.mu held. Full buffer means the frame is dropped; the
// subscriber catches up from whatever arrives next.
func (s *subscriber) push(data []byte) {
	if s.closed {
		return
	}
	select {
	case s.out <- data:
	default:
		slog.Warn("subscriber buffer full, dropping frame", "subscriber", s.id)
	}
}

// beginSnapshot starts parking broadcast frames for this subscriber.
func (s *subscriber) beginSnapshot() {
	s.mu.Lock()
	s.snapshotting = true
	s.mu.Unlock()
}

// endSnapshot releases parked frames in arrival order, after the snapshot
// frames are already queued.
func (s *subscriber) endSnapshot() {
	s.mu.Lock()
	s.snapshotting = false
	held := s.held
	s.held = nil
	for _, data := range held {
		s.push(data)
	}
	s.mu.Unlock()
}

// close makes further pushes no-ops, then closes the out channel and the
// socket. Safe to call more than once.
func (s *subscriber) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.out)
	s.conn.Close()
}

// writeLoop drains the out channel onto the socket. A write failure invokes
// onError exactly once; the loop ends when the channel is closed.
func (s *subscriber) writeLoop(onError func()) {
	for data := range s.out {
		if err := wsutil.WriteServerText(s.conn, data); err != nil {
			slog.Info("subscriber write failed, removing", "subscriber", s.id, "error", err)
			onError()
			return
		}
	}
}
