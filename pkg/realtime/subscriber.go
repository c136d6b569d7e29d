package realtime

import (
	"sync"
	"time"
)

// Conn is the transport handle owned by a Subscriber. WriteMessage and Ping
// are only ever called from the subscriber's writer goroutine; Close may be
// called from anywhere.
type Conn interface {
	WriteMessage(data []byte) error
	Close() error
}

// Pinger is implemented by transports that support keep-alive probes.
type Pinger interface {
	Ping() error
}

// backlogFactor scales the queue size into the hard backlog ceiling.
const backlogFactor = 64

// Subscriber is one live connection registered with a Broadcaster.
type Subscriber struct {
	id     uint64
	conn   Conn
	notify chan struct{}
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	pending [][]byte
	// writeStart is when the in-flight transport call began; zero when idle.
	writeStart time.Time
}

func newSubscriber(id uint64, conn Conn) *Subscriber {
	return &Subscriber{
		id:     id,
		conn:   conn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ID returns the bus-assigned identifier.
func (s *Subscriber) ID() uint64 { return s.id }

// Done is closed once the subscriber has left the bus.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// enqueue never blocks. A backlog of queueSize or more only fails when the
// writer is stuck in a transport call older than stall; the hard ceiling of
// queueSize*backlogFactor fails regardless.
func (s *Subscriber) enqueue(data []byte, now time.Time, queueSize int, stall time.Duration) (ok bool, reason string) {
	select {
	case <-s.done:
		return false, ReasonClosed
	default:
	}

	s.mu.Lock()
	n := len(s.pending)
	switch {
	case n >= queueSize*backlogFactor:
		s.mu.Unlock()
		return false, ReasonQueueFull
	case n >= queueSize && !s.writeStart.IsZero() && now.Sub(s.writeStart) > stall:
		s.mu.Unlock()
		return false, ReasonStalled
	}
	s.pending = append(s.pending, data)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true, ""
}

func (s *Subscriber) take() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch
}

func (s *Subscriber) markWriting(at time.Time) {
	s.mu.Lock()
	s.writeStart = at
	s.mu.Unlock()
}

func (s *Subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// writeLoop drains the backlog in order until the subscriber closes or a
// transport call fails.
func (s *Subscriber) writeLoop(b *Broadcaster, pingInterval time.Duration) {
	var pings <-chan time.Time
	pinger, canPing := s.conn.(Pinger)
	if canPing && pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
			for _, data := range s.take() {
				s.markWriting(b.now())
				err := s.conn.WriteMessage(data)
				s.markWriting(time.Time{})
				if err != nil {
					b.drop(s, ReasonWrite, err)
					return
				}
			}
		case <-pings:
			s.markWriting(b.now())
			err := pinger.Ping()
			s.markWriting(time.Time{})
			if err != nil {
				b.drop(s, ReasonPing, err)
				return
			}
		}
	}
}
