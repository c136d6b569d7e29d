package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Defaults for the per-subscriber backlog policy.
const (
	// DefaultQueueSize is the backlog beyond which a stalled writer is dropped.
	DefaultQueueSize = 32
	// DefaultWriteTimeout is how long a transport call may run before its
	// subscriber counts as stalled.
	DefaultWriteTimeout = 5 * time.Second
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("realtime: broadcaster closed")

// Broadcaster fans events out to live subscribers. A subscriber is dropped
// only for its own failure: a closed transport, a failed write or ping, or a
// writer stuck in one call for longer than the write timeout while its
// backlog grows. The others are not affected.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	nextID uint64
	closed bool

	queueSize    int
	writeTimeout time.Duration
	pingInterval time.Duration
	log          *slog.Logger
	obs          Observer
	now          func() time.Time
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithQueueSize sets the backlog at which a stalled subscriber is dropped.
func WithQueueSize(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithWriteTimeout sets how long a single transport call may take before a
// subscriber with a full backlog is treated as stalled.
func WithWriteTimeout(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.writeTimeout = d
		}
	}
}

// WithPingInterval enables keep-alive pings on transports implementing Pinger.
func WithPingInterval(d time.Duration) Option {
	return func(b *Broadcaster) { b.pingInterval = d }
}

// WithLogger sets the logger used for subscriber lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broadcaster) {
		if l != nil {
			b.log = l
		}
	}
}

// WithObserver reports bus activity to obs.
func WithObserver(obs Observer) Option {
	return func(b *Broadcaster) {
		if obs != nil {
			b.obs = obs
		}
	}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		subs:         make(map[*Subscriber]struct{}),
		queueSize:    DefaultQueueSize,
		writeTimeout: DefaultWriteTimeout,
		log:          slog.New(slog.DiscardHandler),
		obs:          nopObserver{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers conn. When init is non-nil its event is queued ahead of
// anything broadcast afterwards, so the subscriber starts from a snapshot and
// then sees every later change.
func (b *Broadcaster) Subscribe(conn Conn, init func() Event) (*Subscriber, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.nextID++
	sub := newSubscriber(b.nextID, conn)
	if init != nil {
		data, err := json.Marshal(init())
		if err != nil {
			b.mu.Unlock()
			return nil, err
		}
		sub.enqueue(data, b.now(), b.queueSize, b.writeTimeout)
	}
	b.subs[sub] = struct{}{}
	n := len(b.subs)
	b.mu.Unlock()

	go sub.writeLoop(b, b.pingInterval)
	b.obs.Subscribers(n)
	b.log.Debug("subscriber joined", "subscriber", sub.id, "active", n)
	return sub, nil
}

// Unsubscribe removes sub and closes its transport. Safe to call repeatedly.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	_, ok := b.subs[sub]
	delete(b.subs, sub)
	n := len(b.subs)
	b.mu.Unlock()

	sub.close()
	if ok {
		b.obs.Subscribers(n)
		b.log.Debug("subscriber left", "subscriber", sub.id, "active", n)
	}
}

// Broadcast queues ev for every active subscriber. It never blocks on a
// transport and never reports delivery failures to the caller.
func (b *Broadcaster) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("encode event", "type", ev.Type, "err", err)
		return
	}

	type dropped struct {
		sub    *Subscriber
		reason string
	}
	var drops []dropped

	now := b.now()
	b.mu.Lock()
	for sub := range b.subs {
		if ok, reason := sub.enqueue(data, now, b.queueSize, b.writeTimeout); !ok {
			delete(b.subs, sub)
			drops = append(drops, dropped{sub: sub, reason: reason})
		}
	}
	n := len(b.subs)
	b.mu.Unlock()

	for _, d := range drops {
		d.sub.close()
		b.obs.DeliveryFailed(d.reason)
		b.log.Warn("subscriber dropped", "subscriber", d.sub.id, "reason", d.reason)
	}
	b.obs.Published(ev.Type)
	if len(drops) > 0 {
		b.obs.Subscribers(n)
	}
}

// drop removes sub after a transport failure detected by its writer.
func (b *Broadcaster) drop(sub *Subscriber, reason string, err error) {
	b.mu.Lock()
	_, ok := b.subs[sub]
	delete(b.subs, sub)
	n := len(b.subs)
	b.mu.Unlock()

	sub.close()
	if !ok {
		return
	}
	b.obs.DeliveryFailed(reason)
	b.obs.Subscribers(n)
	b.log.Warn("subscriber dropped", "subscriber", sub.id, "reason", reason, "err", err)
}

// Len reports the number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close disconnects every subscriber and rejects new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscriber, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
		delete(b.subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	b.obs.Subscribers(0)
}
