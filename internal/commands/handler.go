// Package commands applies state transitions to the registry and publishes
// the resulting events. It is the only code that mutates the registry.
package commands

import (
	"log/slog"
	"sync"

	"simguard/internal/policy"
	"simguard/internal/registry"
	"simguard/pkg/realtime"
)

// Publisher delivers events to live subscribers.
type Publisher interface {
	Broadcast(ev realtime.Event)
}

// Recorder counts command outcomes.
type Recorder interface {
	Command(name, result string)
}

type nopRecorder struct{}

func (nopRecorder) Command(string, string) {}

// Handler executes commands against a registry store.
type Handler struct {
	store  *registry.Store
	pub    Publisher
	policy policy.Policy
	rec    Recorder
	log    *slog.Logger

	// emitMu keeps broadcast order identical to commit order.
	emitMu sync.Mutex
}

// Dependencies wires a Handler.
type Dependencies struct {
	Store     *registry.Store
	Publisher Publisher
	Policy    policy.Policy
	Recorder  Recorder
	Logger    *slog.Logger
}

// NewHandler builds a Handler. Store and Publisher are required.
func NewHandler(deps Dependencies) *Handler {
	if deps.Store == nil {
		panic("commands: store is required")
	}
	if deps.Publisher == nil {
		panic("commands: publisher is required")
	}
	if deps.Policy == nil {
		deps.Policy = policy.NewRandom(0)
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		store:  deps.Store,
		pub:    deps.Publisher,
		policy: deps.Policy,
		rec:    deps.Recorder,
		log:    deps.Logger,
	}
}

// Store exposes the registry for read-only queries.
func (h *Handler) Store() *registry.Store {
	return h.store
}

// apply commits fn and, on success, broadcasts the events it produced.
func (h *Handler) apply(name string, fn func(st *registry.State) ([]realtime.Event, error)) error {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	var events []realtime.Event
	err := h.store.Mutate(func(st *registry.State) error {
		evs, err := fn(st)
		if err != nil {
			return err
		}
		events = evs
		return nil
	})
	h.rec.Command(name, resultLabel(err))
	if err != nil {
		return err
	}
	for _, ev := range events {
		h.pub.Broadcast(ev)
	}
	return nil
}

func alertEvent(a registry.Alert) realtime.Event {
	return realtime.Event{Type: realtime.TypeAlert, Payload: a}
}

func stateEvent(c registry.Collections) realtime.Event {
	return realtime.Event{Type: realtime.TypeState, Payload: c}
}

func findSim(st *registry.State, id string) (*registry.Sim, error) {
	sim, ok := st.FindSim(id)
	if !ok {
		return nil, &SimNotFoundError{ID: id}
	}
	return sim, nil
}
