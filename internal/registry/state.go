package registry

import "time"

// State is the mutable view handed to Mutate callbacks. It is always a
// private copy; changes become visible only when the callback succeeds.
type State struct {
	sims       []Sim
	registered []RegisteredNumber
	alerts     []Alert
	activity   []Activity

	nowFn func() time.Time
	idFn  func() string
}

func (s State) clone() State {
	return State{
		sims:       append([]Sim(nil), s.sims...),
		registered: append([]RegisteredNumber(nil), s.registered...),
		alerts:     append([]Alert(nil), s.alerts...),
		activity:   append([]Activity(nil), s.activity...),
		nowFn:      s.nowFn,
		idFn:       s.idFn,
	}
}

func (s State) snapshot() Snapshot {
	return Snapshot{
		Sims:       nonNil(append([]Sim(nil), s.sims...)),
		Registered: nonNil(append([]RegisteredNumber(nil), s.registered...)),
		Alerts:     nonNil(append([]Alert(nil), s.alerts...)),
		Activity:   nonNil(append([]Activity(nil), s.activity...)),
	}
}

func (s State) collections() Collections {
	return Collections{
		Sims:       nonNil(append([]Sim(nil), s.sims...)),
		Registered: nonNil(append([]RegisteredNumber(nil), s.registered...)),
	}
}

// nonNil keeps empty collections encoding as [] rather than null.
func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

// Timestamp formats the store clock as ISO-8601 UTC.
func (s *State) Timestamp() string {
	return s.nowFn().UTC().Format(time.RFC3339Nano)
}

// NewID returns a fresh opaque identifier.
func (s *State) NewID() string {
	return s.idFn()
}

// FindSim returns a pointer to the sim with id, valid until the callback returns.
func (s *State) FindSim(id string) (*Sim, bool) {
	for i := range s.sims {
		if s.sims[i].ID == id {
			return &s.sims[i], true
		}
	}
	return nil, false
}

// SimCount reports how many sims are tracked.
func (s *State) SimCount() int {
	return len(s.sims)
}

// SimAt returns a pointer to the i-th sim, newest first.
func (s *State) SimAt(i int) *Sim {
	return &s.sims[i]
}

// PrependSim inserts sim at the head of the sim list.
func (s *State) PrependSim(sim Sim) {
	s.sims = append([]Sim{sim}, s.sims...)
}

// PrependRegistered inserts rec at the head of the registered number list.
func (s *State) PrependRegistered(rec RegisteredNumber) {
	s.registered = append([]RegisteredNumber{rec}, s.registered...)
}

// AppendAlert records a new alert at the head of the alert log.
func (s *State) AppendAlert(text string, level Level) Alert {
	entry := Alert{ID: s.NewID(), TS: s.Timestamp(), Text: text, Level: level}
	s.alerts = pushBounded(s.alerts, entry, MaxLogEntries)
	return entry
}

// AppendActivity records a new entry at the head of the activity log.
func (s *State) AppendActivity(text string) Activity {
	entry := Activity{ID: s.NewID(), TS: s.Timestamp(), Text: text}
	s.activity = pushBounded(s.activity, entry, MaxLogEntries)
	return entry
}

// Collections copies the sims and registered numbers.
func (s *State) Collections() Collections {
	return s.collections()
}

// pushBounded inserts entry at index 0 and drops the oldest entries beyond limit.
func pushBounded[T any](log []T, entry T, limit int) []T {
	n := len(log) + 1
	if n > limit {
		n = limit
	}
	out := make([]T, n)
	out[0] = entry
	copy(out[1:], log)
	return out
}
