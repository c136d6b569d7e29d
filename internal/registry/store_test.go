package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	ts := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore() *Store {
	return NewStore(DefaultSeed(), WithClock(fixedClock()), WithIDs(sequentialIDs()))
}

func TestNewStore_Seeded(t *testing.T) {
	s := newTestStore()
	snap := s.Snapshot()
	if len(snap.Sims) != 3 {
		t.Fatalf("len(Sims) %d, want 3", len(snap.Sims))
	}
	if len(snap.Registered) != 3 {
		t.Fatalf("len(Registered) %d, want 3", len(snap.Registered))
	}
	if len(snap.Alerts) != 1 {
		t.Fatalf("len(Alerts) %d, want 1", len(snap.Alerts))
	}
	if snap.Alerts[0].Text != "System ready. Monitoring enabled." || snap.Alerts[0].Level != LevelInfo {
		t.Errorf("unexpected ready alert %+v", snap.Alerts[0])
	}
	if snap.Activity == nil || len(snap.Activity) != 0 {
		t.Errorf("Activity should be an empty non-nil slice, got %#v", snap.Activity)
	}
	if snap.Sims[1].ID != "sim-0825550102" || snap.Sims[1].Locked {
		t.Errorf("unexpected second sim %+v", snap.Sims[1])
	}
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := newTestStore()
	snap := s.Snapshot()
	snap.Sims[0].Locked = !snap.Sims[0].Locked
	snap.Alerts[0].Text = "tampered"

	again := s.Snapshot()
	if again.Sims[0].Locked == snap.Sims[0].Locked {
		t.Error("mutating a snapshot leaked into the store")
	}
	if again.Alerts[0].Text == "tampered" {
		t.Error("mutating a snapshot alert leaked into the store")
	}
}

func TestStore_MutateCommits(t *testing.T) {
	s := newTestStore()
	err := s.Mutate(func(st *State) error {
		sim, ok := st.FindSim("sim-0825550102")
		if !ok {
			return errors.New("missing sim")
		}
		sim.Locked = true
		st.AppendAlert("locked", LevelInfo)
		st.AppendActivity("locked via test")
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	snap := s.Snapshot()
	if !snap.Sims[1].Locked {
		t.Error("sim should be locked after commit")
	}
	if snap.Alerts[0].Text != "locked" {
		t.Errorf("newest alert %q, want locked", snap.Alerts[0].Text)
	}
	if len(snap.Activity) != 1 {
		t.Errorf("len(Activity) %d, want 1", len(snap.Activity))
	}
}

func TestStore_MutateErrorDiscardsChanges(t *testing.T) {
	s := newTestStore()
	before := s.Snapshot()
	boom := errors.New("boom")
	err := s.Mutate(func(st *State) error {
		sim, _ := st.FindSim("sim-0825550102")
		sim.Locked = true
		st.AppendAlert("half done", LevelWarn)
		st.AppendActivity("half done")
		st.PrependSim(Sim{ID: "x"})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Mutate error %v, want boom", err)
	}
	if after := s.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("state changed after failed mutation:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestStore_LogsAreBounded(t *testing.T) {
	s := newTestStore()
	for i := 0; i < MaxLogEntries+50; i++ {
		i := i
		_ = s.Mutate(func(st *State) error {
			st.AppendAlert(fmt.Sprintf("alert %d", i), LevelInfo)
			st.AppendActivity(fmt.Sprintf("activity %d", i))
			return nil
		})
	}
	snap := s.Snapshot()
	if len(snap.Alerts) != MaxLogEntries {
		t.Errorf("len(Alerts) %d, want %d", len(snap.Alerts), MaxLogEntries)
	}
	if len(snap.Activity) != MaxLogEntries {
		t.Errorf("len(Activity) %d, want %d", len(snap.Activity), MaxLogEntries)
	}
	last := fmt.Sprintf("alert %d", MaxLogEntries+49)
	if snap.Alerts[0].Text != last {
		t.Errorf("newest alert %q, want %q", snap.Alerts[0].Text, last)
	}
	if snap.Activity[MaxLogEntries-1].Text != "activity 50" {
		t.Errorf("oldest kept activity %q, want activity 50", snap.Activity[MaxLogEntries-1].Text)
	}
}

func TestStore_PrependCollections(t *testing.T) {
	s := newTestStore()
	_ = s.Mutate(func(st *State) error {
		st.PrependSim(Sim{ID: "new", Number: "07123", Locked: true})
		st.PrependRegistered(RegisteredNumber{ID: "reg-new", Number: "07123", Relation: "Unknown", Risk: RiskHigh})
		return nil
	})
	cols := s.Collections()
	if cols.Sims[0].ID != "new" || len(cols.Sims) != 4 {
		t.Errorf("sims %+v, want new at head", cols.Sims)
	}
	if cols.Registered[0].ID != "reg-new" || len(cols.Registered) != 4 {
		t.Errorf("registered %+v, want reg-new at head", cols.Registered)
	}
}

func TestStore_ConcurrentMutateAndSnapshot(t *testing.T) {
	s := newTestStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.Mutate(func(st *State) error {
					sim, _ := st.FindSim("sim-0825550102")
					sim.Locked = !sim.Locked
					st.AppendActivity("toggle")
					return nil
				})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				snap := s.Snapshot()
				if len(snap.Activity) > MaxLogEntries {
					t.Errorf("activity exceeded cap: %d", len(snap.Activity))
				}
			}
		}()
	}
	wg.Wait()
	if got := len(s.Snapshot().Activity); got != MaxLogEntries {
		t.Errorf("len(Activity) %d, want %d", got, MaxLogEntries)
	}
}

func TestStore_TimestampsAreUTC(t *testing.T) {
	s := newTestStore()
	_ = s.Mutate(func(st *State) error {
		st.AppendActivity("tick")
		return nil
	})
	if got := s.Snapshot().Activity[0].TS; got != "2026-10-16T09:00:00Z" {
		t.Errorf("TS %q, want 2026-10-16T09:00:00Z", got)
	}
}
