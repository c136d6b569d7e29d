package generator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simguard/internal/commands"
	"simguard/internal/policy"
	"simguard/internal/registry"
	"simguard/pkg/realtime"
)

type fixedPolicy struct {
	policy.Policy
	interval time.Duration
	swap     bool
}

func (p fixedPolicy) Interval(_, _ time.Duration) time.Duration { return p.interval }
func (p fixedPolicy) SwapBranch() bool                          { return p.swap }

type fakeSimulator struct {
	swaps   chan struct{}
	regs    chan struct{}
	swapErr error
	panics  bool
}

func newFakeSimulator() *fakeSimulator {
	return &fakeSimulator{swaps: make(chan struct{}, 16), regs: make(chan struct{}, 16)}
}

func (f *fakeSimulator) SimulateSwap(context.Context) (commands.SwapResult, error) {
	f.swaps <- struct{}{}
	if f.panics {
		panic("boom")
	}
	return commands.SwapResult{}, f.swapErr
}

func (f *fakeSimulator) SimulateRegistration(context.Context) (commands.Registration, error) {
	f.regs <- struct{}{}
	return commands.Registration{}, nil
}

type tickCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *tickCounter) Tick(branch string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[branch]++
}

func (c *tickCounter) get(branch string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[branch]
}

func start(t *testing.T, g *Generator) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()
	return func() error {
		stop()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("generator did not stop")
			return nil
		}
	}
}

func waitOn(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for simulated event")
	}
}

func TestGenerator_TriggerFiresSwapBranch(t *testing.T) {
	sim := newFakeSimulator()
	rec := &tickCounter{}
	g := New(sim, fixedPolicy{interval: time.Hour, swap: true}, Config{}, WithRecorder(rec))
	stop := start(t, g)

	g.Trigger()
	waitOn(t, sim.swaps)

	require.NoError(t, stop())
	assert.Equal(t, 1, rec.get(BranchSwap))
	assert.Empty(t, sim.regs)
}

func TestGenerator_TriggerFiresRegistrationBranch(t *testing.T) {
	sim := newFakeSimulator()
	rec := &tickCounter{}
	g := New(sim, fixedPolicy{interval: time.Hour}, Config{}, WithRecorder(rec))
	stop := start(t, g)

	g.Trigger()
	waitOn(t, sim.regs)

	require.NoError(t, stop())
	assert.Equal(t, 1, rec.get(BranchRegistration))
}

func TestGenerator_TicksOnInterval(t *testing.T) {
	sim := newFakeSimulator()
	g := New(sim, fixedPolicy{interval: 5 * time.Millisecond}, Config{})
	stop := start(t, g)

	waitOn(t, sim.regs)
	waitOn(t, sim.regs)
	require.NoError(t, stop())
}

func TestGenerator_SurvivesFailingTicks(t *testing.T) {
	sim := newFakeSimulator()
	sim.swapErr = errors.New("store unavailable")
	rec := &tickCounter{}
	g := New(sim, fixedPolicy{interval: time.Hour, swap: true}, Config{}, WithRecorder(rec))
	stop := start(t, g)

	g.Trigger()
	waitOn(t, sim.swaps)
	g.Trigger()
	waitOn(t, sim.swaps)

	require.NoError(t, stop())
	assert.Equal(t, 2, rec.get(BranchFailed))
}

func TestGenerator_RecoversFromPanic(t *testing.T) {
	sim := newFakeSimulator()
	sim.panics = true
	rec := &tickCounter{}
	g := New(sim, fixedPolicy{interval: time.Hour, swap: true}, Config{}, WithRecorder(rec))
	stop := start(t, g)

	g.Trigger()
	waitOn(t, sim.swaps)
	g.Trigger()
	waitOn(t, sim.swaps)

	require.NoError(t, stop())
	assert.Equal(t, 2, rec.get(BranchFailed))
}

func TestGenerator_NormalisesIntervals(t *testing.T) {
	g := New(newFakeSimulator(), fixedPolicy{}, Config{MinInterval: 10 * time.Second, MaxInterval: time.Second})
	assert.Equal(t, 10*time.Second, g.cfg.MaxInterval)
}

type nopPublisher struct{}

func (nopPublisher) Broadcast(realtime.Event) {}

func TestGenerator_DrivesCommandHandler(t *testing.T) {
	store := registry.NewStore(registry.DefaultSeed())
	h := commands.NewHandler(commands.Dependencies{
		Store:     store,
		Publisher: nopPublisher{},
		Policy:    policy.NewRandom(7),
	})
	rec := &tickCounter{}
	g := New(h, fixedPolicy{Policy: policy.NewRandom(7), interval: time.Hour}, Config{}, WithRecorder(rec))
	stop := start(t, g)

	before := store.Snapshot()
	g.Trigger()
	require.Eventually(t, func() bool { return rec.get(BranchRegistration) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	after := store.Snapshot()
	assert.Len(t, after.Sims, len(before.Sims)+1)
	assert.Len(t, after.Registered, len(before.Registered)+1)
	assert.True(t, after.Sims[0].Locked)
}
