// Package generator stages background swap attempts and remote registrations
// at random intervals.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"simguard/internal/commands"
	"simguard/internal/policy"
	"simguard/pkg/realtime"
)

// Branch labels reported to the Recorder.
const (
	BranchSwap         = "swap"
	BranchRegistration = "registration"
	BranchFailed       = "failed"
)

// Simulator is the subset of the command handler the generator drives.
type Simulator interface {
	SimulateSwap(ctx context.Context) (commands.SwapResult, error)
	SimulateRegistration(ctx context.Context) (commands.Registration, error)
}

// Recorder counts generator ticks by branch.
type Recorder interface {
	Tick(branch string)
}

type nopRecorder struct{}

func (nopRecorder) Tick(string) {}

// Config bounds the wait between ticks.
type Config struct {
	MinInterval time.Duration
	MaxInterval time.Duration
}

// Generator periodically fires simulated events through a Simulator.
type Generator struct {
	sim    Simulator
	policy policy.Policy
	loop   *realtime.Loop
	cfg    Config
	rec    Recorder
	log    *slog.Logger
}

// Option customises a Generator.
type Option func(*Generator)

// WithRecorder reports each tick to rec.
func WithRecorder(rec Recorder) Option {
	return func(g *Generator) {
		if rec != nil {
			g.rec = rec
		}
	}
}

// WithLogger sets the generator logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

// New builds a Generator. A max interval below min is raised to min.
func New(sim Simulator, pol policy.Policy, cfg Config, opts ...Option) *Generator {
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}
	g := &Generator{
		sim:    sim,
		policy: pol,
		loop:   realtime.NewLoop(),
		cfg:    cfg,
		rec:    nopRecorder{},
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run fires events until ctx is cancelled. A failing tick is logged and the
// loop carries on. Run returns nil on cancellation.
func (g *Generator) Run(ctx context.Context) error {
	g.log.InfoContext(ctx, "generator started", "min_interval", g.cfg.MinInterval, "max_interval", g.cfg.MaxInterval)
	err := g.loop.Run(ctx, time.Now().Add(g.wait()), func(now time.Time) (time.Time, bool) {
		g.tick(ctx)
		return now.Add(g.wait()), false
	})
	g.log.InfoContext(ctx, "generator stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Trigger makes a running generator fire now instead of waiting.
func (g *Generator) Trigger() {
	g.loop.Wake()
}

func (g *Generator) wait() time.Duration {
	return g.policy.Interval(g.cfg.MinInterval, g.cfg.MaxInterval)
}

func (g *Generator) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			g.rec.Tick(BranchFailed)
			g.log.ErrorContext(ctx, "generator tick panicked", "panic", fmt.Sprint(r))
		}
	}()

	if g.policy.SwapBranch() {
		res, err := g.sim.SimulateSwap(ctx)
		if err != nil {
			g.rec.Tick(BranchFailed)
			g.log.WarnContext(ctx, "simulated swap failed", "err", err)
			return
		}
		g.rec.Tick(BranchSwap)
		g.log.DebugContext(ctx, "simulated swap", "sim", res.Sim.ID, "auto_locked", res.AutoLocked)
		return
	}

	res, err := g.sim.SimulateRegistration(ctx)
	if err != nil {
		g.rec.Tick(BranchFailed)
		g.log.WarnContext(ctx, "simulated registration failed", "err", err)
		return
	}
	g.rec.Tick(BranchRegistration)
	g.log.DebugContext(ctx, "simulated registration", "number", res.Registered.Number, "risk", res.Registered.Risk)
}
