package commands

import (
	"context"
	"fmt"

	"simguard/internal/registry"
	"simguard/pkg/realtime"
)

// SwapResult describes a processed swap attempt.
type SwapResult struct {
	Sim        registry.Sim
	AutoLocked bool
}

// SwapAttempt records a suspicious SIM-swap attempt against simID. An
// unlocked sim is locked on the spot and a second, danger level alert is
// raised; a sim that is already locked only gets the warning.
func (h *Handler) SwapAttempt(ctx context.Context, simID string) (SwapResult, error) {
	return h.swapAttempt(ctx, func(st *registry.State) (*registry.Sim, error) {
		return findSim(st, simID)
	})
}

// SimulateSwap stages a swap attempt against a sim chosen by the policy.
func (h *Handler) SimulateSwap(ctx context.Context) (SwapResult, error) {
	return h.swapAttempt(ctx, func(st *registry.State) (*registry.Sim, error) {
		n := st.SimCount()
		if n == 0 {
			return nil, fmt.Errorf("swap attempt: %w", ErrNotFound)
		}
		return st.SimAt(h.policy.PickSim(n)), nil
	})
}

func (h *Handler) swapAttempt(ctx context.Context, pick func(*registry.State) (*registry.Sim, error)) (SwapResult, error) {
	var res SwapResult
	err := h.apply("swap_attempt", func(st *registry.State) ([]realtime.Event, error) {
		sim, err := pick(st)
		if err != nil {
			return nil, err
		}
		st.AppendActivity("Suspicious SIM-swap attempt detected for " + sim.Number)
		warning := st.AppendAlert("⚠️ Suspicious SIM-swap attempt detected for "+sim.Number, registry.LevelWarn)
		events := []realtime.Event{alertEvent(warning)}

		if !sim.Locked {
			sim.Locked = true
			sim.Last = "Auto-locked on risk • " + st.Timestamp()
			st.AppendActivity(sim.Number + " auto-locked due to risk")
			locked := st.AppendAlert("Auto-locked "+sim.Number+" due to high risk", registry.LevelDanger)
			events = append(events, alertEvent(locked))
			res.AutoLocked = true
		}
		res.Sim = *sim
		return events, nil
	})
	if err != nil {
		return SwapResult{}, err
	}
	h.log.InfoContext(ctx, "swap attempt", "sim", res.Sim.ID, "auto_locked", res.AutoLocked)
	return res, nil
}

// Registration describes a simulated remote registration.
type Registration struct {
	Registered registry.RegisteredNumber
	Sim        registry.Sim
}

// RegisterNumber records a number registered against the user's identity
// elsewhere. The number is added to both lists and its sim starts frozen.
// Subscribers get a danger alert followed by the updated collections.
func (h *Handler) RegisterNumber(ctx context.Context, number string, risk registry.Risk) (Registration, error) {
	if !risk.Valid() {
		risk = registry.RiskHigh
	}
	var res Registration
	err := h.apply("register_number", func(st *registry.State) ([]realtime.Event, error) {
		res.Registered = registry.RegisteredNumber{
			ID:       "reg-" + shortID(st.NewID()),
			Number:   number,
			Relation: "Unknown",
			Risk:     risk,
		}
		st.PrependRegistered(res.Registered)
		st.AppendActivity("New SIM " + number + " registered to your ID on remote ISP")
		alert := st.AppendAlert("New SIM "+number+" registered to your ID — auto-frozen pending review", registry.LevelDanger)

		res.Sim = registry.Sim{
			ID:     st.NewID(),
			Number: number,
			Locked: true,
			Last:   "Auto-locked on registration • " + st.Timestamp(),
		}
		st.PrependSim(res.Sim)
		st.AppendActivity("Auto-added and locked " + number + " to local SIM list")

		return []realtime.Event{alertEvent(alert), stateEvent(st.Collections())}, nil
	})
	if err != nil {
		return Registration{}, err
	}
	h.log.InfoContext(ctx, "number registered", "number", number, "risk", risk, "sim", res.Sim.ID)
	return res, nil
}

// SimulateRegistration registers a number and risk drawn from the policy.
func (h *Handler) SimulateRegistration(ctx context.Context) (Registration, error) {
	return h.RegisterNumber(ctx, h.policy.NewNumber(), h.policy.NewRisk())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
