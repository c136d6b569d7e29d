package commands

import (
	"context"
	"fmt"

	"simguard/internal/policy"
	"simguard/internal/registry"
	"simguard/pkg/realtime"
)

// Action names accepted by Action.
const (
	ActionLock   = "lock"
	ActionUnlock = "unlock"
)

// ActionResult is returned by Action.
type ActionResult struct {
	Status string       `json:"status"`
	Sim    registry.Sim `json:"sim"`
}

// Action dispatches a lock or unlock request. The sim is resolved before the
// action name, so an unknown sim reports ErrNotFound whatever the action.
func (h *Handler) Action(ctx context.Context, simID, action string) (ActionResult, error) {
	switch action {
	case ActionLock:
		sim, err := h.Lock(ctx, simID)
		return ActionResult{Status: "locked", Sim: sim}, err
	case ActionUnlock:
		sim, err := h.Unlock(ctx, simID)
		return ActionResult{Status: "unlocked", Sim: sim}, err
	}
	err := h.store.View(func(st *registry.State) error {
		_, err := findSim(st, simID)
		return err
	})
	if err == nil {
		err = fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	h.rec.Command("action", resultLabel(err))
	return ActionResult{}, err
}

// Lock locks a sim on the user's request.
func (h *Handler) Lock(ctx context.Context, simID string) (registry.Sim, error) {
	return h.setLocked(ctx, "lock", simID, true)
}

// Unlock unlocks a sim on the user's request. Unlocking an unlocked sim is
// still recorded and announced.
func (h *Handler) Unlock(ctx context.Context, simID string) (registry.Sim, error) {
	return h.setLocked(ctx, "unlock", simID, false)
}

func (h *Handler) setLocked(ctx context.Context, name, simID string, locked bool) (registry.Sim, error) {
	var out registry.Sim
	err := h.apply(name, func(st *registry.State) ([]realtime.Event, error) {
		sim, err := findSim(st, simID)
		if err != nil {
			return nil, err
		}
		sim.Locked = locked
		var alert registry.Alert
		if locked {
			sim.Last = "Locked by user • " + st.Timestamp()
			st.AppendActivity(sim.Number + " locked via API")
			alert = st.AppendAlert("SIM "+sim.Number+" locked by user", registry.LevelInfo)
		} else {
			sim.Last = "Unlocked by user • " + st.Timestamp()
			st.AppendActivity(sim.Number + " unlocked via API")
			alert = st.AppendAlert("SIM "+sim.Number+" unlocked by user", registry.LevelWarn)
		}
		out = *sim
		return []realtime.Event{alertEvent(alert)}, nil
	})
	if err != nil {
		return registry.Sim{}, err
	}
	h.log.InfoContext(ctx, "sim "+name, "sim", simID, "locked", out.Locked)
	return out, nil
}

// Step is one stage of the recovery wizard.
type Step string

const (
	StepFreeze     Step = "freeze"
	StepReset      Step = "reset"
	StepNotifyBank Step = "notify-bank"
	StepOpenCase   Step = "open-case"
	StepPolice     Step = "police"
)

// Steps lists the recovery steps in wizard order.
var Steps = []Step{StepFreeze, StepReset, StepNotifyBank, StepOpenCase, StepPolice}

// ParseStep validates a step name.
func ParseStep(s string) (Step, error) {
	for _, step := range Steps {
		if string(step) == s {
			return step, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStep, s)
}

// Recovery runs one recovery wizard step for a sim. Only freeze changes the
// sim itself; every step is logged and announced. An unknown sim takes
// precedence over an unknown step.
func (h *Handler) Recovery(ctx context.Context, simID string, step Step) error {
	ref := 0
	if step == StepOpenCase {
		ref = h.policy.CaseRef()
	}
	err := h.apply("recovery", func(st *registry.State) ([]realtime.Event, error) {
		sim, err := findSim(st, simID)
		if err != nil {
			return nil, err
		}
		if _, err := ParseStep(string(step)); err != nil {
			return nil, err
		}
		var alert registry.Alert
		switch step {
		case StepFreeze:
			sim.Locked = true
			alert = st.AppendAlert("Recovery: SIM "+sim.Number+" frozen via wizard", registry.LevelInfo)
			st.AppendActivity("Recovery freeze for " + sim.Number)
		case StepReset:
			alert = st.AppendAlert("Recovery: password reset initiated for "+sim.Number, registry.LevelWarn)
			st.AppendActivity("Recovery reset triggered for " + sim.Number)
		case StepNotifyBank:
			alert = st.AppendAlert("Recovery: bank partners notified for "+sim.Number, registry.LevelWarn)
			st.AppendActivity("Recovery notify-bank for " + sim.Number)
		case StepOpenCase:
			alert = st.AppendAlert(fmt.Sprintf("Recovery: Telco case opened for %s (Ref #%d)", sim.Number, ref), registry.LevelDanger)
			st.AppendActivity(fmt.Sprintf("Recovery open-case for %s ref %d", sim.Number, ref))
		case StepPolice:
			alert = st.AppendAlert("Recovery: SAPS note generated for "+sim.Number, registry.LevelDanger)
			st.AppendActivity("Recovery police note for " + sim.Number)
		}
		return []realtime.Event{alertEvent(alert)}, nil
	})
	if err != nil {
		return err
	}
	h.log.InfoContext(ctx, "recovery step", "sim", simID, "step", step)
	return nil
}

// RiskScore draws a risk tier for an existing sim. It does not change state.
func (h *Handler) RiskScore(ctx context.Context, simID string) (policy.Tier, error) {
	err := h.store.View(func(st *registry.State) error {
		_, err := findSim(st, simID)
		return err
	})
	h.rec.Command("risk", resultLabel(err))
	if err != nil {
		return "", err
	}
	tier := h.policy.RiskTier()
	h.log.DebugContext(ctx, "risk score", "sim", simID, "tier", tier)
	return tier, nil
}
