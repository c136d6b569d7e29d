package viewmodel

import (
	"time"

	"simguard/internal/registry"
)

// Dashboard holds data for the dashboard page template.
type Dashboard struct {
	Title      string
	SocketPath string
	Sims       []SimRow
	Registered []RegisteredRow
	Alerts     []AlertRow
	Activity   []ActivityRow
	Steps      []string
}

// SimRow is one line of the monitored SIM table.
type SimRow struct {
	ID     string
	Number string
	Locked bool
	Last   string
}

// RegisteredRow is one number registered against the user's identity.
type RegisteredRow struct {
	Number   string
	Relation string
	Risk     string
}

// AlertRow is one alert feed entry.
type AlertRow struct {
	ID    string
	Time  string
	Text  string
	Level string
}

// ActivityRow is one activity log entry.
type ActivityRow struct {
	Time string
	Text string
}

// NewDashboard converts a registry snapshot into page data.
func NewDashboard(snap registry.Snapshot, steps []string) Dashboard {
	d := Dashboard{
		Title:      "SIM Guard",
		SocketPath: "/ws",
		Sims:       make([]SimRow, 0, len(snap.Sims)),
		Registered: make([]RegisteredRow, 0, len(snap.Registered)),
		Alerts:     make([]AlertRow, 0, len(snap.Alerts)),
		Activity:   make([]ActivityRow, 0, len(snap.Activity)),
		Steps:      steps,
	}
	for _, s := range snap.Sims {
		d.Sims = append(d.Sims, SimRow{ID: s.ID, Number: s.Number, Locked: s.Locked, Last: s.Last})
	}
	for _, r := range snap.Registered {
		d.Registered = append(d.Registered, RegisteredRow{Number: r.Number, Relation: r.Relation, Risk: string(r.Risk)})
	}
	for _, a := range snap.Alerts {
		d.Alerts = append(d.Alerts, AlertRow{ID: a.ID, Time: clock(a.TS), Text: a.Text, Level: string(a.Level)})
	}
	for _, a := range snap.Activity {
		d.Activity = append(d.Activity, ActivityRow{Time: clock(a.TS), Text: a.Text})
	}
	return d
}

// clock renders an RFC 3339 timestamp as HH:MM:SS, or returns it unchanged
// when it does not parse.
func clock(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}
