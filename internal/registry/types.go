package registry

// Level is the severity attached to an alert.
type Level string

const (
	LevelInfo   Level = "info"
	LevelWarn   Level = "warn"
	LevelDanger Level = "danger"
)

// Risk is the tier assigned to a registered number.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Valid reports whether r is one of the known tiers.
func (r Risk) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// MaxLogEntries caps both the alert log and the activity log.
const MaxLogEntries = 200

// Sim is a monitored SIM card.
type Sim struct {
	ID     string `json:"id" yaml:"id"`
	Number string `json:"number" yaml:"number"`
	Locked bool   `json:"locked" yaml:"locked"`
	Last   string `json:"last" yaml:"last"`
}

// RegisteredNumber is a number registered against the subscriber's identity.
type RegisteredNumber struct {
	ID       string `json:"id" yaml:"id"`
	Number   string `json:"number" yaml:"number"`
	Relation string `json:"relation" yaml:"relation"`
	Risk     Risk   `json:"risk" yaml:"risk"`
}

// Alert is one entry of the alert log. Entries are never modified after creation.
type Alert struct {
	ID    string `json:"id"`
	TS    string `json:"ts"`
	Text  string `json:"text"`
	Level Level  `json:"level"`
}

// Activity is one entry of the activity log.
type Activity struct {
	ID   string `json:"id"`
	TS   string `json:"ts"`
	Text string `json:"text"`
}

// Snapshot is a point-in-time copy of every collection held by the Store.
type Snapshot struct {
	Sims       []Sim              `json:"sims"`
	Registered []RegisteredNumber `json:"registered"`
	Alerts     []Alert            `json:"alerts"`
	Activity   []Activity         `json:"activity"`
}

// Collections is the partial payload pushed when collection membership changes.
type Collections struct {
	Sims       []Sim              `json:"sims"`
	Registered []RegisteredNumber `json:"registered"`
}
