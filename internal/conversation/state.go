package conversation

import "time"

// Stage is a position in the fixed commercial flow. Stages only move forward,
// or jump to StageHandoff.
type Stage string

const (
	StageNeed              Stage = "NEED"
	StageBudget            Stage = "BUDGET"
	StageOptions           Stage = "OPTIONS"
	StageFinancingInterest Stage = "FINANCING_INTEREST"
	StageDownPayment       Stage = "DOWN_PAYMENT"
	StageTerm              Stage = "TERM"
	StageLeadName          Stage = "LEAD_NAME"
	StageLeadPhone         Stage = "LEAD_PHONE"
	StageLeadTime          Stage = "LEAD_TIME"
	StageHandoff           Stage = "HANDOFF"
)

var stageOrder = map[Stage]int{
	StageNeed:              0,
	StageBudget:            1,
	StageOptions:           2,
	StageFinancingInterest: 3,
	StageDownPayment:       4,
	StageTerm:              5,
	StageLeadName:          6,
	StageLeadPhone:         7,
	StageLeadTime:          8,
	StageHandoff:           9,
}

// Order returns the stage's position in the flow, or -1 for unknown stages.
func (s Stage) Order() int {
	order, ok := stageOrder[s]
	if !ok {
		return -1
	}
	return order
}

// Slots holds everything extracted from the conversation so far. Values are
// recorded as soon as they appear unambiguously, even ahead of their stage.
type Slots struct {
	Need           string  `json:"need,omitempty"`
	Budget         float64 `json:"budget,omitempty"`
	Preferences    string  `json:"preferences,omitempty"`
	ChosenOption   string  `json:"chosen_option,omitempty"`
	ChosenPrice    float64 `json:"chosen_price,omitempty"`
	DownPaymentPct float64 `json:"down_payment_pct,omitempty"`
	TermMonths     int     `json:"term_months,omitempty"`
	LeadName       string  `json:"lead_name,omitempty"`
	LeadPhone      string  `json:"lead_phone,omitempty"`
	LeadTime       string  `json:"lead_time,omitempty"`
}

// State is the full conversation snapshot for one session. The state machine
// receives and returns it as a value; storage and versioning belong to the
// state store.
type State struct {
	SessionID       string    `json:"session_id"`
	Channel         string    `json:"channel"`
	Stage           Stage     `json:"flow_stage"`
	Slots           Slots     `json:"collected_slots"`
	TurnCount       int       `json:"turn_count"`
	ClarifyAttempts int       `json:"clarify_attempts"`
	LastUpdatedAt   time.Time `json:"last_updated_at"`
	Version         int64     `json:"version"`
}

// NewState returns a fresh state at the start of the flow.
func NewState(sessionID, channel string) *State {
	return &State{
		SessionID: sessionID,
		Channel:   channel,
		Stage:     StageNeed,
	}
}

// Clone returns an independent copy. Slots contains only value fields, so a
// shallow copy is a deep copy.
func (s *State) Clone() *State {
	copied := *s
	return &copied
}

// Expired reports whether the state passed its inactivity TTL at the given
// instant. A zero LastUpdatedAt (never saved) is not expired.
func (s *State) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 || s.LastUpdatedAt.IsZero() {
		return false
	}
	return now.Sub(s.LastUpdatedAt) > ttl
}
