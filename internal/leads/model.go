package leads

import (
	"strings"
	"time"
)

// Lead is a qualified prospect captured at the end of the commercial flow.
// Leads are keyed by session so a retried handoff updates the existing row
// instead of duplicating it.
type Lead struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	ContactTime    string    `json:"contact_time"`
	Need           string    `json:"need"`
	Budget         float64   `json:"budget"`
	VehicleSummary string    `json:"vehicle_summary"`
	PlanSummary    string    `json:"plan_summary"`
	Channel        string    `json:"channel"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks the fields required before a lead can be stored.
func (l *Lead) Validate() error {
	if strings.TrimSpace(l.SessionID) == "" {
		return ErrMissingSession
	}
	if strings.TrimSpace(l.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(l.Phone) == "" {
		return ErrMissingContact
	}
	return nil
}
