package model

import "encoding/json"

// GateStatus is the lifecycle of a human approval gate: proposed → accepted | rejected.
type GateStatus string

const (
	GateProposed GateStatus = "proposed"
	GateAccepted GateStatus = "accepted"
	GateRejected GateStatus = "rejected"
)

// Terminal reports whether the gate has been decided.
func (s GateStatus) Terminal() bool {
	return s == GateAccepted || s == GateRejected
}

// Gate is a proposed side effect awaiting a human decision. ID is the tool call id that
// proposed it and doubles as the UI correlation id.
type Gate struct {
	ID        string          `json:"id"`
	Subgraph  string          `json:"subgraph"`
	Component string          `json:"component"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	Status    GateStatus      `json:"status"`
}

// Decided returns a copy of g moved to status.
func (g *Gate) Decided(status GateStatus) *Gate {
	out := *g
	out.Status = status
	return &out
}
