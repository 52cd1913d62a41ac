package audit

import "time"

// Event types.
const (
	EventAccessGrant  = "AccessGrant"
	EventAccessRevoke = "AccessRevoke"
)

// Identity types.
const (
	IdentityHuman = "human"
	IdentityNHI   = "nhi"
)

// Target types.
const (
	TargetEntraGroup    = "EntraGroup"
	TargetAzureResource = "AzureResource"
)

// Results.
const (
	ResultSuccess = "Success"
	ResultFailed  = "Failed"
)

// Event is one append-only audit record. Field names match the analytics
// table the downstream sink ingests, so the JSON shape is part of the
// contract: every grant attempt and every revoke attempt produces exactly
// one Event, success or failure.
type Event struct {
	TimeGenerated   time.Time `json:"TimeGenerated"`
	EventType       string    `json:"EventType"`
	IdentityType    string    `json:"IdentityType"`
	PrincipalID     string    `json:"PrincipalId"`
	Target          string    `json:"Target"`
	TargetType      string    `json:"TargetType"`
	Result          string    `json:"Result"`
	Role            string    `json:"Role,omitempty"`
	DurationMinutes int       `json:"DurationMinutes,omitempty"`
	Justification   string    `json:"Justification,omitempty"`
	TicketID        string    `json:"TicketId,omitempty"`
	WorkflowID      string    `json:"WorkflowId,omitempty"`
	ExpiresAt       string    `json:"ExpiresAt,omitempty"`
	ErrorMessage    string    `json:"ErrorMessage,omitempty"`
}
