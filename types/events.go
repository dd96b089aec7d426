package types

import "time"

// Notification event kinds published to the message bus.
const (
	EventRoleChanged     = "role.changed"
	EventPropertyDecided = "property.decided"
	EventLeaseEnded      = "lease.ended"
	EventTenantAssigned  = "tenant.assigned"
	EventPaymentRecorded = "payment.recorded"
)

// RoleChangedEvent is published after a successful role transition.
type RoleChangedEvent struct {
	UserID     int       `json:"user_id"`
	OldRole    string    `json:"old_role"`
	NewRole    string    `json:"new_role"`
	ActorID    int       `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PropertyDecidedEvent is published after an admin decides a pending
// property. The notification layer uses it to inform the owning agent.
type PropertyDecidedEvent struct {
	PropertyID int       `json:"property_id"`
	AgentID    int       `json:"agent_id"`
	Decision   string    `json:"decision"`
	Notes      string    `json:"notes,omitempty"`
	ReviewedBy int       `json:"reviewed_by"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TenantAssignedEvent is published when a lease is created through the
// role workflow.
type TenantAssignedEvent struct {
	UserID     int       `json:"user_id"`
	PropertyID int       `json:"property_id"`
	ActorID    int       `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LeaseEndedEvent is published when an admin ends a lease.
type LeaseEndedEvent struct {
	TenantID   int       `json:"tenant_id"`
	UserID     int       `json:"user_id"`
	PropertyID int       `json:"property_id"`
	ActorID    int       `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentRecordedEvent is published after a payment lands on a lease.
type PaymentRecordedEvent struct {
	TenantID   int       `json:"tenant_id"`
	UserID     int       `json:"user_id"`
	Amount     float64   `json:"amount"`
	Method     string    `json:"method"`
	Reference  string    `json:"reference,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
