package types

import "time"

// Approval statuses a Property moves through. The state machine is
// pending -> approved | rejected, with rejected -> pending allowed on
// resubmission. Approved is terminal; the separate availability field
// governs the sale/rental lifecycle afterwards.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Availability values for a Property.
const (
	AvailabilityAvailable = "available"
	AvailabilityRented    = "rented"
	AvailabilitySold      = "sold"
	AvailabilityBooked    = "booked"
)

// Property represents a listing created by an agent and reviewed by an
// admin before it becomes publicly visible.
type Property struct {
	// ID is the unique identifier of the property.
	ID int `json:"id" db:"id"`

	// Title is the human-readable name of the listing.
	Title string `json:"title" db:"title"`

	// Description contains the full listing text.
	Description string `json:"description" db:"description"`

	// City and Address locate the property.
	City    string `json:"city" db:"city"`
	Address string `json:"address" db:"address"`

	// Price is the asking price or monthly rent depending on Category.
	Price float64 `json:"price" db:"price"`

	// Category is "sale" or "rent".
	Category string `json:"category" db:"category"`

	// Type is the property type ("apartment", "house", "office", ...).
	Type string `json:"type" db:"type"`

	// Availability tracks the sale/rental lifecycle:
	// "available", "rented", "sold", or "booked".
	Availability string `json:"availability" db:"availability"`

	// ApprovalStatus is the admin review state:
	// "pending", "approved", or "rejected".
	ApprovalStatus string `json:"approval_status" db:"approval_status"`

	// ReviewNotes holds the admin's feedback from the last decision.
	// Mandatory on rejection, optional on approval.
	ReviewNotes string `json:"review_notes,omitempty" db:"review_notes"`

	// ReviewedBy is the id of the admin who made the last decision.
	// Zero when the property has never been decided.
	ReviewedBy int `json:"reviewed_by,omitempty" db:"reviewed_by"`

	// ReviewedAt is when the last decision was made.
	ReviewedAt *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`

	// AgentID references the owning agent profile.
	AgentID int `json:"agent_id" db:"agent_id"`

	// Visible controls public browsing. A property is publicly
	// reachable only when Visible is true AND ApprovalStatus is
	// "approved".
	Visible bool `json:"visible" db:"visible"`

	// Images is the ordered list of object-storage keys for the
	// property's photos.
	Images []string `json:"images" db:"images"`

	// Amenities are free-form labels attached to the listing.
	Amenities []string `json:"amenities" db:"amenities"`

	// Version is the optimistic-concurrency token. Incremented on every
	// update; writes carrying a stale version are rejected.
	Version int `json:"version" db:"version"`

	// CreatedAt is the timestamp at which the listing was created.
	// The admin review queue is ordered by this field, oldest first.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PubliclyVisible reports whether the property may appear in public
// browsing results.
func (p Property) PubliclyVisible() bool {
	return p.Visible && p.ApprovalStatus == ApprovalApproved
}

// PendingProperty is a review-queue entry: the property populated with
// its owning agent and that agent's user for display.
type PendingProperty struct {
	Property Property `json:"property"`
	Agent    Agent    `json:"agent"`
	User     User     `json:"user"`
}

// PropertyFilter narrows public property listings.
type PropertyFilter struct {
	City     string
	Type     string
	Category string
	MinPrice float64
	MaxPrice float64
}
