package types

import "time"

// Tenant lease statuses.
const (
	TenantActive   = "active"
	TenantPending  = "pending"
	TenantInactive = "inactive"
)

// Payment statuses.
const (
	PaymentCompleted = "completed"
	PaymentPending   = "pending"
	PaymentFailed    = "failed"
)

// Tenant represents the satellite profile attached to a User whose role
// is "tenant". An active Tenant row references exactly one Property for
// the current lease. Ended leases are kept with status "inactive" so the
// payment history survives role reverts.
type Tenant struct {
	// ID is the unique identifier of the tenant record.
	ID int `json:"id" db:"id"`

	// UserID references the owning user.
	UserID int `json:"user_id" db:"user_id"`

	// PropertyID references the leased property.
	PropertyID int `json:"property_id" db:"property_id"`

	// LeaseStart and LeaseEnd bound the lease term.
	LeaseStart time.Time `json:"lease_start" db:"lease_start"`
	LeaseEnd   time.Time `json:"lease_end" db:"lease_end"`

	// MonthlyRent is the agreed rent amount per month.
	MonthlyRent float64 `json:"monthly_rent" db:"monthly_rent"`

	// SecurityDeposit is the deposit held for the lease.
	SecurityDeposit float64 `json:"security_deposit" db:"security_deposit"`

	// Status is the lease status: "active", "pending", or "inactive".
	// At most one non-inactive record exists per user.
	Status string `json:"status" db:"status"`

	// Payments is the ordered list of payment records for this lease.
	// Stored as JSON alongside the lease.
	Payments []Payment `json:"payments" db:"payments"`

	// Version is the optimistic-concurrency token for this record.
	Version int `json:"version" db:"version"`

	// CreatedAt is the timestamp at which the record was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Payment is a single rent or deposit payment recorded against a lease.
type Payment struct {
	// Amount paid, in the property's listing currency.
	Amount float64 `json:"amount"`

	// PaidAt is when the payment was made.
	PaidAt time.Time `json:"paid_at"`

	// Method is the payment method ("card", "transfer", "cash", ...).
	Method string `json:"method"`

	// Status is "completed", "pending", or "failed".
	Status string `json:"status"`

	// Reference is an external transaction reference, if any.
	Reference string `json:"reference,omitempty"`
}

// LeaseTerms carries the parameters required to assign a user as tenant
// of a property. Tenant creation is always a deliberate assignment, not
// a side effect of a bare role flip.
type LeaseTerms struct {
	PropertyID      int       `json:"property_id"`
	LeaseStart      time.Time `json:"lease_start"`
	LeaseEnd        time.Time `json:"lease_end"`
	MonthlyRent     float64   `json:"monthly_rent"`
	SecurityDeposit float64   `json:"security_deposit"`
}
