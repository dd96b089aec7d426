package types

import "time"

// Subscription tiers available to agents.
const (
	SubscriptionBasic   = "basic"
	SubscriptionPremium = "premium"
	SubscriptionPro     = "pro"
)

// DefaultSubscriptionTerm is the subscription period granted when an
// Agent profile is first created.
const DefaultSubscriptionTerm = 30 * 24 * time.Hour

// Agent represents the satellite profile attached to a User whose role
// is "agent". Exactly one Agent row exists per such user; the profile is
// created and deleted by the role-transition workflow, never directly.
type Agent struct {
	// ID is the unique identifier of the agent profile.
	ID int `json:"id" db:"id"`

	// UserID references the owning user. Unique: one profile per user.
	UserID int `json:"user_id" db:"user_id"`

	// Subscription is the agent's subscription tier
	// ("basic", "premium", "pro"). New profiles start on "basic".
	Subscription string `json:"subscription" db:"subscription"`

	// Active indicates whether the agent account is in good standing.
	Active bool `json:"active" db:"active"`

	// Visible controls whether the agent appears in public agent listings.
	Visible bool `json:"visible" db:"visible"`

	// SubscriptionExpiresAt is when the current subscription term ends.
	SubscriptionExpiresAt time.Time `json:"subscription_expires_at" db:"subscription_expires_at"`

	// Bio is the agent's free-form profile text.
	Bio string `json:"bio" db:"bio"`

	// Phone is the agent's contact number.
	Phone string `json:"phone" db:"phone"`

	// Agency is the name of the agency the agent works for, if any.
	Agency string `json:"agency" db:"agency"`

	// Version is the optimistic-concurrency token. Incremented on every
	// update; writes carrying a stale version are rejected.
	Version int `json:"version" db:"version"`

	// CreatedAt is the timestamp at which the profile was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent profile update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
