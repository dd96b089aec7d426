package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/havenhub/apiserver/types"
)

// TenantRepository defines persistence operations for tenant records.
type TenantRepository interface {
	GetByID(ctx context.Context, id int) (types.Tenant, error)
	GetActiveByUserID(ctx context.Context, userID int) (types.Tenant, error)
	Update(ctx context.Context, tenant types.Tenant) (types.Tenant, error)
}

// TenantService encapsulates lease use-cases. Lease creation and ending
// belong to the role-transition workflow; this service covers reads and
// payment recording.
type TenantService struct {
	repo       TenantRepository
	properties PropertyRepository
	notifier   Notifier
}

func NewTenantService(repo TenantRepository, properties PropertyRepository, notifier Notifier) *TenantService {
	return &TenantService{repo: repo, properties: properties, notifier: notifier}
}

// Lease pairs a tenant record with its property for display.
type Lease struct {
	Tenant   types.Tenant   `json:"tenant"`
	Property types.Property `json:"property"`
}

// GetLease returns the caller's current lease with the property
// populated.
func (s *TenantService) GetLease(ctx context.Context, userID int) (Lease, error) {
	tenant, err := s.repo.GetActiveByUserID(ctx, userID)
	if err != nil {
		return Lease{}, err
	}
	property, err := s.properties.Get(ctx, tenant.PropertyID)
	if err != nil {
		return Lease{}, err
	}
	return Lease{Tenant: tenant, Property: property}, nil
}

// RecordPayment appends a payment record to a lease. The tenant
// themselves or an admin may record; the version token guards against
// concurrent appends losing entries.
func (s *TenantService) RecordPayment(ctx context.Context, actor types.User, tenantID int, payment types.Payment) (types.Tenant, error) {
	tenant, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return types.Tenant{}, err
	}
	if !actor.IsAdmin() && actor.ID != tenant.UserID {
		return types.Tenant{}, fmt.Errorf("%w: not your lease", ErrForbidden)
	}
	if tenant.Status == types.TenantInactive {
		return types.Tenant{}, fmt.Errorf("%w: lease %d has ended", ErrConflict, tenantID)
	}
	if payment.Amount <= 0 {
		return types.Tenant{}, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	if strings.TrimSpace(payment.Method) == "" {
		return types.Tenant{}, fmt.Errorf("%w: payment method is required", ErrValidation)
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now()
	}
	if payment.Status == "" {
		payment.Status = types.PaymentCompleted
	}

	tenant.Payments = append(tenant.Payments, payment)
	updated, err := s.repo.Update(ctx, tenant)
	if err != nil {
		return types.Tenant{}, err
	}

	s.notifier.PaymentRecorded(ctx, types.PaymentRecordedEvent{
		TenantID:   tenantID,
		UserID:     tenant.UserID,
		Amount:     payment.Amount,
		Method:     payment.Method,
		Reference:  payment.Reference,
		OccurredAt: time.Now(),
	})
	return updated, nil
}
