package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/havenhub/apiserver/internal/store"
	"github.com/havenhub/apiserver/types"
	"go.uber.org/zap"
)

// RoleService is the single module boundary for role mutation. No other
// code writes users.role: every transition goes through SetUserRole (or
// EndLease, which is a transition back to "user"), so the role field and
// its satellite profile always move together in one transaction.
type RoleService struct {
	db         *sql.DB
	users      *store.UserRepository
	agents     *store.AgentRepository
	tenants    *store.TenantRepository
	properties *store.PropertyRepository
	notifier   Notifier
	cache      ListingInvalidator
	logger     *zap.Logger
}

func NewRoleService(db *sql.DB, notifier Notifier, cache ListingInvalidator, logger *zap.Logger) *RoleService {
	return &RoleService{
		db:         db,
		users:      store.NewUserRepository(db),
		agents:     store.NewAgentRepository(db),
		tenants:    store.NewTenantRepository(db),
		properties: store.NewPropertyRepository(db),
		notifier:   notifier,
		cache:      cache,
		logger:     logger,
	}
}

// SetUserRole transitions a user to newRole, creating or removing the
// matching satellite profile in the same transaction.
//
// Transitions into "tenant" require lease terms: tenant creation is a
// deliberate assignment, never a bare role flip. Transitions out of
// "agent" delete the profile and unpublish the agent's listings;
// transitions out of "tenant" end the lease (kept inactive for history)
// and free the property.
//
// The operation converges on retry: profiles are created only if absent
// and removed only if present.
func (s *RoleService) SetUserRole(ctx context.Context, actor types.User, userID int, newRole string, lease *types.LeaseTerms) (types.User, error) {
	if !types.ValidRole(newRole) {
		return types.User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, newRole)
	}
	if !actor.IsAdmin() {
		return types.User{}, fmt.Errorf("%w: role transitions require admin", ErrForbidden)
	}
	if newRole == types.RoleTenant {
		if lease == nil {
			return types.User{}, fmt.Errorf("%w: tenant transition requires lease terms", ErrConflict)
		}
		if err := validateLease(*lease); err != nil {
			return types.User{}, err
		}
	}

	var updated types.User
	var oldRole string

	err := store.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		users := s.users.WithTx(tx)
		agents := s.agents.WithTx(tx)
		tenants := s.tenants.WithTx(tx)
		properties := s.properties.WithTx(tx)

		user, err := users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		oldRole = user.Role

		if newRole == types.RoleAgent {
			if err := s.ensureAgentProfile(ctx, agents, userID); err != nil {
				return err
			}
		} else {
			if err := s.removeAgentProfile(ctx, agents, properties, userID); err != nil {
				return err
			}
		}

		if newRole == types.RoleTenant {
			if err := s.assignTenant(ctx, tenants, properties, userID, *lease); err != nil {
				return err
			}
		} else {
			if err := s.endActiveLease(ctx, tenants, properties, userID); err != nil {
				return err
			}
		}

		if err := users.SetRole(ctx, userID, newRole); err != nil {
			return err
		}

		user.Role = newRole
		updated = user
		return nil
	})
	if err != nil {
		return types.User{}, err
	}

	// Demotion unpublishes listings and tenant moves flip availability,
	// so cached public pages may be stale either way.
	s.cache.InvalidateListings(ctx)

	s.logger.Info("role transition",
		zap.Int("user_id", userID),
		zap.String("old_role", oldRole),
		zap.String("new_role", newRole),
		zap.Int("actor_id", actor.ID),
	)
	s.notifier.RoleChanged(ctx, types.RoleChangedEvent{
		UserID:     userID,
		OldRole:    oldRole,
		NewRole:    newRole,
		ActorID:    actor.ID,
		OccurredAt: time.Now(),
	})
	if newRole == types.RoleTenant {
		s.notifier.TenantAssigned(ctx, types.TenantAssignedEvent{
			UserID:     userID,
			PropertyID: lease.PropertyID,
			ActorID:    actor.ID,
			OccurredAt: time.Now(),
		})
	}
	return updated, nil
}

func (s *RoleService) ensureAgentProfile(ctx context.Context, agents *store.AgentRepository, userID int) error {
	_, err := agents.GetByUserID(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	_, err = agents.Create(ctx, types.Agent{
		UserID:                userID,
		Subscription:          types.SubscriptionBasic,
		Active:                true,
		Visible:               true,
		SubscriptionExpiresAt: time.Now().Add(types.DefaultSubscriptionTerm),
	})
	return err
}

func (s *RoleService) removeAgentProfile(ctx context.Context, agents *store.AgentRepository, properties *store.PropertyRepository, userID int) error {
	agent, err := agents.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	// Unpublish before deleting the profile so no listing of a former
	// agent stays publicly reachable. Deleting the profile clears
	// agent_id on the listings (ON DELETE SET NULL); the rows survive.
	hidden, err := properties.UnpublishByAgent(ctx, agent.ID)
	if err != nil {
		return err
	}
	if hidden > 0 {
		s.logger.Info("unpublished properties of demoted agent",
			zap.Int("agent_id", agent.ID), zap.Int("count", hidden))
	}
	return agents.DeleteByUserID(ctx, userID)
}

func (s *RoleService) assignTenant(ctx context.Context, tenants *store.TenantRepository, properties *store.PropertyRepository, userID int, lease types.LeaseTerms) error {
	current, err := tenants.GetActiveByUserID(ctx, userID)
	if err == nil {
		if current.PropertyID == lease.PropertyID {
			return nil
		}
		return fmt.Errorf("%w: user already holds an active lease on property %d", ErrConflict, current.PropertyID)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	property, err := properties.Get(ctx, lease.PropertyID)
	if err != nil {
		return err
	}
	if property.Availability != types.AvailabilityAvailable {
		return fmt.Errorf("%w: property %d is %s", ErrConflict, property.ID, property.Availability)
	}

	if _, err := tenants.Create(ctx, types.Tenant{
		UserID:          userID,
		PropertyID:      lease.PropertyID,
		LeaseStart:      lease.LeaseStart,
		LeaseEnd:        lease.LeaseEnd,
		MonthlyRent:     lease.MonthlyRent,
		SecurityDeposit: lease.SecurityDeposit,
		Status:          types.TenantActive,
	}); err != nil {
		return err
	}

	availability := types.AvailabilityRented
	if lease.LeaseStart.After(time.Now()) {
		availability = types.AvailabilityBooked
	}
	return properties.SetAvailability(ctx, lease.PropertyID, availability)
}

func (s *RoleService) endActiveLease(ctx context.Context, tenants *store.TenantRepository, properties *store.PropertyRepository, userID int) error {
	tenant, err := tenants.GetActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := tenants.MarkInactive(ctx, userID); err != nil {
		return err
	}
	return properties.SetAvailability(ctx, tenant.PropertyID, types.AvailabilityAvailable)
}

// EndLease ends a lease by id: the tenant record goes inactive, the
// property becomes available again, and the user's role reverts to
// "user". Admin only.
func (s *RoleService) EndLease(ctx context.Context, actor types.User, tenantID int) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: ending a lease requires admin", ErrForbidden)
	}

	var userID, propertyID int
	err := store.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		tenants := s.tenants.WithTx(tx)
		properties := s.properties.WithTx(tx)
		users := s.users.WithTx(tx)

		tenant, err := tenants.GetByID(ctx, tenantID)
		if err != nil {
			return err
		}
		if tenant.Status == types.TenantInactive {
			return fmt.Errorf("%w: lease %d already ended", ErrConflict, tenantID)
		}
		userID = tenant.UserID
		propertyID = tenant.PropertyID

		if err := tenants.MarkInactive(ctx, tenant.UserID); err != nil {
			return err
		}
		if err := properties.SetAvailability(ctx, tenant.PropertyID, types.AvailabilityAvailable); err != nil {
			return err
		}
		return users.SetRole(ctx, tenant.UserID, types.RoleUser)
	})
	if err != nil {
		return err
	}

	s.cache.InvalidateListings(ctx)
	s.logger.Info("lease ended", zap.Int("tenant_id", tenantID), zap.Int("actor_id", actor.ID))
	s.notifier.RoleChanged(ctx, types.RoleChangedEvent{
		UserID:     userID,
		OldRole:    types.RoleTenant,
		NewRole:    types.RoleUser,
		ActorID:    actor.ID,
		OccurredAt: time.Now(),
	})
	s.notifier.LeaseEnded(ctx, types.LeaseEndedEvent{
		TenantID:   tenantID,
		UserID:     userID,
		PropertyID: propertyID,
		ActorID:    actor.ID,
		OccurredAt: time.Now(),
	})
	return nil
}

func validateLease(lease types.LeaseTerms) error {
	if lease.PropertyID < 1 {
		return fmt.Errorf("%w: lease requires a property", ErrValidation)
	}
	if lease.LeaseStart.IsZero() || lease.LeaseEnd.IsZero() {
		return fmt.Errorf("%w: lease requires start and end dates", ErrValidation)
	}
	if !lease.LeaseEnd.After(lease.LeaseStart) {
		return fmt.Errorf("%w: lease end must be after start", ErrValidation)
	}
	if lease.MonthlyRent <= 0 {
		return fmt.Errorf("%w: monthly rent must be positive", ErrValidation)
	}
	if lease.SecurityDeposit < 0 {
		return fmt.Errorf("%w: security deposit cannot be negative", ErrValidation)
	}
	return nil
}
