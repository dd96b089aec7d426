package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/havenhub/apiserver/types"
	"go.uber.org/zap"
)

// Decision values accepted by Decide.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ApprovalRepository is the persistence surface of the approval
// workflow. Decide and Resubmit are state-guarded in SQL so concurrent
// transitions lose cleanly with store.ErrVersionConflict.
type ApprovalRepository interface {
	Get(ctx context.Context, id int) (types.Property, error)
	ListPending(ctx context.Context, offset, limit int) ([]types.PendingProperty, int, error)
	Decide(ctx context.Context, id int, status string, notes string, reviewedBy int, visible bool) (types.Property, error)
	Resubmit(ctx context.Context, id int) (types.Property, error)
}

// ListingInvalidator drops cached public listings after a visibility
// change.
type ListingInvalidator interface {
	InvalidateListings(ctx context.Context)
}

// ApprovalService runs the admin review state machine:
// pending -> approved | rejected, rejected -> pending on resubmission.
// Approved is terminal; deciding anything but a pending property fails.
type ApprovalService struct {
	repo     ApprovalRepository
	agents   AgentRepository
	notifier Notifier
	cache    ListingInvalidator
	logger   *zap.Logger
}

func NewApprovalService(repo ApprovalRepository, agents AgentRepository, notifier Notifier, cache ListingInvalidator, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		repo:     repo,
		agents:   agents,
		notifier: notifier,
		cache:    cache,
		logger:   logger,
	}
}

// ListPending returns the FIFO review queue, oldest submission first,
// each entry populated with the owning agent and that agent's user.
func (s *ApprovalService) ListPending(ctx context.Context, offset, limit int) ([]types.PendingProperty, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.ListPending(ctx, offset, limit)
}

// Decide approves or rejects a pending property. Rejection requires
// non-empty notes; approval makes the property publicly visible
// immediately. Only a pending property can be decided: an
// already-decided one yields ErrConflict, so of two concurrent
// deciders exactly one wins.
func (s *ApprovalService) Decide(ctx context.Context, actor types.User, propertyID int, decision, notes string) (types.Property, error) {
	if !actor.IsAdmin() {
		return types.Property{}, fmt.Errorf("%w: property decisions require admin", ErrForbidden)
	}

	var status string
	var visible bool
	switch decision {
	case DecisionApprove:
		status = types.ApprovalApproved
		visible = true
	case DecisionReject:
		if strings.TrimSpace(notes) == "" {
			return types.Property{}, fmt.Errorf("%w: rejection requires notes", ErrValidation)
		}
		status = types.ApprovalRejected
		visible = false
	default:
		return types.Property{}, fmt.Errorf("%w: unknown decision %q", ErrValidation, decision)
	}

	property, err := s.repo.Decide(ctx, propertyID, status, notes, actor.ID, visible)
	if err != nil {
		return types.Property{}, err
	}

	s.logger.Info("property decided",
		zap.Int("property_id", propertyID),
		zap.String("decision", decision),
		zap.Int("reviewed_by", actor.ID),
	)
	s.cache.InvalidateListings(ctx)
	s.notifier.PropertyDecided(ctx, types.PropertyDecidedEvent{
		PropertyID: property.ID,
		AgentID:    property.AgentID,
		Decision:   status,
		Notes:      notes,
		ReviewedBy: actor.ID,
		OccurredAt: time.Now(),
	})
	return property, nil
}

// Resubmit puts a rejected property back into the review queue. Only
// the owning agent may resubmit; the previous review is cleared and the
// property stays invisible until the next decision.
func (s *ApprovalService) Resubmit(ctx context.Context, actor types.User, propertyID int) (types.Property, error) {
	property, err := s.repo.Get(ctx, propertyID)
	if err != nil {
		return types.Property{}, err
	}

	if !actor.IsAdmin() {
		agent, err := s.agents.GetByUserID(ctx, actor.ID)
		if err != nil || agent.ID != property.AgentID {
			return types.Property{}, fmt.Errorf("%w: only the owning agent may resubmit", ErrForbidden)
		}
	}
	if property.ApprovalStatus != types.ApprovalRejected {
		return types.Property{}, fmt.Errorf("%w: only rejected properties can be resubmitted", ErrConflict)
	}

	resubmitted, err := s.repo.Resubmit(ctx, propertyID)
	if err != nil {
		return types.Property{}, err
	}
	s.logger.Info("property resubmitted", zap.Int("property_id", propertyID))
	s.cache.InvalidateListings(ctx)
	return resubmitted, nil
}

// NopInvalidator is used when no cache is configured.
type NopInvalidator struct{}

func (NopInvalidator) InvalidateListings(context.Context) {}
