package services

import (
	"context"
	"fmt"

	"github.com/havenhub/apiserver/types"
)

// AgentRepository defines persistence operations for agent profiles.
type AgentRepository interface {
	GetByID(ctx context.Context, id int) (types.Agent, error)
	GetByUserID(ctx context.Context, userID int) (types.Agent, error)
	Update(ctx context.Context, agent types.Agent) (types.Agent, error)
}

// AgentService encapsulates agent profile use-cases. Profile creation
// and deletion belong to the role-transition workflow, not here.
type AgentService struct {
	repo AgentRepository
}

func NewAgentService(repo AgentRepository) *AgentService {
	return &AgentService{repo: repo}
}

func (s *AgentService) GetByUserID(ctx context.Context, userID int) (types.Agent, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// UpdateProfile lets an agent edit their own profile fields. The
// subscription tier, active flag, and expiry are not editable here.
func (s *AgentService) UpdateProfile(ctx context.Context, actorUserID int, bio, phone, agency string, visible bool, version int) (types.Agent, error) {
	agent, err := s.repo.GetByUserID(ctx, actorUserID)
	if err != nil {
		return types.Agent{}, err
	}
	// A caller-supplied version makes the update optimistic against the
	// state the caller saw, not the state just loaded.
	if version > 0 {
		agent.Version = version
	}
	agent.Bio = bio
	agent.Phone = phone
	agent.Agency = agency
	agent.Visible = visible
	return s.repo.Update(ctx, agent)
}

// UpdateSubscription changes an agent's tier. Admin only.
func (s *AgentService) UpdateSubscription(ctx context.Context, actor types.User, agentID int, tier string) (types.Agent, error) {
	if !actor.IsAdmin() {
		return types.Agent{}, fmt.Errorf("%w: subscription changes require admin", ErrForbidden)
	}
	switch tier {
	case types.SubscriptionBasic, types.SubscriptionPremium, types.SubscriptionPro:
	default:
		return types.Agent{}, fmt.Errorf("%w: unknown subscription tier %q", ErrValidation, tier)
	}
	agent, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		return types.Agent{}, err
	}
	agent.Subscription = tier
	return s.repo.Update(ctx, agent)
}
