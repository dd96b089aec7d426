package services

import (
	"context"

	"github.com/havenhub/apiserver/internal/store"
	"github.com/havenhub/apiserver/types"
)

// ConsistencyReport is the result of the role/profile audit. Each slice
// names user ids on one side of the symmetric difference between the
// role flags and the satellite profiles.
type ConsistencyReport struct {
	// AgentsMissingProfile: users with role=agent but no Agent row.
	AgentsMissingProfile []int `json:"agents_missing_profile"`

	// OrphanAgentProfiles: Agent rows whose user no longer holds the
	// agent role.
	OrphanAgentProfiles []int `json:"orphan_agent_profiles"`

	// TenantsMissingLease: users with role=tenant but no active lease.
	TenantsMissingLease []int `json:"tenants_missing_lease"`

	// OrphanTenantLeases: active leases whose user no longer holds the
	// tenant role.
	OrphanTenantLeases []int `json:"orphan_tenant_leases"`
}

// Consistent reports whether no drift was found.
func (r ConsistencyReport) Consistent() bool {
	return len(r.AgentsMissingProfile) == 0 &&
		len(r.OrphanAgentProfiles) == 0 &&
		len(r.TenantsMissingLease) == 0 &&
		len(r.OrphanTenantLeases) == 0
}

// ConsistencyRepository is the read surface the audit needs.
type ConsistencyRepository interface {
	ListIDsByRole(ctx context.Context, role string) ([]int, error)
}

// AgentUserLister lists the owning user ids of all agent profiles.
type AgentUserLister interface {
	ListUserIDs(ctx context.Context) ([]int, error)
}

// TenantUserLister lists the owning user ids of all active leases.
type TenantUserLister interface {
	ListActiveUserIDs(ctx context.Context) ([]int, error)
}

// ConsistencyService audits the cross-collection role/profile invariant.
// The invariant is enforced only by the role-transition workflow, not by
// a database constraint; this read-only check is the safety net that
// detects drift from any write path that bypassed the workflow.
type ConsistencyService struct {
	users   ConsistencyRepository
	agents  AgentUserLister
	tenants TenantUserLister
}

func NewConsistencyService(users ConsistencyRepository, agents AgentUserLister, tenants TenantUserLister) *ConsistencyService {
	return &ConsistencyService{users: users, agents: agents, tenants: tenants}
}

// CheckRoleConsistency computes the symmetric difference between role
// flags and satellite profiles. It mutates nothing; running it twice
// without intervening writes yields identical reports.
func (s *ConsistencyService) CheckRoleConsistency(ctx context.Context) (ConsistencyReport, error) {
	agentRoleIDs, err := s.users.ListIDsByRole(ctx, types.RoleAgent)
	if err != nil {
		return ConsistencyReport{}, err
	}
	agentProfileIDs, err := s.agents.ListUserIDs(ctx)
	if err != nil {
		return ConsistencyReport{}, err
	}
	tenantRoleIDs, err := s.users.ListIDsByRole(ctx, types.RoleTenant)
	if err != nil {
		return ConsistencyReport{}, err
	}
	tenantLeaseIDs, err := s.tenants.ListActiveUserIDs(ctx)
	if err != nil {
		return ConsistencyReport{}, err
	}

	report := ConsistencyReport{
		AgentsMissingProfile: difference(agentRoleIDs, agentProfileIDs),
		OrphanAgentProfiles:  difference(agentProfileIDs, agentRoleIDs),
		TenantsMissingLease:  difference(tenantRoleIDs, tenantLeaseIDs),
		OrphanTenantLeases:   difference(tenantLeaseIDs, tenantRoleIDs),
	}
	return report, nil
}

// difference returns the ids present in a but not in b, preserving
// order. Results are deterministic for sorted inputs.
func difference(a, b []int) []int {
	inB := make(map[int]struct{}, len(b))
	for _, id := range b {
		inB[id] = struct{}{}
	}
	diff := []int{}
	for _, id := range a {
		if _, ok := inB[id]; !ok {
			diff = append(diff, id)
		}
	}
	return diff
}

var _ ConsistencyRepository = (*store.UserRepository)(nil)
var _ AgentUserLister = (*store.AgentRepository)(nil)
var _ TenantUserLister = (*store.TenantRepository)(nil)
