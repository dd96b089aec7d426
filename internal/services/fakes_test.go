package services

import (
	"context"
	"sync"

	"github.com/havenhub/apiserver/internal/store"
	"github.com/havenhub/apiserver/types"
)

// In-memory fakes backing the service tests.

type fakeAgentRepo struct {
	byUserID map[int]types.Agent
	byID     map[int]types.Agent
	updated  []types.Agent
}

func newFakeAgentRepo(agents ...types.Agent) *fakeAgentRepo {
	repo := &fakeAgentRepo{byUserID: map[int]types.Agent{}, byID: map[int]types.Agent{}}
	for _, agent := range agents {
		repo.byUserID[agent.UserID] = agent
		repo.byID[agent.ID] = agent
	}
	return repo
}

func (f *fakeAgentRepo) GetByID(_ context.Context, id int) (types.Agent, error) {
	agent, ok := f.byID[id]
	if !ok {
		return types.Agent{}, store.ErrNotFound
	}
	return agent, nil
}

func (f *fakeAgentRepo) GetByUserID(_ context.Context, userID int) (types.Agent, error) {
	agent, ok := f.byUserID[userID]
	if !ok {
		return types.Agent{}, store.ErrNotFound
	}
	return agent, nil
}

func (f *fakeAgentRepo) Update(_ context.Context, agent types.Agent) (types.Agent, error) {
	current, ok := f.byID[agent.ID]
	if !ok {
		return types.Agent{}, store.ErrNotFound
	}
	if agent.Version != current.Version {
		return types.Agent{}, store.ErrVersionConflict
	}
	agent.Version++
	f.byID[agent.ID] = agent
	f.byUserID[agent.UserID] = agent
	f.updated = append(f.updated, agent)
	return agent, nil
}

type fakePropertyRepo struct {
	properties map[int]types.Property
	nextID     int
}

func newFakePropertyRepo(properties ...types.Property) *fakePropertyRepo {
	repo := &fakePropertyRepo{properties: map[int]types.Property{}, nextID: 1}
	for _, property := range properties {
		repo.properties[property.ID] = property
		if property.ID >= repo.nextID {
			repo.nextID = property.ID + 1
		}
	}
	return repo
}

func (f *fakePropertyRepo) Get(_ context.Context, id int) (types.Property, error) {
	property, ok := f.properties[id]
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	return property, nil
}

func (f *fakePropertyRepo) ListPublic(_ context.Context, filter types.PropertyFilter, offset, limit int) ([]types.Property, int, error) {
	var items []types.Property
	for _, property := range f.properties {
		if !property.PubliclyVisible() {
			continue
		}
		if filter.City != "" && property.City != filter.City {
			continue
		}
		items = append(items, property)
	}
	return items, len(items), nil
}

func (f *fakePropertyRepo) ListByAgent(_ context.Context, agentID int) ([]types.Property, error) {
	var items []types.Property
	for _, property := range f.properties {
		if property.AgentID == agentID {
			items = append(items, property)
		}
	}
	return items, nil
}

func (f *fakePropertyRepo) Create(_ context.Context, property types.Property) (types.Property, error) {
	property.ID = f.nextID
	f.nextID++
	property.Version = 1
	f.properties[property.ID] = property
	return property, nil
}

func (f *fakePropertyRepo) Update(_ context.Context, property types.Property) (types.Property, error) {
	current, ok := f.properties[property.ID]
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	if property.Version != current.Version {
		return types.Property{}, store.ErrVersionConflict
	}
	property.Version++
	f.properties[property.ID] = property
	return property, nil
}

func (f *fakePropertyRepo) Delete(_ context.Context, id int) error {
	if _, ok := f.properties[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.properties, id)
	return nil
}

type fakeApprovalRepo struct {
	*fakePropertyRepo
	pendingOrder []int
}

func (f *fakeApprovalRepo) ListPending(_ context.Context, offset, limit int) ([]types.PendingProperty, int, error) {
	var entries []types.PendingProperty
	for _, id := range f.pendingOrder {
		property := f.properties[id]
		if property.ApprovalStatus != types.ApprovalPending {
			continue
		}
		entries = append(entries, types.PendingProperty{Property: property})
	}
	total := len(entries)
	if offset > len(entries) {
		offset = len(entries)
	}
	entries = entries[offset:]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, total, nil
}

func (f *fakeApprovalRepo) Decide(_ context.Context, id int, status string, notes string, reviewedBy int, visible bool) (types.Property, error) {
	property, ok := f.properties[id]
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	if property.ApprovalStatus != types.ApprovalPending {
		return types.Property{}, store.ErrVersionConflict
	}
	property.ApprovalStatus = status
	property.ReviewNotes = notes
	property.ReviewedBy = reviewedBy
	property.Visible = visible
	property.Version++
	f.properties[id] = property
	return property, nil
}

func (f *fakeApprovalRepo) Resubmit(_ context.Context, id int) (types.Property, error) {
	property, ok := f.properties[id]
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	if property.ApprovalStatus != types.ApprovalRejected {
		return types.Property{}, store.ErrVersionConflict
	}
	property.ApprovalStatus = types.ApprovalPending
	property.ReviewNotes = ""
	property.ReviewedBy = 0
	property.Visible = false
	property.Version++
	f.properties[id] = property
	return property, nil
}

type fakeTenantRepo struct {
	byID map[int]types.Tenant
}

func newFakeTenantRepo(tenants ...types.Tenant) *fakeTenantRepo {
	repo := &fakeTenantRepo{byID: map[int]types.Tenant{}}
	for _, tenant := range tenants {
		repo.byID[tenant.ID] = tenant
	}
	return repo
}

func (f *fakeTenantRepo) GetByID(_ context.Context, id int) (types.Tenant, error) {
	tenant, ok := f.byID[id]
	if !ok {
		return types.Tenant{}, store.ErrNotFound
	}
	return tenant, nil
}

func (f *fakeTenantRepo) GetActiveByUserID(_ context.Context, userID int) (types.Tenant, error) {
	for _, tenant := range f.byID {
		if tenant.UserID == userID && tenant.Status != types.TenantInactive {
			return tenant, nil
		}
	}
	return types.Tenant{}, store.ErrNotFound
}

func (f *fakeTenantRepo) Update(_ context.Context, tenant types.Tenant) (types.Tenant, error) {
	current, ok := f.byID[tenant.ID]
	if !ok {
		return types.Tenant{}, store.ErrNotFound
	}
	if tenant.Version != current.Version {
		return types.Tenant{}, store.ErrVersionConflict
	}
	tenant.Version++
	f.byID[tenant.ID] = tenant
	return tenant, nil
}

// recordingNotifier captures published events.
type recordingNotifier struct {
	mu        sync.Mutex
	roles     []types.RoleChangedEvent
	decisions []types.PropertyDecidedEvent
	assigned  []types.TenantAssignedEvent
	leases    []types.LeaseEndedEvent
	payments  []types.PaymentRecordedEvent
}

func (n *recordingNotifier) RoleChanged(_ context.Context, event types.RoleChangedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.roles = append(n.roles, event)
}

func (n *recordingNotifier) PropertyDecided(_ context.Context, event types.PropertyDecidedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decisions = append(n.decisions, event)
}

func (n *recordingNotifier) TenantAssigned(_ context.Context, event types.TenantAssignedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assigned = append(n.assigned, event)
}

func (n *recordingNotifier) LeaseEnded(_ context.Context, event types.LeaseEndedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leases = append(n.leases, event)
}

func (n *recordingNotifier) PaymentRecorded(_ context.Context, event types.PaymentRecordedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payments = append(n.payments, event)
}

// recordingCache tracks listing cache traffic.
type recordingCache struct {
	items       []types.Property
	total       int
	hit         bool
	sets        int
	invalidated int
}

func (c *recordingCache) GetListings(context.Context, types.PropertyFilter, int, int) ([]types.Property, int, bool) {
	if !c.hit {
		return nil, 0, false
	}
	return c.items, c.total, true
}

func (c *recordingCache) SetListings(_ context.Context, _ types.PropertyFilter, _, _ int, items []types.Property, total int) {
	c.sets++
	c.items = items
	c.total = total
}

func (c *recordingCache) InvalidateListings(context.Context) {
	c.invalidated++
}
