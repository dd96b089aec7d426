package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/havenhub/apiserver/internal/services"
	"github.com/havenhub/apiserver/internal/store"
	"github.com/havenhub/apiserver/types"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// In-memory fakes backing the handler tests.

type fakeUserRepo struct {
	users  map[int]types.User
	nextID int
}

func newFakeUserRepo(users ...types.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: map[int]types.User{}, nextID: 1}
	for _, user := range users {
		repo.users[user.ID] = user
		if user.ID >= repo.nextID {
			repo.nextID = user.ID + 1
		}
	}
	return repo
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	user.ID = f.nextID
	f.nextID++
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id int) error {
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
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
	items := []types.Property{}
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
	items := []types.Property{}
	for _, property := range f.properties {
		if property.AgentID == agentID {
			items = append(items, property)
		}
	}
	return items, nil
}

func (f *fakePropertyRepo) ListPending(_ context.Context, offset, limit int) ([]types.PendingProperty, int, error) {
	entries := []types.PendingProperty{}
	for _, property := range f.properties {
		if property.ApprovalStatus == types.ApprovalPending {
			entries = append(entries, types.PendingProperty{Property: property})
		}
	}
	return entries, len(entries), nil
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

func (f *fakePropertyRepo) Decide(_ context.Context, id int, status string, notes string, reviewedBy int, visible bool) (types.Property, error) {
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

func (f *fakePropertyRepo) Resubmit(_ context.Context, id int) (types.Property, error) {
	property, ok := f.properties[id]
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	if property.ApprovalStatus != types.ApprovalRejected {
		return types.Property{}, store.ErrVersionConflict
	}
	property.ApprovalStatus = types.ApprovalPending
	property.ReviewNotes = ""
	property.Visible = false
	property.Version++
	f.properties[id] = property
	return property, nil
}

type fakeAgentRepo struct {
	byUserID map[int]types.Agent
	byID     map[int]types.Agent
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
	if _, ok := f.byID[agent.ID]; !ok {
		return types.Agent{}, store.ErrNotFound
	}
	agent.Version++
	f.byID[agent.ID] = agent
	f.byUserID[agent.UserID] = agent
	return agent, nil
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
	if _, ok := f.byID[tenant.ID]; !ok {
		return types.Tenant{}, store.ErrNotFound
	}
	tenant.Version++
	f.byID[tenant.ID] = tenant
	return tenant, nil
}

var _ services.UserRepository = (*fakeUserRepo)(nil)
var _ services.PropertyRepository = (*fakePropertyRepo)(nil)
var _ services.ApprovalRepository = (*fakePropertyRepo)(nil)
var _ services.AgentRepository = (*fakeAgentRepo)(nil)
var _ services.TenantRepository = (*fakeTenantRepo)(nil)

func authHeader(t *testing.T, userID int) string {
	t.Helper()
	token, err := issueToken(userID, []byte(testSecret), defaultTokenTTL)
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(t *testing.T, handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}
