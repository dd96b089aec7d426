package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/havenhub/apiserver/internal/cache"
	"github.com/havenhub/apiserver/internal/services"
	"github.com/havenhub/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticLister struct {
	byRole  map[string][]int
	agents  []int
	tenants []int
}

func (s staticLister) ListIDsByRole(_ context.Context, role string) ([]int, error) {
	return s.byRole[role], nil
}
func (s staticLister) ListUserIDs(context.Context) ([]int, error)       { return s.agents, nil }
func (s staticLister) ListActiveUserIDs(context.Context) ([]int, error) { return s.tenants, nil }

type adminFixture struct {
	router chi.Router
	repo   *fakePropertyRepo
	mock   sqlmock.Sqlmock
}

func setupAdminRouter(t *testing.T, lister staticLister, properties ...types.Property) adminFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := newFakeUserRepo(
		types.User{ID: 1, Username: "root", Role: types.RoleAdmin},
		types.User{ID: 11, Username: "ada", Role: types.RoleAgent},
	)
	propertyRepo := newFakePropertyRepo(properties...)
	agents := newFakeAgentRepo(types.Agent{ID: 4, UserID: 11, Subscription: types.SubscriptionBasic, Version: 1})

	userService := services.NewUserService(users)
	roleService := services.NewRoleService(db, services.NopNotifier{}, services.NopInvalidator{}, zap.NewNop())
	approvalService := services.NewApprovalService(propertyRepo, agents, services.NopNotifier{}, services.NopInvalidator{}, zap.NewNop())
	agentService := services.NewAgentService(agents)
	consistencyService := services.NewConsistencyService(lister, lister, lister)
	propertyService := services.NewPropertyService(propertyRepo, agents, cache.NopCache{}, nil)

	r := chi.NewRouter()
	r.Route("/admin", func(r chi.Router) {
		AdminRouter(r, roleService, approvalService, agentService, consistencyService, userService, propertyService, RequireAuth(testSecret))
	})
	return adminFixture{router: r, repo: propertyRepo, mock: mock}
}

func TestAdminRouter_RequiresAdmin(t *testing.T) {
	fixture := setupAdminRouter(t, staticLister{})

	t.Run("no token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/consistency", nil)
		rec := doRequest(t, fixture.router, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-admin token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/consistency", nil)
		req.Header.Set("Authorization", authHeader(t, 11))
		rec := doRequest(t, fixture.router, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "forbidden", resp.Kind)
	})
}

func TestAdminHandler_DecideProperty(t *testing.T) {
	pending := types.Property{
		ID: 3, Title: "Loft", Price: 180000,
		ApprovalStatus: types.ApprovalPending, AgentID: 4, Version: 1,
	}

	t.Run("approves a pending property", func(t *testing.T) {
		fixture := setupAdminRouter(t, staticLister{}, pending)

		req := httptest.NewRequest(http.MethodPost, "/admin/properties/3/decision",
			jsonBody(t, DecisionRequest{Decision: "approve"}))
		req.Header.Set("Authorization", authHeader(t, 1))
		rec := doRequest(t, fixture.router, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var property types.Property
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&property))
		assert.Equal(t, types.ApprovalApproved, property.ApprovalStatus)
		assert.True(t, property.Visible)
	})

	t.Run("rejection without notes is a 400 validation error", func(t *testing.T) {
		fixture := setupAdminRouter(t, staticLister{}, pending)

		req := httptest.NewRequest(http.MethodPost, "/admin/properties/3/decision",
			jsonBody(t, DecisionRequest{Decision: "reject"}))
		req.Header.Set("Authorization", authHeader(t, 1))
		rec := doRequest(t, fixture.router, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "validation", resp.Kind)
	})

	t.Run("deciding an already decided property is a 409", func(t *testing.T) {
		approved := pending
		approved.ApprovalStatus = types.ApprovalApproved
		fixture := setupAdminRouter(t, staticLister{}, approved)

		req := httptest.NewRequest(http.MethodPost, "/admin/properties/3/decision",
			jsonBody(t, DecisionRequest{Decision: "reject", Notes: "late"}))
		req.Header.Set("Authorization", authHeader(t, 1))
		rec := doRequest(t, fixture.router, req)

		require.Equal(t, http.StatusConflict, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "conflict", resp.Kind)
	})

	t.Run("unknown property is a 404", func(t *testing.T) {
		fixture := setupAdminRouter(t, staticLister{})

		req := httptest.NewRequest(http.MethodPost, "/admin/properties/99/decision",
			jsonBody(t, DecisionRequest{Decision: "approve"}))
		req.Header.Set("Authorization", authHeader(t, 1))
		rec := doRequest(t, fixture.router, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "not_found", resp.Kind)
	})
}

func TestAdminHandler_GetProperty(t *testing.T) {
	pending := types.Property{
		ID: 3, Title: "Loft", ApprovalStatus: types.ApprovalPending, AgentID: 4, Version: 1,
	}

	t.Run("returns a pending property hidden from the public", func(t *testing.T) {
		fixture := setupAdminRouter(t, staticLister{}, pending)

		req := httptest.NewRequest(http.MethodGet, "/admin/properties/3", nil)
		req.Header.Set("Authorization", authHeader(t, 1))
		rec := doRequest(t, fixture.router, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var property types.Property
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&property))
		assert.Equal(t, types.ApprovalPending, property.ApprovalStatus)
	})

	t.Run("unknown property is a 404", func(t *testing.T) {
		fixture := setupAdminRouter(t, staticLister{})

		req := httptest.NewRequest(http.MethodGet, "/admin/properties/99", nil)
		req.Header.Set("Authorization", authHeader(t, 1))
		rec := doRequest(t, fixture.router, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAdminHandler_ListPending(t *testing.T) {
	pending := types.Property{
		ID: 3, Title: "Loft", ApprovalStatus: types.ApprovalPending, AgentID: 4, Version: 1,
	}
	fixture := setupAdminRouter(t, staticLister{}, pending)

	req := httptest.NewRequest(http.MethodGet, "/admin/properties/pending", nil)
	req.Header.Set("Authorization", authHeader(t, 1))
	rec := doRequest(t, fixture.router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PendingListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 3, resp.Items[0].Property.ID)
}

func TestAdminHandler_SetUserRole(t *testing.T) {
	t.Run("unknown role is a 400 validation error", func(t *testing.T) {
		fixture := setupAdminRouter(t, staticLister{})

		req := httptest.NewRequest(http.MethodPut, "/admin/users/11/role",
			jsonBody(t, RoleChangeRequest{Role: "landlord"}))
		req.Header.Set("Authorization", authHeader(t, 1))
		rec := doRequest(t, fixture.router, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "validation", resp.Kind)
	})

	t.Run("tenant role without lease terms is a 409", func(t *testing.T) {
		fixture := setupAdminRouter(t, staticLister{})

		req := httptest.NewRequest(http.MethodPut, "/admin/users/11/role",
			jsonBody(t, RoleChangeRequest{Role: types.RoleTenant}))
		req.Header.Set("Authorization", authHeader(t, 1))
		rec := doRequest(t, fixture.router, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestAdminHandler_CheckConsistency(t *testing.T) {
	lister := staticLister{
		byRole:  map[string][]int{"agent": {11, 12}, "tenant": {30}},
		agents:  []int{11},
		tenants: []int{30},
	}
	fixture := setupAdminRouter(t, lister)

	req := httptest.NewRequest(http.MethodGet, "/admin/consistency", nil)
	req.Header.Set("Authorization", authHeader(t, 1))
	rec := doRequest(t, fixture.router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report services.ConsistencyReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.False(t, report.Consistent())
	assert.Equal(t, []int{12}, report.AgentsMissingProfile)
}
