package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/havenhub/apiserver/internal/store"
	"github.com/havenhub/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var admin = types.User{ID: 1, Username: "root", Role: types.RoleAdmin}

func setupRoleService(t *testing.T) (*RoleService, *recordingNotifier, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	return NewRoleService(db, notifier, NopInvalidator{}, zap.NewNop()), notifier, mock, db
}

func mockUserRow(user types.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "email", "name", "role", "password_hash", "created_at", "updated_at"}).
		AddRow(user.ID, user.Username, user.Email, user.Name, user.Role, user.PasswordHash, time.Now(), time.Now())
}

func mockAgentRow(agent types.Agent) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "subscription", "active", "visible", "subscription_expires_at",
		"bio", "phone", "agency", "version", "created_at", "updated_at",
	}).AddRow(
		agent.ID, agent.UserID, agent.Subscription, agent.Active, agent.Visible,
		time.Now(), agent.Bio, agent.Phone, agent.Agency, agent.Version, time.Now(), time.Now(),
	)
}

func mockTenantRow(tenant types.Tenant) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "property_id", "lease_start", "lease_end", "monthly_rent",
		"security_deposit", "status", "payments", "version", "created_at", "updated_at",
	}).AddRow(
		tenant.ID, tenant.UserID, tenant.PropertyID, tenant.LeaseStart, tenant.LeaseEnd,
		tenant.MonthlyRent, tenant.SecurityDeposit, tenant.Status, []byte("[]"),
		tenant.Version, time.Now(), time.Now(),
	)
}

func mockPropertyRow(property types.Property) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "city", "address", "price", "category", "type",
		"availability", "approval_status", "review_notes", "reviewed_by", "reviewed_at",
		"agent_id", "visible", "images", "amenities", "version", "created_at", "updated_at",
	}).AddRow(
		property.ID, property.Title, property.Description, property.City, property.Address,
		property.Price, property.Category, property.Type, property.Availability,
		property.ApprovalStatus, property.ReviewNotes, nil, nil, property.AgentID,
		property.Visible, []byte("[]"), []byte("[]"), property.Version, time.Now(), time.Now(),
	)
}

func validLease() *types.LeaseTerms {
	return &types.LeaseTerms{
		PropertyID:      14,
		LeaseStart:      time.Now().Add(-time.Hour),
		LeaseEnd:        time.Now().AddDate(1, 0, 0),
		MonthlyRent:     1200,
		SecurityDeposit: 1200,
	}
}

func TestRoleService_SetUserRole_PromoteToAgent(t *testing.T) {
	svc, notifier, mock, db := setupRoleService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users`).
		WithArgs(11).
		WillReturnRows(mockUserRow(types.User{ID: 11, Username: "ada", Role: types.RoleUser}))
	mock.ExpectQuery(`FROM agents`).
		WithArgs(11).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO agents`).
		WithArgs(
			11, types.SubscriptionBasic, true, true, sqlmock.AnyArg(),
			"", "", "", 1, sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectQuery(`FROM tenants`).
		WithArgs(11).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`UPDATE users`).
		WithArgs(types.RoleAgent, sqlmock.AnyArg(), 11).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := svc.SetUserRole(context.Background(), admin, 11, types.RoleAgent, nil)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAgent, updated.Role)

	require.Len(t, notifier.roles, 1)
	assert.Equal(t, types.RoleUser, notifier.roles[0].OldRole)
	assert.Equal(t, types.RoleAgent, notifier.roles[0].NewRole)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleService_SetUserRole_PromoteToAgentIsIdempotent(t *testing.T) {
	svc, _, mock, db := setupRoleService(t)
	defer db.Close()

	// A retry finds the profile already present and creates nothing.
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users`).
		WithArgs(11).
		WillReturnRows(mockUserRow(types.User{ID: 11, Username: "ada", Role: types.RoleAgent}))
	mock.ExpectQuery(`FROM agents`).
		WithArgs(11).
		WillReturnRows(mockAgentRow(types.Agent{ID: 4, UserID: 11, Subscription: types.SubscriptionBasic, Version: 1}))
	mock.ExpectQuery(`FROM tenants`).
		WithArgs(11).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`UPDATE users`).
		WithArgs(types.RoleAgent, sqlmock.AnyArg(), 11).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := svc.SetUserRole(context.Background(), admin, 11, types.RoleAgent, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleService_SetUserRole_DemoteAgentUnpublishesListings(t *testing.T) {
	svc, notifier, mock, db := setupRoleService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users`).
		WithArgs(11).
		WillReturnRows(mockUserRow(types.User{ID: 11, Username: "ada", Role: types.RoleAgent}))
	mock.ExpectQuery(`FROM agents`).
		WithArgs(11).
		WillReturnRows(mockAgentRow(types.Agent{ID: 4, UserID: 11, Subscription: types.SubscriptionBasic, Version: 1}))
	mock.ExpectExec(`UPDATE properties`).
		WithArgs(sqlmock.AnyArg(), 4).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM agents`).
		WithArgs(11).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM tenants`).
		WithArgs(11).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`UPDATE users`).
		WithArgs(types.RoleUser, sqlmock.AnyArg(), 11).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := svc.SetUserRole(context.Background(), admin, 11, types.RoleUser, nil)
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, updated.Role)

	require.Len(t, notifier.roles, 1)
	assert.Equal(t, types.RoleAgent, notifier.roles[0].OldRole)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleService_SetUserRole_AssignTenant(t *testing.T) {
	svc, notifier, mock, db := setupRoleService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users`).
		WithArgs(30).
		WillReturnRows(mockUserRow(types.User{ID: 30, Username: "bob", Role: types.RoleUser}))
	mock.ExpectQuery(`FROM agents`).
		WithArgs(30).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM tenants`).
		WithArgs(30).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM properties`).
		WithArgs(14).
		WillReturnRows(mockPropertyRow(types.Property{
			ID: 14, Title: "Flat", Availability: types.AvailabilityAvailable,
			ApprovalStatus: types.ApprovalApproved, AgentID: 4, Visible: true, Version: 2,
		}))
	mock.ExpectQuery(`INSERT INTO tenants`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec(`UPDATE properties`).
		WithArgs(types.AvailabilityRented, sqlmock.AnyArg(), 14).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users`).
		WithArgs(types.RoleTenant, sqlmock.AnyArg(), 30).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := svc.SetUserRole(context.Background(), admin, 30, types.RoleTenant, validLease())
	require.NoError(t, err)
	assert.Equal(t, types.RoleTenant, updated.Role)
	require.Len(t, notifier.assigned, 1)
	assert.Equal(t, 14, notifier.assigned[0].PropertyID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleService_SetUserRole_TenantOnOccupiedProperty(t *testing.T) {
	svc, notifier, mock, db := setupRoleService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users`).
		WithArgs(30).
		WillReturnRows(mockUserRow(types.User{ID: 30, Username: "bob", Role: types.RoleUser}))
	mock.ExpectQuery(`FROM agents`).
		WithArgs(30).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM tenants`).
		WithArgs(30).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM properties`).
		WithArgs(14).
		WillReturnRows(mockPropertyRow(types.Property{
			ID: 14, Title: "Flat", Availability: types.AvailabilityRented,
			ApprovalStatus: types.ApprovalApproved, AgentID: 4, Version: 3,
		}))
	mock.ExpectRollback()

	_, err := svc.SetUserRole(context.Background(), admin, 30, types.RoleTenant, validLease())
	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, notifier.roles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleService_SetUserRole_Guards(t *testing.T) {
	svc, notifier, mock, db := setupRoleService(t)
	defer db.Close()

	t.Run("rejects unknown roles", func(t *testing.T) {
		_, err := svc.SetUserRole(context.Background(), admin, 11, "landlord", nil)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects non-admin actors", func(t *testing.T) {
		actor := types.User{ID: 5, Role: types.RoleUser}
		_, err := svc.SetUserRole(context.Background(), actor, 11, types.RoleAgent, nil)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("tenant transition without lease terms conflicts", func(t *testing.T) {
		_, err := svc.SetUserRole(context.Background(), admin, 11, types.RoleTenant, nil)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("lease end before start fails validation", func(t *testing.T) {
		lease := validLease()
		lease.LeaseEnd = lease.LeaseStart.Add(-time.Hour)
		_, err := svc.SetUserRole(context.Background(), admin, 11, types.RoleTenant, lease)
		assert.ErrorIs(t, err, ErrValidation)
	})

	assert.Empty(t, notifier.roles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleService_EndLease(t *testing.T) {
	t.Run("frees the property and reverts the role", func(t *testing.T) {
		svc, notifier, mock, db := setupRoleService(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM tenants`).
			WithArgs(2).
			WillReturnRows(mockTenantRow(types.Tenant{
				ID: 2, UserID: 30, PropertyID: 14, Status: types.TenantActive, Version: 1,
			}))
		mock.ExpectExec(`UPDATE tenants`).
			WithArgs(sqlmock.AnyArg(), 30).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE properties`).
			WithArgs(types.AvailabilityAvailable, sqlmock.AnyArg(), 14).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE users`).
			WithArgs(types.RoleUser, sqlmock.AnyArg(), 30).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, svc.EndLease(context.Background(), admin, 2))

		require.Len(t, notifier.roles, 1)
		assert.Equal(t, types.RoleTenant, notifier.roles[0].OldRole)
		assert.Equal(t, types.RoleUser, notifier.roles[0].NewRole)
		require.Len(t, notifier.leases, 1)
		assert.Equal(t, 2, notifier.leases[0].TenantID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already ended lease conflicts", func(t *testing.T) {
		svc, _, mock, db := setupRoleService(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM tenants`).
			WithArgs(2).
			WillReturnRows(mockTenantRow(types.Tenant{
				ID: 2, UserID: 30, PropertyID: 14, Status: types.TenantInactive, Version: 2,
			}))
		mock.ExpectRollback()

		err := svc.EndLease(context.Background(), admin, 2)
		assert.ErrorIs(t, err, ErrConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("requires admin", func(t *testing.T) {
		svc, _, _, db := setupRoleService(t)
		defer db.Close()

		err := svc.EndLease(context.Background(), types.User{ID: 30, Role: types.RoleTenant}, 2)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

// The workflow rolls back everything when a later step fails, so a
// partial transition never becomes visible.
func TestRoleService_SetUserRole_RollsBackOnFailure(t *testing.T) {
	svc, notifier, mock, db := setupRoleService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users`).
		WithArgs(11).
		WillReturnRows(mockUserRow(types.User{ID: 11, Username: "ada", Role: types.RoleUser}))
	mock.ExpectQuery(`FROM agents`).
		WithArgs(11).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO agents`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := svc.SetUserRole(context.Background(), admin, 11, types.RoleAgent, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, notifier.roles)
	require.NoError(t, mock.ExpectationsWereMet())
}
