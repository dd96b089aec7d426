package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/havenhub/apiserver/types"
)

// TenantRepository handles persistence for tenant lease records.
type TenantRepository struct {
	db DBTX
}

func NewTenantRepository(db DBTX) *TenantRepository {
	return &TenantRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *TenantRepository) WithTx(tx *sql.Tx) *TenantRepository {
	return &TenantRepository{db: tx}
}

const tenantColumns = `id, user_id, property_id, lease_start, lease_end, monthly_rent, security_deposit, status, payments, version, created_at, updated_at`

func scanTenant(row interface{ Scan(...any) error }) (types.Tenant, error) {
	var tenant types.Tenant
	var paymentsJSON []byte
	err := row.Scan(
		&tenant.ID,
		&tenant.UserID,
		&tenant.PropertyID,
		&tenant.LeaseStart,
		&tenant.LeaseEnd,
		&tenant.MonthlyRent,
		&tenant.SecurityDeposit,
		&tenant.Status,
		&paymentsJSON,
		&tenant.Version,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Tenant{}, ErrNotFound
		}
		return types.Tenant{}, err
	}
	_ = json.Unmarshal(paymentsJSON, &tenant.Payments)
	return tenant, nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id int) (types.Tenant, error) {
	const query = `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE id = $1`
	return scanTenant(r.db.QueryRowContext(ctx, query, id))
}

// GetActiveByUserID returns the user's current (non-inactive) lease.
func (r *TenantRepository) GetActiveByUserID(ctx context.Context, userID int) (types.Tenant, error) {
	const query = `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE user_id = $1 AND status <> 'inactive'
		ORDER BY created_at DESC
		LIMIT 1`
	return scanTenant(r.db.QueryRowContext(ctx, query, userID))
}

func (r *TenantRepository) Create(ctx context.Context, tenant types.Tenant) (types.Tenant, error) {
	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	tenant.Version = 1
	if tenant.Payments == nil {
		tenant.Payments = []types.Payment{}
	}

	paymentsJSON, err := json.Marshal(tenant.Payments)
	if err != nil {
		return types.Tenant{}, err
	}

	const query = `
		INSERT INTO tenants (user_id, property_id, lease_start, lease_end, monthly_rent, security_deposit, status, payments, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		tenant.UserID,
		tenant.PropertyID,
		tenant.LeaseStart,
		tenant.LeaseEnd,
		tenant.MonthlyRent,
		tenant.SecurityDeposit,
		tenant.Status,
		paymentsJSON,
		tenant.Version,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	).Scan(&tenant.ID); err != nil {
		return types.Tenant{}, err
	}
	return tenant, nil
}

// Update persists lease fields and the payment list, checking and
// bumping the version token. A stale version yields ErrVersionConflict.
func (r *TenantRepository) Update(ctx context.Context, tenant types.Tenant) (types.Tenant, error) {
	tenant.UpdatedAt = time.Now()

	paymentsJSON, err := json.Marshal(tenant.Payments)
	if err != nil {
		return types.Tenant{}, err
	}

	const query = `
		UPDATE tenants
		SET lease_start = $1,
			lease_end = $2,
			monthly_rent = $3,
			security_deposit = $4,
			status = $5,
			payments = $6,
			version = version + 1,
			updated_at = $7
		WHERE id = $8 AND version = $9`
	result, err := r.db.ExecContext(
		ctx,
		query,
		tenant.LeaseStart,
		tenant.LeaseEnd,
		tenant.MonthlyRent,
		tenant.SecurityDeposit,
		tenant.Status,
		paymentsJSON,
		tenant.UpdatedAt,
		tenant.ID,
		tenant.Version,
	)
	if err != nil {
		return types.Tenant{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Tenant{}, err
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, tenant.ID); errors.Is(getErr, ErrNotFound) {
			return types.Tenant{}, ErrNotFound
		}
		return types.Tenant{}, ErrVersionConflict
	}
	tenant.Version++
	return tenant, nil
}

// MarkInactive ends the user's current lease without deleting the
// record, so the payment history survives.
func (r *TenantRepository) MarkInactive(ctx context.Context, userID int) error {
	const query = `
		UPDATE tenants
		SET status = 'inactive', version = version + 1, updated_at = $1
		WHERE user_id = $2 AND status <> 'inactive'`
	result, err := r.db.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveUserIDs returns the owning user id of every non-inactive
// lease. Used by the consistency audit.
func (r *TenantRepository) ListActiveUserIDs(ctx context.Context) ([]int, error) {
	const query = `SELECT user_id FROM tenants WHERE status <> 'inactive' ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
