package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/havenhub/apiserver/types"
)

// PropertyRepository handles persistence for properties.
type PropertyRepository struct {
	db DBTX
}

func NewPropertyRepository(db DBTX) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *PropertyRepository) WithTx(tx *sql.Tx) *PropertyRepository {
	return &PropertyRepository{db: tx}
}

const propertyColumns = `id, title, description, city, address, price, category, type, availability, approval_status, review_notes, reviewed_by, reviewed_at, agent_id, visible, images, amenities, version, created_at, updated_at`

func scanProperty(row interface{ Scan(...any) error }) (types.Property, error) {
	var property types.Property
	var imagesJSON, amenitiesJSON []byte
	var reviewedBy, agentID sql.NullInt64
	var reviewedAt sql.NullTime
	err := row.Scan(
		&property.ID,
		&property.Title,
		&property.Description,
		&property.City,
		&property.Address,
		&property.Price,
		&property.Category,
		&property.Type,
		&property.Availability,
		&property.ApprovalStatus,
		&property.ReviewNotes,
		&reviewedBy,
		&reviewedAt,
		&agentID,
		&property.Visible,
		&imagesJSON,
		&amenitiesJSON,
		&property.Version,
		&property.CreatedAt,
		&property.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Property{}, ErrNotFound
		}
		return types.Property{}, err
	}
	if reviewedBy.Valid {
		property.ReviewedBy = int(reviewedBy.Int64)
	}
	// agent_id is cleared when the owning agent's profile is deleted;
	// an orphaned listing scans with AgentID 0.
	if agentID.Valid {
		property.AgentID = int(agentID.Int64)
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		property.ReviewedAt = &t
	}
	_ = json.Unmarshal(imagesJSON, &property.Images)
	_ = json.Unmarshal(amenitiesJSON, &property.Amenities)
	return property, nil
}

func (r *PropertyRepository) Get(ctx context.Context, id int) (types.Property, error) {
	const query = `
		SELECT ` + propertyColumns + `
		FROM properties
		WHERE id = $1`
	return scanProperty(r.db.QueryRowContext(ctx, query, id))
}

// ListPublic returns approved, visible properties matching the filter,
// newest first, with the total match count for pagination.
func (r *PropertyRepository) ListPublic(ctx context.Context, filter types.PropertyFilter, offset, limit int) ([]types.Property, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	conditions := []string{`approval_status = 'approved'`, `visible = TRUE`}
	args := []any{}
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.City != "" {
		conditions = append(conditions, `city ILIKE `+arg(filter.City))
	}
	if filter.Type != "" {
		conditions = append(conditions, `type = `+arg(filter.Type))
	}
	if filter.Category != "" {
		conditions = append(conditions, `category = `+arg(filter.Category))
	}
	if filter.MinPrice > 0 {
		conditions = append(conditions, `price >= `+arg(filter.MinPrice))
	}
	if filter.MaxPrice > 0 {
		conditions = append(conditions, `price <= `+arg(filter.MaxPrice))
	}

	where := strings.Join(conditions, " AND ")

	countQuery := `SELECT COUNT(1) FROM properties WHERE ` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `
		SELECT ` + propertyColumns + `
		FROM properties
		WHERE ` + where + `
		ORDER BY created_at DESC
		OFFSET ` + arg(offset) + ` LIMIT ` + arg(limit)
	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	properties := make([]types.Property, 0, limit)
	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, 0, err
		}
		properties = append(properties, property)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return properties, total, nil
}

// ListByAgent returns all of an agent's properties regardless of status.
func (r *PropertyRepository) ListByAgent(ctx context.Context, agentID int) ([]types.Property, error) {
	const query = `
		SELECT ` + propertyColumns + `
		FROM properties
		WHERE agent_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var properties []types.Property
	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, property)
	}
	return properties, rows.Err()
}

// ListPending returns the admin review queue: pending properties oldest
// first, each populated with its owning agent and that agent's user.
func (r *PropertyRepository) ListPending(ctx context.Context, offset, limit int) ([]types.PendingProperty, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM properties WHERE approval_status = 'pending'`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT p.id, p.title, p.description, p.city, p.address, p.price, p.category, p.type,
			p.availability, p.approval_status, p.review_notes, p.reviewed_by, p.reviewed_at,
			p.agent_id, p.visible, p.images, p.amenities, p.version, p.created_at, p.updated_at,
			a.id, a.user_id, a.subscription, a.active, a.visible, a.subscription_expires_at,
			a.bio, a.phone, a.agency, a.version, a.created_at, a.updated_at,
			u.id, u.username, u.email, u.name, u.role, u.created_at, u.updated_at
		FROM properties p
		JOIN agents a ON a.id = p.agent_id
		JOIN users u ON u.id = a.user_id
		WHERE p.approval_status = 'pending'
		ORDER BY p.created_at ASC
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]types.PendingProperty, 0, limit)
	for rows.Next() {
		var entry types.PendingProperty
		var imagesJSON, amenitiesJSON []byte
		var reviewedBy sql.NullInt64
		var reviewedAt sql.NullTime
		if err := rows.Scan(
			&entry.Property.ID,
			&entry.Property.Title,
			&entry.Property.Description,
			&entry.Property.City,
			&entry.Property.Address,
			&entry.Property.Price,
			&entry.Property.Category,
			&entry.Property.Type,
			&entry.Property.Availability,
			&entry.Property.ApprovalStatus,
			&entry.Property.ReviewNotes,
			&reviewedBy,
			&reviewedAt,
			&entry.Property.AgentID,
			&entry.Property.Visible,
			&imagesJSON,
			&amenitiesJSON,
			&entry.Property.Version,
			&entry.Property.CreatedAt,
			&entry.Property.UpdatedAt,
			&entry.Agent.ID,
			&entry.Agent.UserID,
			&entry.Agent.Subscription,
			&entry.Agent.Active,
			&entry.Agent.Visible,
			&entry.Agent.SubscriptionExpiresAt,
			&entry.Agent.Bio,
			&entry.Agent.Phone,
			&entry.Agent.Agency,
			&entry.Agent.Version,
			&entry.Agent.CreatedAt,
			&entry.Agent.UpdatedAt,
			&entry.User.ID,
			&entry.User.Username,
			&entry.User.Email,
			&entry.User.Name,
			&entry.User.Role,
			&entry.User.CreatedAt,
			&entry.User.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		if reviewedBy.Valid {
			entry.Property.ReviewedBy = int(reviewedBy.Int64)
		}
		if reviewedAt.Valid {
			t := reviewedAt.Time
			entry.Property.ReviewedAt = &t
		}
		_ = json.Unmarshal(imagesJSON, &entry.Property.Images)
		_ = json.Unmarshal(amenitiesJSON, &entry.Property.Amenities)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *PropertyRepository) Create(ctx context.Context, property types.Property) (types.Property, error) {
	now := time.Now()
	property.CreatedAt = now
	property.UpdatedAt = now
	property.Version = 1
	if property.Images == nil {
		property.Images = []string{}
	}
	if property.Amenities == nil {
		property.Amenities = []string{}
	}

	imagesJSON, err := json.Marshal(property.Images)
	if err != nil {
		return types.Property{}, err
	}
	amenitiesJSON, err := json.Marshal(property.Amenities)
	if err != nil {
		return types.Property{}, err
	}

	const query = `
		INSERT INTO properties (title, description, city, address, price, category, type, availability, approval_status, review_notes, agent_id, visible, images, amenities, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		property.Title,
		property.Description,
		property.City,
		property.Address,
		property.Price,
		property.Category,
		property.Type,
		property.Availability,
		property.ApprovalStatus,
		property.ReviewNotes,
		property.AgentID,
		property.Visible,
		imagesJSON,
		amenitiesJSON,
		property.Version,
		property.CreatedAt,
		property.UpdatedAt,
	).Scan(&property.ID); err != nil {
		return types.Property{}, err
	}
	return property, nil
}

// Update persists listing fields, checking and bumping the version
// token. A stale version yields ErrVersionConflict.
func (r *PropertyRepository) Update(ctx context.Context, property types.Property) (types.Property, error) {
	property.UpdatedAt = time.Now()

	imagesJSON, err := json.Marshal(property.Images)
	if err != nil {
		return types.Property{}, err
	}
	amenitiesJSON, err := json.Marshal(property.Amenities)
	if err != nil {
		return types.Property{}, err
	}

	const query = `
		UPDATE properties
		SET title = $1,
			description = $2,
			city = $3,
			address = $4,
			price = $5,
			category = $6,
			type = $7,
			availability = $8,
			images = $9,
			amenities = $10,
			version = version + 1,
			updated_at = $11
		WHERE id = $12 AND version = $13`
	result, err := r.db.ExecContext(
		ctx,
		query,
		property.Title,
		property.Description,
		property.City,
		property.Address,
		property.Price,
		property.Category,
		property.Type,
		property.Availability,
		imagesJSON,
		amenitiesJSON,
		property.UpdatedAt,
		property.ID,
		property.Version,
	)
	if err != nil {
		return types.Property{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Property{}, err
	}
	if affected == 0 {
		if _, getErr := r.Get(ctx, property.ID); errors.Is(getErr, ErrNotFound) {
			return types.Property{}, ErrNotFound
		}
		return types.Property{}, ErrVersionConflict
	}
	property.Version++
	return property, nil
}

// Decide moves a pending property to approved or rejected. The status
// guard in the WHERE clause makes concurrent decisions race-safe: the
// loser matches no row and gets ErrVersionConflict.
func (r *PropertyRepository) Decide(ctx context.Context, id int, status string, notes string, reviewedBy int, visible bool) (types.Property, error) {
	const query = `
		UPDATE properties
		SET approval_status = $1,
			review_notes = $2,
			reviewed_by = $3,
			reviewed_at = $4,
			visible = $5,
			version = version + 1,
			updated_at = $4
		WHERE id = $6 AND approval_status = 'pending'`
	result, err := r.db.ExecContext(ctx, query, status, notes, reviewedBy, time.Now(), visible, id)
	if err != nil {
		return types.Property{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Property{}, err
	}
	if affected == 0 {
		if _, getErr := r.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
			return types.Property{}, ErrNotFound
		}
		return types.Property{}, ErrVersionConflict
	}
	return r.Get(ctx, id)
}

// Resubmit moves a rejected property back to pending and clears the
// previous review. Only rejected properties may be resubmitted.
func (r *PropertyRepository) Resubmit(ctx context.Context, id int) (types.Property, error) {
	const query = `
		UPDATE properties
		SET approval_status = 'pending',
			review_notes = '',
			reviewed_by = NULL,
			reviewed_at = NULL,
			visible = FALSE,
			version = version + 1,
			updated_at = $1
		WHERE id = $2 AND approval_status = 'rejected'`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return types.Property{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Property{}, err
	}
	if affected == 0 {
		if _, getErr := r.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
			return types.Property{}, ErrNotFound
		}
		return types.Property{}, ErrVersionConflict
	}
	return r.Get(ctx, id)
}

// SetAvailability flips the sale/rental lifecycle field.
func (r *PropertyRepository) SetAvailability(ctx context.Context, id int, availability string) error {
	const query = `
		UPDATE properties
		SET availability = $1, version = version + 1, updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, availability, time.Now(), id)
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

// UnpublishByAgent hides all of an agent's properties from public
// browsing. Called when an agent profile is removed so no listing of a
// former agent stays publicly reachable.
func (r *PropertyRepository) UnpublishByAgent(ctx context.Context, agentID int) (int, error) {
	const query = `
		UPDATE properties
		SET visible = FALSE, version = version + 1, updated_at = $1
		WHERE agent_id = $2 AND visible = TRUE`
	result, err := r.db.ExecContext(ctx, query, time.Now(), agentID)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *PropertyRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM properties WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
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
