package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/havenhub/apiserver/types"
)

// AgentRepository handles persistence for agent profiles.
type AgentRepository struct {
	db DBTX
}

func NewAgentRepository(db DBTX) *AgentRepository {
	return &AgentRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *AgentRepository) WithTx(tx *sql.Tx) *AgentRepository {
	return &AgentRepository{db: tx}
}

const agentColumns = `id, user_id, subscription, active, visible, subscription_expires_at, bio, phone, agency, version, created_at, updated_at`

func scanAgent(row interface{ Scan(...any) error }) (types.Agent, error) {
	var agent types.Agent
	err := row.Scan(
		&agent.ID,
		&agent.UserID,
		&agent.Subscription,
		&agent.Active,
		&agent.Visible,
		&agent.SubscriptionExpiresAt,
		&agent.Bio,
		&agent.Phone,
		&agent.Agency,
		&agent.Version,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Agent{}, ErrNotFound
		}
		return types.Agent{}, err
	}
	return agent, nil
}

func (r *AgentRepository) GetByID(ctx context.Context, id int) (types.Agent, error) {
	const query = `
		SELECT ` + agentColumns + `
		FROM agents
		WHERE id = $1`
	return scanAgent(r.db.QueryRowContext(ctx, query, id))
}

func (r *AgentRepository) GetByUserID(ctx context.Context, userID int) (types.Agent, error) {
	const query = `
		SELECT ` + agentColumns + `
		FROM agents
		WHERE user_id = $1`
	return scanAgent(r.db.QueryRowContext(ctx, query, userID))
}

func (r *AgentRepository) Create(ctx context.Context, agent types.Agent) (types.Agent, error) {
	now := time.Now()
	agent.CreatedAt = now
	agent.UpdatedAt = now
	agent.Version = 1

	const query = `
		INSERT INTO agents (user_id, subscription, active, visible, subscription_expires_at, bio, phone, agency, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		agent.UserID,
		agent.Subscription,
		agent.Active,
		agent.Visible,
		agent.SubscriptionExpiresAt,
		agent.Bio,
		agent.Phone,
		agent.Agency,
		agent.Version,
		agent.CreatedAt,
		agent.UpdatedAt,
	).Scan(&agent.ID); err != nil {
		return types.Agent{}, err
	}
	return agent, nil
}

// Update persists profile fields, checking and bumping the version
// token. A stale version yields ErrVersionConflict.
func (r *AgentRepository) Update(ctx context.Context, agent types.Agent) (types.Agent, error) {
	agent.UpdatedAt = time.Now()

	const query = `
		UPDATE agents
		SET subscription = $1,
			active = $2,
			visible = $3,
			subscription_expires_at = $4,
			bio = $5,
			phone = $6,
			agency = $7,
			version = version + 1,
			updated_at = $8
		WHERE id = $9 AND version = $10`
	result, err := r.db.ExecContext(
		ctx,
		query,
		agent.Subscription,
		agent.Active,
		agent.Visible,
		agent.SubscriptionExpiresAt,
		agent.Bio,
		agent.Phone,
		agent.Agency,
		agent.UpdatedAt,
		agent.ID,
		agent.Version,
	)
	if err != nil {
		return types.Agent{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Agent{}, err
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, agent.ID); errors.Is(getErr, ErrNotFound) {
			return types.Agent{}, ErrNotFound
		}
		return types.Agent{}, ErrVersionConflict
	}
	agent.Version++
	return agent, nil
}

func (r *AgentRepository) DeleteByUserID(ctx context.Context, userID int) error {
	const query = `DELETE FROM agents WHERE user_id = $1`
	result, err := r.db.ExecContext(ctx, query, userID)
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

// ListUserIDs returns the owning user id of every agent profile.
// Used by the consistency audit.
func (r *AgentRepository) ListUserIDs(ctx context.Context) ([]int, error) {
	const query = `SELECT user_id FROM agents ORDER BY user_id`
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
