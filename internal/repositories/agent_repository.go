package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"leadgenBack/internal/models"
)

const agentSelect = `
	SELECT a.id, a.workspace_id, a.name, a.email, a.active, a.max_open_leads,
	       (SELECT COUNT(*) FROM leads l WHERE l.owner_agent_id = a.id AND l.status IN ('new', 'contacted', 'qualified')) AS open_leads,
	       a.created_at, a.updated_at
	FROM agents a`

type AgentRepository struct {
	DB *sql.DB
}

func (r *AgentRepository) Create(ctx context.Context, agent models.Agent) (models.Agent, error) {
	agent.ID = uuid.NewString()
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO agents (id, workspace_id, name, email, active, max_open_leads)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		agent.ID, agent.WorkspaceID, agent.Name, agent.Email, agent.Active, agent.MaxOpenLeads,
	).Scan(&agent.CreatedAt)
	if err != nil {
		return models.Agent{}, err
	}
	return agent, nil
}

func (r *AgentRepository) Get(ctx context.Context, workspaceID, id string) (models.Agent, error) {
	return scanAgent(r.DB.QueryRowContext(ctx, agentSelect+` WHERE a.workspace_id = $1 AND a.id = $2`, workspaceID, id))
}

func (r *AgentRepository) List(ctx context.Context, workspaceID string, limit, offset int) ([]models.Agent, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.DB.QueryContext(ctx, agentSelect+` WHERE a.workspace_id = $1 ORDER BY a.name, a.id LIMIT $2 OFFSET $3`,
		workspaceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := []models.Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (r *AgentRepository) Update(ctx context.Context, agent models.Agent) (models.Agent, error) {
	err := r.DB.QueryRowContext(ctx, `
		UPDATE agents SET name = $3, email = $4, active = $5, max_open_leads = $6, updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2
		RETURNING created_at, updated_at`,
		agent.WorkspaceID, agent.ID, agent.Name, agent.Email, agent.Active, agent.MaxOpenLeads,
	).Scan(&agent.CreatedAt, &agent.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Agent{}, models.ErrNotFound
	}
	return agent, err
}

func (r *AgentRepository) Delete(ctx context.Context, workspaceID, id string) error {
	return expectAffected(r.DB.ExecContext(ctx, `DELETE FROM agents WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}

// PickForRouting returns the active agent with spare capacity and the fewest open leads,
// breaking ties by id. It returns models.ErrNotFound when nobody can take the lead.
func (r *AgentRepository) PickForRouting(ctx context.Context, workspaceID string) (models.Agent, error) {
	return scanAgent(r.DB.QueryRowContext(ctx, `
		SELECT * FROM (`+agentSelect+` WHERE a.workspace_id = $1 AND a.active) AS candidates
		WHERE open_leads < max_open_leads
		ORDER BY open_leads, id
		LIMIT 1`, workspaceID))
}

func scanAgent(row scanner) (models.Agent, error) {
	var (
		a       models.Agent
		updated sql.NullTime
	)
	err := row.Scan(&a.ID, &a.WorkspaceID, &a.Name, &a.Email, &a.Active, &a.MaxOpenLeads, &a.OpenLeads, &a.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Agent{}, models.ErrNotFound
	}
	if err != nil {
		return models.Agent{}, err
	}
	a.UpdatedAt = nullTimeToPtr(updated)
	return a, nil
}
