package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"leadgenBack/internal/models"
)

const leadUniqueEmail = "leads_workspace_email_key"

const leadColumns = `id, workspace_id, email, first_name, last_name, title, seniority, company, company_domain,
	company_size, phone, linkedin_url, city, country, source, status, email_status, owner_agent_id,
	intent_score, freshness_score, tags, verified_at, created_at, updated_at`

type LeadRepository struct {
	DB *sql.DB
}

func (r *LeadRepository) Create(ctx context.Context, lead models.Lead) (models.Lead, error) {
	return insertLead(ctx, r.DB, lead)
}

func insertLead(ctx context.Context, q querier, lead models.Lead) (models.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.Tags == nil {
		lead.Tags = []string{}
	}
	err := q.QueryRowContext(ctx, `
		INSERT INTO leads (id, workspace_id, email, first_name, last_name, title, seniority, company, company_domain,
			company_size, phone, linkedin_url, city, country, source, status, email_status, owner_agent_id,
			intent_score, freshness_score, tags, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING created_at`,
		lead.ID, lead.WorkspaceID, lead.Email, lead.FirstName, lead.LastName, lead.Title, lead.Seniority,
		lead.Company, lead.CompanyDomain, lead.CompanySize, lead.Phone, lead.LinkedInURL, lead.City, lead.Country,
		lead.Source, lead.Status, lead.EmailStatus, nullableString(lead.OwnerAgentID), lead.IntentScore,
		lead.FreshnessScore, pq.Array(lead.Tags), nullableTime(lead.VerifiedAt),
	).Scan(&lead.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, leadUniqueEmail) {
			return models.Lead{}, models.ErrDuplicateLead
		}
		return models.Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return lead, nil
}

// InsertBatch inserts leads skipping emails that already exist in the workspace, and
// returns how many rows were actually written.
func (r *LeadRepository) InsertBatch(ctx context.Context, leads []models.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	inserted := 0
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO leads (id, workspace_id, email, first_name, last_name, title, seniority, company, company_domain,
				company_size, phone, linkedin_url, city, country, source, status, email_status, owner_agent_id,
				intent_score, freshness_score, tags, verified_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
			ON CONFLICT (workspace_id, email) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, lead := range leads {
			if lead.ID == "" {
				lead.ID = uuid.NewString()
			}
			if lead.Tags == nil {
				lead.Tags = []string{}
			}
			res, err := stmt.ExecContext(ctx,
				lead.ID, lead.WorkspaceID, lead.Email, lead.FirstName, lead.LastName, lead.Title, lead.Seniority,
				lead.Company, lead.CompanyDomain, lead.CompanySize, lead.Phone, lead.LinkedInURL, lead.City, lead.Country,
				lead.Source, lead.Status, lead.EmailStatus, nullableString(lead.OwnerAgentID), lead.IntentScore,
				lead.FreshnessScore, pq.Array(lead.Tags), nullableTime(lead.VerifiedAt))
			if err != nil {
				return fmt.Errorf("insert lead %s: %w", lead.Email, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *LeadRepository) Get(ctx context.Context, workspaceID, id string) (models.Lead, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	return scanLead(row)
}

// ExistingEmails returns the subset of emails already present in the workspace.
func (r *LeadRepository) ExistingEmails(ctx context.Context, workspaceID string, emails []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(emails) == 0 {
		return out, nil
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT email FROM leads WHERE workspace_id = $1 AND email = ANY($2)`,
		workspaceID, pq.Array(emails))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out[email] = true
	}
	return out, rows.Err()
}

func (r *LeadRepository) List(ctx context.Context, workspaceID string, f models.LeadFilter) ([]models.Lead, error) {
	where := []string{"workspace_id = $1"}
	args := []interface{}{workspaceID}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add("(email ILIKE $%[1]d OR first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR company ILIKE $%[1]d)", "%"+q+"%")
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.OwnerAgentID != "" {
		add("owner_agent_id = $%d", f.OwnerAgentID)
	}
	if f.MinIntentScore > 0 {
		add("intent_score >= $%d", f.MinIntentScore)
	}
	limit, offset := clampPage(f.Limit, f.Offset)
	args = append(args, limit, offset)

	query := fmt.Sprintf(`SELECT %s FROM leads WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		leadColumns, strings.Join(where, " AND "), len(args)-1, len(args))
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) Update(ctx context.Context, lead models.Lead) (models.Lead, error) {
	if lead.Tags == nil {
		lead.Tags = []string{}
	}
	err := r.DB.QueryRowContext(ctx, `
		UPDATE leads SET first_name = $3, last_name = $4, title = $5, seniority = $6, company = $7,
			company_domain = $8, company_size = $9, phone = $10, linkedin_url = $11, city = $12, country = $13,
			email_status = $14, intent_score = $15, freshness_score = $16, tags = $17, verified_at = $18,
			updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2
		RETURNING updated_at`,
		lead.WorkspaceID, lead.ID, lead.FirstName, lead.LastName, lead.Title, lead.Seniority, lead.Company,
		lead.CompanyDomain, lead.CompanySize, lead.Phone, lead.LinkedInURL, lead.City, lead.Country,
		lead.EmailStatus, lead.IntentScore, lead.FreshnessScore, pq.Array(lead.Tags), nullableTime(lead.VerifiedAt),
	).Scan(&lead.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Lead{}, models.ErrNotFound
	}
	if err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

func (r *LeadRepository) UpdateStatus(ctx context.Context, workspaceID, id, status string) error {
	return expectAffected(r.DB.ExecContext(ctx,
		`UPDATE leads SET status = $3, updated_at = NOW() WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id, status))
}

// Assign sets the owning agent. A nil agentID unassigns the lead.
func (r *LeadRepository) Assign(ctx context.Context, workspaceID, id string, agentID *string) error {
	return expectAffected(r.DB.ExecContext(ctx,
		`UPDATE leads SET owner_agent_id = $3, updated_at = NOW() WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id, nullableString(agentID)))
}

func (r *LeadRepository) UpdateScores(ctx context.Context, workspaceID, id string, intent, freshness int) error {
	return expectAffected(r.DB.ExecContext(ctx,
		`UPDATE leads SET intent_score = $3, freshness_score = $4, updated_at = NOW() WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id, intent, freshness))
}

func (r *LeadRepository) Delete(ctx context.Context, workspaceID, id string) error {
	return expectAffected(r.DB.ExecContext(ctx, `DELETE FROM leads WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}

// RecordDedup stores one skipped duplicate for the dedup statistics.
func (r *LeadRepository) RecordDedup(ctx context.Context, workspaceID, email, source string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO lead_dedup_events (workspace_id, email, source) VALUES ($1, $2, $3)`,
		workspaceID, email, source)
	return err
}

// RecordDedupCount stores n skipped duplicates at once for bulk imports.
func (r *LeadRepository) RecordDedupCount(ctx context.Context, workspaceID, source string, emails []string) error {
	if len(emails) == 0 {
		return nil
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO lead_dedup_events (workspace_id, email, source)
		SELECT $1, e, $2 FROM unnest($3::text[]) AS e`,
		workspaceID, source, pq.Array(emails))
	return err
}

// DedupStats groups skipped duplicates by source since the given time. An empty
// workspaceID aggregates across all workspaces.
func (r *LeadRepository) DedupStats(ctx context.Context, workspaceID string, since time.Time) ([]models.DedupStat, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT source, COUNT(*) FROM lead_dedup_events
		WHERE created_at >= $1 AND ($2 = '' OR workspace_id::text = $2)
		GROUP BY source ORDER BY COUNT(*) DESC, source`, since, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []models.DedupStat{}
	for rows.Next() {
		var s models.DedupStat
		if err := rows.Scan(&s.Source, &s.Duplicates); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func scanLead(row scanner) (models.Lead, error) {
	var (
		lead     models.Lead
		owner    sql.NullString
		verified sql.NullTime
		updated  sql.NullTime
		tags     pq.StringArray
	)
	err := row.Scan(&lead.ID, &lead.WorkspaceID, &lead.Email, &lead.FirstName, &lead.LastName, &lead.Title,
		&lead.Seniority, &lead.Company, &lead.CompanyDomain, &lead.CompanySize, &lead.Phone, &lead.LinkedInURL,
		&lead.City, &lead.Country, &lead.Source, &lead.Status, &lead.EmailStatus, &owner, &lead.IntentScore,
		&lead.FreshnessScore, &tags, &verified, &lead.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Lead{}, models.ErrNotFound
	}
	if err != nil {
		return models.Lead{}, err
	}
	lead.OwnerAgentID = nullToPtr(owner)
	lead.VerifiedAt = nullTimeToPtr(verified)
	lead.UpdatedAt = nullTimeToPtr(updated)
	lead.Tags = []string(tags)
	if lead.Tags == nil {
		lead.Tags = []string{}
	}
	return lead, nil
}
