package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"leadgenBack/internal/models"
)

const ticketColumns = `id, workspace_id, requester_id, requester_email, subject, body, priority, status, created_at, updated_at`

type TicketRepository struct {
	DB *sql.DB
}

func (r *TicketRepository) Create(ctx context.Context, t models.SupportTicket) (models.SupportTicket, error) {
	t.ID = uuid.NewString()
	t.Status = models.TicketOpen
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO support_tickets (id, workspace_id, requester_id, requester_email, subject, body, priority, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		t.ID, t.WorkspaceID, t.RequesterID, t.RequesterEmail, t.Subject, t.Body, t.Priority, t.Status,
	).Scan(&t.CreatedAt)
	if err != nil {
		return models.SupportTicket{}, err
	}
	return t, nil
}

// Get loads a ticket with its replies.
func (r *TicketRepository) Get(ctx context.Context, id string) (models.SupportTicket, error) {
	t, err := scanTicket(r.DB.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM support_tickets WHERE id = $1`, id))
	if err != nil {
		return models.SupportTicket{}, err
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, ticket_id, author_id, body, created_at
		FROM ticket_replies WHERE ticket_id = $1 ORDER BY id`, id)
	if err != nil {
		return models.SupportTicket{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var reply models.TicketReply
		if err := rows.Scan(&reply.ID, &reply.TicketID, &reply.AuthorID, &reply.Body, &reply.CreatedAt); err != nil {
			return models.SupportTicket{}, err
		}
		t.Replies = append(t.Replies, reply)
	}
	return t, rows.Err()
}

func (r *TicketRepository) ListByRequester(ctx context.Context, workspaceID, requesterID string, limit, offset int) ([]models.SupportTicket, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+ticketColumns+` FROM support_tickets
		WHERE workspace_id = $1 AND requester_id = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, workspaceID, requesterID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

// ListAll is the admin view; an empty status lists every ticket.
func (r *TicketRepository) ListAll(ctx context.Context, status string, limit, offset int) ([]models.SupportTicket, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+ticketColumns+` FROM support_tickets
		WHERE ($1 = '' OR status = $1)
		ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END, created_at
		LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

func (r *TicketRepository) AddReply(ctx context.Context, reply models.TicketReply) (models.TicketReply, error) {
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO ticket_replies (ticket_id, author_id, body) VALUES ($1, $2, $3)
			RETURNING id, created_at`, reply.TicketID, reply.AuthorID, reply.Body,
		).Scan(&reply.ID, &reply.CreatedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE support_tickets SET updated_at = NOW() WHERE id = $1`, reply.TicketID)
		return err
	})
	if err != nil {
		return models.TicketReply{}, err
	}
	return reply, nil
}

// UpdateStatus changes status only if the ticket is still in from.
func (r *TicketRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	err := expectAffected(r.DB.ExecContext(ctx,
		`UPDATE support_tickets SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`, id, from, to))
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrInvalidTransition
	}
	return err
}

func collectTickets(rows *sql.Rows) ([]models.SupportTicket, error) {
	defer rows.Close()
	out := []models.SupportTicket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTicket(row scanner) (models.SupportTicket, error) {
	var (
		t       models.SupportTicket
		updated sql.NullTime
	)
	err := row.Scan(&t.ID, &t.WorkspaceID, &t.RequesterID, &t.RequesterEmail, &t.Subject, &t.Body, &t.Priority,
		&t.Status, &t.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SupportTicket{}, models.ErrNotFound
	}
	if err != nil {
		return models.SupportTicket{}, err
	}
	t.UpdatedAt = nullTimeToPtr(updated)
	return t, nil
}
