package services

import (
	"context"
	"fmt"
	"strings"

	"leadgenBack/internal/models"
)

type TicketStore interface {
	Create(ctx context.Context, t models.SupportTicket) (models.SupportTicket, error)
	Get(ctx context.Context, id string) (models.SupportTicket, error)
	ListByRequester(ctx context.Context, workspaceID, requesterID string, limit, offset int) ([]models.SupportTicket, error)
	ListAll(ctx context.Context, status string, limit, offset int) ([]models.SupportTicket, error)
	AddReply(ctx context.Context, reply models.TicketReply) (models.TicketReply, error)
	UpdateStatus(ctx context.Context, id, from, to string) error
}

// TicketNotifier emails support replies to the requester.
type TicketNotifier interface {
	TicketReply(ctx context.Context, ticket models.SupportTicket, reply models.TicketReply) error
}

type TicketService struct {
	Tickets  TicketStore
	Notifier TicketNotifier
	Logger   Logger
}

func (s *TicketService) Create(ctx context.Context, p models.Principal, t models.SupportTicket) (models.SupportTicket, error) {
	t.WorkspaceID = p.WorkspaceID
	t.RequesterID = p.UserID
	t.RequesterEmail = strings.ToLower(strings.TrimSpace(p.Email))
	t.Subject = strings.TrimSpace(t.Subject)
	if t.Subject == "" || strings.TrimSpace(t.Body) == "" {
		return models.SupportTicket{}, fmt.Errorf("%w: subject and body are required", models.ErrInvalidInput)
	}
	if t.Priority == "" {
		t.Priority = "normal"
	}
	return s.Tickets.Create(ctx, t)
}

func (s *TicketService) ListMine(ctx context.Context, p models.Principal, limit, offset int) ([]models.SupportTicket, error) {
	return s.Tickets.ListByRequester(ctx, p.WorkspaceID, p.UserID, limit, offset)
}

// Get returns a ticket with its replies. Members only see their own tickets.
func (s *TicketService) Get(ctx context.Context, p models.Principal, id string) (models.SupportTicket, error) {
	t, err := s.Tickets.Get(ctx, id)
	if err != nil {
		return models.SupportTicket{}, err
	}
	if !p.IsAdmin() && (t.WorkspaceID != p.WorkspaceID || t.RequesterID != p.UserID) {
		return models.SupportTicket{}, models.ErrNotFound
	}
	return t, nil
}

func (s *TicketService) ListAll(ctx context.Context, status string, limit, offset int) ([]models.SupportTicket, error) {
	switch status {
	case "", models.TicketOpen, models.TicketPending, models.TicketClosed:
	default:
		return nil, fmt.Errorf("%w: status %q", models.ErrInvalidInput, status)
	}
	return s.Tickets.ListAll(ctx, status, limit, offset)
}

// Reply stores an admin answer and emails it to the requester. Closed tickets have to be
// reopened first.
func (s *TicketService) Reply(ctx context.Context, admin models.Principal, ticketID, body string) (models.TicketReply, error) {
	if strings.TrimSpace(body) == "" {
		return models.TicketReply{}, fmt.Errorf("%w: reply body is required", models.ErrInvalidInput)
	}
	t, err := s.Tickets.Get(ctx, ticketID)
	if err != nil {
		return models.TicketReply{}, err
	}
	if t.Status == models.TicketClosed {
		return models.TicketReply{}, fmt.Errorf("%w: ticket is closed", models.ErrInvalidTransition)
	}
	reply, err := s.Tickets.AddReply(ctx, models.TicketReply{TicketID: t.ID, AuthorID: admin.UserID, Body: strings.TrimSpace(body)})
	if err != nil {
		return models.TicketReply{}, err
	}
	if s.Notifier != nil {
		if err := s.Notifier.TicketReply(ctx, t, reply); err != nil && s.Logger != nil {
			s.Logger.Errorf("tickets: email reply for %s: %v", t.ID, err)
		}
	}
	return reply, nil
}

// ChangeStatus moves a ticket along open -> pending -> closed; closed tickets may only
// be reopened.
func (s *TicketService) ChangeStatus(ctx context.Context, ticketID, to string) error {
	t, err := s.Tickets.Get(ctx, ticketID)
	if err != nil {
		return err
	}
	if !models.CanTransitionTicket(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, t.Status, to)
	}
	return s.Tickets.UpdateStatus(ctx, t.ID, t.Status, to)
}
