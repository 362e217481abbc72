package models

import "time"

const (
	TicketOpen    = "open"
	TicketPending = "pending"
	TicketClosed  = "closed"
)

type SupportTicket struct {
	ID             string        `json:"id"`
	WorkspaceID    string        `json:"workspace_id"`
	RequesterID    string        `json:"requester_id"`
	RequesterEmail string        `json:"requester_email"`
	Subject        string        `json:"subject" validate:"required,max=200"`
	Body           string        `json:"body" validate:"required"`
	Priority       string        `json:"priority" validate:"omitempty,oneof=low normal high"`
	Status         string        `json:"status"`
	Replies        []TicketReply `json:"replies,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      *time.Time    `json:"updated_at,omitempty"`
}

type TicketReply struct {
	ID        int64     `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
}

// CanTransitionTicket reports whether a ticket may move from one status to another.
func CanTransitionTicket(from, to string) bool {
	switch from {
	case TicketOpen:
		return to == TicketPending || to == TicketClosed
	case TicketPending:
		return to == TicketOpen || to == TicketClosed
	case TicketClosed:
		return to == TicketOpen
	}
	return false
}
