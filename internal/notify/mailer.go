// Package notify sends transactional email over SMTP.
package notify

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"

	"leadgenBack/internal/models"
	"leadgenBack/internal/payouts"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

type Mailer struct {
	from   string
	send   func(m ...*gomail.Message) error
	logger Logger
}

// NewMailer returns a mailer backed by an SMTP dialer. With no host configured the
// messages are only logged.
func NewMailer(cfg Config, logger Logger) *Mailer {
	m := &Mailer{from: cfg.From, logger: logger}
	if cfg.Host == "" {
		m.send = func(msgs ...*gomail.Message) error {
			for _, msg := range msgs {
				if logger != nil {
					logger.Infof("notify: smtp disabled, dropping mail to %v: %v", msg.GetHeader("To"), msg.GetHeader("Subject"))
				}
			}
			return nil
		}
		return m
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	m.send = d.DialAndSend
	return m
}

// PayoutSent tells a partner that a weekly payout was issued.
func (m *Mailer) PayoutSent(ctx context.Context, partner payouts.Partner, payout payouts.Payout) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	amount := decimal.New(payout.AmountCents, -2).StringFixed(2)
	msg := m.message(partner.Email, "Your weekly payout is on its way")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nWe issued a payout of %s %s for the week starting %s.\n\nReference: %s\n",
		partner.Name, amount, payout.Currency, payout.WeekStart.Format("2006-01-02"), payout.IdempotencyKey))
	return m.send(msg)
}

// TicketReply forwards a support reply to the requester.
func (m *Mailer) TicketReply(ctx context.Context, ticket models.SupportTicket, reply models.TicketReply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ticket.RequesterEmail == "" {
		return nil
	}
	msg := m.message(ticket.RequesterEmail, "Re: "+ticket.Subject)
	msg.SetBody("text/plain", reply.Body+"\n\n-- \nTicket "+ticket.ID)
	return m.send(msg)
}

func (m *Mailer) message(to, subject string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	return msg
}
