package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/studio-booking-platform/internal/conversation"
	"github.com/wolfman30/studio-booking-platform/internal/domain"
)

// DefaultContextTurns is how many recent transcript messages travel with a
// WhatsApp handoff.
const DefaultContextTurns = 5

var errNoBooking = errors.New("notify: event has no booking")

// TranscriptSource loads the conversation behind a booking.
type TranscriptSource interface {
	Get(ctx context.Context, sessionID string) (*domain.Conversation, error)
}

// AdminAlertChannel records an in-app alert for the admin dashboard.
type AdminAlertChannel struct {
	store AlertStore
}

func NewAdminAlertChannel(store AlertStore) *AdminAlertChannel {
	if store == nil {
		return nil
	}
	return &AdminAlertChannel{store: store}
}

func (c *AdminAlertChannel) Name() string { return "admin_alert" }

func (c *AdminAlertChannel) Send(ctx context.Context, evt BookingEvent) error {
	bk := evt.Booking
	if bk == nil {
		return errNoBooking
	}
	return c.store.Publish(ctx, Alert{
		ID:        uuid.NewString(),
		Kind:      AlertNewBooking,
		BookingID: bk.ID,
		SessionID: evt.SessionID,
		Title:     fmt.Sprintf("New booking: %s", bk.Name),
		Body:      fmt.Sprintf("%s requested %s. Phone %s.", bk.Name, bk.Package, bk.Phone),
		CreatedAt: evt.OccurredAt,
	})
}

// WhatsAppChannel prepares a wa.me handoff link carrying the booking and the
// last few chat turns, and posts it to the admin alert feed.
type WhatsAppChannel struct {
	number      string
	turns       int
	transcripts TranscriptSource
	alerts      AlertStore
}

func NewWhatsAppChannel(number string, turns int, transcripts TranscriptSource, alerts AlertStore) *WhatsAppChannel {
	number = digitsOnly(number)
	if number == "" || alerts == nil {
		return nil
	}
	if turns <= 0 {
		turns = DefaultContextTurns
	}
	return &WhatsAppChannel{number: number, turns: turns, transcripts: transcripts, alerts: alerts}
}

func (c *WhatsAppChannel) Name() string { return "whatsapp" }

func (c *WhatsAppChannel) Send(ctx context.Context, evt BookingEvent) error {
	bk := evt.Booking
	if bk == nil {
		return errNoBooking
	}
	var recent []domain.Message
	if c.transcripts != nil && evt.SessionID != "" {
		conv, err := c.transcripts.Get(ctx, evt.SessionID)
		switch {
		case errors.Is(err, conversation.ErrNotFound):
			// Direct submissions may carry a session that never chatted.
		case err != nil:
			return fmt.Errorf("notify: load transcript: %w", err)
		default:
			recent = conv.RecentMessages(c.turns)
		}
	}
	link := WhatsAppLink(c.number, WhatsAppText(bk, recent))
	return c.alerts.Publish(ctx, Alert{
		ID:        uuid.NewString(),
		Kind:      AlertWhatsAppLink,
		BookingID: bk.ID,
		SessionID: evt.SessionID,
		Title:     fmt.Sprintf("Follow up with %s on WhatsApp", bk.Name),
		Body:      bk.Phone,
		Link:      link,
		CreatedAt: evt.OccurredAt,
	})
}

// WhatsAppText is the prefilled handoff message.
func WhatsAppText(bk *domain.Booking, recent []domain.Message) string {
	var b strings.Builder
	b.WriteString("New booking request\n")
	fmt.Fprintf(&b, "Name: %s\nPhone: %s\nPackage: %s\n", bk.Name, bk.Phone, bk.Package)
	if bk.Value != nil {
		fmt.Fprintf(&b, "Price: %s\n", domain.FormatINR(*bk.Value))
	}
	if bk.SpecialRequests != nil && *bk.SpecialRequests != "" {
		fmt.Fprintf(&b, "Requests: %s\n", *bk.SpecialRequests)
	}
	fmt.Fprintf(&b, "Booking ID: %s\n", bk.ID)
	if len(recent) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, m := range recent {
			fmt.Fprintf(&b, "%s: %s\n", m.Sender, m.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// WhatsAppLink builds a click-to-chat URL.
func WhatsAppLink(number, text string) string {
	return "https://wa.me/" + digitsOnly(number) + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// EmailChannel mails every configured admin recipient.
type EmailChannel struct {
	sender     EmailSender
	recipients []string
}

func NewEmailChannel(sender EmailSender, recipients []string) *EmailChannel {
	var to []string
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}
	if sender == nil || len(to) == 0 {
		return nil
	}
	return &EmailChannel{sender: sender, recipients: to}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, evt BookingEvent) error {
	bk := evt.Booking
	if bk == nil {
		return errNoBooking
	}
	msg := EmailMessage{
		Subject: fmt.Sprintf("New booking request - %s", bk.Name),
		Body:    WhatsAppText(bk, nil),
	}
	var errs []error
	for _, to := range c.recipients {
		msg.To = to
		if err := c.sender.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var (
	_ Channel = (*AdminAlertChannel)(nil)
	_ Channel = (*WhatsAppChannel)(nil)
	_ Channel = (*EmailChannel)(nil)
)
