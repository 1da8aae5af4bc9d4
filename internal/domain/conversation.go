// Package domain holds the records shared by the chat intake pipeline and the
// admin surface: conversations, packages and bookings.
package domain

import "time"

// State is a position in the scripted booking dialogue.
type State string

const (
	StateGreeting        State = "GREETING"
	StateAwaitingPackage State = "AWAITING_PACKAGE"
	StateAwaitingName    State = "AWAITING_NAME"
	StateAwaitingPhone   State = "AWAITING_PHONE"
	StateCompleted       State = "COMPLETED"
	StateAbandoned       State = "ABANDONED"
)

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAbandoned
}

// CollectsDetails reports whether s is waiting for the visitor's name or phone.
func (s State) CollectsDetails() bool {
	return s == StateAwaitingName || s == StateAwaitingPhone
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateGreeting, StateAwaitingPackage, StateAwaitingName, StateAwaitingPhone, StateCompleted, StateAbandoned:
		return true
	}
	return false
}

// Sender identifies who authored a transcript message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one transcript entry. Transcripts are append-only.
type Message struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Visitor is the anonymous person behind a chat session.
type Visitor struct {
	Name        *string `json:"name"`
	Phone       *string `json:"phone"`
	Fingerprint string  `json:"fingerprint"`
}

// Conversation is one visitor's dialogue with the booking bot.
type Conversation struct {
	SessionID      string     `json:"sessionId"`
	State          State      `json:"state"`
	Visitor        Visitor    `json:"visitor"`
	PendingPackage *Package   `json:"pendingPackage,omitempty"`
	Messages       []Message  `json:"messages"`
	BookingID      string     `json:"bookingId,omitempty"`
	Booking        *Booking   `json:"booking"`
	AbandonReason  string     `json:"abandonReason,omitempty"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
	DeleteReason   string     `json:"deleteReason,omitempty"`
}

// NewConversation starts a dialogue in the greeting state.
func NewConversation(sessionID, fingerprint string, now time.Time) *Conversation {
	return &Conversation{
		SessionID: sessionID,
		State:     StateGreeting,
		Visitor:   Visitor{Fingerprint: fingerprint},
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecentMessages returns at most n trailing messages in chronological order.
func (c *Conversation) RecentMessages(n int) []Message {
	if c == nil || n <= 0 {
		return nil
	}
	start := len(c.Messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(c.Messages)-start)
	copy(out, c.Messages[start:])
	return out
}

// Deleted reports whether an admin soft-deleted the conversation.
func (c *Conversation) Deleted() bool {
	return c != nil && c.DeletedAt != nil
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Visitor.Name = cloneString(c.Visitor.Name)
	cp.Visitor.Phone = cloneString(c.Visitor.Phone)
	if c.PendingPackage != nil {
		pkg := c.PendingPackage.clone()
		cp.PendingPackage = &pkg
	}
	cp.Messages = append([]Message(nil), c.Messages...)
	if cp.Messages == nil {
		cp.Messages = []Message{}
	}
	cp.Booking = c.Booking.Clone()
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
