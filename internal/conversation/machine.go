// Package conversation drives a chat visitor through the scripted booking
// dialogue and persists the resulting transcripts.
package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/studio-booking-platform/internal/catalog"
	"github.com/wolfman30/studio-booking-platform/internal/domain"
)

var (
	// ErrEmptyMessage is returned for blank input before a package is chosen;
	// nothing is recorded. Blank names and phones are re-prompted instead.
	ErrEmptyMessage = errors.New("conversation: empty message")

	// ErrConversationClosed is returned for input to a terminal conversation.
	ErrConversationClosed = errors.New("conversation: conversation is closed")

	// ErrIllegalTransition signals a bug: a move the transition table forbids.
	ErrIllegalTransition = errors.New("conversation: illegal transition")
)

// transitions lists the allowed moves. Terminal states have no entry.
var transitions = map[domain.State][]domain.State{
	domain.StateGreeting:        {domain.StateAwaitingPackage, domain.StateAbandoned},
	domain.StateAwaitingPackage: {domain.StateAwaitingName, domain.StateAbandoned},
	domain.StateAwaitingName:    {domain.StateAwaitingPhone, domain.StateAbandoned},
	domain.StateAwaitingPhone:   {domain.StateCompleted, domain.StateAbandoned},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to domain.State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Outcome describes what one visitor message did.
type Outcome struct {
	From     domain.State
	To       domain.State
	Path     []domain.State // states entered, in order
	Code     domain.Code    // validation failure, empty on success
	Reply    string
	Appended []domain.Message
}

// Advanced reports whether the state changed.
func (o Outcome) Advanced() bool { return o.From != o.To }

// Completed reports whether this step finished the dialogue.
func (o Outcome) Completed() bool { return o.To == domain.StateCompleted }

// Machine applies visitor messages to conversations.
type Machine struct {
	catalog *catalog.Catalog
	prompts Prompts
	now     func() time.Time
}

// Option customizes a Machine.
type Option func(*Machine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithStudioName sets the name used in the greeting.
func WithStudioName(name string) Option {
	return func(m *Machine) { m.prompts.StudioName = name }
}

// NewMachine builds a machine over the given catalog.
func NewMachine(c *catalog.Catalog, opts ...Option) *Machine {
	if c == nil {
		c = catalog.Default()
	}
	m := &Machine{
		catalog: c,
		prompts: Prompts{Menu: c.Menu()},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Prompts exposes the reply texts.
func (m *Machine) Prompts() Prompts { return m.prompts }

// Advance validates text against the conversation's current step and moves it
// forward. Validation failures are reported through Outcome.Code with the state
// unchanged; returned errors mean nothing was recorded.
func (m *Machine) Advance(conv *domain.Conversation, text string) (Outcome, error) {
	if conv == nil {
		return Outcome{}, fmt.Errorf("conversation: nil conversation")
	}
	if conv.State.Terminal() {
		return Outcome{From: conv.State, To: conv.State}, ErrConversationClosed
	}
	text = strings.TrimSpace(text)
	if text == "" && !conv.State.CollectsDetails() {
		return Outcome{From: conv.State, To: conv.State}, ErrEmptyMessage
	}

	out := Outcome{From: conv.State}
	var err error
	switch conv.State {
	case domain.StateGreeting:
		err = m.greet(conv, text, &out)
	case domain.StateAwaitingPackage:
		err = m.selectPackage(conv, text, &out)
	case domain.StateAwaitingName:
		err = m.captureName(conv, text, &out)
	case domain.StateAwaitingPhone:
		err = m.capturePhone(conv, text, &out)
	default:
		err = fmt.Errorf("conversation: unknown state %q", conv.State)
	}
	if err != nil {
		return Outcome{From: out.From, To: out.From}, err
	}

	out.To = conv.State
	out.Appended = m.exchange(conv, text, out.Reply)
	return out, nil
}

// RecordExchange appends a user message and one bot reply without moving the
// conversation. Used when a downstream step rejects an otherwise valid input.
func (m *Machine) RecordExchange(conv *domain.Conversation, text, reply string) []domain.Message {
	return m.exchange(conv, strings.TrimSpace(text), reply)
}

// Abandon closes a non-terminal conversation.
func (m *Machine) Abandon(conv *domain.Conversation, reason string) error {
	if conv.State.Terminal() {
		return ErrConversationClosed
	}
	if err := m.transition(conv, domain.StateAbandoned, nil); err != nil {
		return err
	}
	conv.AbandonReason = strings.TrimSpace(reason)
	return nil
}

func (m *Machine) greet(conv *domain.Conversation, text string, out *Outcome) error {
	if err := m.transition(conv, domain.StateAwaitingPackage, out); err != nil {
		return err
	}
	if pkg, ok := m.resolveOpening(text); ok {
		return m.choose(conv, pkg, out)
	}
	out.Reply = m.prompts.ChoosePackage()
	return nil
}

func (m *Machine) selectPackage(conv *domain.Conversation, text string, out *Outcome) error {
	if entry, ok := m.catalog.Match(text); ok {
		return m.choose(conv, entry.Package(), out)
	}
	return m.choose(conv, domain.NewCustom(domain.CustomPackageID(m.now().UnixMilli()), text), out)
}

func (m *Machine) choose(conv *domain.Conversation, pkg domain.Package, out *Outcome) error {
	if err := m.transition(conv, domain.StateAwaitingName, out); err != nil {
		return err
	}
	conv.PendingPackage = &pkg
	out.Reply = m.prompts.AskName(pkg)
	return nil
}

func (m *Machine) captureName(conv *domain.Conversation, text string, out *Outcome) error {
	name, err := NormalizeName(text)
	if err != nil {
		out.Code = domain.CodeInvalidName
		out.Reply = m.prompts.InvalidName()
		return nil
	}
	if err := m.transition(conv, domain.StateAwaitingPhone, out); err != nil {
		return err
	}
	conv.Visitor.Name = &name
	out.Reply = m.prompts.AskPhone(name)
	return nil
}

func (m *Machine) capturePhone(conv *domain.Conversation, text string, out *Outcome) error {
	phone, err := NormalizePhone(text)
	if err != nil {
		out.Code = domain.CodeInvalidPhone
		out.Reply = m.prompts.InvalidPhone()
		return nil
	}
	if conv.Visitor.Name == nil || conv.PendingPackage == nil {
		return fmt.Errorf("conversation: %s reached without name or package", domain.StateAwaitingPhone)
	}
	if err := m.transition(conv, domain.StateCompleted, out); err != nil {
		return err
	}
	conv.Visitor.Phone = &phone
	out.Reply = m.prompts.Completed(*conv.Visitor.Name, phone, *conv.PendingPackage)
	return nil
}

// resolveOpening decides whether the first message already names a package.
// Catalog matches win; otherwise an explicit custom/package request is taken
// as a custom package described by the message itself.
func (m *Machine) resolveOpening(text string) (domain.Package, bool) {
	if entry, ok := m.catalog.Match(text); ok {
		return entry.Package(), true
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "custom") || strings.Contains(lower, "package") {
		return domain.NewCustom(domain.CustomPackageID(m.now().UnixMilli()), text), true
	}
	return domain.Package{}, false
}

func (m *Machine) transition(conv *domain.Conversation, to domain.State, out *Outcome) error {
	if !CanTransition(conv.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, conv.State, to)
	}
	conv.State = to
	conv.UpdatedAt = m.now()
	if out != nil {
		out.Path = append(out.Path, to)
	}
	return nil
}

func (m *Machine) exchange(conv *domain.Conversation, text, reply string) []domain.Message {
	now := m.now()
	msgs := []domain.Message{
		{Sender: domain.SenderUser, Text: text, Timestamp: now},
		{Sender: domain.SenderBot, Text: reply, Timestamp: now},
	}
	conv.Messages = append(conv.Messages, msgs...)
	conv.UpdatedAt = now
	return msgs
}
