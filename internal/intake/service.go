// Package intake orchestrates a chat turn: it serializes work per session,
// advances the dialogue, reserves the device cooldown, records the booking,
// saves the transcript and fans notifications out.
package intake

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/studio-booking-platform/internal/bookings"
	"github.com/wolfman30/studio-booking-platform/internal/catalog"
	"github.com/wolfman30/studio-booking-platform/internal/conversation"
	"github.com/wolfman30/studio-booking-platform/internal/dedup"
	"github.com/wolfman30/studio-booking-platform/internal/domain"
	"github.com/wolfman30/studio-booking-platform/internal/fingerprint"
	"github.com/wolfman30/studio-booking-platform/internal/notify"
	"github.com/wolfman30/studio-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/studio-booking-platform/pkg/logging"
)

var intakeTracer = otel.Tracer("studio.internal.intake")

var (
	// ErrMissingSession rejects requests without a session id.
	ErrMissingSession = errors.New("intake: session id required")
	// ErrMissingFingerprint rejects direct bookings with no way to identify the device.
	ErrMissingFingerprint = errors.New("intake: device fingerprint required")
	// ErrInvalidPackage rejects direct bookings naming no known or custom package.
	ErrInvalidPackage = errors.New("intake: invalid package")
	// ErrNotFound covers unknown and soft-deleted conversations.
	ErrNotFound = errors.New("intake: conversation not found")
	// ErrUnsupportedState rejects admin state changes other than abandonment.
	ErrUnsupportedState = errors.New("intake: only ABANDONED can be set")
)

// Booking entry points, used as the metrics source label.
const (
	SourceChat   = "chat"
	SourceDirect = "direct"
)

// Notifier is the fan-out sink. *notify.Dispatcher implements it.
type Notifier interface {
	Dispatch(ctx context.Context, evt notify.BookingEvent)
}

// Deps wires the service. Store, Guard, Bookings and Locker are required.
type Deps struct {
	Machine  *conversation.Machine
	Catalog  *catalog.Catalog
	Store    conversation.Store
	Guard    dedup.Guard
	Builder  *bookings.Builder
	Bookings *bookings.Service
	Locker   SessionLocker
	Notifier Notifier
	Metrics  *metrics.BookingMetrics
	Logger   *logging.Logger
	Now      func() time.Time
}

// Service is the single entry point for chat and admin operations.
type Service struct {
	machine  *conversation.Machine
	catalog  *catalog.Catalog
	store    conversation.Store
	guard    dedup.Guard
	builder  *bookings.Builder
	bookings *bookings.Service
	locker   SessionLocker
	notifier Notifier
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	now      func() time.Time
}

func NewService(d Deps) *Service {
	if d.Store == nil || d.Guard == nil || d.Bookings == nil || d.Locker == nil {
		panic("intake: store, guard, bookings and locker are required")
	}
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Machine == nil {
		d.Machine = conversation.NewMachine(d.Catalog, conversation.WithClock(d.Now))
	}
	if d.Builder == nil {
		d.Builder = bookings.NewBuilder(bookings.WithBuilderClock(d.Now))
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	return &Service{
		machine:  d.Machine,
		catalog:  d.Catalog,
		store:    d.Store,
		guard:    d.Guard,
		builder:  d.Builder,
		bookings: d.Bookings,
		locker:   d.Locker,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		logger:   d.Logger,
		now:      d.Now,
	}
}

// MessageInput is one visitor chat message.
type MessageInput struct {
	SessionID   string
	Text        string
	Fingerprint string
	Signals     *fingerprint.Signals
}

// Reply is what the widget renders after a message.
type Reply struct {
	SessionID         string
	State             domain.State
	Reply             string
	Code              domain.Code
	BookingID         string
	ExistingBookingID string
	Messages          []domain.Message
}

// HandleMessage applies one visitor message. Validation problems come back
// as Reply.Code with a re-prompt; a cooldown hit comes back with
// CodeDuplicateBooking and the existing booking id. Returned errors mean the
// message was not recorded.
func (s *Service) HandleMessage(ctx context.Context, in MessageInput) (*Reply, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	ctx, span := intakeTracer.Start(ctx, "intake.message")
	defer span.End()
	span.SetAttributes(attribute.String("studio.session_id", sessionID))

	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	conv, created, err := s.loadOrStart(ctx, sessionID, in)
	if err != nil {
		return nil, err
	}

	work := conv.Clone()
	out, err := s.machine.Advance(work, in.Text)
	if err != nil {
		return nil, err
	}
	appended := out.Appended
	reply := &Reply{SessionID: sessionID, State: work.State, Reply: out.Reply, Code: out.Code}

	var recorded *domain.Booking
	if out.Completed() {
		bk, err := s.commitBooking(ctx, work)
		var dup *dedup.DuplicateError
		switch {
		case errors.As(err, &dup):
			s.metrics.ObserveDuplicate()
			s.logger.Info("duplicate booking blocked", "session_id", sessionID,
				"fingerprint", work.Visitor.Fingerprint, "existing_booking_id", dup.Existing.BookingID)
			work = conv.Clone()
			text := s.machine.Prompts().Duplicate(dup.Existing.BookingID)
			appended = s.machine.RecordExchange(work, in.Text, text)
			reply = &Reply{
				SessionID:         sessionID,
				State:             work.State,
				Reply:             text,
				Code:              domain.CodeDuplicateBooking,
				ExistingBookingID: dup.Existing.BookingID,
			}
		case err != nil:
			span.RecordError(err)
			return nil, err
		default:
			recorded = bk
			work.BookingID = bk.ID
			work.Booking = bk.Clone()
			reply.BookingID = bk.ID
		}
	}

	if err := s.save(ctx, work, appended, created); err != nil {
		if recorded != nil {
			s.rollbackBooking(ctx, recorded)
		}
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveTurn(string(work.State), string(reply.Code))
	if recorded != nil {
		s.announce(ctx, recorded, SourceChat)
	}
	reply.Messages = appended
	return reply, nil
}

func (s *Service) loadOrStart(ctx context.Context, sessionID string, in MessageInput) (*domain.Conversation, bool, error) {
	conv, err := s.store.Get(ctx, sessionID)
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		fp := fingerprint.Resolve(in.Fingerprint, in.Signals, sessionID)
		return domain.NewConversation(sessionID, fp, s.now()), true, nil
	case err != nil:
		return nil, false, err
	}
	if conv.Deleted() {
		return nil, false, conversation.ErrConversationClosed
	}
	if conv.Visitor.Fingerprint == "" {
		conv.Visitor.Fingerprint = fingerprint.Resolve(in.Fingerprint, in.Signals, sessionID)
	}
	return conv, false, nil
}

func (s *Service) save(ctx context.Context, conv *domain.Conversation, appended []domain.Message, created bool) error {
	if created {
		if err := s.store.Create(ctx, conv); err != nil {
			if errors.Is(err, conversation.ErrAlreadyExists) {
				return conversation.ErrVersionConflict
			}
			return err
		}
		return nil
	}
	return s.store.Update(ctx, conv, appended)
}

// commitBooking reserves the device cooldown then records the booking,
// giving the reservation back if recording fails.
func (s *Service) commitBooking(ctx context.Context, conv *domain.Conversation) (*domain.Booking, error) {
	id := s.builder.NewID()
	fp := conv.Visitor.Fingerprint
	if err := s.guard.Acquire(ctx, fp, id); err != nil {
		return nil, err
	}
	bk, err := s.builder.Build(conv, id)
	if err != nil {
		s.logger.Error("completed conversation could not be built into a booking", "session_id", conv.SessionID, "error", err)
		s.release(ctx, fp, id)
		return nil, err
	}
	if err := s.bookings.Record(ctx, bk); err != nil {
		s.release(ctx, fp, id)
		return nil, err
	}
	return bk, nil
}

func (s *Service) release(ctx context.Context, fp, bookingID string) {
	if err := s.guard.Release(context.WithoutCancel(ctx), fp, bookingID); err != nil {
		s.logger.Error("failed to release dedup reservation", "fingerprint", fp, "booking_id", bookingID, "error", err)
	}
}

func (s *Service) rollbackBooking(ctx context.Context, bk *domain.Booking) {
	ctx = context.WithoutCancel(ctx)
	if err := s.bookings.Delete(ctx, bk.ID); err != nil {
		s.logger.Error("failed to roll back booking", "booking_id", bk.ID, "error", err)
	}
	s.release(ctx, bk.Fingerprint, bk.ID)
}

func (s *Service) announce(ctx context.Context, bk *domain.Booking, source string) {
	kind := string(domain.PackagePredefined)
	if domain.IsCustomPackageID(bk.PackageID) {
		kind = string(domain.PackageCustom)
	}
	s.metrics.ObserveBooking(kind, source)
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(ctx, notify.BookingEvent{
		Booking:    bk.Clone(),
		SessionID:  bk.SessionID,
		Source:     source,
		OccurredAt: bk.CreatedAt,
	})
}

// Abandon closes a live conversation. Already-terminal conversations
// report conversation.ErrConversationClosed.
func (s *Service) Abandon(ctx context.Context, sessionID, reason string) (*domain.Conversation, error) {
	return s.mutate(ctx, sessionID, func(conv *domain.Conversation) error {
		return s.machine.Abandon(conv, reason)
	})
}

// GetConversation returns a live conversation for widget reload.
func (s *Service) GetConversation(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	conv, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, conversation.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if conv.Deleted() {
		return nil, ErrNotFound
	}
	return conv, nil
}

// mutate applies fn to a locked, freshly loaded copy and saves it.
func (s *Service) mutate(ctx context.Context, sessionID string, fn func(*domain.Conversation) error) (*domain.Conversation, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrMissingSession
	}
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	conv, err := s.GetConversation(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(conv); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, conv, nil); err != nil {
		return nil, err
	}
	return conv, nil
}

// CheckBooking reports whether a device is inside its cooldown.
func (s *Service) CheckBooking(ctx context.Context, fp string) (dedup.Existing, error) {
	fp = strings.TrimSpace(fp)
	if fp == "" {
		return dedup.Existing{}, ErrMissingFingerprint
	}
	return s.guard.CheckExisting(ctx, fp)
}

// ComputeFingerprint derives a fingerprint from browser signals.
func (s *Service) ComputeFingerprint(signals fingerprint.Signals) string {
	return fingerprint.Compute(signals)
}
