package intake

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/studio-booking-platform/internal/bookings"
	"github.com/wolfman30/studio-booking-platform/internal/conversation"
	"github.com/wolfman30/studio-booking-platform/internal/dedup"
	"github.com/wolfman30/studio-booking-platform/internal/domain"
	"github.com/wolfman30/studio-booking-platform/internal/fingerprint"
)

// PackageInput is the package as sent by the booking form.
type PackageInput struct {
	ID          string
	Name        string
	Description string
	Price       *float64
}

// DirectBooking is a booking submitted by form rather than chat.
type DirectBooking struct {
	SessionID   string
	Fingerprint string
	Signals     *fingerprint.Signals
	Name        string
	Phone       string
	Package     PackageInput
}

// SubmitBooking validates and records a form booking under the same device
// cooldown as the chat flow.
func (s *Service) SubmitBooking(ctx context.Context, in DirectBooking) (*domain.Booking, error) {
	ctx, span := intakeTracer.Start(ctx, "intake.direct_booking")
	defer span.End()

	name, err := conversation.NormalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	phone, err := conversation.NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	pkg, err := s.resolvePackage(in.Package)
	if err != nil {
		return nil, err
	}
	sessionID := strings.TrimSpace(in.SessionID)
	fp := fingerprint.Resolve(in.Fingerprint, in.Signals, sessionID)
	if fp == "" {
		return nil, ErrMissingFingerprint
	}

	id := s.builder.NewID()
	if err := s.guard.Acquire(ctx, fp, id); err != nil {
		if errors.Is(err, dedup.ErrDuplicateBooking) {
			s.metrics.ObserveDuplicate()
		}
		return nil, err
	}
	bk := bookings.FromDetails(bookings.Details{
		ID:          id,
		SessionID:   sessionID,
		Fingerprint: fp,
		Name:        name,
		Phone:       phone,
		Package:     pkg,
	}, s.now())
	if err := s.bookings.Record(ctx, bk); err != nil {
		s.release(ctx, fp, id)
		span.RecordError(err)
		return nil, err
	}
	s.announce(ctx, bk, SourceDirect)
	return bk, nil
}

// resolvePackage trusts the catalog over client-sent names and prices.
func (s *Service) resolvePackage(in PackageInput) (domain.Package, error) {
	id := strings.TrimSpace(in.ID)
	if entry, ok := s.catalog.Lookup(id); ok {
		return entry.Package(), nil
	}
	if domain.IsCustomPackageID(id) || strings.EqualFold(id, "custom") {
		desc := strings.TrimSpace(in.Description)
		if desc == "" {
			desc = strings.TrimSpace(in.Name)
		}
		if desc == "" {
			return domain.Package{}, ErrInvalidPackage
		}
		if !domain.IsCustomPackageID(id) {
			id = domain.CustomPackageID(s.now().UnixMilli())
		}
		return domain.NewCustom(id, desc), nil
	}
	if entry, ok := s.catalog.Lookup(in.Name); ok && id == "" {
		return entry.Package(), nil
	}
	return domain.Package{}, ErrInvalidPackage
}

// ListBookings returns live bookings for the admin table.
func (s *Service) ListBookings(ctx context.Context, filter bookings.ListFilter) ([]*domain.Booking, int, error) {
	return s.bookings.List(ctx, filter)
}

// GetBooking returns one live booking.
func (s *Service) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.Get(ctx, id)
}

// DeleteBooking soft-deletes a booking.
func (s *Service) DeleteBooking(ctx context.Context, id string) error {
	return s.bookings.Delete(ctx, id)
}

// UpdateBooking applies an admin change. Only the status is mirrored into the
// snapshot held by the originating conversation; the rest of a completed
// conversation stays as it was.
func (s *Service) UpdateBooking(ctx context.Context, id string, upd bookings.Update) (*domain.Booking, error) {
	bk, err := s.bookings.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if bk.SessionID == "" {
		return bk, nil
	}
	_, err = s.mutate(ctx, bk.SessionID, func(conv *domain.Conversation) error {
		if conv.BookingID != bk.ID || conv.Booking == nil || conv.Booking.Status == bk.Status {
			return errSkipMirror
		}
		conv.Booking.Status = bk.Status
		conv.UpdatedAt = s.now()
		return nil
	})
	if err != nil && !errors.Is(err, errSkipMirror) && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("booking snapshot not mirrored", "booking_id", bk.ID, "session_id", bk.SessionID, "error", err)
	}
	return bk, nil
}

var errSkipMirror = errors.New("intake: conversation does not own booking")

// ListConversations is the admin listing.
func (s *Service) ListConversations(ctx context.Context, filter conversation.ListFilter) ([]*domain.Conversation, int, error) {
	return s.store.List(ctx, filter)
}

// GetConversationAdmin returns a conversation even when soft-deleted.
func (s *Service) GetConversationAdmin(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	conv, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, conversation.ErrNotFound) {
		return nil, ErrNotFound
	}
	return conv, err
}

// SetConversationState lets admins close a conversation. Only ABANDONED is
// accepted; every other move belongs to the visitor.
func (s *Service) SetConversationState(ctx context.Context, sessionID string, state domain.State, reason string) (*domain.Conversation, error) {
	if state != domain.StateAbandoned {
		return nil, ErrUnsupportedState
	}
	if reason == "" {
		reason = "closed by admin"
	}
	return s.Abandon(ctx, sessionID, reason)
}

// DeleteConversation soft-deletes a conversation.
func (s *Service) DeleteConversation(ctx context.Context, sessionID, reason string) error {
	_, err := s.mutate(ctx, sessionID, func(conv *domain.Conversation) error {
		now := s.now()
		conv.DeletedAt = &now
		conv.DeleteReason = strings.TrimSpace(reason)
		conv.UpdatedAt = now
		return nil
	})
	if err == nil {
		s.logger.Info("conversation deleted", "session_id", sessionID)
	}
	return err
}

// BulkItem is one per-id outcome.
type BulkItem struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BulkResult summarizes a bulk delete. It is always returned, even when
// every id failed.
type BulkResult struct {
	Results        []BulkItem `json:"results"`
	Errors         []BulkItem `json:"errors"`
	TotalProcessed int        `json:"totalProcessed"`
	SuccessCount   int        `json:"successCount"`
	ErrorCount     int        `json:"errorCount"`
}

// BulkDelete soft-deletes each id independently.
func (s *Service) BulkDelete(ctx context.Context, ids []string, reason string) BulkResult {
	res := BulkResult{Results: []BulkItem{}, Errors: []BulkItem{}}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		res.TotalProcessed++
		if err := s.DeleteConversation(ctx, id, reason); err != nil {
			res.ErrorCount++
			res.Errors = append(res.Errors, BulkItem{ID: id, Error: bulkError(err)})
			continue
		}
		res.SuccessCount++
		res.Results = append(res.Results, BulkItem{ID: id, Success: true})
	}
	return res
}

func bulkError(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrMissingSession):
		return "missing id"
	case errors.Is(err, conversation.ErrVersionConflict):
		return "concurrent update"
	default:
		return "internal error"
	}
}
