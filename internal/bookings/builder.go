// Package bookings turns completed conversations into booking records and
// persists them for admin follow-up.
package bookings

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/studio-booking-platform/internal/domain"
)

// ErrIncompleteConversation means the conversation lacks name, phone or
// package, or has not reached COMPLETED. It is an internal fault.
var ErrIncompleteConversation = errors.New("bookings: conversation incomplete")

// Builder derives booking records. It performs no dedup of its own.
type Builder struct {
	now   func() time.Time
	newID func() string
}

// BuilderOption customises a Builder.
type BuilderOption func(*Builder)

// WithBuilderClock overrides the creation timestamp source.
func WithBuilderClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithIDGenerator overrides booking id generation.
func WithIDGenerator(gen func() string) BuilderOption {
	return func(b *Builder) {
		if gen != nil {
			b.newID = gen
		}
	}
}

// NewBuilder returns a builder using uuid ids and UTC wall time.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewID returns a fresh booking id. Callers reserve it with the dedup guard
// before building.
func (b *Builder) NewID() string { return b.newID() }

// Build produces a pending booking for a completed conversation.
func (b *Builder) Build(conv *domain.Conversation, bookingID string) (*domain.Booking, error) {
	if conv == nil || conv.State != domain.StateCompleted {
		return nil, ErrIncompleteConversation
	}
	if conv.Visitor.Name == nil || *conv.Visitor.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrIncompleteConversation)
	}
	if conv.Visitor.Phone == nil || *conv.Visitor.Phone == "" {
		return nil, fmt.Errorf("%w: missing phone", ErrIncompleteConversation)
	}
	if conv.PendingPackage == nil || conv.PendingPackage.Kind() == "" {
		return nil, fmt.Errorf("%w: missing package", ErrIncompleteConversation)
	}
	if bookingID == "" {
		bookingID = b.newID()
	}
	return FromDetails(Details{
		ID:          bookingID,
		SessionID:   conv.SessionID,
		Fingerprint: conv.Visitor.Fingerprint,
		Name:        *conv.Visitor.Name,
		Phone:       *conv.Visitor.Phone,
		Package:     *conv.PendingPackage,
	}, b.now()), nil
}

// Details are the validated inputs of a booking, whether they came from the
// chat flow or the direct booking endpoint.
type Details struct {
	ID          string
	SessionID   string
	Fingerprint string
	Name        string
	Phone       string
	Package     domain.Package
}

// FromDetails maps the package variant onto the record.
func FromDetails(d Details, now time.Time) *domain.Booking {
	bk := &domain.Booking{
		ID:          d.ID,
		SessionID:   d.SessionID,
		Fingerprint: d.Fingerprint,
		Name:        d.Name,
		Phone:       d.Phone,
		HasBooking:  true,
		PackageID:   d.Package.ID(),
		Status:      domain.BookingPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	switch {
	case d.Package.Predefined != nil:
		bk.Package = d.Package.Predefined.Name
		price := d.Package.Predefined.Price
		bk.Value = &price
	case d.Package.Custom != nil:
		bk.Package = domain.CustomPackageName
		desc := d.Package.Custom.Description
		bk.SpecialRequests = &desc
	}
	return bk
}
