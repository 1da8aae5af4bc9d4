package bookings

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/studio-booking-platform/internal/domain"
	"github.com/wolfman30/studio-booking-platform/pkg/logging"
)

var bookingsTracer = otel.Tracer("studio.internal.bookings")

// ErrInvalidStatus rejects unknown booking statuses.
var ErrInvalidStatus = errors.New("bookings: invalid status")

// Service records bookings and applies admin follow-up changes.
type Service struct {
	repo   Repository
	logger *logging.Logger
	now    func() time.Time
}

// NewService constructs a bookings service.
func NewService(repo Repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Record persists a freshly built booking.
func (s *Service) Record(ctx context.Context, bk *domain.Booking) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.record")
	defer span.End()
	span.SetAttributes(
		attribute.String("studio.booking_id", bk.ID),
		attribute.String("studio.session_id", bk.SessionID),
		attribute.String("studio.package_id", bk.PackageID),
	)

	if err := s.repo.Create(ctx, bk); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("booking recorded", "booking_id", bk.ID, "session_id", bk.SessionID, "package_id", bk.PackageID)
	return nil
}

// Get returns a live booking.
func (s *Service) Get(ctx context.Context, id string) (*domain.Booking, error) {
	return s.repo.Get(ctx, id)
}

// List returns live bookings, newest first, with the total match count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*domain.Booking, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	return s.repo.List(ctx, filter)
}

// Update changes status and/or value.
func (s *Service) Update(ctx context.Context, id string, upd Update) (*domain.Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.update")
	defer span.End()
	span.SetAttributes(attribute.String("studio.booking_id", id))

	if upd.Status != nil && !upd.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	bk, err := s.repo.Update(ctx, id, upd, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("booking updated", "booking_id", id, "status", bk.Status)
	return bk, nil
}

// Delete soft-deletes a booking.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return err
	}
	s.logger.Info("booking deleted", "booking_id", id)
	return nil
}
