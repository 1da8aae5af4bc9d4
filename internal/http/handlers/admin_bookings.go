package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/studio-booking-platform/internal/bookings"
	"github.com/wolfman30/studio-booking-platform/internal/domain"
	"github.com/wolfman30/studio-booking-platform/pkg/logging"
)

// BookingAdmin is the admin booking surface of intake.Service.
type BookingAdmin interface {
	ListBookings(ctx context.Context, filter bookings.ListFilter) ([]*domain.Booking, int, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	UpdateBooking(ctx context.Context, id string, upd bookings.Update) (*domain.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// AdminBookingsHandler serves /admin/bookings and the booking status update.
type AdminBookingsHandler struct {
	svc    BookingAdmin
	logger *logging.Logger
}

func NewAdminBookingsHandler(svc BookingAdmin, logger *logging.Logger) *AdminBookingsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminBookingsHandler{svc: svc, logger: logger}
}

type bookingsListResponse struct {
	Bookings []*domain.Booking `json:"bookings"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// ListBookings handles GET /admin/bookings?status=.
func (h *AdminBookingsHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	status := domain.BookingStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
	list, total, err := h.svc.ListBookings(r.Context(), bookings.ListFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, bookingsListResponse{Bookings: list, Total: total, Limit: limit, Offset: offset})
}

// GetBooking handles GET /admin/bookings/{id}.
func (h *AdminBookingsHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bk, err := h.svc.GetBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, bk)
}

type bookingUpdateRequest struct {
	Status *domain.BookingStatus `json:"status"`
	Value  *float64              `json:"value"`
}

// UpdateBooking handles PUT /admin/bookings/{id}.
func (h *AdminBookingsHandler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if req.Status == nil && req.Value == nil {
		writeFailure(w, http.StatusBadRequest, domain.CodeInvalidRequest, "status or value required", nil)
		return
	}
	if req.Value != nil && *req.Value < 0 {
		writeFailure(w, http.StatusBadRequest, domain.CodeInvalidRequest, "value must not be negative", nil)
		return
	}
	h.applyUpdate(w, r, chi.URLParam(r, "id"), bookings.Update{Status: req.Status, Value: req.Value})
}

type bookingStatusRequest struct {
	Status *domain.BookingStatus `json:"status"`
}

// UpdateBookingStatus handles PUT /chat/booking/{bookingId}. Only the status
// can change through this route.
func (h *AdminBookingsHandler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	var req bookingStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if req.Status == nil {
		writeFailure(w, http.StatusBadRequest, domain.CodeInvalidRequest, "status required", nil)
		return
	}
	h.applyUpdate(w, r, chi.URLParam(r, "bookingId"), bookings.Update{Status: req.Status})
}

func (h *AdminBookingsHandler) applyUpdate(w http.ResponseWriter, r *http.Request, id string, upd bookings.Update) {
	bk, err := h.svc.UpdateBooking(r.Context(), id, upd)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, bk)
}

// DeleteBooking handles DELETE /admin/bookings/{id}.
func (h *AdminBookingsHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteBooking(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}
