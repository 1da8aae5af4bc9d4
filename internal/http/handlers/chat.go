package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/studio-booking-platform/internal/dedup"
	"github.com/wolfman30/studio-booking-platform/internal/domain"
	"github.com/wolfman30/studio-booking-platform/internal/fingerprint"
	"github.com/wolfman30/studio-booking-platform/internal/http/middleware"
	"github.com/wolfman30/studio-booking-platform/internal/intake"
	"github.com/wolfman30/studio-booking-platform/pkg/logging"
)

// ChatService is the visitor-facing part of intake.Service.
type ChatService interface {
	HandleMessage(ctx context.Context, in intake.MessageInput) (*intake.Reply, error)
	Abandon(ctx context.Context, sessionID, reason string) (*domain.Conversation, error)
	GetConversation(ctx context.Context, sessionID string) (*domain.Conversation, error)
	SubmitBooking(ctx context.Context, in intake.DirectBooking) (*domain.Booking, error)
	CheckBooking(ctx context.Context, fp string) (dedup.Existing, error)
	ComputeFingerprint(signals fingerprint.Signals) string
}

// ChatHandler serves the public chat widget API.
type ChatHandler struct {
	svc    ChatService
	logger *logging.Logger
}

func NewChatHandler(svc ChatService, logger *logging.Logger) *ChatHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{svc: svc, logger: logger}
}

type messageRequest struct {
	SessionID         string               `json:"sessionId"`
	Text              string               `json:"text"`
	DeviceFingerprint string               `json:"deviceFingerprint"`
	Signals           *fingerprint.Signals `json:"signals"`
}

type messageResponse struct {
	SessionID string           `json:"sessionId"`
	State     domain.State     `json:"state"`
	Reply     string           `json:"reply"`
	Code      domain.Code      `json:"code,omitempty"`
	BookingID string           `json:"bookingId,omitempty"`
	Messages  []domain.Message `json:"messages"`
}

// PostMessage handles POST /chat/messages.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	reply, err := h.svc.HandleMessage(r.Context(), intake.MessageInput{
		SessionID:   req.SessionID,
		Text:        req.Text,
		Fingerprint: firstNonEmpty(req.DeviceFingerprint, r.Header.Get(middleware.FingerprintHeader)),
		Signals:     req.Signals,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if reply.Code == domain.CodeDuplicateBooking {
		writeFailure(w, http.StatusConflict, domain.CodeDuplicateBooking, reply.Reply, map[string]any{
			"existingBookingId": reply.ExistingBookingID,
			"state":             reply.State,
			"reply":             reply.Reply,
		})
		return
	}
	writeSuccess(w, http.StatusOK, messageResponse{
		SessionID: reply.SessionID,
		State:     reply.State,
		Reply:     reply.Reply,
		Code:      reply.Code,
		BookingID: reply.BookingID,
		Messages:  reply.Messages,
	})
}

type abandonRequest struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}

// Abandon handles POST /chat/abandon.
func (h *ChatHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	var req abandonRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	conv, err := h.svc.Abandon(r.Context(), req.SessionID, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"sessionId": conv.SessionID, "state": conv.State})
}

type transcriptResponse struct {
	SessionID string           `json:"sessionId"`
	State     domain.State     `json:"state"`
	BookingID string           `json:"bookingId,omitempty"`
	Messages  []domain.Message `json:"messages"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// GetConversation handles GET /chat/conversations/{sessionId}.
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.svc.GetConversation(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, transcriptResponse{
		SessionID: conv.SessionID,
		State:     conv.State,
		BookingID: conv.BookingID,
		Messages:  conv.Messages,
		UpdatedAt: conv.UpdatedAt,
	})
}

type fingerprintRequest struct {
	Signals fingerprint.Signals `json:"signals"`
}

// Fingerprint handles POST /chat/fingerprint.
func (h *ChatHandler) Fingerprint(w http.ResponseWriter, r *http.Request) {
	var req fingerprintRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Signals.Empty() {
		h.fail(w, r, fmt.Errorf("%w: signals required", errBadRequest))
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"fingerprint": h.svc.ComputeFingerprint(req.Signals)})
}

type bookingPackage struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
}

type bookingRequest struct {
	Name              string               `json:"name"`
	Phone             string               `json:"phone"`
	Package           bookingPackage       `json:"package"`
	SessionID         string               `json:"sessionId"`
	DeviceFingerprint string               `json:"deviceFingerprint"`
	Signals           *fingerprint.Signals `json:"signals"`
}

// SubmitBooking handles POST /chat/booking.
func (h *ChatHandler) SubmitBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	bk, err := h.svc.SubmitBooking(r.Context(), intake.DirectBooking{
		SessionID:   req.SessionID,
		Fingerprint: firstNonEmpty(req.DeviceFingerprint, r.Header.Get(middleware.FingerprintHeader)),
		Signals:     req.Signals,
		Name:        req.Name,
		Phone:       req.Phone,
		Package: intake.PackageInput{
			ID:          req.Package.ID,
			Name:        req.Package.Name,
			Description: req.Package.Description,
			Price:       req.Package.Price,
		},
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{
		"bookingId": bk.ID,
		"message":   "Thank you! Your booking request has been received. Our team will contact you shortly.",
	})
}

type checkResponse struct {
	Exists     bool   `json:"exists"`
	BookingID  string `json:"bookingId,omitempty"`
	AgeSeconds *int64 `json:"ageSeconds,omitempty"`
}

// CheckBooking handles GET /chat/check-booking.
func (h *ChatHandler) CheckBooking(w http.ResponseWriter, r *http.Request) {
	fp := firstNonEmpty(r.URL.Query().Get("fingerprint"), r.Header.Get(middleware.FingerprintHeader))
	existing, err := h.svc.CheckBooking(r.Context(), fp)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := checkResponse{Exists: existing.Exists}
	if existing.Exists {
		age := int64(existing.Age / time.Second)
		resp.BookingID = existing.BookingID
		resp.AgeSeconds = &age
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *ChatHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, h.logger, err)
}

// respondError logs and renders err. Duplicates carry the blocking id.
func respondError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	status, code, msg := codeFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "code", code, "error", err)
	}
	var extra map[string]any
	var dup *dedup.DuplicateError
	if errors.As(err, &dup) {
		extra = map[string]any{"existingBookingId": dup.Existing.BookingID}
	}
	writeFailure(w, status, code, msg, extra)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
