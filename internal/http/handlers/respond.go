package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/wolfman30/studio-booking-platform/internal/bookings"
	"github.com/wolfman30/studio-booking-platform/internal/conversation"
	"github.com/wolfman30/studio-booking-platform/internal/dedup"
	"github.com/wolfman30/studio-booking-platform/internal/domain"
	"github.com/wolfman30/studio-booking-platform/internal/intake"
)

const maxBodyBytes = 64 << 10

var errBadRequest = errors.New("handlers: malformed request")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

// writeFailure renders the failure envelope; extra fields sit beside code.
func writeFailure(w http.ResponseWriter, status int, code domain.Code, message string, extra map[string]any) {
	body := map[string]any{"success": false, "code": code, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// codeFor maps service errors to HTTP status, API code and a user-facing
// message. Internal faults carry no detail.
func codeFor(err error) (int, domain.Code, string) {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, intake.ErrMissingSession),
		errors.Is(err, intake.ErrMissingFingerprint),
		errors.Is(err, dedup.ErrMissingFingerprint):
		return http.StatusBadRequest, domain.CodeInvalidRequest, err.Error()
	case errors.Is(err, conversation.ErrEmptyMessage):
		return http.StatusBadRequest, domain.CodeEmptyMessage, "Please type a message."
	case errors.Is(err, conversation.ErrInvalidName):
		return http.StatusBadRequest, domain.CodeInvalidName, "Please provide a valid name."
	case errors.Is(err, conversation.ErrInvalidPhone):
		return http.StatusBadRequest, domain.CodeInvalidPhone, "Please provide a valid 10-digit mobile number."
	case errors.Is(err, intake.ErrInvalidPackage):
		return http.StatusBadRequest, domain.CodeInvalidPackage, "Please choose a package or describe a custom one."
	case errors.Is(err, bookings.ErrInvalidStatus), errors.Is(err, intake.ErrUnsupportedState):
		return http.StatusBadRequest, domain.CodeInvalidStatus, err.Error()
	case errors.Is(err, intake.ErrNotFound),
		errors.Is(err, conversation.ErrNotFound),
		errors.Is(err, bookings.ErrNotFound):
		return http.StatusNotFound, domain.CodeNotFound, "not found"
	case errors.Is(err, conversation.ErrConversationClosed):
		return http.StatusConflict, domain.CodeConversationClosed, "This conversation has ended. Start a new chat to make another request."
	case errors.Is(err, dedup.ErrDuplicateBooking):
		return http.StatusConflict, domain.CodeDuplicateBooking, "A booking from this device was already received today."
	case errors.Is(err, conversation.ErrVersionConflict), errors.Is(err, intake.ErrLockTimeout):
		return http.StatusConflict, domain.CodeConcurrentUpdate, "Another message is being processed. Please retry."
	case errors.Is(err, bookings.ErrIncompleteConversation):
		return http.StatusInternalServerError, domain.CodeIncompleteConversation, "internal error"
	default:
		return http.StatusInternalServerError, domain.CodeInternal, "internal error"
	}
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
