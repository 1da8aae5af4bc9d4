package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/studio-booking-platform/internal/bookings"
	"github.com/wolfman30/studio-booking-platform/internal/conversation"
	"github.com/wolfman30/studio-booking-platform/internal/dedup"
	"github.com/wolfman30/studio-booking-platform/internal/intake"
	"github.com/wolfman30/studio-booking-platform/internal/notify"
	"github.com/wolfman30/studio-booking-platform/pkg/logging"
)

type envelope struct {
	Success           bool            `json:"success"`
	Data              json.RawMessage `json:"data"`
	Code              string          `json:"code"`
	Message           string          `json:"message"`
	ExistingBookingID string          `json:"existingBookingId"`
	State             string          `json:"state"`
}

type noopNotifier struct{}

func (noopNotifier) Dispatch(context.Context, notify.BookingEvent) {}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := intake.NewService(intake.Deps{
		Store:    conversation.NewMemoryStore(),
		Guard:    dedup.NewMemoryGuard(dedup.Options{}),
		Bookings: bookings.NewService(bookings.NewMemoryRepository(), logging.Discard()),
		Locker:   intake.NewMemoryLocker(),
		Notifier: noopNotifier{},
		Logger:   logging.Discard(),
	})
	chat := NewChatHandler(svc, logging.Discard())
	convs := NewAdminConversationsHandler(svc, logging.Discard())
	bks := NewAdminBookingsHandler(svc, logging.Discard())

	r := chi.NewRouter()
	r.Post("/chat/messages", chat.PostMessage)
	r.Post("/chat/abandon", chat.Abandon)
	r.Get("/chat/conversations/{sessionId}", chat.GetConversation)
	r.Post("/chat/fingerprint", chat.Fingerprint)
	r.Post("/chat/booking", chat.SubmitBooking)
	r.Get("/chat/check-booking", chat.CheckBooking)
	r.Put("/chat/booking/{bookingId}", bks.UpdateBookingStatus)
	r.Get("/admin/conversations", convs.ListConversations)
	r.Get("/admin/conversations/{id}", convs.GetConversation)
	r.Put("/admin/conversations/{id}", convs.UpdateConversation)
	r.Delete("/admin/conversations/{id}", convs.DeleteConversation)
	r.Post("/admin/conversations/bulk-delete", convs.BulkDelete)
	r.Get("/admin/bookings", bks.ListBookings)
	r.Get("/admin/bookings/{id}", bks.GetBooking)
	r.Put("/admin/bookings/{id}", bks.UpdateBooking)
	r.Delete("/admin/bookings/{id}", bks.DeleteBooking)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func send(t *testing.T, h http.Handler, session, fp, text string) (int, envelope) {
	return do(t, h, http.MethodPost, "/chat/messages", map[string]string{
		"sessionId": session, "deviceFingerprint": fp, "text": text,
	})
}

const testDevice = "fp_0123456789abcdef"

func chatBooking(t *testing.T, h http.Handler, session string) string {
	t.Helper()
	_, _ = send(t, h, session, testDevice, "I want a custom package")
	_, _ = send(t, h, session, testDevice, "Asha")
	code, env := send(t, h, session, testDevice, "9876543210")
	require.Equal(t, http.StatusOK, code)
	var resp messageResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Equal(t, "COMPLETED", string(resp.State))
	require.NotEmpty(t, resp.BookingID)
	return resp.BookingID
}

func TestPostMessageCompletesBooking(t *testing.T) {
	h := newTestRouter(t)
	id := chatBooking(t, h, "s1")

	code, env := do(t, h, http.MethodGet, "/chat/conversations/s1", nil)
	require.Equal(t, http.StatusOK, code)
	var tr transcriptResponse
	require.NoError(t, json.Unmarshal(env.Data, &tr))
	assert.Equal(t, id, tr.BookingID)
	assert.Len(t, tr.Messages, 6)
}

func TestPostMessageDuplicateReturnsConflict(t *testing.T) {
	h := newTestRouter(t)
	first := chatBooking(t, h, "s1")

	_, _ = send(t, h, "s2", testDevice, "custom package please")
	_, _ = send(t, h, "s2", testDevice, "Asha")
	code, env := send(t, h, "s2", testDevice, "9876543210")
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.Success)
	assert.Equal(t, "DUPLICATE_BOOKING", env.Code)
	assert.Equal(t, first, env.ExistingBookingID)
	assert.Equal(t, "AWAITING_PHONE", env.State)
}

func TestPostMessageValidationErrors(t *testing.T) {
	h := newTestRouter(t)

	code, env := send(t, h, "s1", testDevice, "   ")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "EMPTY_MESSAGE", env.Code)

	_, _ = send(t, h, "s-blank", testDevice, "custom package please")
	code, env = send(t, h, "s-blank", testDevice, "  ")
	assert.Equal(t, http.StatusOK, code)
	var reply struct {
		State string `json:"state"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	assert.Equal(t, "AWAITING_NAME", reply.State)
	assert.Equal(t, "INVALID_NAME", reply.Code)

	code, env = send(t, h, "", testDevice, "hi")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_REQUEST", env.Code)

	req := httptest.NewRequest(http.MethodPost, "/chat/messages", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAbandonThenMessageIsClosed(t *testing.T) {
	h := newTestRouter(t)
	_, _ = send(t, h, "s1", testDevice, "hello")

	code, _ := do(t, h, http.MethodPost, "/chat/abandon", map[string]string{"sessionId": "s1"})
	require.Equal(t, http.StatusOK, code)

	code, env := send(t, h, "s1", testDevice, "hello again")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONVERSATION_CLOSED", env.Code)
}

func TestGetConversationNotFound(t *testing.T) {
	h := newTestRouter(t)
	code, env := do(t, h, http.MethodGet, "/chat/conversations/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestFingerprintEndpoint(t *testing.T) {
	h := newTestRouter(t)

	code, env := do(t, h, http.MethodPost, "/chat/fingerprint", map[string]any{
		"signals": map[string]any{"userAgent": "Mozilla/5.0", "language": "en-IN", "timezone": "Asia/Kolkata"},
	})
	require.Equal(t, http.StatusOK, code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.NotEmpty(t, out["fingerprint"])

	code, env = do(t, h, http.MethodPost, "/chat/fingerprint", map[string]any{"signals": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_REQUEST", env.Code)
}

func TestSubmitBookingAndCheck(t *testing.T) {
	h := newTestRouter(t)

	code, env := do(t, h, http.MethodGet, "/chat/check-booking?fingerprint="+testDevice, nil)
	require.Equal(t, http.StatusOK, code)
	var check checkResponse
	require.NoError(t, json.Unmarshal(env.Data, &check))
	assert.False(t, check.Exists)

	code, env = do(t, h, http.MethodPost, "/chat/booking", map[string]any{
		"name":              "Asha Rao",
		"phone":             "+91 98765 43210",
		"deviceFingerprint": testDevice,
		"package":           map[string]any{"id": "maternity"},
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	var created map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created["bookingId"])

	code, env = do(t, h, http.MethodGet, "/chat/check-booking?fingerprint="+testDevice, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &check))
	assert.True(t, check.Exists)
	assert.Equal(t, created["bookingId"], check.BookingID)
	require.NotNil(t, check.AgeSeconds)

	code, env = do(t, h, http.MethodPost, "/chat/booking", map[string]any{
		"name":              "Asha Rao",
		"phone":             "9876543210",
		"deviceFingerprint": testDevice,
		"package":           map[string]any{"id": "birthday"},
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "DUPLICATE_BOOKING", env.Code)
	assert.Equal(t, created["bookingId"], env.ExistingBookingID)
}

func TestSubmitBookingValidation(t *testing.T) {
	h := newTestRouter(t)
	cases := []struct {
		name string
		body map[string]any
		code string
	}{
		{"bad phone", map[string]any{"name": "Asha", "phone": "123", "deviceFingerprint": testDevice, "package": map[string]any{"id": "birthday"}}, "INVALID_PHONE"},
		{"bad name", map[string]any{"name": "", "phone": "9876543210", "deviceFingerprint": testDevice, "package": map[string]any{"id": "birthday"}}, "INVALID_NAME"},
		{"no package", map[string]any{"name": "Asha", "phone": "9876543210", "deviceFingerprint": testDevice, "package": map[string]any{}}, "INVALID_PACKAGE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := do(t, h, http.MethodPost, "/chat/booking", tc.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tc.code, env.Code)
		})
	}
}

func TestAdminBookingsLifecycle(t *testing.T) {
	h := newTestRouter(t)
	id := chatBooking(t, h, "s1")

	code, env := do(t, h, http.MethodGet, "/admin/bookings", nil)
	require.Equal(t, http.StatusOK, code)
	var list bookingsListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 1, list.Total)

	code, env = do(t, h, http.MethodPut, "/chat/booking/"+id, map[string]any{"status": "confirmed", "value": 30000})
	require.Equal(t, http.StatusOK, code, env.Message)
	var bk map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &bk))
	assert.Equal(t, "confirmed", bk["status"])
	assert.NotEqualValues(t, 30000, bk["value"])

	code, _ = do(t, h, http.MethodPut, "/chat/booking/"+id, map[string]any{"value": 30000})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, h, http.MethodPut, "/admin/bookings/"+id, map[string]any{"value": 30000})
	require.Equal(t, http.StatusOK, code, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &bk))
	assert.EqualValues(t, 30000, bk["value"])

	code, env = do(t, h, http.MethodPut, "/admin/bookings/"+id, map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_STATUS", env.Code)

	code, _ = do(t, h, http.MethodPut, "/admin/bookings/"+id, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, http.MethodPut, "/admin/bookings/"+id, map[string]any{"value": -1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, http.MethodDelete, "/admin/bookings/"+id, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, h, http.MethodGet, "/admin/bookings/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Code)

	code, env = do(t, h, http.MethodGet, "/admin/bookings?status=nope", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_STATUS", env.Code)
}

func TestAdminConversations(t *testing.T) {
	h := newTestRouter(t)
	_, _ = send(t, h, "s1", testDevice, "hello")
	_, _ = send(t, h, "s2", "fp_ffffffffffffffff", "hi there")

	code, env := do(t, h, http.MethodGet, "/admin/conversations?state=awaiting_package", nil)
	require.Equal(t, http.StatusOK, code)
	var list ConversationsListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 2, list.Total)

	code, env = do(t, h, http.MethodGet, "/admin/conversations?state=weird", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_STATUS", env.Code)

	code, env = do(t, h, http.MethodPut, "/admin/conversations/s1", map[string]string{"state": "COMPLETED"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_STATUS", env.Code)

	code, _ = do(t, h, http.MethodPut, "/admin/conversations/s1", map[string]string{"state": "ABANDONED"})
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, h, http.MethodDelete, "/admin/conversations/s2?reason=spam", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, h, http.MethodGet, "/admin/conversations", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 1, list.Total)

	code, env = do(t, h, http.MethodGet, "/admin/conversations?includeDeleted=true", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 2, list.Total)
}

func TestAdminBulkDelete(t *testing.T) {
	h := newTestRouter(t)
	_, _ = send(t, h, "s1", testDevice, "hello")

	code, env := do(t, h, http.MethodPost, "/admin/conversations/bulk-delete", map[string]any{"ids": []string{"s1", "missing", "s1"}})
	require.Equal(t, http.StatusOK, code)
	var res intake.BulkResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 2, res.TotalProcessed)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.ErrorCount)

	code, _ = do(t, h, http.MethodPost, "/admin/conversations/bulk-delete", map[string]any{"ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthHandler(t *testing.T) {
	ok := NewHealthHandler(map[string]Pinger{"redis": func(context.Context) error { return nil }})
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	bad := NewHealthHandler(map[string]Pinger{"db": func(context.Context) error { return context.DeadlineExceeded }})
	rec = httptest.NewRecorder()
	bad.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db":"down"`)
}
