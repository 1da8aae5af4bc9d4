package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/studio-booking-platform/internal/conversation"
	"github.com/wolfman30/studio-booking-platform/internal/domain"
	"github.com/wolfman30/studio-booking-platform/internal/intake"
	"github.com/wolfman30/studio-booking-platform/pkg/logging"
)

// ConversationAdmin is the admin conversation surface of intake.Service.
type ConversationAdmin interface {
	ListConversations(ctx context.Context, filter conversation.ListFilter) ([]*domain.Conversation, int, error)
	GetConversationAdmin(ctx context.Context, sessionID string) (*domain.Conversation, error)
	SetConversationState(ctx context.Context, sessionID string, state domain.State, reason string) (*domain.Conversation, error)
	DeleteConversation(ctx context.Context, sessionID, reason string) error
	BulkDelete(ctx context.Context, ids []string, reason string) intake.BulkResult
}

// AdminConversationsHandler serves /admin/conversations.
type AdminConversationsHandler struct {
	svc    ConversationAdmin
	logger *logging.Logger
}

func NewAdminConversationsHandler(svc ConversationAdmin, logger *logging.Logger) *AdminConversationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminConversationsHandler{svc: svc, logger: logger}
}

// ConversationListItem is one row of the admin table.
type ConversationListItem struct {
	SessionID    string          `json:"sessionId"`
	State        domain.State    `json:"state"`
	Name         *string         `json:"name"`
	Phone        *string         `json:"phone"`
	Fingerprint  string          `json:"fingerprint"`
	Package      *string         `json:"package"`
	BookingID    string          `json:"bookingId,omitempty"`
	MessageCount int             `json:"messageCount"`
	LastMessage  *domain.Message `json:"lastMessage,omitempty"`
	CreatedAt    string          `json:"createdAt"`
	UpdatedAt    string          `json:"updatedAt"`
	Deleted      bool            `json:"deleted"`
}

// ConversationsListResponse is a page of conversations.
type ConversationsListResponse struct {
	Conversations []ConversationListItem `json:"conversations"`
	Total         int                    `json:"total"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
}

func toListItem(conv *domain.Conversation) ConversationListItem {
	item := ConversationListItem{
		SessionID:    conv.SessionID,
		State:        conv.State,
		Name:         conv.Visitor.Name,
		Phone:        conv.Visitor.Phone,
		Fingerprint:  conv.Visitor.Fingerprint,
		BookingID:    conv.BookingID,
		MessageCount: len(conv.Messages),
		CreatedAt:    conv.CreatedAt.Format(timeLayout),
		UpdatedAt:    conv.UpdatedAt.Format(timeLayout),
		Deleted:      conv.Deleted(),
	}
	if conv.PendingPackage != nil {
		name := conv.PendingPackage.DisplayName()
		item.Package = &name
	}
	if n := len(conv.Messages); n > 0 {
		last := conv.Messages[n-1]
		item.LastMessage = &last
	}
	return item
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// ListConversations handles GET /admin/conversations.
func (h *AdminConversationsHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := domain.State(strings.ToUpper(strings.TrimSpace(q.Get("state"))))
	if state != "" && !state.Valid() {
		writeFailure(w, http.StatusBadRequest, domain.CodeInvalidStatus, "unknown state", nil)
		return
	}
	limit, offset := pageParams(r)
	includeDeleted, _ := strconv.ParseBool(q.Get("includeDeleted"))

	convs, total, err := h.svc.ListConversations(r.Context(), conversation.ListFilter{
		State:          state,
		Fingerprint:    strings.TrimSpace(q.Get("fingerprint")),
		IncludeDeleted: includeDeleted,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	items := make([]ConversationListItem, 0, len(convs))
	for _, c := range convs {
		items = append(items, toListItem(c))
	}
	writeSuccess(w, http.StatusOK, ConversationsListResponse{Conversations: items, Total: total, Limit: limit, Offset: offset})
}

// GetConversation handles GET /admin/conversations/{id}.
func (h *AdminConversationsHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.svc.GetConversationAdmin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, conv)
}

type conversationUpdateRequest struct {
	State  domain.State `json:"state"`
	Reason string       `json:"reason"`
}

// UpdateConversation handles PUT /admin/conversations/{id}.
func (h *AdminConversationsHandler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	conv, err := h.svc.SetConversationState(r.Context(), chi.URLParam(r, "id"), req.State, req.Reason)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, conv)
}

// DeleteConversation handles DELETE /admin/conversations/{id}?reason=.
func (h *AdminConversationsHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteConversation(r.Context(), id, r.URL.Query().Get("reason")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"sessionId": id, "deleted": true})
}

type bulkDeleteRequest struct {
	IDs    []string `json:"ids"`
	Reason string   `json:"reason"`
}

// BulkDelete handles POST /admin/conversations/bulk-delete. Per-id failures
// never fail the request.
func (h *AdminConversationsHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if len(req.IDs) == 0 {
		writeFailure(w, http.StatusBadRequest, domain.CodeInvalidRequest, "ids required", nil)
		return
	}
	res := h.svc.BulkDelete(r.Context(), req.IDs, req.Reason)
	h.logger.Info("bulk delete processed", "total", res.TotalProcessed, "success", res.SuccessCount, "errors", res.ErrorCount)
	writeSuccess(w, http.StatusOK, res)
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 50
	}
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
