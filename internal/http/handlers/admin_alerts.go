package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/studio-booking-platform/internal/http/middleware"
	"github.com/wolfman30/studio-booking-platform/internal/notify"
	"github.com/wolfman30/studio-booking-platform/pkg/logging"
)

const (
	alertWriteWait  = 10 * time.Second
	alertPongWait   = 60 * time.Second
	alertPingPeriod = alertPongWait * 9 / 10
)

// AdminAlertsHandler serves the in-app alert history and live stream.
type AdminAlertsHandler struct {
	store    notify.AlertStore
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewAdminAlertsHandler accepts stream connections from allowedOrigins
// ("*" allows any).
func NewAdminAlertsHandler(store notify.AlertStore, allowedOrigins []string, logger *logging.Logger) *AdminAlertsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAlertsHandler{
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(middleware.OriginMatcher(allowedOrigins)),
		},
		logger: logger,
	}
}

// checkOrigin admits same-origin requests without an Origin header.
func checkOrigin(allowed func(string) bool) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed(origin)
	}
}

// ListAlerts handles GET /admin/alerts?limit=.
func (h *AdminAlertsHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > notify.DefaultAlertHistory {
		limit = 50
	}
	alerts, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// Stream handles GET /admin/alerts/stream, pushing each new alert as a JSON
// text frame until the client goes away.
func (h *AdminAlertsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("alert stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	alerts, unsubscribe, err := h.store.Subscribe(ctx)
	if err != nil {
		h.logger.Error("alert subscribe failed", "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"))
		return
	}
	defer unsubscribe()

	// Reader: handles pongs and notices disconnects.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(alertPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(alertPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(alertPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case alert, ok := <-alerts:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(alertWriteWait))
			if err := conn.WriteJSON(alert); err != nil {
				h.logger.Debug("alert stream write failed", "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(alertWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
