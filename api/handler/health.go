package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskstream/backend/api/transport"
	"github.com/taskstream/backend/internal/infrastructure/monitor"
	"github.com/taskstream/backend/pkg/httpcontext"
	"github.com/taskstream/backend/realtime"
)

type HealthHandler struct {
	baseHandler
	monitor *monitor.Monitor
	hub     *realtime.Hub
}

func NewHealthHandler(mon *monitor.Monitor, hub *realtime.Hub, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		hub:         hub,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	connections := 0
	if h.hub != nil {
		connections = h.hub.Connections()
	}
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"services": map[string]interface{}{
			"postgresql": status.PostgreSQL,
			"redis":      status.Redis,
			"inbox": map[string]interface{}{
				"online": status.Inbox,
				"size":   status.InboxSize,
			},
		},
		"realtime": map[string]interface{}{
			"connections": connections,
		},
	}

	if status.PostgreSQL && status.Redis {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "dependencies unhealthy", payload))
}
