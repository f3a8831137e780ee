package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/pkg/httpcontext"
	"github.com/taskstream/backend/realtime"
	taskUC "github.com/taskstream/backend/usecase/task"
)

// StreamHandler bridges the channel registry onto a server-sent-events
// endpoint. One HTTP request maps to one hub connection for its lifetime.
type StreamHandler struct {
	baseHandler
	hub       *realtime.Hub
	tasks     *taskUC.UseCase
	keepalive time.Duration
}

func NewStreamHandler(hub *realtime.Hub, tasks *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger, keepalive time.Duration) *StreamHandler {
	if keepalive <= 0 {
		keepalive = 25 * time.Second
	}
	return &StreamHandler{
		baseHandler: newBaseHandler(adapter, logger),
		hub:         hub,
		tasks:       tasks,
		keepalive:   keepalive,
	}
}

// @Summary Open an event stream
// @Tags stream
// @Router /api/v1/stream [get]
func (h *StreamHandler) Connect(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}

	conn := h.hub.Connect(actor)

	// optional initial task-channel joins, gated by read access
	if tasks := string(ctx.QueryArgs().Peek("tasks")); tasks != "" {
		stdCtx, cancel := h.requestContext(ctx)
		for _, taskID := range strings.Split(tasks, ",") {
			taskID = strings.TrimSpace(taskID)
			if taskID == "" {
				continue
			}
			if _, err := h.tasks.Get(stdCtx, actor, taskID); err != nil {
				h.logger.Debug("skipping stream join",
					zap.String("task_id", taskID),
					zap.String("actor_id", actor.ID),
					zap.Error(err))
				continue
			}
			h.hub.JoinTask(conn, taskID)
		}
		cancel()
	}

	ctx.Response.Header.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")

	keepalive := h.keepalive
	hub := h.hub
	logger := h.logger

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer hub.Disconnect(conn)

		// the client needs the connection id to join/leave channels later
		if err := writeSSE(w, "connected", map[string]string{"connection_id": conn.ID}); err != nil {
			return
		}

		ticker := time.NewTicker(keepalive)
		defer ticker.Stop()

		for {
			select {
			case msg, open := <-conn.Events():
				if !open {
					return
				}
				if err := writeSSE(w, "event", msg); err != nil {
					logger.Debug("stream write failed, closing",
						zap.String("connection_id", conn.ID),
						zap.Error(err))
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}

// @Summary Join a task channel
// @Tags stream
// @Router /api/v1/stream/{connId}/tasks/{taskId} [put]
func (h *StreamHandler) JoinTask(ctx *fasthttp.RequestCtx) {
	actor, conn, taskID, ok := h.resolve(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	// joining requires read access to the task
	if _, err := h.tasks.Get(stdCtx, actor, taskID); err != nil {
		h.respondError(ctx, err)
		return
	}

	h.hub.JoinTask(conn, taskID)
	h.respondSuccess(ctx, http.StatusOK, nil)
}

// @Summary Leave a task channel
// @Tags stream
// @Router /api/v1/stream/{connId}/tasks/{taskId} [delete]
func (h *StreamHandler) LeaveTask(ctx *fasthttp.RequestCtx) {
	_, conn, taskID, ok := h.resolve(ctx)
	if !ok {
		return
	}
	h.hub.LeaveTask(conn, taskID)
	h.respondSuccess(ctx, http.StatusOK, nil)
}

func (h *StreamHandler) resolve(ctx *fasthttp.RequestCtx) (domain.Actor, *realtime.Connection, string, bool) {
	actor, ok := h.actor(ctx)
	if !ok {
		return domain.Actor{}, nil, "", false
	}
	connID, _ := ctx.UserValue("connId").(string)
	taskID, _ := ctx.UserValue("taskId").(string)

	conn, live := h.hub.Get(connID)
	if !live || conn.Actor.ID != actor.ID {
		h.respondError(ctx, domain.NewError(domain.ErrCodeNotFound, "connection not found"))
		return domain.Actor{}, nil, "", false
	}
	return actor, conn, taskID, true
}

func writeSSE(w *bufio.Writer, event string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body); err != nil {
		return err
	}
	return w.Flush()
}
