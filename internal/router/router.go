package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/taskstream/backend/api/handler"
)

type Handlers struct {
	Auth   *apiHandler.AuthHandler
	User   *apiHandler.UserHandler
	Task   *apiHandler.TaskHandler
	Stream *apiHandler.StreamHandler
	Health *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.POST("/api/v1/auth/refresh", handlers.Auth.Refresh)

	// User provisioning (admin only, enforced in the use case)
	r.GET("/api/v1/users/{id}", authMiddleware(handlers.User.Get))
	r.PUT("/api/v1/users/{id}", authMiddleware(handlers.User.Upsert))

	// Tasks; the static stats/bulk routes must be registered before {id}
	r.GET("/api/v1/tasks", authMiddleware(handlers.Task.List))
	r.POST("/api/v1/tasks", authMiddleware(handlers.Task.Create))
	r.GET("/api/v1/tasks/stats", authMiddleware(handlers.Task.Stats))
	r.POST("/api/v1/tasks/bulk/update", authMiddleware(handlers.Task.BulkUpdate))
	r.POST("/api/v1/tasks/bulk/delete", authMiddleware(handlers.Task.BulkDelete))
	r.GET("/api/v1/tasks/{id}", authMiddleware(handlers.Task.Get))
	r.PUT("/api/v1/tasks/{id}", authMiddleware(handlers.Task.Update))
	r.DELETE("/api/v1/tasks/{id}", authMiddleware(handlers.Task.Delete))
	r.POST("/api/v1/tasks/{id}/comments", authMiddleware(handlers.Task.AddComment))
	r.PUT("/api/v1/tasks/{id}/subtasks/{subtaskId}", authMiddleware(handlers.Task.UpdateSubtask))

	// Realtime stream
	r.GET("/api/v1/stream", authMiddleware(handlers.Stream.Connect))
	r.PUT("/api/v1/stream/{connId}/tasks/{taskId}", authMiddleware(handlers.Stream.JoinTask))
	r.DELETE("/api/v1/stream/{connId}/tasks/{taskId}", authMiddleware(handlers.Stream.LeaveTask))

	return r
}
