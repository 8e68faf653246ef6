package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/llmequeue/llmequeue/internal/api"
	apiMiddleware "github.com/llmequeue/llmequeue/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware. Everything except the health check sits behind the shared
// bearer token.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	openaiHandler := api.NewOpenAIHandler(
		app.engine,
		app.waiter,
		app.config.Queue,
		app.config.Models,
		app.logger,
	)
	taskHandler := api.NewTaskHandler(app.engine, app.logger)
	workerHandler := api.NewWorkerHandler(app.engine, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.config.Auth.Token)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		// OpenAI-compatible client endpoints
		r.Post("/v1/embeddings", openaiHandler.CreateEmbedding)
		r.Post("/v1/chat/completions", openaiHandler.CreateChatCompletion)

		// Task polling endpoints
		r.Get("/tasks/{id}", taskHandler.GetTask)
		r.Get("/tasks/{id}/result", taskHandler.GetTaskResult)

		// Worker endpoints
		r.Post("/worker/next", workerHandler.ClaimNext)
		r.Post("/worker/complete/{id}", workerHandler.Complete)
		r.Post("/worker/fail/{id}", workerHandler.Fail)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		if err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
