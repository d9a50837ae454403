package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"pixelpop/server/internal/http/handlers"
	"pixelpop/server/internal/infra"
	"pixelpop/server/internal/middleware"
)

func NewRouter(app *handlers.App, logger infra.Logger) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(),
	)

	r.Get("/healthz", app.Health)

	r.Route("/api/generation", func(r chi.Router) {
		r.Post("/", app.CreateGeneration)
		r.Get("/{job_id}", app.GetGeneration)
	})

	return r
}
