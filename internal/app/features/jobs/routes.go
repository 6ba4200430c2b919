// internal/app/features/jobs/routes.go
package jobs

import (
	"github.com/go-chi/chi/v5"
	"github.com/vespahq/uploadhub/internal/app/system/auth"
)

// Routes mounts the job-history endpoints.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/", h.List)
	})

	return r
}
