// internal/app/features/wizard/routes.go
package wizard

import (
	"github.com/go-chi/chi/v5"
	"github.com/vespahq/uploadhub/internal/app/system/auth"
	"github.com/vespahq/uploadhub/internal/domain/models"
)

// Routes mounts the wizard endpoints under the caller's path.
// Typically: r.Mount("/wizard", wizard.Routes(handler, sessionMgr))
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Post("/", h.Start)
		pr.Get("/", h.State)
		pr.Post("/next", h.Next)
		pr.Post("/prev", h.Prev)
		pr.Post("/type", h.SelectType)
		pr.Post("/method", h.SelectMethod)
		pr.Post("/file", h.UploadFile)
		pr.Post("/validate", h.Validate)
		pr.Post("/process", h.Process)
		pr.Post("/manual", h.Manual)
		pr.Post("/reset", h.Reset)

		pr.Group(func(sr chi.Router) {
			sr.Use(sm.RequireRole(models.RoleSuper))
			sr.Post("/organization", h.SelectOrganization)
			sr.Get("/organizations", h.ListOrganizations)
		})
	})

	return r
}
