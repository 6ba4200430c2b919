// internal/app/features/login/handler.go

// Package login exchanges a records-platform account id for a signed-in
// session. The platform is the source of truth for who a user is; accounts
// are provisioned there asynchronously, so resolution retries with backoff
// before reporting the account as unavailable.
package login

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vespahq/uploadhub/internal/app/system/auth"
	"github.com/vespahq/uploadhub/internal/app/system/identity"
	"go.uber.org/zap"
)

// Handler provides the sign-in and sign-out endpoints.
type Handler struct {
	Sessions *auth.SessionManager
	Resolver *identity.Resolver
	Log      *zap.Logger
}

type loginRequest struct {
	AccountID string `json:"account_id"`
}

type loginResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id"`
}

// HandleLogin resolves the account and writes the session cookie. A null
// resolution means submission features stay disabled; the caller gets a
// corrective message rather than a half-authenticated session.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.AccountID = strings.TrimSpace(req.AccountID)
	if req.AccountID == "" {
		writeError(w, http.StatusUnprocessableEntity, "account_id is required")
		return
	}

	ident := h.Resolver.Resolve(r.Context(), req.AccountID)
	if ident == nil {
		writeError(w, http.StatusUnauthorized,
			"your account could not be confirmed with the records platform; try again shortly")
		return
	}

	if err := h.Sessions.SignIn(w, r, ident); err != nil {
		h.Log.Error("could not write session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not sign you in")
		return
	}

	h.Log.Info("signed in",
		zap.String("user_id", ident.ID),
		zap.String("role", ident.Role))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(loginResponse{
		ID:             ident.ID,
		Email:          ident.Email,
		Role:           ident.Role,
		OrganizationID: ident.OrganizationID,
	})
}

// HandleLogout expires the session cookie.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.SignOut(w, r); err != nil {
		h.Log.Error("could not clear session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not sign you out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
