// internal/app/features/jobs/handler.go

// Package jobs serves the caller's upload job history. Outcomes beyond
// "queued" arrive by email from the records platform, so the history shows
// what was dispatched, not live progress.
package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	jobstore "github.com/vespahq/uploadhub/internal/app/store/jobs"
	"github.com/vespahq/uploadhub/internal/app/system/auth"
	"github.com/vespahq/uploadhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// JobLister is the slice of the job store this feature reads.
type JobLister interface {
	ListByUser(ctx context.Context, userID string, limit int64) ([]jobstore.Record, error)
}

// Handler provides the job-history endpoints.
type Handler struct {
	Jobs JobLister
	Log  *zap.Logger
}

// List handles GET /jobs?limit=N, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	var limit int64
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	records, err := h.Jobs.ListByUser(ctx, user.ID, limit)
	if err != nil {
		h.Log.Error("could not list jobs",
			zap.String("user_id", user.ID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load your job history")
		return
	}
	if records == nil {
		records = []jobstore.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"jobs": records})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
