package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pixelpop/server/internal/domain"
)

type generationRequest struct {
	Prompt string        `json:"prompt"`
	Params domain.Params `json:"params"`
}

type generationEnqueued struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// CreateGeneration validates the prompt, enqueues a PENDING job, and answers
// 202 with the id the client polls on.
func (a *App) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(r)
	if !ok {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req generationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	jobID, err := a.Queue.Enqueue(r.Context(), req.Prompt, req.Params, userID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPrompt) {
			a.error(w, http.StatusBadRequest, "bad_request", "prompt must not be empty")
			return
		}
		a.Logger.Error().Err(err).Msg("api: enqueue failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}

	a.json(w, http.StatusAccepted, generationEnqueued{
		JobID:  jobID,
		Status: string(domain.JobStatusPending),
	})
}

// GetGeneration returns the latest stored state of the job.
func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	job, err := a.Queue.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("api: load job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	a.json(w, http.StatusOK, job)
}

func (a *App) currentUserID(r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
