package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/careops/claimrunner/pkg/results"
	"github.com/careops/claimrunner/pkg/submit"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListRuns returns all persisted runs, newest first.
func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to list runs")
		writeJSON(w, http.StatusInternalServerError, errorResponse{"listing runs"})

		return
	}

	writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns a single run by ID.
func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{"run not found"})

			return
		}

		s.log.WithError(err).Error("Failed to get run")
		writeJSON(w, http.StatusInternalServerError, errorResponse{"getting run"})

		return
	}

	writeJSON(w, http.StatusOK, run)
}

// handleListOutcomes returns a run's outcomes in execution order.
func (s *server) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{"run not found"})

			return
		}

		s.log.WithError(err).Error("Failed to get run")
		writeJSON(w, http.StatusInternalServerError, errorResponse{"getting run"})

		return
	}

	outcomes, err := s.store.ListOutcomes(r.Context(), id)
	if err != nil {
		s.log.WithError(err).Error("Failed to list outcomes")
		writeJSON(w, http.StatusInternalServerError, errorResponse{"listing outcomes"})

		return
	}

	writeJSON(w, http.StatusOK, outcomes)
}

// refreshResponse reports a refresh back to the caller.
type refreshResponse struct {
	ClaimID string `json:"claimId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Updated int64  `json:"updated"`
}

// handleRefreshClaim re-fetches the remote status for one claim and
// updates every stored outcome with that claim ID. The original request
// details are never touched.
func (s *server) handleRefreshClaim(w http.ResponseWriter, r *http.Request) {
	claimID := chi.URLParam(r, "claimId")
	hint := r.URL.Query().Get("hint")

	remote, err := s.status.FetchStatus(r.Context(), claimID, hint)
	if err != nil {
		if errors.Is(err, submit.ErrStatusNotFound) {
			writeJSON(w, http.StatusNotFound,
				errorResponse{"claim not found in system of record"})

			return
		}

		s.log.WithError(err).WithField("claim_id", claimID).
			Warn("Refresh fetch failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{"fetching claim status"})

		return
	}

	status, terminal := results.TerminalStatus(remote.Status)
	if !terminal {
		writeJSON(w, http.StatusConflict,
			errorResponse{"claim has no terminal status yet"})

		return
	}

	message := remote.Message
	if message == "" {
		message = remote.Status
	}

	updated, err := s.store.UpdateOutcomeStatus(
		r.Context(), claimID, string(status), message, time.Now().UTC(),
	)
	if err != nil {
		s.log.WithError(err).Error("Failed to update outcomes")
		writeJSON(w, http.StatusInternalServerError, errorResponse{"updating outcomes"})

		return
	}

	s.log.WithFields(logrus.Fields{
		"claim_id": claimID,
		"status":   status,
		"updated":  updated,
	}).Info("Claim refreshed via API")

	writeJSON(w, http.StatusOK, refreshResponse{
		ClaimID: claimID,
		Status:  string(status),
		Message: message,
		Updated: updated,
	})
}
