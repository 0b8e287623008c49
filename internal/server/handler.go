package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/epireve/currency-api/internal/apperror"
	"github.com/epireve/currency-api/internal/run"
)

type RunService interface {
	Get(ctx context.Context, req run.GetRunRequest) (*run.Run, error)
	List(ctx context.Context, req run.ListRunsRequest) ([]run.Run, error)
}

type RateCounter interface {
	Count(ctx context.Context) (int64, error)
}

type healthResponse struct {
	Status      string `json:"status"`
	StoredRates int64  `json:"storedRates"`
}

type handler struct {
	runs   RunService
	rates  RateCounter
	logger *slog.Logger
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	n, err := h.rates.Count(r.Context())
	if err != nil {
		h.logger.Error("health check failed", "error", err)
		h.writeServiceError(w, apperror.New(apperror.Unavailable, "storage unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", StoredRates: n})
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	req := run.GetRunRequest{ID: chi.URLParam(r, "id")}

	rn, err := h.runs.Get(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rn)
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	req := run.ListRunsRequest{Status: run.Status(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		req.Limit = limit
	}

	runs, err := h.runs.List(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if runs == nil {
		runs = []run.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	var ae *apperror.AppError
	if errors.As(err, &ae) {
		writeError(w, ae.HTTPStatus(), ae.Message())
		return
	}
	h.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
