/*
relay.go - Pass-through endpoints for the external HeatX services

PURPOSE:
  The dashboard talks to one origin. These handlers forward prediction,
  dataset analysis, CSV upload, assistant chat and carbon-credit ledger
  calls to the configured backends and normalize their failures.

ERROR MAPPING:
  backend.ErrInvalidRequest      -> 400 (caught before any network call)
  backend.ErrRejected            -> 422 with the service's detail
  backend.ErrServiceUnavailable  -> 502
  backend.ErrBadResponse         -> 502
  service not configured         -> 503

CHAT FALLBACK:
  A failed chat call still answers 200 with the fixed apology reply, so
  the conversation panel always has something to show.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heatx/energy-engine/backend"
)

// ChatFallbackReply replaces the assistant's answer when it cannot be reached.
const ChatFallbackReply = "Couldn't connect to the AI server."

const maxUploadBytes = 32 << 20

// Analyze relays a dataset to the analysis service.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	if h.Services.Analysis == nil {
		writeUnconfigured(w, "analysis")
		return
	}

	var req AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	task, err := backend.ParseTask(req.Task)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task", err)
		return
	}

	result, err := h.Services.Analysis.Analyze(r.Context(), backend.Dataset(req.Dataset), task)
	if err != nil {
		h.writeServiceError(w, "Analysis failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Predict relays sensor readings to the prediction model.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if h.Services.Analysis == nil {
		writeUnconfigured(w, "analysis")
		return
	}

	var in backend.PredictInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	pred, err := h.Services.Analysis.Predict(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, "Prediction failed", err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

// Upload relays a CSV file (multipart field "file") for parsing.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.Services.Analysis == nil {
		writeUnconfigured(w, "analysis")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "A file field is required", err)
		return
	}
	defer file.Close()

	result, err := h.Services.Analysis.Upload(r.Context(), header.Filename, file)
	if err != nil {
		h.writeServiceError(w, "Upload failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Chat relays a message to the assistant.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if h.Services.Chat == nil {
		writeJSON(w, http.StatusOK, ChatResponse{Reply: ChatFallbackReply, Degraded: true})
		return
	}

	reply, err := h.Services.Chat.Send(r.Context(), req.Message)
	switch {
	case errors.Is(err, backend.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "Message is required", err)
	case err != nil:
		h.log.Warn().Err(err).Msg("Chat relay failed, sending fallback reply")
		writeJSON(w, http.StatusOK, ChatResponse{Reply: ChatFallbackReply, Degraded: true})
	default:
		writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
	}
}

// =============================================================================
// CARBON CREDIT LEDGER
// =============================================================================

// ListOrgs returns the organizations registered on the ledger.
func (h *Handler) ListOrgs(w http.ResponseWriter, r *http.Request) {
	if h.Services.Ledger == nil {
		writeUnconfigured(w, "ledger")
		return
	}
	orgs, err := h.Services.Ledger.Orgs(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to load organizations", err)
		return
	}
	if orgs == nil {
		orgs = []backend.Org{}
	}
	writeJSON(w, http.StatusOK, orgs)
}

// GetLedger returns the chain of blocks.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	if h.Services.Ledger == nil {
		writeUnconfigured(w, "ledger")
		return
	}
	blocks, err := h.Services.Ledger.Blocks(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to load ledger", err)
		return
	}
	if blocks == nil {
		blocks = []backend.Block{}
	}
	writeJSON(w, http.StatusOK, LedgerDTO{Blocks: blocks})
}

// LedgerAction signs and submits a mint, transfer or retire.
func (h *Handler) LedgerAction(w http.ResponseWriter, r *http.Request) {
	if h.Services.Ledger == nil {
		writeUnconfigured(w, "ledger")
		return
	}

	action, err := backend.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown ledger action", err)
		return
	}

	var req backend.ActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.Action = action

	result, err := h.Services.Ledger.Execute(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "Ledger action failed", err)
		return
	}

	h.log.Info().
		Str("action", string(action)).
		Str("org_id", req.OrgID).
		Msg("Ledger action submitted")
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	var se *backend.ServiceError
	switch {
	case errors.Is(err, backend.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, backend.ErrRejected) && errors.As(err, &se):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: message, Details: se.Detail})
	default:
		h.log.Error().Err(err).Msg(message)
		writeError(w, http.StatusBadGateway, message, err)
	}
}

func writeUnconfigured(w http.ResponseWriter, service string) {
	writeError(w, http.StatusServiceUnavailable, "The "+service+" service is not configured", nil)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
