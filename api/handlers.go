/*
handlers.go - HTTP request handlers for the HeatX dashboard API

PURPOSE:
  Implements HTTP handlers for all API endpoints. Handlers are responsible
  for request parsing, validation, calling the allocation engine through a
  session, and formatting responses.

HANDLER PATTERN:
  Each handler follows this pattern:
  1. Parse URL params and request body
  2. Validate input
  3. Look up the session / call the store or a backend service
  4. Transform result to DTO
  5. Write JSON response

ERROR HANDLING:
  - 400 Bad Request:  Invalid input (unknown sector, malformed JSON, bad format)
  - 404 Not Found:    Session, report or method doesn't exist
  - 409 Conflict:     Finalize attempted while the total is not 100%
  - 502 Bad Gateway:  A backend service failed (see relay.go)
  - 500 Internal:     Archive or encoding failures

ENDPOINTS:
  Allocations: /api/allocations/*   (sessions.go, stream.go)
  Reports:     /api/reports/*
  Methods:     /api/methods/*
  Presets:     /api/presets
  Relays:      /api/analyze, /api/predict, /api/upload, /api/chat, /api/ccts/* (relay.go)

SEE ALSO:
  - server.go: Route definitions
  - dto.go: Request/response types
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/heatx/energy-engine/allocation"
	"github.com/heatx/energy-engine/backend"
	"github.com/heatx/energy-engine/export"
	"github.com/heatx/energy-engine/methods"
)

// DashboardPath is where the client goes after a successful finalize.
const DashboardPath = "/dashboard"

const defaultReportListLimit = 50

// AnalysisService is the prediction and dataset-analysis backend.
type AnalysisService interface {
	Analyze(ctx context.Context, data backend.Dataset, task backend.Task) (backend.AnalysisResult, error)
	Predict(ctx context.Context, in backend.PredictInput) (*backend.Prediction, error)
	Upload(ctx context.Context, filename string, file io.Reader) (*backend.UploadResult, error)
}

// LedgerService is the carbon-credit ledger backend.
type LedgerService interface {
	Orgs(ctx context.Context) ([]backend.Org, error)
	Blocks(ctx context.Context) ([]backend.Block, error)
	Execute(ctx context.Context, req backend.ActionRequest) (json.RawMessage, error)
}

// ChatService is the assistant backend.
type ChatService interface {
	Send(ctx context.Context, message string) (string, error)
}

// Services bundles the optional backends. A nil service answers 503.
type Services struct {
	Analysis AnalysisService
	Ledger   LedgerService
	Chat     ChatService
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Sessions       *SessionRegistry
	Reports        allocation.ReportStore
	Services       Services
	Clock          allocation.Clock
	AllowedOrigins []string

	// BillExporter, when set, also receives every archived bill.
	BillExporter allocation.Exporter

	log zerolog.Logger
}

// NewHandler creates a new handler. Sessions share clock and log.
func NewHandler(reports allocation.ReportStore, services Services, clock allocation.Clock, log zerolog.Logger) *Handler {
	if clock == nil {
		clock = allocation.SystemClock
	}
	return &Handler{
		Sessions: NewSessionRegistry(clock, allocation.WithLogger(log)),
		Reports:  reports,
		Services: services,
		Clock:    clock,
		log:      log,
	}
}

// =============================================================================
// ALLOCATION SESSION HANDLERS
// =============================================================================

// CreateAllocation opens a new session.
func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req CreateAllocationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	start := allocation.DefaultWeights
	switch {
	case req.Weights != nil:
		start = req.Weights.weights()
	case req.Preset != "":
		p, err := findPreset(req.Preset)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Unknown preset", err)
			return
		}
		start = p.Weights
	}

	sess := h.Sessions.Create(start)
	h.log.Info().Str("session_id", sess.ID).Msg("Allocation session opened")

	w.Header().Set("Location", "/api/allocations/"+sess.ID)
	writeJSON(w, http.StatusCreated, toAllocationDTO(sess.ID, sess.State()))
}

// GetAllocation returns a session's current state.
func (h *Handler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(sess.ID, sess.State()))
}

// SetWeights moves one or more sliders.
func (h *Handler) SetWeights(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SetWeightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updates, err := req.updates()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid weights", err)
		return
	}

	st, err := applyUpdates(sess, updates)
	if err != nil {
		if status := statusFor(err); status == http.StatusBadRequest {
			writeError(w, status, "Invalid weights", err)
		} else {
			writeError(w, status, "Failed to update weights", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(sess.ID, st))
}

// ResetAllocation restores the default 40/35/25 split.
func (h *Handler) ResetAllocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var st allocation.State
	_ = sess.Do(func(e *allocation.Engine) error {
		e.Reset()
		st = e.State()
		return nil
	})
	writeJSON(w, http.StatusOK, toAllocationDTO(sess.ID, st))
}

// FinalizeAllocation issues the bill if and only if the total is 100%.
// The bill is archived and the response tells the client to go to the
// dashboard.
func (h *Handler) FinalizeAllocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	arch := &archiver{
		ctx:       r.Context(),
		store:     h.Reports,
		id:        uuid.NewString(),
		sessionID: sess.ID,
		clock:     h.Clock,
		next:      h.BillExporter,
	}
	nav := &redirect{}

	var st allocation.State
	err := sess.Do(func(e *allocation.Engine) error {
		st = e.State()
		_, err := e.Commit(arch, nav)
		return err
	})

	var nb *allocation.NotBalancedError
	switch {
	case errors.As(err, &nb):
		writeJSON(w, http.StatusConflict, NotBalancedResponse{
			Error:      nb.Error(),
			Allocation: toAllocationDTO(sess.ID, st),
		})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to finalize allocation", err)
		return
	case arch.err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to archive report", arch.err)
		return
	}

	h.log.Info().
		Str("session_id", sess.ID).
		Str("report_id", arch.saved.ID).
		Msg("Allocation finalized")

	writeJSON(w, http.StatusCreated, FinalizeResponse{
		Report: toReportDTO(arch.saved),
		Next:   nav.next,
	})
}

// DeleteAllocation discards a session.
func (h *Handler) DeleteAllocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.Sessions.Delete(id) {
		writeError(w, http.StatusNotFound, "Allocation session not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := h.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Allocation session not found", err)
		return nil, false
	}
	return sess, true
}

// updates validates every sector before anything is applied, so a request
// naming an unknown sector changes nothing.
func (req SetWeightsRequest) updates() ([]sectorValue, error) {
	var out []sectorValue
	if req.Sector != "" || req.Value != nil {
		if req.Value == nil {
			return nil, errors.New("value is required with sector")
		}
		s, err := allocation.ParseSector(req.Sector)
		if err != nil {
			return nil, err
		}
		out = append(out, sectorValue{s, *req.Value})
	}

	parsed := make(map[allocation.Sector]int, len(req.Weights))
	for k, v := range req.Weights {
		s, err := allocation.ParseSector(k)
		if err != nil {
			return nil, err
		}
		parsed[s] = v
	}
	for _, s := range allocation.Sectors {
		if v, ok := parsed[s]; ok {
			out = append(out, sectorValue{s, v})
		}
	}

	if len(out) == 0 {
		return nil, errors.New("no weights given")
	}
	return out, nil
}

type sectorValue struct {
	sector allocation.Sector
	value  int
}

func applyUpdates(sess *Session, updates []sectorValue) (allocation.State, error) {
	var st allocation.State
	err := sess.Do(func(e *allocation.Engine) error {
		for _, u := range updates {
			if err := e.SetWeight(u.sector, u.value); err != nil {
				return err
			}
		}
		st = e.State()
		return nil
	})
	return st, err
}

// archiver stores the bill handed over by Engine.Commit.
type archiver struct {
	ctx       context.Context
	store     allocation.ReportStore
	id        string
	sessionID string
	clock     allocation.Clock
	next      allocation.Exporter

	saved allocation.ArchivedReport
	err   error
}

func (a *archiver) ExportReport(r allocation.Report) {
	a.saved = allocation.ArchivedReport{
		ID:        a.id,
		SessionID: a.sessionID,
		Report:    r,
		CreatedAt: a.clock.Now(),
	}
	a.err = a.store.SaveReport(a.ctx, a.saved)
	if a.err == nil && a.next != nil {
		a.next.ExportReport(r)
	}
}

// redirect records the post-finalize destination.
type redirect struct {
	next string
}

func (n *redirect) Proceed() { n.next = DashboardPath }

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// ListReports returns archived bills, newest first. ?limit=0 returns all.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit := defaultReportListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	reports, err := h.Reports.ListReports(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list reports", err)
		return
	}

	dtos := make([]ReportDTO, 0, len(reports))
	for _, rep := range reports {
		dtos = append(dtos, toReportDTO(rep))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetReport returns one archived bill.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(*rep))
}

// DownloadReport serves the bill as an attachment in the requested format.
func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unsupported format", err)
		return
	}

	rep, ok := h.report(w, r)
	if !ok {
		return
	}

	body, err := export.Render(rep.Report, format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render report", err)
		return
	}

	writeAttachment(w, format.ContentType(), export.Filename(rep.Report, format), body)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) (*allocation.ArchivedReport, bool) {
	rep, err := h.Reports.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if status := statusFor(err); status == http.StatusNotFound {
			writeError(w, status, "Report not found", err)
		} else {
			writeError(w, status, "Failed to load report", err)
		}
		return nil, false
	}
	return rep, true
}

// =============================================================================
// METHOD HANDLERS
// =============================================================================

// ListMethods returns the conversion method catalog.
func (h *Handler) ListMethods(w http.ResponseWriter, r *http.Request) {
	all := methods.All()
	dtos := make([]MethodDTO, 0, len(all))
	for _, m := range all {
		dtos = append(dtos, toMethodDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecommendMethod picks a method for ?at= (ambient/exhaust temperature, C).
func (h *Handler) RecommendMethod(w http.ResponseWriter, r *http.Request) {
	at, err := strconv.ParseFloat(r.URL.Query().Get("at"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Query parameter 'at' must be a number", err)
		return
	}
	writeJSON(w, http.StatusOK, RecommendationDTO{
		TemperatureC: at,
		Method:       toMethodDTO(methods.Recommend(at)),
	})
}

// DownloadMethod serves the plain-text summary card of a method.
func (h *Handler) DownloadMethod(w http.ResponseWriter, r *http.Request) {
	m, err := methods.Lookup(chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Method not found", err)
		return
	}
	body := methods.Summary(m, h.Clock.Now())
	writeAttachment(w, export.FormatText.ContentType(), methods.Filename(m), []byte(body))
}

// =============================================================================
// PRESET & HEALTH HANDLERS
// =============================================================================

// ListPresets returns the starting allocations.
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	all := Presets()
	dtos := make([]PresetDTO, 0, len(all))
	for _, p := range all {
		dtos = append(dtos, toPresetDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Pinger is implemented by report archives backed by a live connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthPingTimeout = 2 * time.Second

// Health reports liveness. When the archive can be pinged, an unreachable
// database turns the answer into 503 "degraded".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthDTO{Status: "ok", Sessions: h.Sessions.Len()}

	p, ok := h.Reports.(Pinger)
	if !ok {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Report archive unreachable")
		resp.Status = "degraded"
		resp.Database = "unreachable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Database = "ok"
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

// statusFor maps engine and archive errors to an HTTP status.
func statusFor(err error) int {
	switch {
	case allocation.IsClientError(err):
		return http.StatusBadRequest
	case allocation.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
