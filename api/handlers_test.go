/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Allocation session lifecycle (create, set weights, reset, delete)
- Finalize gating (409 unless balanced) and archiving
- Report downloads in every format
- Method catalog endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatx/energy-engine/allocation"
	"github.com/heatx/energy-engine/allocation/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var fixedNow = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	handler *Handler
	router  http.Handler
	reports *store.Memory
	clock   *testClock
}

func newTestEnv(t *testing.T, services Services) *testEnv {
	t.Helper()
	clock := &testClock{now: fixedNow}
	reports := store.NewMemory()
	h := NewHandler(reports, services, clock, zerolog.Nop())
	return &testEnv{handler: h, router: NewRouter(h), reports: reports, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) createSession(t *testing.T, body any) AllocationDTO {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/allocations", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[AllocationDTO](t, rec)
}

func intPtr(v int) *int { return &v }

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

func TestCreateAllocation_DefaultsToFortyThirtyFiveTwentyFive(t *testing.T) {
	// GIVEN: A fresh server
	env := newTestEnv(t, Services{})

	// WHEN: Opening a session with no body
	dto := env.createSession(t, nil)

	// THEN: The dashboard's initial state is balanced and finalizable
	assert.NotEmpty(t, dto.SessionID)
	assert.Equal(t, WeightsDTO{40, 35, 25}, dto.Raw)
	assert.Equal(t, WeightsDTO{40, 35, 25}, dto.Normalized)
	assert.Equal(t, 100, dto.Total)
	assert.Equal(t, "balanced", dto.Status)
	assert.True(t, dto.CanFinalize)
	assert.Empty(t, dto.Hint)
	require.Len(t, dto.Sectors, 3)
	assert.Equal(t, "Govt Projects", dto.Sectors[2].Label)
	assert.Equal(t, "#facc15", dto.Sectors[2].Color)
}

func TestCreateAllocation_FromPresetAndWeights(t *testing.T) {
	env := newTestEnv(t, Services{})

	fromPreset := env.createSession(t, CreateAllocationRequest{Preset: "over-committed"})
	assert.Equal(t, 150, fromPreset.Total)
	assert.Equal(t, "over_allocated", fromPreset.Status)
	assert.Equal(t, -50, fromPreset.Adjustment)

	fromWeights := env.createSession(t, CreateAllocationRequest{Weights: &WeightsDTO{10, 20, 300}})
	assert.Equal(t, WeightsDTO{10, 20, 100}, fromWeights.Raw, "out-of-range weights are clamped")

	rec := env.do(t, http.MethodPost, "/api/allocations", CreateAllocationRequest{Preset: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetWeights_OverAllocated(t *testing.T) {
	// GIVEN: A default session
	env := newTestEnv(t, Services{})
	id := env.createSession(t, nil).SessionID

	// WHEN: Moving all three sliders to 50
	rec := env.do(t, http.MethodPut, "/api/allocations/"+id+"/weights", SetWeightsRequest{
		Weights: map[string]int{"livelihoods": 50, "industries": 50, "govt_projects": 50},
	})

	// THEN: 150% allocated, chart shows 33/33/33, finalize locked
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto := decode[AllocationDTO](t, rec)
	assert.Equal(t, 150, dto.Total)
	assert.Equal(t, WeightsDTO{33, 33, 33}, dto.Normalized)
	assert.False(t, dto.CanFinalize)
	assert.Equal(t, "150% allocated, reduce by 50% to balance.", dto.Hint)
}

func TestSetWeights_SingleSlider(t *testing.T) {
	env := newTestEnv(t, Services{})
	id := env.createSession(t, nil).SessionID

	rec := env.do(t, http.MethodPut, "/api/allocations/"+id+"/weights", SetWeightsRequest{
		Sector: "Govt Projects", Value: intPtr(0),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto := decode[AllocationDTO](t, rec)
	assert.Equal(t, WeightsDTO{40, 35, 0}, dto.Raw)
	assert.Equal(t, "under_allocated", dto.Status)
	assert.Equal(t, "75% allocated, add 25% to balance.", dto.Hint)
}

func TestSetWeights_UnknownSectorChangesNothing(t *testing.T) {
	// GIVEN: A default session
	env := newTestEnv(t, Services{})
	id := env.createSession(t, nil).SessionID

	// WHEN: One valid and one unknown sector arrive together
	rec := env.do(t, http.MethodPut, "/api/allocations/"+id+"/weights", SetWeightsRequest{
		Weights: map[string]int{"industries": 90, "transport": 10},
	})

	// THEN: 400 and the session is untouched
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	got := decode[AllocationDTO](t, env.do(t, http.MethodGet, "/api/allocations/"+id, nil))
	assert.Equal(t, WeightsDTO{40, 35, 25}, got.Raw)
}

func TestSetWeights_EmptyRequest(t *testing.T) {
	env := newTestEnv(t, Services{})
	id := env.createSession(t, nil).SessionID

	rec := env.do(t, http.MethodPut, "/api/allocations/"+id+"/weights", SetWeightsRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/allocations/"+id+"/weights", SetWeightsRequest{Sector: "industries"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetAndDeleteAllocation(t *testing.T) {
	env := newTestEnv(t, Services{})
	id := env.createSession(t, CreateAllocationRequest{Preset: "under-committed"}).SessionID

	rec := env.do(t, http.MethodPost, "/api/allocations/"+id+"/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, WeightsDTO{40, 35, 25}, decode[AllocationDTO](t, rec).Raw)

	rec = env.do(t, http.MethodDelete, "/api/allocations/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/allocations/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/allocations/"+id, nil).Code)
}

func TestUnknownSession_NotFound(t *testing.T) {
	env := newTestEnv(t, Services{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/allocations/missing"},
		{http.MethodPut, "/api/allocations/missing/weights"},
		{http.MethodPost, "/api/allocations/missing/reset"},
		{http.MethodPost, "/api/allocations/missing/finalize"},
	} {
		rec := env.do(t, tc.method, tc.path, SetWeightsRequest{Sector: "industries", Value: intPtr(1)})
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.path)
	}
}

// =============================================================================
// FINALIZE
// =============================================================================

func TestFinalize_RejectedUnlessBalanced(t *testing.T) {
	// GIVEN: A session at 150%
	env := newTestEnv(t, Services{})
	id := env.createSession(t, CreateAllocationRequest{Preset: "over-committed"}).SessionID

	// WHEN: Finalizing
	rec := env.do(t, http.MethodPost, "/api/allocations/"+id+"/finalize", nil)

	// THEN: 409 with the current state, nothing archived
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[NotBalancedResponse](t, rec)
	assert.Contains(t, resp.Error, "150%")
	assert.Equal(t, "over_allocated", resp.Allocation.Status)

	n, err := env.reports.ListReports(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, n)
}

func TestFinalize_ArchivesBillAndRedirects(t *testing.T) {
	// GIVEN: A session moved to 50/30/20
	env := newTestEnv(t, Services{})
	id := env.createSession(t, nil).SessionID
	env.do(t, http.MethodPut, "/api/allocations/"+id+"/weights", SetWeightsRequest{
		Weights: map[string]int{"livelihoods": 50, "industries": 30, "govt_projects": 20},
	})

	// WHEN: Finalizing
	rec := env.do(t, http.MethodPost, "/api/allocations/"+id+"/finalize", nil)

	// THEN: The bill is archived with the clock's timestamp and the client
	// is sent to the dashboard
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[FinalizeResponse](t, rec)
	assert.Equal(t, "/dashboard", resp.Next)
	assert.Equal(t, id, resp.Report.SessionID)
	assert.Equal(t, WeightsDTO{50, 30, 20}, resp.Report.Allocation)
	assert.Equal(t, "2026-03-14T09:30:00Z", resp.Report.GeneratedAt)

	want := allocation.Report{
		Allocation:  allocation.Weights{Livelihoods: 50, Industries: 30, GovtProjects: 20},
		GeneratedAt: fixedNow,
	}
	assert.Equal(t, want.Body(), resp.Report.Body)

	stored, err := env.reports.GetReport(context.Background(), resp.Report.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Body(), stored.Report.Body())
}

func TestFinalize_SameAllocationSameBody(t *testing.T) {
	env := newTestEnv(t, Services{})

	var bodies []string
	for i := 0; i < 2; i++ {
		id := env.createSession(t, nil).SessionID
		rec := env.do(t, http.MethodPost, "/api/allocations/"+id+"/finalize", nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		bodies = append(bodies, decode[FinalizeResponse](t, rec).Report.Body)
	}
	assert.Equal(t, bodies[0], bodies[1])
}

// =============================================================================
// REPORTS
// =============================================================================

func finalizeDefault(t *testing.T, env *testEnv) string {
	t.Helper()
	id := env.createSession(t, nil).SessionID
	rec := env.do(t, http.MethodPost, "/api/allocations/"+id+"/finalize", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[FinalizeResponse](t, rec).Report.ID
}

func TestReports_ListAndGet(t *testing.T) {
	env := newTestEnv(t, Services{})
	first := finalizeDefault(t, env)
	env.clock.Advance(time.Minute)
	second := finalizeDefault(t, env)

	rec := env.do(t, http.MethodGet, "/api/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ReportDTO](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID, "newest first")
	assert.Equal(t, first, list[1].ID)

	limited := decode[[]ReportDTO](t, env.do(t, http.MethodGet, "/api/reports?limit=1", nil))
	assert.Len(t, limited, 1)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/reports?limit=x", nil).Code)

	got := decode[ReportDTO](t, env.do(t, http.MethodGet, "/api/reports/"+first, nil))
	assert.Equal(t, allocation.ReportTitle, got.Title)
	assert.Contains(t, got.Downloads, "csv")

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/reports/missing", nil).Code)
}

func TestReports_Download(t *testing.T) {
	env := newTestEnv(t, Services{})
	id := finalizeDefault(t, env)

	tests := []struct {
		format      string
		contentType string
		filename    string
		contains    string
	}{
		{"", "text/plain; charset=utf-8", "heatx-allocation-bill-20260314T093000Z.txt", "HEATX ENERGY ALLOCATION BILL"},
		{"csv", "text/csv; charset=utf-8", "heatx-allocation-bill-20260314T093000Z.csv", "sector,label,percent,generated_at"},
		{"json", "application/json", "heatx-allocation-bill-20260314T093000Z.json", `"total": 100`},
	}

	for _, tt := range tests {
		t.Run("format="+tt.format, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/reports/"+id+"/download?format="+tt.format, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, `attachment; filename="`+tt.filename+`"`, rec.Header().Get("Content-Disposition"))
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}

	rec := env.do(t, http.MethodGet, "/api/reports/"+id+"/download?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReports_TextDownloadMatchesBody(t *testing.T) {
	env := newTestEnv(t, Services{})
	id := finalizeDefault(t, env)

	rec := env.do(t, http.MethodGet, "/api/reports/"+id+"/download?format=text", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	want := allocation.Report{Allocation: allocation.DefaultWeights, GeneratedAt: fixedNow}.Body()
	assert.Equal(t, want, rec.Body.String())
}

// =============================================================================
// METHODS, PRESETS, HEALTH
// =============================================================================

func TestMethods(t *testing.T) {
	env := newTestEnv(t, Services{})

	list := decode[[]MethodDTO](t, env.do(t, http.MethodGet, "/api/methods", nil))
	require.Len(t, list, 3)

	rec := env.do(t, http.MethodGet, "/api/methods/recommend?at=500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "steam-turbine", decode[RecommendationDTO](t, rec).Method.Slug)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/methods/recommend?at=hot", nil).Code)

	rec = env.do(t, http.MethodGet, "/api/methods/kalina-cycle/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "HEATX METHOD RECOMMENDATION"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "heatx-method-kalina-cycle.txt")

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/methods/nope/download", nil).Code)
}

func TestPresetsAndHealth(t *testing.T) {
	env := newTestEnv(t, Services{})
	env.createSession(t, nil)

	presets := decode[[]PresetDTO](t, env.do(t, http.MethodGet, "/api/presets", nil))
	require.NotEmpty(t, presets)
	assert.Equal(t, "default", presets[0].ID)
	assert.True(t, presets[0].Balanced)

	health := decode[HealthDTO](t, env.do(t, http.MethodGet, "/api/health", nil))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Sessions)
}

// pingingStore is an in-memory archive with a controllable connection.
type pingingStore struct {
	*store.Memory
	err error
}

func (p *pingingStore) Ping(ctx context.Context) error { return p.err }

func TestHealth_PingsArchive(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantCode   int
		wantStatus string
		wantDB     string
	}{
		{"reachable", nil, http.StatusOK, "ok", "ok"},
		{"unreachable", errors.New("database is locked"), http.StatusServiceUnavailable, "degraded", "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN: An archive whose ping returns pingErr
			reports := &pingingStore{Memory: store.NewMemory(), err: tt.pingErr}
			h := NewHandler(reports, Services{}, &testClock{now: fixedNow}, zerolog.Nop())

			// WHEN: Asking for health
			rec := httptest.NewRecorder()
			NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			// THEN: The status reflects the database
			assert.Equal(t, tt.wantCode, rec.Code)
			health := decode[HealthDTO](t, rec)
			assert.Equal(t, tt.wantStatus, health.Status)
			assert.Equal(t, tt.wantDB, health.Database)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("set weight: %w", allocation.ErrUnknownSector)))
	assert.Equal(t, http.StatusBadRequest, statusFor(allocation.ErrNotBalanced))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("get: %w", allocation.ErrReportNotFound)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("disk full")))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestSetWeights_ConcurrentWritersSerialize(t *testing.T) {
	// GIVEN: One session shared by many writers
	env := newTestEnv(t, Services{})
	id := env.createSession(t, nil).SessionID

	// WHEN: Writers race on the same session
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			body, _ := json.Marshal(SetWeightsRequest{
				Weights: map[string]int{"livelihoods": v, "industries": 100 - v, "govt_projects": 0},
			})
			req := httptest.NewRequest(http.MethodPut, "/api/allocations/"+id+"/weights", bytes.NewReader(body))
			env.router.ServeHTTP(httptest.NewRecorder(), req)
		}(i * 5)
	}
	wg.Wait()

	// THEN: Every write was applied whole, so the total is still 100
	got := decode[AllocationDTO](t, env.do(t, http.MethodGet, "/api/allocations/"+id, nil))
	assert.Equal(t, 100, got.Total)
	assert.True(t, got.CanFinalize)
}

type recordingExporter struct {
	mu      sync.Mutex
	reports []allocation.Report
}

func (r *recordingExporter) ExportReport(rep allocation.Report) {
	r.mu.Lock()
	r.reports = append(r.reports, rep)
	r.mu.Unlock()
}

func TestFinalize_ForwardsToBillExporter(t *testing.T) {
	// GIVEN: A server that also writes bills out
	env := newTestEnv(t, Services{})
	rec := &recordingExporter{}
	env.handler.BillExporter = rec

	// WHEN: One finalize is rejected and one succeeds
	over := env.createSession(t, CreateAllocationRequest{Preset: "over-committed"}).SessionID
	env.do(t, http.MethodPost, "/api/allocations/"+over+"/finalize", nil)
	finalizeDefault(t, env)

	// THEN: Only the archived bill reached the exporter
	require.Len(t, rec.reports, 1)
	assert.Equal(t, allocation.DefaultWeights, rec.reports[0].Allocation)
}
