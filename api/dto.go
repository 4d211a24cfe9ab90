/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON shapes for API communication. DTOs decouple the
  allocation engine's types from the wire format.

NAMING CONVENTION:
  - XxxDTO:     Response object
  - XxxRequest: Request body

SERIALIZATION:
  - Sector keys use the snake_case ids (livelihoods, industries, govt_projects)
  - Timestamps are RFC3339 in UTC
  - Percentages are whole integers

SEE ALSO:
  - handlers.go: Uses these DTOs
  - allocation/types.go: Engine types these map to
*/
package api

import (
	"time"

	"github.com/heatx/energy-engine/allocation"
	"github.com/heatx/energy-engine/backend"
	"github.com/heatx/energy-engine/export"
	"github.com/heatx/energy-engine/methods"
)

// =============================================================================
// ALLOCATION DTOs
// =============================================================================

// WeightsDTO is a weight triple on the wire.
type WeightsDTO struct {
	Livelihoods  int `json:"livelihoods"`
	Industries   int `json:"industries"`
	GovtProjects int `json:"govt_projects"`
}

func toWeightsDTO(w allocation.Weights) WeightsDTO {
	return WeightsDTO{
		Livelihoods:  w.Livelihoods,
		Industries:   w.Industries,
		GovtProjects: w.GovtProjects,
	}
}

func (d WeightsDTO) weights() allocation.Weights {
	return allocation.Weights{
		Livelihoods:  d.Livelihoods,
		Industries:   d.Industries,
		GovtProjects: d.GovtProjects,
	}
}

// SectorDTO is one row of the allocation panel: slider value plus chart slice.
type SectorDTO struct {
	Sector  string `json:"sector"`
	Label   string `json:"label"`
	Color   string `json:"color"`
	Raw     int    `json:"raw"`
	Percent int    `json:"percent"`
}

// AllocationDTO is the full derived state of a session.
type AllocationDTO struct {
	SessionID   string      `json:"session_id"`
	Raw         WeightsDTO  `json:"raw"`
	Normalized  WeightsDTO  `json:"normalized"`
	Total       int         `json:"total"`
	Status      string      `json:"status"`
	Adjustment  int         `json:"adjustment"`
	Hint        string      `json:"hint,omitempty"`
	CanFinalize bool        `json:"can_finalize"`
	Sectors     []SectorDTO `json:"sectors"`
}

func toAllocationDTO(sessionID string, st allocation.State) AllocationDTO {
	sectors := make([]SectorDTO, 0, len(allocation.Sectors))
	for _, s := range allocation.Sectors {
		sectors = append(sectors, SectorDTO{
			Sector:  string(s),
			Label:   s.Label(),
			Color:   s.Color(),
			Raw:     st.Raw.Get(s),
			Percent: st.Normalized.Get(s),
		})
	}
	return AllocationDTO{
		SessionID:   sessionID,
		Raw:         toWeightsDTO(st.Raw),
		Normalized:  toWeightsDTO(st.Normalized),
		Total:       st.Total,
		Status:      string(st.Status),
		Adjustment:  st.Adjustment(),
		Hint:        st.Hint(),
		CanFinalize: st.Balanced(),
		Sectors:     sectors,
	}
}

// CreateAllocationRequest starts a session. Weights wins over Preset; an
// empty body starts from the 40/35/25 default.
type CreateAllocationRequest struct {
	Weights *WeightsDTO `json:"weights,omitempty"`
	Preset  string      `json:"preset,omitempty"`
}

// WeightUpdate moves one slider.
type WeightUpdate struct {
	Sector string `json:"sector"`
	Value  int    `json:"value"`
}

// SetWeightsRequest moves one slider (Sector/Value) or several (Weights).
type SetWeightsRequest struct {
	Sector  string         `json:"sector,omitempty"`
	Value   *int           `json:"value,omitempty"`
	Weights map[string]int `json:"weights,omitempty"`
}

// FinalizeResponse is returned by a successful finalize.
type FinalizeResponse struct {
	Report ReportDTO `json:"report"`
	Next   string    `json:"next"`
}

// NotBalancedResponse is the 409 body of a rejected finalize.
type NotBalancedResponse struct {
	Error      string        `json:"error"`
	Allocation AllocationDTO `json:"allocation"`
}

// =============================================================================
// REPORT DTOs
// =============================================================================

// ReportDTO is an archived bill.
type ReportDTO struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id,omitempty"`
	Title       string            `json:"title"`
	GeneratedAt string            `json:"generated_at"`
	CreatedAt   string            `json:"created_at"`
	Allocation  WeightsDTO        `json:"allocation"`
	Body        string            `json:"body"`
	Downloads   map[string]string `json:"downloads"`
}

func toReportDTO(r allocation.ArchivedReport) ReportDTO {
	downloads := make(map[string]string, len(export.Formats))
	for _, f := range export.Formats {
		downloads[string(f)] = "/api/reports/" + r.ID + "/download?format=" + string(f)
	}
	return ReportDTO{
		ID:          r.ID,
		SessionID:   r.SessionID,
		Title:       allocation.ReportTitle,
		GeneratedAt: r.Report.GeneratedAt.UTC().Format(time.RFC3339),
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
		Allocation:  toWeightsDTO(r.Report.Allocation),
		Body:        r.Report.Body(),
		Downloads:   downloads,
	}
}

// =============================================================================
// PRESET DTOs
// =============================================================================

// PresetDTO describes a starting allocation.
type PresetDTO struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Weights     WeightsDTO `json:"weights"`
	Balanced    bool       `json:"balanced"`
}

// =============================================================================
// METHOD DTOs
// =============================================================================

// MethodDTO is a recovery method card.
type MethodDTO struct {
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Efficiency  float64  `json:"efficiency"`
	Conditions  string   `json:"conditions"`
	Pros        []string `json:"pros"`
	Cons        []string `json:"cons"`
	TempRange   string   `json:"temp_range"`
	Cost        string   `json:"cost"`
	Scalability string   `json:"scalability"`
	Default     bool     `json:"default"`
}

func toMethodDTO(m methods.Method) MethodDTO {
	return MethodDTO{
		Slug:        m.Slug,
		Name:        m.Name,
		Efficiency:  m.Efficiency,
		Conditions:  m.Conditions,
		Pros:        m.Pros,
		Cons:        m.Cons,
		TempRange:   m.TempRange,
		Cost:        m.Cost,
		Scalability: m.Scalability,
		Default:     m.Default,
	}
}

// RecommendationDTO answers GET /api/methods/recommend.
type RecommendationDTO struct {
	TemperatureC float64   `json:"temperature_c"`
	Method       MethodDTO `json:"method"`
}

// =============================================================================
// RELAY DTOs
// =============================================================================

// AnalyzeRequest is relayed to the analysis service.
type AnalyzeRequest struct {
	Dataset [][]string `json:"dataset"`
	Task    string     `json:"task"`
}

// ChatRequest is relayed to the assistant.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the assistant reply. Degraded is set when the
// fallback text was substituted for a failed call.
type ChatResponse struct {
	Reply    string `json:"reply"`
	Degraded bool   `json:"degraded,omitempty"`
}

// LedgerDTO lists the carbon-credit chain.
type LedgerDTO struct {
	Blocks []backend.Block `json:"blocks"`
}

// HealthDTO answers GET /api/health.
type HealthDTO struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Database string `json:"database,omitempty"`
}

// =============================================================================
// ERROR RESPONSE
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
