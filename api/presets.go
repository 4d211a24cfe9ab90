/*
presets.go - Starting allocations for demos and quick comparisons

AVAILABLE PRESETS:

	default:               40/35/25, the dashboard's initial sliders
	community-first:       livelihoods-heavy split
	industrial-growth:     industries-heavy split
	public-infrastructure: government projects-heavy split
	over-committed:        sums to 150, demonstrates the reduce hint
	under-committed:       sums to 30, demonstrates the add hint

USAGE VIA API:

	GET  /api/presets
	POST /api/allocations {"preset": "community-first"}

ADDING NEW PRESETS:
 1. Add to 'presets' slice with ID, name, description, weights
 2. Nothing else; lookups go through findPreset
*/
package api

import (
	"fmt"

	"github.com/heatx/energy-engine/allocation"
)

// Preset is a named starting allocation.
type Preset struct {
	ID          string
	Name        string
	Description string
	Weights     allocation.Weights
}

var presets = []Preset{
	{
		ID:          "default",
		Name:        "Dashboard Default",
		Description: "The initial slider positions: 40% livelihoods, 35% industries, 25% government projects",
		Weights:     allocation.DefaultWeights,
	},
	{
		ID:          "community-first",
		Name:        "Community First",
		Description: "Prioritizes household and small-business power for nearby communities",
		Weights:     allocation.Weights{Livelihoods: 60, Industries: 25, GovtProjects: 15},
	},
	{
		ID:          "industrial-growth",
		Name:        "Industrial Growth",
		Description: "Feeds most recovered power back into industrial processes",
		Weights:     allocation.Weights{Livelihoods: 20, Industries: 60, GovtProjects: 20},
	},
	{
		ID:          "public-infrastructure",
		Name:        "Public Infrastructure",
		Description: "Directs half of the output to government projects such as street lighting and water pumping",
		Weights:     allocation.Weights{Livelihoods: 25, Industries: 25, GovtProjects: 50},
	},
	{
		ID:          "over-committed",
		Name:        "Over-Committed",
		Description: "Sums to 150%; the bill stays locked until 50% is removed",
		Weights:     allocation.Weights{Livelihoods: 50, Industries: 50, GovtProjects: 50},
	},
	{
		ID:          "under-committed",
		Name:        "Under-Committed",
		Description: "Sums to 30%; the bill stays locked until 70% is added",
		Weights:     allocation.Weights{Livelihoods: 10, Industries: 10, GovtProjects: 10},
	},
}

// Presets returns a copy of the preset list.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

func findPreset(id string) (Preset, error) {
	for _, p := range presets {
		if p.ID == id {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("unknown preset %q", id)
}

func toPresetDTO(p Preset) PresetDTO {
	return PresetDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Weights:     toWeightsDTO(p.Weights),
		Balanced:    p.Weights.Sum() == allocation.Target,
	}
}
