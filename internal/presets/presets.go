package presets

import (
	"sort"

	"github.com/satindergrewal/stillroom/internal/noise"
)

// Preset is a named mix and a node in the preset graph.
type Preset struct {
	Name     string        `json:"name"`
	Mix      noise.Volumes `json:"mix"`
	Adjacent []string      `json:"adjacent"`
}

// Graph maps preset names to their mixes with adjacency edges.
// Autopilot only drifts along edges, so the mix never jumps across the room.
var Graph = map[string]*Preset{
	"focus": {
		Name:     "focus",
		Mix:      noise.Volumes{White: 0.35, Pink: 0.15},
		Adjacent: []string{"blend", "rain"},
	},
	"rain": {
		Name:     "rain",
		Mix:      noise.Volumes{White: 0.1, Pink: 0.45, Brown: 0.1},
		Adjacent: []string{"focus", "relax"},
	},
	"relax": {
		Name:     "relax",
		Mix:      noise.Volumes{Pink: 0.4, Brown: 0.15},
		Adjacent: []string{"rain", "blend", "deep"},
	},
	"blend": {
		Name:     "blend",
		Mix:      noise.Volumes{White: 0.15, Pink: 0.25, Brown: 0.25},
		Adjacent: []string{"focus", "relax", "deep"},
	},
	"deep": {
		Name:     "deep",
		Mix:      noise.Volumes{Pink: 0.1, Brown: 0.5},
		Adjacent: []string{"relax", "blend"},
	},
	// silence is reachable by hand but never drifted into.
	"silence": {
		Name: "silence",
	},
}

// Names returns all preset names, sorted.
func Names() []string {
	names := make([]string, 0, len(Graph))
	for name := range Graph {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsValid checks if a preset exists.
func IsValid(name string) bool {
	_, ok := Graph[name]
	return ok
}

// List returns every preset in name order.
func List() []Preset {
	out := make([]Preset, 0, len(Graph))
	for _, name := range Names() {
		out = append(out, *Graph[name])
	}
	return out
}
