// internal/gamemode/gamemode.go
package gamemode

import "sort"

// Mode identifies a match type.
type Mode string

const (
	Attrition Mode = "attrition"
	Showdown  Mode = "showdown"
)

// Settings are the static defaults of a Mode.
type Settings struct {
	StartingLives int `json:"startingLives"`
	HandsPerRound int `json:"handsPerRound"`
}

// Registry maps a Mode to its Settings. It is built once and never mutated.
type Registry struct {
	modes map[Mode]Settings
}

// NewRegistry returns the registry of built-in modes.
func NewRegistry() *Registry {
	return &Registry{
		modes: map[Mode]Settings{
			Attrition: {StartingLives: 4, HandsPerRound: 4},
			Showdown:  {StartingLives: 2, HandsPerRound: 4},
		},
	}
}

// Lookup returns the settings for m.
func (r *Registry) Lookup(m Mode) (Settings, bool) {
	s, ok := r.modes[m]
	return s, ok
}

// Modes lists the registered modes in name order.
func (r *Registry) Modes() []Mode {
	out := make([]Mode, 0, len(r.modes))
	for m := range r.modes {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
