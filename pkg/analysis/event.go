// Package analysis implements the single-muon v1 event loop that feeds a
// histcache collection.
//
// Events are read from JSON lines, selected with EventCuts, and their tracks
// with TrackCuts. Accepted tracks fill the per trigger class "nevents" counter
// and the per (trigger class, centrality) "MuSparse" histogram. When the event
// carries the A and B flow vectors, their norms and scalar product are filled
// too. Monte Carlo events get a second, generated pass over their truth
// particles.
package analysis

import (
	"math"
	"strings"
)

// Event formats accepted by the task.
const (
	FormatAOD = "aod"
	FormatESD = "esd"
)

// Trigger match levels of a muon track, from the trigger chambers.
const (
	MatchNone = iota
	MatchAllPt
	MatchLowPt
	MatchHighPt
)

// Vec2 is a two-dimensional flow vector.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Norm returns the length of the vector.
func (v Vec2) Norm() float64 { return math.Hypot(v.X, v.Y) }

// Dot returns the scalar product with o.
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }

// Track is a reconstructed muon track.
type Track struct {
	Pt     float64 `json:"pt"`
	Eta    float64 `json:"eta"`
	Phi    float64 `json:"phi"`
	Charge int     `json:"charge"`
	// RAbs is the track radius at the end of the front absorber, in cm.
	RAbs float64 `json:"rAbs"`
	// PDCA is the momentum times the distance of closest approach, in units of its resolution.
	PDCA float64 `json:"pDCA"`
	// Chi2 is the normalized chi2 of the tracking fit.
	Chi2         float64 `json:"chi2"`
	TriggerMatch int     `json:"triggerMatch"`
	// MCLabel is the index of the matched truth particle, negative when unmatched.
	MCLabel int `json:"mcLabel"`
}

// Particle is a Monte Carlo truth particle.
type Particle struct {
	Pt     float64 `json:"pt"`
	Eta    float64 `json:"eta"`
	Phi    float64 `json:"phi"`
	Charge int     `json:"charge"` // in units of e/3
	PDG    int     `json:"pdg"`
	Status int     `json:"status"`
	// Mother is the index of the mother particle, negative for primaries.
	Mother int `json:"mother"`
	// Secondary is set for particles produced in the detector material.
	Secondary bool `json:"secondary,omitempty"`
}

// Event is one collision as read from the input.
type Event struct {
	ID              string     `json:"id"`
	Run             int        `json:"run"`
	Format          string     `json:"format"`
	PhysicsSelected bool       `json:"physicsSelected"`
	TriggerClasses  []string   `json:"triggerClasses"`
	Centrality      float64    `json:"centrality"`
	QA              *Vec2      `json:"qa,omitempty"`
	QB              *Vec2      `json:"qb,omitempty"`
	Tracks          []Track    `json:"tracks"`
	MC              []Particle `json:"mc,omitempty"`
}

// HasFormat reports whether the event carries a recognised payload.
func (e *Event) HasFormat() bool {
	switch strings.ToLower(e.Format) {
	case FormatAOD, FormatESD:
		return true
	default:
		return false
	}
}

// HasMC reports whether Monte Carlo truth is attached.
func (e *Event) HasMC() bool { return len(e.MC) > 0 }

// HasFlowVectors reports whether both flow vectors are present.
func (e *Event) HasFlowVectors() bool { return e.QA != nil && e.QB != nil }

// Particle returns the truth particle at index i.
func (e *Event) Particle(i int) (Particle, bool) {
	if i < 0 || i >= len(e.MC) {
		return Particle{}, false
	}

	return e.MC[i], true
}
