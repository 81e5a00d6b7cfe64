package analysis

import (
	"slices"
	"strings"
)

// PtCutLevel associates trigger classes sharing a name fragment with the
// trigger match level their muons must reach.
type PtCutLevel struct {
	Contains string `json:"contains" yaml:"contains"`
	Level    int    `json:"level"    yaml:"level"`
}

// EventCuts selects events and their trigger classes.
type EventCuts struct {
	RequirePhysicsSelection bool `json:"requirePhysicsSelection" yaml:"requirePhysicsSelection"`
	// TriggerClasses lists accepted trigger class name fragments. Empty accepts every class.
	TriggerClasses []string     `json:"triggerClasses" yaml:"triggerClasses"`
	CentralityMin  float64      `json:"centralityMin"  yaml:"centralityMin"`
	CentralityMax  float64      `json:"centralityMax"  yaml:"centralityMax"`
	PtCutLevels    []PtCutLevel `json:"ptCutLevels"    yaml:"ptCutLevels"`
}

// DefaultEventCuts returns the muon event selection: physics selected events,
// the muon trigger classes and the full centrality range.
func DefaultEventCuts() EventCuts {
	return EventCuts{
		RequirePhysicsSelection: true,
		TriggerClasses:          []string{"CINT7", "CMSL7", "CMSH7", "CMUL7", "CMLL7"},
		CentralityMin:           0,
		CentralityMax:           100,
		PtCutLevels: []PtCutLevel{
			{Contains: "MSH", Level: MatchHighPt},
			{Contains: "MUH", Level: MatchHighPt},
			{Contains: "MSL", Level: MatchLowPt},
			{Contains: "MUL", Level: MatchLowPt},
			{Contains: "MLL", Level: MatchLowPt},
		},
	}
}

// Selected returns the accepted trigger classes of the event, or nil when the
// event is rejected.
func (c EventCuts) Selected(ev *Event) []string {
	if c.RequirePhysicsSelection && !ev.PhysicsSelected {
		return nil
	}

	if ev.Centrality < c.CentralityMin || ev.Centrality > c.CentralityMax {
		return nil
	}

	var out []string

	for _, trig := range ev.TriggerClasses {
		if trig == "" || slices.Contains(out, trig) {
			continue
		}

		if len(c.TriggerClasses) == 0 || containsAny(trig, c.TriggerClasses) {
			out = append(out, trig)
		}
	}

	return out
}

// PtCutLevel returns the trigger match level required for a trigger class.
// Classes without a configured level require no match.
func (c EventCuts) PtCutLevel(trig string) int {
	level := MatchNone

	for _, l := range c.PtCutLevels {
		if strings.Contains(trig, l.Contains) && l.Level > level {
			level = l.Level
		}
	}

	return level
}

// TrackCuts selects reconstructed muon tracks. Zero bounds disable a cut.
type TrackCuts struct {
	EtaMin          float64 `json:"etaMin"          yaml:"etaMin"`
	EtaMax          float64 `json:"etaMax"          yaml:"etaMax"`
	RAbsMin         float64 `json:"rAbsMin"         yaml:"rAbsMin"`
	RAbsMax         float64 `json:"rAbsMax"         yaml:"rAbsMax"`
	MaxPDCA         float64 `json:"maxPDCA"         yaml:"maxPDCA"`
	MaxChi2         float64 `json:"maxChi2"         yaml:"maxChi2"`
	MinTriggerMatch int     `json:"minTriggerMatch" yaml:"minTriggerMatch"`
}

// DefaultTrackCuts returns the standard muon track cuts: spectrometer
// acceptance, absorber radius, p x DCA and a trigger match.
func DefaultTrackCuts() TrackCuts {
	return TrackCuts{
		EtaMin:          -4,
		EtaMax:          -2.5,
		RAbsMin:         17.6,
		RAbsMax:         89.5,
		MaxPDCA:         6,
		MinTriggerMatch: MatchAllPt,
	}
}

// Selected reports whether a reconstructed track passes the cuts.
func (c TrackCuts) Selected(t Track) bool {
	if (c.EtaMin != 0 || c.EtaMax != 0) && (t.Eta < c.EtaMin || t.Eta > c.EtaMax) {
		return false
	}

	if (c.RAbsMin != 0 || c.RAbsMax != 0) && (t.RAbs < c.RAbsMin || t.RAbs > c.RAbsMax) {
		return false
	}

	if c.MaxPDCA > 0 && t.PDCA > c.MaxPDCA {
		return false
	}

	if c.MaxChi2 > 0 && t.Chi2 > c.MaxChi2 {
		return false
	}

	return t.TriggerMatch >= c.MinTriggerMatch
}

// MatchesPtCut reports whether the track trigger match reaches level.
func (TrackCuts) MatchesPtCut(t Track, level int) bool {
	return t.TriggerMatch >= level
}

// GeneratedSelected keeps final state truth muons. Generators store initial
// state copies with status codes of 10 and above.
func GeneratedSelected(p Particle) bool {
	return abs(p.PDG) == pdgMuon && p.Status < 10
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}

	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}

	return n
}
