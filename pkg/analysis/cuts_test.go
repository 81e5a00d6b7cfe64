package analysis

import (
	"testing"

	"github.com/longbridgeapp/assert"
)

func TestEventCuts_Selected(t *testing.T) {
	cuts := DefaultEventCuts()

	tests := []struct {
		name string
		ev   Event
		want []string
	}{
		{
			name: "muon triggers kept",
			ev:   Event{PhysicsSelected: true, Centrality: 20, TriggerClasses: []string{"CMSL7-B-NOPF-MUFAST", "C0TVX-B-NOPF-CENT"}},
			want: []string{"CMSL7-B-NOPF-MUFAST"},
		},
		{
			name: "duplicates removed",
			ev:   Event{PhysicsSelected: true, Centrality: 20, TriggerClasses: []string{"CINT7-B", "CINT7-B", ""}},
			want: []string{"CINT7-B"},
		},
		{
			name: "physics selection required",
			ev:   Event{Centrality: 20, TriggerClasses: []string{"CINT7-B"}},
		},
		{
			name: "centrality out of range",
			ev:   Event{PhysicsSelected: true, Centrality: 101, TriggerClasses: []string{"CINT7-B"}},
		},
		{
			name: "no accepted trigger",
			ev:   Event{PhysicsSelected: true, Centrality: 0, TriggerClasses: []string{"C0TVX-B"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cuts.Selected(&tt.ev))
		})
	}
}

func TestEventCuts_AcceptAllTriggers(t *testing.T) {
	cuts := EventCuts{CentralityMin: 0, CentralityMax: 100}
	ev := &Event{Centrality: 50, TriggerClasses: []string{"ANY", "OTHER"}}

	assert.Equal(t, []string{"ANY", "OTHER"}, cuts.Selected(ev))
}

func TestEventCuts_PtCutLevel(t *testing.T) {
	cuts := DefaultEventCuts()

	assert.Equal(t, MatchNone, cuts.PtCutLevel("CINT7-B-NOPF-MUFAST"))
	assert.Equal(t, MatchLowPt, cuts.PtCutLevel("CMSL7-B-NOPF-MUFAST"))
	assert.Equal(t, MatchLowPt, cuts.PtCutLevel("CMUL7-B-NOPF-MUFAST"))
	assert.Equal(t, MatchHighPt, cuts.PtCutLevel("CMSH7-B-NOPF-MUFAST"))
}

func TestTrackCuts_Selected(t *testing.T) {
	cuts := DefaultTrackCuts()
	good := Track{Pt: 2, Eta: -3, RAbs: 40, PDCA: 1, TriggerMatch: MatchLowPt}

	assert.True(t, cuts.Selected(good))

	tests := []struct {
		name   string
		mutate func(*Track)
	}{
		{name: "eta", mutate: func(tr *Track) { tr.Eta = -2.2 }},
		{name: "rabs low", mutate: func(tr *Track) { tr.RAbs = 10 }},
		{name: "rabs high", mutate: func(tr *Track) { tr.RAbs = 95 }},
		{name: "pdca", mutate: func(tr *Track) { tr.PDCA = 7 }},
		{name: "no trigger match", mutate: func(tr *Track) { tr.TriggerMatch = MatchNone }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := good
			tt.mutate(&tr)
			assert.False(t, cuts.Selected(tr))
		})
	}

	assert.True(t, cuts.MatchesPtCut(good, MatchLowPt))
	assert.False(t, cuts.MatchesPtCut(good, MatchHighPt))
}

func TestGeneratedSelected(t *testing.T) {
	assert.True(t, GeneratedSelected(Particle{PDG: 13, Status: 1}))
	assert.True(t, GeneratedSelected(Particle{PDG: -13, Status: 1}))
	assert.False(t, GeneratedSelected(Particle{PDG: 13, Status: 21}))
	assert.False(t, GeneratedSelected(Particle{PDG: 13, Status: 11}))
	assert.False(t, GeneratedSelected(Particle{PDG: 211, Status: 1}))
}
