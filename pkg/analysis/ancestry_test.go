package analysis

import (
	"testing"

	"github.com/longbridgeapp/assert"
)

// chain builds a truth record where every particle is the mother of the next
// one; the last particle is the matched track.
func chain(pdgs ...int) *Event {
	ev := &Event{MC: make([]Particle, len(pdgs))}
	for i, pdg := range pdgs {
		ev.MC[i] = Particle{PDG: pdg, Mother: i - 1, Status: 1}
	}

	return ev
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ev   *Event
		want ParticleType
	}{
		{name: "unmatched", ev: &Event{}, want: Unidentified},
		{name: "hadron", ev: chain(211), want: RecoHadron},
		{name: "pion decay", ev: chain(211, 13), want: DecayMu},
		{name: "kaon from charm decays first", ev: chain(421, 321, 13), want: DecayMu},
		{name: "open beauty", ev: chain(521, 13), want: BeautyMu},
		{name: "open charm", ev: chain(411, 13), want: CharmMu},
		{name: "charm from beauty is beauty", ev: chain(511, 421, 13), want: BeautyMu},
		{name: "W", ev: chain(24, 13), want: WBosonMu},
		{name: "W to beauty is beauty", ev: chain(24, 5, 521, 13), want: BeautyMu},
		{name: "Z", ev: chain(23, 13), want: ZBosonMu},
		{name: "J/psi", ev: chain(443, 13), want: QuarkoniumMu},
		{name: "Upsilon", ev: chain(553, 13), want: QuarkoniumMu},
		{name: "psi(2S)", ev: chain(100443, 13), want: QuarkoniumMu},
		{name: "primary muon", ev: chain(13), want: DecayMu},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track := Track{MCLabel: len(tt.ev.MC) - 1}
			assert.Equal(t, tt.want, Classify(TruthAncestry{}, track, tt.ev))
		})
	}
}

func TestClassify_Secondary(t *testing.T) {
	ev := chain(521, 211, 13)
	ev.MC[2].Secondary = true

	assert.Equal(t, SecondaryMu, Classify(TruthAncestry{}, Track{MCLabel: 2}, ev))
}

func TestClassify_CyclicChainTerminates(t *testing.T) {
	ev := &Event{MC: []Particle{
		{PDG: 13, Mother: 1},
		{PDG: 22, Mother: 0},
	}}

	assert.Equal(t, DecayMu, Classify(TruthAncestry{}, Track{MCLabel: 0}, ev))
}

func TestParticleType_String(t *testing.T) {
	assert.Equal(t, "quarkonium", QuarkoniumMu.String())
	assert.Equal(t, "unknown", ParticleType(99).String())
}
