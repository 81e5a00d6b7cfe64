package analysis

const (
	pdgMuon = 13
	pdgZ    = 23
	pdgW    = 24

	quarkCharm  = 4
	quarkBeauty = 5
)

// ParticleType is the origin of a reconstructed track.
type ParticleType int

// Particle types, from the least to the most specific origin.
const (
	Unidentified ParticleType = iota
	RecoHadron
	SecondaryMu
	DecayMu
	BeautyMu
	CharmMu
	WBosonMu
	ZBosonMu
	QuarkoniumMu
)

var particleTypeNames = [...]string{
	Unidentified: "unidentified",
	RecoHadron:   "hadron",
	SecondaryMu:  "secondary",
	DecayMu:      "decay",
	BeautyMu:     "beauty",
	CharmMu:      "charm",
	WBosonMu:     "W",
	ZBosonMu:     "Z",
	QuarkoniumMu: "quarkonium",
}

// String returns the name of the particle type.
func (p ParticleType) String() string {
	if p < 0 || int(p) >= len(particleTypeNames) {
		return "unknown"
	}

	return particleTypeNames[p]
}

// Ancestry answers origin questions about a track from its truth history.
type Ancestry interface {
	IsUnidentified(t Track, ev *Event) bool
	IsHadron(t Track, ev *Event) bool
	IsSecondaryMu(t Track, ev *Event) bool
	IsDecayMu(t Track, ev *Event) bool
	IsBeautyMu(t Track, ev *Event) bool
	IsCharmMu(t Track, ev *Event) bool
	IsWBosonMu(t Track, ev *Event) bool
	IsZBosonMu(t Track, ev *Event) bool
	IsQuarkoniumMu(t Track, ev *Event) bool
}

// Classify returns the particle type of t. A muon carries every flag of its
// history (W -> b -> mu is both a W and a beauty muon); the first match in
// the order below wins. Muons matching none are counted as decay muons.
func Classify(a Ancestry, t Track, ev *Event) ParticleType {
	checks := []struct {
		is  func(Track, *Event) bool
		typ ParticleType
	}{
		{a.IsUnidentified, Unidentified},
		{a.IsHadron, RecoHadron},
		{a.IsSecondaryMu, SecondaryMu},
		{a.IsDecayMu, DecayMu},
		{a.IsBeautyMu, BeautyMu},
		{a.IsCharmMu, CharmMu},
		{a.IsWBosonMu, WBosonMu},
		{a.IsZBosonMu, ZBosonMu},
		{a.IsQuarkoniumMu, QuarkoniumMu},
	}

	for _, c := range checks {
		if c.is(t, ev) {
			return c.typ
		}
	}

	return DecayMu
}

// TruthAncestry walks the mother chain of the truth particle matched to a
// track and reads the origin from PDG codes.
type TruthAncestry struct{}

// IsUnidentified reports tracks without a truth match.
func (TruthAncestry) IsUnidentified(t Track, ev *Event) bool {
	_, ok := ev.Particle(t.MCLabel)

	return !ok
}

// IsHadron reports tracks matched to anything but a muon.
func (TruthAncestry) IsHadron(t Track, ev *Event) bool {
	p, ok := ev.Particle(t.MCLabel)

	return ok && abs(p.PDG) != pdgMuon
}

// IsSecondaryMu reports muons produced in the detector material.
func (TruthAncestry) IsSecondaryMu(t Track, ev *Event) bool {
	p, ok := matchedMuon(t, ev)

	return ok && p.Secondary
}

// IsDecayMu reports muons whose mother is a light flavour hadron.
func (TruthAncestry) IsDecayMu(t Track, ev *Event) bool {
	p, ok := matchedMuon(t, ev)
	if !ok {
		return false
	}

	mother, ok := ev.Particle(p.Mother)

	return ok && isHadron(mother.PDG) && heaviestQuark(mother.PDG) <= 3
}

// IsBeautyMu reports muons with an open beauty ancestor.
func (TruthAncestry) IsBeautyMu(t Track, ev *Event) bool {
	return anyAncestor(t, ev, func(pdg int) bool { return openFlavour(pdg) == quarkBeauty })
}

// IsCharmMu reports muons with an open charm ancestor.
func (TruthAncestry) IsCharmMu(t Track, ev *Event) bool {
	return anyAncestor(t, ev, func(pdg int) bool { return openFlavour(pdg) == quarkCharm })
}

// IsWBosonMu reports muons with a W ancestor.
func (TruthAncestry) IsWBosonMu(t Track, ev *Event) bool {
	return anyAncestor(t, ev, func(pdg int) bool { return abs(pdg) == pdgW })
}

// IsZBosonMu reports muons with a Z ancestor.
func (TruthAncestry) IsZBosonMu(t Track, ev *Event) bool {
	return anyAncestor(t, ev, func(pdg int) bool { return abs(pdg) == pdgZ })
}

// IsQuarkoniumMu reports muons with a charmonium or bottomonium ancestor.
func (TruthAncestry) IsQuarkoniumMu(t Track, ev *Event) bool {
	return anyAncestor(t, ev, isQuarkonium)
}

func matchedMuon(t Track, ev *Event) (Particle, bool) {
	p, ok := ev.Particle(t.MCLabel)
	if !ok || abs(p.PDG) != pdgMuon {
		return Particle{}, false
	}

	return p, true
}

// anyAncestor walks the mother chain of the matched muon. The walk is bounded
// by the number of particles so a malformed chain cannot loop.
func anyAncestor(t Track, ev *Event, match func(pdg int) bool) bool {
	p, ok := matchedMuon(t, ev)
	if !ok {
		return false
	}

	for range len(ev.MC) {
		p, ok = ev.Particle(p.Mother)
		if !ok {
			return false
		}

		if match(p.PDG) {
			return true
		}
	}

	return false
}

// quarks returns the three quark digits of a hadron PDG code.
func quarks(pdg int) (q1, q2, q3 int) {
	n := abs(pdg)

	return (n / 1000) % 10, (n / 100) % 10, (n / 10) % 10
}

func isHadron(pdg int) bool {
	n := abs(pdg)

	return n >= 100 && n < 1_000_000_000
}

func heaviestQuark(pdg int) int {
	if !isHadron(pdg) {
		return 0
	}

	q1, q2, q3 := quarks(pdg)

	return max(q1, q2, q3)
}

func isQuarkonium(pdg int) bool {
	if !isHadron(pdg) {
		return false
	}

	q1, q2, q3 := quarks(pdg)

	return q1 == 0 && q2 == q3 && (q2 == quarkCharm || q2 == quarkBeauty)
}

// openFlavour returns the heaviest quark of an open flavour hadron or the
// flavour of a bare quark, and 0 for quarkonia and everything else.
func openFlavour(pdg int) int {
	if n := abs(pdg); n >= 1 && n <= 6 {
		return n
	}

	if isQuarkonium(pdg) {
		return 0
	}

	return heaviestQuark(pdg)
}
