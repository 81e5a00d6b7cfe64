package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/constants"
	"github.com/hyp3rd/histcache/internal/sentinel"
	"github.com/hyp3rd/histcache/pkg/catalog"
)

// Outcome is what happened to a processed event.
type Outcome int

// Event outcomes.
const (
	Accepted Outcome = iota
	SkippedFormat
	Rejected
)

// pass is one loop over the tracks of an event.
type pass int

const (
	passReconstructed pass = iota
	passGenerated
)

// TaskStats holds the event and track counters of a task.
type TaskStats struct {
	Events         uint64                  `json:"events"`
	Accepted       uint64                  `json:"accepted"`
	SkippedFormat  uint64                  `json:"skippedFormat"`
	Rejected       uint64                  `json:"rejected"`
	RecoTracks     uint64                  `json:"recoTracks"`
	GeneratedMuons uint64                  `json:"generatedMuons"`
	FillErrors     uint64                  `json:"fillErrors"`
	ParticleTypes  map[ParticleType]uint64 `json:"particleTypes,omitempty"`
}

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithEventCuts sets the event selection.
func WithEventCuts(cuts EventCuts) TaskOption {
	return func(t *Task) { t.eventCuts = cuts }
}

// WithTrackCuts sets the reconstructed track selection.
func WithTrackCuts(cuts TrackCuts) TaskOption {
	return func(t *Task) { t.trackCuts = cuts }
}

// WithAncestry sets the truth origin oracle used to classify matched tracks.
func WithAncestry(a Ancestry) TaskOption {
	return func(t *Task) {
		if a != nil {
			t.ancestry = a
		}
	}
}

// WithTaskLogger sets the task logger.
func WithTaskLogger(logger *zap.Logger) TaskOption {
	return func(t *Task) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Task fills a collection from events. It is not safe for concurrent use;
// run one task per shard.
type Task struct {
	svc       histcache.Service
	eventCuts EventCuts
	trackCuts TrackCuts
	ancestry  Ancestry
	logger    *zap.Logger

	events, accepted, skipped, rejected atomic.Uint64
	recoTracks, genMuons, fillErrors    atomic.Uint64
	particleTypes                       [QuarkoniumMu + 1]atomic.Uint64
}

// NewTask returns a task filling svc with the default cuts.
func NewTask(svc histcache.Service, opts ...TaskOption) *Task {
	t := &Task{
		svc:       svc,
		eventCuts: DefaultEventCuts(),
		trackCuts: DefaultTrackCuts(),
		ancestry:  TruthAncestry{},
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Process runs the event through the selection and fills the collection.
// Events without a recognised format are logged and skipped; rejected events
// are skipped silently.
func (t *Task) Process(ctx context.Context, ev *Event) Outcome {
	t.events.Add(1)

	if ev == nil || !ev.HasFormat() {
		t.skipped.Add(1)

		id, format := "", ""
		if ev != nil {
			id, format = ev.ID, ev.Format
		}

		t.logger.Error("event skipped",
			zap.String("event", id),
			zap.String("format", format),
			zap.Error(sentinel.ErrUnknownEventFormat))

		return SkippedFormat
	}

	selected := t.eventCuts.Selected(ev)
	if len(selected) == 0 {
		t.rejected.Add(1)

		return Rejected
	}

	t.accepted.Add(1)

	if ev.HasFlowVectors() {
		t.fillFlow(ctx, ev, selected)
	}

	t.runPass(ctx, ev, passReconstructed, selected)

	if ev.HasMC() {
		t.runPass(ctx, ev, passGenerated, []string{constants.GeneratedTriggerClass})
	}

	return Accepted
}

// Stats returns the task counters.
func (t *Task) Stats() TaskStats {
	st := TaskStats{
		Events:         t.events.Load(),
		Accepted:       t.accepted.Load(),
		SkippedFormat:  t.skipped.Load(),
		Rejected:       t.rejected.Load(),
		RecoTracks:     t.recoTracks.Load(),
		GeneratedMuons: t.genMuons.Load(),
		FillErrors:     t.fillErrors.Load(),
	}

	for i := range t.particleTypes {
		if n := t.particleTypes[i].Load(); n > 0 {
			if st.ParticleTypes == nil {
				st.ParticleTypes = make(map[ParticleType]uint64)
			}

			st.ParticleTypes[ParticleType(i)] = n
		}
	}

	return st
}

// CentralityIdentifier returns the identifier of a (trigger class, centrality) bucket.
func CentralityIdentifier(trig string, centrality float64) string {
	return fmt.Sprintf("%s/%f", TriggerIdentifier(trig), centrality)
}

// TriggerIdentifier returns the identifier of a trigger class bucket.
func TriggerIdentifier(trig string) string {
	return "/" + strings.TrimPrefix(trig, "/")
}

func (t *Task) fillFlow(ctx context.Context, ev *Event, selected []string) {
	normQA, normQB := ev.QA.Norm(), ev.QB.Norm()
	scalProd := ev.QA.Dot(*ev.QB)

	for _, trig := range selected {
		identifier := CentralityIdentifier(trig, ev.Centrality)

		if agg, ok := t.svc.GetOrCreate(ctx, identifier, catalog.NormQA); ok {
			t.check(agg.Fill(normQA, 1), identifier, catalog.NormQA)
		}

		if agg, ok := t.svc.GetOrCreate(ctx, identifier, catalog.NormQB); ok {
			t.check(agg.Fill(normQB, 1), identifier, catalog.NormQB)
		}

		if agg, ok := t.svc.GetOrCreate(ctx, identifier, catalog.ScalProdQAQB); ok {
			t.check(agg.FillProfile(ev.Centrality, scalProd, 1), identifier, catalog.ScalProdQAQB)
		}
	}
}

func (t *Task) runPass(ctx context.Context, ev *Event, p pass, trigClasses []string) {
	if p == passGenerated {
		for _, part := range ev.MC {
			if !GeneratedSelected(part) {
				continue
			}

			t.genMuons.Add(1)
			t.fillTrack(ctx, ev, trigClasses, muonVars(part.Pt, part.Eta, part.Charge, part.Phi), nil)
		}

		return
	}

	for i := range ev.Tracks {
		track := ev.Tracks[i]
		if !t.trackCuts.Selected(track) {
			continue
		}

		t.recoTracks.Add(1)

		if ev.HasMC() {
			t.particleTypes[Classify(t.ancestry, track, ev)].Add(1)
		}

		t.fillTrack(ctx, ev, trigClasses, muonVars(track.Pt, track.Eta, track.Charge, track.Phi), &track)
	}
}

// fillTrack fills the counters of an accepted track. reco is nil on the generated pass.
func (t *Task) fillTrack(ctx context.Context, ev *Event, trigClasses []string, vars []float64, reco *Track) {
	for _, trig := range trigClasses {
		identifier := TriggerIdentifier(trig)

		if agg, ok := t.svc.GetOrCreate(ctx, identifier, catalog.NEvents); ok {
			t.check(agg.Fill(1, 1), identifier, catalog.NEvents)
		}

		if reco != nil && !t.trackCuts.MatchesPtCut(*reco, t.eventCuts.PtCutLevel(trig)) {
			continue
		}

		sparseID := CentralityIdentifier(trig, ev.Centrality)
		if agg, ok := t.svc.GetOrCreate(ctx, sparseID, catalog.MuSparse); ok {
			t.check(agg.FillSparse(vars, 1), sparseID, catalog.MuSparse)
		}
	}
}

func (t *Task) check(err error, identifier, name string) {
	if err == nil {
		return
	}

	t.fillErrors.Add(1)
	t.logger.Error("fill failed",
		zap.String("identifier", identifier),
		zap.String("name", name),
		zap.Error(err))
}

// muonVars orders the track variables as the MuSparse axes. Charge is
// given in units of e/3.
func muonVars(pt, eta float64, charge int, phi float64) []float64 {
	vars := make([]float64, 4) //nolint:mnd
	vars[catalog.VarPt] = pt
	vars[catalog.VarEta] = eta
	vars[catalog.VarCharge] = float64(charge) / 3
	vars[catalog.VarPhi] = phi

	return vars
}
