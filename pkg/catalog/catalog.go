// Package catalog holds the dispatch table that decides which aggregate is
// materialized for an object name.
//
// The default table carries the binning used by the single-muon v1 analysis.
// Downstream consumers compare histograms bin by bin, so those values must not
// change; a different table can be loaded from YAML for other analyses.
package catalog

import (
	"math"
	"os"
	"sort"
	"strings"

	"github.com/hyp3rd/ewrap"
	"gopkg.in/yaml.v3"

	"github.com/hyp3rd/histcache/internal/sentinel"
	"github.com/hyp3rd/histcache/pkg/aggregate"
)

// Object names of the default table.
const (
	NEvents       = "nevents"
	NormQA        = "hNormQA"
	NormQB        = "hNormQB"
	ScalProdQAQB  = "hScalProdQAQB"
	MuSparse      = "MuSparse"
	sparseVarsLen = 4
)

// Indexes of the MuSparse axes.
const (
	VarPt = iota
	VarEta
	VarCharge
	VarPhi
)

// Entry describes the aggregate built for one object name.
type Entry struct {
	Name  string           `json:"name"           yaml:"name"`
	Title string           `json:"title,omitempty" yaml:"title,omitempty"`
	Kind  aggregate.Kind   `json:"kind"           yaml:"kind"`
	Axes  []aggregate.Axis `json:"axes,omitempty" yaml:"axes,omitempty"`
}

// Validate checks that the entry can build an aggregate.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ewrap.Wrap(sentinel.ErrInvalidCatalog, "entry without name")
	}

	_, err := e.Build()
	if err != nil {
		return ewrap.Wrapf(sentinel.ErrInvalidCatalog, "entry %q: %v", e.Name, err)
	}

	return nil
}

// Build materializes a fresh aggregate for the entry.
func (e Entry) Build() (*aggregate.Aggregate, error) {
	return aggregate.New(e.Name, e.Kind, e.Axes...)
}

// Catalog is an immutable name to entry mapping.
type Catalog struct {
	entries map[string]Entry
}

// New builds a catalog from entries. Names must be unique.
func New(entries ...Entry) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]Entry, len(entries))}

	for _, e := range entries {
		err := e.Validate()
		if err != nil {
			return nil, err
		}

		if _, dup := c.entries[e.Name]; dup {
			return nil, ewrap.Wrapf(sentinel.ErrInvalidCatalog, "duplicate entry %q", e.Name)
		}

		c.entries[e.Name] = e
	}

	return c, nil
}

// Default returns the catalog of the single-muon v1 analysis.
func Default() *Catalog {
	c, err := New(DefaultEntries()...)
	if err != nil {
		// the default entries are static and always valid
		panic(err)
	}

	return c
}

// DefaultEntries returns the entries of the default table.
func DefaultEntries() []Entry {
	norm := aggregate.Axis{Name: "norm", Bins: 100, Min: 0, Max: 1}

	return []Entry{
		{Name: NEvents, Title: "nevents", Kind: aggregate.KindCounter},
		{Name: NormQA, Title: "QA flow vector norm", Kind: aggregate.KindDistribution, Axes: []aggregate.Axis{norm}},
		{Name: NormQB, Title: "QB flow vector norm", Kind: aggregate.KindDistribution, Axes: []aggregate.Axis{norm}},
		{
			Name:  ScalProdQAQB,
			Title: "QA.QB vs centrality",
			Kind:  aggregate.KindProfile,
			Axes:  []aggregate.Axis{{Name: "centrality", Bins: 25, Min: 0, Max: 100}},
		},
		{Name: MuSparse, Title: "Sparse for muons", Kind: aggregate.KindSparse, Axes: MuonAxes()},
	}
}

// MuonAxes returns the axes of the muon sparse histogram, ordered as VarPt, VarEta, VarCharge, VarPhi.
func MuonAxes() []aggregate.Axis {
	axes := make([]aggregate.Axis, sparseVarsLen)
	axes[VarPt] = aggregate.Axis{Name: "Pt", Title: "p_{t} (GeV/c)", Bins: 160, Min: 0, Max: 80}
	axes[VarEta] = aggregate.Axis{Name: "Eta", Title: "#eta", Bins: 25, Min: -4.5, Max: -2}
	axes[VarCharge] = aggregate.Axis{Name: "Charge", Title: "charge (e)", Bins: 2, Min: -2, Max: 2}
	axes[VarPhi] = aggregate.Axis{Name: "Phi", Title: "#phi (rad)", Bins: 36, Min: 0, Max: 2 * math.Pi}

	return axes
}

// Lookup returns the entry for name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	e, ok := c.entries[name]

	return e, ok
}

// Build materializes a fresh aggregate for name.
func (c *Catalog) Build(name string) (*aggregate.Aggregate, error) {
	e, ok := c.entries[name]
	if !ok {
		return nil, ewrap.Wrap(sentinel.ErrUnknownObject, name)
	}

	return e.Build()
}

// Names returns the catalog names in lexical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Entries returns the entries in lexical name order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, name := range c.Names() {
		out = append(out, c.entries[name])
	}

	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

type file struct {
	Objects []Entry `yaml:"objects"`
}

// Parse reads a catalog from YAML of the form:
//
//	objects:
//	  - name: nevents
//	    kind: counter
//	  - name: hNormQA
//	    kind: distribution
//	    axes: [{name: norm, bins: 100, min: 0, max: 1}]
func Parse(data []byte) (*Catalog, error) {
	var f file

	err := yaml.Unmarshal(data, &f)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to unmarshal catalog YAML")
	}

	return New(f.Objects...)
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to read catalog file")
	}

	return Parse(data)
}
