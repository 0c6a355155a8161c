// Package registry loads the roster of enabled experts and price sources
// from a YAML file and answers which sources apply to a category.
package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/attic-market/appraisal/internal/model"
)

// defaultCacheTTLHours applies to roster entries that don't set their own.
const defaultCacheTTLHours = 24

// ExpertEntry enables one expert analyzer. An empty category list means
// the expert examines everything.
type ExpertEntry struct {
	Name          string           `yaml:"name"`
	Categories    []model.Category `yaml:"categories,omitempty"`
	Cacheable     bool             `yaml:"cacheable"`
	CacheTTLHours int              `yaml:"cache_ttl_hours,omitempty"`
}

// PriceSourceEntry enables one marketplace/catalog price source for the
// listed categories. Price lookups are always cached.
type PriceSourceEntry struct {
	Name          string           `yaml:"name"`
	Categories    []model.Category `yaml:"categories,omitempty"`
	CacheTTLHours int              `yaml:"cache_ttl_hours,omitempty"`
}

// Roster is the full set of enabled sources.
type Roster struct {
	Experts      []ExpertEntry      `yaml:"experts"`
	PriceSources []PriceSourceEntry `yaml:"price_sources"`
}

// Load reads a roster from a YAML file, applying TTL defaults and
// validating that every entry is named uniquely.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read roster %s", path)
	}

	// The YAML has a top-level "sources" key.
	var wrapper struct {
		Sources Roster `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "registry: parse roster")
	}

	roster := &wrapper.Sources
	if err := roster.validate(); err != nil {
		return nil, err
	}
	roster.applyDefaults()
	return roster, nil
}

func (r *Roster) validate() error {
	seen := make(map[string]bool)
	for _, e := range r.Experts {
		if e.Name == "" {
			return eris.New("registry: expert entry missing name")
		}
		if seen[e.Name] {
			return eris.Errorf("registry: duplicate source name %q", e.Name)
		}
		seen[e.Name] = true
	}
	for _, p := range r.PriceSources {
		if p.Name == "" {
			return eris.New("registry: price source entry missing name")
		}
		if seen[p.Name] {
			return eris.Errorf("registry: duplicate source name %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

func (r *Roster) applyDefaults() {
	for i := range r.Experts {
		if r.Experts[i].CacheTTLHours <= 0 {
			r.Experts[i].CacheTTLHours = defaultCacheTTLHours
		}
	}
	for i := range r.PriceSources {
		if r.PriceSources[i].CacheTTLHours <= 0 {
			r.PriceSources[i].CacheTTLHours = defaultCacheTTLHours
		}
	}
}

// ExpertsFor returns the experts applicable to the given category hint.
// An empty hint matches every expert (the consensus decides the category).
func (r *Roster) ExpertsFor(cat model.Category) []ExpertEntry {
	var out []ExpertEntry
	for _, e := range r.Experts {
		if cat == "" || matches(e.Categories, cat) {
			out = append(out, e)
		}
	}
	return out
}

// PriceSourcesFor returns the price sources covering the category chosen
// by consensus.
func (r *Roster) PriceSourcesFor(cat model.Category) []PriceSourceEntry {
	var out []PriceSourceEntry
	for _, p := range r.PriceSources {
		if matches(p.Categories, cat) {
			out = append(out, p)
		}
	}
	return out
}

// matches treats an empty category list as "all categories".
func matches(categories []model.Category, cat model.Category) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if c == cat {
			return true
		}
	}
	return false
}
