// Package recommend picks a plant from the catalog that fits simple
// household preferences.
package recommend

import (
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/vineetsista/Plant-Care-Assistant/internal/catalog"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/log"
)

// Light preference values.
const (
	LightLow    = "Low"
	LightBright = "Bright"
	LightAny    = "Any"
)

// Answer values for yes/no preferences.
const (
	Yes = "Yes"
	No  = "No"
)

// lightColumns are searched in order; the first one with a match wins.
var lightColumns = []string{catalog.ColIdealLight, catalog.ColToleratedLight}

// Preferences are the answers of the recommendation form.
// Experience and CareTime are recorded but do not filter.
type Preferences struct {
	Light         string
	Experience    string
	HasKidsOrPets string
	CareTime      string
}

// Recommender draws from the filtered catalog with an injected random source.
type Recommender struct {
	mu     sync.Mutex
	rng    *rand.Rand
	logger log.Logger
}

// New creates a Recommender. A nil rng uses a randomly seeded source.
func New(rng *rand.Rand) *Recommender {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Recommender{
		rng:    rng,
		logger: log.GetLoggerWithName("recommend"),
	}
}

// NewSeeded creates a Recommender with a deterministic source.
func NewSeeded(seed uint64) *Recommender {
	return New(rand.New(rand.NewPCG(seed, seed)))
}

// Recommend returns one record matching prefs. ok is false only when the
// candidate pool is empty.
func (r *Recommender) Recommend(table *catalog.Table, prefs Preferences) (catalog.Record, bool) {
	pool := table
	if prefs.HasKidsOrPets == Yes {
		pool = pool.Filter(func(rec catalog.Record) bool { return !isToxic(rec) })
	}

	candidates, column := filterByLight(pool, prefs.Light)
	fallback := candidates == nil
	if fallback {
		candidates = pool
	}

	r.logger.Debug("Recommendation requested",
		"pref.light", prefs.Light,
		"pref.experience", prefs.Experience,
		"pref.kids_or_pets", prefs.HasKidsOrPets,
		"pref.care_time", prefs.CareTime,
		"pool", pool.Len(),
		"candidates", candidates.Len(),
		"light_column", column,
		"fallback", fallback,
	)

	if candidates.Len() == 0 {
		return nil, false
	}
	r.mu.Lock()
	i := r.rng.IntN(candidates.Len())
	r.mu.Unlock()
	return candidates.At(i), true
}

// For adapts the recommender to catalog.Catalog.Recommend.
func (r *Recommender) For(prefs Preferences) catalog.SelectorFunc {
	return func(t *catalog.Table) (catalog.Record, bool) {
		return r.Recommend(t, prefs)
	}
}

func isToxic(rec catalog.Record) bool {
	use, _ := rec.String(catalog.ColUse)
	return strings.Contains(strings.ToLower(use), "toxic")
}

// lightNeedle maps a preference to the substring searched for.
// An empty needle means no light filtering.
func lightNeedle(light string) string {
	switch light {
	case LightLow:
		return "low"
	case LightBright:
		return "bright"
	default:
		return ""
	}
}

// filterByLight returns the rows of the first light column with a non-empty
// match and the column used, or nil when no column matches.
func filterByLight(pool *catalog.Table, light string) (*catalog.Table, string) {
	needle := lightNeedle(light)
	for _, col := range lightColumns {
		if !pool.HasColumn(col) {
			continue
		}
		if needle == "" {
			return pool, col
		}
		matched := pool.Filter(func(rec catalog.Record) bool {
			v, _ := rec.String(col)
			return strings.Contains(strings.ToLower(v), needle)
		})
		if matched.Len() > 0 {
			return matched, col
		}
	}
	return nil, ""
}
