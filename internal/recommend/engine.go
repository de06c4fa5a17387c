package recommend

import (
	"sort"

	"github.com/pot-code/lesson-tutor/internal/catalog"
)

// DefaultLimit maximum number of recommendations
const DefaultLimit = 3

// Engine ranks catalog lessons by description similarity to the anchor lesson
type Engine struct {
	catalog *catalog.Catalog
	limit   int
}

// NewEngine create a recommendation engine over c
func NewEngine(c *catalog.Catalog) *Engine {
	return &Engine{catalog: c, limit: DefaultLimit}
}

// Recommend returns up to three lesson IDs ordered by similarity to the last
// completed lesson, skipping lessons already completed.
func (e *Engine) Recommend(completed []string) []string {
	ids := e.catalog.IDs()
	if len(completed) == 0 {
		return e.head(ids)
	}
	anchor := e.catalog.IndexOf(completed[len(completed)-1])
	if anchor < 0 {
		return e.head(ids)
	}

	// vectors are rebuilt on every call, the catalog is tiny
	vectors := Vectorize(e.catalog.Descriptions())
	type scored struct {
		id    string
		score float64
	}
	ranked := make([]scored, len(ids))
	for i, id := range ids {
		ranked[i] = scored{id, Cosine(vectors[anchor], vectors[i])}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	done := make(map[string]struct{}, len(completed))
	for _, id := range completed {
		done[id] = struct{}{}
	}
	result := make([]string, 0, e.limit)
	for _, r := range ranked {
		if _, ok := done[r.id]; ok {
			continue
		}
		result = append(result, r.id)
		if len(result) == e.limit {
			break
		}
	}
	return result
}

func (e *Engine) head(ids []string) []string {
	if len(ids) > e.limit {
		ids = ids[:e.limit]
	}
	return ids
}
