package evidence

import (
	"fmt"
	"sort"
)

// Collection names one of the disjoint vector collections.
type Collection string

const (
	// Products holds catalog item chunks.
	Products Collection = "products"
	// Reviews holds customer review chunks.
	Reviews Collection = "reviews"
	// Policies holds store policy and FAQ chunks.
	Policies Collection = "policies"
)

// Collections lists every known collection.
var Collections = []Collection{Products, Reviews, Policies}

// ParseCollection converts a string into a Collection.
func ParseCollection(s string) (Collection, error) {
	switch Collection(s) {
	case Products, Reviews, Policies:
		return Collection(s), nil
	default:
		return "", fmt.Errorf("unknown collection %q", s)
	}
}

// SourceIDField returns the payload field identifying the source record of a chunk.
// Empty for collections whose chunks are not de-duplicated.
func (c Collection) SourceIDField() string {
	switch c {
	case Products:
		return "product_id"
	case Reviews:
		return "review_id"
	default:
		return ""
	}
}

// Item is a single retrieved chunk with its similarity score.
type Item struct {
	id         string
	collection Collection
	score      float64
	payload    map[string]string
}

// NewItem creates an evidence item. Score is clamped to [0,1].
func NewItem(id string, c Collection, score float64, payload map[string]string) Item {
	if payload == nil {
		payload = map[string]string{}
	}
	return Item{id: id, collection: c, score: min(max(score, 0), 1), payload: payload}
}

// ID returns the chunk key.
func (i Item) ID() string { return i.id }

// Collection returns the collection the chunk came from.
func (i Item) Collection() Collection { return i.collection }

// Score returns the similarity in [0,1], higher is more similar.
func (i Item) Score() float64 { return i.score }

// Payload returns the stored chunk fields.
func (i Item) Payload() map[string]string { return i.payload }

// Field returns a single payload field.
func (i Item) Field(name string) string { return i.payload[name] }

// SourceID returns the identifier of the record the chunk was cut from, falling back to the chunk key.
func (i Item) SourceID() string {
	if f := i.collection.SourceIDField(); f != "" {
		if v := i.payload[f]; v != "" {
			return v
		}
	}
	return i.id
}

// SortByScore orders items by descending score. Equal scores keep their input order.
func SortByScore(items []Item) {
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].score > items[b].score
	})
}

// DedupBySource keeps the first (highest-ranked) chunk of every source record and caps the result at limit.
// Collections without a source field are only capped.
func DedupBySource(items []Item, limit int) []Item {
	out := make([]Item, 0, min(len(items), max(limit, 0)))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if len(out) >= limit {
			break
		}
		if it.collection.SourceIDField() != "" {
			src := it.SourceID()
			if _, dup := seen[src]; dup {
				continue
			}
			seen[src] = struct{}{}
		}
		out = append(out, it)
	}
	return out
}
