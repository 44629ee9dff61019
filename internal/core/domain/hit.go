package domain

import "sort"

// Hit is one retrieved item. ID is the fusion join key and must be stable
// across retrieval branches for the same document. Relevance is overwritten
// during fusion.
type Hit struct {
	ID        string         `json:"id"`
	Relevance float64        `json:"relevance"`
	Auxiliary bool           `json:"auxiliary,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// HitList is an ordered collection of hits. Before sorting, order is the
// backend-assigned rank (first element = rank 1).
type HitList struct {
	hits []*Hit
	byID map[string]*Hit
}

func NewHitList() *HitList {
	return &HitList{byID: make(map[string]*Hit)}
}

func (l *HitList) Add(h *Hit) {
	if h == nil {
		return
	}
	l.hits = append(l.hits, h)
	if h.ID != "" {
		l.byID[h.ID] = h
	}
}

func (l *HitList) Get(id string) *Hit {
	return l.byID[id]
}

func (l *HitList) Len() int {
	return len(l.hits)
}

func (l *HitList) Hits() []*Hit {
	return l.hits
}

// Sort orders hits by relevance descending. Equal scores keep insertion
// order, which is the documented deterministic tie-break.
func (l *HitList) Sort() {
	sort.SliceStable(l.hits, func(i, j int) bool {
		return l.hits[i].Relevance > l.hits[j].Relevance
	})
}

// Trim keeps the first n hits.
func (l *HitList) Trim(n int) {
	if n < 0 {
		n = 0
	}
	if len(l.hits) <= n {
		return
	}
	for _, h := range l.hits[n:] {
		if h.ID != "" {
			delete(l.byID, h.ID)
		}
	}
	l.hits = l.hits[:n]
}
