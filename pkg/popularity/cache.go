package popularity

import "bahamut/pkg/hierarchy"

// Cache maps stop place ids to popularity.
type Cache map[string]int64

func (c Cache) Get(id string) (int64, bool) {
	p, ok := c[id]
	return p, ok
}

// BuildCache scores every node. Later duplicates of an id win.
func (s *Scorer) BuildCache(nodes []*hierarchy.Node) Cache {
	cache := make(Cache, len(nodes))
	for _, n := range nodes {
		cache[n.Place.ID] = s.StopPlace(n)
	}
	return cache
}
