package pipeline

import (
	"context"
	"sync"

	"bahamut/pkg/document"
	"bahamut/pkg/enricher"
	"bahamut/pkg/hierarchy"
	"bahamut/pkg/mapper"
	"bahamut/pkg/metrics"
	"bahamut/pkg/popularity"
	"bahamut/pkg/types"
)

// mapJob maps one entity. It returns the documents, or the reason the
// entity was dropped.
type mapJob func() ([]document.Document, string)

type mapResult struct {
	index   int
	docs    []document.Document
	reason  string
	invalid int
}

// mapDocuments turns the graph into enriched documents. Stop places come
// first in hierarchy pre-order, then groups, then topographic places. The
// output order does not depend on the number of workers.
func (p *Pipeline) mapDocuments(ctx context.Context, graph *types.EntityGraph, nodes []*hierarchy.Node, cache popularity.Cache, enrich *enricher.Enricher) ([]document.Document, map[string]int) {
	jobs := p.mapJobs(graph, nodes, cache)
	if len(jobs) == 0 {
		return nil, map[string]int{}
	}

	indexes := make(chan int)
	results := make(chan mapResult, len(jobs))

	var wg sync.WaitGroup
	for w := 0; w < p.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				done := metrics.TrackInFlight(ctx)
				docs, reason := jobs[i]()

				r := mapResult{index: i, reason: reason}
				for _, doc := range docs {
					doc = enrich.Enrich(doc)
					if !doc.Valid() {
						r.invalid++
						continue
					}
					r.docs = append(r.docs, doc)
				}
				results <- r
				done()
			}
		}()
	}

feed:
	for i := range jobs {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()
	close(results)

	ordered := make([]mapResult, len(jobs))
	for r := range results {
		ordered[r.index] = r
	}

	var docs []document.Document
	dropped := map[string]int{}
	for _, r := range ordered {
		if r.reason != "" {
			dropped[r.reason]++
		}
		if r.invalid > 0 {
			dropped[DropInvalid] += r.invalid
		}
		docs = append(docs, r.docs...)
	}
	return docs, dropped
}

// mapJobs queues one job per entity. nodes is the pre-order list from
// hierarchy.Build and already holds every descendant.
func (p *Pipeline) mapJobs(graph *types.EntityGraph, nodes []*hierarchy.Node, cache popularity.Cache) []mapJob {
	opts := p.config.Mapper
	var jobs []mapJob

	stopPlaces := mapper.NewStopPlaceMapper(opts)
	for _, node := range nodes {
		node := node
		jobs = append(jobs, func() ([]document.Document, string) {
			if reason := stopPlaces.DropReason(node); reason != "" {
				return nil, reason
			}
			return stopPlaces.Map(node, cache), ""
		})
	}

	if opts.IncludeGroups {
		groups := mapper.NewGroupMapper(opts, p.scorer)
		for i := range graph.GroupsOfStopPlaces {
			gos := &graph.GroupsOfStopPlaces[i]
			jobs = append(jobs, func() ([]document.Document, string) {
				if reason := groups.DropReason(gos); reason != "" {
					return nil, reason
				}
				return groups.Map(gos, cache), ""
			})
		}
	}

	if opts.IncludeTopographic {
		topographic := mapper.NewTopographicMapper(opts)
		for i := range graph.TopographicPlaces {
			tp := &graph.TopographicPlaces[i]
			jobs = append(jobs, func() ([]document.Document, string) {
				if reason := topographic.DropReason(tp); reason != "" {
					return nil, reason
				}
				return topographic.Map(tp), ""
			})
		}
	}

	return jobs
}
