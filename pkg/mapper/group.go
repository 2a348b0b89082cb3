package mapper

import (
	"bahamut/pkg/document"
	"bahamut/pkg/popularity"
	"bahamut/pkg/types"
)

// GroupCategory is the single category of group of stop places documents.
const GroupCategory = "GroupOfStopPlaces"

type GroupMapper struct {
	opts   Options
	scorer *popularity.Scorer
}

func NewGroupMapper(opts Options, scorer *popularity.Scorer) *GroupMapper {
	return &GroupMapper{opts: opts.withDefaults(), scorer: scorer}
}

func (m *GroupMapper) DropReason(gos *types.GroupOfStopPlaces) string {
	switch {
	case !m.opts.IncludeGroups:
		return DropDisabled
	case !types.AnyValidAt(gos.ValidBetween, m.opts.Now()):
		return DropNotCurrent
	case gos.Centroid == nil:
		return DropNoCenterPoint
	case len(groupNames(gos)) == 0:
		return DropNoName
	}
	return ""
}

func (m *GroupMapper) Map(gos *types.GroupOfStopPlaces, cache popularity.Cache) []document.Document {
	if m.DropReason(gos) != "" {
		return nil
	}

	pop := document.DefaultPopularity
	if p, ok := m.scorer.Group(gos, cache); ok {
		pop = p
	}

	names := groupNames(gos)
	docs := make([]document.Document, 0, len(names))
	for i, name := range names {
		doc := document.New(document.LayerGroupOfStopPlaces, sourceID(gos.ID, i))
		doc.SetDefaultName(name.Value)
		addDisplayName(&doc, gos.Name)
		addDescription(&doc, gos.Description, m.opts.DefaultLanguage)
		doc.CenterPoint = center(gos.Centroid)
		doc.NotAnAddress(gos.ID)
		doc.Categories = []string{GroupCategory}
		doc.Popularity = pop
		docs = append(docs, doc)
	}
	return docs
}

func groupNames(gos *types.GroupOfStopPlaces) []*types.MultilingualString {
	names := []*types.MultilingualString{gos.Name}
	for _, alt := range gos.AlternativeNames {
		if !alt.Name.IsZero() && alt.Name.Lang != "" {
			names = append(names, alt.Name)
		}
	}
	return uniqueNames(names)
}
