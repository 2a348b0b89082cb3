package mapper

import (
	"bahamut/pkg/adminunits"
	"bahamut/pkg/document"
	"bahamut/pkg/popularity"
	"bahamut/pkg/types"

	"github.com/paulmach/orb/planar"
)

var layerByTopographicType = map[string]string{
	types.TopographicMunicipality: document.LayerLocality,
	types.TopographicCounty:       document.LayerCounty,
}

type TopographicMapper struct {
	opts Options
}

func NewTopographicMapper(opts Options) *TopographicMapper {
	return &TopographicMapper{opts: opts.withDefaults()}
}

func (m *TopographicMapper) DropReason(tp *types.TopographicPlace) string {
	switch {
	case !m.opts.IncludeTopographic:
		return DropDisabled
	case layerByTopographicType[tp.TopographicPlaceType] == "":
		return DropUnmappedType
	case !types.AnyValidAt(tp.ValidBetween, m.opts.Now()):
		return DropNotCurrent
	case topographicCenter(tp) == nil:
		return DropNoCenterPoint
	case len(topographicNames(tp)) == 0:
		return DropNoName
	}
	return ""
}

func (m *TopographicMapper) Map(tp *types.TopographicPlace) []document.Document {
	if m.DropReason(tp) != "" {
		return nil
	}

	layer := layerByTopographicType[tp.TopographicPlaceType]
	names := topographicNames(tp)
	docs := make([]document.Document, 0, len(names))
	for i, name := range names {
		doc := document.New(layer, sourceID(tp.ID, i))
		doc.SetDefaultName(name.Value)
		addDisplayName(&doc, topographicDisplayName(tp))
		for _, d := range tp.AlternativeDescriptors {
			if d.Value != "" && d.Lang != "" {
				doc.AddName(d.Lang, d.Value)
			}
		}
		addDescription(&doc, tp.Description, m.opts.DefaultLanguage)
		doc.CenterPoint = topographicCenter(tp)
		doc.Polygon = tp.Polygon
		doc.NotAnAddress(tp.ID)
		doc.Popularity = popularity.AdminUnitPopularity
		docs = append(docs, doc)
	}
	return docs
}

func topographicDisplayName(tp *types.TopographicPlace) *types.MultilingualString {
	if !tp.Name.IsZero() {
		return tp.Name
	}
	return tp.DescriptorName
}

func topographicNames(tp *types.TopographicPlace) []*types.MultilingualString {
	names := []*types.MultilingualString{topographicDisplayName(tp)}
	for i := range tp.AlternativeDescriptors {
		if d := &tp.AlternativeDescriptors[i]; d.Lang != "" {
			names = append(names, d)
		}
	}
	return uniqueNames(names)
}

// topographicCenter uses the centroid when given, else the area centroid
// of the boundary.
func topographicCenter(tp *types.TopographicPlace) *types.GeoPoint {
	if tp.Centroid != nil {
		return center(tp.Centroid)
	}
	if tp.Polygon == nil || len(tp.Polygon.Exterior) < 3 {
		return nil
	}
	c, area := planar.CentroidArea(adminunits.ToOrbPolygon(tp.Polygon))
	if area == 0 {
		return nil
	}
	return &types.GeoPoint{Lat: c.Lat(), Lon: c.Lon()}
}
