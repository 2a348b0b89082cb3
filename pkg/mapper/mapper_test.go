package mapper

import (
	"math"
	"reflect"
	"testing"
	"time"

	"bahamut/pkg/document"
	"bahamut/pkg/hierarchy"
	"bahamut/pkg/popularity"
	"bahamut/pkg/types"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return now }
	return opts
}

func ms(value, lang string) *types.MultilingualString {
	return &types.MultilingualString{Value: value, Lang: lang}
}

func alt(nameType types.NameType, value, lang string) types.AlternativeName {
	return types.AlternativeName{NameType: nameType, Name: ms(value, lang)}
}

func buildNodes(t *testing.T, places ...types.StopPlace) []*hierarchy.Node {
	t.Helper()
	nodes, err := hierarchy.Build(places)
	if err != nil {
		t.Fatalf("hierarchy.Build failed: %v", err)
	}
	return nodes
}

func osloS() types.StopPlace {
	return types.StopPlace{
		ID:       "NSR:StopPlace:337",
		Name:     ms("Oslo S", ""),
		Centroid: &types.GeoPoint{Lat: 59.910, Lon: 10.753},
		Quays:    []string{"NSR:Quay:1"},
		StopType: types.StopTypeRailStation,
		AlternativeNames: []types.AlternativeName{
			alt(types.NameTypeLabel, "Oslo Sentralstasjon", ""),
		},
		TariffZoneRefs:      []string{"RUT:TariffZone:1", "RUT:TariffZone:2", "BRA:TariffZone:9"},
		TopographicPlaceRef: "KVE:TopographicPlace:0301",
	}
}

func TestStopPlaceMapper_NameVariants(t *testing.T) {
	nodes := buildNodes(t, osloS())
	cache := popularity.Cache{"NSR:StopPlace:337": 2000}

	docs := NewStopPlaceMapper(testOptions()).Map(nodes[0], cache)
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}

	if docs[0].SourceID != "NSR:StopPlace:337" || docs[1].SourceID != "NSR:StopPlace:337-1" {
		t.Errorf("Unexpected source ids %q, %q", docs[0].SourceID, docs[1].SourceID)
	}
	if docs[0].DefaultName() != "Oslo S" || docs[1].DefaultName() != "Oslo Sentralstasjon" {
		t.Errorf("Unexpected default names %q, %q", docs[0].DefaultName(), docs[1].DefaultName())
	}
	for _, d := range docs {
		if d.Layer != document.LayerStopPlace {
			t.Errorf("Expected layer stop_place, got %q", d.Layer)
		}
		if d.Popularity != 2000 {
			t.Errorf("Expected popularity 2000, got %d", d.Popularity)
		}
		if !reflect.DeepEqual(d.Categories, []string{"railStation"}) {
			t.Errorf("Unexpected categories %v", d.Categories)
		}
		if d.DisplayName != "Oslo S" {
			t.Errorf("Expected display name 'Oslo S', got %q", d.DisplayName)
		}
		if d.AddressParts.Street != "NOT_AN_ADDRESS-NSR:StopPlace:337" {
			t.Errorf("Unexpected street %q", d.AddressParts.Street)
		}
		if d.DefaultAlias() != "Oslo Sentralstasjon" {
			t.Errorf("Expected default alias, got %q", d.DefaultAlias())
		}
		if !reflect.DeepEqual(d.TariffZoneAuthorities, []string{"RUT", "BRA"}) {
			t.Errorf("Unexpected authorities %v", d.TariffZoneAuthorities)
		}
		if d.Parent.ID(document.Locality) != "KVE:TopographicPlace:0301" {
			t.Errorf("Expected locality seeded from topographic ref, got %q", d.Parent.ID(document.Locality))
		}
	}
}

func TestStopPlaceMapper_Hierarchy(t *testing.T) {
	parent := types.StopPlace{
		ID:       "NSR:StopPlace:parent",
		Name:     ms("Lillestrøm", "nor"),
		Centroid: &types.GeoPoint{Lat: 59.95, Lon: 11.04},
		KeyValues: map[string]string{
			types.KeyIsParentStopPlace: "true",
		},
		AlternativeNames: []types.AlternativeName{
			alt(types.NameTypeLabel, "LLS", "en"),
			alt(types.NameTypeLabel, "Lillestrøm st", "no"),
		},
	}
	rail := types.StopPlace{
		ID:        "NSR:StopPlace:rail",
		ParentRef: parent.ID,
		Centroid:  &types.GeoPoint{Lat: 59.95, Lon: 11.04},
		Quays:     []string{"NSR:Quay:2"},
		StopType:  types.StopTypeRailStation,
		AlternativeNames: []types.AlternativeName{
			alt(types.NameTypeTranslation, "Lillestrom station", "en"),
		},
	}
	bus := types.StopPlace{
		ID:        "NSR:StopPlace:bus",
		ParentRef: parent.ID,
		Name:      ms("Lillestrøm bussterminal", ""),
		Centroid:  &types.GeoPoint{Lat: 59.95, Lon: 11.05},
		Quays:     []string{"NSR:Quay:3"},
		StopType:  types.StopTypeBusStation,
	}

	nodes := buildNodes(t, parent, rail, bus)
	m := NewStopPlaceMapper(testOptions())

	parentDocs := m.Map(nodes[0], popularity.Cache{})
	if parentDocs[0].Layer != document.LayerStopPlaceParent {
		t.Errorf("Expected parent layer, got %q", parentDocs[0].Layer)
	}
	if !reflect.DeepEqual(parentDocs[0].Categories, []string{"railStation", "busStation"}) {
		t.Errorf("Unexpected aggregated categories %v", parentDocs[0].Categories)
	}
	var gotNames []string
	for _, d := range parentDocs {
		gotNames = append(gotNames, d.DefaultName())
	}
	wantNames := []string{"Lillestrøm", "LLS", "Lillestrøm st", "Lillestrom station", "Lillestrøm bussterminal"}
	if !reflect.DeepEqual(gotNames, wantNames) {
		t.Errorf("Unexpected name variants\n got: %v\nwant: %v", gotNames, wantNames)
	}
	if parentDocs[0].Names["nor"] != "Lillestrøm" {
		t.Errorf("Expected display name mirrored under its language, got %v", parentDocs[0].Names)
	}
	if parentDocs[0].DefaultAlias() != "Lillestrøm st" {
		t.Errorf("Expected default alias from default language, got %q", parentDocs[0].DefaultAlias())
	}

	railDocs := m.Map(nodes[1], popularity.Cache{})
	if railDocs[0].Layer != document.LayerStopPlaceChild {
		t.Errorf("Expected child layer, got %q", railDocs[0].Layer)
	}
	if railDocs[0].DisplayName != "Lillestrøm" {
		t.Errorf("Expected display name inherited from parent, got %q", railDocs[0].DisplayName)
	}
	if railDocs[0].Names["en"] != "Lillestrom station" {
		t.Errorf("Expected translation under en, got %v", railDocs[0].Names)
	}
	if railDocs[0].Aliases["en"] != "LLS" {
		t.Errorf("Expected aliases inherited from parent, got %v", railDocs[0].Aliases)
	}
	if railDocs[0].Popularity != document.DefaultPopularity {
		t.Errorf("Expected default popularity without cache entry, got %d", railDocs[0].Popularity)
	}
}

func TestStopPlaceMapper_DefaultAliasFallsBackToSortedKey(t *testing.T) {
	place := osloS()
	place.AlternativeNames = []types.AlternativeName{
		alt(types.NameTypeLabel, "Zeta", "sv"),
		alt(types.NameTypeLabel, "Alpha", "en"),
	}
	nodes := buildNodes(t, place)

	docs := NewStopPlaceMapper(testOptions()).Map(nodes[0], popularity.Cache{})
	if docs[0].DefaultAlias() != "Alpha" {
		t.Errorf("Expected default alias of first sorted key, got %q", docs[0].DefaultAlias())
	}
}

func TestStopPlaceMapper_Eligibility(t *testing.T) {
	future := now.AddDate(0, 1, 0)

	tests := []struct {
		name   string
		modify func(p *types.StopPlace)
		reason string
	}{
		{"eligible", func(p *types.StopPlace) {}, ""},
		{"rail replacement bus", func(p *types.StopPlace) {
			p.TransportMode = types.TransportModeBus
			p.Submodes = map[types.SubmodeKind]string{types.SubmodeBus: types.BusSubmodeRailReplace}
		}, DropRailReplacement},
		{"no quays", func(p *types.StopPlace) { p.Quays = nil }, DropNoQuays},
		{"no quays but parent", func(p *types.StopPlace) {
			p.Quays = nil
			p.KeyValues = map[string]string{types.KeyIsParentStopPlace: "TRUE"}
		}, ""},
		{"not yet valid", func(p *types.StopPlace) {
			p.ValidBetween = []types.ValidBetween{{FromDate: &future}}
		}, DropNotCurrent},
		{"no centroid", func(p *types.StopPlace) { p.Centroid = nil }, DropNoCenterPoint},
		{"no names", func(p *types.StopPlace) {
			p.Name = nil
			p.AlternativeNames = nil
		}, DropNoName},
	}

	m := NewStopPlaceMapper(testOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			place := osloS()
			tt.modify(&place)
			nodes := buildNodes(t, place)

			if got := m.DropReason(nodes[0]); got != tt.reason {
				t.Errorf("Expected drop reason %q, got %q", tt.reason, got)
			}
			docs := m.Map(nodes[0], popularity.Cache{})
			if (tt.reason == "") != (len(docs) > 0) {
				t.Errorf("Expected documents only when eligible, got %d", len(docs))
			}
		})
	}
}

func TestStopPlaceMapper_Deterministic(t *testing.T) {
	nodes := buildNodes(t, osloS())
	cache := popularity.Cache{"NSR:StopPlace:337": 42}
	m := NewStopPlaceMapper(testOptions())

	first := m.Map(nodes[0], cache)
	second := m.Map(nodes[0], cache)
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical documents on repeated mapping")
	}
}

func newScorer(t *testing.T, boost float64) *popularity.Scorer {
	t.Helper()
	cfg := popularity.DefaultConfig()
	cfg.GroupBoostFactor = boost
	s, err := popularity.NewScorer(cfg)
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}
	return s
}

func TestGroupMapper_Map(t *testing.T) {
	gos := &types.GroupOfStopPlaces{
		ID:          "NSR:GroupOfStopPlaces:1",
		Name:        ms("Oslo", ""),
		Description: ms("Alle stopp i Oslo", ""),
		AlternativeNames: []types.AlternativeName{
			alt(types.NameTypeTranslation, "Oslo", "en"),
			alt(types.NameTypeOther, "Christiania", "nor"),
			alt(types.NameTypeLabel, "Unlabelled", ""),
		},
		Centroid: &types.GeoPoint{Lat: 59.91, Lon: 10.75},
		Members:  []string{"NSR:StopPlace:1", "NSR:StopPlace:2"},
	}
	cache := popularity.Cache{"NSR:StopPlace:1": 100, "NSR:StopPlace:2": 50}

	docs := NewGroupMapper(testOptions(), newScorer(t, 2.0)).Map(gos, cache)
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}
	if docs[1].SourceID != "NSR:GroupOfStopPlaces:1-1" || docs[1].DefaultName() != "Christiania" {
		t.Errorf("Unexpected second document %q %q", docs[1].SourceID, docs[1].DefaultName())
	}
	for _, d := range docs {
		if d.Popularity != 10000 {
			t.Errorf("Expected popularity 10000, got %d", d.Popularity)
		}
		if d.Layer != document.LayerGroupOfStopPlaces {
			t.Errorf("Unexpected layer %q", d.Layer)
		}
		if !reflect.DeepEqual(d.Categories, []string{GroupCategory}) {
			t.Errorf("Unexpected categories %v", d.Categories)
		}
		if d.Descriptions["no"] != "Alle stopp i Oslo" {
			t.Errorf("Expected description under default language, got %v", d.Descriptions)
		}
	}
}

func TestGroupMapper_NoMembersKeepsDefaultPopularity(t *testing.T) {
	gos := &types.GroupOfStopPlaces{
		ID:       "NSR:GroupOfStopPlaces:2",
		Name:     ms("Bergen", ""),
		Centroid: &types.GeoPoint{Lat: 60.39, Lon: 5.32},
	}

	docs := NewGroupMapper(testOptions(), newScorer(t, 2.0)).Map(gos, popularity.Cache{})
	if len(docs) != 1 || docs[0].Popularity != document.DefaultPopularity {
		t.Fatalf("Expected one document with default popularity, got %+v", docs)
	}
}

func TestGroupMapper_Disabled(t *testing.T) {
	opts := testOptions()
	opts.IncludeGroups = false
	gos := &types.GroupOfStopPlaces{ID: "g", Name: ms("G", ""), Centroid: &types.GeoPoint{}}

	m := NewGroupMapper(opts, newScorer(t, 1.0))
	if got := m.DropReason(gos); got != DropDisabled {
		t.Errorf("Expected disabled, got %q", got)
	}
	if docs := m.Map(gos, popularity.Cache{}); len(docs) != 0 {
		t.Errorf("Expected no documents, got %d", len(docs))
	}
}

func TestTopographicMapper_Map(t *testing.T) {
	tp := &types.TopographicPlace{
		ID:                   "KVE:TopographicPlace:0301",
		DescriptorName:       ms("Oslo", ""),
		TopographicPlaceType: types.TopographicMunicipality,
		AlternativeDescriptors: []types.MultilingualString{
			{Value: "Oslo", Lang: "en"},
			{Value: "Oslove", Lang: "sma"},
			{Value: "NoLang"},
		},
		Polygon: &types.Polygon{Exterior: types.Ring{{10, 59}, {12, 59}, {12, 61}, {10, 61}, {10, 59}}},
	}

	docs := NewTopographicMapper(testOptions()).Map(tp)
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}
	d := docs[0]
	if d.Layer != document.LayerLocality {
		t.Errorf("Expected locality layer, got %q", d.Layer)
	}
	if d.DisplayName != "Oslo" {
		t.Errorf("Expected display name from descriptor, got %q", d.DisplayName)
	}
	if d.Names["sma"] != "Oslove" {
		t.Errorf("Expected descriptor translation, got %v", d.Names)
	}
	if d.CenterPoint == nil || math.Abs(d.CenterPoint.Lat-60) > 1e-9 || math.Abs(d.CenterPoint.Lon-11) > 1e-9 {
		t.Errorf("Expected area centroid (60, 11), got %+v", d.CenterPoint)
	}
	if d.Popularity != popularity.AdminUnitPopularity {
		t.Errorf("Expected admin unit popularity, got %d", d.Popularity)
	}
	if d.Polygon == nil {
		t.Error("Expected polygon on document")
	}
	if docs[1].SourceID != "KVE:TopographicPlace:0301-1" || docs[1].DefaultName() != "Oslove" {
		t.Errorf("Unexpected second document %q %q", docs[1].SourceID, docs[1].DefaultName())
	}
}

func TestTopographicMapper_DropReasons(t *testing.T) {
	m := NewTopographicMapper(testOptions())

	country := &types.TopographicPlace{ID: "c", Name: ms("Norge", ""), TopographicPlaceType: types.TopographicCountry,
		Centroid: &types.GeoPoint{}}
	if got := m.DropReason(country); got != DropUnmappedType {
		t.Errorf("Expected unmapped type, got %q", got)
	}

	county := &types.TopographicPlace{ID: "k", Name: ms("Viken", ""), TopographicPlaceType: types.TopographicCounty}
	if got := m.DropReason(county); got != DropNoCenterPoint {
		t.Errorf("Expected no center point, got %q", got)
	}

	county.Centroid = &types.GeoPoint{Lat: 60, Lon: 10}
	docs := m.Map(county)
	if len(docs) != 1 || docs[0].Layer != document.LayerCounty {
		t.Errorf("Expected one county document, got %+v", docs)
	}
}
