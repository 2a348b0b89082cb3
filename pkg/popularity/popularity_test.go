package popularity

import (
	"math"
	"strings"
	"testing"

	"bahamut/pkg/hierarchy"
	"bahamut/pkg/types"
)

const sampleConfig = `
defaultValue: 1000
stopTypeFactors:
  airport:
    "*": 3
  busStation:
    "*": 2
    localBus: 2.5
  railStation:
    "*": 2
  onstreetBus:
    localBus: 4
interchangeFactors:
  preferredInterchange: 10
groupOfStopPlacesBoostFactor: 2.0
`

func mustScorer(t *testing.T, yml string) *Scorer {
	t.Helper()
	cfg, err := ParseConfig([]byte(yml))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	s, err := NewScorer(cfg)
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}
	return s
}

func build(t *testing.T, places ...types.StopPlace) []*hierarchy.Node {
	t.Helper()
	nodes, err := hierarchy.Build(places)
	if err != nil {
		t.Fatalf("hierarchy.Build failed: %v", err)
	}
	return nodes
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(""))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.DefaultValue != 1000 {
		t.Errorf("Expected default value 1000, got %d", cfg.DefaultValue)
	}
	if cfg.GroupBoostFactor != 1.0 {
		t.Errorf("Expected group boost 1.0, got %v", cfg.GroupBoostFactor)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yml     string
		wantErr string
	}{
		{"malformed yaml", "defaultValue: [", "failed to parse"},
		{"negative default", "defaultValue: -1", "invalid popularity config"},
		{"unknown stop type", "stopTypeFactors:\n  spaceport:\n    \"*\": 2", "unknown stop type"},
		{"unknown weighting", "interchangeFactors:\n  mandatoryInterchange: 2", "invalid popularity config"},
		{"negative factor", "stopTypeFactors:\n  airport:\n    \"*\": -2", "negative factor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yml))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestScorer_StopPlace(t *testing.T) {
	s := mustScorer(t, sampleConfig)

	tests := []struct {
		name  string
		place types.StopPlace
		want  int64
	}{
		{
			name:  "type default factor",
			place: types.StopPlace{ID: "a", StopType: types.StopTypeAirport},
			want:  3000,
		},
		{
			name: "submode override",
			place: types.StopPlace{ID: "b", StopType: types.StopTypeBusStation,
				Submodes: map[types.SubmodeKind]string{types.SubmodeBus: "localBus"}},
			want: 2500,
		},
		{
			name:  "type without star uses 1.0",
			place: types.StopPlace{ID: "c", StopType: types.StopTypeOnstreetBus},
			want:  1000,
		},
		{
			name:  "unconfigured type keeps baseline",
			place: types.StopPlace{ID: "d", StopType: types.StopTypeMetroStation},
			want:  1000,
		},
		{
			name:  "interchange weighting",
			place: types.StopPlace{ID: "e", StopType: types.StopTypeAirport, Weighting: "preferredInterchange"},
			want:  30000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := build(t, tt.place)
			if got := s.StopPlace(nodes[0]); got != tt.want {
				t.Errorf("Expected popularity %d, got %d", tt.want, got)
			}
		})
	}
}

func TestScorer_MultimodalParentSumsChildren(t *testing.T) {
	s := mustScorer(t, sampleConfig)
	nodes := build(t,
		types.StopPlace{ID: "parent"},
		types.StopPlace{ID: "rail", ParentRef: "parent", StopType: types.StopTypeRailStation},
		types.StopPlace{ID: "bus", ParentRef: "parent", StopType: types.StopTypeBusStation},
	)

	// 1000 * (0 + 2 + 2)
	if got := s.StopPlace(nodes[0]); got != 4000 {
		t.Errorf("Expected 4000, got %d", got)
	}
}

func TestScorer_Saturates(t *testing.T) {
	s := mustScorer(t, "defaultValue: 9223372036854775807\nstopTypeFactors:\n  airport:\n    \"*\": 10\n")
	nodes := build(t, types.StopPlace{ID: "a", StopType: types.StopTypeAirport})

	if got := s.StopPlace(nodes[0]); got != math.MaxInt64 {
		t.Errorf("Expected MaxInt64, got %d", got)
	}
}

func TestScorer_Group(t *testing.T) {
	s := mustScorer(t, sampleConfig)
	cache := Cache{"NSR:StopPlace:1": 100, "NSR:StopPlace:2": 50}

	got, ok := s.Group(&types.GroupOfStopPlaces{
		ID:      "NSR:GroupOfStopPlaces:1",
		Members: []string{"NSR:StopPlace:1", "NSR:StopPlace:2", "NSR:StopPlace:missing"},
	}, cache)
	if !ok {
		t.Fatal("Expected group popularity")
	}
	if got != 10000 {
		t.Errorf("Expected 10000, got %d", got)
	}
}

func TestScorer_GroupWithoutMembers(t *testing.T) {
	s := mustScorer(t, sampleConfig)
	if _, ok := s.Group(&types.GroupOfStopPlaces{ID: "g"}, Cache{}); ok {
		t.Error("Expected no popularity for a group without members element")
	}

	got, ok := s.Group(&types.GroupOfStopPlaces{ID: "g", Members: []string{}}, Cache{})
	if !ok || got != 2 {
		t.Errorf("Expected boost times empty product (2, true), got (%d, %v)", got, ok)
	}
}

func TestScorer_GroupOverflowSaturates(t *testing.T) {
	s := mustScorer(t, sampleConfig)
	cache := Cache{"a": math.MaxInt64 / 2, "b": 3}

	got, ok := s.Group(&types.GroupOfStopPlaces{ID: "g", Members: []string{"a", "b"}}, cache)
	if !ok || got != math.MaxInt64 {
		t.Errorf("Expected (MaxInt64, true), got (%d, %v)", got, ok)
	}
}

func TestBuildCache(t *testing.T) {
	s := mustScorer(t, sampleConfig)
	nodes := build(t,
		types.StopPlace{ID: "parent"},
		types.StopPlace{ID: "rail", ParentRef: "parent", StopType: types.StopTypeRailStation},
	)

	cache := s.BuildCache(nodes)
	if p, ok := cache.Get("parent"); !ok || p != 2000 {
		t.Errorf("Expected parent 2000, got %d (%v)", p, ok)
	}
	if p, ok := cache.Get("rail"); !ok || p != 2000 {
		t.Errorf("Expected rail 2000, got %d (%v)", p, ok)
	}
	if _, ok := cache.Get("missing"); ok {
		t.Error("Expected missing id to be absent")
	}
}

func TestSaturate(t *testing.T) {
	if got := saturate(1e30); got != math.MaxInt64 {
		t.Errorf("Expected MaxInt64, got %d", got)
	}
	if got := saturate(math.NaN()); got != 0 {
		t.Errorf("Expected 0 for NaN, got %d", got)
	}
	if got := saturate(12.9); got != 12 {
		t.Errorf("Expected truncation to 12, got %d", got)
	}
}
