package popularity

import (
	"math"

	"bahamut/pkg/hierarchy"
	"bahamut/pkg/types"
)

// AdminUnitPopularity is the fixed popularity of locality and county documents.
const AdminUnitPopularity int64 = 1

// submodeKindByStopType tells which submode element applies to a stop type.
var submodeKindByStopType = map[string]types.SubmodeKind{
	string(types.StopTypeAirport):      types.SubmodeAir,
	string(types.StopTypeHarbourPort):  types.SubmodeWater,
	string(types.StopTypeFerryStop):    types.SubmodeWater,
	string(types.StopTypeFerryPort):    types.SubmodeWater,
	string(types.StopTypeBusStation):   types.SubmodeBus,
	string(types.StopTypeCoachStation): types.SubmodeBus,
	string(types.StopTypeOnstreetBus):  types.SubmodeBus,
	string(types.StopTypeRailStation):  types.SubmodeRail,
	string(types.StopTypeMetroStation): types.SubmodeMetro,
	string(types.StopTypeOnstreetTram): types.SubmodeTram,
	string(types.StopTypeTramStation):  types.SubmodeTram,
	string(types.StopTypeOther):        "",
}

type stopTypeFactors struct {
	defaultFactor float64
	bySubmode     map[string]float64
}

func (f stopTypeFactors) factor(submode string) float64 {
	if v, ok := f.bySubmode[submode]; ok && submode != "" {
		return v
	}
	return f.defaultFactor
}

// Scorer computes popularity values. It is read only after NewScorer.
type Scorer struct {
	defaultValue int64
	stopTypes    map[types.StopType]stopTypeFactors
	interchange  map[string]float64
	groupBoost   float64
}

func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scorer{
		defaultValue: cfg.DefaultValue,
		stopTypes:    make(map[types.StopType]stopTypeFactors, len(cfg.StopTypeFactors)),
		interchange:  make(map[string]float64, len(cfg.InterchangeFactors)),
		groupBoost:   cfg.GroupBoostFactor,
	}

	for stopType, factors := range cfg.StopTypeFactors {
		f := stopTypeFactors{defaultFactor: 1.0, bySubmode: map[string]float64{}}
		for submode, factor := range factors {
			if submode == AllSubmodes {
				f.defaultFactor = factor
				continue
			}
			f.bySubmode[submode] = factor
		}
		s.stopTypes[types.StopType(stopType)] = f
	}
	for weighting, factor := range cfg.InterchangeFactors {
		s.interchange[weighting] = factor
	}
	return s, nil
}

// TypeAndSubmode is one (stop type, submode) pair of a hierarchy.
type TypeAndSubmode struct {
	StopType types.StopType
	Submode  string
}

// SubmodeOf returns the submode of the place matching its stop type.
func SubmodeOf(place *types.StopPlace) string {
	kind := submodeKindByStopType[string(place.StopType)]
	if kind == "" {
		return ""
	}
	return place.Submodes[kind]
}

// Aggregate collects the pairs of node and all its descendants in pre-order.
func Aggregate(node *hierarchy.Node) []TypeAndSubmode {
	var out []TypeAndSubmode
	node.Walk(func(n *hierarchy.Node) {
		out = append(out, TypeAndSubmode{StopType: n.Place.StopType, Submode: SubmodeOf(n.Place)})
	})
	return out
}

// StopPlace scores a hierarchy node. Multimodal parents sum the factors of
// their children.
func (s *Scorer) StopPlace(node *hierarchy.Node) int64 {
	var sum float64
	for _, pair := range Aggregate(node) {
		if f, ok := s.stopTypes[pair.StopType]; ok {
			sum += f.factor(pair.Submode)
		}
	}

	popularity := s.defaultValue
	if sum > 0 {
		popularity = saturate(float64(popularity) * sum)
	}
	if factor, ok := s.interchange[node.Place.Weighting]; ok {
		popularity = saturate(float64(popularity) * factor)
	}
	return popularity
}

// Group scores a group of stop places from its members' cached popularity.
// The second result is false when the group has no members element.
func (s *Scorer) Group(gos *types.GroupOfStopPlaces, cache Cache) (int64, bool) {
	if gos.Members == nil {
		return 0, false
	}

	product := int64(1)
	for _, ref := range gos.Members {
		p, ok := cache.Get(ref)
		if !ok {
			continue
		}
		var overflow bool
		product, overflow = mulExact(product, p)
		if overflow {
			return math.MaxInt64, true
		}
	}
	return saturate(s.groupBoost * float64(product)), true
}

// saturate converts to int64, clamping at the int64 range.
func saturate(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v)
}

func mulExact(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, true
	}
	return c, false
}
