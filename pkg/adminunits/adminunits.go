package adminunits

import (
	"fmt"
	"log/slog"
	"time"

	"bahamut/pkg/types"

	"github.com/bluele/gcache"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

type Kind string

const (
	KindLocality Kind = "locality"
	KindCounty   Kind = "county"
	KindCountry  Kind = "country"
)

// DefaultExcludedCountry is left out of the country list.
const DefaultExcludedCountry = "RU"

var kindByTopographicType = map[string]Kind{
	types.TopographicMunicipality: KindLocality,
	types.TopographicCounty:       KindCounty,
	types.TopographicCountry:      KindCountry,
}

// AdminUnit is an administrative area with its boundary. Read only.
type AdminUnit struct {
	ID         string
	Name       string
	Kind       Kind
	ParentID   string
	CountryRef string
	Geometry   orb.Polygon
	Bound      orb.Bound
}

// Contains reports whether p lies inside or on the boundary of the unit.
func (u *AdminUnit) Contains(p orb.Point) bool {
	if !u.Bound.Contains(p) {
		return false
	}
	if planar.PolygonContains(u.Geometry, p) {
		return true
	}
	return onBoundary(u.Geometry, p)
}

type Options struct {
	CacheSize       int
	ExcludedCountry string
	Now             func() time.Time
}

// Index resolves points and ids to administrative units. Lookups scan the
// unit lists in load order and return the first match. Safe for concurrent
// reads.
type Index struct {
	localities []*AdminUnit
	counties   []*AdminUnit
	countries  []*AdminUnit
	names      gcache.Cache
}

func NewIndex(places []types.TopographicPlace, opts Options) (*Index, error) {
	if opts.CacheSize <= 0 {
		return nil, fmt.Errorf("admin unit cache size must be positive, got %d", opts.CacheSize)
	}
	if opts.ExcludedCountry == "" {
		opts.ExcludedCountry = DefaultExcludedCountry
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	now := opts.Now()

	idx := &Index{
		names: gcache.New(opts.CacheSize).LRU().Build(),
	}

	skipped := 0
	for i := range places {
		tp := &places[i]
		kind, ok := kindByTopographicType[tp.TopographicPlaceType]
		if !ok {
			continue
		}
		if !isCurrent(tp.ValidBetween, now) || tp.Polygon == nil || len(tp.Polygon.Exterior) == 0 {
			skipped++
			continue
		}

		unit := newAdminUnit(tp, kind)
		switch kind {
		case KindLocality:
			idx.localities = append(idx.localities, unit)
		case KindCounty:
			idx.counties = append(idx.counties, unit)
		case KindCountry:
			if unit.CountryRef == opts.ExcludedCountry {
				skipped++
				continue
			}
			idx.countries = append(idx.countries, unit)
		}

		if kind == KindLocality || kind == KindCounty {
			if err := idx.names.Set(unit.ID, unit.Name); err != nil {
				return nil, fmt.Errorf("failed to cache admin unit name %s: %w", unit.ID, err)
			}
		}
	}

	slog.Debug("Admin units index built",
		"localities", len(idx.localities),
		"counties", len(idx.counties),
		"countries", len(idx.countries),
		"skipped", skipped,
	)

	return idx, nil
}

// isCurrent checks the first validity interval only. Places without one
// are not current.
func isCurrent(validity []types.ValidBetween, now time.Time) bool {
	if len(validity) == 0 {
		return false
	}
	vb := validity[0]
	if vb.FromDate != nil && vb.ToDate != nil && vb.FromDate.After(*vb.ToDate) {
		return false
	}
	return vb.IsValidAt(now)
}

func newAdminUnit(tp *types.TopographicPlace, kind Kind) *AdminUnit {
	poly := ToOrbPolygon(tp.Polygon)
	name := ""
	switch {
	case !tp.Name.IsZero():
		name = tp.Name.Value
	case !tp.DescriptorName.IsZero():
		name = tp.DescriptorName.Value
	}
	return &AdminUnit{
		ID:         tp.ID,
		Name:       name,
		Kind:       kind,
		ParentID:   tp.ParentTopographicPlaceRef,
		CountryRef: tp.CountryRef,
		Geometry:   poly,
		Bound:      poly.Bound(),
	}
}

// ToOrbPolygon converts a parsed polygon, exterior ring first.
func ToOrbPolygon(p *types.Polygon) orb.Polygon {
	if p == nil {
		return nil
	}
	poly := make(orb.Polygon, 0, 1+len(p.Interiors))
	poly = append(poly, toRing(p.Exterior))
	for _, r := range p.Interiors {
		poly = append(poly, toRing(r))
	}
	return poly
}

func toRing(r types.Ring) orb.Ring {
	ring := make(orb.Ring, len(r))
	for i, pt := range r {
		ring[i] = orb.Point{pt[0], pt[1]}
	}
	return ring
}

// NameForID returns the cached name of a locality or county.
func (idx *Index) NameForID(id string) (string, bool) {
	v, err := idx.names.Get(id)
	if err != nil {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}

func (idx *Index) LocalityForID(id string) *AdminUnit {
	for _, u := range idx.localities {
		if u.ID != "" && u.ID == id {
			return u
		}
	}
	return nil
}

func (idx *Index) LocalityForPoint(p types.GeoPoint) *AdminUnit {
	return firstContaining(idx.localities, p)
}

func (idx *Index) CountyForPoint(p types.GeoPoint) *AdminUnit {
	return firstContaining(idx.counties, p)
}

func (idx *Index) CountryForPoint(p types.GeoPoint) *AdminUnit {
	return firstContaining(idx.countries, p)
}

// Counts returns the number of localities, counties and countries held.
func (idx *Index) Counts() (localities, counties, countries int) {
	return len(idx.localities), len(idx.counties), len(idx.countries)
}

func firstContaining(units []*AdminUnit, p types.GeoPoint) *AdminUnit {
	pt := orb.Point{p.Lon, p.Lat}
	for _, u := range units {
		if u.Contains(pt) {
			return u
		}
	}
	return nil
}

// onBoundary reports whether p lies on any ring edge.
func onBoundary(poly orb.Polygon, p orb.Point) bool {
	for _, ring := range poly {
		for i := 0; i+1 < len(ring); i++ {
			if onSegment(ring[i], ring[i+1], p) {
				return true
			}
		}
	}
	return false
}

func onSegment(a, b, p orb.Point) bool {
	const eps = 1e-12
	cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
	if cross > eps || cross < -eps {
		return false
	}
	return p[0] >= min(a[0], b[0])-eps && p[0] <= max(a[0], b[0])+eps &&
		p[1] >= min(a[1], b[1])-eps && p[1] <= max(a[1], b[1])+eps
}
