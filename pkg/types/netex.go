package types

import "time"

// NameType is the NeTEx NameTypeEnumeration value of an alternative name.
type NameType string

const (
	NameTypeTranslation NameType = "translation"
	NameTypeLabel       NameType = "label"
	NameTypeOther       NameType = "other"
)

// StopType is the NeTEx StopPlaceType value.
type StopType string

const (
	StopTypeAirport      StopType = "airport"
	StopTypeRailStation  StopType = "railStation"
	StopTypeMetroStation StopType = "metroStation"
	StopTypeBusStation   StopType = "busStation"
	StopTypeCoachStation StopType = "coachStation"
	StopTypeOnstreetBus  StopType = "onstreetBus"
	StopTypeOnstreetTram StopType = "onstreetTram"
	StopTypeTramStation  StopType = "tramStation"
	StopTypeHarbourPort  StopType = "harbourPort"
	StopTypeFerryPort    StopType = "ferryPort"
	StopTypeFerryStop    StopType = "ferryStop"
	StopTypeOther        StopType = "other"
)

// SubmodeKind names the NeTEx element carrying a stop place's submode,
// e.g. BusSubmode or RailSubmode.
type SubmodeKind string

const (
	SubmodeAir   SubmodeKind = "AirSubmode"
	SubmodeWater SubmodeKind = "WaterSubmode"
	SubmodeBus   SubmodeKind = "BusSubmode"
	SubmodeCoach SubmodeKind = "CoachSubmode"
	SubmodeRail  SubmodeKind = "RailSubmode"
	SubmodeMetro SubmodeKind = "MetroSubmode"
	SubmodeTram  SubmodeKind = "TramSubmode"
)

const (
	TransportModeBus        = "bus"
	BusSubmodeRailReplace   = "railReplacementBus"
	KeyIsParentStopPlace    = "IS_PARENT_STOP_PLACE"
	TopographicMunicipality = "municipality"
	TopographicCounty       = "county"
	TopographicCountry      = "country"
)

type MultilingualString struct {
	Value string `json:"value"`
	Lang  string `json:"lang,omitempty"`
}

// IsZero reports whether the string carries no value.
func (m *MultilingualString) IsZero() bool {
	return m == nil || m.Value == ""
}

type AlternativeName struct {
	NameType NameType            `json:"name_type"`
	Name     *MultilingualString `json:"name,omitempty"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ValidBetween is a validity interval; nil bounds are open.
type ValidBetween struct {
	FromDate *time.Time `json:"from_date,omitempty"`
	ToDate   *time.Time `json:"to_date,omitempty"`
}

// IsValidAt reports whether t lies inside the interval. The from date must
// not be after t and the to date, when set, must not be before t.
func (v ValidBetween) IsValidAt(t time.Time) bool {
	if v.FromDate != nil && v.FromDate.After(t) {
		return false
	}
	return v.ToDate == nil || !v.ToDate.Before(t)
}

// AnyValidAt reports whether the list is empty or any interval holds at t.
func AnyValidAt(validity []ValidBetween, t time.Time) bool {
	if len(validity) == 0 {
		return true
	}
	for _, v := range validity {
		if v.IsValidAt(t) {
			return true
		}
	}
	return false
}

type StopPlace struct {
	ID                  string                 `json:"id"`
	Name                *MultilingualString    `json:"name,omitempty"`
	Description         *MultilingualString    `json:"description,omitempty"`
	AlternativeNames    []AlternativeName      `json:"alternative_names,omitempty"`
	Centroid            *GeoPoint              `json:"centroid,omitempty"`
	ParentRef           string                 `json:"parent_ref,omitempty"`
	Quays               []string               `json:"quays,omitempty"`
	KeyValues           map[string]string      `json:"key_values,omitempty"`
	TransportMode       string                 `json:"transport_mode,omitempty"`
	StopType            StopType               `json:"stop_type,omitempty"`
	Submodes            map[SubmodeKind]string `json:"submodes,omitempty"`
	TariffZoneRefs      []string               `json:"tariff_zone_refs,omitempty"`
	TopographicPlaceRef string                 `json:"topographic_place_ref,omitempty"`
	Weighting           string                 `json:"weighting,omitempty"`
	ValidBetween        []ValidBetween         `json:"valid_between,omitempty"`
}

// HasParent reports whether the stop place references a parent site.
func (s *StopPlace) HasParent() bool {
	return s.ParentRef != ""
}

type GroupOfStopPlaces struct {
	ID               string              `json:"id"`
	Name             *MultilingualString `json:"name,omitempty"`
	Description      *MultilingualString `json:"description,omitempty"`
	AlternativeNames []AlternativeName   `json:"alternative_names,omitempty"`
	Centroid         *GeoPoint           `json:"centroid,omitempty"`
	// Members is nil when the group has no members element at all.
	Members      []string       `json:"members,omitempty"`
	ValidBetween []ValidBetween `json:"valid_between,omitempty"`
}

// Ring is a closed list of points, each point being lon/lat.
type Ring [][2]float64

type Polygon struct {
	Exterior  Ring   `json:"exterior"`
	Interiors []Ring `json:"interiors,omitempty"`
}

type TopographicPlace struct {
	ID                        string               `json:"id"`
	Name                      *MultilingualString  `json:"name,omitempty"`
	DescriptorName            *MultilingualString  `json:"descriptor_name,omitempty"`
	AlternativeDescriptors    []MultilingualString `json:"alternative_descriptors,omitempty"`
	Description               *MultilingualString  `json:"description,omitempty"`
	TopographicPlaceType      string               `json:"topographic_place_type,omitempty"`
	ParentTopographicPlaceRef string               `json:"parent_topographic_place_ref,omitempty"`
	CountryRef                string               `json:"country_ref,omitempty"`
	Centroid                  *GeoPoint            `json:"centroid,omitempty"`
	Polygon                   *Polygon             `json:"polygon,omitempty"`
	ValidBetween              []ValidBetween       `json:"valid_between,omitempty"`
}

// EntityGraph is the parsed content of one NeTEx publication delivery.
type EntityGraph struct {
	StopPlaces         []StopPlace         `json:"stop_places"`
	GroupsOfStopPlaces []GroupOfStopPlaces `json:"groups_of_stop_places"`
	TopographicPlaces  []TopographicPlace  `json:"topographic_places"`
}
