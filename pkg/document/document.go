package document

import (
	"bahamut/pkg/types"
)

const (
	IndexName = "pelias"
	SourceNSR = "nsr"

	// DefaultKey is the language key of the primary name or alias.
	DefaultKey = "default"

	DefaultPopularity int64 = 1
)

// Layers.
const (
	LayerStopPlace         = "stop_place"
	LayerStopPlaceParent   = "stop_place_parent"
	LayerStopPlaceChild    = "stop_place_child"
	LayerGroupOfStopPlaces = "group_of_stop_places"
	LayerLocality          = "locality"
	LayerCounty            = "county"
)

type AddressParts struct {
	Street string `json:"street,omitempty"`
	Number string `json:"number,omitempty"`
	Zip    string `json:"zip,omitempty"`
}

// Document is one search-index record. A single source entity may yield
// several documents, one per distinct name.
type Document struct {
	Layer                 string            `json:"layer"`
	SourceID              string            `json:"source_id"`
	Names                 map[string]string `json:"names,omitempty"`
	DisplayName           string            `json:"display_name,omitempty"`
	Aliases               map[string]string `json:"aliases,omitempty"`
	Descriptions          map[string]string `json:"descriptions,omitempty"`
	CenterPoint           *types.GeoPoint   `json:"center_point,omitempty"`
	Polygon               *types.Polygon    `json:"polygon,omitempty"`
	AddressParts          AddressParts      `json:"address_parts"`
	Parent                Parent            `json:"parent"`
	Population            int64             `json:"population,omitempty"`
	Popularity            int64             `json:"popularity"`
	Categories            []string          `json:"categories,omitempty"`
	TariffZones           []string          `json:"tariff_zones,omitempty"`
	TariffZoneAuthorities []string          `json:"tariff_zone_authorities,omitempty"`
}

// New returns a document with the default popularity and empty maps.
func New(layer, sourceID string) Document {
	return Document{
		Layer:        layer,
		SourceID:     sourceID,
		Names:        map[string]string{},
		Aliases:      map[string]string{},
		Descriptions: map[string]string{},
		Popularity:   DefaultPopularity,
	}
}

func (d Document) Index() string  { return IndexName }
func (d Document) Source() string { return SourceNSR }

// Valid reports whether the document can be indexed.
func (d Document) Valid() bool {
	return d.CenterPoint != nil
}

func (d Document) DefaultName() string {
	return d.Names[DefaultKey]
}

func (d Document) DefaultAlias() string {
	return d.Aliases[DefaultKey]
}

// SetDefaultName sets the primary name of the document.
func (d *Document) SetDefaultName(name string) {
	put(&d.Names, DefaultKey, name)
}

func (d *Document) AddName(lang, name string) {
	put(&d.Names, lang, name)
}

func (d *Document) AddAlias(lang, alias string) {
	put(&d.Aliases, lang, alias)
}

func (d *Document) AddDescription(lang, description string) {
	put(&d.Descriptions, lang, description)
}

// NotAnAddress fills the street with a per-entity marker so that places
// sharing name and parent are not collapsed as duplicate addresses.
func (d *Document) NotAnAddress(entityID string) {
	d.AddressParts.Street = "NOT_AN_ADDRESS-" + entityID
}

func put(m *map[string]string, key, value string) {
	if *m == nil {
		*m = map[string]string{}
	}
	(*m)[key] = value
}
