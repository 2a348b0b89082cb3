package parser

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bahamut/pkg/metrics"
	"bahamut/pkg/types"

	"github.com/clbanning/mxj/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type NetexParser struct {
	tracer   trace.Tracer
	location *time.Location
}

func NewNetexParser() *NetexParser {
	return &NetexParser{
		tracer:   otel.Tracer("netex-parser"),
		location: time.Local,
	}
}

// Parse reads a NeTEx PublicationDelivery document and collects the stop
// places, groups of stop places and topographic places of every SiteFrame.
func (p *NetexParser) Parse(ctx context.Context, data []byte) (*types.EntityGraph, error) {
	ctx, span := p.tracer.Start(ctx, "netex_parser.parse",
		trace.WithAttributes(
			attribute.Int("xml_size_bytes", len(data)),
		),
	)
	defer span.End()

	start := time.Now()

	xmlMap, err := mxj.NewMapXmlReader(bytes.NewReader(data))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	delivery := childMap(xmlMap, "PublicationDelivery")
	if delivery == nil {
		err := fmt.Errorf("missing PublicationDelivery root element")
		span.RecordError(err)
		return nil, err
	}

	graph := &types.EntityGraph{}
	for _, frame := range siteFrames(childMap(delivery, "dataObjects")) {
		if err := p.extractSiteFrame(frame, graph); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to extract site frame: %w", err)
		}
	}

	span.SetAttributes(
		attribute.Int("stop_places_count", len(graph.StopPlaces)),
		attribute.Int("groups_of_stop_places_count", len(graph.GroupsOfStopPlaces)),
		attribute.Int("topographic_places_count", len(graph.TopographicPlaces)),
	)
	metrics.RecordParse(ctx, time.Since(start), len(data))

	return graph, nil
}

// siteFrames finds SiteFrames placed directly under dataObjects or nested in
// a CompositeFrame.
func siteFrames(dataObjects map[string]interface{}) []map[string]interface{} {
	if dataObjects == nil {
		return nil
	}
	frames := children(dataObjects, "SiteFrame")
	for _, composite := range children(dataObjects, "CompositeFrame") {
		frames = append(frames, children(childMap(composite, "frames"), "SiteFrame")...)
	}
	return frames
}

func (p *NetexParser) extractSiteFrame(frame map[string]interface{}, graph *types.EntityGraph) error {
	for _, sp := range children(childMap(frame, "stopPlaces"), "StopPlace") {
		place, err := p.parseStopPlace(sp)
		if err != nil {
			return err
		}
		graph.StopPlaces = append(graph.StopPlaces, *place)
	}

	for _, g := range children(childMap(frame, "groupsOfStopPlaces"), "GroupOfStopPlaces") {
		group, err := p.parseGroupOfStopPlaces(g)
		if err != nil {
			return err
		}
		graph.GroupsOfStopPlaces = append(graph.GroupsOfStopPlaces, *group)
	}

	for _, tp := range children(childMap(frame, "topographicPlaces"), "TopographicPlace") {
		place, err := p.parseTopographicPlace(tp)
		if err != nil {
			return err
		}
		graph.TopographicPlaces = append(graph.TopographicPlaces, *place)
	}

	return nil
}

var submodeKinds = []types.SubmodeKind{
	types.SubmodeAir, types.SubmodeWater, types.SubmodeBus, types.SubmodeCoach,
	types.SubmodeRail, types.SubmodeMetro, types.SubmodeTram,
}

func (p *NetexParser) parseStopPlace(m map[string]interface{}) (*types.StopPlace, error) {
	place := &types.StopPlace{
		ID:                  attr(m, "id"),
		Name:                multilingual(child(m, "Name")),
		Description:         multilingual(child(m, "Description")),
		AlternativeNames:    parseAlternativeNames(childMap(m, "alternativeNames")),
		ParentRef:           attr(childMap(m, "ParentSiteRef"), "ref"),
		TransportMode:       text(child(m, "TransportMode")),
		StopType:            types.StopType(text(child(m, "StopPlaceType"))),
		TopographicPlaceRef: attr(childMap(m, "TopographicPlaceRef"), "ref"),
		Weighting:           text(child(m, "Weighting")),
	}
	if place.ID == "" {
		return nil, fmt.Errorf("stop place without id")
	}

	centroid, err := parseCentroid(childMap(m, "Centroid"))
	if err != nil {
		return nil, fmt.Errorf("stop place %s: %w", place.ID, err)
	}
	place.Centroid = centroid

	for _, q := range children(childMap(m, "quays"), "Quay") {
		place.Quays = append(place.Quays, attr(q, "id"))
	}
	for _, q := range children(childMap(m, "quays"), "QuayRef") {
		place.Quays = append(place.Quays, attr(q, "ref"))
	}

	for _, kv := range children(childMap(m, "keyList"), "KeyValue") {
		if place.KeyValues == nil {
			place.KeyValues = make(map[string]string)
		}
		place.KeyValues[text(child(kv, "Key"))] = text(child(kv, "Value"))
	}

	for _, kind := range submodeKinds {
		if value := text(child(m, string(kind))); value != "" {
			if place.Submodes == nil {
				place.Submodes = make(map[types.SubmodeKind]string)
			}
			place.Submodes[kind] = value
		}
	}

	for _, ref := range children(childMap(m, "tariffZones"), "TariffZoneRef") {
		if r := attr(ref, "ref"); r != "" {
			place.TariffZoneRefs = append(place.TariffZoneRefs, r)
		}
	}

	place.ValidBetween, err = p.parseValidBetween(m)
	if err != nil {
		return nil, fmt.Errorf("stop place %s: %w", place.ID, err)
	}

	return place, nil
}

func (p *NetexParser) parseGroupOfStopPlaces(m map[string]interface{}) (*types.GroupOfStopPlaces, error) {
	group := &types.GroupOfStopPlaces{
		ID:               attr(m, "id"),
		Name:             multilingual(child(m, "Name")),
		Description:      multilingual(child(m, "Description")),
		AlternativeNames: parseAlternativeNames(childMap(m, "alternativeNames")),
	}
	if group.ID == "" {
		return nil, fmt.Errorf("group of stop places without id")
	}

	centroid, err := parseCentroid(childMap(m, "Centroid"))
	if err != nil {
		return nil, fmt.Errorf("group of stop places %s: %w", group.ID, err)
	}
	group.Centroid = centroid

	if members := child(m, "members"); members != nil {
		group.Members = []string{}
		if membersMap, ok := members.(map[string]interface{}); ok {
			for _, ref := range children(membersMap, "StopPlaceRef") {
				if r := attr(ref, "ref"); r != "" {
					group.Members = append(group.Members, r)
				}
			}
		}
	}

	group.ValidBetween, err = p.parseValidBetween(m)
	if err != nil {
		return nil, fmt.Errorf("group of stop places %s: %w", group.ID, err)
	}

	return group, nil
}

func (p *NetexParser) parseTopographicPlace(m map[string]interface{}) (*types.TopographicPlace, error) {
	place := &types.TopographicPlace{
		ID:                        attr(m, "id"),
		Name:                      multilingual(child(m, "Name")),
		DescriptorName:            multilingual(child(childMap(m, "Descriptor"), "Name")),
		Description:               multilingual(child(m, "Description")),
		TopographicPlaceType:      text(child(m, "TopographicPlaceType")),
		ParentTopographicPlaceRef: attr(childMap(m, "ParentTopographicPlaceRef"), "ref"),
		CountryRef:                attr(childMap(m, "CountryRef"), "ref"),
	}
	if place.ID == "" {
		return nil, fmt.Errorf("topographic place without id")
	}

	for _, d := range children(childMap(m, "alternativeDescriptors"), "TopographicPlaceDescriptor") {
		if name := multilingual(child(d, "Name")); name != nil {
			place.AlternativeDescriptors = append(place.AlternativeDescriptors, *name)
		}
	}

	centroid, err := parseCentroid(childMap(m, "Centroid"))
	if err != nil {
		return nil, fmt.Errorf("topographic place %s: %w", place.ID, err)
	}
	place.Centroid = centroid

	if polygon := childMap(m, "Polygon"); polygon != nil {
		place.Polygon, err = parsePolygon(polygon)
		if err != nil {
			return nil, fmt.Errorf("topographic place %s: %w", place.ID, err)
		}
	}

	place.ValidBetween, err = p.parseValidBetween(m)
	if err != nil {
		return nil, fmt.Errorf("topographic place %s: %w", place.ID, err)
	}

	return place, nil
}

func parseAlternativeNames(m map[string]interface{}) []types.AlternativeName {
	var names []types.AlternativeName
	for _, an := range children(m, "AlternativeName") {
		names = append(names, types.AlternativeName{
			NameType: types.NameType(text(child(an, "NameType"))),
			Name:     multilingual(child(an, "Name")),
		})
	}
	return names
}

func parseCentroid(m map[string]interface{}) (*types.GeoPoint, error) {
	location := childMap(m, "Location")
	if location == nil {
		return nil, nil
	}
	lat, err := parseFloat(text(child(location, "Latitude")))
	if err != nil {
		return nil, fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err := parseFloat(text(child(location, "Longitude")))
	if err != nil {
		return nil, fmt.Errorf("invalid longitude: %w", err)
	}
	return &types.GeoPoint{Lat: lat, Lon: lon}, nil
}

// parsePolygon reads a GML polygon. posList coordinates come in lat/lon
// order and are stored as lon/lat.
func parsePolygon(m map[string]interface{}) (*types.Polygon, error) {
	exterior, err := parseRing(childMap(childMap(m, "exterior"), "LinearRing"))
	if err != nil {
		return nil, fmt.Errorf("invalid polygon exterior: %w", err)
	}
	if len(exterior) == 0 {
		return nil, nil
	}

	polygon := &types.Polygon{Exterior: exterior}
	for _, interior := range children(m, "interior") {
		ring, err := parseRing(childMap(interior, "LinearRing"))
		if err != nil {
			return nil, fmt.Errorf("invalid polygon interior: %w", err)
		}
		if len(ring) > 0 {
			polygon.Interiors = append(polygon.Interiors, ring)
		}
	}
	return polygon, nil
}

func parseRing(m map[string]interface{}) (types.Ring, error) {
	if m == nil {
		return nil, nil
	}

	var values []string
	if posList := text(child(m, "posList")); posList != "" {
		values = strings.Fields(posList)
	} else {
		for _, pos := range childList(m, "pos") {
			values = append(values, strings.Fields(text(pos))...)
		}
	}

	if len(values)%2 != 0 {
		return nil, fmt.Errorf("odd number of coordinates: %d", len(values))
	}

	ring := make(types.Ring, 0, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		lat, err := parseFloat(values[i])
		if err != nil {
			return nil, err
		}
		lon, err := parseFloat(values[i+1])
		if err != nil {
			return nil, err
		}
		ring = append(ring, [2]float64{lon, lat})
	}
	return ring, nil
}

func (p *NetexParser) parseValidBetween(m map[string]interface{}) ([]types.ValidBetween, error) {
	var validity []types.ValidBetween
	for _, vb := range children(m, "ValidBetween") {
		from, err := p.parseTime(text(child(vb, "FromDate")))
		if err != nil {
			return nil, fmt.Errorf("invalid FromDate: %w", err)
		}
		to, err := p.parseTime(text(child(vb, "ToDate")))
		if err != nil {
			return nil, fmt.Errorf("invalid ToDate: %w", err)
		}
		validity = append(validity, types.ValidBetween{FromDate: from, ToDate: to})
	}
	return validity, nil
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime accepts zoned RFC 3339 timestamps and NeTEx local date-times,
// which are read in the parser's location.
func (p *NetexParser) parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, p.location); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised timestamp %q", s)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
