package mapper

import (
	"sort"
	"strings"

	"bahamut/pkg/document"
	"bahamut/pkg/hierarchy"
	"bahamut/pkg/popularity"
	"bahamut/pkg/types"
)

type StopPlaceMapper struct {
	opts Options
}

func NewStopPlaceMapper(opts Options) *StopPlaceMapper {
	return &StopPlaceMapper{opts: opts.withDefaults()}
}

// DropReason returns why the node yields no documents, or "" when it does.
func (m *StopPlaceMapper) DropReason(node *hierarchy.Node) string {
	place := node.Place
	if place.TransportMode == types.TransportModeBus && place.Submodes[types.SubmodeBus] == types.BusSubmodeRailReplace {
		return DropRailReplacement
	}
	if len(place.Quays) == 0 && !strings.EqualFold(place.KeyValues[types.KeyIsParentStopPlace], "true") {
		return DropNoQuays
	}
	if !types.AnyValidAt(place.ValidBetween, m.opts.Now()) {
		return DropNotCurrent
	}
	if place.Centroid == nil {
		return DropNoCenterPoint
	}
	if len(m.names(node)) == 0 {
		return DropNoName
	}
	return ""
}

// Map produces one document per distinct name of the node.
func (m *StopPlaceMapper) Map(node *hierarchy.Node, cache popularity.Cache) []document.Document {
	if m.DropReason(node) != "" {
		return nil
	}

	names := m.names(node)
	docs := make([]document.Document, 0, len(names))
	for i, name := range names {
		doc := m.toDocument(node, cache, sourceID(node.Place.ID, i))
		doc.SetDefaultName(name.Value)
		docs = append(docs, doc)
	}
	return docs
}

func (m *StopPlaceMapper) toDocument(node *hierarchy.Node, cache popularity.Cache, id string) document.Document {
	place := node.Place
	doc := document.New(layer(node), id)

	addDisplayName(&doc, displayName(node))
	doc.CenterPoint = center(place.Centroid)
	doc.NotAnAddress(place.ID)
	addDescription(&doc, place.Description, m.opts.DefaultLanguage)

	doc.Categories = categories(node)

	for _, alt := range place.AlternativeNames {
		if alt.NameType == types.NameTypeTranslation && !alt.Name.IsZero() && alt.Name.Lang != "" {
			doc.AddName(alt.Name.Lang, alt.Name.Value)
		}
	}
	m.addAliases(&doc, node)

	if p, ok := cache.Get(place.ID); ok {
		doc.Popularity = p
	}

	if len(place.TariffZoneRefs) > 0 {
		doc.TariffZones = append([]string(nil), place.TariffZoneRefs...)
		doc.TariffZoneAuthorities = authorities(place.TariffZoneRefs)
	}

	if place.TopographicPlaceRef != "" {
		doc.Parent = doc.Parent.With(document.Locality, document.Field{ID: place.TopographicPlaceRef})
	}
	return doc
}

// names walks up from the node through its ancestors, then down through
// its subtree.
func (m *StopPlaceMapper) names(node *hierarchy.Node) []*types.MultilingualString {
	var names []*types.MultilingualString
	for n := node; n != nil; n = n.Parent {
		names = appendPlaceNames(names, n.Place)
	}
	node.Walk(func(n *hierarchy.Node) {
		names = appendPlaceNames(names, n.Place)
	})
	return uniqueNames(names)
}

func appendPlaceNames(names []*types.MultilingualString, place *types.StopPlace) []*types.MultilingualString {
	if !place.Name.IsZero() {
		names = append(names, place.Name)
	}
	for _, alt := range place.AlternativeNames {
		if alt.Name.IsZero() {
			continue
		}
		if alt.NameType == types.NameTypeLabel || alt.Name.Lang != "" {
			names = append(names, alt.Name)
		}
	}
	return names
}

// addAliases copies label names, falling back to the nearest ancestor
// that has any.
func (m *StopPlaceMapper) addAliases(doc *document.Document, node *hierarchy.Node) {
	for n := node; n != nil && len(doc.Aliases) == 0; n = n.Parent {
		for _, alt := range n.Place.AlternativeNames {
			if alt.NameType != types.NameTypeLabel || alt.Name.IsZero() {
				continue
			}
			lang := alt.Name.Lang
			if lang == "" {
				lang = document.DefaultKey
			}
			doc.AddAlias(lang, alt.Name.Value)
		}
	}

	if len(doc.Aliases) == 0 || doc.DefaultAlias() != "" {
		return
	}
	if alias, ok := doc.Aliases[m.opts.DefaultLanguage]; ok {
		doc.AddAlias(document.DefaultKey, alias)
		return
	}
	keys := make([]string, 0, len(doc.Aliases))
	for k := range doc.Aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	doc.AddAlias(document.DefaultKey, doc.Aliases[keys[0]])
}

func layer(node *hierarchy.Node) string {
	switch {
	case !node.IsRoot():
		return document.LayerStopPlaceChild
	case len(node.Children) > 0:
		return document.LayerStopPlaceParent
	default:
		return document.LayerStopPlace
	}
}

// displayName is the node's own name or the closest ancestor's.
func displayName(node *hierarchy.Node) *types.MultilingualString {
	for n := node; n != nil; n = n.Parent {
		if !n.Place.Name.IsZero() {
			return n.Place.Name
		}
	}
	return nil
}

func categories(node *hierarchy.Node) []string {
	var out []string
	seen := map[types.StopType]bool{}
	for _, pair := range popularity.Aggregate(node) {
		if pair.StopType == "" || seen[pair.StopType] {
			continue
		}
		seen[pair.StopType] = true
		out = append(out, string(pair.StopType))
	}
	return out
}

// authorities returns the codespace prefix of each tariff zone, e.g. RUT
// for RUT:TariffZone:1.
func authorities(refs []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, ref := range refs {
		a, _, _ := strings.Cut(ref, ":")
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
