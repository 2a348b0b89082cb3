package mapper

import (
	"fmt"
	"time"

	"bahamut/pkg/document"
	"bahamut/pkg/types"
)

// DefaultLanguage is used for descriptions without a language.
const DefaultLanguage = "no"

type Options struct {
	DefaultLanguage    string
	IncludeGroups      bool
	IncludeTopographic bool
	Now                func() time.Time
}

// DefaultOptions maps every entity kind.
func DefaultOptions() Options {
	return Options{
		DefaultLanguage:    DefaultLanguage,
		IncludeGroups:      true,
		IncludeTopographic: true,
		Now:                time.Now,
	}
}

func (o Options) withDefaults() Options {
	if o.DefaultLanguage == "" {
		o.DefaultLanguage = DefaultLanguage
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Drop reasons reported for entities that yield no documents.
const (
	DropRailReplacement = "rail_replacement_bus"
	DropNoQuays         = "no_quays"
	DropNotCurrent      = "not_current"
	DropNoCenterPoint   = "no_center_point"
	DropNoName          = "no_name"
	DropDisabled        = "disabled"
	DropUnmappedType    = "unmapped_type"
)

// sourceID numbers the documents of one entity: the bare id first, then
// id-1, id-2 and so on.
func sourceID(id string, n int) string {
	if n == 0 {
		return id
	}
	return fmt.Sprintf("%s-%d", id, n)
}

// uniqueNames keeps the first occurrence of every name value.
func uniqueNames(names []*types.MultilingualString) []*types.MultilingualString {
	seen := make(map[string]bool, len(names))
	out := make([]*types.MultilingualString, 0, len(names))
	for _, n := range names {
		if n.IsZero() || seen[n.Value] {
			continue
		}
		seen[n.Value] = true
		out = append(out, n)
	}
	return out
}

func center(p *types.GeoPoint) *types.GeoPoint {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// addDisplayName stores the display name and mirrors it under its language.
func addDisplayName(doc *document.Document, name *types.MultilingualString) {
	if name.IsZero() {
		return
	}
	doc.DisplayName = name.Value
	if name.Lang != "" {
		doc.AddName(name.Lang, name.Value)
	}
}

func addDescription(doc *document.Document, desc *types.MultilingualString, defaultLang string) {
	if desc.IsZero() {
		return
	}
	lang := desc.Lang
	if lang == "" {
		lang = defaultLang
	}
	doc.AddDescription(lang, desc.Value)
}
