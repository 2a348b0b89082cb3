package enricher

import (
	"bahamut/pkg/adminunits"
	"bahamut/pkg/document"
	"bahamut/pkg/types"
)

// Lookup is the part of the admin units index the enricher reads.
type Lookup interface {
	NameForID(id string) (string, bool)
	LocalityForID(id string) *adminunits.AdminUnit
	LocalityForPoint(p types.GeoPoint) *adminunits.AdminUnit
	CountryForPoint(p types.GeoPoint) *adminunits.AdminUnit
}

// Enricher fills in locality, county and country parents of documents.
// Missing data is never an error; fields stay empty.
type Enricher struct {
	Index Lookup
}

func New(index Lookup) *Enricher {
	return &Enricher{Index: index}
}

// Enrich returns doc with its Parent completed from the index.
func (e *Enricher) Enrich(doc document.Document) document.Document {
	parent := doc.Parent

	if parent.ID(document.Locality) == "" {
		parent = e.byPoint(parent, doc.CenterPoint)
	}

	if localityID := parent.ID(document.Locality); localityID != "" && parent.Name(document.Locality) == "" {
		if locality := e.Index.LocalityForID(localityID); locality != nil {
			parent = parent.
				WithName(document.Locality, locality.Name).
				With(document.County, document.Field{ID: locality.ParentID}).
				With(document.Country, document.Field{ID: locality.CountryRef})
		} else {
			// The id is unknown here, so fall back to the point. The lookup
			// deliberately runs twice.
			parent = e.byPoint(parent, doc.CenterPoint)
			parent = e.byPoint(parent, doc.CenterPoint)

			name, _ := e.Index.NameForID(parent.ID(document.Locality))
			parent = parent.WithName(document.Locality, name)
		}
	}

	if countyID := parent.ID(document.County); countyID != "" && parent.Name(document.County) == "" {
		name, _ := e.Index.NameForID(countyID)
		parent = parent.WithName(document.County, name)
	}

	doc.Parent = parent
	return doc
}

func (e *Enricher) byPoint(parent document.Parent, point *types.GeoPoint) document.Parent {
	if point == nil {
		return parent
	}
	if locality := e.Index.LocalityForPoint(*point); locality != nil {
		return parent.
			With(document.Locality, document.Field{ID: locality.ID}).
			With(document.County, document.Field{ID: locality.ParentID}).
			With(document.Country, document.Field{ID: locality.CountryRef})
	}
	if country := e.Index.CountryForPoint(*point); country != nil {
		return parent.With(document.Country, document.Field{ID: country.CountryRef})
	}
	return parent
}
