package csvexport

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"bahamut/pkg/document"
)

// Column names.
const (
	ColID          = "id"
	ColIndex       = "index"
	ColType        = "type"
	ColName        = "name"
	ColAlias       = "alias"
	ColLatitude    = "lat"
	ColLongitude   = "lon"
	ColStreet      = "street"
	ColNumber      = "number"
	ColZipcode     = "zipcode"
	ColPopularity  = "popularity"
	ColCategory    = "category"
	ColDescription = "description"
	ColSource      = "source"
	ColSourceID    = "source_id"
	ColLayer       = "layer"
	ColParent      = "parent"

	// displayKey is the name_<lang> suffix carrying the display name.
	displayKey = "display"
)

var trailingColumns = []string{
	ColLatitude, ColLongitude, ColStreet, ColNumber, ColZipcode, ColPopularity,
	ColCategory, ColDescription, ColSource, ColSourceID, ColLayer, ColParent,
}

// Accumulator collects the per-language name and alias columns seen while
// rows are built. Safe for concurrent use.
type Accumulator struct {
	mu      sync.Mutex
	names   map[string]struct{}
	aliases map[string]struct{}
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		names:   map[string]struct{}{},
		aliases: map[string]struct{}{},
	}
}

func (a *Accumulator) addName(lang string) {
	a.mu.Lock()
	a.names[lang] = struct{}{}
	a.mu.Unlock()
}

func (a *Accumulator) addAlias(lang string) {
	a.mu.Lock()
	a.aliases[lang] = struct{}{}
	a.mu.Unlock()
}

// Headers returns the full column list. Language columns are sorted, so
// the result does not depend on the order rows were added in.
func (a *Accumulator) Headers() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	headers := []string{ColID, ColIndex, ColType, ColName}
	headers = append(headers, prefixed(ColName, a.names)...)
	headers = append(headers, ColAlias)
	headers = append(headers, prefixed(ColAlias, a.aliases)...)
	return append(headers, trailingColumns...)
}

func prefixed(prefix string, langs map[string]struct{}) []string {
	out := make([]string, 0, len(langs))
	for lang := range langs {
		out = append(out, prefix+"_"+lang)
	}
	sort.Strings(out)
	return out
}

// Row maps a document to its cells and registers its language columns.
func Row(doc document.Document, acc *Accumulator) (map[string]string, error) {
	row := map[string]string{
		ColID:         doc.SourceID,
		ColIndex:      doc.Index(),
		ColType:       doc.Layer,
		ColName:       doc.DefaultName(),
		ColStreet:     doc.AddressParts.Street,
		ColNumber:     doc.AddressParts.Number,
		ColZipcode:    doc.AddressParts.Zip,
		ColPopularity: strconv.FormatInt(doc.Popularity, 10),
		ColSource:     doc.Source(),
		ColSourceID:   doc.SourceID,
		ColLayer:      doc.Layer,
	}

	for lang, name := range doc.Names {
		if lang == document.DefaultKey {
			continue
		}
		acc.addName(lang)
		row[ColName+"_"+lang] = name
	}
	if doc.DisplayName != "" {
		acc.addName(displayKey)
		row[ColName+"_"+displayKey] = doc.DisplayName
	}

	if alias := doc.DefaultAlias(); alias != "" {
		cell, err := jsonCell([]string{alias})
		if err != nil {
			return nil, err
		}
		row[ColAlias] = cell
	}
	for lang, alias := range doc.Aliases {
		if lang == document.DefaultKey {
			continue
		}
		cell, err := jsonCell([]string{alias})
		if err != nil {
			return nil, err
		}
		acc.addAlias(lang)
		row[ColAlias+"_"+lang] = cell
	}

	if doc.CenterPoint != nil {
		row[ColLatitude] = strconv.FormatFloat(doc.CenterPoint.Lat, 'f', -1, 64)
		row[ColLongitude] = strconv.FormatFloat(doc.CenterPoint.Lon, 'f', -1, 64)
	}

	categories := doc.Categories
	if categories == nil {
		categories = []string{}
	}
	descriptions := doc.Descriptions
	if descriptions == nil {
		descriptions = map[string]string{}
	}
	composite := map[string]interface{}{
		ColCategory:    categories,
		ColDescription: descriptions,
	}
	if !doc.Parent.IsEmpty() {
		composite[ColParent] = doc.Parent
	}
	for col, value := range composite {
		cell, err := jsonCell(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s of %s: %w", col, doc.SourceID, err)
		}
		row[col] = cell
	}

	return row, nil
}

func jsonCell(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Render writes the header row and one line per row, using an empty cell
// for every column a row does not have.
func Render(rows []map[string]string, headers []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	record := make([]string, len(headers))
	for _, row := range rows {
		for i, h := range headers {
			record[i] = row[h]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// Serialize renders the documents in the given order.
func Serialize(docs []document.Document) ([]byte, error) {
	acc := NewAccumulator()
	rows := make([]map[string]string, 0, len(docs))
	for _, doc := range docs {
		row, err := Row(doc, acc)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return Render(rows, acc.Headers())
}

// SortByPopularity orders documents by descending popularity, keeping the
// input order of ties. Popularity of zero or below ranks as 1.
func SortByPopularity(docs []document.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return rank(docs[i]) > rank(docs[j])
	})
}

func rank(d document.Document) int64 {
	if d.Popularity <= 0 {
		return document.DefaultPopularity
	}
	return d.Popularity
}
