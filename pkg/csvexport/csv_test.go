package csvexport

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"reflect"
	"testing"

	"bahamut/pkg/document"
	"bahamut/pkg/types"
)

func stopDoc() document.Document {
	doc := document.New(document.LayerStopPlace, "NSR:StopPlace:337")
	doc.SetDefaultName("Oslo S")
	doc.DisplayName = "Oslo S"
	doc.AddName("en", "Oslo Central Station")
	doc.AddAlias(document.DefaultKey, "Jernbanetorget")
	doc.AddAlias("no", "Jernbanetorget")
	doc.AddDescription("no", "Hovedstasjon")
	doc.CenterPoint = &types.GeoPoint{Lat: 59.91, Lon: 10.75}
	doc.NotAnAddress("NSR:StopPlace:337")
	doc.Categories = []string{"railStation"}
	doc.Popularity = 2000
	doc.Parent = document.NewParent().
		With(document.Locality, document.Field{ID: "KVE:TopographicPlace:0301", Name: "Oslo"}).
		With(document.County, document.Field{ID: "KVE:TopographicPlace:03"})
	return doc
}

func countyDoc() document.Document {
	doc := document.New(document.LayerCounty, "KVE:TopographicPlace:03")
	doc.SetDefaultName("Oslo")
	doc.AddName("sma", "Oslove")
	doc.CenterPoint = &types.GeoPoint{Lat: 60, Lon: 10.5}
	return doc
}

func parse(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("Produced CSV is not parseable: %v", err)
	}
	return records
}

func TestSerialize_Headers(t *testing.T) {
	data, err := Serialize([]document.Document{stopDoc(), countyDoc()})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	records := parse(t, data)
	want := []string{
		"id", "index", "type", "name",
		"name_display", "name_en", "name_sma",
		"alias", "alias_no",
		"lat", "lon", "street", "number", "zipcode", "popularity",
		"category", "description", "source", "source_id", "layer", "parent",
	}
	if !reflect.DeepEqual(records[0], want) {
		t.Errorf("Unexpected headers\n got: %v\nwant: %v", records[0], want)
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	docs := []document.Document{stopDoc(), countyDoc()}
	data, err := Serialize(docs)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	records := parse(t, data)
	if len(records)-1 != len(docs) {
		t.Fatalf("Expected %d data rows, got %d", len(docs), len(records)-1)
	}
	headers := records[0]
	for i, rec := range records[1:] {
		if len(rec) != len(headers) {
			t.Errorf("Row %d has %d cells, want %d", i, len(rec), len(headers))
		}
	}

	row := map[string]string{}
	for i, h := range headers {
		row[h] = records[1][i]
	}

	checks := map[string]string{
		"id":           "NSR:StopPlace:337",
		"index":        "pelias",
		"type":         "stop_place",
		"name":         "Oslo S",
		"name_display": "Oslo S",
		"name_en":      "Oslo Central Station",
		"alias":        `["Jernbanetorget"]`,
		"alias_no":     `["Jernbanetorget"]`,
		"lat":          "59.91",
		"lon":          "10.75",
		"street":       "NOT_AN_ADDRESS-NSR:StopPlace:337",
		"popularity":   "2000",
		"category":     `["railStation"]`,
		"description":  `{"no":"Hovedstasjon"}`,
		"source":       "nsr",
		"source_id":    "NSR:StopPlace:337",
		"layer":        "stop_place",
		"name_sma":     "",
	}
	for col, want := range checks {
		if row[col] != want {
			t.Errorf("Column %s: got %q, want %q", col, row[col], want)
		}
	}

	var parent map[string][]map[string]string
	if err := json.Unmarshal([]byte(row["parent"]), &parent); err != nil {
		t.Fatalf("parent cell is not JSON: %v", err)
	}
	if _, ok := parent["county"]; ok {
		t.Error("County without name should be left out of parent")
	}
	if got := parent["locality"]; len(got) != 1 || got[0]["name"] != "Oslo" {
		t.Errorf("Unexpected locality entry %v", got)
	}

	county := map[string]string{}
	for i, h := range headers {
		county[h] = records[2][i]
	}
	if county["alias"] != "" || county["parent"] != "" {
		t.Errorf("Expected empty alias and parent cells, got %q %q", county["alias"], county["parent"])
	}
	if county["category"] != "[]" || county["description"] != "{}" {
		t.Errorf("Expected empty JSON composites, got %q %q", county["category"], county["description"])
	}
}

func TestSerialize_Empty(t *testing.T) {
	data, err := Serialize(nil)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	records := parse(t, data)
	if len(records) != 1 {
		t.Errorf("Expected header row only, got %d rows", len(records))
	}
}

func TestAccumulator_ConcurrentAdds(t *testing.T) {
	acc := NewAccumulator()
	docs := []document.Document{stopDoc(), countyDoc(), stopDoc(), countyDoc()}

	done := make(chan struct{})
	for _, d := range docs {
		go func(d document.Document) {
			defer func() { done <- struct{}{} }()
			if _, err := Row(d, acc); err != nil {
				t.Errorf("Row failed: %v", err)
			}
		}(d)
	}
	for range docs {
		<-done
	}

	sequential := NewAccumulator()
	for _, d := range docs {
		if _, err := Row(d, sequential); err != nil {
			t.Fatalf("Row failed: %v", err)
		}
	}
	if !reflect.DeepEqual(acc.Headers(), sequential.Headers()) {
		t.Errorf("Headers differ between concurrent and sequential accumulation")
	}
}

func TestSortByPopularity(t *testing.T) {
	mk := func(id string, p int64) document.Document {
		d := document.New(document.LayerStopPlace, id)
		d.Popularity = p
		return d
	}
	docs := []document.Document{
		mk("a", 0), mk("b", 500), mk("c", 1), mk("d", 500), mk("e", -3), mk("f", 9000),
	}

	SortByPopularity(docs)

	var got []string
	for _, d := range docs {
		got = append(got, d.SourceID)
	}
	want := []string{"f", "b", "d", "a", "c", "e"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unexpected order %v, want %v", got, want)
	}
}
