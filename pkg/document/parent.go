package document

import "encoding/json"

// FieldKind identifies one level of administrative parent.
type FieldKind int

const (
	Locality FieldKind = iota
	County
	Country
)

var fieldKindNames = map[FieldKind]string{
	Locality: "locality",
	County:   "county",
	Country:  "country",
}

func (k FieldKind) String() string {
	return fieldKindNames[k]
}

func (k FieldKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Field is one administrative parent entry.
type Field struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation,omitempty"`
	Source       string `json:"source,omitempty"`
}

// Complete reports whether the field carries both an id and a name.
func (f Field) Complete() bool {
	return f.ID != "" && f.Name != ""
}

// Parent is an immutable set of administrative parent fields. Every method
// that changes a field returns a new Parent and leaves the receiver as is.
// The zero value is an empty Parent.
type Parent struct {
	fields map[FieldKind]Field
}

func NewParent() Parent {
	return Parent{}
}

// With returns a copy with the field for kind replaced.
func (p Parent) With(kind FieldKind, f Field) Parent {
	fields := make(map[FieldKind]Field, len(p.fields)+1)
	for k, v := range p.fields {
		fields[k] = v
	}
	fields[kind] = f
	return Parent{fields: fields}
}

// WithName returns a copy with the name of an existing field replaced.
// Absent fields stay absent.
func (p Parent) WithName(kind FieldKind, name string) Parent {
	f, ok := p.fields[kind]
	if !ok {
		return p
	}
	f.Name = name
	return p.With(kind, f)
}

func (p Parent) Field(kind FieldKind) (Field, bool) {
	f, ok := p.fields[kind]
	return f, ok
}

func (p Parent) ID(kind FieldKind) string {
	return p.fields[kind].ID
}

func (p Parent) Name(kind FieldKind) string {
	return p.fields[kind].Name
}

func (p Parent) IsEmpty() bool {
	return len(p.fields) == 0
}

// Fields returns a copy of all fields.
func (p Parent) Fields() map[FieldKind]Field {
	out := make(map[FieldKind]Field, len(p.fields))
	for k, v := range p.fields {
		out[k] = v
	}
	return out
}

// MarshalJSON writes the complete fields keyed by kind, each wrapped in a
// one-element list as the search engine importer expects.
func (p Parent) MarshalJSON() ([]byte, error) {
	out := make(map[FieldKind][]Field, len(p.fields))
	for k, f := range p.fields {
		if f.Complete() {
			out[k] = []Field{f}
		}
	}
	return json.Marshal(out)
}
