// Package taxonomy holds the instructional-design taxonomies the assistant
// works with (subjects, grade levels, ILO categories, Bloom levels, pattern
// templates), the locale resolver for their display text, and the
// repositories that load them from the LDS backend.
package taxonomy

import (
	"bytes"
	"encoding/json"
)

// Translation is one localized variant of an entity's text fields.
// The backend may send duplicates for the same lang_code; the resolver
// breaks ties on updated_at (see locale.go).
type Translation struct {
	LangCode  string `json:"lang_code"`
	Name      string `json:"name,omitempty"`
	Statement string `json:"statement,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Entity is a translatable taxonomy record. Subjects, grade levels and
// Bloom verbs are plain entities; categories, Bloom levels and patterns
// embed it. ID is the sole equality key for selection.
type Entity struct {
	ID           int           `json:"id"`
	Name         string        `json:"name"`
	Statement    string        `json:"statement,omitempty"`
	Translations []Translation `json:"translation,omitempty"`
}

// Verb is an action verb owned by a Bloom level. Verbs have no lifecycle
// of their own on the client; they exist only inside their level's list.
type Verb = Entity

// BloomLevel is a Bloom's Taxonomy tier together with the verbs used to
// phrase ILOs at that level.
type BloomLevel struct {
	Entity
	Verbs []Verb `json:"bloom_taxonomy_verbs"`
}

// Category classifies an ILO type. ShowBloomTaxonomy controls whether the
// Bloom selection applies at all; RequireBloomTaxonomy whether it is
// mandatory before generation. A category with require set but show unset
// is inconsistent; it is accepted as-is and generation proceeds without a
// Bloom level in that case.
type Category struct {
	Entity
	ShowBloomTaxonomy    Flag `json:"show_bloom_taxonomy"`
	RequireBloomTaxonomy Flag `json:"require_bloom_taxonomy"`
}

// PatternType tags a pattern with its owning category type.
type PatternType struct {
	ID int `json:"id"`
}

// Pattern is a reusable phrasing template for an ILO statement.
type Pattern struct {
	Entity
	Type PatternType `json:"type"`
}

// Flag is a bool that tolerates the 0/1 and "0"/"1" encodings the Laravel
// backend emits alongside real JSON booleans.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch {
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("1")), bytes.Equal(data, []byte(`"1"`)), bytes.Equal(data, []byte(`"true"`)):
		*f = true
	case bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte("0")), bytes.Equal(data, []byte(`"0"`)), bytes.Equal(data, []byte(`"false"`)), bytes.Equal(data, []byte("null")):
		*f = false
	default:
		// Unknown encodings (floats, objects) degrade to false rather
		// than failing the whole list decode.
		var b bool
		if err := json.Unmarshal(data, &b); err == nil {
			*f = Flag(b)
		} else {
			*f = false
		}
	}
	return nil
}

func (f Flag) Bool() bool { return bool(f) }
