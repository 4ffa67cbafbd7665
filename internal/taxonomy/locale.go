package taxonomy

import (
	"sort"
	"time"
)

// TextField selects which translatable field the resolver reads.
type TextField string

const (
	FieldName      TextField = "name"
	FieldStatement TextField = "statement"
)

// fallbackLocales is appended after the preferred locale, without
// deduplication. A preferred locale of "zh_HK" is simply tried twice.
var fallbackLocales = []string{"zh_HK", "en_US", "zh_CN"}

// Resolve returns the display text for field on e under preferred, walking
// the fallback chain preferred -> zh_HK -> en_US -> zh_CN. Within one
// locale, duplicate translations are broken by updated_at (newest wins;
// entries without a timestamp sort as epoch, ties keep original order).
// If no locale in the chain yields text, the first translation's field is
// used, then the entity's own top-level field, then the empty string.
func Resolve(e *Entity, preferred string, field TextField) string {
	if e == nil {
		return ""
	}

	chain := append([]string{preferred}, fallbackLocales...)
	for _, locale := range chain {
		if text := resolveLocale(e.Translations, locale, field); text != "" {
			return text
		}
	}

	if len(e.Translations) > 0 {
		if text := translationField(e.Translations[0], field); text != "" {
			return text
		}
	}
	return entityField(e, field)
}

// ResolveName is shorthand for Resolve on the name field.
func ResolveName(e *Entity, preferred string) string {
	return Resolve(e, preferred, FieldName)
}

// ResolveStatement is shorthand for Resolve on the statement field.
func ResolveStatement(e *Entity, preferred string) string {
	return Resolve(e, preferred, FieldStatement)
}

func resolveLocale(translations []Translation, locale string, field TextField) string {
	var matches []Translation
	for _, t := range translations {
		if t.LangCode == locale {
			matches = append(matches, t)
		}
	}
	if len(matches) == 0 {
		return ""
	}

	chosen := matches[0]
	if len(matches) > 1 && anyTimestamped(matches) {
		sorted := make([]Translation, len(matches))
		copy(sorted, matches)
		sort.SliceStable(sorted, func(i, j int) bool {
			return parseUpdatedAt(sorted[i].UpdatedAt).After(parseUpdatedAt(sorted[j].UpdatedAt))
		})
		chosen = sorted[0]
	}
	return translationField(chosen, field)
}

func anyTimestamped(translations []Translation) bool {
	for _, t := range translations {
		if t.UpdatedAt != "" {
			return true
		}
	}
	return false
}

// updatedAtLayouts covers the timestamp encodings seen from the backend.
var updatedAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseUpdatedAt returns the zero time for missing or unrecognized
// timestamps, which orders them as epoch in the tie-break.
func parseUpdatedAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range updatedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func translationField(t Translation, field TextField) string {
	if field == FieldStatement {
		return t.Statement
	}
	return t.Name
}

func entityField(e *Entity, field TextField) string {
	if field == FieldStatement {
		return e.Statement
	}
	return e.Name
}
