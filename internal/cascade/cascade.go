// Package cascade models the dependent selection state behind the
// assistant's context form: topic, subject and grade are flat fields,
// while category -> Bloom level -> verb form a dependency chain. State is
// an immutable value transformed by pure transition functions; a Store
// owns the single mutable reference and applies transitions sequentially.
package cascade

import (
	"strings"

	"ilochat/internal/taxonomy"
)

// State is the full selection state. Zero ids mean "unset" (backend ids
// start at 1). AvailableVerbs is wholly recomputed whenever the Bloom
// level changes; VerbID always references an entry in AvailableVerbs or
// is unset.
type State struct {
	Topic          string
	SubjectID      int
	GradeID        int
	CategoryID     int
	BloomLevelID   int
	VerbID         int
	AvailableVerbs []taxonomy.Verb
}

// SetTopic returns s with the topic replaced. No cascading.
func SetTopic(s State, topic string) State {
	s.Topic = topic
	return s
}

// SetSubject returns s with the subject replaced. No cascading.
func SetSubject(s State, id int) State {
	s.SubjectID = id
	return s
}

// SetGrade returns s with the grade level replaced. No cascading.
func SetGrade(s State, id int) State {
	s.GradeID = id
	return s
}

// SetCategory returns s with the category replaced. When the resolved
// category does not show Bloom taxonomy at all, any Bloom level, verb and
// verb list carried over from a previous category are cleared.
func SetCategory(s State, cat *taxonomy.Category) State {
	if cat == nil {
		s.CategoryID = 0
		return s
	}
	s.CategoryID = cat.ID
	if !cat.ShowBloomTaxonomy.Bool() {
		s.BloomLevelID = 0
		s.VerbID = 0
		s.AvailableVerbs = nil
	}
	return s
}

// SetBloomLevel returns s with the Bloom level replaced. A nil level
// clears the selection along with the verb list. Otherwise the level's
// verb list replaces (never merges into) the previous one and the first
// verb is auto-selected when the list is non-empty.
func SetBloomLevel(s State, level *taxonomy.BloomLevel) State {
	if level == nil {
		s.BloomLevelID = 0
		s.VerbID = 0
		s.AvailableVerbs = nil
		return s
	}
	s.BloomLevelID = level.ID
	s.AvailableVerbs = level.Verbs
	if len(level.Verbs) > 0 {
		s.VerbID = level.Verbs[0].ID
	} else {
		s.VerbID = 0
	}
	return s
}

// SetVerb returns s with the verb replaced when id names an entry of
// AvailableVerbs; id 0 clears the selection. Ids outside the current list
// are ignored, preserving the invariant that VerbID always references an
// available verb.
func SetVerb(s State, id int) State {
	if id == 0 {
		s.VerbID = 0
		return s
	}
	for _, v := range s.AvailableVerbs {
		if v.ID == id {
			s.VerbID = id
			return s
		}
	}
	return s
}

// Violation identifies the first unmet generation precondition.
type Violation int

const (
	// ViolationNone means generation may proceed.
	ViolationNone Violation = iota
	// ViolationMissingTopic: the topic field is empty.
	ViolationMissingTopic
	// ViolationMissingCategory: no ILO category chosen.
	ViolationMissingCategory
	// ViolationMissingBloomLevel: the category requires a Bloom level but
	// none is chosen.
	ViolationMissingBloomLevel
	// ViolationMissingVerb: a Bloom level is chosen but no verb is.
	ViolationMissingVerb
)

// Message returns the user-visible validation text for the violation.
func (v Violation) Message() string {
	switch v {
	case ViolationMissingTopic:
		return "請先輸入課題（topic）"
	case ViolationMissingCategory:
		return "請先選擇 ILO 類別"
	case ViolationMissingBloomLevel:
		return "此類別需要選擇 Bloom 層級"
	case ViolationMissingVerb:
		return "請選擇一個動詞（action verb）"
	default:
		return ""
	}
}

// Check evaluates the generation readiness predicate and reports the first
// violated condition only, in the fixed priority order: topic, category,
// Bloom level, verb. cat is the resolved current category (nil when the
// id is unset or unknown). A category that requires Bloom taxonomy while
// not showing it is accepted as-is: generation proceeds without a Bloom
// level.
func Check(s State, cat *taxonomy.Category) Violation {
	if strings.TrimSpace(s.Topic) == "" {
		return ViolationMissingTopic
	}
	if s.CategoryID == 0 {
		return ViolationMissingCategory
	}
	if cat != nil && cat.ShowBloomTaxonomy.Bool() && cat.RequireBloomTaxonomy.Bool() {
		if s.BloomLevelID == 0 {
			return ViolationMissingBloomLevel
		}
		if s.VerbID == 0 {
			return ViolationMissingVerb
		}
	}
	return ViolationNone
}

// Ready reports whether generation may proceed.
func Ready(s State, cat *taxonomy.Category) bool {
	return Check(s, cat) == ViolationNone
}
