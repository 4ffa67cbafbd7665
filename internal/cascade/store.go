package cascade

import (
	"sync"

	"ilochat/internal/taxonomy"
)

// Store owns the single mutable selection state and applies transitions
// sequentially. Only the cascade mutates the state; the conversation
// engine holds a read-only view through State().
type Store struct {
	mu      sync.RWMutex
	state   State
	catalog *taxonomy.Catalog
}

// NewStore creates a store with an empty selection, resolving entities
// through catalog.
func NewStore(catalog *taxonomy.Catalog) *Store {
	return &Store{catalog: catalog}
}

// State returns a copy of the current selection state. The AvailableVerbs
// slice is shared but never mutated in place; transitions replace it
// wholesale.
func (st *Store) State() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state
}

// SetTopic replaces the topic field.
func (st *Store) SetTopic(topic string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = SetTopic(st.state, topic)
}

// SetSubject replaces the subject selection.
func (st *Store) SetSubject(id int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = SetSubject(st.state, id)
}

// SetGrade replaces the grade selection.
func (st *Store) SetGrade(id int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = SetGrade(st.state, id)
}

// SetCategory replaces the category selection, cascading per the resolved
// category's Bloom flags.
func (st *Store) SetCategory(id int) {
	cat := st.catalog.CategoryByID(id)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = SetCategory(st.state, cat)
}

// SetBloomLevel replaces the Bloom level selection; id 0 clears it.
func (st *Store) SetBloomLevel(id int) {
	var level *taxonomy.BloomLevel
	if id != 0 {
		level = st.catalog.BloomLevelByID(id)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = SetBloomLevel(st.state, level)
}

// SetVerb replaces the verb selection; id 0 clears it.
func (st *Store) SetVerb(id int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = SetVerb(st.state, id)
}

// ApplyDefaults selects the first subject and grade level in list order
// when the corresponding repository has completed with a non-empty list
// and nothing is selected yet. Safe to call after every load; it only
// ever fills empty selections.
func (st *Store) ApplyDefaults() {
	subjects := st.catalog.Subjects.Items()
	grades := st.catalog.Grades.Items()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.state.SubjectID == 0 && len(subjects) > 0 {
		st.state = SetSubject(st.state, subjects[0].ID)
	}
	if st.state.GradeID == 0 && len(grades) > 0 {
		st.state = SetGrade(st.state, grades[0].ID)
	}
}

// Check evaluates generation readiness against the current selection.
func (st *Store) Check() Violation {
	st.mu.RLock()
	s := st.state
	st.mu.RUnlock()
	return Check(s, st.catalog.CategoryByID(s.CategoryID))
}

// CurrentCategory resolves the selected category, or nil.
func (st *Store) CurrentCategory() *taxonomy.Category {
	return st.catalog.CategoryByID(st.State().CategoryID)
}
