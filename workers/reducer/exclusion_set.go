package reducer

// ExclusionSet holds the product ids whose records are suppressed entirely.
// It is built once by the duplicates loader and only read afterwards, so a
// single value can be shared by every group a reducer processes.
type ExclusionSet struct {
	ids map[string]struct{}
}

// NewExclusionSet builds a set from ids.
func NewExclusionSet(ids ...string) *ExclusionSet {
	set := &ExclusionSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		set.ids[id] = struct{}{}
	}
	return set
}

// EmptyExclusionSet is the set used when duplicate filtering is disabled.
func EmptyExclusionSet() *ExclusionSet {
	return NewExclusionSet()
}

// Contains reports whether productID must be dropped. A nil set contains
// nothing.
func (s *ExclusionSet) Contains(productID string) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[productID]
	return ok
}

// Len returns the number of excluded ids.
func (s *ExclusionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}
