package catalog

// IDSet tracks application ids already emitted by one collection run.
// It is not safe for concurrent use; collection is sequential.
type IDSet struct {
	seen map[string]struct{}
}

// NewIDSet returns an empty set.
func NewIDSet() *IDSet {
	return &IDSet{seen: make(map[string]struct{})}
}

// Has reports whether id was already added.
func (s *IDSet) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.seen[id]
	return ok
}

// MarkIfNew stores id if it has not been seen before and returns true.
func (s *IDSet) MarkIfNew(id string) bool {
	if s == nil || id == "" {
		return false
	}
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Len returns the number of ids in the set.
func (s *IDSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.seen)
}
