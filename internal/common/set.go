package common

// Set keeps unique elements in insertion order.
type Set[T comparable] struct {
	index    map[T]struct{}
	elements []T
}

func NewSet[T comparable](values ...T) *Set[T] {
	s := &Set[T]{index: make(map[T]struct{}, len(values))}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts value and reports whether it was not present yet.
func (s *Set[T]) Add(value T) bool {
	if _, found := s.index[value]; found {
		return false
	}
	s.index[value] = struct{}{}
	s.elements = append(s.elements, value)
	return true
}

func (s *Set[T]) Contains(value T) bool {
	_, found := s.index[value]
	return found
}

func (s *Set[T]) Size() int {
	return len(s.elements)
}

// List returns the elements in the order they were first added.
func (s *Set[T]) List() []T {
	out := make([]T, len(s.elements))
	copy(out, s.elements)
	return out
}
