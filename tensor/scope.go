package tensor

// Scope tracks tensors acquired inside a block of work and releases them all
// on Close. Typical use:
//
//	scope := tensor.NewScope()
//	defer scope.Close()
//	noise := scope.Track(randomTensor)
//	...
//	return scope.Keep(result), nil
type Scope struct {
	owned []*Tensor
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Track registers t with the scope and returns it.
func (s *Scope) Track(t *Tensor) *Tensor {
	if t != nil {
		s.owned = append(s.owned, t)
	}
	return t
}

// Keep removes t from the scope so Close leaves it alive. Ownership passes
// to the caller.
func (s *Scope) Keep(t *Tensor) *Tensor {
	for i, o := range s.owned {
		if o == t {
			s.owned = append(s.owned[:i], s.owned[i+1:]...)
			break
		}
	}
	return t
}

// Drop releases t immediately and forgets it.
func (s *Scope) Drop(t *Tensor) {
	s.Keep(t)
	t.Release()
}

// Len returns the number of tensors still owned by the scope.
func (s *Scope) Len() int {
	return len(s.owned)
}

// Close releases every tensor still tracked, newest first.
func (s *Scope) Close() {
	for i := len(s.owned) - 1; i >= 0; i-- {
		s.owned[i].Release()
	}
	s.owned = nil
}
