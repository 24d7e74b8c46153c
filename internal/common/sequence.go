package common

// Sequence hands out monotonically increasing ids. Not safe for concurrent
// use; the core is single-threaded by design and id assignment order is
// part of the deterministic replay contract.
type Sequence struct {
	n uint64
}

// Next returns the next id, starting from 1.
func (s *Sequence) Next() uint64 {
	s.n++
	return s.n
}
