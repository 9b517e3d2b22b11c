// Package memory holds in-process stores for development and tests. Each
// store serialises its transactions behind one mutex and applies staged
// writes only when the transaction function returns nil.
package memory

import "sort"

type table[K comparable, V any] struct {
	rows map[K]V
}

func newTable[K comparable, V any]() *table[K, V] {
	return &table[K, V]{rows: make(map[K]V)}
}

func (t *table[K, V]) get(k K) (V, bool) {
	v, ok := t.rows[k]
	return v, ok
}

func (t *table[K, V]) list(less func(a, b V) bool) []V {
	out := make([]V, 0, len(t.rows))
	for _, v := range t.rows {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// staged is a table's view inside one transaction.
type staged[K comparable, V any] struct {
	base    *table[K, V]
	writes  map[K]V
	deletes map[K]struct{}
}

func stage[K comparable, V any](base *table[K, V]) *staged[K, V] {
	return &staged[K, V]{
		base:    base,
		writes:  make(map[K]V),
		deletes: make(map[K]struct{}),
	}
}

func (s *staged[K, V]) get(k K) (V, bool) {
	if _, gone := s.deletes[k]; gone {
		var zero V
		return zero, false
	}
	if v, ok := s.writes[k]; ok {
		return v, true
	}
	return s.base.get(k)
}

func (s *staged[K, V]) put(k K, v V) {
	delete(s.deletes, k)
	s.writes[k] = v
}

func (s *staged[K, V]) del(k K) {
	delete(s.writes, k)
	s.deletes[k] = struct{}{}
}

// each visits every live row, staged writes included.
func (s *staged[K, V]) each(fn func(K, V)) {
	for k, v := range s.base.rows {
		if _, gone := s.deletes[k]; gone {
			continue
		}
		if _, overwritten := s.writes[k]; overwritten {
			continue
		}
		fn(k, v)
	}
	for k, v := range s.writes {
		fn(k, v)
	}
}

func (s *staged[K, V]) commit() {
	for k := range s.deletes {
		delete(s.base.rows, k)
	}
	for k, v := range s.writes {
		s.base.rows[k] = v
	}
}

// history is an append-only log grouped by reference.
type history[T any] struct {
	rows map[string][]T
}

func newHistory[T any]() *history[T] {
	return &history[T]{rows: make(map[string][]T)}
}

func (h *history[T]) of(ref string) []T {
	return append([]T(nil), h.rows[ref]...)
}

type pendingRow[T any] struct {
	ref string
	row T
}

type stagedHistory[T any] struct {
	base    *history[T]
	pending []pendingRow[T]
}

func (s *stagedHistory[T]) append(ref string, row T) {
	s.pending = append(s.pending, pendingRow[T]{ref: ref, row: row})
}

func (s *stagedHistory[T]) commit() {
	for _, p := range s.pending {
		s.base.rows[p.ref] = append(s.base.rows[p.ref], p.row)
	}
}
