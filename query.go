package shelf

import (
	"fmt"
	"iter"
	"sort"
	"strings"
)

// Query is an immutable chain of deferred operations over a collection.
// Every chaining call returns a new Query wrapping the previous one, so
// a base query can be refined in several directions without the
// refinements interfering. Nothing touches the disk until a terminal
// runs, and each terminal re-walks the chain against the directory's
// current state, so two terminals on the same query can see different
// records if the directory changed in between.
type Query[T any] struct {
	coll *Collection[T]
	prev *Query[T]
	op   func(iter.Seq2[*T, error]) iter.Seq2[*T, error]
	err  error // deferred argument error, surfaced by terminals
}

func (q *Query[T]) chain(op func(iter.Seq2[*T, error]) iter.Seq2[*T, error]) *Query[T] {
	return &Query[T]{coll: q.coll, prev: q, op: op, err: q.err}
}

// fail records a bad chaining argument; the earliest one wins and every
// terminal on the chain reports it.
func (q *Query[T]) fail(err error) *Query[T] {
	if q.err != nil {
		err = q.err
	}
	return &Query[T]{coll: q.coll, prev: q, err: err}
}

// seq composes the chain into one lazy sequence.
func (q *Query[T]) seq() iter.Seq2[*T, error] {
	if q.err != nil {
		err := q.err
		return func(yield func(*T, error) bool) {
			yield(nil, err)
		}
	}
	if q.prev == nil {
		return q.coll.All()
	}
	up := q.prev.seq()
	if q.op == nil {
		return up
	}
	return q.op(up)
}

// Filter narrows the query to records pred accepts. Chained filters
// apply left to right and short-circuit per record: a record rejected
// early is never shown to a later predicate.
func (q *Query[T]) Filter(pred func(*T) bool) *Query[T] {
	if pred == nil {
		return q.fail(fmt.Errorf("%w: nil predicate", ErrInvalidArgument))
	}
	return q.chain(func(src iter.Seq2[*T, error]) iter.Seq2[*T, error] {
		return func(yield func(*T, error) bool) {
			for rec, err := range src {
				if err != nil {
					yield(nil, err)
					return
				}
				if !pred(rec) {
					continue
				}
				if !yield(rec, nil) {
					return
				}
			}
		}
	})
}

// OrderBy sorts by the named record field; a leading "-" flips to
// descending. The sort is stable, so equal keys keep their upstream
// relative order. Records missing the field sort as nil: first when
// ascending, last when descending. Sorting is the one operation that
// materializes everything before it in the chain.
func (q *Query[T]) OrderBy(field string) *Query[T] {
	desc := strings.HasPrefix(field, "-")
	name := strings.TrimPrefix(field, "-")
	if name == "" {
		return q.fail(fmt.Errorf("%w: empty order field", ErrInvalidArgument))
	}
	return q.chain(func(src iter.Seq2[*T, error]) iter.Seq2[*T, error] {
		return func(yield func(*T, error) bool) {
			var recs []*T
			for rec, err := range src {
				if err != nil {
					yield(nil, err)
					return
				}
				recs = append(recs, rec)
			}
			sort.SliceStable(recs, func(i, j int) bool {
				a, _ := fieldValue(recs[i], name)
				b, _ := fieldValue(recs[j], name)
				if desc {
					return valueLess(b, a)
				}
				return valueLess(a, b)
			})
			for _, rec := range recs {
				if !yield(rec, nil) {
					return
				}
			}
		}
	})
}

// Head keeps the first n records of the upstream order and stops
// reading as soon as it has them. Negative n surfaces as
// ErrInvalidArgument at the terminal.
func (q *Query[T]) Head(n int) *Query[T] {
	if n < 0 {
		return q.fail(fmt.Errorf("%w: negative head %d", ErrInvalidArgument, n))
	}
	return q.chain(func(src iter.Seq2[*T, error]) iter.Seq2[*T, error] {
		return func(yield func(*T, error) bool) {
			if n == 0 {
				return
			}
			taken := 0
			for rec, err := range src {
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(rec, nil) {
					return
				}
				taken++
				if taken == n {
					return
				}
			}
		}
	})
}

// Tail keeps the last n records, which buffers the full upstream
// sequence since the end cannot be known without exhausting it.
// Negative n surfaces as ErrInvalidArgument at the terminal.
func (q *Query[T]) Tail(n int) *Query[T] {
	if n < 0 {
		return q.fail(fmt.Errorf("%w: negative tail %d", ErrInvalidArgument, n))
	}
	return q.chain(func(src iter.Seq2[*T, error]) iter.Seq2[*T, error] {
		return func(yield func(*T, error) bool) {
			var recs []*T
			for rec, err := range src {
				if err != nil {
					yield(nil, err)
					return
				}
				recs = append(recs, rec)
			}
			if n < len(recs) {
				recs = recs[len(recs)-n:]
			}
			for _, rec := range recs {
				if !yield(rec, nil) {
					return
				}
			}
		}
	})
}

// ToList materializes the query into a slice, reading from disk now.
func (q *Query[T]) ToList() ([]*T, error) {
	var out []*T
	for rec, err := range q.seq() {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count walks the query and reports how many records survive it.
func (q *Query[T]) Count() (int, error) {
	n := 0
	for _, err := range q.seq() {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// First returns the first record of the query, or (nil, nil) when the
// query matches nothing.
func (q *Query[T]) First() (*T, error) {
	for rec, err := range q.seq() {
		return rec, err
	}
	return nil, nil
}

// Last returns the final record of the query, or (nil, nil) when the
// query matches nothing.
func (q *Query[T]) Last() (*T, error) {
	var last *T
	for rec, err := range q.seq() {
		if err != nil {
			return nil, err
		}
		last = rec
	}
	return last, nil
}

// Exists reports whether any record survives the query, applying any
// given predicates as trailing filters first.
func (q *Query[T]) Exists(preds ...func(*T) bool) (bool, error) {
	refined := q
	for _, pred := range preds {
		refined = refined.Filter(pred)
	}
	rec, err := refined.First()
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// All exposes the query as a lazy, restartable sequence. Each range
// over it re-evaluates the chain from current disk state.
func (q *Query[T]) All() iter.Seq2[*T, error] {
	return q.seq()
}
