package braid

// Discipline selects the pop order of a Flow.
type Discipline int

const (
	// Stack pops the newest pushed item first (depth-first).
	Stack Discipline = iota
	// Queue pops the oldest pushed item first (breadth-first).
	Queue
)

// Flow is the ordered pending-work list driving the scheduler loop. It is
// owned by a single execution cycle and never mutated concurrently.
type Flow[T any] struct {
	items      []T
	discipline Discipline
}

// NewFlow creates an empty flow with the given discipline.
func NewFlow[T any](d Discipline) *Flow[T] {
	return &Flow[T]{discipline: d}
}

// Discipline returns the flow's pop order.
func (f *Flow[T]) Discipline() Discipline { return f.discipline }

// Push appends an item to the pending list.
func (f *Flow[T]) Push(item T) {
	f.items = append(f.items, item)
}

// Pop removes and returns the next item to execute. The second return is
// false when the flow is empty.
func (f *Flow[T]) Pop() (T, bool) {
	var zero T
	if len(f.items) == 0 {
		return zero, false
	}
	var item T
	if f.discipline == Queue {
		item = f.items[0]
		f.items = f.items[1:]
	} else {
		item = f.items[len(f.items)-1]
		f.items = f.items[:len(f.items)-1]
	}
	return item, true
}

// Peek returns the item at the given offset from the active end without
// removing it. Offset 0 is the next item to execute; negative offsets look
// further back from the active end (Peek(-1) is the item that would
// execute after Peek(0)). Positive offsets are out of range.
func (f *Flow[T]) Peek(offset int) (T, bool) {
	var zero T
	if offset > 0 {
		return zero, false
	}
	idx := -offset
	if idx >= len(f.items) {
		return zero, false
	}
	if f.discipline == Queue {
		return f.items[idx], true
	}
	return f.items[len(f.items)-1-idx], true
}

// Len returns the number of pending items.
func (f *Flow[T]) Len() int { return len(f.items) }

// IsEmpty reports whether no work remains.
func (f *Flow[T]) IsEmpty() bool { return len(f.items) == 0 }
