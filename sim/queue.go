// Implements Queue, the id container behind the ready, running and stalled
// sets of every policy.

package sim

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Queue is an ordered set of task ids with an explicit capacity.
// A capacity of zero or less means unbounded.
// Element order is meaningful: policies sort it and read the head.
type Queue struct {
	name     string
	capacity int
	ids      []int
}

// NewQueue creates an empty queue.
func NewQueue(name string, capacity int) *Queue {
	size := capacity
	if size < 0 {
		size = 0
	}
	return &Queue{name: name, capacity: capacity, ids: make([]int, 0, size)}
}

// Name returns the queue label used in error messages.
func (q *Queue) Name() string {
	return q.name
}

// Cap returns the configured capacity.
func (q *Queue) Cap() int {
	return q.capacity
}

// Add appends id. Adding an id already present or exceeding the capacity is
// an error and leaves the queue unchanged.
func (q *Queue) Add(id int) error {
	if slices.Contains(q.ids, id) {
		return NewError(KindQueue, "%s: task %d already present", q.name, id)
	}
	if q.capacity > 0 && len(q.ids) >= q.capacity {
		return NewError(KindQueue, "%s: capacity %d exhausted adding task %d", q.name, q.capacity, id)
	}
	q.ids = append(q.ids, id)
	return nil
}

// Remove deletes id, keeping the remaining ids in order.
func (q *Queue) Remove(id int) error {
	i := slices.Index(q.ids, id)
	if i < 0 {
		return NewError(KindQueue, "%s: task %d not present", q.name, id)
	}
	q.ids = slices.Delete(q.ids, i, i+1)
	return nil
}

// Contains reports whether id is in the queue.
func (q *Queue) Contains(id int) bool {
	return slices.Contains(q.ids, id)
}

// Len returns the number of ids in the queue.
func (q *Queue) Len() int {
	return len(q.ids)
}

// At returns the id at position i, or NoTask when i is out of range.
func (q *Queue) At(i int) int {
	if i < 0 || i >= len(q.ids) {
		return NoTask
	}
	return q.ids[i]
}

// Set overwrites position i. Out of range positions are ignored.
func (q *Queue) Set(i, id int) {
	if i < 0 || i >= len(q.ids) {
		return
	}
	q.ids[i] = id
}

// Front returns the head of the queue, or NoTask when empty.
func (q *Queue) Front() int {
	return q.At(0)
}

// IDs returns a copy of the queue contents.
func (q *Queue) IDs() []int {
	return slices.Clone(q.ids)
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.ids = q.ids[:0]
}

// Truncate keeps only the first n ids.
func (q *Queue) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(q.ids) {
		q.ids = q.ids[:n]
	}
}

// Sort orders the queue by ascending key; equal keys keep the lower id first.
func (q *Queue) Sort(key func(id int) float64) {
	slices.SortStableFunc(q.ids, func(a, b int) int {
		ka, kb := key(a), key(b)
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		}
		return a - b
	})
}

// Reorder applies fn to the queue contents for custom in-place orderings:
//
//	q.Reorder(func(ids []int) {
//	    sort.SliceStable(ids, less)
//	})
//
// fn MUST NOT change the slice length.
func (q *Queue) Reorder(fn func([]int)) {
	if fn == nil {
		panic("Reorder: fn must not be nil")
	}
	n := len(q.ids)
	fn(q.ids)
	if len(q.ids) != n {
		panic(fmt.Sprintf("Reorder: fn changed queue length from %d to %d", n, len(q.ids)))
	}
}

func (q *Queue) String() string {
	var sb strings.Builder
	sb.WriteString(q.name)
	sb.WriteString("[")
	for i, id := range q.ids {
		sb.WriteString(fmt.Sprint(id))
		if i < len(q.ids)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
