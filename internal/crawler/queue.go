package crawler

import (
	"github.com/alvmarrod/site-weaver/internal/storage"
)

// Queue is the FIFO crawl frontier. It is owned by a single traversal;
// de-duplication happens in the Registry before anything is pushed.
type Queue struct {
	items []storage.QueueEntry
}

// NewQueue creates a new BFS queue
func NewQueue() *Queue {
	return &Queue{
		items: make([]storage.QueueEntry, 0),
	}
}

// Push appends an entry to the back of the queue
func (q *Queue) Push(entry storage.QueueEntry) {
	q.items = append(q.items, entry)
}

// PushFront puts an entry back at the head of the queue
func (q *Queue) PushFront(entry storage.QueueEntry) {
	q.items = append([]storage.QueueEntry{entry}, q.items...)
}

// Pop removes and returns the first entry from the queue.
// Returns (empty, false) if the queue is empty
func (q *Queue) Pop() (storage.QueueEntry, bool) {
	if len(q.items) == 0 {
		return storage.QueueEntry{}, false
	}
	entry := q.items[0]
	q.items[0] = storage.QueueEntry{}
	q.items = q.items[1:]
	return entry, true
}

// IsEmpty returns true if the queue has no items
func (q *Queue) IsEmpty() bool {
	return len(q.items) == 0
}

// Size returns the current number of items in the queue
func (q *Queue) Size() int {
	return len(q.items)
}
