package crawler

import (
	"testing"

	"github.com/alvmarrod/site-weaver/internal/storage"
)

func TestQueue(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	if !q.IsEmpty() {
		t.Fatal("new queue should be empty")
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop() on empty queue should report false")
	}

	q.Push(storage.QueueEntry{URL: "a", Order: 0})
	q.Push(storage.QueueEntry{URL: "b", Order: 1})
	q.PushFront(storage.QueueEntry{URL: "z", Order: 2})

	if q.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", q.Size())
	}

	for _, want := range []string{"z", "a", "b"} {
		got, ok := q.Pop()
		if !ok || got.URL != want {
			t.Fatalf("Pop() = %q (%v), want %q", got.URL, ok, want)
		}
	}
	if !q.IsEmpty() {
		t.Error("queue should be drained")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if !r.MarkSeen("http://example.com/about") {
		t.Fatal("first MarkSeen should return true")
	}

	for _, variant := range []string{
		"http://example.com/about",
		"http://example.com/about/",
		"http://EXAMPLE.com:80/about#team",
	} {
		if r.MarkSeen(variant) {
			t.Errorf("variant %q should already be seen", variant)
		}
	}

	if !r.MarkSeen("http://example.com/contact") {
		t.Error("unrelated URL reported as seen")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}
