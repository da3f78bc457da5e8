package mapview

import "sync"

// Entry is one id-to-shape association.
type Entry struct {
	ID     string
	Handle Handle
}

// Index maps record ids to map shapes. With maxEntries of 0 it grows without
// bound; otherwise it is an LRU and Put evicts the least recently used entry.
type Index struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*node
	head       *node // most recently used
	tail       *node // least recently used
}

type node struct {
	Entry
	prev *node
	next *node
}

// NewIndex creates an empty index.
func NewIndex(maxEntries int) *Index {
	return &Index{
		maxEntries: maxEntries,
		entries:    make(map[string]*node),
	}
}

// Get returns the handle registered under id and marks it recently used.
func (x *Index) Get(id string) (Handle, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	n, ok := x.entries[id]
	if !ok {
		return 0, false
	}
	x.moveToFront(n)
	return n.Handle, true
}

// Put registers id. If that pushes the index over its bound, the evicted
// entry is returned with ok set.
func (x *Index) Put(id string, h Handle) (evicted Entry, ok bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if n, found := x.entries[id]; found {
		n.Handle = h
		x.moveToFront(n)
		return Entry{}, false
	}

	n := &node{Entry: Entry{ID: id, Handle: h}}
	x.entries[id] = n
	x.addToFront(n)

	if x.maxEntries > 0 && len(x.entries) > x.maxEntries {
		return x.evictTail(), true
	}
	return Entry{}, false
}

// Remove drops id from the index.
func (x *Index) Remove(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	n, ok := x.entries[id]
	if !ok {
		return false
	}
	delete(x.entries, id)
	x.unlink(n)
	return true
}

// Entries returns every entry, most recently used first.
func (x *Index) Entries() []Entry {
	x.mu.Lock()
	defer x.mu.Unlock()

	out := make([]Entry, 0, len(x.entries))
	for n := x.head; n != nil; n = n.next {
		out = append(out, n.Entry)
	}
	return out
}

// Len returns the number of entries.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}

func (x *Index) moveToFront(n *node) {
	if n == x.head {
		return
	}
	x.unlink(n)
	x.addToFront(n)
}

func (x *Index) addToFront(n *node) {
	n.next = x.head
	n.prev = nil
	if x.head != nil {
		x.head.prev = n
	}
	x.head = n
	if x.tail == nil {
		x.tail = n
	}
}

func (x *Index) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		x.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		x.tail = n.prev
	}
}

func (x *Index) evictTail() Entry {
	n := x.tail
	delete(x.entries, n.ID)
	x.unlink(n)
	return n.Entry
}
