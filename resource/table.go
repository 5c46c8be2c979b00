package resource

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("native table closed")

// Table maps handles to native values owned by foreign heap blocks.
type Table struct {
	entries   []entry
	freeList  []Handle
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

type entry struct {
	value any
	kind  Kind
	valid bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Insert stores a value and returns its handle, or 0 after Close.
func (t *Table) Insert(kind Kind, value any) Handle {
	handle, err := t.insert(kind, value)
	if err != nil {
		return 0
	}
	t.notify(Event{Type: EventCreated, Handle: handle, Kind: kind, Value: value})
	return handle
}

func (t *Table) insert(kind Kind, value any) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, ErrClosed
	}

	e := entry{kind: kind, value: value, valid: true}

	if len(t.freeList) > 0 {
		handle := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[handle-1] = e
		return handle, nil
	}

	t.entries = append(t.entries, e)
	return Handle(len(t.entries)), nil
}

// Get retrieves a value by handle.
func (t *Table) Get(handle Handle) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.lookup(handle)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// GetKind retrieves a value only if it is owned by a block of the given kind.
func (t *Table) GetKind(handle Handle, kind Kind) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.lookup(handle)
	if !ok || e.kind != kind {
		return nil, false
	}
	return e.value, true
}

// Replace overwrites the value stored under handle without dropping the old one.
func (t *Table) Replace(handle Handle, value any) bool {
	t.mu.Lock()
	e, ok := t.lookup(handle)
	if ok {
		t.entries[handle-1].value = value
	}
	t.mu.Unlock()

	if ok {
		t.notify(Event{Type: EventReplaced, Handle: handle, Kind: e.kind, Value: value})
	}
	return ok
}

// Remove drops a value and returns it. Dropper values are notified.
func (t *Table) Remove(handle Handle) (any, bool) {
	t.mu.Lock()
	e, ok := t.lookup(handle)
	if ok {
		t.entries[handle-1] = entry{}
		t.freeList = append(t.freeList, handle)
	}
	t.mu.Unlock()

	if !ok {
		return nil, false
	}
	if d, ok := e.value.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: handle, Kind: e.kind, Value: e.value})
	return e.value, true
}

// lookup must be called with mu held.
func (t *Table) lookup(handle Handle) (entry, bool) {
	if handle == 0 || int(handle) > len(t.entries) {
		return entry{}, false
	}
	e := t.entries[handle-1]
	if !e.valid {
		return entry{}, false
	}
	return e, true
}

// Len returns the number of live values.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, e := range t.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all live values until fn returns false.
func (t *Table) Each(fn func(Handle, Kind, any) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i, e := range t.entries {
		if e.valid && !fn(Handle(i+1), e.kind, e.value) {
			break
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Close drops every live value and rejects further inserts.
func (t *Table) Close() error {
	var handles []Handle
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for i, e := range t.entries {
		if e.valid {
			handles = append(handles, Handle(i+1))
		}
	}
	t.mu.Unlock()

	for _, h := range handles {
		t.Remove(h)
	}
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
