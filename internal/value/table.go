package value

// Table is an open-addressed hash map keyed by interned *ObjString identity
// (probing compares the pointer, never the bytes — interning already makes
// equal strings identical objects). It backs three call sites named by the
// spec: the heap's string-intern set, every VM's globals, and every
// ObjClass.Methods / ObjInstance.Fields table.
//
// Deletion leaves a tombstone (key == nil, value == Bool(true)) distinct
// from a never-used slot (key == nil, value == Nil), so a later probe chain
// broken by a deleted entry still terminates. Count therefore counts live
// entries plus tombstones, and findEntry remembers the first tombstone it
// passes and returns it instead of the eventual empty slot, so repeated
// insert/delete cycles don't make probe chains grow without bound.
type Table struct {
	count   int // live entries + tombstones
	entries []entry
}

type entry struct {
	key   *ObjString
	value Value
}

const tableMaxLoad = 0.75

func NewTable() *Table {
	return &Table{}
}

func (e *entry) isTombstone() bool { return e.key == nil && e.value.Type == ValBool }
func (e *entry) isEmpty() bool     { return e.key == nil && e.value.Type != ValBool }

// Get looks up key, returning (value, true) if present.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if len(t.entries) == 0 {
		return Value{}, false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil {
		return Value{}, false
	}
	return e.value, true
}

// Set inserts or overwrites key's value, growing the table first if doing
// so would push the load factor past 0.75. Returns true if key is new.
func (t *Table) Set(key *ObjString, val Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		t.grow(growCapacity(len(t.entries)))
	}

	e := t.findEntry(t.entries, key)
	isNew := e.key == nil
	if isNew && e.isEmpty() {
		t.count++ // a reused tombstone was already counted
	}
	e.key = key
	e.value = val
	return isNew
}

// Delete replaces key's entry with a tombstone (key=nil, value=Bool(true))
// so later probes for other keys still find their slot.
func (t *Table) Delete(key *ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = BoolVal(true)
	return true
}

// AddAll copies every live entry of src into t (used by OP_INHERIT to copy
// a superclass's methods into its subclass).
func (t *Table) AddAll(src *Table) {
	for _, e := range src.entries {
		if e.key != nil {
			t.Set(e.key, e.value)
		}
	}
}

// FindString probes the table by (length, hash, byte-contents) instead of
// by key identity. This is the sole entry point used for string interning,
// since before a string is interned there is no *ObjString to compare by
// pointer yet.
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	capacity := uint32(len(t.entries))
	index := hash % capacity
	for {
		e := &t.entries[index]
		if e.isEmpty() {
			return nil
		} else if e.key != nil && e.key.Hash == hash && len(e.key.Chars) == len(chars) && e.key.Chars == chars {
			return e.key
		}
		index = (index + 1) % capacity
	}
}

// Count reports live entries plus tombstones.
func (t *Table) Count() int { return t.count }

// Each calls fn for every live entry. Used by the GC to mark table contents.
func (t *Table) Each(fn func(key *ObjString, val Value)) {
	for _, e := range t.entries {
		if e.key != nil {
			fn(e.key, e.value)
		}
	}
}

// RemoveWhite deletes every entry whose key is unmarked. This is the only
// place the table acts as a weak map; it is how the GC lets unreferenced
// interned strings become collectible.
func (t *Table) RemoveWhite() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !e.key.Header().Marked() {
			e.key = nil
			e.value = BoolVal(true)
		}
	}
}

func (t *Table) findEntry(entries []entry, key *ObjString) *entry {
	capacity := uint32(len(entries))
	index := key.Hash % capacity
	var tombstone *entry
	for {
		e := &entries[index]
		switch {
		case e.isEmpty():
			if tombstone != nil {
				return tombstone
			}
			return e
		case e.isTombstone():
			if tombstone == nil {
				tombstone = e
			}
		case e.key == key:
			return e
		}
		index = (index + 1) % capacity
	}
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}

func (t *Table) grow(capacity int) {
	entries := make([]entry, capacity)
	newCount := 0
	for _, e := range t.entries {
		if e.key == nil {
			continue
		}
		dst := t.findEntry(entries, e.key)
		dst.key = e.key
		dst.value = e.value
		newCount++
	}
	t.entries = entries
	t.count = newCount
}
