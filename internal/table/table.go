// Package table implements OrgLang's hash+array hybrid container — the
// single data structure every array, map and lexical scope in the language
// is built from. It is an open-addressed hash table with linear probing,
// growing at a 75% load factor, entries stored directly in arena memory.
package table

import (
	"hash/fnv"
	"unsafe"

	"orglang/internal/arena"
	"orglang/internal/runtimeconfig"
	"orglang/internal/value"
)

const (
	initialCap  = 8
	loadPercent = 75
)

// entry is one hash-table slot, laid out exactly like OrgTableEntry: an
// empty slot is marked by Key == value.Unused.
type entry struct {
	Key  value.Value
	Val  value.Value
	Hash uint32
	_pad uint32
}

// obj is the arena-resident Table header. Entries live in their own arena
// allocation; EntriesPtr is the raw address of its first element, safe to
// reconstruct via unsafe.Pointer for as long as the backing arena page is
// reachable (see internal/arena's page-reachability invariant).
type obj struct {
	value.Header
	Count      uint32
	Capacity   uint32
	NextIndex  uint32
	_pad       uint32
	EntriesPtr uintptr
}

func tableOf(v value.Value) *obj {
	return (*obj)(value.Ptr(v))
}

func entriesOf(t *obj) []entry {
	return unsafe.Slice((*entry)(unsafe.Pointer(t.EntriesPtr)), t.Capacity)
}

func allocEntries(a *arena.Arena, capacity uint32) (uintptr, error) {
	p, err := a.Alloc(int(capacity)*int(unsafe.Sizeof(entry{})), 8)
	if err != nil {
		return 0, err
	}
	es := unsafe.Slice((*entry)(p), capacity)
	for i := range es {
		es[i] = entry{Key: value.Unused, Val: value.Unused}
	}
	return uintptr(p), nil
}

// New creates an empty table with the default initial capacity (8).
func New(a *arena.Arena) (value.Value, error) {
	return NewSized(a, initialCap)
}

// NewWithOptions creates an empty table sized by a runtimeconfig.Options
// built from opts, the options-struct constructor the ambient config layer
// exposes alongside the plain New/NewSized forms above.
func NewWithOptions(a *arena.Arena, opts ...runtimeconfig.Option) (value.Value, error) {
	o := runtimeconfig.New(opts...)
	return NewSized(a, o.TableInitialCapacity)
}

// NewSized creates an empty table whose capacity is expected rounded up to
// a power of two (never below 8). Set still grows the table once an insert
// would pass 75% load, so fewer than expected entries fit before the first
// growth.
func NewSized(a *arena.Arena, expected uint32) (value.Value, error) {
	cap := uint32(initialCap)
	for cap < expected {
		cap *= 2
	}

	p, err := a.Alloc(int(unsafe.Sizeof(obj{})), 8)
	if err != nil {
		return 0, err
	}
	t := (*obj)(p)
	t.Type = value.TypeTable
	t.Size = uint32(unsafe.Sizeof(obj{}))
	t.Count = 0
	t.Capacity = cap
	t.NextIndex = 0

	entriesPtr, err := allocEntries(a, cap)
	if err != nil {
		return 0, err
	}
	t.EntriesPtr = entriesPtr

	return value.TagPtr(p), nil
}

// IsTable reports whether v is a Table value.
func IsTable(v value.Value) bool {
	return value.IsPtr(v) && value.GetType(v) == value.TypeTable
}

// isValidKey reports whether key is usable as a Table key: a SmallInt or a
// String. BigInt, Rational and Decimal keys are deliberately rejected, just
// as in the original — tables key on immediate integers or string content,
// not arbitrary-precision numerics.
func isValidKey(key value.Value) bool {
	if value.IsSmall(key) {
		return true
	}
	return value.IsPtr(key) && value.GetType(key) == value.TypeString
}

// HashValue computes a key's hash: an avalanche mix for SmallInt keys, FNV-1a
// over the UTF-8 bytes for String keys, matching org_hash_value.
func HashValue(key value.Value) uint32 {
	if value.IsSmall(key) {
		k := uint64(key)
		k = (k ^ (k >> 16)) * 0x45d9f3b
		k = (k ^ (k >> 16)) * 0x45d9f3b
		k ^= k >> 16
		return uint32(k)
	}
	if value.IsPtr(key) && value.GetType(key) == value.TypeString {
		return fnv1a(value.StringData(key))
	}
	return 0
}

func fnv1a(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// KeyEqual compares two keys for table-equality: identical tagged values
// always match; otherwise two Strings match on byte content, and nothing
// else does (two distinct SmallInts with the same tag bits are already
// caught by the identity check).
func KeyEqual(a, b value.Value) bool {
	if a == b {
		return true
	}
	if value.IsSmall(a) && value.IsSmall(b) {
		return false
	}
	if value.IsPtr(a) && value.IsPtr(b) &&
		value.GetType(a) == value.TypeString && value.GetType(b) == value.TypeString {
		return value.StringData(a) == value.StringData(b)
	}
	return false
}

func findSlot(entries []entry, key value.Value, hash uint32) uint32 {
	mask := uint32(len(entries)) - 1
	idx := hash & mask
	for {
		k := entries[idx].Key
		if value.IsUnused(k) {
			return idx
		}
		if entries[idx].Hash == hash && KeyEqual(k, key) {
			return idx
		}
		idx = (idx + 1) & mask
	}
}

func grow(a *arena.Arena, t *obj) error {
	newCap := t.Capacity * 2
	newEntriesPtr, err := allocEntries(a, newCap)
	if err != nil {
		return err
	}
	newEntries := unsafe.Slice((*entry)(unsafe.Pointer(newEntriesPtr)), newCap)

	for _, e := range entriesOf(t) {
		if value.IsUnused(e.Key) {
			continue
		}
		slot := findSlot(newEntries, e.Key, e.Hash)
		newEntries[slot] = e
	}

	t.EntriesPtr = newEntriesPtr
	t.Capacity = newCap
	return nil
}

// Set inserts or updates key's value, growing the table first if doing so
// would cross the 75% load factor. Returns value.Error if table is not a
// Table value or key is not a valid key type.
func Set(a *arena.Arena, table, key, val value.Value) value.Value {
	if !IsTable(table) || !isValidKey(key) {
		return value.Error
	}
	t := tableOf(table)

	if (t.Count+1)*100 > t.Capacity*loadPercent {
		if err := grow(a, t); err != nil {
			return value.Error
		}
	}

	hash := HashValue(key)
	entries := entriesOf(t)
	slot := findSlot(entries, key, hash)

	if value.IsUnused(entries[slot].Key) {
		t.Count++
	}
	entries[slot] = entry{Key: key, Val: val, Hash: hash}

	return table
}

// Push appends val at the table's next auto-assigned integer index.
func Push(a *arena.Arena, table, val value.Value) value.Value {
	if !IsTable(table) {
		return value.Error
	}
	t := tableOf(table)
	key := value.TagSmall(int64(t.NextIndex))
	t.NextIndex++
	return Set(a, table, key, val)
}

// Get looks up key, returning value.Error if table isn't a Table, key isn't
// a valid key type, or the key is absent.
func Get(table, key value.Value) value.Value {
	if !IsTable(table) || !isValidKey(key) {
		return value.Error
	}
	t := tableOf(table)
	entries := entriesOf(t)
	mask := uint32(len(entries)) - 1
	hash := HashValue(key)
	idx := hash & mask
	for {
		e := &entries[idx]
		if value.IsUnused(e.Key) {
			return value.Error
		}
		if e.Hash == hash && KeyEqual(e.Key, key) {
			return e.Val
		}
		idx = (idx + 1) & mask
	}
}

// GetCstr looks up a string key by its raw Go string content, without
// allocating an arena String to do so — the scope-lookup fast path
// org_table_get_cstr provides.
func GetCstr(table value.Value, name string) value.Value {
	if !IsTable(table) {
		return value.Error
	}
	t := tableOf(table)
	entries := entriesOf(t)
	mask := uint32(len(entries)) - 1
	hash := fnv1a(name)
	idx := hash & mask
	for {
		e := &entries[idx]
		if value.IsUnused(e.Key) {
			return value.Error
		}
		if e.Hash == hash && value.IsPtr(e.Key) && value.GetType(e.Key) == value.TypeString &&
			value.StringData(e.Key) == name {
			return e.Val
		}
		idx = (idx + 1) & mask
	}
}

// Has reports whether key is present in table.
func Has(table, key value.Value) value.Value {
	if !IsTable(table) || !isValidKey(key) {
		return value.False
	}
	entries := entriesOf(tableOf(table))
	slot := findSlot(entries, key, HashValue(key))
	return value.Bool(!value.IsUnused(entries[slot].Key))
}

// Count returns the number of live entries, or 0 if table isn't a Table.
func Count(table value.Value) uint32 {
	if !IsTable(table) {
		return 0
	}
	return tableOf(table).Count
}
