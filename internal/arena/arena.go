// Package arena implements the chained-page bump allocator that backs every
// OrgLang heap value. Allocation is O(1) in the common case; pages are
// never individually freed except in bulk, at a Restore or a Destroy.
package arena

import (
	"unsafe"

	"github.com/pkg/errors"
	"modernc.org/memory"

	"orglang/internal/rtfault"
	"orglang/internal/runtimeconfig"
)

const minPageSize = 64

// page is one link in the arena's page chain. buf is the only Go-visible
// reference to the backing bytes; as long as a page is reachable from
// Arena.current through the prev chain, buf cannot be collected and its
// address is stable (Go's current collector does not move heap memory), so
// uintptr values derived from &buf[i] remain valid to reconstruct with
// unsafe.Pointer for as long as the page itself is reachable.
type page struct {
	prev *page
	buf  []byte
	used int
}

// Checkpoint is an opaque mark returned by Save, later passed to Restore.
type Checkpoint struct {
	page         *page
	used         int
	refsLen      int
	teardownsLen int
}

// Arena is a chained-page bump allocator plus the bookkeeping OrgLang needs
// on top of raw bytes: a pin table that keeps Go-managed payload objects
// (*big.Int, *big.Rat, native closure payloads) reachable for
// as long as the arena bytes referencing them are, and a teardown list for
// resource instances created within it.
type Arena struct {
	defaultPageSize int
	current         *page
	alloc           memory.Allocator

	// refs is the pin table: heap values that cannot be represented purely
	// as arena bytes (because they wrap a Go type with its own invariants,
	// like *big.Int) store an index into refs inside their arena-resident
	// header instead. Restore truncates refs back to the checkpoint length,
	// emulating the bulk reclamation a page-chain rewind gives raw bytes.
	refs []interface{}

	// teardowns are resource-instance teardown callables registered since
	// the arena (or the active checkpoint) was created, run in LIFO order.
	teardowns []func()
}

// New creates an arena whose pages are at least pageSize bytes; pageSize is
// clamped up to a 64-byte minimum, matching the C original's page_new floor.
func New(pageSize int) (*Arena, error) {
	if pageSize < minPageSize {
		pageSize = minPageSize
	}
	a := &Arena{defaultPageSize: pageSize}
	p, err := a.newPage(pageSize)
	if err != nil {
		return nil, err
	}
	a.current = p
	return a, nil
}

// NewWithOptions creates an arena sized by a runtimeconfig.Options built
// from opts, the options-struct constructor the ambient config layer
// exposes alongside the plain New(pageSize int) form above — which stays,
// since it is the form every existing caller in this module already uses.
func NewWithOptions(opts ...runtimeconfig.Option) (*Arena, error) {
	o := runtimeconfig.New(opts...)
	return New(o.PageSize)
}

func (a *Arena) newPage(capacity int) (*page, error) {
	buf, err := a.alloc.Malloc(capacity)
	if err != nil {
		return nil, rtfault.Wrap(err, rtfault.ComponentArena, rtfault.KindAllocExhausted, "new_page")
	}
	return &page{buf: buf}, nil
}

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

// Alloc returns size bytes aligned to align (a power of two), backed by
// arena memory. The fast path bumps the current page; the slow path opens a
// new page, giving oversized allocations (more than half a default page) a
// dedicated page sized to fit exactly, mirroring arena_alloc in the C
// original.
func (a *Arena) Alloc(size int, align int) (unsafe.Pointer, error) {
	p := a.current
	base := uintptr(unsafe.Pointer(&p.buf[0])) + uintptr(p.used)
	aligned := alignUp(base, uintptr(align))
	padding := int(aligned-base) + p.used

	if padding+size <= len(p.buf) {
		p.used = padding + size
		return unsafe.Pointer(aligned), nil
	}

	newCapacity := a.defaultPageSize
	if size > newCapacity/2 {
		newCapacity = int(alignUp(uintptr(size), uintptr(align)))
	}
	np, err := a.newPage(newCapacity)
	if err != nil {
		return nil, err
	}
	np.prev = a.current
	a.current = np

	newBase := uintptr(unsafe.Pointer(&np.buf[0]))
	newAligned := alignUp(newBase, uintptr(align))
	np.used = int(newAligned-newBase) + size
	return unsafe.Pointer(newAligned), nil
}

// Pin stores v in the arena's pin table and returns its index, for heap
// values whose payload cannot live directly in arena bytes.
func (a *Arena) Pin(v interface{}) int {
	a.refs = append(a.refs, v)
	return len(a.refs) - 1
}

// Ref retrieves a previously Pinned value by index.
func (a *Arena) Ref(idx int) interface{} {
	return a.refs[idx]
}

// OnTeardown registers fn to run at the next Restore that rewinds past the
// point of registration, or at Destroy, whichever comes first.
func (a *Arena) OnTeardown(fn func()) {
	a.teardowns = append(a.teardowns, fn)
}

// Save returns a checkpoint capturing the arena's current extent.
func (a *Arena) Save() Checkpoint {
	return Checkpoint{
		page:         a.current,
		used:         a.current.used,
		refsLen:      len(a.refs),
		teardownsLen: len(a.teardowns),
	}
}

// Restore rewinds the arena to a checkpoint taken earlier with Save,
// running in LIFO order any teardown hooks registered since, then freeing
// every page allocated since and truncating the pin table.
func (a *Arena) Restore(cp Checkpoint) {
	for i := len(a.teardowns) - 1; i >= cp.teardownsLen; i-- {
		a.teardowns[i]()
	}
	a.teardowns = a.teardowns[:cp.teardownsLen]

	for a.current != cp.page {
		prev := a.current.prev
		_ = a.alloc.Free(a.current.buf)
		a.current = prev
	}
	a.current.used = cp.used

	for i := cp.refsLen; i < len(a.refs); i++ {
		a.refs[i] = nil
	}
	a.refs = a.refs[:cp.refsLen]
}

// Destroy runs every outstanding teardown hook and frees every page. The
// arena must not be used afterward.
func (a *Arena) Destroy() error {
	for i := len(a.teardowns) - 1; i >= 0; i-- {
		a.teardowns[i]()
	}
	a.teardowns = nil

	p := a.current
	for p != nil {
		prev := p.prev
		if err := a.alloc.Free(p.buf); err != nil {
			return errors.WithStack(err)
		}
		p = prev
	}
	a.current = nil
	a.refs = nil
	return nil
}
