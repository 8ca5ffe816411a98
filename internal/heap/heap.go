// Package heap is the VM's memory manager: every Lox heap object
// (strings, functions, closures, upvalues, classes, instances, bound
// methods, natives) is allocated through a *Heap, which links it into an
// intrusive "objects" list, interns strings, and runs a tri-color
// mark-sweep collector over that list when the allocation budget is
// exceeded. It has no dependency on internal/vm or internal/compiler —
// both of those import internal/heap and register themselves as root
// sources via SetRootMarkFunc / PushCompilerRoot, keeping the package
// graph acyclic the way spec.md's "explicit VM value" design note asks
// for (no process-global vm/compiler/heap).
package heap

import (
	"lox/internal/value"
)

// RootMarkFunc lets the VM mark its own roots (value stack, call frames,
// globals, open upvalues) during a collection without heap importing vm.
type RootMarkFunc func(h *Heap)

// Heap owns every Lox Obj's lifetime and the process-wide string intern
// table (itself a weak reference into that lifetime, see RemoveWhite).
type Heap struct {
	objects value.Object // head of the intrusive allocation list

	strings    *value.Table
	initString *value.ObjString

	bytesAllocated int64
	nextGC         int64
	stressGC       bool

	grayStack []value.Object

	markRoots     RootMarkFunc
	compilerRoots []*value.ObjFunction

	// pinned holds objects mid-allocation: link() pins the object it just
	// linked for the duration of the collectIfNeeded check that follows,
	// since nothing else roots it yet and a caller building up a composite
	// (e.g. interning a name and then allocating a native around it) may
	// still have several allocations to go before its own stack push makes
	// the object reachable on its own.
	pinned []value.Object

	// LogGC, when true, prints each collection's before/after byte counts.
	LogGC bool
	stats GCStats
}

// GCStats accumulates simple collector telemetry, read through Stats.
type GCStats struct {
	Collections int
	Freed       int64
}

const initialNextGC = 1 << 20 // 1 MiB, matching clox's starting threshold

// New creates a heap with GC-after-every-allocation disabled. SetStressGC
// enables the stress mode spec.md §4.6 describes (collect on every
// allocation that grows bytesAllocated), used by tests that want to
// exercise the collector deterministically.
func New() *Heap {
	h := &Heap{
		strings: value.NewTable(),
		nextGC:  initialNextGC,
	}
	h.initString = h.InternString("init")
	return h
}

func (h *Heap) SetStressGC(on bool) { h.stressGC = on }
func (h *Heap) SetRootMarkFunc(fn RootMarkFunc) { h.markRoots = fn }
func (h *Heap) InitString() *value.ObjString    { return h.initString }
func (h *Heap) Stats() GCStats                  { return h.stats }

// PushCompilerRoot registers fn (an in-progress function's chunk is being
// emitted into) as a GC root — see spec.md §4.6 root #5: "for every active
// Compiler in the parent chain, its in-progress Function object." Parsing
// can intern strings and allocate constants that outrun anything reachable
// from the VM's stack, so the compiler chain needs its own root set.
func (h *Heap) PushCompilerRoot(fn *value.ObjFunction) {
	h.compilerRoots = append(h.compilerRoots, fn)
}

func (h *Heap) PopCompilerRoot() {
	h.compilerRoots = h.compilerRoots[:len(h.compilerRoots)-1]
}

// ---- allocation ----

// link adds obj to the front of the intrusive objects list and accounts
// for its nominal size. Every allocator method below must call link before
// returning so the invariant "reachable the moment it's allocated" holds
// even if collectIfNeeded triggers a GC right after — link pins obj itself
// for the duration of that check, since a caller stringing together several
// allocations (InternString followed by NewNative, say) hasn't had a chance
// to root obj anywhere else yet.
func (h *Heap) link(obj value.Object, size int64) {
	obj.Header().SetNext(h.objects)
	h.objects = obj
	h.bytesAllocated += size
	h.pinned = append(h.pinned, obj)
	h.collectIfNeeded()
	h.pinned = h.pinned[:len(h.pinned)-1]
}

func (h *Heap) collectIfNeeded() {
	if h.stressGC || h.bytesAllocated > h.nextGC {
		h.CollectGarbage()
	}
}

const (
	sizeString      = 32
	sizeFunction     = 64
	sizeNative       = 48
	sizeClosure      = 48
	sizeUpvalue      = 32
	sizeClass        = 48
	sizeInstance     = 48
	sizeBoundMethod  = 32
)

// InternString returns the canonical *ObjString for chars, allocating and
// interning a new one only on a miss. Two strings with equal contents are
// therefore always the same object (spec.md §4.3).
func (h *Heap) InternString(chars string) *value.ObjString {
	hash := value.HashString(chars)
	if s := h.strings.FindString(chars, hash); s != nil {
		return s
	}
	s := &value.ObjString{Chars: chars, Hash: hash}
	h.link(s, sizeString+int64(len(chars)))
	h.strings.Set(s, value.Nil())
	return s
}

// NewFunction allocates an empty function object; the caller (the
// compiler) fills in Name/Arity/UpvalueCount/Chunk as compilation proceeds.
func (h *Heap) NewFunction() *value.ObjFunction {
	fn := &value.ObjFunction{}
	h.link(fn, sizeFunction)
	return fn
}

func (h *Heap) NewNative(name string, fn value.NativeFn) *value.ObjNative {
	n := &value.ObjNative{Name: name, Fn: fn}
	h.link(n, sizeNative)
	return n
}

func (h *Heap) NewClosure(fn *value.ObjFunction) *value.ObjClosure {
	c := &value.ObjClosure{
		Function: fn,
		Upvalues: make([]*value.ObjUpvalue, fn.UpvalueCount),
	}
	h.link(c, sizeClosure+8*int64(fn.UpvalueCount))
	return c
}

func (h *Heap) NewUpvalue(slot *value.Value) *value.ObjUpvalue {
	u := &value.ObjUpvalue{Location: slot}
	h.link(u, sizeUpvalue)
	return u
}

func (h *Heap) NewClass(name *value.ObjString) *value.ObjClass {
	c := &value.ObjClass{Name: name, Methods: value.NewTable()}
	h.link(c, sizeClass)
	return c
}

func (h *Heap) NewInstance(class *value.ObjClass) *value.ObjInstance {
	i := &value.ObjInstance{Class: class, Fields: value.NewTable()}
	h.link(i, sizeInstance)
	return i
}

func (h *Heap) NewBoundMethod(receiver value.Value, method *value.ObjClosure) *value.ObjBoundMethod {
	b := &value.ObjBoundMethod{Receiver: receiver, Method: method}
	h.link(b, sizeBoundMethod)
	return b
}

// BytesAllocated reports the heap's current nominal byte accounting, used
// by tests asserting the allocator/GC glue's bookkeeping.
func (h *Heap) BytesAllocated() int64 { return h.bytesAllocated }
func (h *Heap) NextGC() int64         { return h.nextGC }

// Objects walks the intrusive allocation list head-to-tail, calling fn for
// every currently-linked object. Used by tests checking GC invariants.
func (h *Heap) Objects(fn func(value.Object)) {
	for o := h.objects; o != nil; o = o.Header().Next() {
		fn(o)
	}
}
