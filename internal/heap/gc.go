package heap

import (
	"fmt"

	"lox/internal/value"
)

// CollectGarbage runs one full stop-the-world mark-sweep cycle: mark roots,
// trace the gray worklist to black, drop now-unreachable entries from the
// string intern table (its only role as a weak map), then sweep dead
// objects off the intrusive list. It is synchronous and may be called
// directly by tests; internal/vm and internal/compiler never call it
// themselves — only allocation does, via collectIfNeeded.
func (h *Heap) CollectGarbage() {
	before := h.bytesAllocated

	h.markRootsPhase()
	h.traceReferences()
	h.strings.RemoveWhite()
	h.sweep()

	h.nextGC = h.bytesAllocated * 2
	if h.nextGC < initialNextGC {
		h.nextGC = initialNextGC
	}

	h.stats.Collections++
	h.stats.Freed += before - h.bytesAllocated

	if h.LogGC {
		fmt.Printf("-- gc: %d -> %d bytes (next at %d)\n", before, h.bytesAllocated, h.nextGC)
	}
}

func (h *Heap) markRootsPhase() {
	if h.markRoots != nil {
		h.markRoots(h)
	}
	for _, fn := range h.compilerRoots {
		h.MarkObject(fn)
	}
	for _, obj := range h.pinned {
		h.MarkObject(obj)
	}
	h.MarkObject(h.initString)
}

// MarkValue marks v's underlying object, if it has one.
func (h *Heap) MarkValue(v value.Value) {
	if v.Type == value.ValObj {
		h.MarkObject(v.Obj)
	}
}

// MarkObject paints obj gray: sets its mark bit and pushes it onto the
// worklist for traceReferences to blacken later. Marking an already-marked
// object is a no-op, which is what makes cyclic graphs terminate.
func (h *Heap) MarkObject(obj value.Object) {
	if obj == nil || obj.Header().Marked() {
		return
	}
	obj.Header().SetMarked(true)
	h.grayStack = append(h.grayStack, obj)
}

// traceReferences repeatedly pops the gray worklist and blackens each
// object by marking everything it directly references.
func (h *Heap) traceReferences() {
	for len(h.grayStack) > 0 {
		n := len(h.grayStack) - 1
		obj := h.grayStack[n]
		h.grayStack = h.grayStack[:n]
		h.blacken(obj)
	}
}

func (h *Heap) blacken(obj value.Object) {
	switch o := obj.(type) {
	case *value.ObjString, *value.ObjNative:
		// no outgoing references
	case *value.ObjUpvalue:
		h.MarkValue(o.Closed)
	case *value.ObjFunction:
		if o.Name != nil {
			h.MarkObject(o.Name)
		}
		if o.Chunk != nil {
			for i := 0; i < o.Chunk.ConstantCount(); i++ {
				h.MarkValue(o.Chunk.ConstantAt(i))
			}
		}
	case *value.ObjClosure:
		h.MarkObject(o.Function)
		for _, uv := range o.Upvalues {
			h.MarkObject(uv)
		}
	case *value.ObjClass:
		h.MarkObject(o.Name)
		o.Methods.Each(func(k *value.ObjString, v value.Value) {
			h.MarkObject(k)
			h.MarkValue(v)
		})
	case *value.ObjInstance:
		h.MarkObject(o.Class)
		o.Fields.Each(func(k *value.ObjString, v value.Value) {
			h.MarkObject(k)
			h.MarkValue(v)
		})
	case *value.ObjBoundMethod:
		h.MarkValue(o.Receiver)
		h.MarkObject(o.Method)
	}
}

// sweep walks the objects list, unlinking and discarding every object
// whose mark bit is still unset, and clearing the mark bit on survivors so
// the next cycle starts white again.
func (h *Heap) sweep() {
	var prev value.Object
	obj := h.objects
	for obj != nil {
		if obj.Header().Marked() {
			obj.Header().SetMarked(false)
			prev = obj
			obj = obj.Header().Next()
			continue
		}

		unreached := obj
		obj = obj.Header().Next()
		if prev != nil {
			prev.Header().SetNext(obj)
		} else {
			h.objects = obj
		}
		h.bytesAllocated -= costOf(unreached)
	}
}

func costOf(obj value.Object) int64 {
	switch o := obj.(type) {
	case *value.ObjString:
		return sizeString + int64(len(o.Chars))
	case *value.ObjFunction:
		return sizeFunction
	case *value.ObjNative:
		return sizeNative
	case *value.ObjClosure:
		return sizeClosure + 8*int64(len(o.Upvalues))
	case *value.ObjUpvalue:
		return sizeUpvalue
	case *value.ObjClass:
		return sizeClass
	case *value.ObjInstance:
		return sizeInstance
	case *value.ObjBoundMethod:
		return sizeBoundMethod
	default:
		return 0
	}
}
