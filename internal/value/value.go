// Package value defines Lox's tagged Value type and the heap-object model
// (strings, functions, closures, upvalues, classes, instances, bound
// methods, natives) that backs it. Objects are plain Go structs; the
// tracing collector that owns their lifetime lives in internal/heap and
// talks to this package only through the Object interface and the Header
// every object embeds.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType tags the active variant of a Value.
type ValueType int

const (
	ValNil ValueType = iota
	ValBool
	ValNumber
	ValObj
)

// Value is a tagged union: {Nil; Bool(b); Number(f64); Obj(object-ref)}.
type Value struct {
	Type   ValueType
	Bool   bool
	Number float64
	Obj    Object
}

func Nil() Value              { return Value{Type: ValNil} }
func BoolVal(b bool) Value    { return Value{Type: ValBool, Bool: b} }
func NumberVal(n float64) Value { return Value{Type: ValNumber, Number: n} }
func ObjVal(o Object) Value   { return Value{Type: ValObj, Obj: o} }

func (v Value) IsNil() bool    { return v.Type == ValNil }
func (v Value) IsBool() bool   { return v.Type == ValBool }
func (v Value) IsNumber() bool { return v.Type == ValNumber }
func (v Value) IsObj() bool    { return v.Type == ValObj }

func (v Value) IsString() bool {
	_, ok := v.Obj.(*ObjString)
	return v.Type == ValObj && ok
}

func (v Value) AsString() *ObjString { return v.Obj.(*ObjString) }

// IsFalsey implements Lox's truthiness rule: nil and false are falsey,
// everything else (including 0 and "") is truthy.
func (v Value) IsFalsey() bool {
	return v.Type == ValNil || (v.Type == ValBool && !v.Bool)
}

// Equal implements Value equality: Nil=Nil, Bool by value, Number by
// IEEE-754 equality (so NaN != NaN), Obj by reference identity (safe
// because every ObjString is interned).
func Equal(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case ValNil:
		return true
	case ValBool:
		return a.Bool == b.Bool
	case ValNumber:
		return a.Number == b.Number
	case ValObj:
		return a.Obj == b.Obj
	default:
		return false
	}
}

// String renders v the way OP_PRINT does.
func (v Value) String() string {
	switch v.Type {
	case ValNil:
		return "nil"
	case ValBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case ValNumber:
		return FormatNumber(v.Number)
	case ValObj:
		if v.Obj == nil {
			return "nil"
		}
		return v.Obj.GoString()
	default:
		return "<invalid value>"
	}
}

// FormatNumber drops a trailing ".0" the way clox's printValue does, while
// still round-tripping any integer in [-2^53, 2^53] through strconv. Fixed
// notation ('f') is mandatory here rather than 'g': the lexer's number
// grammar is digits['.' digits] with no exponent syntax, so scientific
// notation would print a value this package itself can't re-lex.
func FormatNumber(n float64) string {
	s := strconv.FormatFloat(n, 'f', -1, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// ObjType tags the concrete kind of a heap Object.
type ObjType int

const (
	ObjTypeString ObjType = iota
	ObjTypeFunction
	ObjTypeNative
	ObjTypeClosure
	ObjTypeUpvalue
	ObjTypeClass
	ObjTypeInstance
	ObjTypeBoundMethod
)

// Header is the common GC header every heap object embeds: a mark bit and
// the intrusive next-pointer linking every live allocation into the heap's
// single `objects` list (see internal/heap).
type Header struct {
	marked bool
	next   Object
}

func (h *Header) Marked() bool     { return h.marked }
func (h *Header) SetMarked(m bool) { h.marked = m }
func (h *Header) Next() Object     { return h.next }
func (h *Header) SetNext(o Object) { h.next = o }

// Object is implemented by every heap-allocated value. GoString renders it
// for OP_PRINT/string-concatenation.
type Object interface {
	Type() ObjType
	GoString() string
	Header() *Header
}

// ---- ObjString ----

// ObjString is an immutable, interned byte sequence. Two strings with equal
// contents are always the same *ObjString (see heap.Heap.InternString), so
// Value equality over strings reduces to pointer comparison.
type ObjString struct {
	hdr   Header
	Chars string
	Hash  uint32
}

func (s *ObjString) Type() ObjType     { return ObjTypeString }
func (s *ObjString) GoString() string  { return s.Chars }
func (s *ObjString) Header() *Header   { return &s.hdr }

// HashString computes the FNV-1a hash used both to intern and to probe the
// hash table.
func HashString(s string) uint32 {
	var hash uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= 16777619
	}
	return hash
}

// ---- ObjFunction ----

// Chunk is implemented by *chunk.Chunk; declared as an interface here to
// avoid an import cycle (internal/chunk imports internal/value for the
// constant pool).
type Chunk interface {
	ConstantCount() int
	ConstantAt(i int) Value
}

type ObjFunction struct {
	hdr          Header
	Name         *ObjString // nil for the top-level script
	Arity        int
	UpvalueCount int
	Chunk        Chunk
}

func (f *ObjFunction) Type() ObjType   { return ObjTypeFunction }
func (f *ObjFunction) Header() *Header { return &f.hdr }
func (f *ObjFunction) GoString() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// ---- ObjNative ----

// NativeFn receives the argument slice and returns the call's result, or an
// error to surface as a Lox runtime error. Natives must not allocate Lox
// objects that aren't already reachable from args or their own return
// value, since they run without a call frame protecting intermediate
// allocations.
type NativeFn func(args []Value) (Value, error)

type ObjNative struct {
	hdr  Header
	Name string
	Fn   NativeFn
}

func (n *ObjNative) Type() ObjType     { return ObjTypeNative }
func (n *ObjNative) Header() *Header   { return &n.hdr }
func (n *ObjNative) GoString() string  { return "<native fn>" }

// ---- ObjUpvalue ----

// ObjUpvalue is an indirection cell. While open, Location points into a
// live VM stack slot and the upvalue is linked into the VM's open-upvalue
// list via NextOpen (ordered by descending stack slot). Closing it copies
// the slot's value into Closed and redirects Location there.
type ObjUpvalue struct {
	hdr      Header
	Location *Value
	Closed   Value
	NextOpen *ObjUpvalue // link in the VM's open-upvalue list, not the GC list
}

func (u *ObjUpvalue) Type() ObjType     { return ObjTypeUpvalue }
func (u *ObjUpvalue) Header() *Header   { return &u.hdr }
func (u *ObjUpvalue) GoString() string  { return "upvalue" }
func (u *ObjUpvalue) IsClosed() bool    { return u.Location == &u.Closed }

// ---- ObjClosure ----

type ObjClosure struct {
	hdr      Header
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) Type() ObjType     { return ObjTypeClosure }
func (c *ObjClosure) Header() *Header   { return &c.hdr }
func (c *ObjClosure) GoString() string  { return c.Function.GoString() }

// ---- ObjClass ----

type ObjClass struct {
	hdr     Header
	Name    *ObjString
	Methods *Table
}

func (c *ObjClass) Type() ObjType     { return ObjTypeClass }
func (c *ObjClass) Header() *Header   { return &c.hdr }
func (c *ObjClass) GoString() string  { return c.Name.Chars }

// ---- ObjInstance ----

type ObjInstance struct {
	hdr    Header
	Class  *ObjClass
	Fields *Table
}

func (i *ObjInstance) Type() ObjType     { return ObjTypeInstance }
func (i *ObjInstance) Header() *Header   { return &i.hdr }
func (i *ObjInstance) GoString() string  { return fmt.Sprintf("%s instance", i.Class.Name.Chars) }

// ---- ObjBoundMethod ----

type ObjBoundMethod struct {
	hdr      Header
	Receiver Value
	Method   *ObjClosure
}

func (b *ObjBoundMethod) Type() ObjType     { return ObjTypeBoundMethod }
func (b *ObjBoundMethod) Header() *Header   { return &b.hdr }
func (b *ObjBoundMethod) GoString() string  { return b.Method.GoString() }
