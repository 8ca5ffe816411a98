// Package vm is the bytecode interpreter: a fixed-size value stack, a
// stack of call frames sharing it, and a dispatch loop that switches on
// every chunk.OpCode the compiler can emit. It owns the heap that backs
// all allocation and registers itself as that heap's GC root source.
package vm

import (
	"fmt"
	"os"
	"time"

	"lox/internal/chunk"
	"lox/internal/compiler"
	"lox/internal/heap"
	"lox/internal/value"
)

const StackMax = 16384
const FramesMax = 64

// CallFrame is one activation record: Closure is the function running,
// IP its instruction cursor, Slots the offset into the VM's shared value
// stack where this call's locals (including the receiver/params) begin.
type CallFrame struct {
	Closure *value.ObjClosure
	IP      int
	Slots   int
}

// VM holds all interpreter-global state explicitly — there is no
// process-global interpreter, so nothing here is a package-level var.
// Multiple VMs can exist side by side, each with its own heap.
type VM struct {
	frames     [FramesMax]CallFrame
	frameCount int

	stack    [StackMax]value.Value
	stackTop int

	globals *value.Table
	heap    *heap.Heap

	openUpvalues *value.ObjUpvalue

	// out is where `print` writes; tests redirect it to capture output.
	out *os.File
}

func New(h *heap.Heap) *VM {
	vm := &VM{
		globals: value.NewTable(),
		heap:    h,
		out:     os.Stdout,
	}
	h.SetRootMarkFunc(vm.markRoots)
	vm.defineNative("clock", func(args []value.Value) (value.Value, error) {
		return value.NumberVal(float64(time.Now().UnixNano()) / 1e9), nil
	})
	return vm
}

// SetOutput redirects `print` statements, used by tests.
func (vm *VM) SetOutput(f *os.File) { vm.out = f }

func (vm *VM) defineNative(name string, fn value.NativeFn) {
	s := vm.heap.InternString(name)
	vm.push(value.ObjVal(s))
	n := vm.heap.NewNative(name, fn)
	vm.push(value.ObjVal(n))
	vm.globals.Set(s, vm.peek(0))
	vm.pop()
	vm.pop()
}

// markRoots is registered with the heap as its RootMarkFunc: every value
// reachable from the VM's own state must be marked before a collection
// sweeps anything.
func (vm *VM) markRoots(h *heap.Heap) {
	for i := 0; i < vm.stackTop; i++ {
		h.MarkValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		h.MarkObject(vm.frames[i].Closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		h.MarkObject(uv)
	}
	vm.globals.Each(func(k *value.ObjString, v value.Value) {
		h.MarkObject(k)
		h.MarkValue(v)
	})
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// Interpret compiles source to a top-level function and runs it to
// completion under a fresh call frame.
func (vm *VM) Interpret(source string) error {
	fn, err := compiler.Compile(source, vm.heap)
	if err != nil {
		return err
	}
	return vm.Run(fn)
}

// Run executes an already-compiled top-level function. Exposed so a
// caller that also wants a disassembly listing can compile once and
// reuse the result instead of compiling twice.
func (vm *VM) Run(fn *value.ObjFunction) error {
	closure := vm.heap.NewClosure(fn)
	vm.push(value.ObjVal(closure))
	if _, err := vm.callValue(value.ObjVal(closure), 0); err != nil {
		return err
	}
	return vm.run()
}

// RuntimeError reports an uncaught runtime failure with a full call
// stack trace, innermost frame first, matching clox's error format.
type RuntimeError struct {
	Message string
	Trace   []string
}

func (e *RuntimeError) Error() string {
	s := e.Message
	for _, line := range e.Trace {
		s += "\n" + line
	}
	return s
}

func (vm *VM) runtimeError(format string, args ...interface{}) *RuntimeError {
	msg := fmt.Sprintf(format, args...)
	re := &RuntimeError{Message: msg}
	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.Closure.Function
		line := 0
		c := fn.Chunk.(*chunk.Chunk)
		if frame.IP-1 >= 0 && frame.IP-1 < len(c.Lines) {
			line = c.Lines[frame.IP-1]
		}
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars + "()"
		}
		re.Trace = append(re.Trace, fmt.Sprintf("[line %d] in %s", line, name))
	}
	vm.resetStack()
	return re
}

func isFalsey(v value.Value) bool { return v.IsFalsey() }

// run executes instructions until every call frame has returned.
func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		c := frame.Closure.Function.Chunk.(*chunk.Chunk)
		b := c.Code[frame.IP]
		frame.IP++
		return b
	}
	readShort := func() uint16 {
		hi := readByte()
		lo := readByte()
		return uint16(hi)<<8 | uint16(lo)
	}
	readConstant := func() value.Value {
		c := frame.Closure.Function.Chunk.(*chunk.Chunk)
		return c.ConstantAt(int(readByte()))
	}
	readString := func() *value.ObjString {
		return readConstant().Obj.(*value.ObjString)
	}

	for {
		op := chunk.OpCode(readByte())
		switch op {
		case chunk.OpConstant:
			vm.push(readConstant())

		case chunk.OpNil:
			vm.push(value.Nil())
		case chunk.OpTrue:
			vm.push(value.BoolVal(true))
		case chunk.OpFalse:
			vm.push(value.BoolVal(false))
		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := readByte()
			vm.push(vm.stack[frame.Slots+int(slot)])
		case chunk.OpSetLocal:
			slot := readByte()
			vm.stack[frame.Slots+int(slot)] = vm.peek(0)

		case chunk.OpGetGlobal:
			name := readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("undefined variable '%s'", name.Chars)
			}
			vm.push(v)
		case chunk.OpDefineGlobal:
			name := readString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case chunk.OpSetGlobal:
			name := readString()
			if isNew := vm.globals.Set(name, vm.peek(0)); isNew {
				vm.globals.Delete(name)
				return vm.runtimeError("undefined variable '%s'", name.Chars)
			}

		case chunk.OpGetUpvalue:
			slot := readByte()
			vm.push(*frame.Closure.Upvalues[slot].Location)
		case chunk.OpSetUpvalue:
			slot := readByte()
			*frame.Closure.Upvalues[slot].Location = vm.peek(0)

		case chunk.OpGetProperty:
			if vm.peek(0).Type != value.ValObj {
				return vm.runtimeError("only instances have properties")
			}
			inst, ok := vm.peek(0).Obj.(*value.ObjInstance)
			if !ok {
				return vm.runtimeError("only instances have properties")
			}
			name := readString()
			if v, ok := inst.Fields.Get(name); ok {
				vm.pop()
				vm.push(v)
				break
			}
			if !vm.bindMethod(inst.Class, name) {
				return vm.runtimeError("undefined property '%s'", name.Chars)
			}

		case chunk.OpSetProperty:
			inst, ok := vm.peek(1).Obj.(*value.ObjInstance)
			if vm.peek(1).Type != value.ValObj || !ok {
				return vm.runtimeError("only instances have fields")
			}
			name := readString()
			inst.Fields.Set(name, vm.peek(0))
			v := vm.pop()
			vm.pop()
			vm.push(v)

		case chunk.OpGetSuper:
			name := readString()
			superclass := vm.pop().Obj.(*value.ObjClass)
			if !vm.bindMethod(superclass, name) {
				return vm.runtimeError("undefined property '%s'", name.Chars)
			}

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.BoolVal(value.Equal(a, b)))
		case chunk.OpGreater:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.BoolVal(a > b) }); err != nil {
				return err
			}
		case chunk.OpLess:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.BoolVal(a < b) }); err != nil {
				return err
			}

		case chunk.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case chunk.OpSubtract:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.NumberVal(a - b) }); err != nil {
				return err
			}
		case chunk.OpMultiply:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.NumberVal(a * b) }); err != nil {
				return err
			}
		case chunk.OpDivide:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.NumberVal(a / b) }); err != nil {
				return err
			}

		case chunk.OpNot:
			vm.push(value.BoolVal(isFalsey(vm.pop())))
		case chunk.OpNegate:
			if vm.peek(0).Type != value.ValNumber {
				return vm.runtimeError("operand must be a number")
			}
			vm.push(value.NumberVal(-vm.pop().Number))

		case chunk.OpPrint:
			fmt.Fprintln(vm.out, vm.pop().String())

		case chunk.OpJump:
			offset := readShort()
			frame.IP += int(offset)
		case chunk.OpJumpIfFalse:
			offset := readShort()
			if isFalsey(vm.peek(0)) {
				frame.IP += int(offset)
			}
		case chunk.OpLoop:
			offset := readShort()
			frame.IP -= int(offset)

		case chunk.OpCall:
			argCount := int(readByte())
			ok, err := vm.callValue(vm.peek(argCount), argCount)
			if err != nil {
				return err
			}
			if !ok {
				return vm.runtimeError("can only call functions and classes")
			}
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpInvoke:
			method := readString()
			argCount := int(readByte())
			ok, err := vm.invoke(method, argCount)
			if err != nil {
				return err
			}
			if !ok {
				return vm.runtimeError("undefined property '%s'", method.Chars)
			}
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpSuperInvoke:
			method := readString()
			argCount := int(readByte())
			superclass := vm.pop().Obj.(*value.ObjClass)
			ok, err := vm.invokeFromClass(superclass, method, argCount)
			if err != nil {
				return err
			}
			if !ok {
				return vm.runtimeError("undefined property '%s'", method.Chars)
			}
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpClosure:
			fn := readConstant().Obj.(*value.ObjFunction)
			closure := vm.heap.NewClosure(fn)
			vm.push(value.ObjVal(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte()
				index := readByte()
				if isLocal == 1 {
					closure.Upvalues[i] = vm.captureUpvalue(&vm.stack[frame.Slots+int(index)])
				} else {
					closure.Upvalues[i] = frame.Closure.Upvalues[index]
				}
			}

		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.Slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = frame.Slots
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpClass:
			name := readString()
			vm.push(value.ObjVal(vm.heap.NewClass(name)))

		case chunk.OpInherit:
			superVal := vm.peek(1)
			superclass, ok := superVal.Obj.(*value.ObjClass)
			if superVal.Type != value.ValObj || !ok {
				return vm.runtimeError("superclass must be a class")
			}
			subclass := vm.peek(0).Obj.(*value.ObjClass)
			subclass.Methods.AddAll(superclass.Methods)
			vm.pop()

		case chunk.OpMethod:
			vm.defineMethod(readString())

		default:
			return vm.runtimeError("unknown opcode %d", op)
		}
	}
}

func (vm *VM) binaryNumberOp(op func(a, b float64) value.Value) error {
	if vm.peek(0).Type != value.ValNumber || vm.peek(1).Type != value.ValNumber {
		return vm.runtimeError("operands must be numbers")
	}
	b := vm.pop()
	a := vm.pop()
	vm.push(op(a.Number, b.Number))
	return nil
}

func (vm *VM) add() error {
	bVal, aVal := vm.peek(0), vm.peek(1)
	switch {
	case aVal.Type == value.ValNumber && bVal.Type == value.ValNumber:
		b := vm.pop()
		a := vm.pop()
		vm.push(value.NumberVal(a.Number + b.Number))
		return nil
	case isString(aVal) && isString(bVal):
		b := vm.pop()
		a := vm.pop()
		as := a.Obj.(*value.ObjString)
		bs := b.Obj.(*value.ObjString)
		concat := as.Chars + bs.Chars
		vm.push(value.ObjVal(vm.heap.InternString(concat)))
		return nil
	default:
		return vm.runtimeError("operands must be two numbers or two strings")
	}
}

func isString(v value.Value) bool {
	if v.Type != value.ValObj {
		return false
	}
	_, ok := v.Obj.(*value.ObjString)
	return ok
}

// callValue dispatches a call to whatever kind of callable callee holds.
// The returned error, when non-nil, is already a fully formatted
// *RuntimeError and must be returned to the caller verbatim; the bool is
// only meaningful when err is nil (false then means "not callable at
// all", which the caller turns into its own generic message).
func (vm *VM) callValue(callee value.Value, argCount int) (bool, error) {
	if callee.Type != value.ValObj {
		return false, nil
	}
	switch obj := callee.Obj.(type) {
	case *value.ObjClosure:
		return vm.call(obj, argCount)
	case *value.ObjNative:
		args := vm.stack[vm.stackTop-argCount : vm.stackTop]
		result, err := obj.Fn(args)
		if err != nil {
			return false, vm.runtimeError("%s", err.Error())
		}
		vm.stackTop -= argCount + 1
		vm.push(result)
		return true, nil
	case *value.ObjClass:
		inst := vm.heap.NewInstance(obj)
		vm.stack[vm.stackTop-argCount-1] = value.ObjVal(inst)
		if initializer, ok := obj.Methods.Get(vm.heap.InitString()); ok {
			return vm.call(initializer.Obj.(*value.ObjClosure), argCount)
		}
		if argCount != 0 {
			return false, vm.runtimeError("expected 0 arguments but got %d", argCount)
		}
		return true, nil
	case *value.ObjBoundMethod:
		vm.stack[vm.stackTop-argCount-1] = obj.Receiver
		return vm.call(obj.Method, argCount)
	default:
		return false, nil
	}
}

func (vm *VM) call(closure *value.ObjClosure, argCount int) (bool, error) {
	if argCount != closure.Function.Arity {
		return false, vm.runtimeError("expected %d arguments but got %d", closure.Function.Arity, argCount)
	}
	if vm.frameCount == FramesMax {
		return false, vm.runtimeError("stack overflow")
	}
	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.Closure = closure
	frame.IP = 0
	frame.Slots = vm.stackTop - argCount - 1
	return true, nil
}

func (vm *VM) invoke(name *value.ObjString, argCount int) (bool, error) {
	receiver := vm.peek(argCount)
	inst, ok := receiver.Obj.(*value.ObjInstance)
	if receiver.Type != value.ValObj || !ok {
		return false, vm.runtimeError("only instances have methods")
	}
	if v, ok := inst.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = v
		return vm.callValue(v, argCount)
	}
	return vm.invokeFromClass(inst.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *value.ObjClass, name *value.ObjString, argCount int) (bool, error) {
	method, ok := class.Methods.Get(name)
	if !ok {
		return false, nil
	}
	return vm.call(method.Obj.(*value.ObjClosure), argCount)
}

func (vm *VM) bindMethod(class *value.ObjClass, name *value.ObjString) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		return false
	}
	bound := vm.heap.NewBoundMethod(vm.peek(0), method.Obj.(*value.ObjClosure))
	vm.pop()
	vm.push(value.ObjVal(bound))
	return true
}

func (vm *VM) defineMethod(name *value.ObjString) {
	method := vm.peek(0)
	class := vm.peek(1).Obj.(*value.ObjClass)
	class.Methods.Set(name, method)
	vm.pop()
}

// captureUpvalue returns the existing open upvalue for local if one is
// already on the sorted (by descending stack address) openUpvalues list,
// or links a fresh one in the right position.
func (vm *VM) captureUpvalue(local *value.Value) *value.ObjUpvalue {
	localSlot := slotIndex(vm, local)
	var prev *value.ObjUpvalue
	uv := vm.openUpvalues
	for uv != nil && slotIndex(vm, uv.Location) > localSlot {
		prev = uv
		uv = uv.NextOpen
	}
	if uv != nil && uv.Location == local {
		return uv
	}

	created := vm.heap.NewUpvalue(local)
	created.NextOpen = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues hoists every open upvalue whose slot is at or above
// stackSlot into its own Closed cell, severing it from the stack.
func (vm *VM) closeUpvalues(stackSlot int) {
	for vm.openUpvalues != nil && slotIndex(vm, vm.openUpvalues.Location) >= stackSlot {
		uv := vm.openUpvalues
		uv.Closed = *uv.Location
		uv.Location = &uv.Closed
		vm.openUpvalues = uv.NextOpen
	}
}

func slotIndex(vm *VM, slot *value.Value) int {
	for i := 0; i < vm.stackTop; i++ {
		if &vm.stack[i] == slot {
			return i
		}
	}
	return -1
}
