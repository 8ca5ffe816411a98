package chunk

import (
	"fmt"

	"lox/internal/value"
)

// Disassemble prints every instruction in the chunk, prefixed with name.
// It is a debugging aid (wired up behind the CLI's -disassemble flag) and
// is not part of the compiler/VM's hot path.
func (c *Chunk) Disassemble(name string) {
	fmt.Printf("== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = c.DisassembleInstruction(offset)
	}
}

// DisassembleInstruction prints the instruction at offset and returns the
// offset of the next one.
func (c *Chunk) DisassembleInstruction(offset int) int {
	fmt.Printf("%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Print("   | ")
	} else {
		fmt.Printf("%4d ", c.Lines[offset])
	}

	op := OpCode(c.Code[offset])
	switch op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal,
		OpGetProperty, OpSetProperty, OpGetSuper, OpClass, OpMethod:
		return c.constantInstruction(op, offset)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		return c.byteInstruction(op, offset)
	case OpInvoke, OpSuperInvoke:
		return c.invokeInstruction(op, offset)
	case OpJump, OpJumpIfFalse:
		return c.jumpInstruction(op, offset, 1)
	case OpLoop:
		return c.jumpInstruction(op, offset, -1)
	case OpClosure:
		return c.closureInstruction(offset)
	default:
		return c.simpleInstruction(op, offset)
	}
}

func (c *Chunk) simpleInstruction(op OpCode, offset int) int {
	fmt.Println(op)
	return offset + 1
}

func (c *Chunk) constantInstruction(op OpCode, offset int) int {
	constant := c.Code[offset+1]
	fmt.Printf("%-18s %4d '%s'\n", op, constant, c.Constants[constant])
	return offset + 2
}

func (c *Chunk) byteInstruction(op OpCode, offset int) int {
	slot := c.Code[offset+1]
	fmt.Printf("%-18s %4d\n", op, slot)
	return offset + 2
}

func (c *Chunk) invokeInstruction(op OpCode, offset int) int {
	constant := c.Code[offset+1]
	argCount := c.Code[offset+2]
	fmt.Printf("%-18s (%d args) %4d '%s'\n", op, argCount, constant, c.Constants[constant])
	return offset + 3
}

func (c *Chunk) jumpInstruction(op OpCode, offset, sign int) int {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	fmt.Printf("%-18s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}

func (c *Chunk) closureInstruction(offset int) int {
	offset++
	constant := c.Code[offset]
	offset++
	fmt.Printf("%-18s %4d '%s'\n", OpClosure, constant, c.Constants[constant])

	if fn, ok := c.Constants[constant].Obj.(*value.ObjFunction); ok {
		for i := 0; i < fn.UpvalueCount; i++ {
			isLocal := c.Code[offset]
			index := c.Code[offset+1]
			kind := "upvalue"
			if isLocal != 0 {
				kind = "local"
			}
			fmt.Printf("%04d      |                     %s %d\n", offset, kind, index)
			offset += 2
		}
	}
	return offset
}
