package compiler

import (
	"strings"
	"testing"

	"lox/internal/chunk"
	"lox/internal/heap"
)

func compileOK(t *testing.T, src string) (*chunk.Chunk, *heap.Heap) {
	t.Helper()
	h := heap.New()
	fn, err := Compile(src, h)
	if err != nil {
		t.Fatalf("compile(%q): unexpected error: %v", src, err)
	}
	return fn.Chunk.(*chunk.Chunk), h
}

func TestCompilesArithmeticExpression(t *testing.T) {
	c, _ := compileOK(t, "1 + 2;")
	if len(c.Code) == 0 {
		t.Fatal("expected emitted bytecode")
	}
	// The script's implicit OP_NIL, OP_RETURN follow the statement's OP_POP.
	if c.Code[len(c.Code)-3] != byte(chunk.OpPop) {
		t.Fatalf("expression statement must end in OP_POP, got %v", chunk.OpCode(c.Code[len(c.Code)-3]))
	}
}

func TestCompilesVarAndPrint(t *testing.T) {
	c, _ := compileOK(t, "var a = 1; print a;")
	found := false
	for _, b := range c.Code {
		if chunk.OpCode(b) == chunk.OpPrint {
			found = true
		}
	}
	if !found {
		t.Fatal("expected OP_PRINT in compiled output")
	}
}

func TestCompilesClosureOverLocal(t *testing.T) {
	src := `
	fun makeCounter() {
	  var i = 0;
	  fun count() {
	    i = i + 1;
	    return i;
	  }
	  return count;
	}
	`
	c, _ := compileOK(t, src)
	sawClosure := false
	for _, b := range c.Code {
		if chunk.OpCode(b) == chunk.OpClosure {
			sawClosure = true
		}
	}
	if !sawClosure {
		t.Fatal("expected OP_CLOSURE when compiling a nested function")
	}
}

func TestCompilesClassWithSuperAndInit(t *testing.T) {
	src := `
	class Animal {
	  init(name) {
	    this.name = name;
	  }
	  speak() {
	    return this.name;
	  }
	}
	class Dog < Animal {
	  speak() {
	    return super.speak() + "!";
	  }
	}
	`
	c, _ := compileOK(t, src)
	var ops []chunk.OpCode
	for _, b := range c.Code {
		ops = append(ops, chunk.OpCode(b))
	}
	wantAnyOf := []chunk.OpCode{chunk.OpClass, chunk.OpInherit, chunk.OpMethod}
	for _, want := range wantAnyOf {
		ok := false
		for _, op := range ops {
			if op == want {
				ok = true
				break
			}
		}
		if !ok {
			t.Fatalf("expected %s in class compilation output", want)
		}
	}
}

func TestRejectsReadOfOwnInitializer(t *testing.T) {
	h := heap.New()
	_, err := Compile("{ var a = a; }", h)
	if err == nil {
		t.Fatal("expected compile error for `var a = a;` in local scope")
	}
}

func TestRejectsReturnOutsideFunction(t *testing.T) {
	h := heap.New()
	_, err := Compile("return 1;", h)
	if err == nil {
		t.Fatal("expected compile error for a top-level return")
	}
}

func TestRejectsSuperWithoutSuperclass(t *testing.T) {
	h := heap.New()
	_, err := Compile("class A { m() { return super.m(); } }", h)
	if err == nil {
		t.Fatal("expected compile error for super in a class with no superclass")
	}
}

func TestSynchronizeRecoversAfterError(t *testing.T) {
	h := heap.New()
	_, err := Compile("var ;\nvar b = 2;", h)
	if err == nil {
		t.Fatal("expected an error from the malformed first statement")
	}
	if !strings.Contains(err.Error(), "compile error") {
		t.Fatalf("unexpected error text: %v", err)
	}
}
