package vm

import (
	"bufio"
	"os"
	"strings"
	"testing"

	"lox/internal/heap"
)

// run captures everything `print` writes while interpreting src.
func run(t *testing.T, src string) string {
	t.Helper()
	h := heap.New()
	machine := New(h)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	machine.SetOutput(w)

	errCh := make(chan error, 1)
	go func() { errCh <- machine.Interpret(src) }()

	var out strings.Builder
	scanner := bufio.NewScanner(r)
	done := make(chan struct{})
	go func() {
		for scanner.Scan() {
			out.WriteString(scanner.Text())
			out.WriteByte('\n')
		}
		close(done)
	}()

	err = <-errCh
	w.Close()
	<-done

	if err != nil {
		t.Fatalf("interpret(%q): %v", src, err)
	}
	return out.String()
}

func runExpectError(t *testing.T, src string) error {
	t.Helper()
	h := heap.New()
	machine := New(h)
	machine.SetOutput(os.Stderr)
	return machine.Interpret(src)
}

func TestArithmeticAndPrint(t *testing.T) {
	out := run(t, `print 1 + 2 * 3;`)
	if out != "7\n" {
		t.Fatalf("got %q, want %q", out, "7\n")
	}
}

func TestStringConcatenation(t *testing.T) {
	out := run(t, `print "foo" + "bar";`)
	if out != "foobar\n" {
		t.Fatalf("got %q", out)
	}
}

func TestGlobalAndLocalVariables(t *testing.T) {
	out := run(t, `
	var a = "outer";
	{
	  var a = "inner";
	  print a;
	}
	print a;
	`)
	if out != "inner\nouter\n" {
		t.Fatalf("got %q", out)
	}
}

func TestClosureCapturesByReferenceAcrossCalls(t *testing.T) {
	out := run(t, `
	fun makeCounter() {
	  var i = 0;
	  fun count() {
	    i = i + 1;
	    print i;
	  }
	  return count;
	}
	var counter = makeCounter();
	counter();
	counter();
	`)
	if out != "1\n2\n" {
		t.Fatalf("got %q", out)
	}
}

func TestClassesFieldsAndMethods(t *testing.T) {
	out := run(t, `
	class Counter {
	  init(start) {
	    this.n = start;
	  }
	  increment() {
	    this.n = this.n + 1;
	    return this.n;
	  }
	}
	var c = Counter(10);
	print c.increment();
	print c.increment();
	`)
	if out != "11\n12\n" {
		t.Fatalf("got %q", out)
	}
}

func TestInheritanceAndSuper(t *testing.T) {
	out := run(t, `
	class Animal {
	  speak() {
	    return "...";
	  }
	  describe() {
	    print "I say " + this.speak();
	  }
	}
	class Dog < Animal {
	  speak() {
	    return "Woof, and also " + super.speak();
	  }
	}
	Dog().describe();
	`)
	if out != "I say Woof, and also ...\n" {
		t.Fatalf("got %q", out)
	}
}

func TestForLoopAndControlFlow(t *testing.T) {
	out := run(t, `
	var sum = 0;
	for (var i = 0; i < 5; i = i + 1) {
	  sum = sum + i;
	}
	print sum;
	`)
	if out != "10\n" {
		t.Fatalf("got %q", out)
	}
}

func TestRuntimeErrorOnUndefinedVariable(t *testing.T) {
	err := runExpectError(t, `print nope;`)
	if err == nil || !strings.Contains(err.Error(), "undefined variable") {
		t.Fatalf("expected undefined variable error, got %v", err)
	}
}

func TestRuntimeErrorAddingNumberAndString(t *testing.T) {
	err := runExpectError(t, `print 1 + "a";`)
	if err == nil || !strings.Contains(err.Error(), "operands must be") {
		t.Fatalf("expected type-mismatch error, got %v", err)
	}
}

func TestStackTraceHasFrameForEachCall(t *testing.T) {
	err := runExpectError(t, `
	fun a() { b(); }
	fun b() { c(); }
	fun c() { return 1 + nil; }
	a();
	`)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	for _, want := range []string{"a()", "b()", "c()"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("trace missing frame for %s: %v", want, err)
		}
	}
}

func TestNativeClockIsCallable(t *testing.T) {
	out := run(t, `print clock() > 0;`)
	if out != "true\n" {
		t.Fatalf("got %q", out)
	}
}
