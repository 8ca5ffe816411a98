package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/peterh/liner"

	"lox/internal/chunk"
	"lox/internal/compiler"
	"lox/internal/heap"
	"lox/internal/vm"
)

const (
	exitOK           = 0
	exitUsage        = 64
	exitCompileError = 65
	exitRuntimeError = 70
	exitIOError      = 74
)

func main() {
	showDisassembly := flag.Bool("disassemble", false, "print bytecode disassembly before running")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: lox [path]")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	switch len(args) {
	case 0:
		repl(*showDisassembly)
	case 1:
		runFile(args[0], *showDisassembly)
	default:
		flag.Usage()
		os.Exit(exitUsage)
	}
}

func runFile(path string, showDisassembly bool) {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't read '%s': %s\n", path, err)
		os.Exit(exitIOError)
	}

	h := heap.New()
	machine := vm.New(h)

	fn, cerr := compiler.Compile(string(src), h)
	if cerr != nil {
		fmt.Fprintln(os.Stderr, cerr)
		os.Exit(exitCompileError)
	}
	if showDisassembly {
		fn.Chunk.(*chunk.Chunk).Disassemble(path)
	}

	if err := machine.Run(fn); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitRuntimeError)
	}
	os.Exit(exitOK)
}

// repl runs an interactive session. Each line is compiled and run against
// the same VM, so globals (and hence `fun`/`class`/`var` declarations)
// persist from one line to the next; a compile or runtime error reports
// and the prompt continues rather than exiting.
func repl(showDisassembly bool) {
	h := heap.New()
	machine := vm.New(h)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			break // EOF (Ctrl-D) or Ctrl-C
		}
		line.AppendHistory(input)

		fn, cerr := compiler.Compile(input, h)
		if cerr != nil {
			fmt.Fprintln(os.Stderr, cerr)
			continue
		}
		if showDisassembly {
			fn.Chunk.(*chunk.Chunk).Disassemble("repl")
		}
		if err := machine.Run(fn); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}
