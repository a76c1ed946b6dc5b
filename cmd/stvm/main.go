// stvm runs bytecode programs from YAML listings or binary images.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chazu/stvm/image"
	"github.com/chazu/stvm/manifest"
	"github.com/chazu/stvm/vm"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the process exit, so tests can drive it.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stvm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	trace := fs.Bool("trace", false, "Trace every instruction and the context chain")
	verbosity := fs.Int("v", -1, "Log verbosity (overrides [log] verbosity)")
	dir := fs.String("C", ".", "Project directory holding stvm.toml")
	printResult := fs.Bool("p", false, "Print the rendered result of the entry method")
	output := fs.String("o", "", "Write the program as a binary image instead of running it")
	disassemble := fs.Bool("d", false, "Disassemble every method instead of running")
	initManifest := fs.Bool("init", false, "Write a default stvm.toml and exit")
	listPrimitives := fs.Bool("primitives", false, "List the primitive ids a program may bind and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: stvm [options] [program.yaml|program.img]\n\n")
		fmt.Fprintf(stderr, "Runs the entry method of a program. Without a program argument the\n")
		fmt.Fprintf(stderr, "image named in stvm.toml is used.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  stvm hello.yaml             # Assemble and run a listing\n")
		fmt.Fprintf(stderr, "  stvm -o hello.img hello.yaml  # Write a binary image\n")
		fmt.Fprintf(stderr, "  stvm -trace -p hello.img    # Run with tracing, print the result\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *initManifest {
		if err := manifest.Write(*dir, manifest.Default()); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if *listPrimitives {
		machine, err := vm.New(nil, vm.Options{Out: stdout})
		if err != nil {
			return report(stderr, err)
		}
		for _, id := range machine.Primitives.IDs() {
			p, _ := machine.Primitives.ByID(id)
			fmt.Fprintf(stdout, "%-32s %s\n", id, p.MethodName())
		}
		return 0
	}

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if m == nil {
		m = manifest.Default()
		m.Dir, _ = filepath.Abs(*dir)
	}

	level := m.Log.Verbosity
	if *verbosity >= 0 {
		level = *verbosity
	}
	var logFile *string
	if m.Log.File != "" {
		logFile = &m.Log.File
	}
	commonlog.Configure(level, logFile)

	path := m.ImagePath()
	if fs.NArg() > 0 {
		path = fs.Arg(0)
		if !filepath.IsAbs(path) {
			path = filepath.Join(*dir, path)
		}
	}
	prog, err := image.Load(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	m.ApplyEntry(prog)

	if *output != "" {
		if err := image.Save(*output, prog); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	if *disassemble {
		printListing(stdout, prog)
		return 0
	}

	opts := m.VMOptions()
	opts.Trace = opts.Trace || *trace
	opts.Out = stdout
	opts.TraceOut = stdout
	machine, err := vm.New(prog, opts)
	if err != nil {
		return report(stderr, err)
	}
	result, err := machine.ExecMain()
	if err != nil {
		return report(stderr, err)
	}
	if *printResult {
		fmt.Fprintln(stdout, vm.RenderValue(result))
	}
	return 0
}

// report prints err, with the stack trace for runtime errors.
func report(stderr io.Writer, err error) int {
	var re *vm.RuntimeError
	if errors.As(err, &re) {
		fmt.Fprintln(stderr, re.Report())
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return 1
}

func printListing(w io.Writer, prog *vm.Program) {
	for _, c := range prog.Classes {
		for _, m := range c.Methods {
			printMethod(w, c.Name, m)
		}
		for _, m := range c.ClassMethods {
			printMethod(w, c.Name+" class", m)
		}
	}
}

func printMethod(w io.Writer, owner string, m *vm.MethodDecl) {
	if m.Block == nil {
		fmt.Fprintf(w, "%s>>%s <primitive %s>\n\n", owner, m.Selector, m.Primitive)
		return
	}
	var walk func(name string, b *vm.CompiledBlock)
	walk = func(name string, b *vm.CompiledBlock) {
		fmt.Fprintf(w, "%s\n%s\n", name, vm.Disassemble(b))
		for _, nested := range b.Blocks {
			walk(owner+">>"+nested.Name, nested)
		}
	}
	walk(owner+">>"+m.Selector, m.Block)
	fmt.Fprintln(w)
}
