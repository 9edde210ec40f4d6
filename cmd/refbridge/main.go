package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/refbridge/bridge"
	"github.com/wippyai/refbridge/heap"
	"github.com/wippyai/refbridge/resource"
	"github.com/wippyai/refbridge/script"
	"github.com/wippyai/refbridge/wasmhost"
)

func main() {
	os.Exit(run())
}

// run parses flags and returns the process exit code.
func run() int {
	var (
		scenarioName = flag.String("scenario", "", "Built-in scenario to load")
		list         = flag.Bool("list", false, "List scenarios and exit")
		scriptFile   = flag.String("script", "", "JavaScript file to run against the heap")
		wasmFile     = flag.String("wasm", "", "Guest module importing \"refbridge\" to run against the heap")
		funcName     = flag.String("func", "run", "Guest function to call with -wasm")
		interactive  = flag.Bool("i", false, "Interactive inspector")
		verbose      = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if *verbose {
		setupLogging()
	}

	if *list {
		for _, name := range scenarioNames() {
			s, _ := findScenario(name)
			fmt.Printf("  %-10s %s\n", s.name, s.desc)
		}
		return 0
	}

	if *scenarioName == "" && *scriptFile == "" && *wasmFile == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: refbridge -scenario <name>")
		fmt.Fprintln(os.Stderr, "       refbridge -list")
		fmt.Fprintln(os.Stderr, "       refbridge [-scenario <name>] -script <file.js>")
		fmt.Fprintln(os.Stderr, "       refbridge [-scenario <name>] -wasm <guest.wasm> [-func run]")
		fmt.Fprintln(os.Stderr, "       refbridge [-scenario <name>] -i  (interactive mode)")
		return 1
	}

	e, err := newEnv(*scenarioName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return execute(e, mode{
		scenario:    *scenarioName,
		script:      *scriptFile,
		wasm:        *wasmFile,
		fn:          *funcName,
		interactive: *interactive,
	}, os.Stderr)
}

type mode struct {
	scenario    string
	script      string
	wasm        string
	fn          string
	interactive bool
}

// execute runs m against e and closes the heap before reporting the exit
// code, so every wrapper is finalized on the error path too.
func execute(e *env, m mode, stderr io.Writer) int {
	defer func() {
		if err := e.heap.Close(); err != nil {
			fmt.Fprintf(stderr, "close: %v\n", err)
		}
	}()

	var err error
	switch {
	case m.interactive:
		if term.IsTerminal(int(os.Stdout.Fd())) {
			err = runInteractive(e, m.scenario)
		} else {
			err = runLines(e, os.Stdin, os.Stdout)
		}
	case m.wasm != "":
		err = runWasm(e, m.wasm, m.fn)
	case m.script != "":
		err = runScript(e, m.script)
	default:
		err = runScenario(e)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func setupLogging() {
	l, err := zap.NewDevelopment()
	if err != nil {
		return
	}
	resource.SetLogger(l)
	bridge.SetLogger(l)
	heap.SetLogger(l)
	script.SetLogger(l)
	wasmhost.SetLogger(l)
}

func newEnv(scenarioName string) (*env, error) {
	h := heap.New()
	e := &env{
		heap:  h,
		realm: script.NewRealm(h).WithOutput(os.Stdout),
		drops: resource.NewCounter(),
	}
	if scenarioName == "" {
		return e, nil
	}
	s, ok := findScenario(scenarioName)
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q (have: %s)", scenarioName, strings.Join(scenarioNames(), ", "))
	}
	if err := h.Run(func(l *heap.Lock) error { return s.setup(e, l) }); err != nil {
		return nil, fmt.Errorf("setup %s: %w", s.name, err)
	}
	return e, nil
}

// runScenario releases every binding and collects until nothing changes,
// printing each pass.
func runScenario(e *env) error {
	fmt.Printf("Heap before release:\n")
	printHeap(e)

	err := e.heap.Run(func(l *heap.Lock) error {
		var err error
		for _, name := range e.realm.Bound() {
			err = multierr.Append(err, e.realm.Unbind(l, name))
		}
		return err
	})
	if err != nil {
		return err
	}

	stats, err := e.heap.CollectUntilStable()
	fmt.Printf("\nPasses:\n")
	for _, s := range stats {
		fmt.Printf("  #%d  wrappers=%d roots=%d marked=%d finalized=%d condemned=%d\n",
			s.Pass, s.Wrappers, s.Roots, s.Marked, s.Finalized, s.Condemned)
	}
	if err != nil {
		for _, perr := range multierr.Errors(err) {
			fmt.Printf("  error: %v\n", perr)
		}
	}

	fmt.Printf("\nHeap after collection:\n")
	printHeap(e)
	return nil
}

func runScript(e *env, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	v, err := e.realm.Run(string(src))
	if err != nil {
		return err
	}
	fmt.Printf("Result: %v\n", v)
	return nil
}

func printHeap(e *env) {
	writeHeap(os.Stdout, heapRows(e))
}

type heapRow struct {
	name    string
	binding string
	id      uint64
	strong  int
	weak    int
}

func heapRows(e *env) []heapRow {
	bound := make(map[*bridge.Wrapper]string)
	for _, name := range e.realm.Bound() {
		if w, ok := e.realm.Lookup(name); ok {
			bound[w] = "bound as " + name
		}
	}

	var rows []heapRow
	_ = e.heap.Run(func(l *heap.Lock) error {
		for _, w := range l.Wrappers() {
			c := w.Control()
			rows = append(rows, heapRow{
				name:    w.Name(),
				binding: bound[w],
				id:      w.ID(),
				strong:  c.StrongCount(),
				weak:    c.WeakCount(),
			})
		}
		return nil
	})
	return rows
}
