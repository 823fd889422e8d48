package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/runtime"
	"github.com/wippyai/wasm-bridge/view"
)

type options struct {
	wasmFile string
	witFile  string
	funcName string
	args     []string
	memory   string
	kind     view.Kind
	offset   uint32
	length   uint32
	list     bool
}

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to core wasm module")
		witFile     = flag.String("wit", "", "WIT file with function signatures (optional)")
		funcName    = flag.String("func", "", "Function to call before dumping memory (optional)")
		argList     = flag.String("args", "", "Function arguments (comma-separated)")
		memory      = flag.String("memory", "", "Exported memory name (default: first memory)")
		kindName    = flag.String("kind", "uint8", "Element kind: int8, uint8, int16, uint16, int32, uint32")
		offset      = flag.Uint("offset", 0, "Offset into memory, in elements")
		length      = flag.Uint("length", 64, "Number of elements to show")
		list        = flag.Bool("list", false, "List exported functions and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Debug logging to stderr")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: memview -wasm <file.wasm> [-func name -args a,b] [-kind uint8 -offset n -length n]")
		fmt.Fprintln(os.Stderr, "       memview -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       memview -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	kind, err := view.ParseKind(*kindName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if uint64(*offset) > math.MaxUint32 || uint64(*length) > math.MaxUint32 {
		fmt.Fprintln(os.Stderr, "Error: -offset and -length must fit in 32 bits")
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	defer logger.Sync()

	opts := options{
		wasmFile: *wasmFile,
		witFile:  *witFile,
		funcName: *funcName,
		args:     splitArgs(*argList),
		memory:   *memory,
		kind:     kind,
		offset:   uint32(*offset),
		length:   uint32(*length),
		list:     *list,
	}

	if *interactive {
		err = runInteractive(opts, logger)
	} else {
		err = run(opts, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// callArgs passes the raw strings on; Call parses them per the signature.
func (o options) callArgs() []any {
	args := make([]any, len(o.args))
	for i, a := range o.args {
		args[i] = a
	}
	return args
}

func splitArgs(s string) []string {
	var args []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			args = append(args, a)
		}
	}
	return args
}

// load creates a runtime and instantiates the module. The caller closes the
// runtime, which also destroys the module and instance.
func load(ctx context.Context, opts options, logger *zap.Logger) (*runtime.Runtime, *runtime.Module, *runtime.Instance, error) {
	data, err := os.ReadFile(opts.wasmFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read file: %w", err)
	}

	var witText string
	if opts.witFile != "" {
		raw, err := os.ReadFile(opts.witFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read WIT: %w", err)
		}
		witText = string(raw)
	}

	rt, err := runtime.New(ctx, &runtime.Config{Logger: logger})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create runtime: %w", err)
	}

	mod, err := rt.LoadWithWIT(ctx, data, witText)
	if err != nil {
		rt.Close(ctx)
		return nil, nil, nil, fmt.Errorf("load module: %w", err)
	}

	inst, err := mod.Instantiate(ctx)
	if err != nil {
		rt.Close(ctx)
		return nil, nil, nil, fmt.Errorf("instantiate: %w", err)
	}
	return rt, mod, inst, nil
}

func run(opts options, logger *zap.Logger) error {
	ctx := context.Background()

	rt, mod, inst, err := load(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	exports, err := mod.Exports()
	if err != nil {
		return err
	}
	fmt.Printf("Module: %s\n", opts.wasmFile)
	fmt.Printf("Exported functions: %s\n", strings.Join(exports, ", "))
	if opts.list {
		return nil
	}

	if opts.funcName != "" {
		fmt.Printf("\nCalling %s(%s)...\n", opts.funcName, strings.Join(opts.args, ", "))
		result, err := inst.Call(ctx, opts.funcName, opts.callArgs()...)
		if err != nil {
			return fmt.Errorf("call %s: %w", opts.funcName, err)
		}
		fmt.Printf("Result: %v\n", result)
	}

	buf, err := inst.Memory(opts.memory)
	if err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	v, err := view.New(buf, opts.kind, opts.offset, opts.length)
	buf.Close()
	if err != nil {
		return fmt.Errorf("view: %w", err)
	}
	defer v.Close()

	values, err := v.Values()
	if err != nil {
		return err
	}
	fmt.Printf("\n%s[%d] at byte %d of %d:\n", opts.kind, opts.length, v.ByteOffset(), buf.ByteLength())
	for _, row := range formatRows(values, opts.kind, v.ByteOffset()) {
		fmt.Println(row)
	}
	return nil
}
