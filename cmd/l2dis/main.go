// l2dis - disassembler and optimization viewer for compiled functions
//
// Prints the nybblecode listing of a function and, on request, the
// optimized chunk the level-two translator produces for it. Functions
// come from the built-in samples or from a persisted function store.
//
// Build: go build ./cmd/l2dis
// Usage:
//   l2dis                          # list built-in samples
//   l2dis countdown                # disassemble a sample
//   l2dis -optimize countdown      # also show the optimized chunk
//   l2dis -store jit.db -hash HEX  # disassemble a stored function
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/stylpe/Avail-sub004/jit"
	"github.com/stylpe/Avail-sub004/l1"
	"github.com/stylpe/Avail-sub004/l2"
	"github.com/stylpe/Avail-sub004/types"
)

func main() {
	optimize := flag.Bool("optimize", false, "Show the optimized chunk listing")
	configPath := flag.String("config", "", "TOML configuration file")
	storePath := flag.String("store", "", "Function store database")
	hashArg := flag.String("hash", "", "Content hash of a stored function (hex)")
	verbosity := flag.Int("v", 0, "Log verbosity")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: l2dis [options] [sample]\n\n")
		fmt.Fprintf(os.Stderr, "Disassembles compiled functions and shows their optimized form.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nSamples:\n")
		for _, name := range sampleNames() {
			fmt.Fprintf(os.Stderr, "  %s\n", name)
		}
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	if *configPath != "" {
		cfg, err := jit.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if *storePath == "" {
			*storePath = cfg.StorePath
		}
	}

	fn, err := selectFunction(*storePath, *hashArg, flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if fn == nil {
		flag.Usage()
		os.Exit(1)
	}

	fmt.Print(fn.Disassemble())

	if *optimize {
		chunk, err := l2.Translate(fn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		fmt.Print(chunk.Describe())
	}
}

// selectFunction resolves the function to show: a stored one when a
// store and hash are given, a named sample otherwise.
func selectFunction(storePath, hashArg, sample string) (*l1.Function, error) {
	if storePath != "" && hashArg != "" {
		raw, err := hex.DecodeString(hashArg)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("malformed content hash %q", hashArg)
		}
		var h [32]byte
		copy(h[:], raw)

		store, err := jit.OpenStore(storePath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.LoadFunction(h)
	}

	if sample == "" {
		return nil, nil
	}
	build, ok := samples[sample]
	if !ok {
		return nil, fmt.Errorf("unknown sample %q", sample)
	}
	return build(), nil
}

// samples are small functions exercising the interesting shapes: straight
// lines, conditionals, loops, primitive failure handling.
var samples = map[string]func() *l1.Function{
	"add1":      buildAdd1,
	"max":       buildMax,
	"countdown": buildCountdown,
	"safediv":   buildSafeDiv,
}

func sampleNames() []string {
	names := make([]string, 0, len(samples))
	for name := range samples {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildAdd1 returns n + 1.
func buildAdd1() *l1.Function {
	b := l1.NewBuilder("add1", 1, 0, 0)
	b.EmitPushConstant(types.Int(1))
	b.Emit(l1.OpPushArgument, 0)
	b.EmitCall("int+", 2)
	b.Emit(l1.OpReturn)
	return b.Assemble()
}

// buildMax returns the larger of two integers.
func buildMax() *l1.Function {
	b := l1.NewBuilder("max", 2, 0, 0)
	second := b.NewLabel()
	b.Emit(l1.OpPushArgument, 0)
	b.Emit(l1.OpPushArgument, 1)
	b.EmitCall("int<", 2)
	b.EmitBranch(l1.OpBranchIfTrue, second)
	b.Emit(l1.OpPushArgument, 0)
	b.Emit(l1.OpReturn)
	b.Bind(second)
	b.Emit(l1.OpPushArgument, 1)
	b.Emit(l1.OpReturn)
	return b.Assemble()
}

// buildCountdown counts a local down from its argument to zero.
func buildCountdown() *l1.Function {
	b := l1.NewBuilder("countdown", 1, 1, 0)
	top := b.NewLabel()
	done := b.NewLabel()
	b.Emit(l1.OpPushArgument, 0)
	b.Emit(l1.OpSetLocal, 0)
	b.Bind(top)
	b.Emit(l1.OpPushLocal, 0)
	b.EmitPushConstant(types.Int(0))
	b.EmitCall("int=", 2)
	b.EmitBranch(l1.OpBranchIfTrue, done)
	b.Emit(l1.OpPushLocal, 0)
	b.EmitPushConstant(types.Int(1))
	b.EmitCall("int-", 2)
	b.Emit(l1.OpSetLocal, 0)
	b.EmitBranch(l1.OpJump, top)
	b.Bind(done)
	b.Emit(l1.OpPushLocal, 0)
	b.Emit(l1.OpReturn)
	return b.Assemble()
}

// buildSafeDiv divides two integers through the fallible primitive.
func buildSafeDiv() *l1.Function {
	b := l1.NewBuilder("safediv", 2, 0, 0)
	b.Emit(l1.OpPushArgument, 0)
	b.Emit(l1.OpPushArgument, 1)
	b.EmitCall("int/", 2)
	b.Emit(l1.OpReturn)
	return b.Assemble()
}
