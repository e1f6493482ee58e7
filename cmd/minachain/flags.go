package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/minachain/config"
	"github.com/jonwraymond/minachain/pipeline"
)

// compileFlags override the configured compiler defaults.
type compileFlags struct {
	template   string
	optimize   bool
	runtime    bool
	preferLibc bool
	showAsm    bool
}

func (f *compileFlags) register(cmd *cobra.Command, showAsm bool) {
	flags := cmd.Flags()
	flags.StringVarP(&f.template, "template", "t", "", "compile a built-in template instead of a file")
	flags.BoolVarP(&f.optimize, "optimize", "O", false, "enable optimizations")
	flags.BoolVar(&f.runtime, "runtime", true, "prepend the runtime library assembly")
	flags.BoolVar(&f.preferLibc, "prefer-libc", true, "prefer runtime library calls over inline code")
	flags.BoolVar(&f.showAsm, "show-asm", showAsm, "print the generated assembly")
}

func (f *compileFlags) options(cmd *cobra.Command, cfg *config.Config) pipeline.CompileOptions {
	opts := cfg.CompileOptions()
	flags := cmd.Flags()
	if flags.Changed("optimize") {
		opts.Optimize = f.optimize
	}
	if flags.Changed("runtime") {
		opts.IncludeRuntime = pipeline.Bool(f.runtime)
	}
	if flags.Changed("prefer-libc") {
		opts.PreferLibrary = pipeline.Bool(f.preferLibc)
	}
	opts.SuppressLive = !f.showAsm
	return opts
}

// assembleFlags are assembler options.
type assembleFlags struct {
	raw bool
}

func (f *assembleFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.raw, "bin", false, "emit a raw binary instead of an ELF")
}

func (f *assembleFlags) options(cmd *cobra.Command, cfg *config.Config) pipeline.AssembleOptions {
	opts := cfg.AssembleOptions()
	if cmd.Flags().Changed("bin") {
		opts.RawBinary = f.raw
	}
	return opts
}

// simFlags override the configured simulator defaults.
type simFlags struct {
	trace    bool
	regs     bool
	maxSteps uint64
	memory   uint64
	entry    string
}

func (f *simFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVar(&f.trace, "trace", false, "print each executed instruction")
	flags.BoolVar(&f.regs, "regs", false, "dump registers on exit")
	flags.Uint64Var(&f.maxSteps, "max-steps", 0, "instruction limit (0 uses the simulator default)")
	flags.Uint64Var(&f.memory, "memory", 0, "guest memory size in bytes (0 uses the simulator default)")
	flags.StringVar(&f.entry, "entry", "", "entry point override, e.g. 0x80000000")
}

func (f *simFlags) options(cmd *cobra.Command, cfg *config.Config, extra []string) (pipeline.SimOptions, error) {
	opts := cfg.SimOptions()
	flags := cmd.Flags()
	if flags.Changed("trace") {
		opts.Trace = f.trace
	}
	if flags.Changed("max-steps") {
		opts.MaxSteps = f.maxSteps
	}
	if flags.Changed("memory") {
		opts.MemoryBytes = f.memory
	}
	opts.DumpRegisters = f.regs
	if f.entry != "" {
		entry, err := strconv.ParseUint(f.entry, 0, 64)
		if err != nil {
			return pipeline.SimOptions{}, fmt.Errorf("invalid --entry %q: %w", f.entry, err)
		}
		opts.Entry = &entry
	}
	opts.Extra = extra
	return opts, nil
}

// analyzeFlags are analyzer options.
type analyzeFlags struct {
	onlyText     bool
	stats        bool
	json         bool
	stopAtEbreak bool
}

func (f *analyzeFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVar(&f.onlyText, "only-text", false, "analyze the .text section only")
	flags.BoolVar(&f.stats, "stats", false, "print instruction statistics")
	flags.BoolVar(&f.json, "json", false, "print JSON output")
	flags.BoolVar(&f.stopAtEbreak, "stop-at-ebreak", false, "stop disassembly at the first ebreak")
}

func (f *analyzeFlags) options() pipeline.AnalyzeOptions {
	return pipeline.AnalyzeOptions{
		OnlyText:     f.onlyText,
		Stats:        f.stats,
		JSON:         f.json,
		StopAtEbreak: f.stopAtEbreak,
	}
}

// splitAtDash separates positional arguments from those after "--".
func splitAtDash(cmd *cobra.Command, args []string) (before, after []string) {
	if n := cmd.ArgsLenAtDash(); n >= 0 {
		return args[:n], args[n:]
	}
	return args, nil
}
