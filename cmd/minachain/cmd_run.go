package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/minachain/pipeline"
)

func newRunCmd(a *app) *cobra.Command {
	var sf simFlags
	cmd := &cobra.Command{
		Use:   "run <binary> [-- program args]",
		Short: "Run a prebuilt RISC-V binary in the simulator",
		Long: `Loads a binary from the host into the simulator sandbox under its base name
and runs it. The command exits with the program's exit code.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			args, extra := splitAtDash(cmd, args)
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sim, err := sf.options(cmd, a.cfg, extra)
			if err != nil {
				return err
			}
			name := filepath.Base(args[0])
			return a.withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
				if err := p.LoadBinary(name, data); err != nil {
					return err
				}
				code, err := p.RunBinary(cmd.Context(), name, sim.Args()...)
				if err != nil {
					return err
				}
				return exitCode(code)
			})
		},
	}
	sf.register(cmd)
	return cmd
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		cf  compileFlags
		af  assembleFlags
		nf  analyzeFlags
		elf string
	)
	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Build C source, or load a binary, and analyze it",
		Long: `Builds the source and runs the ELF analyzer on the result. With --elf, a
prebuilt binary is loaded from the host and analyzed instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if elf != "" && (len(args) > 0 || cf.template != "") {
				return fmt.Errorf("--elf cannot be combined with a source file or --template")
			}
			var (
				source string
				data   []byte
				err    error
			)
			if elf != "" {
				data, err = os.ReadFile(elf)
			} else {
				source, err = a.readSource(args, cf.template)
			}
			if err != nil {
				return err
			}

			return a.withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
				var target string
				if elf != "" {
					name := filepath.Base(elf)
					if err := p.LoadBinary(name, data); err != nil {
						return err
					}
					if target, err = pipeline.BinaryPath(name); err != nil {
						return err
					}
				} else {
					opts := pipeline.Options{Compile: cf.options(cmd, a.cfg), Assemble: af.options(cmd, a.cfg)}
					if target, err = p.Build(cmd.Context(), source, opts); err != nil {
						return err
					}
				}
				code, err := p.Analyze(cmd.Context(), target, nf.options())
				if err != nil {
					return err
				}
				return exitCode(code)
			})
		},
	}
	cf.register(cmd, false)
	af.register(cmd)
	nf.register(cmd)
	cmd.Flags().StringVar(&elf, "elf", "", "analyze this prebuilt binary")
	return cmd
}
