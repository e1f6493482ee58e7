package main

import (
	"github.com/spf13/cobra"

	"github.com/jonwraymond/minachain/pipeline"
	"github.com/jonwraymond/minachain/sandbox"
)

func newCompileCmd(a *app) *cobra.Command {
	var (
		cf  compileFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "compile [file|-]",
		Short: "Compile C source to RISC-V assembly",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := a.readSource(args, cf.template)
			if err != nil {
				return err
			}
			opts := cf.options(cmd, a.cfg)
			return a.withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
				asmPath, err := p.Compile(cmd.Context(), source, opts)
				if err != nil {
					return err
				}
				if out != "" {
					return saveArtifact(p.Sandbox(sandbox.RoleCompiler), asmPath, out)
				}
				return nil
			})
		},
	}
	cf.register(cmd, true)
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the assembly to this file")
	return cmd
}

func newAssembleCmd(a *app) *cobra.Command {
	var (
		cf  compileFlags
		af  assembleFlags
		out string
	)
	cmd := &cobra.Command{
		Use:     "assemble [file|-]",
		Aliases: []string{"build"},
		Short:   "Compile and assemble C source into a binary",
		Long: `Compiles the source, assembles the result and stages the binary into the
simulator without running it. Use -o to copy the binary to the host.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := a.readSource(args, cf.template)
			if err != nil {
				return err
			}
			opts := pipeline.Options{Compile: cf.options(cmd, a.cfg), Assemble: af.options(cmd, a.cfg)}
			return a.withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
				elfPath, err := p.Build(cmd.Context(), source, opts)
				if err != nil {
					return err
				}
				a.logger.Info("binary staged", "path", elfPath)
				if out != "" {
					return saveArtifact(p.Sandbox(sandbox.RoleSimulator), elfPath, out)
				}
				return nil
			})
		},
	}
	cf.register(cmd, false)
	af.register(cmd)
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the binary to this file")
	return cmd
}

func newPipelineCmd(a *app) *cobra.Command {
	var (
		cf compileFlags
		af assembleFlags
		sf simFlags
	)
	cmd := &cobra.Command{
		Use:   "pipeline [file|-] [-- program args]",
		Short: "Compile, assemble and run C source",
		Long: `Runs the full toolchain: compile, stage the assembly, assemble, stage the
binary and run it in the simulator. The first failing stage aborts the
sequence. The command exits with the program's exit code.`,
		Example: `  minachain pipeline --template hello
  minachain pipeline prog.c --max-steps 5000 -- arg1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			args, extra := splitAtDash(cmd, args)
			if len(args) > 1 {
				return cobra.MaximumNArgs(1)(cmd, args)
			}
			source, err := a.readSource(args, cf.template)
			if err != nil {
				return err
			}
			sim, err := sf.options(cmd, a.cfg, extra)
			if err != nil {
				return err
			}
			opts := pipeline.Options{Compile: cf.options(cmd, a.cfg), Assemble: af.options(cmd, a.cfg), Sim: sim}
			return a.withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
				code, err := p.CompileAssembleRun(cmd.Context(), source, opts)
				if err != nil {
					return err
				}
				return exitCode(code)
			})
		},
	}
	cf.register(cmd, false)
	af.register(cmd)
	sf.register(cmd)
	return cmd
}
