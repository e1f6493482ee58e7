package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "minachain",
		Short: "Sandboxed C to RISC-V toolchain",
		Long: `minachain drives four sandboxed tools in sequence: a C compiler, an
assembler, a RISC-V simulator and an ELF analyzer. Each tool runs as a
WebAssembly module with its own private file store; artifacts are copied
between stores at each stage.

Tool output is printed line by line, tagged with its channel:
  [stdout] OK
  [stderr] mina-as: unknown directive .bad`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&a.payloadDir, "payload-dir", "", "directory holding the tool payloads (overrides config)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newCompileCmd(a),
		newAssembleCmd(a),
		newPipelineCmd(a),
		newRunCmd(a),
		newAnalyzeCmd(a),
		newServeCmd(a),
		newToolsCmd(a),
		newTemplatesCmd(a),
		newConfigCmd(a),
	)
	return root
}
