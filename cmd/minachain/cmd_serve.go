package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/minachain/mcpserver"
	"github.com/jonwraymond/minachain/pipeline"
	"github.com/jonwraymond/minachain/sandbox"
	"github.com/jonwraymond/minachain/toolset"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the toolchain as MCP tools over stdio",
		Long: `Starts a Model Context Protocol server on stdin and stdout. Each tool call
returns the tagged output lines it produced and its exit status. Logs go to
stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			transcript := &sandbox.Transcript{}
			p, err := a.openWith(ctx, transcript.Sink(sandbox.StreamStdout), transcript.Sink(sandbox.StreamStderr))
			if err != nil {
				return err
			}
			defer func() {
				if cerr := p.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
					err = cerr
				}
			}()

			ts, err := toolset.New(toolset.Config{Pipeline: p, Transcript: transcript, Logger: a.logger})
			if err != nil {
				return err
			}
			server := mcpserver.New(ts, mcpserver.Config{
				Name:    a.cfg.Server.Name,
				Version: a.cfg.Server.Version,
				Logger:  a.logger,
			})
			a.logger.Info("serving MCP over stdio", "tools", len(ts.Defs()))
			return mcpserver.Serve(ctx, server)
		},
	}
}

func newToolsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "tools [query...]",
		Short: "List or search the toolchain tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			ts := toolset.Catalog()
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 0 {
				for _, def := range ts.Defs() {
					fmt.Fprintf(w, "%s\t%s\n", toolset.ToolID(def.Name), def.Summary)
				}
				return nil
			}

			idx, _, err := ts.NewIndex()
			if err != nil {
				return err
			}
			results, err := idx.Search(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				return fmt.Errorf("no tools match %q", strings.Join(args, " "))
			}
			for _, r := range results {
				fmt.Fprintf(w, "%s\t%s\n", r.ID, r.ShortDescription)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum number of search results")
	return cmd
}

func newTemplatesCmd(a *app) *cobra.Command {
	var show string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the built-in source templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if show != "" {
				t, ok := pipeline.LookupTemplate(show)
				if !ok {
					return fmt.Errorf("unknown template %q", show)
				}
				fmt.Fprintln(a.stdout, t.Source)
				return nil
			}
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			defer w.Flush()
			for _, t := range pipeline.Templates {
				fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Label)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&show, "show", "", "print the source of this template")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration files",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := yaml.Marshal(a.cfg)
				if err != nil {
					return err
				}
				_, err = a.stdout.Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "init <path>",
			Short: "Write the effective configuration to a file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.cfg.Save(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, "wrote", args[0])
				return nil
			},
		},
	)
	return cmd
}
