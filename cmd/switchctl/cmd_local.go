package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rafaeljc/switchboard/internal/loader"
	"github.com/rafaeljc/switchboard/internal/ruleengine"
)

// invalidRulesError marks a file that loads but does not build.
type invalidRulesError struct {
	path string
	err  error
}

func (e *invalidRulesError) Error() string { return fmt.Sprintf("%s: %v", e.path, e.err) }

func (e *invalidRulesError) Unwrap() error { return e.err }

func build(path string) (*ruleengine.Generation, error) {
	def, err := loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	g, err := ruleengine.Build(def)
	if err != nil {
		return nil, &invalidRulesError{path: path, err: err}
	}
	return g, nil
}

func addAttrFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("attr", "a", nil, "Context attribute as key=value (repeatable)")
	cmd.Flags().Bool("strings", false, "Treat every attribute value as a string")
}

func attrsFromFlags(cmd *cobra.Command) (map[string]any, error) {
	pairs, _ := cmd.Flags().GetStringArray("attr")
	asStrings, _ := cmd.Flags().GetBool("strings")
	return parseAttrs(pairs, asStrings)
}

func contextFromFlags(cmd *cobra.Command) (ruleengine.Context, error) {
	attrs, err := attrsFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	return ruleengine.NewContext(attrs)
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a rules file parses and builds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := build(args[0])
			if err != nil {
				return err
			}
			info := g.Info()
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d groups, %d rules, %d features, checksum %s)\n",
				args[0], info.Stats.Groups, info.Stats.Rules, info.Stats.Features, info.Checksum)
			return nil
		},
	}
}

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval [file]",
		Short: "Resolve feature values for a context",
		Long: `Resolve feature values for a context, either locally against a rules
file or remotely against a running data plane (--addr).`,
		Example: `  switchctl eval rules.yaml -a countryCode=CA -a appVersion=2.1.0
  switchctl eval --addr localhost:50051 -a device=iOS`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				return remoteEval(cmd, addr)
			}
			if len(args) != 1 {
				return fmt.Errorf("a rules file is required unless --addr is set")
			}

			g, err := build(args[0])
			if err != nil {
				return err
			}
			ctx, err := contextFromFlags(cmd)
			if err != nil {
				return err
			}

			values := g.Evaluate(ctx)
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), values)
			}
			writeValues(cmd.OutOrStdout(), values)
			return nil
		},
	}
	addAttrFlags(cmd)
	addRemoteFlags(cmd)
	return cmd
}

func newExplainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <file>",
		Short: "Show which rule decided each group for a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := build(args[0])
			if err != nil {
				return err
			}
			ctx, err := contextFromFlags(cmd)
			if err != nil {
				return err
			}

			res := g.Explain(ctx)
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), res)
			}

			out := cmd.OutOrStdout()
			for _, d := range res.Decisions {
				if d.Matched {
					fmt.Fprintf(out, "[%s] rule %q (priority %d) matched: %s\n", d.Group, d.Rule, d.Priority, d.Condition)
				} else {
					fmt.Fprintf(out, "[%s] no rule matched, defaults apply\n", d.Group)
				}
				writeValues(out, d.Values)
			}
			fmt.Fprintf(out, "nodes computed: %d, answered from cache: %d, missing attributes: %d\n",
				res.Stats.Misses, res.Stats.Hits, res.Stats.MissingAttributes)
			return nil
		},
	}
	addAttrFlags(cmd)
	return cmd
}

func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph <file>",
		Short: "Show how much the query graph shares between rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := build(args[0])
			if err != nil {
				return err
			}
			info := g.Info()
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), info)
			}

			st := info.Stats.Graph
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "nodes: %d (leaves %d)\n", st.Nodes, st.Leaves)
			fmt.Fprintf(out, "references: %d, shared: %d\n", st.References, st.Shared)
			fmt.Fprintf(out, "indexes: %d\n", len(info.Indexes))
			for _, ix := range info.Indexes {
				fmt.Fprintf(out, "  %s %s\n", ix.Criterion, ix.Operator)
			}
			return nil
		},
	}
}
