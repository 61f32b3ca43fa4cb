// Package main implements switchctl, the operator CLI of Switchboard.
//
// It validates, evaluates and explains rule files locally, pushes them to
// the PostgreSQL source of truth, and queries a running data plane.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitSuccess = 0
	exitError   = 1
	// exitInvalid reports a rules file that does not build.
	exitInvalid = 2
)

func main() {
	os.Exit(execute(newRootCmd()))
}

func execute(root *cobra.Command) int {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		var invalid *invalidRulesError
		if errors.As(err, &invalid) {
			return exitInvalid
		}
		return exitError
	}
	return exitSuccess
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "switchctl",
		Short:         "Inspect and manage Switchboard feature-switch rules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "Print machine-readable JSON")

	root.AddCommand(
		newValidateCmd(),
		newEvalCmd(),
		newExplainCmd(),
		newGraphCmd(),
		newPushCmd(),
	)
	return root
}
