package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

func jsonOutput(cmd *cobra.Command) bool {
	on, _ := cmd.Flags().GetBool("json")
	return on
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeValues prints one "feature = value" line per feature, sorted.
func writeValues(w io.Writer, values map[string]any) {
	for _, k := range slices.Sorted(maps.Keys(values)) {
		fmt.Fprintf(w, "%s = %v\n", k, values[k])
	}
}
