package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lattice-lang/lattice/internal/cli/config"
	"github.com/lattice-lang/lattice/internal/cli/ui"
)

var statsCmd = &cobra.Command{
	Use:   "stats <manifest.json>",
	Short: "Instantiate manifest types and report engine counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read manifest: %w", err)
		}
		return runStats(cmd.OutOrStdout(), data, cfg)
	},
}

func runStats(w io.Writer, data []byte, cfg *config.Config) error {
	rt := newRuntime(cfg)

	if _, _, err := instantiateManifest(rt, data, requestedState(cfg)); err != nil {
		return err
	}

	stats := rt.Stats()
	table := ui.NewKeyValueTable(w, cfg.NoColor)
	table.AddRow("Runtime ID", stats.RuntimeID)
	table.AddRow("Type caches", strconv.Itoa(stats.TypeCaches))
	table.AddRow("Canonical metadata", strconv.FormatInt(stats.CanonicalMetadata, 10))
	table.AddRow("Instantiations", strconv.FormatInt(stats.MetadataInstantiations, 10))
	table.AddRow("Discarded instantiations", strconv.FormatInt(stats.DiscardedInstantiations, 10))
	table.AddRow("Completed metadata", strconv.FormatInt(stats.CompletedMetadata, 10))
	table.AddRow("Witness tables", strconv.FormatInt(stats.WitnessTables, 10))
	table.Render()
	return nil
}
