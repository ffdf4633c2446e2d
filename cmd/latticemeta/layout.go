package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lattice-lang/lattice/internal/cli/config"
	"github.com/lattice-lang/lattice/internal/cli/ui"
	"github.com/lattice-lang/lattice/runtime/metadata"
)

var layoutCmd = &cobra.Command{
	Use:   "layout <manifest.json>",
	Short: "Instantiate manifest types and report their metadata layout",
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
		return runLayout(cmd.OutOrStdout(), data, cfg)
	},
}

// wordSize reports the engine's word size for display.
func wordSize() int { return metadata.WordSize }

// requestedState maps the configured state name onto the completion
// lattice.
func requestedState(cfg *config.Config) metadata.State {
	if cfg.RequestedState == "layout" {
		return metadata.StateLayoutComplete
	}
	return metadata.StateComplete
}

// newRuntime builds the engine used by a CLI invocation.
func newRuntime(cfg *config.Config) *metadata.Runtime {
	if !cfg.Verbose {
		return metadata.NewRuntime()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	return metadata.NewRuntime(metadata.WithLogger(logger))
}

// instantiateManifest parses the manifest and drives every concrete type
// through the engine. Generic templates are returned separately: without an
// argument vector there is nothing to instantiate.
func instantiateManifest(rt *metadata.Runtime, data []byte, req metadata.State) (instantiated []metadata.Response, generic []*metadata.TypeDescriptor, err error) {
	m, err := metadata.ParseManifest(data)
	if err != nil {
		return nil, nil, err
	}
	descs, err := m.BuildDescriptors()
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(descs))
	for name := range descs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		desc := descs[name]
		if desc.GenericParams > 0 {
			generic = append(generic, desc)
			continue
		}
		instantiated = append(instantiated, rt.RequestMetadata(req, desc, nil))
	}
	return instantiated, generic, nil
}

func runLayout(w io.Writer, data []byte, cfg *config.Config) error {
	rt := newRuntime(cfg)

	responses, generic, err := instantiateManifest(rt, data, requestedState(cfg))
	if err != nil {
		return err
	}

	table := ui.NewTable(w, []string{"TYPE", "KIND", "STATE", "NEG", "POS", "BYTES"}, cfg.NoColor)
	for _, resp := range responses {
		md := resp.Metadata
		table.AddRow(
			md.Descriptor().Name,
			md.Kind().String(),
			resp.State.String(),
			strconv.Itoa(md.NegativeSizeWords()),
			strconv.Itoa(md.PositiveSizeWords()),
			strconv.Itoa(md.TotalSizeBytes()),
		)
	}
	for _, desc := range generic {
		table.AddRow(desc.Name, desc.Kind.String(),
			fmt.Sprintf("generic (%d params)", desc.GenericParams), "-", "-", "-")
	}
	table.Render()
	return nil
}
