package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lattice-lang/lattice/internal/cli/config"
	"github.com/lattice-lang/lattice/runtime/introspect"
)

var serveCmd = &cobra.Command{
	Use:   "serve <manifest.json>",
	Short: "Instantiate manifest types and serve the introspection API",
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
		return runServe(data, cfg)
	},
}

func runServe(data []byte, cfg *config.Config) error {
	rt := newRuntime(cfg)

	if _, _, err := instantiateManifest(rt, data, requestedState(cfg)); err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	handler := introspect.NewHandler(rt, logger)
	logger.Info("introspection listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("runtime_id", rt.ID().String()))
	return http.ListenAndServe(cfg.ListenAddr, handler)
}
