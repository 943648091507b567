package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AbelCoplet/llama-cag-n8N/internal/cag"
	"github.com/AbelCoplet/llama-cag-n8N/internal/config"
	"github.com/AbelCoplet/llama-cag-n8N/internal/data/sqliteStore"
	"github.com/AbelCoplet/llama-cag-n8N/internal/engine"
	"github.com/AbelCoplet/llama-cag-n8N/internal/registry"
)

var rootCmd = &cobra.Command{
	Use:   "cagctl",
	Short: "Inspect and maintain the KV cache registry",
	Long: `cagctl works directly against the registry database and the cache
directory. Run it on the host that serves the bridge.`,
	SilenceUsage: true,
}

var (
	cfg        config.Config
	store      *sqliteStore.Store
	reg        *registry.Registry
	cagService cag.Service
)

// openServices lazily builds the store and service for commands that need
// them; version does not.
func openServices() error {
	if store != nil {
		return nil
	}
	var err error
	store, err = sqliteStore.NewStore(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening registry database %s: %w", cfg.DBPath(), err)
	}
	reg = registry.New(store)
	gateway := engine.NewGateway(cfg)
	cagService = cag.NewService(gateway, reg, store, cfg)
	return nil
}

func Execute() {
	cfg = config.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	if store != nil {
		_ = store.Close()
	}
}
