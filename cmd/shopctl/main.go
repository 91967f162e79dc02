// Command shopctl operates on the storefront collections directly through the
// configured storage backend.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ariefcatur/go-storefront/internal/app"
	"github.com/ariefcatur/go-storefront/internal/config"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRoot().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "shopctl",
		Short:        "Storefront maintenance tool",
		SilenceUsage: true,
	}
	root.AddCommand(newSeedCmd(), newProductsCmd(), newAdminCmd())
	return root
}

// open loads every collection from the configured backend. Events are not
// published from the CLI.
func open(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, app.Options{}, cfg.Logger())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
