// Command verselens ingests scripture texts and searches them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/verselens-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/verselens-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/verselens-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/verselens-cli/internal/core/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// A .env file is optional; real environment variables take precedence.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, err := file.DefaultDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	configStore, err := file.NewConfigStore(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return 1
	}
	settings := services.NewSettingsService(configStore, ai.NewConfigValidator(), dir)

	rt := newRuntime(settings, dir)
	defer rt.Close()

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Settings: settings,
		Ingest:   rt.Ingest,
		Search:   rt.Search,
	})

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
