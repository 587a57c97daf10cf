// Package cli implements the verselens command line with cobra.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verselens-cli/internal/core/ports/driving"
	"github.com/custodia-labs/verselens-cli/internal/logger"
)

var (
	version = "dev"
	verbose bool
)

// Services opens the driving ports on demand. Commands that only touch
// settings never open the store or contact AI providers.
type Services struct {
	Settings driving.SettingsService
	Ingest   func(ctx context.Context) (driving.IngestService, error)
	Search   func(ctx context.Context) (driving.SearchService, error)
}

var services Services

var rootCmd = &cobra.Command{
	Use:   "verselens",
	Short: "Scripture ingestion and passage search",
	Long: `verselens parses a raw scripture text, groups verses into passage chunks,
embeds them and stores them for semantic, lexical and hybrid retrieval.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logging")
}

// SetServices injects the driving ports used by the commands.
func SetServices(s Services) {
	services = s
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func settingsPort() (driving.SettingsService, error) {
	if services.Settings == nil {
		return nil, errors.New("settings service not configured")
	}
	return services.Settings, nil
}

func ingestPort(cmd *cobra.Command) (driving.IngestService, error) {
	if services.Ingest == nil {
		return nil, errors.New("ingest service not configured")
	}
	return services.Ingest(cmd.Context())
}

func searchPort(cmd *cobra.Command) (driving.SearchService, error) {
	if services.Search == nil {
		return nil, errors.New("search service not configured")
	}
	return services.Search(cmd.Context())
}
