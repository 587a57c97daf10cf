package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verselens-cli/internal/adapters/driving/httpapi"
)

var (
	serveAddr string
	serveCORS string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API",
	Long: `Serves the retrieval operations as JSON over HTTP.

Routes:
  GET /healthz
  GET /api/search?q=...
  GET /api/similar/{verse-id}
  GET /api/lexical?q=...
  GET /api/verses/{book}/{chapter}/{verse}`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "listen address")
	serveCmd.Flags().StringVar(&serveCORS, "cors", "", "allowed CORS origins, comma-separated (default any)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	search, err := searchPort(cmd)
	if err != nil {
		return err
	}

	var origins []string
	for _, o := range strings.Split(serveCORS, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	server, err := httpapi.NewServer(search, httpapi.Options{AllowOrigins: origins})
	if err != nil {
		return err
	}

	cmd.PrintErrf("REST API listening on http://%s\n", serveAddr)
	return server.Run(cmd.Context(), serveAddr)
}
