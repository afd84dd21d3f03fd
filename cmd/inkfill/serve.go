package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/inkfill/inkfill/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inkfill HTTP server",
	Long: `Start the inkfill HTTP server.

The server accepts fill requests as multipart uploads and returns the
filled document, or the full run result as JSON.

Endpoints:
  GET  /health    - Basic server health check
  POST /api/fill  - Fill a document (parts: document, record)

Examples:
  inkfill serve                    # Use host and port from config
  inkfill serve --port 3000        # Start on custom port
  inkfill serve --host 127.0.0.1   # Bind to loopback only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := cfgManager.Get()

		host := serveHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := servePort
		if port == "" {
			port = strconv.Itoa(cfg.Server.Port)
		}

		p, err := buildPipeline(cfg, "")
		if err != nil {
			return err
		}

		srv, err := server.New(server.Config{
			Host:       host,
			Port:       port,
			Runner:     p,
			ArchiveDir: cfg.Server.ArchiveDir,
			Logger:     logger,
		})
		if err != nil {
			return err
		}

		cfgManager.WatchConfig()
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
