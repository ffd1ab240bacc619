package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xhad/sitecheck/server"
)

var (
	servePort int
	watch     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve checks and page previews over a websocket",
	Long: `serve starts a websocket server that runs checks and renders previews on
request. With --watch it re-checks whenever a content source changes and
pushes the report to every connected client.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			appConfig.Server.Port = servePort
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := server.NewWSServer(appConfig, logger)
		if err != nil {
			return err
		}

		color.Cyan("Serving on ws://localhost:%d/ws (Ctrl+C to stop)\n", appConfig.Server.Port)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.ListenAndServe(ctx) })
		if watch {
			g.Go(func() error { return srv.Watch(ctx) })
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to listen on")
	serveCmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-check when content changes")
}
