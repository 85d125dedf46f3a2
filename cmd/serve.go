package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/mentalmath/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the practice API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.HTTPAddr
		}

		d, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		router := server.NewRouter(d.engine, server.Options{
			GinMode:        cfg.GinMode,
			AllowedOrigins: cfg.AllowedOrigins,
			LLMEnabled:     d.llmEnabled,
			Logger:         log,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.Serve(ctx, addr, router, log)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides MENTALMATH_HTTP_ADDR env var)")
}
