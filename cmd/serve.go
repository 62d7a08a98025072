package cmd

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dvaldes/worklog/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server exposing the session tracker as a REST API for
the web frontend. By default it listens on port 8484. Use --port to change it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		m, err := getTracker()
		if err != nil {
			return err
		}

		port := viper.GetInt("serve.port")
		server := api.NewServer(s, m, slog.Default())

		addr := fmt.Sprintf(":%d", port)
		ui.Info("Serving API at http://localhost%s", addr)
		return http.ListenAndServe(addr, server.Router())
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8484, "port to listen on")
	_ = viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))
	rootCmd.AddCommand(serveCmd)
}
