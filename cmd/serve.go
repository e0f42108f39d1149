package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bizradar/internal/server"
	"bizradar/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bizradar API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")

		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		// The tracker is optional: without places credentials the server
		// still serves the read-only catalog endpoints.
		tracker, err := newTracker(cmd, db)
		if err != nil {
			utils.Log.Warnf("Scan endpoints disabled: %v", err)
			tracker = nil
		}

		srv := server.New(db, tracker,
			viper.GetString("server.username"),
			viper.GetString("server.password"))
		return srv.Start(listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
}
