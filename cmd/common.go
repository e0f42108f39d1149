package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bizradar/internal/utils"
	"bizradar/pkg/indicators"
	"bizradar/pkg/keywords"
	"bizradar/pkg/places"
	"bizradar/pkg/scanner"
	"bizradar/pkg/storage"
)

// openDB resolves the --dbpath flag and opens the catalog database.
func openDB(cmd *cobra.Command) (*storage.DB, error) {
	dbPath, _ := cmd.Flags().GetString("dbpath")
	absPath, err := utils.GetAbsDBPath(dbPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, err
	}
	return storage.Open(absPath)
}

// newTracker assembles a session tracker from the config file and the
// persisted region hierarchy.
func newTracker(cmd *cobra.Command, db *storage.DB) (*scanner.Tracker, error) {
	hierarchy, err := db.LoadHierarchy(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("load region hierarchy: %w", err)
	}

	baseURL := viper.GetString("places.base_url")
	apiKey := viper.GetString("places.api_key")
	if baseURL == "" {
		return nil, fmt.Errorf("places.base_url is not set in the config file")
	}

	indCfg, err := indicators.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = viper.GetInt("scan.concurrency")
	}

	return scanner.New(scanner.Config{
		DB:            db,
		Client:        places.NewHTTPClient(baseURL, apiKey, 3),
		Hierarchy:     hierarchy,
		Keywords:      keywords.FromViper(viper.GetViper()),
		Indicators:    indCfg,
		Concurrency:   concurrency,
		MinIntervalMs: viper.GetInt("scan.min_interval_ms"),
		Overlap:       viper.GetFloat64("scan.overlap"),
		Log:           utils.Log,
	})
}
