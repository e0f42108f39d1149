package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bizradar/internal/utils"
	"bizradar/pkg/scanner"
)

// scanCmd implements: bizradar scan
//
//	--region string       Region to scan (required)
//	--categories string   Comma-separated business categories (empty = plain nearby search)
//	--kind string         Session kind: initial, periodic or manual
//	--max-calls int       Abort the session after this many directory calls
//	--max-cost float      Abort the session past this spend in USD
//	--estimate            Print the call/cost estimate and exit without scanning
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a region for businesses and update the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'bizradar scan --help'", args[0])
		}

		region, _ := cmd.Flags().GetString("region")
		categoriesFlag, _ := cmd.Flags().GetString("categories")
		kind, _ := cmd.Flags().GetString("kind")
		maxCalls, _ := cmd.Flags().GetInt64("max-calls")
		maxCost, _ := cmd.Flags().GetFloat64("max-cost")
		estimateOnly, _ := cmd.Flags().GetBool("estimate")

		var categories []string
		if categoriesFlag != "" {
			for _, c := range strings.Split(categoriesFlag, ",") {
				categories = append(categories, strings.TrimSpace(c))
			}
		}

		dbPath, _ := cmd.Flags().GetString("dbpath")
		lock, err := utils.NewDBLock(dbPath)
		if err != nil {
			return err
		}
		if err := lock.Lock(); err != nil {
			return err
		}
		defer lock.Unlock()

		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		tracker, err := newTracker(cmd, db)
		if err != nil {
			return err
		}

		calls, err := tracker.EstimateCalls(region, categories)
		if err != nil {
			return err
		}
		fmt.Printf("Estimated %d directory calls (~$%.2f) for region %s\n", calls, scanner.EstimateCost(calls), region)
		if estimateOnly {
			return nil
		}

		sess, err := tracker.Run(cmd.Context(), region, categories, kind, scanner.Budget{
			MaxCalls:   maxCalls,
			MaxCostUSD: maxCost,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Session %s %s: %d calls ($%.2f), %d businesses found (%d new, %d updated)\n",
			sess.ID, sess.Status, sess.APICallsCount, sess.EstimatedCost,
			sess.BusinessesFound, sess.BusinessesNew, sess.BusinessesUpdated)
		if sess.ErrorLog != "" {
			utils.Log.Warnf("Session ended with errors: %s", sess.ErrorLog)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("region", "", "Region id to scan (see 'bizradar regions list')")
	scanCmd.Flags().String("categories", "", "Comma-separated categories to search for (restaurant, cafe, bar, ...)")
	scanCmd.Flags().String("kind", "manual", "Session kind: initial, periodic or manual")
	scanCmd.Flags().Int64("max-calls", 0, "Maximum directory calls for this session (0 = unlimited)")
	scanCmd.Flags().Float64("max-cost", 0, "Maximum spend in USD for this session (0 = unlimited)")
	scanCmd.Flags().Int("concurrency", 0, "Concurrent scan points (0 = from config)")
	scanCmd.Flags().Bool("estimate", false, "Only print the call/cost estimate, don't scan")
	scanCmd.MarkFlagRequired("region")
}
