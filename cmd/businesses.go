package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bizradar/pkg/storage"
)

// businessesCmd prints the catalog feed, most confident first. With the
// default --min-confidence this is the "likely new" report.
var businessesCmd = &cobra.Command{
	Use:   "businesses",
	Short: "List catalog businesses ranked by new-business confidence",
	RunE: func(cmd *cobra.Command, _ []string) error {
		region, _ := cmd.Flags().GetString("region")
		category, _ := cmd.Flags().GetString("category")
		minConfidence, _ := cmd.Flags().GetInt("min-confidence")
		since, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")

		opts := storage.ListOptions{
			RegionID:      region,
			Category:      category,
			MinConfidence: minConfidence,
			Limit:         limit,
		}
		if since != "" {
			t, err := time.Parse("2006-01-02", since)
			if err != nil {
				return fmt.Errorf("--since must be YYYY-MM-DD: %w", err)
			}
			opts.FirstSeenSince = t
		}

		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		businesses, err := db.ListBusinesses(context.Background(), opts)
		if err != nil {
			return err
		}
		if len(businesses) == 0 {
			fmt.Println("No businesses matched. Try lowering --min-confidence or run a scan first.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "CONFIDENCE\tNAME\tCATEGORY\tREGION\tREVIEWS\tRATING\tFIRST SEEN\t")
		for _, b := range businesses {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%.1f\t%s\t\n",
				b.Confidence, b.Name, b.Category, b.RegionID,
				b.ReviewCount, b.Rating, b.FirstSeen.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(businessesCmd)
	businessesCmd.Flags().String("region", "", "Filter by region id")
	businessesCmd.Flags().String("category", "", "Filter by category")
	businessesCmd.Flags().Int("min-confidence", 60, "Minimum confidence score (0-100)")
	businessesCmd.Flags().String("since", "", "Only businesses first seen since this date (YYYY-MM-DD)")
	businessesCmd.Flags().Int("limit", 100, "Maximum rows to print")
}
