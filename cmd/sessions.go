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

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and manage scan sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		sessions, err := db.ListSessions(context.Background(), limit)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No scan sessions recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tREGION\tSTATUS\tSTARTED\tCALLS\tCOST\tFOUND\tNEW\t")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t$%.2f\t%d\t%d\t\n",
				s.ID, s.Kind, s.TargetRegion, s.Status,
				s.StartedAt.Format("2006-01-02 15:04"),
				s.APICallsCount, s.EstimatedCost, s.BusinessesFound, s.BusinessesNew)
		}
		return w.Flush()
	},
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show the full state of one scan session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		s, err := db.GetSession(context.Background(), args[0])
		if err != nil {
			if err == storage.ErrNotFound {
				return fmt.Errorf("session not found: %s", args[0])
			}
			return err
		}

		fmt.Printf("Session:     %s\n", s.ID)
		fmt.Printf("Kind:        %s\n", s.Kind)
		fmt.Printf("Region:      %s\n", s.TargetRegion)
		if s.TargetCategories != "" {
			fmt.Printf("Categories:  %s\n", s.TargetCategories)
		}
		fmt.Printf("Status:      %s\n", s.Status)
		fmt.Printf("Started:     %s\n", s.StartedAt.Format("2006-01-02 15:04:05"))
		if s.CompletedAt != nil {
			fmt.Printf("Completed:   %s\n", s.CompletedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("API calls:   %d ($%.2f)\n", s.APICallsCount, s.EstimatedCost)
		fmt.Printf("Businesses:  %d found, %d new, %d updated\n",
			s.BusinessesFound, s.BusinessesNew, s.BusinessesUpdated)
		if s.ErrorLog != "" {
			fmt.Printf("Errors:      %s\n", s.ErrorLog)
		}
		return nil
	},
}

var sessionCancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Cancel a running scan session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		err = db.FinishSession(context.Background(), args[0], storage.StatusCancelled, "", time.Now())
		if err != nil {
			if err == storage.ErrNotFound {
				return fmt.Errorf("session %s is not running", args[0])
			}
			return err
		}
		fmt.Printf("Session %s cancelled.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionStatusCmd)
	sessionsCmd.AddCommand(sessionCancelCmd)
	sessionsCmd.Flags().Int("limit", 50, "Number of recent sessions to show")
}
