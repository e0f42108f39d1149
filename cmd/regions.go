package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"

	"bizradar/pkg/geo"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Manage the region hierarchy used for coverage planning",
}

// regionsImportCmd loads a YAML region file into the database. The file is a
// list of regions; parents must appear before their children:
//
//	- id: madrid
//	  kind: top
//	  name: Madrid
//	  lat: 40.4168
//	  lng: -3.7038
//	  radius_m: 15000
//	  priority: 1
var regionsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import a region hierarchy from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var regions []geo.Region
		if err := yaml.Unmarshal(data, &regions); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		// Validate the hierarchy before touching the database.
		h := geo.NewHierarchy()
		for _, r := range regions {
			if err := h.Add(r); err != nil {
				return fmt.Errorf("region %s: %w", r.ID, err)
			}
		}

		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.SaveRegions(context.Background(), regions); err != nil {
			return err
		}
		fmt.Printf("Imported %d regions from %s\n", len(regions), args[0])
		return nil
	},
}

var regionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored region hierarchy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		h, err := db.LoadHierarchy(context.Background())
		if err != nil {
			return err
		}
		regions := h.All()
		if len(regions) == 0 {
			fmt.Println("No regions stored. Import some with 'bizradar regions import'.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tNAME\tPARENT\tRADIUS\tPRIORITY\t")
		for _, r := range regions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0fm\t%d\t\n",
				r.ID, r.Kind, r.Name, r.ParentID, r.RadiusM, r.Priority)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
	regionsCmd.AddCommand(regionsImportCmd)
	regionsCmd.AddCommand(regionsListCmd)
}
