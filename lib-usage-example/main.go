package main

import (
	"context"
	"flag"
	"fmt"

	"bizradar/pkg/geo"
	"bizradar/pkg/places"
	"bizradar/pkg/scanner"
	"bizradar/pkg/storage"
)

func main() {
	// Usage: go run *.go -baseurl "https://maps.example.com/api/place" -apikey "your_key"

	baseURLFlag := flag.String("baseurl", "", "Places directory base URL")
	apiKeyFlag := flag.String("apikey", "", "Places directory API key")
	dbFlag := flag.String("db", "bizradar.sqlite", "Path to the SQLite database")

	// Parse the command-line flags
	flag.Parse()

	if *baseURLFlag == "" {
		fmt.Println("Base URL is required. Please provide it using the -baseurl flag.")
		return
	}

	db, err := storage.Open(*dbFlag)
	if err != nil {
		fmt.Println("Error opening database:", err)
		return
	}
	defer db.Close()

	// Build a tiny hierarchy in code. Real deployments load it from the
	// database with db.LoadHierarchy.
	hierarchy := geo.NewHierarchy()
	for _, r := range []geo.Region{
		{ID: "madrid", Kind: geo.KindTop, Name: "Madrid", Lat: 40.4168, Lng: -3.7038, RadiusM: 15000, Priority: 1},
		{ID: "madrid-center", Kind: geo.KindSub, Name: "Madrid Center", ParentID: "madrid", Lat: 40.4168, Lng: -3.7038, RadiusM: 5000, Priority: 1},
		{ID: "centro", Kind: geo.KindLocality, Name: "Centro", ParentID: "madrid-center", Lat: 40.4155, Lng: -3.7074, RadiusM: 1200, Priority: 1},
	} {
		if err := hierarchy.Add(r); err != nil {
			fmt.Println("Error building hierarchy:", err)
			return
		}
	}

	tracker, err := scanner.New(scanner.Config{
		DB:        db,
		Client:    places.NewHTTPClient(*baseURLFlag, *apiKeyFlag, 3),
		Hierarchy: hierarchy,
	})
	if err != nil {
		fmt.Println("Error building tracker:", err)
		return
	}

	// Run a scan for cafes in the Centro locality, capped at $2.
	sess, err := tracker.Run(context.Background(), "centro", []string{"cafe"}, "manual", scanner.Budget{MaxCostUSD: 2})
	if err != nil {
		fmt.Println("Scan error:", err)
		return
	}
	fmt.Printf("Session %s finished with status %s: %d found (%d new)\n",
		sess.ID, sess.Status, sess.BusinessesFound, sess.BusinessesNew)

	// Print the likely-new feed.
	feed, err := db.ListBusinesses(context.Background(), storage.ListOptions{MinConfidence: 60, Limit: 20})
	if err != nil {
		fmt.Println("Error listing businesses:", err)
		return
	}
	for _, b := range feed {
		fmt.Printf("%3d  %s (%s) reviews=%d\n", b.Confidence, b.Name, b.Category, b.ReviewCount)
	}
}
