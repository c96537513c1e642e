package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tripatlas/curator/internal/model"
)

var (
	ingestName     string
	ingestCategory string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <location-key>",
	Short: "Ingest a single location, applying corrections and registering its taxonomy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := initServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		loc, err := ingestLocation(cmd.Context(), svc, ingestName, model.Category(ingestCategory), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("ingested %s (%s) under %s\n", loc.Name, loc.Category, loc.LocationKey)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "location name")
	ingestCmd.Flags().StringVar(&ingestCategory, "category", "", "restaurant, hotel, attraction, or nightlife")
	_ = ingestCmd.MarkFlagRequired("name")
	_ = ingestCmd.MarkFlagRequired("category")
	rootCmd.AddCommand(ingestCmd)
}
