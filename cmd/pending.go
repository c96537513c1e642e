package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/tripatlas/curator/internal/locationkey"
)

var pendingExportOut string

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Review pending taxonomy entries",
}

var pendingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending entries with location counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := initServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		entries, err := svc.taxonomy.PendingEntries(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no pending taxonomy entries")
			return nil
		}

		fmt.Printf("%-40s %-45s %9s\n", "KEY", "DISPLAY", "LOCATIONS")
		for _, e := range entries {
			display := e.LocationKey
			if k, ok := locationkey.Parse(e.LocationKey); ok {
				display = k.Display()
			}
			fmt.Printf("%-40s %-45s %9d\n", e.LocationKey, display, e.LocationCount)
		}
		return nil
	},
}

var pendingApproveCmd = &cobra.Command{
	Use:   "approve <key>",
	Short: "Approve a pending entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := initServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		entry, err := svc.taxonomy.Approve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("approved %s\n", entry.LocationKey)
		return nil
	},
}

var pendingRejectCmd = &cobra.Command{
	Use:   "reject <key>",
	Short: "Reject and delete a pending entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := initServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.taxonomy.Reject(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("rejected %s\n", args[0])
		return nil
	},
}

var pendingExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export pending entries to an XLSX review sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := initServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		entries, err := svc.taxonomy.PendingEntries(cmd.Context())
		if err != nil {
			return err
		}

		file := xlsx.NewFile()
		sheet, err := file.AddSheet("Pending")
		if err != nil {
			return eris.Wrap(err, "export: add sheet")
		}

		header := sheet.AddRow()
		for _, h := range []string{"Location Key", "Display", "Locations", "Created"} {
			header.AddCell().Value = h
		}
		for _, e := range entries {
			display := e.LocationKey
			if k, ok := locationkey.Parse(e.LocationKey); ok {
				display = k.Display()
			}
			row := sheet.AddRow()
			row.AddCell().Value = e.LocationKey
			row.AddCell().Value = display
			row.AddCell().SetInt(e.LocationCount)
			row.AddCell().Value = e.CreatedAt.Format("2006-01-02 15:04")
		}

		if err := file.Save(pendingExportOut); err != nil {
			return eris.Wrapf(err, "export: save %s", pendingExportOut)
		}
		fmt.Printf("exported %d pending entries to %s\n", len(entries), pendingExportOut)
		return nil
	},
}

func init() {
	pendingExportCmd.Flags().StringVar(&pendingExportOut, "out", "pending.xlsx", "output xlsx path")
	pendingCmd.AddCommand(pendingListCmd, pendingApproveCmd, pendingRejectCmd, pendingExportCmd)
	rootCmd.AddCommand(pendingCmd)
}
