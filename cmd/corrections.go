package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tripatlas/curator/internal/model"
)

var (
	correctionIncorrect string
	correctionCorrect   string
	correctionPart      string
)

var correctionsCmd = &cobra.Command{
	Use:   "corrections",
	Short: "Manage taxonomy correction rules",
}

var correctionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List correction rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := initServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		rules, err := svc.correction.Rules(cmd.Context())
		if err != nil {
			return err
		}
		if len(rules) == 0 {
			fmt.Println("no correction rules")
			return nil
		}

		fmt.Printf("%-36s %-14s %-25s %-25s\n", "ID", "PART", "INCORRECT", "CORRECT")
		for _, r := range rules {
			fmt.Printf("%-36s %-14s %-25s %-25s\n", r.ID, r.PartType, r.IncorrectValue, r.CorrectValue)
		}
		return nil
	},
}

var correctionsPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Preview the blast radius of a correction before committing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := initServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		preview, err := svc.correction.Preview(cmd.Context(),
			correctionIncorrect, correctionCorrect, model.PartType(correctionPart))
		if err != nil {
			return err
		}

		fmt.Printf("pending taxonomy entries matched: %d\n", preview.PendingTaxonomyCount)
		for _, key := range preview.PendingTaxonomySamples {
			fmt.Printf("  %s\n", key)
		}
		fmt.Printf("locations matched: %d\n", preview.LocationCount)
		for _, s := range preview.LocationSamples {
			fmt.Printf("  %s -> %s\n", s.CurrentKey, s.CorrectedKey)
		}
		return nil
	},
}

var correctionsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a correction rule and rewrite matching historical rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := initServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		result, err := svc.correction.AddRule(cmd.Context(),
			correctionIncorrect, correctionCorrect, model.PartType(correctionPart))
		if err != nil {
			return err
		}

		fmt.Printf("rule %s: %s -> %s (%s)\n",
			result.Correction.ID, result.Correction.IncorrectValue,
			result.Correction.CorrectValue, result.Correction.PartType)
		fmt.Printf("rewrote %d pending entries, %d locations\n",
			result.UpdatedPendingCount, result.UpdatedLocationCount)
		return nil
	},
}

var correctionsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a correction rule (prior rewrites stay in place)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := initServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.correction.RemoveRule(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("removed rule %s\n", args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{correctionsPreviewCmd, correctionsAddCmd} {
		c.Flags().StringVar(&correctionIncorrect, "incorrect", "", "misspelled segment value")
		c.Flags().StringVar(&correctionCorrect, "correct", "", "canonical segment value")
		c.Flags().StringVar(&correctionPart, "part", "", "segment position: country, city, or neighborhood")
		_ = c.MarkFlagRequired("incorrect")
		_ = c.MarkFlagRequired("correct")
		_ = c.MarkFlagRequired("part")
	}

	correctionsCmd.AddCommand(correctionsListCmd, correctionsPreviewCmd, correctionsAddCmd, correctionsRemoveCmd)
	rootCmd.AddCommand(correctionsCmd)
}
