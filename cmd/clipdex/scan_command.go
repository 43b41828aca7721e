package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipdex/internal/scanner"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var quick bool
	var reorganize bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Discover videos, reconcile the inventory, and match transcripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scan, err := ctx.newScanner()
			if err != nil {
				return err
			}
			summary, err := scan.Scan(cmd.Context(), scanner.Options{Quick: quick})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Discovered %d videos: %d new, %d moved, %d linked\n",
				summary.Discovered, summary.New, summary.Moved, summary.Linked)
			if summary.Missing > 0 || summary.Recovered > 0 {
				fmt.Fprintf(out, "Missing: %d, recovered: %d\n", summary.Missing, summary.Recovered)
			}
			if summary.Errors > 0 {
				fmt.Fprintf(out, "Errors: %d (see log for details)\n", summary.Errors)
			}

			if !reorganize {
				return nil
			}
			org, err := ctx.newOrganizer()
			if err != nil {
				return err
			}
			moves, err := org.Reorganize(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Reorganized: %d moved, %d already in place\n", moves.Moved, moves.Skipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&quick, "quick", false, "Skip transcript matching")
	cmd.Flags().BoolVar(&reorganize, "reorganize", false, "Reorganize the library after scanning")
	return cmd
}

func newReorganizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reorganize",
		Short: "Move inventoried videos into the target library layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := ctx.newOrganizer()
			if err != nil {
				return err
			}
			summary, err := org.Reorganize(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reorganized: %d moved, %d already in place, %d errors\n",
				summary.Moved, summary.Skipped, summary.Errors)
			return nil
		},
	}
}
