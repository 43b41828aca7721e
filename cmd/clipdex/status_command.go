package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"clipdex/internal/inventory"
	"clipdex/internal/queue"
	"clipdex/internal/registry"
)

const (
	ansiReset  = "\x1b[0m"
	ansiYellow = "\x1b[33m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show inventory and transcription queue state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.inventoryStore()
			if err != nil {
				return err
			}
			inv, err := store.Load()
			if err != nil {
				return err
			}
			q, err := ctx.queueStoreValue()
			if err != nil {
				return err
			}
			stats, err := q.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			counts := inv.StatusCounts()
			fmt.Fprintf(out, "Inventory: %d videos (%d linked, %d unlinked, %d processing, %d missing)\n",
				len(inv.Videos),
				counts[inventory.StatusLinked],
				counts[inventory.StatusUnlinked],
				counts[inventory.StatusProcessing],
				counts[inventory.StatusMissing],
			)
			if inv.LastScan != nil {
				fmt.Fprintf(out, "Last scan: %s\n", inv.LastScan.Local().Format(time.RFC1123))
			} else {
				fmt.Fprintln(out, "Last scan: never")
			}

			queueLine := fmt.Sprintf("Queue: %d pending, %d processing, %d completed, %d failed",
				stats[queue.StatusPending],
				stats[queue.StatusProcessing],
				stats[queue.StatusCompleted],
				stats[queue.StatusFailed],
			)
			if stats[queue.StatusFailed] > 0 && isTerminal(out) {
				queueLine = ansiYellow + queueLine + ansiReset
			}
			fmt.Fprintln(out, queueLine)

			if verbose {
				reg, err := ctx.registryValue()
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderVideoTable(inv, reg))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every inventoried video")
	return cmd
}

func renderVideoTable(inv *inventory.Inventory, reg *registry.Registry) string {
	records := make([]*inventory.VideoRecord, 0, len(inv.Videos))
	for _, rec := range inv.Videos {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CurrentPath < records[j].CurrentPath
	})

	rows := make([]table.Row, 0, len(records))
	for _, rec := range records {
		title := ""
		category := ""
		if rec.TranscriptID != "" {
			title = registry.DisplayTitle(rec.TranscriptID)
			category = reg.Label(registry.CategoryFor(rec.TranscriptID))
		}
		rows = append(rows, table.Row{
			rec.Filename,
			string(rec.Status),
			category,
			title,
			fmt.Sprintf("%.0fs", rec.DurationSeconds),
			filepath.Dir(rec.CurrentPath),
		})
	}
	return renderTable(table.Row{"File", "Status", "Category", "Transcript", "Length", "Location"}, rows, 5)
}
