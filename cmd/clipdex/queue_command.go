package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"clipdex/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the transcription queue",
	}
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueRetryCommand(ctx))
	cmd.AddCommand(newQueueClearCommand(ctx))
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transcription jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.queueStoreValue()
			if err != nil {
				return err
			}

			var statuses []queue.Status
			if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
				statuses = append(statuses, queue.Status(trimmed))
			}
			jobs, err := q.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}

			rows := make([]table.Row, 0, len(jobs))
			for _, job := range jobs {
				detail := job.TranscriptID
				if job.ErrorMessage != "" {
					detail = job.ErrorMessage
				}
				rows = append(rows, table.Row{
					job.ID,
					job.VideoID,
					job.Title,
					string(job.Status),
					job.CreatedAt.Local().Format(time.DateTime),
					detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				table.Row{"ID", "Video", "Title", "Status", "Created", "Result"}, rows, 1))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show jobs with this status")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Requeue interrupted jobs and drain the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := ctx.newWorker()
			if err != nil {
				return err
			}
			if err := w.ResumePending(cmd.Context()); err != nil {
				return err
			}
			w.Wait()

			stats, err := ctx.queueStore.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queue drained: %d completed, %d failed\n",
				stats[queue.StatusCompleted], stats[queue.StatusFailed])
			return nil
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove completed jobs from the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.queueStoreValue()
			if err != nil {
				return err
			}
			removed, err := q.ClearCompleted(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed jobs\n", removed)
			return nil
		},
	}
}
