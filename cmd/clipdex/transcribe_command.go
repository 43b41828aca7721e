package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipdex/internal/queue"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var category string
	var title string
	var tags []string
	var wait bool

	cmd := &cobra.Command{
		Use:   "transcribe <video-id>",
		Short: "Queue a video for transcription",
		Long: "Queues a transcription job for an inventoried video. The background " +
			"worker transcribes the full file, saves the transcript into the " +
			"knowledge base, and links the video to it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(category) == "" {
				return fmt.Errorf("--category is required")
			}
			if strings.TrimSpace(title) == "" {
				return fmt.Errorf("--title is required")
			}

			w, err := ctx.newWorker()
			if err != nil {
				return err
			}
			if err := w.ResumePending(cmd.Context()); err != nil {
				return err
			}
			job, err := w.Enqueue(cmd.Context(), args[0], category, title, tags)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued job %d for video %s\n", job.ID, job.VideoID)

			if wait {
				w.Wait()
				final, err := ctx.queueStore.GetByID(cmd.Context(), job.ID)
				if err != nil {
					return err
				}
				switch {
				case final == nil:
					return fmt.Errorf("job %d disappeared from the queue", job.ID)
				case final.ErrorMessage != "":
					return fmt.Errorf("job %d failed: %s", final.ID, final.ErrorMessage)
				case final.Status == queue.StatusCompleted:
					fmt.Fprintf(cmd.OutOrStdout(), "Transcript %s saved\n", final.TranscriptID)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "Job %d left for the worker holding the queue lock\n", final.ID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Category code for the new transcript (e.g. 12)")
	cmd.Flags().StringVar(&title, "title", "", "Title for the new transcript")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag for the transcript (repeatable)")
	cmd.Flags().BoolVar(&wait, "wait", true, "Wait for the queue to drain before exiting")
	return cmd
}
