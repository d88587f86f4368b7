package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"webinar2ebook/internal/api"
	"webinar2ebook/internal/jobaccess"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "generate <project-id>",
		Short: "Enqueue a full draft generation job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(session jobaccess.Session) error {
				job, err := session.Access.Generate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued generation job %s\n", job.ID)
				if !session.Daemon {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running; start it with `w2e start` to process the job")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newRewriteCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "rewrite <project-id>",
		Short: "Enqueue a targeted rewrite of the stored draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(session jobaccess.Session) error {
				job, err := session.Access.Rewrite(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued rewrite job %s\n", job.ID)
				if !session.Daemon {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running; start it with `w2e start` to process the job")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(session jobaccess.Session) error {
				items, err := session.Access.ListJobs(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.JobListResponse{Jobs: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Job", "Kind", "Status", "Progress", "Updated"},
					buildJobRows(items),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show job progress, warnings, and results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(session jobaccess.Session) error {
				job, err := session.Access.DescribeJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				if jsonOut {
					return writeJSON(cmd, job)
				}

				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Job:      %s\n", job.ID)
				fmt.Fprintf(stdout, "Project:  %s\n", job.ProjectID)
				fmt.Fprintf(stdout, "Kind:     %s\n", job.Kind)
				fmt.Fprintf(stdout, "Status:   %s\n", job.Status)
				fmt.Fprintf(stdout, "Progress: %s\n", formatProgress(job.Progress))
				if job.Progress.Message != "" {
					fmt.Fprintf(stdout, "Message:  %s\n", job.Progress.Message)
				}
				if job.Progress.EstimatedRemainingSeconds > 0 {
					fmt.Fprintf(stdout, "ETA:      %ds\n", job.Progress.EstimatedRemainingSeconds)
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(stdout, "Error:    %s\n", job.ErrorMessage)
				}
				if job.FinishedAt != "" {
					fmt.Fprintf(stdout, "Finished: %s\n", job.FinishedAt)
				}
				if len(job.Warnings) > 0 {
					fmt.Fprintln(stdout, "Warnings:")
					for _, warning := range job.Warnings {
						fmt.Fprintf(stdout, "  - %s\n", warning)
					}
				}
				if len(job.Result) > 0 {
					fmt.Fprintf(stdout, "Result:   %s\n", string(job.Result))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request cooperative cancellation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(session jobaccess.Session) error {
				job, err := session.Access.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if job.Status == "cancelled" {
					fmt.Fprintf(stdout, "Job %s cancelled\n", job.ID)
				} else {
					fmt.Fprintf(stdout, "Cancel requested for job %s; it stops at the next chapter boundary\n", job.ID)
				}
				return nil
			})
		},
	}
}

func buildJobRows(items []api.Job) [][]string {
	rows := make([][]string, 0, len(items))
	for _, job := range items {
		rows = append(rows, []string{
			job.ID,
			job.Kind,
			job.Status,
			formatProgress(job.Progress),
			job.UpdatedAt,
		})
	}
	return rows
}

func formatProgress(progress api.JobProgress) string {
	if progress.ChaptersTotal <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d (%.0f%%)", progress.ChaptersCompleted, progress.ChaptersTotal, progress.Percent)
}
