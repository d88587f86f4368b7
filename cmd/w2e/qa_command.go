package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"webinar2ebook/internal/jobaccess"
	"webinar2ebook/internal/qa"
)

func newQACommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "qa <project-id>",
		Short: "Show the QA report for a project's draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(session jobaccess.Session) error {
				project, err := session.Access.DescribeProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if project == nil {
					return fmt.Errorf("project %s not found", args[0])
				}
				if len(project.QAReport) == 0 {
					return fmt.Errorf("project %s has no qa report; run `w2e generate %s` first", args[0], args[0])
				}
				if jsonOut {
					return writeRawJSON(cmd, project.QAReport)
				}

				report, err := qa.DecodeReport(string(project.QAReport))
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Overall score: %d\n", report.OverallScore)
				fmt.Fprintf(stdout, "Analyzed at:   %s\n", report.AnalyzedAt.Format("2006-01-02 15:04:05 MST"))
				fmt.Fprintln(stdout)
				fmt.Fprint(stdout, renderTable(
					[]string{"Rubric", "Score"},
					[][]string{
						{"Structure", strconv.Itoa(report.RubricScores.Structure)},
						{"Clarity", strconv.Itoa(report.RubricScores.Clarity)},
						{"Faithfulness", strconv.Itoa(report.RubricScores.Faithfulness)},
						{"Repetition", strconv.Itoa(report.RubricScores.Repetition)},
						{"Completeness", strconv.Itoa(report.RubricScores.Completeness)},
					},
					[]columnAlignment{alignLeft, alignRight},
				))
				fmt.Fprintln(stdout)

				if len(report.Issues) == 0 {
					fmt.Fprintln(stdout, "No issues found")
					return nil
				}
				rows := make([][]string, 0, len(report.Issues))
				for _, issue := range report.Issues {
					rows = append(rows, []string{
						issue.Severity,
						issue.IssueType,
						strconv.Itoa(issue.ChapterIndex),
						issue.Heading,
						issue.Message,
					})
				}
				fmt.Fprintln(stdout)
				fmt.Fprint(stdout, renderTable(
					[]string{"Severity", "Type", "Chapter", "Heading", "Message"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				fmt.Fprintln(stdout)
				if report.Truncated {
					fmt.Fprintf(stdout, "Report truncated: %d issues total\n", report.TotalIssueCount)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the raw report JSON")
	return cmd
}
