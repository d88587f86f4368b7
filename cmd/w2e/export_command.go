package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"webinar2ebook/internal/jobaccess"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Write the project's draft markdown to a file or stdout",
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
				if project.Draft == "" {
					return fmt.Errorf("project %s has no draft; run `w2e generate %s` first", args[0], args[0])
				}

				draft := project.Draft
				if !strings.HasSuffix(draft, "\n") {
					draft += "\n"
				}
				if strings.TrimSpace(outputPath) == "" {
					_, err := fmt.Fprint(cmd.OutOrStdout(), draft)
					return err
				}
				if err := os.WriteFile(outputPath, []byte(draft), 0o644); err != nil {
					return fmt.Errorf("write draft: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote draft to %s\n", outputPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (defaults to stdout)")
	return cmd
}
