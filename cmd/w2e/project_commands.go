package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"webinar2ebook/internal/api"
	"webinar2ebook/internal/jobaccess"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage transcript projects",
	}

	projectCmd.AddCommand(newProjectAddCommand(ctx))
	projectCmd.AddCommand(newProjectListCommand(ctx))
	projectCmd.AddCommand(newProjectShowCommand(ctx))

	return projectCmd
}

func newProjectAddCommand(ctx *commandContext) *cobra.Command {
	var title string
	var transcriptPath string
	var outlinePath string
	var mode string
	var strict bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a webinar transcript as a new project",
		RunE: func(cmd *cobra.Command, args []string) error {
			transcript, err := readInputFile(transcriptPath, "transcript")
			if err != nil {
				return err
			}

			var outline json.RawMessage
			if strings.TrimSpace(outlinePath) != "" {
				data, err := readInputFile(outlinePath, "outline")
				if err != nil {
					return err
				}
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("outline file %s is not valid JSON", outlinePath)
				}
				outline = json.RawMessage(data)
			}

			return ctx.withSession(func(session jobaccess.Session) error {
				project, err := session.Access.AddProject(cmd.Context(), api.CreateProjectRequest{
					Title:          title,
					Transcript:     transcript,
					Outline:        outline,
					ContentMode:    mode,
					StrictGrounded: strict,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, project)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", project.ID, project.Title)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Project title")
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "Path to the transcript text file")
	cmd.Flags().StringVar(&outlinePath, "outline", "", "Path to a chapter outline JSON file")
	cmd.Flags().StringVar(&mode, "mode", "", "Content mode (essay, interview, tutorial)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Require evidence grounding for every chapter")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(session jobaccess.Session) error {
				items, err := session.Access.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.ProjectListResponse{Projects: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No projects")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, project := range items {
					rows = append(rows, []string{
						project.ID,
						project.Title,
						project.ContentMode,
						yesNo(project.StrictGrounded),
						yesNo(project.HasDraft),
						project.CreatedAt,
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Mode", "Strict", "Draft", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project and its jobs",
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
				if jsonOut {
					return writeJSON(cmd, project)
				}

				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Project:  %s\n", project.ID)
				fmt.Fprintf(stdout, "Title:    %s\n", project.Title)
				fmt.Fprintf(stdout, "Mode:     %s\n", project.ContentMode)
				fmt.Fprintf(stdout, "Strict:   %s\n", yesNo(project.StrictGrounded))
				fmt.Fprintf(stdout, "Draft:    %s\n", yesNo(project.HasDraft))
				if project.CreatedAt != "" {
					fmt.Fprintf(stdout, "Created:  %s\n", project.CreatedAt)
				}

				jobsForProject, err := session.Access.ListJobsForProject(cmd.Context(), project.ID)
				if err != nil {
					return err
				}
				if len(jobsForProject) == 0 {
					return nil
				}
				fmt.Fprintln(stdout)
				fmt.Fprint(stdout, renderTable(
					[]string{"Job", "Kind", "Status", "Progress", "Updated"},
					buildJobRows(jobsForProject),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				fmt.Fprintln(stdout)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func readInputFile(path, label string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%s file path is required", label)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s file: %w", label, err)
	}
	return string(data), nil
}
