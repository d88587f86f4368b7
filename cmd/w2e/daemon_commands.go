package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"webinar2ebook/internal/daemonctl"
	"webinar2ebook/internal/jobaccess"
	"webinar2ebook/internal/jobs"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the webinar2ebook daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the webinar2ebook daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the webinar2ebook daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}

	statusCmd := newStatusCommand(ctx)

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and job queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			running := false
			pid := 0
			lastError := ""
			lastJobID := ""
			var phaseLines [][]string

			client, dialErr := ctx.dialClient()
			var stats map[string]int
			if dialErr == nil {
				status, err := client.Status()
				_ = client.Close()
				if err != nil {
					return err
				}
				running = status.Running
				pid = status.PID
				lastError = status.LastError
				lastJobID = status.LastJobID
				stats = status.JobStats
				for _, phase := range status.PhaseHealth {
					phaseLines = append(phaseLines, []string{phase.Name, yesNo(phase.Ready), phase.Detail})
				}
			} else {
				// Daemon offline; read job stats straight from the database.
				err := ctx.withSession(func(session jobaccess.Session) error {
					s, statsErr := session.Access.Stats(cmd.Context())
					if statsErr != nil {
						return statsErr
					}
					stats = s
					return nil
				})
				if err != nil {
					return err
				}
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"running":   running,
					"pid":       pid,
					"lastError": lastError,
					"lastJobId": lastJobID,
					"jobStats":  stats,
				})
			}

			if running {
				fmt.Fprintf(stdout, "Daemon: running (pid %d)\n", pid)
			} else {
				fmt.Fprintln(stdout, "Daemon: not running")
			}
			if lastJobID != "" {
				fmt.Fprintf(stdout, "Last job: %s\n", lastJobID)
			}
			if lastError != "" {
				fmt.Fprintf(stdout, "Last error: %s\n", lastError)
			}

			if len(phaseLines) > 0 {
				fmt.Fprintln(stdout)
				fmt.Fprint(stdout, renderTable(
					[]string{"Phase", "Ready", "Detail"},
					phaseLines,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				fmt.Fprintln(stdout)
			}

			rows := buildJobStatsRows(stats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Job queue is empty")
				return nil
			}
			fmt.Fprintln(stdout)
			fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintln(stdout)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func buildJobStatsRows(stats map[string]int) [][]string {
	// Known statuses first, in lifecycle order, then anything unexpected.
	order := []jobs.Status{
		jobs.StatusQueued,
		jobs.StatusPlanning,
		jobs.StatusEvidenceMap,
		jobs.StatusGenerating,
		jobs.StatusCompleted,
		jobs.StatusFailed,
		jobs.StatusCancelled,
	}
	rows := make([][]string, 0, len(stats))
	seen := make(map[string]bool, len(stats))
	for _, status := range order {
		if count, ok := stats[string(status)]; ok && count > 0 {
			rows = append(rows, []string{string(status), strconv.Itoa(count)})
			seen[string(status)] = true
		}
	}
	rest := make([]string, 0, len(stats))
	for name, count := range stats {
		if !seen[name] && count > 0 {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		rows = append(rows, []string{name, strconv.Itoa(stats[name])})
	}
	return rows
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
