package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"releasedigest/internal/cli/middleware"
	"releasedigest/internal/commands"
	"releasedigest/internal/config"
	"releasedigest/internal/contracts"
	"releasedigest/internal/lock"
	"releasedigest/internal/output"
	syncpipe "releasedigest/internal/sync"
)

type AppContext struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Now     func() time.Time
	WorkDir string

	// Injection points for tests; nil selects the real implementation.
	Environment config.LookupFunc
	Source      syncpipe.Source
	Sink        commands.Sink
}

type globalFlags struct {
	JSON       bool
	ConfigPath string
}

type executionState struct {
	global      globalFlags
	commandName string
	dryRun      bool
}

func (state *executionState) outputMode() contracts.OutputMode {
	if state.global.JSON {
		return contracts.OutputModeJSON
	}
	return contracts.OutputModeHuman
}

func (state *executionState) resolvedCommandName() string {
	if state.commandName != "" {
		return state.commandName
	}
	return "root"
}

// Run executes the CLI using shared output and exit-code plumbing.
func Run(args []string, stdout io.Writer, stderr io.Writer) int {
	app := normalizeAppContext(AppContext{
		Stdout: stdout,
		Stderr: stderr,
		Now:    time.Now,
	})

	root, state := newRootCommand(app)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return int(contracts.ExitCodeSuccess)
	}

	var exitErr *codedExitError
	if errors.As(err, &exitErr) {
		return int(exitErr.Code)
	}

	report := output.Report{CommandName: state.resolvedCommandName(), DryRun: state.dryRun}
	if renderErr := output.Write(state.outputMode(), app.Stdout, app.Stderr, report, 0, err); renderErr != nil {
		_, _ = fmt.Fprintln(app.Stderr, output.FormatDiagnostic(renderErr))
	}

	return int(contracts.ExitCodeFatal)
}

// NewRootCommand constructs the Cobra command tree for the CLI.
func NewRootCommand(app AppContext) *cobra.Command {
	root, _ := newRootCommand(app)
	return root
}

func newRootCommand(app AppContext) (*cobra.Command, *executionState) {
	app = normalizeAppContext(app)
	state := &executionState{}
	lockPath := filepath.Join(app.WorkDir, contracts.DefaultLockFilePath)
	locker := lock.NewFileLock(lockPath, lock.Options{})

	root := &cobra.Command{
		Use:           "release-digest",
		Short:         "Publish a release digest from Slack announcements to Confluence",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&state.global.JSON, "json", false, "emit machine-readable JSON envelope output")
	root.PersistentFlags().StringVar(&state.global.ConfigPath, "config", "", "path to the YAML config file")

	root.AddCommand(newSyncCommand(app, state, locker))
	root.AddCommand(newPreviewCommand(app, state, locker))

	return root, state
}

func newSyncCommand(app AppContext, state *executionState, locker lock.Locker) *cobra.Command {
	var (
		dryRun       bool
		channel      string
		lookbackDays int
		pageID       string
	)

	cmd := &cobra.Command{
		Use:   string(contracts.CommandSync),
		Short: "Fetch release announcements and update the Confluence page",
		PreRun: func(cmd *cobra.Command, args []string) {
			state.commandName = string(contracts.CommandSync)
			state.dryRun = dryRun
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := middleware.WithCommandLock(contracts.CommandSync, locker, func(ctx context.Context) error {
				start := app.Now()
				report, runErr := commands.RunSync(ctx, commands.SyncOptions{
					ConfigPath:   state.global.ConfigPath,
					Channel:      channel,
					LookbackDays: lookbackDays,
					PageID:       pageID,
					DryRun:       dryRun,
					JSONLogs:     state.global.JSON,
					Now:          app.Now,
					Environment:  app.Environment,
					Source:       app.Source,
					Sink:         app.Sink,
				})
				return finishCommand(app, state, report, app.Now().Sub(start), runErr)
			})
			return runner(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "render the page body without writing to Confluence")
	cmd.Flags().StringVar(&channel, "channel", "", "Slack channel id to read")
	cmd.Flags().IntVar(&lookbackDays, "lookback-days", 0, "history window in days")
	cmd.Flags().StringVar(&pageID, "page-id", "", "Confluence page id to update")

	return cmd
}

func newPreviewCommand(app AppContext, state *executionState, locker lock.Locker) *cobra.Command {
	var (
		channel      string
		lookbackDays int
	)

	cmd := &cobra.Command{
		Use:   string(contracts.CommandPreview),
		Short: "Show the records a sync run would publish",
		PreRun: func(cmd *cobra.Command, args []string) {
			state.commandName = string(contracts.CommandPreview)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := middleware.WithCommandLock(contracts.CommandPreview, locker, func(ctx context.Context) error {
				start := app.Now()
				report, runErr := commands.RunPreview(ctx, commands.PreviewOptions{
					ConfigPath:   state.global.ConfigPath,
					Channel:      channel,
					LookbackDays: lookbackDays,
					JSONLogs:     state.global.JSON,
					Now:          app.Now,
					Environment:  app.Environment,
					Source:       app.Source,
				})
				return finishCommand(app, state, report, app.Now().Sub(start), runErr)
			})
			return runner(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Slack channel id to read")
	cmd.Flags().IntVar(&lookbackDays, "lookback-days", 0, "history window in days")

	return cmd
}

func finishCommand(app AppContext, state *executionState, report output.Report, duration time.Duration, runErr error) error {
	if err := output.Write(state.outputMode(), app.Stdout, app.Stderr, report, duration, runErr); err != nil {
		return err
	}
	if runErr != nil {
		return &codedExitError{Code: output.ResolveExitCode(runErr)}
	}
	return nil
}

func normalizeAppContext(app AppContext) AppContext {
	if app.Now == nil {
		app.Now = time.Now
	}
	if app.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			app.WorkDir = wd
		} else {
			app.WorkDir = "."
		}
	}
	return app
}

type codedExitError struct {
	Code contracts.ExitCode
}

func (err codedExitError) Error() string {
	return fmt.Sprintf("exit with code %d", err.Code)
}
