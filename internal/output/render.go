package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"releasedigest/internal/contracts"
)

func Write(mode contracts.OutputMode, stdout io.Writer, stderr io.Writer, report Report, duration time.Duration, fatalErr error) error {
	switch mode {
	case contracts.OutputModeJSON:
		env, err := BuildEnvelope(report, duration)
		if err != nil {
			return err
		}

		if err := json.NewEncoder(stdout).Encode(env); err != nil {
			return fmt.Errorf("failed to write JSON envelope: %w", err)
		}
		if fatalErr != nil {
			if _, err := fmt.Fprintln(stderr, FormatDiagnostic(fatalErr)); err != nil {
				return fmt.Errorf("failed to write diagnostics: %w", err)
			}
		}
		return nil
	case contracts.OutputModeHuman:
		if fatalErr != nil {
			if _, err := fmt.Fprintln(stderr, FormatDiagnostic(fatalErr)); err != nil {
				return fmt.Errorf("failed to write diagnostics: %w", err)
			}
			return nil
		}

		_, err := fmt.Fprintf(
			stdout,
			"%s: messages=%d threads=%d records=%d dropped=%d\n",
			report.CommandName,
			report.Counts.Messages,
			report.Counts.Threads,
			report.Counts.Records,
			report.Counts.Dropped,
		)
		if err != nil {
			return fmt.Errorf("failed to write human output: %w", err)
		}

		for _, record := range report.Records {
			if _, err := fmt.Fprintf(stdout, "- %s %s [%s] %s\n",
				record.App, orDash(record.Version), orDash(record.Status), orDash(record.Rollout)); err != nil {
				return fmt.Errorf("failed to write human output: %w", err)
			}
		}
		if report.PageVersion > 0 {
			if _, err := fmt.Fprintf(stdout, "page updated to version %d\n", report.PageVersion); err != nil {
				return fmt.Errorf("failed to write human output: %w", err)
			}
		}
		if report.Markup != "" {
			if _, err := fmt.Fprintln(stdout, report.Markup); err != nil {
				return fmt.Errorf("failed to write human output: %w", err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported output mode %q", mode)
	}
}

func FormatDiagnostic(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "failed to execute command"
	}
	if strings.HasPrefix(msg, "failed to ") {
		return msg
	}
	return "failed to execute command: " + msg
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
