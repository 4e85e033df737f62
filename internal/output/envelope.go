package output

import (
	"fmt"
	"time"

	"releasedigest/internal/contracts"
	"releasedigest/internal/release"
)

// Report is command-level output data that can be rendered in human or JSON mode.
type Report struct {
	CommandName string
	DryRun      bool
	Counts      contracts.RunCounts
	Records     []contracts.RecordSummary
	PageVersion int
	Markup      string
}

// Summarize maps pipeline records onto the per-record report lines.
func Summarize(records []release.Record) []contracts.RecordSummary {
	summaries := make([]contracts.RecordSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, contracts.RecordSummary{
			App:       record.App,
			Version:   record.Version,
			Status:    record.Status,
			Rollout:   record.Rollout,
			Published: record.Published,
		})
	}
	return summaries
}

func BuildEnvelope(report Report, duration time.Duration) (contracts.CommandEnvelope, error) {
	env := contracts.CommandEnvelope{
		EnvelopeVersion: contracts.JSONEnvelopeVersionV1,
		Command: contracts.CommandMeta{
			Name:       report.CommandName,
			DurationMS: duration.Milliseconds(),
			DryRun:     report.DryRun,
		},
		Counts:      report.Counts,
		Records:     report.Records,
		PageVersion: report.PageVersion,
		Markup:      report.Markup,
	}

	if err := contracts.ValidateEnvelopeBasics(env); err != nil {
		return contracts.CommandEnvelope{}, fmt.Errorf("failed to build command envelope: %w", err)
	}

	return env, nil
}

func ResolveExitCode(fatalErr error) contracts.ExitCode {
	return contracts.ResolveExitCode(fatalErr != nil)
}
