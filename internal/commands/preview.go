package commands

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"releasedigest/internal/config"
	"releasedigest/internal/contracts"
	"releasedigest/internal/logging"
	"releasedigest/internal/output"
	"releasedigest/internal/slack"
	syncpipe "releasedigest/internal/sync"
)

type PreviewOptions struct {
	ConfigPath   string
	Channel      string
	LookbackDays int
	JSONLogs     bool

	Now         func() time.Time
	Environment config.LookupFunc
	Source      syncpipe.Source
	Logger      *zap.Logger
}

// RunPreview runs fetch and extraction only and reports the accepted
// records. It never talks to Confluence, so Atlassian credentials are not
// required.
func RunPreview(ctx context.Context, options PreviewOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandPreview)}

	resolved, err := config.Resolve(config.Overrides{
		ConfigPath:   options.ConfigPath,
		Channel:      options.Channel,
		LookbackDays: options.LookbackDays,
	}, options.Environment)
	if err != nil {
		return report, fmt.Errorf("failed to load config: %w", err)
	}

	if err := resolved.Credentials.ValidateForPreview(); err != nil {
		return report, err
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.New(logging.Options{Level: resolved.LogLevel, JSON: options.JSONLogs})
		defer func() { _ = logger.Sync() }()
	}

	now := options.Now
	if now == nil {
		now = time.Now
	}

	source := options.Source
	if source == nil {
		source, err = slack.NewClient(slack.ClientOptions{
			Token:     resolved.Credentials.SlackToken,
			PageLimit: resolved.PageLimit,
		})
		if err != nil {
			return report, fmt.Errorf("failed to initialize slack client: %w", err)
		}
	}

	pipeline := syncpipe.NewPipeline(source, syncpipe.Options{
		Channel:      resolved.Channel,
		LookbackDays: resolved.LookbackDays,
		Rules:        resolved.Rules,
		Now:          now,
		Logger:       logger,
	})

	result, err := pipeline.Execute(ctx)
	if err != nil {
		return report, err
	}

	report.Counts = contracts.RunCounts{
		Messages: result.MessagesFetched,
		Threads:  result.ThreadsMerged,
		Records:  len(result.Records),
		Dropped:  result.Dropped,
	}
	report.Records = output.Summarize(result.Records)
	logger.Debug("preview complete", zap.Int("records", len(result.Records)))
	return report, nil
}
