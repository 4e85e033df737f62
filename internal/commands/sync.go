package commands

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"releasedigest/internal/config"
	"releasedigest/internal/confluence"
	"releasedigest/internal/contracts"
	"releasedigest/internal/logging"
	"releasedigest/internal/output"
	"releasedigest/internal/render"
	"releasedigest/internal/slack"
	syncpipe "releasedigest/internal/sync"
)

// Sink is the page store a sync run publishes to. The Confluence client
// implements it; tests use an in-memory fake.
type Sink interface {
	GetPage(ctx context.Context, pageID string) (confluence.Page, error)
	UpdatePage(ctx context.Context, page confluence.Page, body string) (confluence.Page, error)
}

type SyncOptions struct {
	ConfigPath   string
	Channel      string
	LookbackDays int
	PageID       string
	DryRun       bool
	JSONLogs     bool

	// Injection points for tests; nil selects the real implementation.
	Now         func() time.Time
	Environment config.LookupFunc
	Source      syncpipe.Source
	Sink        Sink
	Logger      *zap.Logger
}

// RunSync executes the full digest run: fetch, extract, render, publish.
// With DryRun the rendered markup goes into the report instead of the page.
func RunSync(ctx context.Context, options SyncOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandSync), DryRun: options.DryRun}

	resolved, err := config.Resolve(config.Overrides{
		ConfigPath:   options.ConfigPath,
		Channel:      options.Channel,
		LookbackDays: options.LookbackDays,
		PageID:       options.PageID,
	}, options.Environment)
	if err != nil {
		return report, fmt.Errorf("failed to load config: %w", err)
	}

	if options.DryRun {
		err = resolved.Credentials.ValidateForPreview()
	} else {
		err = resolved.Credentials.ValidateForSync(resolved.PageID)
	}
	if err != nil {
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

	markup := render.Page(result.Records, render.Options{
		LookbackDays: resolved.LookbackDays,
		Now:          now,
	})

	if options.DryRun {
		report.Markup = markup
		logger.Info("dry run, skipping page update",
			zap.String("page_id", resolved.PageID))
		return report, nil
	}

	sink := options.Sink
	if sink == nil {
		sink, err = confluence.NewClient(confluence.ClientOptions{
			CloudID:  resolved.Credentials.AtlassianCloudID,
			Email:    resolved.Credentials.AtlassianEmail,
			APIToken: resolved.Credentials.AtlassianAPIToken,
		})
		if err != nil {
			return report, fmt.Errorf("failed to initialize confluence client: %w", err)
		}
	}

	page, err := sink.GetPage(ctx, resolved.PageID)
	if err != nil {
		return report, err
	}

	updated, err := sink.UpdatePage(ctx, page, markup)
	if err != nil {
		return report, err
	}

	report.PageVersion = updated.Version
	logger.Info("page updated",
		zap.String("page_id", resolved.PageID),
		zap.Int("from_version", page.Version),
		zap.Int("to_version", updated.Version))
	return report, nil
}
