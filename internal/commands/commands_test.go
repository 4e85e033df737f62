package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"releasedigest/internal/config"
	"releasedigest/internal/confluence"
	"releasedigest/internal/release"
)

type fakeSource struct {
	history []release.Message
	replies map[float64][]release.Message
}

func (f *fakeSource) History(_ context.Context, _ string, _ float64) ([]release.Message, error) {
	return f.history, nil
}

func (f *fakeSource) Replies(_ context.Context, _ string, rootTS float64) ([]release.Message, error) {
	return f.replies[rootTS], nil
}

type fakeSink struct {
	page      confluence.Page
	getErr    error
	updateErr error

	updatedWith confluence.Page
	updatedBody string
	updates     int
}

func (f *fakeSink) GetPage(_ context.Context, _ string) (confluence.Page, error) {
	if f.getErr != nil {
		return confluence.Page{}, f.getErr
	}
	return f.page, nil
}

func (f *fakeSink) UpdatePage(_ context.Context, page confluence.Page, body string) (confluence.Page, error) {
	if f.updateErr != nil {
		return confluence.Page{}, f.updateErr
	}
	f.updatedWith = page
	f.updatedBody = body
	f.updates++
	updated := page
	updated.Version = page.Version + 1
	return updated, nil
}

func fullEnvironment() config.LookupFunc {
	values := map[string]string{
		config.EnvSlackToken:        "xoxb-1",
		config.EnvAtlassianEmail:    "bot@example.com",
		config.EnvAtlassianAPIToken: "token",
		config.EnvAtlassianCloudID:  "cloud-1",
		config.EnvConfluencePageID:  "12345",
	}
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func fixedNow() time.Time {
	return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func releaseHistory() []release.Message {
	return []release.Message{
		{Text: "Spades - Version: 2.5.3\nBuild: 481\nPlatform: Android\nStatus: In production", TS: 1700000100.0001},
	}
}

func TestRunSyncPublishesRenderedPage(t *testing.T) {
	source := &fakeSource{history: releaseHistory()}
	sink := &fakeSink{page: confluence.Page{ID: "12345", Title: "Mobile Releases", Version: 41}}

	report, err := RunSync(context.Background(), SyncOptions{
		Environment: fullEnvironment(),
		Now:         fixedNow,
		Source:      source,
		Sink:        sink,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	if sink.updates != 1 {
		t.Fatalf("expected one page update, got %d", sink.updates)
	}
	if sink.updatedWith.Version != 41 {
		t.Fatalf("expected update against version 41, got %d", sink.updatedWith.Version)
	}
	if report.PageVersion != 42 {
		t.Fatalf("expected reported version 42, got %d", report.PageVersion)
	}
	if !strings.Contains(sink.updatedBody, "### 1. Spades") {
		t.Fatalf("rendered body missing app section: %q", sink.updatedBody)
	}
	if report.Counts.Records != 1 || report.Records[0].App != "Spades" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRunSyncDryRunSkipsSink(t *testing.T) {
	source := &fakeSource{history: releaseHistory()}
	sink := &fakeSink{page: confluence.Page{ID: "12345", Version: 41}}

	report, err := RunSync(context.Background(), SyncOptions{
		DryRun:      true,
		Environment: fullEnvironment(),
		Now:         fixedNow,
		Source:      source,
		Sink:        sink,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	if sink.updates != 0 {
		t.Fatalf("dry run must not update the page, got %d updates", sink.updates)
	}
	if report.PageVersion != 0 {
		t.Fatalf("dry run must not report a page version, got %d", report.PageVersion)
	}
	if !strings.Contains(report.Markup, "# Mobile Releases - Last 7 Days") {
		t.Fatalf("dry run report missing markup: %q", report.Markup)
	}
}

func TestRunSyncRequiresAtlassianCredentials(t *testing.T) {
	environment := func(key string) (string, bool) {
		if key == config.EnvSlackToken {
			return "xoxb-1", true
		}
		return "", false
	}

	_, err := RunSync(context.Background(), SyncOptions{
		Environment: environment,
		Now:         fixedNow,
		Source:      &fakeSource{},
		Logger:      zap.NewNop(),
	})
	if !config.IsErrorCode(err, config.ErrorCodeMissingCredential) {
		t.Fatalf("expected missing_credential, got %v", err)
	}
}

func TestRunSyncDryRunNeedsOnlySlackToken(t *testing.T) {
	environment := func(key string) (string, bool) {
		if key == config.EnvSlackToken {
			return "xoxb-1", true
		}
		return "", false
	}

	_, err := RunSync(context.Background(), SyncOptions{
		DryRun:      true,
		Environment: environment,
		Now:         fixedNow,
		Source:      &fakeSource{},
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("expected dry run to work without atlassian credentials, got %v", err)
	}
}

func TestRunSyncPropagatesSinkErrors(t *testing.T) {
	conflict := &confluence.Error{Code: confluence.ErrorCodeVersionConflict}
	sink := &fakeSink{page: confluence.Page{ID: "12345", Version: 41}, updateErr: conflict}

	_, err := RunSync(context.Background(), SyncOptions{
		Environment: fullEnvironment(),
		Now:         fixedNow,
		Source:      &fakeSource{history: releaseHistory()},
		Sink:        sink,
		Logger:      zap.NewNop(),
	})
	if !confluence.IsErrorCode(err, confluence.ErrorCodeVersionConflict) {
		t.Fatalf("expected version conflict to propagate, got %v", err)
	}

	getErr := errors.New("page fetch failed")
	sink = &fakeSink{getErr: getErr}
	_, err = RunSync(context.Background(), SyncOptions{
		Environment: fullEnvironment(),
		Now:         fixedNow,
		Source:      &fakeSource{history: releaseHistory()},
		Sink:        sink,
		Logger:      zap.NewNop(),
	})
	if !errors.Is(err, getErr) {
		t.Fatalf("expected get error to propagate, got %v", err)
	}
}

func TestRunPreviewReportsRecordsWithoutSink(t *testing.T) {
	rootTS := 1700000100.0001
	source := &fakeSource{
		history: []release.Message{
			{Text: "Spades - Version: 2.5.3\nStatus: Ready for rollout", TS: rootTS, ThreadTS: rootTS},
		},
		replies: map[float64][]release.Message{
			rootTS: {{Text: "Status: In production", TS: rootTS + 100, ThreadTS: rootTS}},
		},
	}

	environment := func(key string) (string, bool) {
		if key == config.EnvSlackToken {
			return "xoxb-1", true
		}
		return "", false
	}

	report, err := RunPreview(context.Background(), PreviewOptions{
		Environment: environment,
		Now:         fixedNow,
		Source:      source,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("RunPreview failed: %v", err)
	}

	if report.CommandName != "preview" {
		t.Fatalf("unexpected command name %q", report.CommandName)
	}
	if report.Counts.Records != 1 || report.Counts.Threads != 1 {
		t.Fatalf("unexpected counts %+v", report.Counts)
	}
	if report.Records[0].Status != "In production" {
		t.Fatalf("expected reply status override, got %+v", report.Records[0])
	}
	if report.Markup != "" {
		t.Fatalf("preview must not render markup, got %q", report.Markup)
	}
}

func TestRunPreviewRequiresSlackToken(t *testing.T) {
	_, err := RunPreview(context.Background(), PreviewOptions{
		Environment: func(string) (string, bool) { return "", false },
		Now:         fixedNow,
		Source:      &fakeSource{},
		Logger:      zap.NewNop(),
	})
	if !config.IsErrorCode(err, config.ErrorCodeMissingCredential) {
		t.Fatalf("expected missing_credential, got %v", err)
	}
}
