package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"releasedigest/internal/release"
)

type fakeSource struct {
	history    []release.Message
	historyErr error
	replies    map[float64][]release.Message
	repliesErr error

	historyOldest float64
	repliesCalls  []float64
}

func (f *fakeSource) History(_ context.Context, _ string, oldest float64) ([]release.Message, error) {
	f.historyOldest = oldest
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeSource) Replies(_ context.Context, _ string, rootTS float64) ([]release.Message, error) {
	f.repliesCalls = append(f.repliesCalls, rootTS)
	if f.repliesErr != nil {
		return nil, f.repliesErr
	}
	return f.replies[rootTS], nil
}

func fixedNow() time.Time {
	return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func TestExecuteComputesLookbackWindow(t *testing.T) {
	source := &fakeSource{}
	pipeline := NewPipeline(source, Options{LookbackDays: 7, Now: fixedNow})

	if _, err := pipeline.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := float64(fixedNow().AddDate(0, 0, -7).Unix())
	if source.historyOldest != want {
		t.Fatalf("expected oldest %v, got %v", want, source.historyOldest)
	}
}

func TestExecuteBuildsMergesAndReduces(t *testing.T) {
	rootTS := 1700000100.0001
	source := &fakeSource{
		history: []release.Message{
			{
				Text: "Spades - Version: 2.5.3\nBuild: 481\nPlatform: Android\nStatus: In production",
				TS:   rootTS, ThreadTS: rootTS,
			},
			{Text: "random chatter, nothing here", TS: 1700000200.0001},
			{Text: "reply-only row, must be skipped", TS: 1700000300.0001, ThreadTS: rootTS},
		},
		replies: map[float64][]release.Message{
			rootTS: {
				{Text: "Rollout: 50%", TS: 1700000400.0001, ThreadTS: rootTS},
			},
		},
	}

	pipeline := NewPipeline(source, Options{LookbackDays: 7, Now: fixedNow})
	result, err := pipeline.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.MessagesFetched != 3 {
		t.Fatalf("expected 3 fetched messages, got %d", result.MessagesFetched)
	}
	if result.ThreadsMerged != 1 {
		t.Fatalf("expected 1 merged thread, got %d", result.ThreadsMerged)
	}
	if result.Dropped != 1 {
		t.Fatalf("expected 1 dropped record, got %d", result.Dropped)
	}
	if len(source.repliesCalls) != 1 || source.repliesCalls[0] != rootTS {
		t.Fatalf("expected one replies call for the root, got %v", source.repliesCalls)
	}

	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	record := result.Records[0]
	if record.App != "Spades" || record.Version != "2.5.3" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.Rollout != "50%" {
		t.Fatalf("expected reply rollout override, got %q", record.Rollout)
	}
}

func TestExecuteDeduplicatesByAppVersionKeepingNewest(t *testing.T) {
	source := &fakeSource{
		history: []release.Message{
			{Text: "Spades - Version: 2.5.3\nStatus: Ready for rollout", TS: 1700000100.0001},
			{Text: "Spades - Version: 2.5.3\nStatus: In production", TS: 1700000500.0001},
		},
	}

	pipeline := NewPipeline(source, Options{LookbackDays: 7, Now: fixedNow})
	result, err := pipeline.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record after dedup, got %d", len(result.Records))
	}
	if result.Records[0].Status != "In production" {
		t.Fatalf("expected the newer record to win, got %+v", result.Records[0])
	}
}

func TestExecutePropagatesSourceErrors(t *testing.T) {
	historyErr := errors.New("history unavailable")
	source := &fakeSource{historyErr: historyErr}

	pipeline := NewPipeline(source, Options{Now: fixedNow})
	if _, err := pipeline.Execute(context.Background()); !errors.Is(err, historyErr) {
		t.Fatalf("expected history error, got %v", err)
	}

	repliesErr := errors.New("replies unavailable")
	rootTS := 1700000100.0001
	source = &fakeSource{
		history: []release.Message{
			{Text: "Spades - Version: 2.5.3", TS: rootTS, ThreadTS: rootTS},
		},
		repliesErr: repliesErr,
	}
	pipeline = NewPipeline(source, Options{Now: fixedNow})
	if _, err := pipeline.Execute(context.Background()); !errors.Is(err, repliesErr) {
		t.Fatalf("expected replies error, got %v", err)
	}
}
