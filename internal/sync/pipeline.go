package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"releasedigest/internal/contracts"
	"releasedigest/internal/extract"
	"releasedigest/internal/release"
)

// Source is the message feed the pipeline reads. The Slack client
// implements it; tests use an in-memory fake.
type Source interface {
	History(ctx context.Context, channel string, oldest float64) ([]release.Message, error)
	Replies(ctx context.Context, channel string, rootTS float64) ([]release.Message, error)
}

type Options struct {
	Channel      string
	LookbackDays int
	Rules        extract.Rules
	Now          func() time.Time
	Logger       *zap.Logger
}

// Result carries the reduced record set plus run counters for the output
// envelope.
type Result struct {
	Records         []release.Record
	MessagesFetched int
	ThreadsMerged   int
	Dropped         int
}

// Pipeline drives one extraction run: fetch the lookback window, build a
// record per standalone post or thread root, merge reply threads, then
// filter and reduce. All I/O goes through the Source; everything after the
// fetch is pure.
type Pipeline struct {
	source       Source
	channel      string
	lookbackDays int
	now          func() time.Time
	logger       *zap.Logger

	extractor *extract.Extractor
	merger    *extract.ReplyMerger
}

func NewPipeline(source Source, options Options) *Pipeline {
	channel := options.Channel
	if channel == "" {
		channel = contracts.DefaultChannelID
	}
	lookbackDays := options.LookbackDays
	if lookbackDays <= 0 {
		lookbackDays = contracts.DefaultLookbackDays
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rules := options.Rules
	if rules.IsZero() {
		rules = extract.DefaultRules()
	}

	return &Pipeline{
		source:       source,
		channel:      channel,
		lookbackDays: lookbackDays,
		now:          now,
		logger:       logger,
		extractor:    extract.NewExtractor(rules),
		merger:       extract.NewReplyMerger(rules),
	}
}

func (p *Pipeline) Execute(ctx context.Context) (Result, error) {
	oldest := float64(p.now().AddDate(0, 0, -p.lookbackDays).Unix())

	messages, err := p.source.History(ctx, p.channel, oldest)
	if err != nil {
		return Result{}, err
	}

	result := Result{MessagesFetched: len(messages)}
	p.logger.Debug("fetched channel history",
		zap.String("channel", p.channel),
		zap.Int("messages", len(messages)))

	records := make([]release.Record, 0, len(messages))
	for _, message := range messages {
		if message.IsReplyOnly() {
			continue
		}

		record := p.extractor.BuildRecord(message)

		if message.IsThreadRoot() {
			replies, repliesErr := p.source.Replies(ctx, p.channel, message.TS)
			if repliesErr != nil {
				return Result{}, repliesErr
			}
			if len(replies) > 0 {
				p.merger.Merge(&record, replies)
				result.ThreadsMerged++
			}
		}

		if !extract.Accept(record, p.extractor.Resolver()) {
			result.Dropped++
			p.logger.Debug("dropped record without substantive fields",
				zap.String("app", record.App),
				zap.Float64("ts", message.TS))
			continue
		}
		records = append(records, record)
	}

	result.Records = extract.Reduce(records)
	p.logger.Info("extraction run complete",
		zap.Int("messages", result.MessagesFetched),
		zap.Int("threads", result.ThreadsMerged),
		zap.Int("records", len(result.Records)),
		zap.Int("dropped", result.Dropped))
	return result, nil
}
