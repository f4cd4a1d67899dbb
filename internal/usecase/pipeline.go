package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"TuxLetter/internal/domain"
	"TuxLetter/internal/metrics"
	"TuxLetter/internal/ports"
)

// NothingNewText is delivered when a run finds no new items.
const NothingNewText = "No new items found today."

var (
	// ErrSynthesisUnreachable means the pre-flight check of the language model failed.
	ErrSynthesisUnreachable = errors.New("synthesis service unreachable")
	// ErrNotifierUnreachable means the pre-flight check of the notification channel failed.
	ErrNotifierUnreachable = errors.New("notification channel unreachable")
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source      ports.ItemSource
	Synthesizer ports.Synthesizer
	Notifier    ports.Notifier
	// Archive is optional.
	Archive  ports.ItemArchive
	Metrics  *metrics.Metrics
	Location *time.Location
	Logger   *slog.Logger
}

// Pipeline implements one digest run: scrape, synthesize, notify, persist.
type Pipeline struct {
	source      ports.ItemSource
	synthesizer ports.Synthesizer
	notifier    ports.Notifier
	archive     ports.ItemArchive
	metrics     *metrics.Metrics
	location    *time.Location
	logger      *slog.Logger
	newRunID    func() string
}

// RunReport summarizes a finished run.
type RunReport struct {
	RunID         string
	Items         int
	Counts        []domain.SourceCount
	BotChallenges int
	Empty         bool
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return &Pipeline{
		source:      deps.Source,
		synthesizer: deps.Synthesizer,
		notifier:    deps.Notifier,
		archive:     deps.Archive,
		metrics:     deps.Metrics,
		location:    loc,
		logger:      log,
		newRunID:    uuid.NewString,
	}
}

// Run executes the whole workflow once for day. Pre-flight and delivery
// failures are returned; everything else degrades and is logged.
func (p *Pipeline) Run(ctx context.Context, day time.Time) (report RunReport, err error) {
	if p.source == nil || p.synthesizer == nil || p.notifier == nil {
		return RunReport{}, errors.New("pipeline is not fully wired")
	}

	started := time.Now()
	report.RunID = p.newRunID()
	log := p.logger.With("run_id", report.RunID)

	defer func() {
		outcome := metrics.OutcomeDelivered
		switch {
		case err != nil:
			outcome = metrics.OutcomeFailed
			log.Error("run failed", "error", err, "detail", fmt.Sprintf("%+v", err))
		case report.Empty:
			outcome = metrics.OutcomeEmpty
		}
		p.metrics.ObserveRun(outcome, time.Since(started), p.source.CacheStats().TotalLinks)
	}()

	// drop claims left by an earlier run that never persisted
	p.source.ReloadCache()
	stats := p.source.CacheStats()
	log.Info("run started",
		"day", day.In(p.location).Format(time.DateOnly),
		"cached_links", stats.TotalLinks,
		"cache_exists", stats.Exists,
		"cache_file", stats.Location)

	if !p.synthesizer.TestConnection(ctx) {
		return report, ErrSynthesisUnreachable
	}
	if !p.notifier.TestConnection(ctx) {
		return report, ErrNotifierUnreachable
	}

	batch := p.source.ScrapeAll(ctx)
	report.Items = len(batch.Items)
	report.Counts = batch.Counts
	report.BotChallenges = p.source.BotVerificationCount()

	digest := domain.Digest{
		Counts:        batch.Counts,
		BotChallenges: report.BotChallenges,
		TotalItems:    len(batch.Items),
		Date:          day.In(p.location),
	}

	if batch.Empty() {
		report.Empty = true
		log.Info("no new items, sending empty digest")
		digest.Text = NothingNewText
		digest.References = []string{}
		if err := p.notifier.Send(ctx, digest); err != nil {
			return report, fmt.Errorf("send empty digest: %w", err)
		}
		log.Info("run finished", "items", 0, "took", time.Since(started).Round(time.Millisecond))
		return report, nil
	}

	for _, item := range batch.Items {
		log.Debug("item preview",
			"source", item.Source,
			"type", item.Type,
			"title", item.Title,
			"author", item.Author,
			"body", preview(item.Body, 100))
	}

	synthesis := p.synthesizer.Synthesize(ctx, batch.Items)
	digest.Text = synthesis.Text
	digest.References = synthesis.References

	if err := p.notifier.Send(ctx, digest); err != nil {
		return report, fmt.Errorf("send digest: %w", err)
	}

	if err := p.source.PersistCache(); err != nil {
		log.Error("cache persist failed, links will be offered again", "error", err)
	}

	if p.archive != nil {
		if err := p.archive.Record(ctx, report.RunID, batch.Items); err != nil {
			log.Warn("archive record failed", "error", err)
		}
	}

	log.Info("run finished",
		"items", report.Items,
		"collected", batch.Collected,
		"references", len(digest.References),
		"bot_challenges", report.BotChallenges,
		"took", time.Since(started).Round(time.Millisecond))
	return report, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
