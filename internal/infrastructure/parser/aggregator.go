package parser

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"TuxLetter/internal/domain"
	"TuxLetter/internal/metrics"
	"TuxLetter/internal/ports"
	"TuxLetter/internal/scanner"
)

// AggregatorDeps wires an Aggregator.
type AggregatorDeps struct {
	Registry *scanner.Registry
	Cache    ports.LinkCache
	// Concurrency bounds how many scanners run at once. 0 or 1 runs them in turn.
	Concurrency int
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Aggregator runs the registered scanners and merges their output into one
// batch without duplicate links.
type Aggregator struct {
	registry    *scanner.Registry
	cache       ports.LinkCache
	concurrency int
	metrics     *metrics.Metrics
	logger      *slog.Logger

	botChallenges atomic.Int64
}

var _ ports.ItemSource = (*Aggregator)(nil)

// NewAggregator builds an aggregator over the registry.
func NewAggregator(deps AggregatorDeps) *Aggregator {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	registry := deps.Registry
	if registry == nil {
		registry = scanner.NewRegistry()
	}
	return &Aggregator{
		registry:    registry,
		cache:       deps.Cache,
		concurrency: deps.Concurrency,
		metrics:     deps.Metrics,
		logger:      log,
	}
}

// ScrapeAll runs every registered scanner.
func (a *Aggregator) ScrapeAll(ctx context.Context) domain.Batch {
	return a.scrape(ctx, a.registry.All())
}

// ScrapeSpecific runs the named scanners in the order given. Unknown names
// are logged and skipped.
func (a *Aggregator) ScrapeSpecific(ctx context.Context, names []string) domain.Batch {
	selected := make([]scanner.Scanner, 0, len(names))
	for _, name := range names {
		sc, err := a.registry.Resolve(name)
		if err != nil {
			a.logger.Warn("scanner not found", "scanner", name, "available", a.registry.Names())
			continue
		}
		selected = append(selected, sc)
	}
	return a.scrape(ctx, selected)
}

func (a *Aggregator) scrape(ctx context.Context, scanners []scanner.Scanner) domain.Batch {
	started := time.Now()
	a.logger.Info("scraping started", "scanners", len(scanners), "concurrency", max(a.concurrency, 1))

	results := make([]scanner.Result, len(scanners))
	if a.concurrency <= 1 {
		for i, sc := range scanners {
			results[i] = a.run(ctx, sc)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(a.concurrency)
		for i, sc := range scanners {
			g.Go(func() error {
				results[i] = a.run(ctx, sc)
				return nil
			})
		}
		_ = g.Wait()
	}

	batch := merge(scanners, results)
	for _, count := range batch.Counts {
		a.metrics.ObserveScan(count.Source, count.Items, 0)
	}

	a.logger.Info("scraping finished",
		"items", len(batch.Items),
		"collected", batch.Collected,
		"duplicates", batch.Collected-len(batch.Items),
		"bot_challenges", a.BotVerificationCount(),
		"took", time.Since(started).Round(time.Millisecond))
	for _, count := range batch.Counts {
		a.logger.Info("source summary", "source", count.Source, "items", count.Items)
	}
	return batch
}

// run executes one scanner. Errors and panics become an empty result.
func (a *Aggregator) run(ctx context.Context, sc scanner.Scanner) (res scanner.Result) {
	name := sc.Name()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("scanner panicked", "scanner", name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			a.metrics.ScannerFailed(name)
			res = scanner.Result{}
		}
	}()

	a.logger.Info("running scanner", "scanner", name)
	result, err := sc.Scan(ctx)
	if result.BotChallenges > 0 {
		a.botChallenges.Add(int64(result.BotChallenges))
		a.metrics.ObserveScan(name, 0, result.BotChallenges)
	}
	if err != nil {
		a.logger.Error("scanner failed", "scanner", name, "error", err)
		a.metrics.ScannerFailed(name)
		return scanner.Result{BotChallenges: result.BotChallenges}
	}

	for i := range result.Items {
		if result.Items[i].Source == "" {
			result.Items[i].Source = name
		}
	}
	a.logger.Info("scanner finished", "scanner", name, "items", len(result.Items))
	return result
}

// merge concatenates results in scanner order and drops repeated links,
// keeping the first occurrence.
func merge(scanners []scanner.Scanner, results []scanner.Result) domain.Batch {
	batch := domain.Batch{Counts: make([]domain.SourceCount, 0, len(scanners))}
	seen := make(map[string]struct{})
	for i, result := range results {
		kept := 0
		batch.Collected += len(result.Items)
		for _, item := range result.Items {
			if _, dup := seen[item.Link]; dup {
				continue
			}
			seen[item.Link] = struct{}{}
			batch.Items = append(batch.Items, item)
			kept++
		}
		batch.Counts = append(batch.Counts, domain.SourceCount{Source: scanners[i].Name(), Items: kept})
	}
	return batch
}

// BotVerificationCount returns the anti-bot pages met since the process started.
func (a *Aggregator) BotVerificationCount() int {
	return int(a.botChallenges.Load())
}

// CacheStats reports the shared link cache.
func (a *Aggregator) CacheStats() ports.CacheStats {
	if a.cache == nil {
		return ports.CacheStats{}
	}
	return a.cache.Stats()
}

// ClearCache forgets every seen link.
func (a *Aggregator) ClearCache() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Clear()
}

// ReloadCache rereads the shared link cache from disk.
func (a *Aggregator) ReloadCache() {
	if a.cache != nil {
		a.cache.Reload()
	}
}

// PersistCache writes the shared link cache to disk.
func (a *Aggregator) PersistCache() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Persist()
}

// SourceNames lists the registered scanners.
func (a *Aggregator) SourceNames() []string {
	return a.registry.Names()
}
