package ports

import (
	"context"
	"time"

	"TuxLetter/internal/domain"
)

// CacheStats describes the persisted link cache.
type CacheStats struct {
	TotalLinks int
	Exists     bool
	Location   string
}

// LinkCache remembers links that earlier runs already processed.
type LinkCache interface {
	IsNew(link string) bool
	MarkAsSeen(link string)
	MarkMultipleAsSeen(links []string)
	FilterNewLinks(links []string) []string
	// Claim filters new links, caps them to limit and marks them seen in one
	// step. It also returns how many links were new before the cap.
	Claim(links []string, limit int) ([]string, int)
	// Reload replaces the in-memory set with the persisted one.
	Reload()
	Persist() error
	Clear() error
	Delete() error
	Stats() CacheStats
}

// ItemSource runs the configured scrapers and returns a deduplicated batch.
type ItemSource interface {
	ScrapeAll(ctx context.Context) domain.Batch
	BotVerificationCount() int
	CacheStats() CacheStats
	// ReloadCache discards links claimed since the last persist.
	ReloadCache()
	PersistCache() error
}

// Synthesizer turns a batch of items into digest prose.
type Synthesizer interface {
	Synthesize(ctx context.Context, items []domain.Item) domain.Synthesis
	TestConnection(ctx context.Context) bool
}

// Notifier delivers a digest to the recipient.
type Notifier interface {
	Send(ctx context.Context, digest domain.Digest) error
	TestConnection(ctx context.Context) bool
}

// ItemArchive keeps a history of delivered items.
type ItemArchive interface {
	Record(ctx context.Context, runID string, items []domain.Item) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
