package usecase

import (
	"context"
	"sync"
	"time"

	"TuxLetter/internal/domain"
	"TuxLetter/internal/ports"
)

type fakeSource struct {
	batch      domain.Batch
	bots       int
	persistErr error
	scraped    int
	persisted  int
	reloaded   int
}

func (f *fakeSource) ScrapeAll(context.Context) domain.Batch {
	f.scraped++
	return f.batch
}

func (f *fakeSource) BotVerificationCount() int { return f.bots }

func (f *fakeSource) CacheStats() ports.CacheStats {
	return ports.CacheStats{TotalLinks: 10, Exists: true, Location: "/tmp/seen_links.json"}
}

func (f *fakeSource) ReloadCache() { f.reloaded++ }

func (f *fakeSource) PersistCache() error {
	f.persisted++
	return f.persistErr
}

type fakeSynthesizer struct {
	down  bool
	calls int
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, items []domain.Item) domain.Synthesis {
	f.calls++
	return domain.Synthesis{Text: "synthesized", References: domain.Links(items)}
}

func (f *fakeSynthesizer) TestConnection(context.Context) bool { return !f.down }

type fakeNotifier struct {
	down    bool
	sendErr error
	sent    []domain.Digest
}

func (f *fakeNotifier) Send(_ context.Context, digest domain.Digest) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, digest)
	return nil
}

func (f *fakeNotifier) TestConnection(context.Context) bool { return !f.down }

type fakeArchive struct {
	err   error
	runID string
	items []domain.Item
}

func (f *fakeArchive) Record(_ context.Context, runID string, items []domain.Item) error {
	f.runID = runID
	f.items = items
	return f.err
}

type fakeDriver struct {
	mu      sync.Mutex
	job     func(time.Time)
	stopped bool
}

func (f *fakeDriver) Start(_ context.Context, job func(time.Time)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.job = job
	return nil
}

func (f *fakeDriver) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeDriver) fire(at time.Time) {
	f.mu.Lock()
	job := f.job
	f.mu.Unlock()
	job(at)
}
