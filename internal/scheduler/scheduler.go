// Package scheduler drives one tenant's crawl queue to completion, the Go
// counterpart to original_source/services/queue_processor.rs's start loop,
// extended to check the crawling_enabled setting before each iteration
// (spec §4.7).
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/lalasearch/crawlcore/internal/model"
)

// queueSource is the subset of *tenantdb.Client the scheduler needs,
// narrowed to an interface the way the teacher's interfaces.go separates
// Datastore from its Cassandra implementation so tests can substitute fakes.
type queueSource interface {
	IsCrawlingEnabled(defaultValue bool) (bool, error)
	NextQueueEntry() (*model.CrawlQueueEntry, error)
}

// processor runs the pipeline against one leased entry.
type processor interface {
	Process(ctx context.Context, entry *model.CrawlQueueEntry) error
}

// Scheduler is bound to one tenant DB client and its pipeline.
type Scheduler struct {
	DB                     queueSource
	Pipeline               processor
	PollInterval           time.Duration
	DefaultCrawlingEnabled bool
	TenantID               string
	Log                    *slog.Logger
}

// Run blocks, driving the per-tenant queue until ctx is canceled (spec
// §4.7). Each iteration: check crawling_enabled, pop one entry, process it.
// A processed entry causes an immediate re-iteration with no sleep so a
// backlog drains as fast as serial fetches allow; an empty queue or a
// disabled tenant sleeps PollInterval.
func (s *Scheduler) Run(ctx context.Context) {
	log := s.Log.With("tenant_id", s.TenantID)
	log.Info("scheduler started")

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopping")
			return
		default:
		}

		processed, err := s.tick(ctx)
		if err != nil {
			log.Error("scheduler iteration failed", "error", err)
			sleep(ctx, s.PollInterval)
			continue
		}
		if !processed {
			sleep(ctx, s.PollInterval)
		}
	}
}

// tick runs at most one full pipeline.Process call, returning whether an
// entry was found and processed.
func (s *Scheduler) tick(ctx context.Context) (bool, error) {
	enabled, err := s.DB.IsCrawlingEnabled(s.DefaultCrawlingEnabled)
	if err != nil {
		return false, err
	}
	if !enabled {
		return false, nil
	}

	entry, err := s.DB.NextQueueEntry()
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}

	if err := s.Pipeline.Process(ctx, entry); err != nil {
		return false, err
	}
	return true, nil
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
