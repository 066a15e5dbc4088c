// Package scheduler runs the saved searches on a cron cadence. A tick that
// is still running when the next one fires is skipped, not stacked.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/jobharvest/jobharvest/internal/config"
	"github.com/jobharvest/jobharvest/internal/coordinator"
	"github.com/jobharvest/jobharvest/internal/dispatch"
	"github.com/jobharvest/jobharvest/internal/model"
)

// Scheduler owns the cron loop tying the pipeline stages together.
type Scheduler struct {
	coord      *coordinator.Coordinator
	store      model.JobStore
	dispatcher *dispatch.Dispatcher
	searches   []config.SearchConfig
	position   string
	cron       *cron.Cron
	logger     *slog.Logger
}

// New builds a scheduler over the pipeline components.
func New(coord *coordinator.Coordinator, store model.JobStore, dispatcher *dispatch.Dispatcher,
	searches []config.SearchConfig, position string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		coord:      coord,
		store:      store,
		dispatcher: dispatcher,
		searches:   searches,
		position:   position,
		logger:     logger,
	}
}

// Start registers the tick on spec and starts the cron loop. The returned
// stop function waits for an in-flight tick to finish.
func (s *Scheduler) Start(ctx context.Context, spec string) (stop func(), err error) {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))
	if _, err := c.AddFunc(spec, func() { s.RunAll(ctx) }); err != nil {
		return nil, err
	}
	c.Start()
	s.cron = c
	s.logger.Info("scheduler started", "cron", spec, "searches", len(s.searches))

	return func() { <-c.Stop().Done() }, nil
}

// RunAll executes every saved search once: scrape, partition against the
// store, dispatch what is new. A search that fails to convert or persist
// is logged and the rest still run.
func (s *Scheduler) RunAll(ctx context.Context) {
	for i, search := range s.searches {
		if ctx.Err() != nil {
			return
		}
		in, err := search.ToInput(s.position)
		if err != nil {
			s.logger.Error("saved search is invalid", "search", i, "error", err)
			continue
		}
		s.runOne(ctx, i, in)
	}
}

func (s *Scheduler) runOne(ctx context.Context, idx int, in *model.ScraperInput) {
	filtered, remaining := s.coord.ScrapeJobs(ctx, in)

	seen, newJobs, err := s.store.InsertManyIfNotFound(ctx, remaining)
	if err != nil {
		s.logger.Error("persisting scrape results failed", "search", idx, "error", err)
		return
	}
	_, newFiltered, err := s.store.InsertManyIfNotFound(ctx, filtered)
	if err != nil {
		s.logger.Error("persisting filtered results failed", "search", idx, "error", err)
	}

	s.dispatcher.DispatchNew(ctx, newJobs)
	s.dispatcher.DispatchFiltered(ctx, newFiltered)

	s.logger.Info("search complete",
		"search", idx,
		"term", in.SearchTerm,
		"scraped", len(filtered)+len(remaining),
		"seen", len(seen),
		"new", len(newJobs),
		"filtered_new", len(newFiltered))
}
