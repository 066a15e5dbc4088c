// Package coordinator fans a single search out to the requested boards,
// merges the results as they arrive, and partitions them by the caller's
// title filters. Worker failures are logged and never surface to the
// caller.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/jobharvest/jobharvest/internal/model"
	"github.com/jobharvest/jobharvest/internal/scraper"
	"github.com/jobharvest/jobharvest/internal/session"
)

// maxConcurrentBoards bounds the board fan-out.
const maxConcurrentBoards = 5

// Coordinator runs searches across boards. One instance is safe for
// concurrent use; each run builds fresh scrapers so cookie jars never
// carry over between searches.
type Coordinator struct {
	registry map[model.Board]scraper.Constructor
	factory  *session.Factory
	logger   *slog.Logger
}

// New creates a coordinator over the given scraper registry.
func New(registry map[model.Board]scraper.Constructor, factory *session.Factory, logger *slog.Logger) *Coordinator {
	return &Coordinator{registry: registry, factory: factory, logger: logger}
}

// boardResult carries one worker's outcome to the merge loop.
type boardResult struct {
	board model.Board
	jobs  []*model.JobPost
}

// ScrapeJobs queries every requested board concurrently and returns the
// title-filtered partition: filtered holds jobs matching any FilterByTitle
// pattern, remaining holds the rest. It never returns an error; a board
// that fails contributes nothing.
func (c *Coordinator) ScrapeJobs(ctx context.Context, in *model.ScraperInput) (filtered, remaining []*model.JobPost) {
	boards := in.Boards
	if len(boards) == 0 {
		boards = model.AllBoards
	}

	var (
		mu      sync.Mutex
		merged  []*model.JobPost
		fetched int
		blocked int
	)
	sem := make(chan struct{}, maxConcurrentBoards)
	var wg sync.WaitGroup

	for _, board := range boards {
		ctor, ok := c.registry[board]
		if !ok {
			c.logger.Warn("no scraper registered for board", "board", board)
			continue
		}
		wg.Add(1)
		go func(board model.Board, ctor scraper.Constructor) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			jobs, wasBlocked := c.runBoard(ctx, board, ctor, in)
			trimmed := len(jobs)
			if len(jobs) > in.ResultsWanted {
				jobs = jobs[:in.ResultsWanted]
			}
			mu.Lock()
			merged = append(merged, jobs...)
			fetched += trimmed
			if wasBlocked {
				blocked++
			}
			mu.Unlock()
		}(board, ctor)
	}
	wg.Wait()

	filtered, remaining = partitionByTitle(merged, in.FilterByTitle)
	c.logger.Info("scrape run complete",
		"boards", len(boards),
		"fetched", fetched,
		"kept", len(remaining),
		"filtered", len(filtered),
		"blocked_boards", blocked)
	return filtered, remaining
}

// runBoard executes one scraper and absorbs its failure modes. Blocked
// boards still contribute the partial page set collected before the block.
func (c *Coordinator) runBoard(ctx context.Context, board model.Board, ctor scraper.Constructor, in *model.ScraperInput) (jobs []*model.JobPost, blocked bool) {
	s := ctor(c.factory, c.logger)
	resp, err := s.Scrape(ctx, in)
	switch {
	case err == nil:
	case model.IsBlocked(err):
		blocked = true
		c.logger.Warn("board blocked us", "board", board, "error", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.logger.Info("board scrape cancelled", "board", board)
	default:
		c.logger.Error("board scrape failed", "board", board, "error", err)
	}
	if resp == nil {
		return nil, blocked
	}
	c.logger.Info("board finished", "board", board, "fetched", len(resp.Jobs))
	return resp.Jobs, blocked
}

// partitionByTitle splits jobs by the title patterns. Each pattern is
// tried as a case-insensitive regex; one that does not compile degrades to
// a case-insensitive substring match.
func partitionByTitle(jobs []*model.JobPost, patterns []string) (filtered, remaining []*model.JobPost) {
	if len(patterns) == 0 {
		return nil, jobs
	}

	type matcher func(title string) bool
	matchers := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile("(?i)" + p); err == nil {
			matchers = append(matchers, re.MatchString)
			continue
		}
		needle := strings.ToLower(p)
		matchers = append(matchers, func(title string) bool {
			return strings.Contains(strings.ToLower(title), needle)
		})
	}

	for _, job := range jobs {
		matched := false
		for _, m := range matchers {
			if m(job.Title) {
				matched = true
				break
			}
		}
		if matched {
			filtered = append(filtered, job)
		} else {
			remaining = append(remaining, job)
		}
	}
	return filtered, remaining
}
