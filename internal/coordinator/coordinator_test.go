package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jobharvest/jobharvest/internal/model"
	"github.com/jobharvest/jobharvest/internal/scraper"
	"github.com/jobharvest/jobharvest/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScraper struct {
	jobs []*model.JobPost
	err  error
}

func (f *fakeScraper) Scrape(ctx context.Context, in *model.ScraperInput) (*model.JobResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.JobResponse{Jobs: f.jobs}, nil
}

func fakeConstructor(s model.Scraper) scraper.Constructor {
	return func(*session.Factory, *slog.Logger) model.Scraper { return s }
}

func makeJobs(board model.Board, titles ...string) []*model.JobPost {
	jobs := make([]*model.JobPost, 0, len(titles))
	for i, title := range titles {
		jobs = append(jobs, &model.JobPost{
			ID:     fmt.Sprintf("%s-%d", board.Prefix(), i),
			Title:  title,
			JobURL: fmt.Sprintf("https://example.com/%s/%d", board, i),
		})
	}
	return jobs
}

func newTestCoordinator(registry map[model.Board]scraper.Constructor) *Coordinator {
	factory := session.NewFactory(nil, time.Second, testLogger())
	return New(registry, factory, testLogger())
}

func TestScrapeJobs_MergesAllBoards(t *testing.T) {
	registry := map[model.Board]scraper.Constructor{
		model.BoardLinkedIn: fakeConstructor(&fakeScraper{jobs: makeJobs(model.BoardLinkedIn, "Go Dev", "Backend Dev")}),
		model.BoardIndeed:   fakeConstructor(&fakeScraper{jobs: makeJobs(model.BoardIndeed, "Platform Dev")}),
	}
	c := newTestCoordinator(registry)

	in := model.NewScraperInput()
	in.Boards = []model.Board{model.BoardLinkedIn, model.BoardIndeed}
	in.ResultsWanted = 10

	filtered, remaining := c.ScrapeJobs(context.Background(), in)
	if len(filtered) != 0 {
		t.Errorf("no filters given, expected empty filtered partition, got %d", len(filtered))
	}
	if len(remaining) != 3 {
		t.Fatalf("expected 3 merged jobs, got %d", len(remaining))
	}
}

func TestScrapeJobs_TitleFilterPartition(t *testing.T) {
	registry := map[model.Board]scraper.Constructor{
		model.BoardLinkedIn: fakeConstructor(&fakeScraper{jobs: makeJobs(model.BoardLinkedIn,
			"Senior Go Engineer", "Sales Manager", "Staff Engineer", "sales representative")}),
	}
	c := newTestCoordinator(registry)

	in := model.NewScraperInput()
	in.Boards = []model.Board{model.BoardLinkedIn}
	in.ResultsWanted = 10
	in.FilterByTitle = []string{"sales"}

	filtered, remaining := c.ScrapeJobs(context.Background(), in)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 title-filtered jobs, got %d", len(filtered))
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 remaining jobs, got %d", len(remaining))
	}
	for _, job := range filtered {
		if job.Title != "Sales Manager" && job.Title != "sales representative" {
			t.Errorf("wrong job diverted: %s", job.Title)
		}
	}
}

func TestScrapeJobs_InvalidPatternDegradesToSubstring(t *testing.T) {
	jobs := makeJobs(model.BoardLinkedIn, "C++ Developer", "Go Developer")
	registry := map[model.Board]scraper.Constructor{
		model.BoardLinkedIn: fakeConstructor(&fakeScraper{jobs: jobs}),
	}
	c := newTestCoordinator(registry)

	in := model.NewScraperInput()
	in.Boards = []model.Board{model.BoardLinkedIn}
	in.ResultsWanted = 10
	in.FilterByTitle = []string{"c++"} // not a valid regex

	filtered, remaining := c.ScrapeJobs(context.Background(), in)
	if len(filtered) != 1 || filtered[0].Title != "C++ Developer" {
		t.Fatalf("substring fallback failed: filtered=%v", titles(filtered))
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining, got %d", len(remaining))
	}
}

func TestScrapeJobs_WorkerFailureIsIsolated(t *testing.T) {
	registry := map[model.Board]scraper.Constructor{
		model.BoardLinkedIn: fakeConstructor(&fakeScraper{err: errors.New("board exploded")}),
		model.BoardIndeed:   fakeConstructor(&fakeScraper{jobs: makeJobs(model.BoardIndeed, "Survivor")}),
	}
	c := newTestCoordinator(registry)

	in := model.NewScraperInput()
	in.Boards = []model.Board{model.BoardLinkedIn, model.BoardIndeed}
	in.ResultsWanted = 10

	_, remaining := c.ScrapeJobs(context.Background(), in)
	if len(remaining) != 1 || remaining[0].Title != "Survivor" {
		t.Fatalf("healthy board lost to a failing one: %v", titles(remaining))
	}
}

func TestScrapeJobs_PerBoardTrim(t *testing.T) {
	registry := map[model.Board]scraper.Constructor{
		model.BoardLinkedIn: fakeConstructor(&fakeScraper{jobs: makeJobs(model.BoardLinkedIn, "a", "b", "c", "d", "e")}),
	}
	c := newTestCoordinator(registry)

	in := model.NewScraperInput()
	in.Boards = []model.Board{model.BoardLinkedIn}
	in.ResultsWanted = 3

	_, remaining := c.ScrapeJobs(context.Background(), in)
	if len(remaining) != 3 {
		t.Fatalf("expected trim to 3, got %d", len(remaining))
	}
}

func TestScrapeJobs_UnregisteredBoardIsSkipped(t *testing.T) {
	registry := map[model.Board]scraper.Constructor{}
	c := newTestCoordinator(registry)

	in := model.NewScraperInput()
	in.Boards = []model.Board{model.BoardGoogle}
	in.ResultsWanted = 10

	filtered, remaining := c.ScrapeJobs(context.Background(), in)
	if len(filtered) != 0 || len(remaining) != 0 {
		t.Fatal("expected empty result for an unregistered board")
	}
}

// blockingScraper waits for cancellation and surrenders with nothing.
type blockingScraper struct{}

func (blockingScraper) Scrape(ctx context.Context, _ *model.ScraperInput) (*model.JobResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestScrapeJobs_CancellationKeepsCompletedBoards(t *testing.T) {
	registry := map[model.Board]scraper.Constructor{
		model.BoardLinkedIn: fakeConstructor(&fakeScraper{jobs: makeJobs(model.BoardLinkedIn, "Go Dev")}),
		model.BoardIndeed:   fakeConstructor(blockingScraper{}),
	}
	c := newTestCoordinator(registry)

	in := model.NewScraperInput()
	in.Boards = []model.Board{model.BoardLinkedIn, model.BoardIndeed}
	in.ResultsWanted = 10

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, remaining := c.ScrapeJobs(ctx, in)
	if len(remaining) != 1 || remaining[0].Title != "Go Dev" {
		t.Fatalf("completed board should survive cancellation, got %v", titles(remaining))
	}
}

func titles(jobs []*model.JobPost) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.Title
	}
	return out
}
