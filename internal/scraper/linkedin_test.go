package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jobharvest/jobharvest/internal/model"
	"github.com/jobharvest/jobharvest/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFactory(t *testing.T) *session.Factory {
	t.Helper()
	return session.NewFactory(nil, 5*time.Second, testLogger())
}

func linkedInCard(id, title, company, location string) string {
	return fmt.Sprintf(`
		<div class="base-search-card">
			<a class="base-card__full-link" href="https://www.linkedin.com/jobs/view/%s-at-acme-%s?refId=x"></a>
			<h3 class="base-search-card__title">%s</h3>
			<h4 class="base-search-card__subtitle"><a href="https://www.linkedin.com/company/acme?trk=y">%s</a></h4>
			<span class="job-search-card__location">%s</span>
			<time datetime="2026-08-20"></time>
		</div>`, strings.ToLower(title), id, title, company, location)
}

func TestLinkedInScrape_PaginatesToBudget(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		start := r.URL.Query().Get("start")
		var cards []string
		switch start {
		case "0":
			cards = []string{
				linkedInCard("1001", "Backend Engineer", "Acme", "Austin, TX"),
				linkedInCard("1002", "Platform Engineer", "Acme", "Austin, TX"),
				linkedInCard("1003", "SRE", "Acme", "Dallas, TX"),
			}
		case "25":
			cards = []string{
				linkedInCard("2001", "Data Engineer", "Globex", "Remote, OR"),
				linkedInCard("2002", "ML Engineer", "Globex", "Portland, OR"),
				linkedInCard("2003", "Staff Engineer", "Globex", "Portland, OR"),
			}
		}
		fmt.Fprint(w, "<html><body>"+strings.Join(cards, "\n")+"</body></html>")
	}))
	defer srv.Close()

	s := NewLinkedIn(testFactory(t), testLogger())
	s.baseURL = srv.URL
	s.sleep = func(time.Duration) {}

	in := model.NewScraperInput()
	in.SearchTerm = "engineer"
	in.ResultsWanted = 5

	resp, err := s.Scrape(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Jobs) != 5 {
		t.Fatalf("expected 5 jobs, got %d", len(resp.Jobs))
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("expected 2 page requests, got %d", got)
	}

	j := resp.Jobs[0]
	if j.ID != "li-1001" {
		t.Errorf("expected id li-1001, got %s", j.ID)
	}
	if j.JobURL != srv.URL+"/jobs/view/1001" {
		t.Errorf("unexpected job URL: %s", j.JobURL)
	}
	if j.Title != "Backend Engineer" {
		t.Errorf("unexpected title: %s", j.Title)
	}
	if j.CompanyName != "Acme" {
		t.Errorf("unexpected company: %s", j.CompanyName)
	}
	if j.Location == nil || j.Location.City != "Austin" || j.Location.State != "TX" {
		t.Errorf("unexpected location: %+v", j.Location)
	}
	if j.DatePosted == nil || j.DatePosted.Day() != 20 {
		t.Errorf("unexpected date posted: %v", j.DatePosted)
	}
	for _, job := range resp.Jobs {
		if !strings.HasPrefix(job.ID, "li-") {
			t.Errorf("job id %q lacks board prefix", job.ID)
		}
	}
}

func TestLinkedInScrape_ZeroResultsWantedMakesNoRequests(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	s := NewLinkedIn(testFactory(t), testLogger())
	s.baseURL = srv.URL
	s.sleep = func(time.Duration) {}

	in := model.NewScraperInput()
	in.SearchTerm = "engineer"
	in.ResultsWanted = 0

	resp, err := s.Scrape(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(resp.Jobs))
	}
	if got := requests.Load(); got != 0 {
		t.Errorf("expected no requests, got %d", got)
	}
}

func TestLinkedInScrape_DedupesRepeatedCards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") != "0" {
			fmt.Fprint(w, "<html><body></body></html>")
			return
		}
		card := linkedInCard("42", "Engineer", "Acme", "Austin, TX")
		fmt.Fprint(w, "<html><body>"+card+card+"</body></html>")
	}))
	defer srv.Close()

	s := NewLinkedIn(testFactory(t), testLogger())
	s.baseURL = srv.URL
	s.sleep = func(time.Duration) {}

	in := model.NewScraperInput()
	in.SearchTerm = "engineer"
	in.ResultsWanted = 10

	resp, err := s.Scrape(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Jobs) != 1 {
		t.Fatalf("expected 1 job after dedupe, got %d", len(resp.Jobs))
	}
}

func TestLinkedInScrape_BlockedReturnsPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") == "0" {
			fmt.Fprint(w, "<html><body>"+linkedInCard("7", "Engineer", "Acme", "Austin, TX")+"</body></html>")
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewLinkedIn(testFactory(t), testLogger())
	s.baseURL = srv.URL
	s.sleep = func(time.Duration) {}

	in := model.NewScraperInput()
	in.SearchTerm = "engineer"
	in.ResultsWanted = 10

	resp, err := s.Scrape(context.Background(), in)
	if !model.IsBlocked(err) {
		t.Fatalf("expected blocked error, got %v", err)
	}
	if len(resp.Jobs) != 1 {
		t.Errorf("expected the partial page to survive, got %d jobs", len(resp.Jobs))
	}
}

func TestLinkedInSearchURL_Filters(t *testing.T) {
	s := NewLinkedIn(testFactory(t), testLogger())
	jt := model.JobTypeFullTime
	in := model.NewScraperInput()
	in.SearchTerm = "golang"
	in.Location = "Austin, TX"
	in.IsRemote = true
	in.JobType = &jt
	in.HoursOld = 24
	in.LinkedInCompanyIDs = []int{10, 20}

	u := s.searchURL(in, 25)
	for _, want := range []string{"keywords=golang", "f_WT=2", "f_JT=F", "f_TPR=r86400", "f_C=10%2C20", "start=25"} {
		if !strings.Contains(u, want) {
			t.Errorf("search URL missing %q: %s", want, u)
		}
	}
}
