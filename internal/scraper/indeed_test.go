package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jobharvest/jobharvest/internal/model"
)

const indeedMosaicPage = `<html><script>
window.mosaic.providerData["mosaic-provider-jobcards"] = {"metaData":{"mosaicProviderJobCardsModel":{"results":[
	{"jobkey":"abc","title":"Go Developer","company":"Initech","formattedLocation":"Austin, TX","pubDate":1755600000000,"remoteLocation":false},
	{"jobkey":"def","title":"Platform Engineer","company":"Initech","formattedLocation":"Remote","pubDate":1755600000000,"remoteLocation":false,
	 "extractedSalary":{"min":150000,"max":100000,"type":"yearly"}}
]}}};
</script></html>`

func indeedDetailPayload() string {
	return `{"data":{"jobData":{"results":[
		{"job":{
			"key":"abc",
			"description":{"html":"<p>Build <b>services</b> in Go. Contact jobs@initech.com</p>"},
			"location":{"city":"Austin","admin1Code":"TX","countryCode":"US","formatted":{"long":"Austin, TX"}},
			"compensation":{"baseSalary":{"unitOfWork":"YEAR","range":{"min":100000,"max":150000}},"currencyCode":"USD"},
			"attributes":[{"key":"x","label":"Full-time"},{"key":"y","label":"Work from home"}],
			"employer":{"name":"Initech Inc","relativeCompanyPageUrl":"/cmp/initech"},
			"recruit":{"viewJobUrl":"https://initech.example/careers/42"},
			"datePublished":1755600000000
		}},
		{"job":{"key":"def","description":{"html":""},"location":{},"compensation":{}}}
	]}}}`
}

func newIndeedFixture(t *testing.T) (*Indeed, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/m/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") == "0" {
			fmt.Fprint(w, indeedMosaicPage)
			return
		}
		fmt.Fprint(w, `<html><script>window.mosaic.providerData["mosaic-provider-jobcards"] = {"metaData":{"mosaicProviderJobCardsModel":{"results":[]}}};</script></html>`)
	})
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables struct {
				Keys []string `json:"keys"`
			} `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad graphql request: %v", err)
		}
		if len(req.Variables.Keys) != 2 {
			t.Errorf("expected 2 jobkeys, got %v", req.Variables.Keys)
		}
		if r.Header.Get("indeed-api-key") == "" {
			t.Error("missing api key header")
		}
		fmt.Fprint(w, indeedDetailPayload())
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s := NewIndeed(testFactory(t), testLogger())
	s.baseURL = srv.URL
	s.apiURL = srv.URL + "/graphql"
	return s, srv
}

func TestIndeedScrape_MergesCardAndDetail(t *testing.T) {
	s, srv := newIndeedFixture(t)

	in := model.NewScraperInput()
	in.SearchTerm = "golang"
	in.ResultsWanted = 10

	resp, err := s.Scrape(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(resp.Jobs))
	}

	j := resp.Jobs[0]
	if j.ID != "in-abc" {
		t.Errorf("expected id in-abc, got %s", j.ID)
	}
	if j.JobURL != srv.URL+"/viewjob?jk=abc" {
		t.Errorf("unexpected job URL: %s", j.JobURL)
	}
	if j.CompanyName != "Initech Inc" {
		t.Errorf("detail employer should win, got %s", j.CompanyName)
	}
	if j.JobURLDirect != "https://initech.example/careers/42" {
		t.Errorf("unexpected direct URL: %s", j.JobURLDirect)
	}
	if j.Location == nil || j.Location.City != "Austin" || j.Location.State != "TX" {
		t.Errorf("unexpected location: %+v", j.Location)
	}
	if j.Compensation == nil {
		t.Fatal("expected compensation from baseSalary")
	}
	if *j.Compensation.MinAmount != 100000 || *j.Compensation.MaxAmount != 150000 {
		t.Errorf("unexpected salary range: %d-%d", *j.Compensation.MinAmount, *j.Compensation.MaxAmount)
	}
	if j.Compensation.Interval != model.IntervalYearly {
		t.Errorf("unexpected interval: %s", j.Compensation.Interval)
	}
	if j.Compensation.Currency != "USD" {
		t.Errorf("unexpected currency: %s", j.Compensation.Currency)
	}
	if j.IsRemote == nil || !*j.IsRemote {
		t.Error("attribute label should mark the job remote")
	}
	if len(j.JobTypes) != 1 || j.JobTypes[0] != model.JobTypeFullTime {
		t.Errorf("unexpected job types: %v", j.JobTypes)
	}
	if len(j.Emails) != 1 || j.Emails[0] != "jobs@initech.com" {
		t.Errorf("expected extracted email, got %v", j.Emails)
	}
	if !strings.Contains(j.Description, "**services**") {
		t.Errorf("description not rendered as markdown: %q", j.Description)
	}
}

func TestIndeedScrape_CardSalarySwapIsNormalized(t *testing.T) {
	s, _ := newIndeedFixture(t)

	in := model.NewScraperInput()
	in.SearchTerm = "golang"
	in.ResultsWanted = 10

	resp, err := s.Scrape(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Second card has no detail salary and an inverted extracted range.
	j := resp.Jobs[1]
	if j.ID != "in-def" {
		t.Fatalf("expected in-def, got %s", j.ID)
	}
	if j.Compensation == nil {
		t.Fatal("expected compensation from extracted salary")
	}
	if *j.Compensation.MinAmount != 100000 || *j.Compensation.MaxAmount != 150000 {
		t.Errorf("inverted range not normalized: %d-%d", *j.Compensation.MinAmount, *j.Compensation.MaxAmount)
	}
	if j.IsRemote == nil || !*j.IsRemote {
		t.Error("formatted location should mark the job remote")
	}
}

func TestIndeedScrape_DetailFailureDegradesToCards(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/m/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") == "0" {
			fmt.Fprint(w, indeedMosaicPage)
			return
		}
		fmt.Fprint(w, `<html><script>window.mosaic.providerData["mosaic-provider-jobcards"] = {"metaData":{"mosaicProviderJobCardsModel":{"results":[]}}};</script></html>`)
	})
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewIndeed(testFactory(t), testLogger())
	s.baseURL = srv.URL
	s.apiURL = srv.URL + "/graphql"

	in := model.NewScraperInput()
	in.SearchTerm = "golang"
	in.ResultsWanted = 10

	resp, err := s.Scrape(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Jobs) != 2 {
		t.Fatalf("expected 2 card-only jobs, got %d", len(resp.Jobs))
	}
	if resp.Jobs[0].CompanyName != "Initech" {
		t.Errorf("expected card company, got %s", resp.Jobs[0].CompanyName)
	}
}

func TestIndeedSearchURL_FilterString(t *testing.T) {
	s := NewIndeed(testFactory(t), testLogger())
	jt := model.JobTypeFullTime
	in := model.NewScraperInput()
	in.SearchTerm = "golang"
	in.IsRemote = true
	in.JobType = &jt
	in.HoursOld = 48

	u := s.searchURL("https://www.indeed.com", in, 2)
	for _, want := range []string{"start=20", "sort=date", "fromage=2", "sc=0kf%3Aattr%28DSQF7%29jt%28fulltime%29%3B"} {
		if !strings.Contains(u, want) {
			t.Errorf("search URL missing %q: %s", want, u)
		}
	}
}
