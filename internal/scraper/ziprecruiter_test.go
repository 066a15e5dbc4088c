package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jobharvest/jobharvest/internal/model"
)

const zipVariablesPage = `<html><script id="js_variables">{
	"jobList": [
		{"ListingKey":"k1","Title":"Go Engineer","OrgName":"Hooli","City":"Denver","State":"CO","Country":"USA",
		 "JobURL":"https://www.ziprecruiter.com/jobs/k1?src=feed",
		 "SaveJobURL":"https://www.ziprecruiter.com/save?listing_key=k1&posted_time=2026-08-25T12:00:00Z",
		 "EmploymentType":"Full-Time","FormattedSalaryShort":"$50.5K to $75K Annually",
		 "Snippet":"Ship Go services.","RemoteType":""},
		{"ListingKey":"k2","Title":"Gig Worker","OrgName":"Hooli","City":"Denver","State":"CO","Country":"USA",
		 "JobURL":"https://www.ziprecruiter.com/jobs/k2","EmploymentType":"Gig-Economy"},
		{"ListingKey":"k3","Title":"Contract Dev","OrgName":"Hooli","City":"Boulder","State":"CO","Country":"USA",
		 "JobURL":"https://www.ziprecruiter.com/jobs/k3","EmploymentType":"Contractor","RemoteType":"fully_remote"}
	],
	"totalJobCount": 3
}</script></html>`

func TestZipRecruiterScrape_JobList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, zipVariablesPage)
	}))
	defer srv.Close()

	s := NewZipRecruiter(testFactory(t), testLogger())
	s.baseURL = srv.URL

	in := model.NewScraperInput()
	in.SearchTerm = "golang"
	in.ResultsWanted = 10

	resp, err := s.Scrape(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// k2 has an employment type outside the canonical set and is dropped.
	if len(resp.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(resp.Jobs))
	}

	j := resp.Jobs[0]
	if j.ID != "zr-k1" {
		t.Errorf("expected id zr-k1, got %s", j.ID)
	}
	if j.JobURL != "https://www.ziprecruiter.com/jobs/k1" {
		t.Errorf("query not stripped from job URL: %s", j.JobURL)
	}
	if len(j.JobTypes) != 1 || j.JobTypes[0] != model.JobTypeFullTime {
		t.Errorf("unexpected job types: %v", j.JobTypes)
	}
	if j.Compensation == nil {
		t.Fatal("expected parsed salary")
	}
	if *j.Compensation.MinAmount != 50500 || *j.Compensation.MaxAmount != 75000 {
		t.Errorf("unexpected salary range: %d-%d", *j.Compensation.MinAmount, *j.Compensation.MaxAmount)
	}
	if j.Compensation.Interval != model.IntervalYearly {
		t.Errorf("unexpected interval: %s", j.Compensation.Interval)
	}
	if j.DatePosted == nil || j.DatePosted.Day() != 25 {
		t.Errorf("posted_time not extracted: %v", j.DatePosted)
	}
	if j.Location == nil || j.Location.City != "Denver" || j.Location.State != "CO" {
		t.Errorf("unexpected location: %+v", j.Location)
	}

	// "Contractor" aliases to the contract type.
	k3 := resp.Jobs[1]
	if len(k3.JobTypes) != 1 || k3.JobTypes[0] != model.JobTypeContract {
		t.Errorf("contractor alias not applied: %v", k3.JobTypes)
	}
	if k3.IsRemote == nil || !*k3.IsRemote {
		t.Error("fully_remote should mark the job remote")
	}
}

func TestZipRecruiterScrape_CardFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "" {
			fmt.Fprint(w, `<html><body></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body>
			<div class="job_content">
				<a class="job_link" href="https://www.ziprecruiter.com/jobs/abc123?src=card"></a>
				<h2 class="job_title">Backend Dev</h2>
				<a class="company_name">Pied Piper</a>
				<p class="job_location">Palo Alto, CA</p>
			</div>
		</body></html>`)
	}))
	defer srv.Close()

	s := NewZipRecruiter(testFactory(t), testLogger())
	s.baseURL = srv.URL

	in := model.NewScraperInput()
	in.SearchTerm = "golang"
	in.ResultsWanted = 1

	resp, err := s.Scrape(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(resp.Jobs))
	}
	j := resp.Jobs[0]
	if j.ID != "zr-abc123" {
		t.Errorf("unexpected id: %s", j.ID)
	}
	if j.Title != "Backend Dev" || j.CompanyName != "Pied Piper" {
		t.Errorf("unexpected card fields: %q %q", j.Title, j.CompanyName)
	}
}

func TestParseZipSalary(t *testing.T) {
	tests := []struct {
		text     string
		min, max int
		interval model.CompensationInterval
		ok       bool
	}{
		{"$120K to $150K Annually", 120000, 150000, model.IntervalYearly, true},
		{"$50.5K to $75K Annually", 50500, 75000, model.IntervalYearly, true},
		{"$20 to $28 Hourly", 20, 28, model.IntervalHourly, true},
		{"$4K - $6K Monthly", 4000, 6000, model.IntervalMonthly, true},
		{"Competitive pay", 0, 0, "", false},
	}
	for _, tt := range tests {
		comp := parseZipSalary(tt.text)
		if !tt.ok {
			if comp != nil {
				t.Errorf("%q: expected no parse, got %+v", tt.text, comp)
			}
			continue
		}
		if comp == nil {
			t.Errorf("%q: expected parse", tt.text)
			continue
		}
		if *comp.MinAmount != tt.min || *comp.MaxAmount != tt.max {
			t.Errorf("%q: got %d-%d, want %d-%d", tt.text, *comp.MinAmount, *comp.MaxAmount, tt.min, tt.max)
		}
		if comp.Interval != tt.interval {
			t.Errorf("%q: got interval %s, want %s", tt.text, comp.Interval, tt.interval)
		}
	}
}
