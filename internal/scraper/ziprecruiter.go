package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobharvest/jobharvest/internal/model"
	"github.com/jobharvest/jobharvest/internal/session"
)

const zipBaseURL = "https://www.ziprecruiter.com"

var zipHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

// ZipRecruiter scrapes the jobs-search HTML with a fingerprint-shaped
// client. The embedded js_variables block carries a structured jobList;
// when it is absent the scraper falls back to the job_content cards.
type ZipRecruiter struct {
	factory *session.Factory
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

var _ model.Scraper = (*ZipRecruiter)(nil)

// NewZipRecruiter creates the ZipRecruiter scraper.
func NewZipRecruiter(f *session.Factory, logger *slog.Logger) *ZipRecruiter {
	return &ZipRecruiter{
		factory: f,
		client:  f.Client(session.ProfileChrome),
		logger:  logger.With("board", model.BoardZipRecruiter),
		baseURL: zipBaseURL,
	}
}

// Scrape walks jobs-search pages until the budget, the board-reported
// totalJobCount, or an empty page stops it.
func (s *ZipRecruiter) Scrape(ctx context.Context, in *model.ScraperInput) (*model.JobResponse, error) {
	if in.ResultsWanted <= 0 {
		return &model.JobResponse{}, nil
	}

	seen := make(seenSet)
	var jobs []*model.JobPost
	total := -1 // authoritative cap once the board reports it

	for page := 1; ; page++ {
		body, err := s.factory.Get(ctx, s.client, s.searchURL(in, page), zipHeaders)
		if err != nil {
			if session.BlockedStatus(err) {
				return &model.JobResponse{Jobs: jobs}, &model.BlockedError{Board: model.BoardZipRecruiter, Reason: "search rejected", Err: err}
			}
			return &model.JobResponse{Jobs: jobs}, fmt.Errorf("ziprecruiter page %d: %w", page, err)
		}

		pageJobs, pageTotal, err := s.parsePage(body, in)
		if err != nil {
			if page == 1 {
				return &model.JobResponse{Jobs: jobs}, err
			}
			break
		}
		if pageTotal >= 0 {
			total = pageTotal
		}
		if len(pageJobs) == 0 {
			break
		}

		added := 0
		for _, job := range pageJobs {
			if !seen.add(job.JobURL) {
				continue
			}
			if err := job.Validate(); err != nil {
				s.logger.Debug("dropping invalid job", "id", job.ID, "error", err)
				continue
			}
			jobs = append(jobs, job)
			added++
			if len(jobs) >= in.ResultsWanted {
				break
			}
		}
		if added == 0 || len(jobs) >= in.ResultsWanted || (total >= 0 && len(jobs) >= total) {
			break
		}
		if ctx.Err() != nil {
			return &model.JobResponse{Jobs: jobs}, ctx.Err()
		}
	}

	s.logger.Info("scrape complete", "jobs", len(jobs))
	return &model.JobResponse{Jobs: jobs}, nil
}

func (s *ZipRecruiter) searchURL(in *model.ScraperInput, page int) string {
	params := url.Values{}
	params.Set("search", in.SearchTerm)
	if loc := in.ResolvedLocation(); loc != "" {
		params.Set("location", loc)
	}
	if in.Distance > 0 {
		params.Set("radius", strconv.Itoa(in.Distance))
	}
	if in.HoursOld > 0 {
		params.Set("days", strconv.Itoa((in.HoursOld+23)/24))
	}
	if in.IsRemote {
		params.Set("refine_by_location_type", "only_remote")
	}
	if in.JobType != nil {
		params.Set("refine_by_employment", "employment_type:"+string(*in.JobType))
	}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	return s.baseURL + "/jobs-search?" + params.Encode()
}

// zipVariables mirrors the script#js_variables payload.
type zipVariables struct {
	JobList       []zipJob `json:"jobList"`
	TotalJobCount int      `json:"totalJobCount"`
}

type zipJob struct {
	ListingKey      string `json:"ListingKey"`
	Title           string `json:"Title"`
	OrgName         string `json:"OrgName"`
	City            string `json:"City"`
	State           string `json:"State"`
	Country         string `json:"Country"`
	JobURL          string `json:"JobURL"`
	SaveJobURL      string `json:"SaveJobURL"`
	EmploymentType  string `json:"EmploymentType"`
	FormattedSalary string `json:"FormattedSalaryShort"`
	Snippet         string `json:"Snippet"`
	RemoteType      string `json:"RemoteType"`
}

// parsePage prefers the structured jobList and falls back to card markup.
// The totalJobCount return is -1 when the page does not carry one.
func (s *ZipRecruiter) parsePage(body []byte, in *model.ScraperInput) ([]*model.JobPost, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, -1, &model.ParseError{Board: model.BoardZipRecruiter, What: "search page", Err: err}
	}

	script := doc.Find("script#js_variables").First()
	if script.Length() > 0 {
		var vars zipVariables
		if err := json.Unmarshal([]byte(script.Text()), &vars); err != nil {
			return nil, -1, &model.ParseError{Board: model.BoardZipRecruiter, What: "js_variables", Err: err}
		}
		var jobs []*model.JobPost
		for _, zj := range vars.JobList {
			if job := s.buildJob(zj, in); job != nil {
				jobs = append(jobs, job)
			}
		}
		return jobs, vars.TotalJobCount, nil
	}

	// Fallback: scrape the rendered cards.
	var jobs []*model.JobPost
	doc.Find("div.job_content").Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a.job_link").First().Attr("href")
		if !ok {
			return
		}
		href = stripQuery(href)
		job := &model.JobPost{
			ID:          "zr-" + cardKey(href),
			Title:       strings.TrimSpace(card.Find("h2.job_title").First().Text()),
			CompanyName: strings.TrimSpace(card.Find("a.company_name").First().Text()),
			JobURL:      href,
		}
		if locText := strings.TrimSpace(card.Find("p.job_location").First().Text()); locText != "" {
			job.Location = parseLinkedInLocation(locText)
		}
		jobs = append(jobs, job)
	})
	if len(jobs) == 0 {
		return nil, -1, &model.ParseError{Board: model.BoardZipRecruiter, What: "job cards", Err: fmt.Errorf("neither js_variables nor job_content present")}
	}
	return jobs, -1, nil
}

// buildJob normalizes one jobList entry. Postings with an employment type
// that maps to no canonical JobType are dropped.
func (s *ZipRecruiter) buildJob(zj zipJob, in *model.ScraperInput) *model.JobPost {
	if zj.ListingKey == "" {
		return nil
	}
	jobURL := zj.JobURL
	if jobURL == "" {
		jobURL = s.baseURL + "/jobs/" + zj.ListingKey
	}

	job := &model.JobPost{
		ID:          "zr-" + zj.ListingKey,
		Title:       zj.Title,
		CompanyName: zj.OrgName,
		JobURL:      stripQuery(jobURL),
	}

	if zj.EmploymentType != "" {
		jt, ok := model.JobTypeFromString(zj.EmploymentType)
		if !ok {
			s.logger.Debug("dropping job with unknown employment type", "id", job.ID, "employment_type", zj.EmploymentType)
			return nil
		}
		job.JobTypes = []model.JobType{jt}
	}

	if zj.City != "" || zj.State != "" {
		loc := &model.Location{City: zj.City, State: zj.State}
		if c, err := model.CountryFromString(zj.Country); err == nil {
			loc.Country = &c
		}
		job.Location = loc
	}

	if comp := parseZipSalary(zj.FormattedSalary); comp != nil {
		job.Compensation = comp
	}

	if t, ok := postedTimeFromSaveURL(zj.SaveJobURL); ok {
		job.DatePosted = &t
	}

	if zj.Snippet != "" {
		rendered, plain := formatDescription(zj.Snippet, in.Format)
		job.Description = rendered
		enrich(job, plain)
	}

	if strings.EqualFold(zj.RemoteType, "fully_remote") || mentionsRemote(zj.RemoteType) {
		job.IsRemote = model.BoolPtr(true)
	}
	return job
}

var zipSalaryRegex = regexp.MustCompile(`(?i)\$?\s*([\d.,]+K?)\s*(?:to|-)\s*\$?\s*([\d.,]+K?)\s*(Annually|Yearly|Monthly|Weekly|Daily|Hourly)?`)

// parseZipSalary parses strings like "$120K to $150K Annually". A bare K
// multiplies by 1000, so "$50.5K" is 50500.
func parseZipSalary(text string) *model.Compensation {
	m := zipSalaryRegex.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	lo, okLo := parseMoney(m[1])
	hi, okHi := parseMoney(m[2])
	if !okLo || !okHi {
		return nil
	}
	interval := model.IntervalFromUnit(m[3])
	if interval == "" {
		interval = model.IntervalYearly
	}
	return model.NewCompensation(interval, model.IntPtr(lo), model.IntPtr(hi), "USD")
}

// postedTimeFromSaveURL extracts the ISO-8601 posted_time query parameter
// carried by the save-job link.
func postedTimeFromSaveURL(saveURL string) (time.Time, bool) {
	if saveURL == "" {
		return time.Time{}, false
	}
	u, err := url.Parse(saveURL)
	if err != nil {
		return time.Time{}, false
	}
	raw := u.Query().Get("posted_time")
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// cardKey derives a stable id from a card href when the listing key is not
// in the markup.
func cardKey(href string) string {
	trimmed := strings.TrimSuffix(href, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
