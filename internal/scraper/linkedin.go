package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobharvest/jobharvest/internal/model"
	"github.com/jobharvest/jobharvest/internal/session"
)

const (
	linkedInBaseURL  = "https://www.linkedin.com"
	linkedInPageSize = 25
	linkedInMaxStart = 1000 // guest search refuses offsets past this
	linkedInDelay    = 3 * time.Second
)

var linkedInHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

// LinkedIn scrapes the public guest search endpoint, paginating by a start
// offset in steps of 25 with a politeness delay between pages.
type LinkedIn struct {
	factory *session.Factory
	client  *http.Client
	logger  *slog.Logger
	baseURL string
	sleep   sleepFunc
}

var _ model.Scraper = (*LinkedIn)(nil)

// NewLinkedIn creates the LinkedIn scraper with its own client and cookie jar.
func NewLinkedIn(f *session.Factory, logger *slog.Logger) *LinkedIn {
	return &LinkedIn{
		factory: f,
		client:  f.Client(session.ProfileDefault),
		logger:  logger.With("board", model.BoardLinkedIn),
		baseURL: linkedInBaseURL,
		sleep:   time.Sleep,
	}
}

// Scrape walks the guest search until the results budget is met, a page
// comes back empty, the offset guard trips, or the board errors out.
func (s *LinkedIn) Scrape(ctx context.Context, in *model.ScraperInput) (*model.JobResponse, error) {
	if in.ResultsWanted <= 0 {
		return &model.JobResponse{}, nil
	}

	seen := make(seenSet)
	var jobs []*model.JobPost

	for start := in.Offset; start < linkedInMaxStart; start += linkedInPageSize {
		body, err := s.factory.Get(ctx, s.client, s.searchURL(in, start), linkedInHeaders)
		if err != nil {
			if session.BlockedStatus(err) {
				return &model.JobResponse{Jobs: jobs}, &model.BlockedError{Board: model.BoardLinkedIn, Reason: "guest search rejected", Err: err}
			}
			return &model.JobResponse{Jobs: jobs}, fmt.Errorf("linkedin page at offset %d: %w", start, err)
		}

		pageJobs, err := s.parseSearchPage(body, in)
		if err != nil {
			if start == in.Offset {
				return &model.JobResponse{Jobs: jobs}, err
			}
			s.logger.Warn("page parse failed, stopping pagination", "offset", start, "error", err)
			break
		}
		if len(pageJobs) == 0 {
			break
		}

		full := false
		for _, job := range pageJobs {
			if !seen.add(job.JobURL) {
				continue
			}
			if in.LinkedInFetchDescription {
				s.fetchDescription(ctx, job, in.Format)
			}
			if err := job.Validate(); err != nil {
				s.logger.Debug("dropping invalid job", "id", job.ID, "error", err)
				continue
			}
			jobs = append(jobs, job)
			if len(jobs) >= in.ResultsWanted {
				full = true
				break
			}
		}
		if full {
			break
		}

		select {
		case <-ctx.Done():
			return &model.JobResponse{Jobs: jobs}, ctx.Err()
		default:
		}
		s.sleep(uniformDelay(linkedInDelay, 2*time.Second))
	}

	s.logger.Info("scrape complete", "jobs", len(jobs))
	return &model.JobResponse{Jobs: jobs}, nil
}

// searchURL assembles the guest search endpoint for one page.
func (s *LinkedIn) searchURL(in *model.ScraperInput, start int) string {
	params := url.Values{}
	params.Set("keywords", in.SearchTerm)
	if loc := in.ResolvedLocation(); loc != "" {
		params.Set("location", loc)
	}
	if in.Distance > 0 {
		params.Set("distance", strconv.Itoa(in.Distance))
	}
	if in.IsRemote {
		params.Set("f_WT", "2")
	}
	if in.JobType != nil {
		if code := in.JobType.LinkedInCode(); code != "" {
			params.Set("f_JT", code)
		}
	}
	if in.EasyApply != nil && *in.EasyApply {
		params.Set("f_AL", "true")
	}
	if in.HoursOld > 0 {
		params.Set("f_TPR", fmt.Sprintf("r%d", in.HoursOld*3600))
	}
	if len(in.LinkedInCompanyIDs) > 0 {
		ids := make([]string, len(in.LinkedInCompanyIDs))
		for i, id := range in.LinkedInCompanyIDs {
			ids[i] = strconv.Itoa(id)
		}
		params.Set("f_C", strings.Join(ids, ","))
	}
	params.Set("start", strconv.Itoa(start))

	return s.baseURL + "/jobs-guest/jobs/api/seeMoreJobPostings/search?" + params.Encode()
}

// parseSearchPage extracts the job cards of one guest search page.
func (s *LinkedIn) parseSearchPage(body []byte, in *model.ScraperInput) ([]*model.JobPost, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &model.ParseError{Board: model.BoardLinkedIn, What: "search page", Err: err}
	}

	var jobs []*model.JobPost
	doc.Find("div.base-search-card").Each(func(_ int, card *goquery.Selection) {
		job := s.parseCard(card, in)
		if job != nil {
			jobs = append(jobs, job)
		}
	})
	return jobs, nil
}

// parseCard extracts one posting from its search card markup. Cards missing
// a durable landing URL are rejected.
func (s *LinkedIn) parseCard(card *goquery.Selection, in *model.ScraperInput) *model.JobPost {
	href, ok := card.Find("a.base-card__full-link").First().Attr("href")
	if !ok || href == "" {
		return nil
	}
	href = stripQuery(href)

	// Job id is the path segment after the last dash of the card href.
	idx := strings.LastIndex(strings.TrimSuffix(href, "/"), "-")
	if idx < 0 {
		return nil
	}
	nativeID := strings.TrimSuffix(href[idx+1:], "/")

	job := &model.JobPost{
		ID:     "li-" + nativeID,
		Title:  strings.TrimSpace(card.Find("h3.base-search-card__title").First().Text()),
		JobURL: s.baseURL + "/jobs/view/" + nativeID,
	}

	companyLink := card.Find("h4.base-search-card__subtitle a").First()
	job.CompanyName = strings.TrimSpace(companyLink.Text())
	if companyHref, ok := companyLink.Attr("href"); ok {
		job.CompanyURL = stripQuery(companyHref)
	}

	if locText := strings.TrimSpace(card.Find("span.job-search-card__location").First().Text()); locText != "" {
		job.Location = parseLinkedInLocation(locText)
	}

	if datetime, ok := card.Find("time").First().Attr("datetime"); ok {
		if t, err := time.Parse("2006-01-02", datetime); err == nil {
			job.DatePosted = &t
		}
	}

	if salaryText := strings.TrimSpace(card.Find("span.job-search-card__salary-info").First().Text()); salaryText != "" {
		if lo, hi, ok := parseSalaryRange(salaryText); ok {
			job.Compensation = model.NewCompensation(model.IntervalYearly, model.IntPtr(lo), model.IntPtr(hi), "")
		}
	}

	if benefits := strings.TrimSpace(card.Find("span.result-benefits__text").First().Text()); benefits != "" {
		job.Benefits = benefits
	}

	if in.IsRemote {
		job.IsRemote = model.BoolPtr(true)
	}
	return job
}

// parseLinkedInLocation splits "City, State" or "City, State, Country"
// card location strings.
func parseLinkedInLocation(text string) *model.Location {
	parts := strings.Split(text, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	loc := &model.Location{}
	switch len(parts) {
	case 2:
		loc.City, loc.State = parts[0], parts[1]
	case 3:
		loc.City, loc.State = parts[0], parts[1]
		if c, err := model.CountryFromString(parts[2]); err == nil {
			loc.Country = &c
		}
	default:
		loc.City = text
	}
	return loc
}

// fetchDescription augments a post with the view page's description markup
// and employment-type criterion. A redirect to the signup interstitial
// parses as an empty block and simply leaves the description unset.
func (s *LinkedIn) fetchDescription(ctx context.Context, job *model.JobPost, format model.DescriptionFormat) {
	body, err := s.factory.Get(ctx, s.client, job.JobURL, linkedInHeaders)
	if err != nil {
		s.logger.Debug("description fetch failed", "id", job.ID, "error", err)
		return
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return
	}

	markup := doc.Find("div.show-more-less-html__markup").First()
	if markup.Length() > 0 {
		raw, _ := markup.Html()
		rendered, plain := formatDescription(raw, format)
		job.Description = rendered
		enrich(job, plain)
		if job.IsRemote == nil && mentionsRemote(plain) {
			job.IsRemote = model.BoolPtr(true)
		}
	}

	doc.Find("li.description__job-criteria-item").Each(func(_ int, item *goquery.Selection) {
		header := strings.TrimSpace(item.Find("h3").First().Text())
		if !strings.EqualFold(header, "Employment type") {
			return
		}
		value := strings.TrimSpace(item.Find("span").First().Text())
		if jt, ok := model.JobTypeFromString(value); ok {
			job.JobTypes = []model.JobType{jt}
		}
	})
}

// stripQuery drops the query and fragment from an href.
func stripQuery(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		return href[:i]
	}
	return href
}
