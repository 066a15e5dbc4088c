package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jobharvest/jobharvest/internal/cache"
	"github.com/jobharvest/jobharvest/internal/model"
	"github.com/jobharvest/jobharvest/internal/session"
)

const (
	glassdoorPageSize = 30
	glassdoorMaxPages = 30

	// Synthetic location Glassdoor assigns remote-only searches.
	glassdoorRemoteLocationID   = 11047
	glassdoorRemoteLocationType = "STATE"
)

var glassdoorHeaders = map[string]string{
	"User-Agent":    "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Accept":        "*/*",
	"Content-Type":  "application/json",
	"gd-csrf-token": "Ft6oHEWlRZrxDww95Cpazw:0pGUrkb2y3TyOpAIqF2vbPmUXoXVkD3oEGDVkvfeCerceQ5-n8mBg3BovySUIjmCPHCaW0H2nQVdqzbtsYqf4Q:wcqRqeegRUa9MVLJGyujVXB7vWFPjdaS1CtrrzJq-ok",
}

// glassdoorSearchQuery is the JobSearchResultsQuery GraphQL document. Only
// the fields the normalizer reads are requested.
const glassdoorSearchQuery = `query JobSearchResultsQuery($keyword: String, $locationId: Int, $locationType: LocationTypeEnum, $numJobsToShow: Int!, $pageCursor: String, $fromAge: Int, $filterParams: [FilterParams]) {
  jobListings(contextHolder: {searchParams: {keyword: $keyword, locationId: $locationId, locationType: $locationType, numPerPage: $numJobsToShow, pageCursor: $pageCursor, fromAge: $fromAge, filterParams: $filterParams, parameterUrlInput: "IL.0,12_IS11047", seoFriendlyUrlInput: "jobs", seoUrl: true}}) {
    companyFilterOptions { id }
    jobListings {
      jobview {
        header {
          ageInDays
          employerNameFromSearch
          employer { id shortName }
          locationName
          locationType
          payCurrency
          payPeriod
          payPeriodAdjustedPay { p10 p90 }
        }
        job { jobTitleText listingId }
        overview { squareLogoUrl }
      }
    }
    paginationCursors { cursor pageNumber }
    totalJobsCount
  }
}`

// Glassdoor drives the regional GraphQL search endpoint with cursor
// pagination. Location resolution goes through findPopularLocationAjax and
// is memoized in the shared cache since location ids are stable.
type Glassdoor struct {
	factory *session.Factory
	client  *http.Client
	cache   cache.Cache
	logger  *slog.Logger
	baseURL string // regional host override for tests; empty means registry lookup
}

var _ model.Scraper = (*Glassdoor)(nil)

// NewGlassdoor creates the Glassdoor scraper.
func NewGlassdoor(f *session.Factory, c cache.Cache, logger *slog.Logger) *Glassdoor {
	if c == nil {
		c = cache.Nop{}
	}
	return &Glassdoor{
		factory: f,
		client:  f.Client(session.ProfileChrome),
		cache:   c,
		logger:  logger.With("board", model.BoardGlassdoor),
	}
}

// Scrape pages the GraphQL search until the budget, the reported total, or
// the 30-page ceiling stops it.
func (s *Glassdoor) Scrape(ctx context.Context, in *model.ScraperInput) (*model.JobResponse, error) {
	if in.ResultsWanted <= 0 {
		return &model.JobResponse{}, nil
	}

	host := s.baseURL
	if host == "" {
		h, ok := in.Country.GlassdoorHost()
		if !ok {
			return nil, fmt.Errorf("glassdoor does not serve %s", in.Country.Name)
		}
		host = "https://" + h
	}

	locID, locType, err := s.resolveLocation(ctx, host, in)
	if err != nil {
		return nil, err
	}

	seen := make(seenSet)
	var jobs []*model.JobPost
	cursor := ""
	total := -1

	for page := 1; page <= glassdoorMaxPages; page++ {
		resp, err := s.fetchPage(ctx, host, in, locID, locType, cursor)
		if err != nil {
			if session.BlockedStatus(err) {
				return &model.JobResponse{Jobs: jobs}, &model.BlockedError{Board: model.BoardGlassdoor, Reason: "graph query rejected", Err: err}
			}
			if page == 1 {
				return &model.JobResponse{Jobs: jobs}, err
			}
			break
		}
		listings := resp.Data.JobListings
		if listings.TotalJobsCount > 0 {
			total = listings.TotalJobsCount
		}
		if len(listings.JobListings) == 0 {
			break
		}

		for _, entry := range listings.JobListings {
			job := s.buildJob(host, entry.Jobview)
			if job == nil || !seen.add(job.JobURL) {
				continue
			}
			if err := job.Validate(); err != nil {
				s.logger.Debug("dropping invalid job", "id", job.ID, "error", err)
				continue
			}
			jobs = append(jobs, job)
			if len(jobs) >= in.ResultsWanted {
				break
			}
		}
		if len(jobs) >= in.ResultsWanted || (total >= 0 && len(jobs) >= total) {
			break
		}

		cursor = nextCursor(listings.PaginationCursors, page+1)
		if cursor == "" {
			break
		}
		if ctx.Err() != nil {
			return &model.JobResponse{Jobs: jobs}, ctx.Err()
		}
	}

	s.logger.Info("scrape complete", "jobs", len(jobs))
	return &model.JobResponse{Jobs: jobs}, nil
}

// glassdoorLocation is one findPopularLocationAjax suggestion.
type glassdoorLocation struct {
	LocationID   int    `json:"locationId"`
	LocationType string `json:"locationType"`
}

// resolveLocation maps the input location text to Glassdoor's internal
// (id, type) pair. Remote searches skip the lookup entirely.
func (s *Glassdoor) resolveLocation(ctx context.Context, host string, in *model.ScraperInput) (int, string, error) {
	if in.IsRemote {
		return glassdoorRemoteLocationID, glassdoorRemoteLocationType, nil
	}
	loc := in.ResolvedLocation()
	if loc == "" {
		return 0, "", nil
	}

	cacheKey := "gd:loc:" + host + ":" + strings.ToLower(loc)
	if cached, ok := s.cache.Get(ctx, cacheKey); ok {
		var id int
		var typ string
		if _, err := fmt.Sscanf(cached, "%d %s", &id, &typ); err == nil {
			return id, typ, nil
		}
	}

	lookupURL := host + "/findPopularLocationAjax.htm?maxLocationsToReturn=10&term=" + url.QueryEscape(loc)
	body, err := s.factory.Get(ctx, s.client, lookupURL, glassdoorHeaders)
	if err != nil {
		if session.BlockedStatus(err) {
			return 0, "", &model.BlockedError{Board: model.BoardGlassdoor, Reason: "location lookup rejected", Err: err}
		}
		return 0, "", fmt.Errorf("glassdoor location lookup: %w", err)
	}

	var suggestions []glassdoorLocation
	if err := json.Unmarshal(body, &suggestions); err != nil {
		return 0, "", &model.ParseError{Board: model.BoardGlassdoor, What: "location suggestions", Err: err}
	}
	if len(suggestions) == 0 {
		return 0, "", fmt.Errorf("glassdoor knows no location named %q", loc)
	}

	first := suggestions[0]
	typ := map[string]string{"C": "CITY", "S": "STATE", "N": "COUNTRY"}[first.LocationType]
	if typ == "" {
		typ = "CITY"
	}
	s.cache.Set(ctx, cacheKey, fmt.Sprintf("%d %s", first.LocationID, typ), 24*time.Hour)
	return first.LocationID, typ, nil
}

// glassdoorResponse mirrors the slice of the GraphQL reply we read.
type glassdoorResponse struct {
	Data struct {
		JobListings struct {
			JobListings []struct {
				Jobview glassdoorJobview `json:"jobview"`
			} `json:"jobListings"`
			PaginationCursors []glassdoorCursor `json:"paginationCursors"`
			TotalJobsCount    int               `json:"totalJobsCount"`
		} `json:"jobListings"`
	} `json:"data"`
}

type glassdoorCursor struct {
	Cursor     string `json:"cursor"`
	PageNumber int    `json:"pageNumber"`
}

type glassdoorJobview struct {
	Header struct {
		AgeInDays              int    `json:"ageInDays"`
		EmployerNameFromSearch string `json:"employerNameFromSearch"`
		Employer               struct {
			ShortName string `json:"shortName"`
		} `json:"employer"`
		LocationName         string  `json:"locationName"`
		LocationType         string  `json:"locationType"`
		PayCurrency          string  `json:"payCurrency"`
		PayPeriod            string  `json:"payPeriod"`
		PayPeriodAdjustedPay *struct {
			P10 float64 `json:"p10"`
			P90 float64 `json:"p90"`
		} `json:"payPeriodAdjustedPay"`
	} `json:"header"`
	Job struct {
		JobTitleText string `json:"jobTitleText"`
		ListingID    string `json:"listingId"`
	} `json:"job"`
}

func (s *Glassdoor) fetchPage(ctx context.Context, host string, in *model.ScraperInput, locID int, locType, cursor string) (*glassdoorResponse, error) {
	variables := map[string]any{
		"keyword":       in.SearchTerm,
		"numJobsToShow": glassdoorPageSize,
		"filterParams":  s.filterParams(in),
	}
	if locID > 0 {
		variables["locationId"] = locID
		variables["locationType"] = locType
	}
	if cursor != "" {
		variables["pageCursor"] = cursor
	}
	if in.HoursOld > 0 {
		variables["fromAge"] = (in.HoursOld + 23) / 24
	}

	payload, err := json.Marshal([]map[string]any{{
		"operationName": "JobSearchResultsQuery",
		"variables":     variables,
		"query":         glassdoorSearchQuery,
	}})
	if err != nil {
		return nil, fmt.Errorf("encode search query: %w", err)
	}

	body, err := s.factory.Do(ctx, s.client, &session.Request{
		Method:  http.MethodPost,
		URL:     host + "/graph",
		Headers: glassdoorHeaders,
		Body:    payload,
	})
	if err != nil {
		return nil, err
	}

	// The batched endpoint answers with a single-element array.
	var pages []glassdoorResponse
	if err := json.Unmarshal(body, &pages); err != nil {
		var single glassdoorResponse
		if err2 := json.Unmarshal(body, &single); err2 != nil {
			return nil, &model.ParseError{Board: model.BoardGlassdoor, What: "graph response", Err: err}
		}
		return &single, nil
	}
	if len(pages) == 0 {
		return nil, &model.ParseError{Board: model.BoardGlassdoor, What: "graph response", Err: fmt.Errorf("empty batch")}
	}
	return &pages[0], nil
}

func (s *Glassdoor) filterParams(in *model.ScraperInput) []map[string]string {
	var params []map[string]string
	if in.EasyApply != nil && *in.EasyApply {
		params = append(params, map[string]string{"filterKey": "applicationType", "values": "1"})
	}
	if in.JobType != nil {
		params = append(params, map[string]string{"filterKey": "jobType", "values": string(*in.JobType)})
	}
	return params
}

// buildJob normalizes one jobview. A "Remote" location name yields no
// Location at all; a state-typed header marks the post remote.
func (s *Glassdoor) buildJob(host string, view glassdoorJobview) *model.JobPost {
	h := view.Header
	if view.Job.ListingID == "" {
		return nil
	}

	company := h.Employer.ShortName
	if company == "" {
		company = h.EmployerNameFromSearch
	}

	job := &model.JobPost{
		ID:          "gd-" + view.Job.ListingID,
		Title:       view.Job.JobTitleText,
		CompanyName: company,
		JobURL:      host + "/job-listing/j?jl=" + view.Job.ListingID,
	}

	if h.AgeInDays >= 0 {
		t := time.Now().UTC().AddDate(0, 0, -h.AgeInDays).Truncate(24 * time.Hour)
		job.DatePosted = &t
	}

	if h.LocationType == "S" {
		job.IsRemote = model.BoolPtr(true)
	}
	if h.LocationName != "" && !strings.EqualFold(h.LocationName, "remote") {
		job.Location = parseLinkedInLocation(h.LocationName)
	}

	if pay := h.PayPeriodAdjustedPay; pay != nil && pay.P90 > 0 {
		interval := model.IntervalFromUnit(h.PayPeriod)
		if interval == "" {
			interval = model.IntervalYearly
		}
		job.Compensation = model.NewCompensation(interval,
			model.IntPtr(int(pay.P10)), model.IntPtr(int(pay.P90)), h.PayCurrency)
	}
	return job
}

// nextCursor picks the cursor whose pageNumber matches the page about to be
// fetched.
func nextCursor(cursors []glassdoorCursor, page int) string {
	for _, c := range cursors {
		if c.PageNumber == page {
			return c.Cursor
		}
	}
	return ""
}
