package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jobharvest/jobharvest/internal/model"
	"github.com/jobharvest/jobharvest/internal/session"
)

const (
	indeedPageSize    = 10
	indeedAPIURL      = "https://apis.indeed.com/graphql"
	indeedAPIKey      = "109745F56C73C6A4C5DF4A31C29F64E91646E9EC2C48C8767E25BEB6B5FA245B"
	indeedPageWorkers = 3 // concurrent continuation pages, well under the ≤10 bound
)

var indeedHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

var mosaicRegex = regexp.MustCompile(`(?s)window\.mosaic\.providerData\["mosaic-provider-jobcards"\]\s*=\s*(\{.+?\});`)

// Indeed scrapes the mobile search HTML for job cards, then asks the
// mobile GraphQL API for the detailed record of every jobkey on the page.
type Indeed struct {
	factory *session.Factory
	client  *http.Client
	logger  *slog.Logger
	baseURL string // resolved per-country at scrape time unless preset
	apiURL  string
}

var _ model.Scraper = (*Indeed)(nil)

// NewIndeed creates the Indeed scraper with a fingerprint-shaped client.
func NewIndeed(f *session.Factory, logger *slog.Logger) *Indeed {
	return &Indeed{
		factory: f,
		client:  f.Client(session.ProfileChrome),
		logger:  logger.With("board", model.BoardIndeed),
		apiURL:  indeedAPIURL,
	}
}

// Scrape fetches the first page, then keeps launching further pages on a
// small worker pool while the budget is unmet, stopping early when a round
// contributes nothing new.
func (s *Indeed) Scrape(ctx context.Context, in *model.ScraperInput) (*model.JobResponse, error) {
	if in.ResultsWanted <= 0 {
		return &model.JobResponse{}, nil
	}

	base := s.baseURL
	if base == "" {
		sub, _ := in.Country.IndeedDomain()
		base = fmt.Sprintf("https://%s.indeed.com", sub)
	}

	seen := make(seenSet)
	var jobs []*model.JobPost

	appendPage := func(page []*model.JobPost) int {
		added := 0
		for _, job := range page {
			if len(jobs) >= in.ResultsWanted {
				break
			}
			if !seen.add(job.JobURL) {
				continue
			}
			if err := job.Validate(); err != nil {
				s.logger.Debug("dropping invalid job", "id", job.ID, "error", err)
				continue
			}
			jobs = append(jobs, job)
			added++
		}
		return added
	}

	first, err := s.fetchPage(ctx, base, in, 0)
	if err != nil {
		if session.BlockedStatus(err) {
			return &model.JobResponse{Jobs: jobs}, &model.BlockedError{Board: model.BoardIndeed, Reason: "search rejected", Err: err}
		}
		return &model.JobResponse{Jobs: jobs}, err
	}
	appendPage(first)

	page := 1
	for len(jobs) < in.ResultsWanted && len(first) > 0 {
		results := make([][]*model.JobPost, indeedPageWorkers)
		var wg sync.WaitGroup
		for i := range indeedPageWorkers {
			wg.Add(1)
			go func(slot, pageNum int) {
				defer wg.Done()
				batch, err := s.fetchPage(ctx, base, in, pageNum)
				if err != nil {
					s.logger.Warn("continuation page failed", "page", pageNum, "error", err)
					return
				}
				results[slot] = batch
			}(i, page+i)
		}
		wg.Wait()
		page += indeedPageWorkers

		added := 0
		for _, batch := range results {
			added += appendPage(batch)
		}
		if added == 0 {
			break
		}
		if ctx.Err() != nil {
			return &model.JobResponse{Jobs: jobs}, ctx.Err()
		}
	}

	s.logger.Info("scrape complete", "jobs", len(jobs))
	return &model.JobResponse{Jobs: jobs}, nil
}

// fetchPage runs both phases for one page: card HTML then GraphQL details.
func (s *Indeed) fetchPage(ctx context.Context, base string, in *model.ScraperInput, page int) ([]*model.JobPost, error) {
	body, err := s.factory.Get(ctx, s.client, s.searchURL(base, in, page), indeedHeaders)
	if err != nil {
		return nil, err
	}

	m := mosaicRegex.FindSubmatch(body)
	if m == nil {
		return nil, &model.ParseError{Board: model.BoardIndeed, What: "mosaic provider data", Err: fmt.Errorf("script block not found")}
	}

	var provider struct {
		MetaData struct {
			MosaicProviderJobCardsModel struct {
				Results []indeedCard `json:"results"`
			} `json:"mosaicProviderJobCardsModel"`
		} `json:"metaData"`
	}
	if err := json.Unmarshal(m[1], &provider); err != nil {
		return nil, &model.ParseError{Board: model.BoardIndeed, What: "mosaic provider data", Err: err}
	}

	cards := provider.MetaData.MosaicProviderJobCardsModel.Results
	if len(cards) == 0 {
		return nil, nil
	}

	keys := make([]string, len(cards))
	for i, c := range cards {
		keys[i] = c.JobKey
	}
	details, err := s.fetchDetails(ctx, in.Country, keys)
	if err != nil {
		s.logger.Warn("detail fetch failed, using card data only", "page", page, "error", err)
		details = nil
	}

	jobs := make([]*model.JobPost, 0, len(cards))
	for i, card := range cards {
		var detail *indeedDetail
		if i < len(details) {
			detail = &details[i]
		}
		if job := s.buildJob(base, card, detail, in.Format); job != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// searchURL assembles the mobile search endpoint with the sc filter string.
func (s *Indeed) searchURL(base string, in *model.ScraperInput, page int) string {
	params := url.Values{}
	params.Set("q", in.SearchTerm)
	if loc := in.ResolvedLocation(); loc != "" {
		params.Set("l", loc)
	}
	params.Set("filter", "0")
	params.Set("start", strconv.Itoa(in.Offset+page*indeedPageSize))
	params.Set("sort", "date")
	if in.Distance > 0 {
		params.Set("radius", strconv.Itoa(in.Distance))
	}
	if in.HoursOld > 0 {
		params.Set("fromage", strconv.Itoa((in.HoursOld+23)/24))
	}

	var sc []string
	if in.IsRemote {
		sc = append(sc, "attr(DSQF7)")
	}
	if in.JobType != nil {
		sc = append(sc, fmt.Sprintf("jt(%s)", *in.JobType))
	}
	if len(sc) > 0 {
		params.Set("sc", "0kf:"+strings.Join(sc, "")+";")
	}

	return base + "/m/jobs?" + params.Encode()
}

// indeedCard mirrors one entry of the mosaic jobcards model.
type indeedCard struct {
	JobKey            string `json:"jobkey"`
	Title             string `json:"title"`
	Company           string `json:"company"`
	CompanyOverview   string `json:"companyOverviewLink"`
	FormattedLocation string `json:"formattedLocation"`
	PubDate           int64  `json:"pubDate"` // epoch millis
	RemoteLocation    bool   `json:"remoteLocation"`
	ExtractedSalary   *struct {
		// The card feed is known to swap these; buildJob reorders.
		Min  float64 `json:"min"`
		Max  float64 `json:"max"`
		Type string  `json:"type"`
	} `json:"extractedSalary"`
}

// indeedDetail mirrors the GraphQL job record this scraper asks for.
type indeedDetail struct {
	Key         string `json:"key"`
	Description struct {
		HTML string `json:"html"`
	} `json:"description"`
	Location struct {
		City        string `json:"city"`
		Admin1Code  string `json:"admin1Code"`
		CountryCode string `json:"countryCode"`
		Formatted   struct {
			Long string `json:"long"`
		} `json:"formatted"`
	} `json:"location"`
	Compensation struct {
		BaseSalary *struct {
			UnitOfWork string `json:"unitOfWork"`
			Range      struct {
				Min float64 `json:"min"`
				Max float64 `json:"max"`
			} `json:"range"`
		} `json:"baseSalary"`
		CurrencyCode string `json:"currencyCode"`
	} `json:"compensation"`
	Attributes []struct {
		Key   string `json:"key"`
		Label string `json:"label"`
	} `json:"attributes"`
	Employer *struct {
		Name                   string `json:"name"`
		RelativeCompanyPageURL string `json:"relativeCompanyPageUrl"`
	} `json:"employer"`
	Recruit *struct {
		ViewJobURL string `json:"viewJobUrl"`
	} `json:"recruit"`
	DatePublished      int64 `json:"datePublished"`
	TaxonomyAttributes []struct {
		Key        string `json:"key"`
		Attributes []struct {
			Label string `json:"label"`
		} `json:"attributes"`
	} `json:"taxonomyAttributes"`
}

const indeedDetailQuery = `query jobData($keys: [ID!]) {
  jobData(input: {jobKeys: $keys}) {
    results {
      job {
        key
        description { html }
        location { city admin1Code countryCode formatted { long } }
        compensation {
          baseSalary { unitOfWork range { ... on Range { min max } } }
          currencyCode
        }
        attributes { key label }
        employer { name relativeCompanyPageUrl }
        recruit { viewJobUrl }
        datePublished
        taxonomyAttributes: attributes { key attributes { label } }
      }
    }
  }
}`

// fetchDetails issues one GraphQL POST for the whole page's jobkey batch.
func (s *Indeed) fetchDetails(ctx context.Context, country model.Country, keys []string) ([]indeedDetail, error) {
	_, apiCode := country.IndeedDomain()

	payload, err := json.Marshal(map[string]any{
		"query":     indeedDetailQuery,
		"variables": map[string]any{"keys": keys},
	})
	if err != nil {
		return nil, err
	}

	body, err := s.factory.Do(ctx, s.client, &session.Request{
		Method: http.MethodPost,
		URL:    s.apiURL,
		Headers: map[string]string{
			"Content-Type":   "application/json",
			"indeed-api-key": indeedAPIKey,
			"indeed-co":      apiCode,
			"User-Agent":     indeedHeaders["User-Agent"],
			"Accept":         "application/json",
		},
		Body: payload,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			JobData struct {
				Results []struct {
					Job indeedDetail `json:"job"`
				} `json:"results"`
			} `json:"jobData"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &model.ParseError{Board: model.BoardIndeed, What: "graphql detail payload", Err: err}
	}

	details := make([]indeedDetail, len(resp.Data.JobData.Results))
	for i, r := range resp.Data.JobData.Results {
		details[i] = r.Job
	}
	return details, nil
}

// buildJob merges card and detail records into a canonical post. The
// detailed GraphQL payload wins wherever both carry a field.
func (s *Indeed) buildJob(base string, card indeedCard, detail *indeedDetail, format model.DescriptionFormat) *model.JobPost {
	if card.JobKey == "" {
		return nil
	}
	job := &model.JobPost{
		ID:          "in-" + card.JobKey,
		Title:       card.Title,
		CompanyName: card.Company,
		JobURL:      base + "/viewjob?jk=" + card.JobKey,
	}
	if card.CompanyOverview != "" {
		job.CompanyURL = base + stripQuery(card.CompanyOverview)
	}
	if card.PubDate > 0 {
		t := time.UnixMilli(card.PubDate).UTC()
		job.DatePosted = &t
	}

	var plain string
	remote := card.RemoteLocation
	if detail != nil {
		if detail.Description.HTML != "" {
			job.Description, plain = formatDescription(detail.Description.HTML, format)
			enrich(job, plain)
		}
		if detail.Employer != nil {
			if detail.Employer.Name != "" {
				job.CompanyName = detail.Employer.Name
			}
			if detail.Employer.RelativeCompanyPageURL != "" {
				job.CompanyURL = base + stripQuery(detail.Employer.RelativeCompanyPageURL)
			}
		}
		if detail.Recruit != nil {
			job.JobURLDirect = detail.Recruit.ViewJobURL
		}
		if detail.DatePublished > 0 {
			t := time.UnixMilli(detail.DatePublished).UTC()
			job.DatePosted = &t
		}
		if loc := detail.Location; loc.City != "" || loc.Admin1Code != "" || loc.CountryCode != "" {
			l := &model.Location{City: loc.City, State: loc.Admin1Code}
			if c, err := model.CountryFromString(loc.CountryCode); err == nil {
				l.Country = &c
			}
			job.Location = l
		}

		for _, attr := range detail.Attributes {
			if jt, ok := model.JobTypeFromString(attr.Label); ok {
				job.JobTypes = appendJobType(job.JobTypes, jt)
			}
			if mentionsRemote(attr.Label) {
				remote = true
			}
		}
		for _, tax := range detail.TaxonomyAttributes {
			if tax.Key != "remote" {
				continue
			}
			for _, a := range tax.Attributes {
				if mentionsRemote(a.Label) {
					remote = true
				}
			}
		}

		if bs := detail.Compensation.BaseSalary; bs != nil && bs.Range.Max > 0 {
			job.Compensation = model.NewCompensation(
				model.IntervalFromUnit(bs.UnitOfWork),
				model.IntPtr(int(bs.Range.Min)),
				model.IntPtr(int(bs.Range.Max)),
				detail.Compensation.CurrencyCode,
			)
		}
		if mentionsRemote(detail.Location.Formatted.Long) {
			remote = true
		}
	}

	if job.Compensation == nil && card.ExtractedSalary != nil && card.ExtractedSalary.Max > 0 {
		interval := model.IntervalFromUnit(card.ExtractedSalary.Type)
		job.Compensation = model.NewCompensation(interval,
			model.IntPtr(int(card.ExtractedSalary.Min)),
			model.IntPtr(int(card.ExtractedSalary.Max)), "")
	}

	if mentionsRemote(plain) || mentionsRemote(card.FormattedLocation) {
		remote = true
	}
	if remote {
		job.IsRemote = model.BoolPtr(true)
	}

	if job.Location == nil && card.FormattedLocation != "" && !mentionsRemote(card.FormattedLocation) {
		job.Location = parseLinkedInLocation(card.FormattedLocation)
	}
	return job
}

func appendJobType(types []model.JobType, jt model.JobType) []model.JobType {
	for _, existing := range types {
		if existing == jt {
			return types
		}
	}
	return append(types, jt)
}
