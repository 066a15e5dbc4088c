package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jobharvest/jobharvest/internal/model"
	"github.com/jobharvest/jobharvest/internal/session"
)

const googleBaseURL = "https://www.google.com"

// googleJobsKey is the literal key Google nests the listing array under in
// the async callback payload. It has been stable for years but is kept as a
// variable so a deployment can follow a rotation without a rebuild.
var googleJobsKey = "520084652"

var googleHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Accept":          "*/*",
	"Accept-Language": "en-US,en;q=0.9",
}

var googleCursorRegex = regexp.MustCompile(`data-async-fc="([^"]+)"`)

// Google scrapes the jobs vertical: one HTML search to obtain the first
// async cursor, then the callback endpoint until the cursor chain ends.
type Google struct {
	factory *session.Factory
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

var _ model.Scraper = (*Google)(nil)

// NewGoogle creates the Google Jobs scraper.
func NewGoogle(f *session.Factory, logger *slog.Logger) *Google {
	return &Google{
		factory: f,
		client:  f.Client(session.ProfileDefault),
		logger:  logger.With("board", model.BoardGoogle),
		baseURL: googleBaseURL,
	}
}

// Scrape follows the async cursor chain until the budget is met or the
// chain ends.
func (s *Google) Scrape(ctx context.Context, in *model.ScraperInput) (*model.JobResponse, error) {
	if in.ResultsWanted <= 0 {
		return &model.JobResponse{}, nil
	}

	searchURL := s.baseURL + "/search?" + url.Values{
		"q":   {s.query(in)},
		"udm": {"8"},
		"ibp": {"htl;jobs"},
	}.Encode()
	body, err := s.factory.Get(ctx, s.client, searchURL, googleHeaders)
	if err != nil {
		if session.BlockedStatus(err) {
			return nil, &model.BlockedError{Board: model.BoardGoogle, Reason: "search rejected", Err: err}
		}
		return nil, fmt.Errorf("google initial search: %w", err)
	}

	seen := make(seenSet)
	var jobs []*model.JobPost

	// The first results are embedded in the search page itself.
	if inline := s.parsePayload(body, in, seen); len(inline) > 0 {
		jobs = append(jobs, inline...)
	}

	cursor := extractCursor(body)
	for cursor != "" && len(jobs) < in.ResultsWanted {
		if ctx.Err() != nil {
			return &model.JobResponse{Jobs: jobs}, ctx.Err()
		}
		callbackURL := s.baseURL + "/async/callback:550?" + url.Values{
			"fc":    {cursor},
			"fcv":   {"3"},
			"async": {"_fmt:jspb"},
		}.Encode()
		page, err := s.factory.Get(ctx, s.client, callbackURL, googleHeaders)
		if err != nil {
			if session.BlockedStatus(err) {
				return &model.JobResponse{Jobs: jobs}, &model.BlockedError{Board: model.BoardGoogle, Reason: "callback rejected", Err: err}
			}
			break
		}
		pageJobs := s.parsePayload(page, in, seen)
		if len(pageJobs) == 0 {
			break
		}
		jobs = append(jobs, pageJobs...)
		cursor = extractCursor(page)
	}

	if len(jobs) > in.ResultsWanted {
		jobs = jobs[:in.ResultsWanted]
	}
	s.logger.Info("scrape complete", "jobs", len(jobs))
	return &model.JobResponse{Jobs: jobs}, nil
}

// query synthesizes the search box text from the structured input.
func (s *Google) query(in *model.ScraperInput) string {
	if in.GoogleSearchTerm != "" {
		return in.GoogleSearchTerm
	}
	parts := []string{in.SearchTerm}
	if in.JobType != nil {
		parts = append(parts, string(*in.JobType))
	}
	if loc := in.ResolvedLocation(); loc != "" {
		parts = append(parts, "near "+loc)
	}
	if in.HoursOld > 0 {
		if in.HoursOld <= 24 {
			parts = append(parts, "since yesterday")
		} else {
			parts = append(parts, fmt.Sprintf("in the last %d days", (in.HoursOld+23)/24))
		}
	}
	if in.IsRemote {
		parts = append(parts, "remote")
	}
	return strings.Join(parts, " ")
}

// parsePayload decodes the jspb blob (or the inline search page script) and
// walks it for the listing array.
func (s *Google) parsePayload(body []byte, in *model.ScraperInput, seen seenSet) []*model.JobPost {
	text := strings.TrimPrefix(strings.TrimSpace(string(body)), ")]}'")

	// Inline search pages wrap the blob in script tags; find the widest
	// JSON-looking region.
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return nil
	}
	end := strings.LastIndexAny(text, "]}")
	if end <= start {
		return nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(text[start:end+1]), &decoded); err != nil {
		// Search pages carry the blob inside quoted script state; fall
		// back to scanning line by line for a decodable array.
		decoded = decodeFirstArray(text)
		if decoded == nil {
			s.logger.Debug("no decodable payload in response")
			return nil
		}
	}

	listings, ok := findKey(decoded, googleJobsKey)
	if !ok {
		return nil
	}
	arr, ok := listings.([]any)
	if !ok {
		return nil
	}

	var jobs []*model.JobPost
	for _, raw := range arr {
		entry, ok := raw.([]any)
		if !ok {
			continue
		}
		job := s.buildJob(entry, in)
		if job == nil || !seen.add(job.JobURL) {
			continue
		}
		if err := job.Validate(); err != nil {
			s.logger.Debug("dropping invalid job", "id", job.ID, "error", err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// buildJob reads the positional fields of one listing tuple.
func (s *Google) buildJob(entry []any, in *model.ScraperInput) *model.JobPost {
	title := stringAt(entry, 0)
	company := stringAt(entry, 1)
	id := stringAt(entry, 28)
	if title == "" || id == "" {
		return nil
	}

	job := &model.JobPost{
		ID:          "go-" + id,
		Title:       title,
		CompanyName: company,
	}

	if locText := stringAt(entry, 2); locText != "" {
		if strings.EqualFold(locText, "anywhere") {
			job.IsRemote = model.BoolPtr(true)
		} else {
			job.Location = parseLinkedInLocation(locText)
		}
	}

	// URLs live at [3][0][0].
	if links, ok := indexAt(entry, 3).([]any); ok {
		if first, ok := indexAt(links, 0).([]any); ok {
			job.JobURL = stringAt(first, 0)
		}
	}
	if job.JobURL == "" {
		return nil
	}

	if ago := stringAt(entry, 12); ago != "" {
		if t, ok := parseDaysAgo(ago); ok {
			job.DatePosted = &t
		}
	}

	if desc := stringAt(entry, 19); desc != "" {
		rendered, plain := formatDescription(desc, in.Format)
		job.Description = rendered
		enrich(job, plain)
		if job.IsRemote == nil && mentionsRemote(plain) {
			job.IsRemote = model.BoolPtr(true)
		}
	}
	return job
}

// findKey walks a decoded JSON value depth-first for the first map entry
// with the given key.
func findKey(v any, key string) (any, bool) {
	switch node := v.(type) {
	case map[string]any:
		if found, ok := node[key]; ok {
			return found, true
		}
		for _, child := range node {
			if found, ok := findKey(child, key); ok {
				return found, true
			}
		}
	case []any:
		for _, child := range node {
			if found, ok := findKey(child, key); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// decodeFirstArray scans each line for a decodable JSON array. Callback
// responses put the whole payload on one line.
func decodeFirstArray(text string) any {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[") {
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(line), &decoded); err == nil {
			return decoded
		}
	}
	return nil
}

// extractCursor pulls the next data-async-fc token, empty when the chain
// has ended.
func extractCursor(body []byte) string {
	m := googleCursorRegex.FindSubmatch(body)
	if m == nil {
		return ""
	}
	return string(m[1])
}

var daysAgoRegex = regexp.MustCompile(`(\d+)\s*day`)

// parseDaysAgo turns "3 days ago" into a UTC midnight date.
func parseDaysAgo(text string) (time.Time, bool) {
	m := daysAgoRegex.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	var days int
	fmt.Sscanf(m[1], "%d", &days)
	return time.Now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour), true
}

// stringAt returns entry[i] as a string when present.
func stringAt(entry []any, i int) string {
	s, _ := indexAt(entry, i).(string)
	return s
}

// indexAt returns entry[i] or nil when out of range.
func indexAt(entry []any, i int) any {
	if i < 0 || i >= len(entry) {
		return nil
	}
	return entry[i]
}
