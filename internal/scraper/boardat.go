package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jobharvest/jobharvest/internal/cache"
	"github.com/jobharvest/jobharvest/internal/model"
	"github.com/jobharvest/jobharvest/internal/session"
)

// Column names of the shared view, mapped to canonical JobPost fields.
const (
	atColumnField    = "Field"
	atColumnDate     = "Discovered"
	atColumnTitle    = "Job Title"
	atColumnURL      = "Position Link"
	atColumnCompany  = "Company"
	atColumnDesc     = "Requirements"
	atColumnLocation = "Location"
	atColumnIndustry = "Company Industry"
	atColumnNativeID = "Job ID"
)

var boardATHeaders = map[string]string{
	"User-Agent":       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Accept":           "application/json",
	"x-requested-with": "XMLHttpRequest",
	"x-time-zone":      "UTC",
}

// BoardAT reads a community-curated shared Airtable view. Unlike the other
// boards it is a single fetch: the view endpoint returns all columns and
// rows, and filtering happens locally.
type BoardAT struct {
	factory *session.Factory
	client  *http.Client
	cache   cache.Cache
	logger  *slog.Logger
	viewURL string
}

var _ model.Scraper = (*BoardAT)(nil)

// NewBoardAT creates the shared-view scraper. viewURL is the full
// readSharedViewData endpoint for the deployment's board.
func NewBoardAT(f *session.Factory, viewURL string, c cache.Cache, logger *slog.Logger) *BoardAT {
	if c == nil {
		c = cache.Nop{}
	}
	return &BoardAT{
		factory: f,
		client:  f.Client(session.ProfileDefault),
		cache:   c,
		logger:  logger.With("board", model.BoardAT),
		viewURL: viewURL,
	}
}

// atViewData mirrors the readSharedViewData response slice we consume.
type atViewData struct {
	Data struct {
		Table struct {
			Columns []atColumn `json:"columns"`
			Rows    []atRow    `json:"rows"`
		} `json:"table"`
	} `json:"data"`
}

type atColumn struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TypeOptions *struct {
		Choices map[string]struct {
			Name string `json:"name"`
		} `json:"choices"`
	} `json:"typeOptions"`
}

type atRow struct {
	ID                   string         `json:"id"`
	CreatedTime          time.Time      `json:"createdTime"`
	CellValuesByColumnID map[string]any `json:"cellValuesByColumnId"`
}

// Scrape fetches the shared view once and filters rows by the caller's
// position and age window.
func (s *BoardAT) Scrape(ctx context.Context, in *model.ScraperInput) (*model.JobResponse, error) {
	if in.ResultsWanted <= 0 {
		return &model.JobResponse{}, nil
	}
	if s.viewURL == "" {
		return nil, fmt.Errorf("board-at view URL not configured")
	}

	var view atViewData
	if cached, ok := s.cache.Get(ctx, "at:view:"+s.viewURL); ok {
		if err := json.Unmarshal([]byte(cached), &view); err != nil {
			view = atViewData{}
		}
	}
	if len(view.Data.Table.Columns) == 0 {
		body, err := s.factory.Get(ctx, s.client, s.viewURL, boardATHeaders)
		if err != nil {
			if session.BlockedStatus(err) {
				return nil, &model.BlockedError{Board: model.BoardAT, Reason: "shared view rejected", Err: err}
			}
			return nil, fmt.Errorf("board-at view: %w", err)
		}
		if err := json.Unmarshal(body, &view); err != nil {
			return nil, &model.ParseError{Board: model.BoardAT, What: "shared view data", Err: err}
		}
		s.cache.Set(ctx, "at:view:"+s.viewURL, string(body), 10*time.Minute)
	}

	table := view.Data.Table
	byName := make(map[string]atColumn, len(table.Columns))
	for _, col := range table.Columns {
		byName[col.Name] = col
	}

	fieldCol, ok := byName[atColumnField]
	if !ok {
		return nil, &model.ParseError{Board: model.BoardAT, What: "columns", Err: fmt.Errorf("no %q column in view", atColumnField)}
	}
	allowed := allowedChoices(fieldCol, in.Position)
	if len(allowed) == 0 {
		s.logger.Warn("position matches no field choices", "position", in.Position)
		return &model.JobResponse{}, nil
	}

	cutoff := time.Time{}
	if in.HoursOld > 0 {
		cutoff = time.Now().UTC().Add(-time.Duration(in.HoursOld) * time.Hour)
	}

	var jobs []*model.JobPost
	for _, row := range table.Rows {
		if !rowInChoices(row, fieldCol.ID, allowed) {
			continue
		}
		if !cutoff.IsZero() && row.CreatedTime.Before(cutoff) {
			continue
		}
		job := s.buildJob(row, byName, in)
		if job == nil {
			continue
		}
		if err := job.Validate(); err != nil {
			s.logger.Debug("dropping invalid row", "row", row.ID, "error", err)
			continue
		}
		jobs = append(jobs, job)
		if len(jobs) >= in.ResultsWanted {
			break
		}
	}

	s.logger.Info("scrape complete", "jobs", len(jobs))
	return &model.JobResponse{Jobs: jobs}, nil
}

// allowedChoices returns the choice ids whose names contain the position,
// case-insensitively.
func allowedChoices(col atColumn, position string) map[string]struct{} {
	allowed := make(map[string]struct{})
	if col.TypeOptions == nil || position == "" {
		return allowed
	}
	needle := strings.ToLower(position)
	for id, choice := range col.TypeOptions.Choices {
		if strings.Contains(strings.ToLower(choice.Name), needle) {
			allowed[id] = struct{}{}
		}
	}
	return allowed
}

// rowInChoices reports whether the row's field cell holds one of the
// allowed choice ids. Cells are a single id or a list of ids.
func rowInChoices(row atRow, columnID string, allowed map[string]struct{}) bool {
	cell, ok := row.CellValuesByColumnID[columnID]
	if !ok {
		return false
	}
	switch v := cell.(type) {
	case string:
		_, ok := allowed[v]
		return ok
	case []any:
		for _, item := range v {
			if id, ok := item.(string); ok {
				if _, ok := allowed[id]; ok {
					return true
				}
			}
		}
	}
	return false
}

func (s *BoardAT) buildJob(row atRow, byName map[string]atColumn, in *model.ScraperInput) *model.JobPost {
	cell := func(name string) string {
		col, ok := byName[name]
		if !ok {
			return ""
		}
		return cellText(row.CellValuesByColumnID[col.ID])
	}

	nativeID := cell(atColumnNativeID)
	if nativeID == "" {
		nativeID = row.ID
	}

	job := &model.JobPost{
		ID:              "at-" + nativeID,
		Title:           cell(atColumnTitle),
		CompanyName:     cell(atColumnCompany),
		CompanyIndustry: cell(atColumnIndustry),
		JobURL:          cell(atColumnURL),
	}

	if raw := cell(atColumnDate); raw != "" {
		if t, ok := parseATDate(raw); ok {
			job.DatePosted = &t
		}
	}
	if job.DatePosted == nil && !row.CreatedTime.IsZero() {
		t := row.CreatedTime.UTC()
		job.DatePosted = &t
	}

	if locText := cell(atColumnLocation); locText != "" {
		if mentionsRemote(locText) {
			job.IsRemote = model.BoolPtr(true)
		} else {
			job.Location = parseLinkedInLocation(locText)
		}
	}

	if desc := cell(atColumnDesc); desc != "" {
		rendered, plain := formatDescription(desc, in.Format)
		job.Description = rendered
		enrich(job, plain)
	}
	return job
}

// cellText flattens a cell value to a string. Rich cells arrive as lists
// or nested maps with a name key.
func cellText(cell any) string {
	switch v := cell.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	case map[string]any:
		if name, ok := v["name"].(string); ok {
			return strings.TrimSpace(name)
		}
	case []any:
		var parts []string
		for _, item := range v {
			if text := cellText(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// parseATDate accepts the date shapes the shared view emits.
func parseATDate(raw string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "1/2/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
