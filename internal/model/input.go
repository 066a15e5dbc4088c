package model

import (
	"fmt"
	"strings"
)

// Board identifies one external job source.
type Board string

const (
	BoardLinkedIn     Board = "linkedin"
	BoardIndeed       Board = "indeed"
	BoardZipRecruiter Board = "zip_recruiter"
	BoardGlassdoor    Board = "glassdoor"
	BoardGoogle       Board = "google"
	BoardAT           Board = "board_at"
)

// AllBoards lists every supported board in registry order.
var AllBoards = []Board{
	BoardLinkedIn, BoardIndeed, BoardZipRecruiter,
	BoardGlassdoor, BoardGoogle, BoardAT,
}

// Prefix returns the fingerprint prefix for job ids of this board. Ids from
// different boards always differ in prefix.
func (b Board) Prefix() string {
	switch b {
	case BoardLinkedIn:
		return "li"
	case BoardIndeed:
		return "in"
	case BoardZipRecruiter:
		return "zr"
	case BoardGlassdoor:
		return "gd"
	case BoardGoogle:
		return "go"
	case BoardAT:
		return "at"
	}
	return "xx"
}

// BoardFromString resolves a user-facing board name ("linkedin", "zip",
// "ziprecruiter", ...) to a Board.
func BoardFromString(s string) (Board, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linkedin":
		return BoardLinkedIn, nil
	case "indeed":
		return BoardIndeed, nil
	case "zip", "ziprecruiter", "zip_recruiter":
		return BoardZipRecruiter, nil
	case "glassdoor":
		return BoardGlassdoor, nil
	case "google", "google_jobs":
		return BoardGoogle, nil
	case "board_at", "boardat", "airtable":
		return BoardAT, nil
	}
	return "", fmt.Errorf("invalid board %q", s)
}

// DescriptionFormat selects how scraped descriptions are rendered.
type DescriptionFormat string

const (
	FormatMarkdown DescriptionFormat = "markdown"
	FormatHTML     DescriptionFormat = "html"
)

// ScraperInput is the request contract for one aggregation run.
type ScraperInput struct {
	Boards           []Board
	Country          Country
	SearchTerm       string
	GoogleSearchTerm string
	Location         string
	Locations        []string
	Distance         int // miles; 0 means board default
	IsRemote         bool
	JobType          *JobType
	EasyApply        *bool
	Offset           int
	ResultsWanted    int
	HoursOld         int // 0 means no age filter
	Format           DescriptionFormat
	FilterByTitle    []string // case-insensitive substring/regex patterns diverting matches to the filtered partition

	LinkedInFetchDescription bool
	LinkedInCompanyIDs       []int

	// Board-AT collaborator inputs.
	Position string // user's position used to select allowed Field choices
}

// NewScraperInput applies the contract defaults: USA market, 15 results,
// markdown descriptions, all boards when none are named.
func NewScraperInput() *ScraperInput {
	return &ScraperInput{
		Country:       USA,
		ResultsWanted: 15,
		Format:        FormatMarkdown,
	}
}

// ResolvedLocation returns the single location for this run, preferring the
// explicit Location over the first entry of Locations.
func (in *ScraperInput) ResolvedLocation() string {
	if in.Location != "" {
		return in.Location
	}
	if len(in.Locations) > 0 {
		return in.Locations[0]
	}
	return ""
}
