package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// JobPost is the canonical, board-independent representation of a single
// job posting. It is created by a scraper, validated once, and immutable
// afterwards: the store writes it on first sight and never mutates it.
type JobPost struct {
	ID              string        `json:"id" bson:"_id"` // "<board>-<board-native-id>"
	Title           string        `json:"title" bson:"title"`
	CompanyName     string        `json:"company_name,omitempty" bson:"company_name,omitempty"`
	CompanyURL      string        `json:"company_url,omitempty" bson:"company_url,omitempty"`
	CompanyIndustry string        `json:"company_industry,omitempty" bson:"company_industry,omitempty"`
	JobURL          string        `json:"job_url" bson:"job_url"`
	JobURLDirect    string        `json:"job_url_direct,omitempty" bson:"job_url_direct,omitempty"`
	Location        *Location     `json:"location,omitempty" bson:"location,omitempty"`
	Description     string        `json:"description,omitempty" bson:"description,omitempty"`
	JobTypes        []JobType     `json:"job_type,omitempty" bson:"job_type,omitempty"`
	Compensation    *Compensation `json:"compensation,omitempty" bson:"compensation,omitempty"`
	DatePosted      *time.Time    `json:"date_posted,omitempty" bson:"-"` // elided from stored documents
	IsRemote        *bool         `json:"is_remote,omitempty" bson:"is_remote,omitempty"`
	Emails          []string      `json:"emails,omitempty" bson:"emails,omitempty"`
	NumUrgentWords  int           `json:"num_urgent_words,omitempty" bson:"num_urgent_words,omitempty"`
	Benefits        string        `json:"benefits,omitempty" bson:"benefits,omitempty"`
	Liked           bool          `json:"liked,omitempty" bson:"liked,omitempty"` // user signal recorded via callbacks, outside the scrape path
}

// Validate checks the JobPost invariants. Scrapers drop records that fail.
func (j *JobPost) Validate() error {
	if j.ID == "" {
		return &ValidationError{Field: "id", Reason: "empty"}
	}
	if j.Title == "" {
		return &ValidationError{Field: "title", Reason: "empty"}
	}
	u, err := url.Parse(j.JobURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "job_url", Reason: fmt.Sprintf("not an absolute http(s) URL: %q", j.JobURL)}
	}
	if c := j.Compensation; c != nil && c.MinAmount != nil && c.MaxAmount != nil && *c.MinAmount > *c.MaxAmount {
		return &ValidationError{Field: "compensation", Reason: fmt.Sprintf("min %d > max %d", *c.MinAmount, *c.MaxAmount)}
	}
	if j.DatePosted != nil && j.DatePosted.After(time.Now().Add(24*time.Hour)) {
		return &ValidationError{Field: "date_posted", Reason: "lies in the future"}
	}
	return nil
}

// JobResponse is the result of one board scrape.
type JobResponse struct {
	Jobs []*JobPost
}

// Location is the structured place a job is attached to. All fields are
// optional; boards differ in what they expose.
type Location struct {
	Country *Country `json:"country,omitempty" bson:"country,omitempty"`
	City    string   `json:"city,omitempty" bson:"city,omitempty"`
	State   string   `json:"state,omitempty" bson:"state,omitempty"`
}

// DisplayLocation renders "City, State, COUNTRY" skipping empty parts.
// USA and UK render uppercased, other countries title-cased, and the
// synthetic WORLDWIDE / US_CANADA members render no country at all.
func (l *Location) DisplayLocation() string {
	if l == nil {
		return ""
	}
	var parts []string
	if l.City != "" {
		parts = append(parts, l.City)
	}
	if l.State != "" {
		parts = append(parts, l.State)
	}
	if l.Country != nil {
		if tok := l.Country.displayToken(); tok != "" {
			parts = append(parts, tok)
		}
	}
	return strings.Join(parts, ", ")
}

// CompensationInterval is the pay period a compensation range refers to.
type CompensationInterval string

const (
	IntervalYearly  CompensationInterval = "yearly"
	IntervalMonthly CompensationInterval = "monthly"
	IntervalWeekly  CompensationInterval = "weekly"
	IntervalDaily   CompensationInterval = "daily"
	IntervalHourly  CompensationInterval = "hourly"
)

// IntervalFromUnit maps board-specific pay period tokens (YEAR, per hour,
// Annually, ...) onto the canonical interval. Returns "" when unknown.
func IntervalFromUnit(unit string) CompensationInterval {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "year", "yearly", "annual", "annually", "annum":
		return IntervalYearly
	case "month", "monthly":
		return IntervalMonthly
	case "week", "weekly":
		return IntervalWeekly
	case "day", "daily":
		return IntervalDaily
	case "hour", "hourly":
		return IntervalHourly
	}
	return ""
}

// Compensation is a salary range attached to a posting.
type Compensation struct {
	Interval  CompensationInterval `json:"interval,omitempty" bson:"interval,omitempty"`
	MinAmount *int                 `json:"min_amount,omitempty" bson:"min_amount,omitempty"`
	MaxAmount *int                 `json:"max_amount,omitempty" bson:"max_amount,omitempty"`
	Currency  string               `json:"currency,omitempty" bson:"currency,omitempty"`
}

// NewCompensation builds a range with min/max normalized so that min ≤ max
// regardless of the order the board reported them in.
func NewCompensation(interval CompensationInterval, minAmount, maxAmount *int, currency string) *Compensation {
	if minAmount != nil && maxAmount != nil && *minAmount > *maxAmount {
		minAmount, maxAmount = maxAmount, minAmount
	}
	if currency == "" {
		currency = "USD"
	}
	return &Compensation{Interval: interval, MinAmount: minAmount, MaxAmount: maxAmount, Currency: currency}
}

// IntPtr is a small helper for optional numeric fields.
func IntPtr(v int) *int { return &v }

// BoolPtr is a small helper for tri-state boolean fields.
func BoolPtr(v bool) *bool { return &v }
