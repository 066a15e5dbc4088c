// Package config loads the harvester configuration: secrets come from the
// environment and fail fast when missing, saved searches come from a YAML
// file with environment variables expanded before parsing.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jobharvest/jobharvest/internal/model"
)

// Config is the root configuration for the harvester.
type Config struct {
	Env         string // "production" or "development"
	MongoURI    string
	MongoDBName string
	SQLitePath  string // fallback store when MongoURI is empty
	RedisURL    string // optional lookup cache
	Telegram    TelegramConfig
	CronSpec    string
	Proxies     []string
	HTTPTimeout time.Duration
	BoardAT     BoardATConfig
	Searches    []SearchConfig
}

// TelegramConfig holds the chat sink settings.
type TelegramConfig struct {
	Token   string
	ChatIDs []int64
}

// BoardATConfig points at the shared view deployment.
type BoardATConfig struct {
	ViewURL  string `yaml:"view_url"`
	Position string `yaml:"position"`
}

// SearchConfig is one saved search executed on every scheduler tick.
type SearchConfig struct {
	Sites         []string `yaml:"sites"`
	SearchTerm    string   `yaml:"search_term"`
	GoogleTerm    string   `yaml:"google_search_term"`
	Location      string   `yaml:"location"`
	Country       string   `yaml:"country"`
	Distance      int      `yaml:"distance"`
	IsRemote      bool     `yaml:"is_remote"`
	JobType       string   `yaml:"job_type"`
	ResultsWanted int      `yaml:"results_wanted"`
	HoursOld      int      `yaml:"hours_old"`
	FilterTitles  []string `yaml:"filter_titles"`
	FetchLinkedIn bool     `yaml:"linkedin_fetch_description"`
}

// rawConfig is used for YAML unmarshaling.
type rawConfig struct {
	CronSpec    string         `yaml:"cron"`
	HTTPTimeout string         `yaml:"http_timeout"`
	Proxies     []string       `yaml:"proxies"`
	BoardAT     BoardATConfig  `yaml:"board_at"`
	Searches    []SearchConfig `yaml:"searches"`
}

// Load assembles the configuration from the environment and the YAML file
// at path. An empty path loads environment-only configuration with no
// saved searches.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Env:         envOr("ENV", "development"),
		MongoURI:    os.Getenv("MONGO_URI"),
		MongoDBName: os.Getenv("MONGO_DB_NAME"),
		SQLitePath:  envOr("SQLITE_PATH", "jobharvest.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
		CronSpec:    "0 * * * *",
		HTTPTimeout: 10 * time.Second,
	}

	token, err := requireEnv("TELEGRAM_API_TOKEN")
	if err != nil {
		return nil, err
	}
	cfg.Telegram.Token = token

	rawChats, err := requireEnv("TELEGRAM_CHAT_ID")
	if err != nil {
		return nil, err
	}
	cfg.Telegram.ChatIDs, err = parseChatIDs(rawChats)
	if err != nil {
		return nil, err
	}

	if cfg.MongoURI != "" && cfg.MongoDBName == "" {
		return nil, fmt.Errorf("MONGO_DB_NAME is required when MONGO_URI is set")
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if raw.CronSpec != "" {
		c.CronSpec = raw.CronSpec
	}
	if raw.HTTPTimeout != "" {
		d, err := time.ParseDuration(raw.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("parse http_timeout %q: %w", raw.HTTPTimeout, err)
		}
		c.HTTPTimeout = d
	}
	c.Proxies = raw.Proxies
	c.BoardAT = raw.BoardAT
	c.Searches = raw.Searches

	for i, search := range c.Searches {
		if search.SearchTerm == "" && search.GoogleTerm == "" {
			return fmt.Errorf("searches[%d]: search_term is required", i)
		}
		if _, err := search.ToInput(c.BoardAT.Position); err != nil {
			return fmt.Errorf("searches[%d]: %w", i, err)
		}
	}
	return nil
}

// ToInput converts one saved search into a scraper input.
func (s SearchConfig) ToInput(position string) (*model.ScraperInput, error) {
	in := model.NewScraperInput()
	in.SearchTerm = s.SearchTerm
	in.GoogleSearchTerm = s.GoogleTerm
	in.Location = s.Location
	in.IsRemote = s.IsRemote
	in.FilterByTitle = s.FilterTitles
	in.LinkedInFetchDescription = s.FetchLinkedIn
	in.Position = position

	if s.Distance > 0 {
		in.Distance = s.Distance
	}
	if s.ResultsWanted > 0 {
		in.ResultsWanted = s.ResultsWanted
	}
	if s.HoursOld > 0 {
		in.HoursOld = s.HoursOld
	}

	for _, site := range s.Sites {
		board, err := model.BoardFromString(site)
		if err != nil {
			return nil, err
		}
		in.Boards = append(in.Boards, board)
	}

	if s.Country != "" {
		country, err := model.CountryFromString(s.Country)
		if err != nil {
			return nil, err
		}
		in.Country = country
	}

	if s.JobType != "" {
		jt, ok := model.JobTypeFromString(s.JobType)
		if !ok {
			return nil, fmt.Errorf("unknown job_type %q", s.JobType)
		}
		in.JobType = &jt
	}
	return in, nil
}

// parseChatIDs splits a comma-separated chat id list.
func parseChatIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse chat id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID holds no chat ids")
	}
	return ids, nil
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
