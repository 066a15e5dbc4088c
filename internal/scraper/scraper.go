// Package scraper implements one scraper per job board behind the common
// model.Scraper contract. Each board keeps its endpoint catalog and header
// set beside its implementation; all share the session factory for clients,
// proxies, and retries.
package scraper

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jobharvest/jobharvest/internal/cache"
	"github.com/jobharvest/jobharvest/internal/model"
	"github.com/jobharvest/jobharvest/internal/session"
)

// Constructor builds one board scraper over the shared session factory.
type Constructor func(f *session.Factory, logger *slog.Logger) model.Scraper

// Options carries the per-deployment knobs some boards need.
type Options struct {
	BoardATViewURL string      // shared Airtable view base URL
	Cache          cache.Cache // optional lookup cache; nil degrades to direct fetch
}

// Registry maps each board to its constructor. The coordinator resolves
// ScraperInput.Boards against it.
func Registry(opts Options) map[model.Board]Constructor {
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	return map[model.Board]Constructor{
		model.BoardLinkedIn: func(f *session.Factory, l *slog.Logger) model.Scraper {
			return NewLinkedIn(f, l)
		},
		model.BoardIndeed: func(f *session.Factory, l *slog.Logger) model.Scraper {
			return NewIndeed(f, l)
		},
		model.BoardZipRecruiter: func(f *session.Factory, l *slog.Logger) model.Scraper {
			return NewZipRecruiter(f, l)
		},
		model.BoardGlassdoor: func(f *session.Factory, l *slog.Logger) model.Scraper {
			return NewGlassdoor(f, opts.Cache, l)
		},
		model.BoardGoogle: func(f *session.Factory, l *slog.Logger) model.Scraper {
			return NewGoogle(f, l)
		},
		model.BoardAT: func(f *session.Factory, l *slog.Logger) model.Scraper {
			return NewBoardAT(f, opts.BoardATViewURL, opts.Cache, l)
		},
	}
}

// seenSet tracks job URLs already emitted within a single scrape so a board
// that repeats a posting across pages yields it once. First occurrence wins.
type seenSet map[string]struct{}

func (s seenSet) add(url string) bool {
	if _, ok := s[url]; ok {
		return false
	}
	s[url] = struct{}{}
	return true
}

// sleepFunc lets tests replace the inter-page politeness delay.
type sleepFunc func(time.Duration)

// uniformDelay returns a random duration in [base, base+spread).
func uniformDelay(base, spread time.Duration) time.Duration {
	return base + time.Duration(rand.Float64()*float64(spread))
}
