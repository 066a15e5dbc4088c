package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jobharvest/jobharvest/internal/dispatch"
	"github.com/jobharvest/jobharvest/internal/model"
)

var (
	scrapeSites   []string
	scrapeTerm    string
	scrapeLoc     string
	scrapeWanted  int
	scrapeHours   int
	scrapeRemote  bool
	scrapePersist bool
	scrapeNotify  bool
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	companyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one search and print the results",
	Long:  "Run a single ad-hoc search across the given boards and print the postings; optionally persist and notify like a scheduled run.",
	RunE:  runScrape,
}

func init() {
	scrapeCmd.Flags().StringSliceVar(&scrapeSites, "sites", nil, "boards to query (default: all)")
	scrapeCmd.Flags().StringVar(&scrapeTerm, "term", "", "search term (required)")
	scrapeCmd.Flags().StringVar(&scrapeLoc, "location", "", "location text")
	scrapeCmd.Flags().IntVar(&scrapeWanted, "results", 15, "results wanted per board")
	scrapeCmd.Flags().IntVar(&scrapeHours, "hours-old", 0, "only postings newer than this many hours")
	scrapeCmd.Flags().BoolVar(&scrapeRemote, "remote", false, "remote-only search")
	scrapeCmd.Flags().BoolVar(&scrapePersist, "persist", false, "write results to the job store")
	scrapeCmd.Flags().BoolVar(&scrapeNotify, "notify", false, "dispatch unseen results to Telegram (implies --persist)")
	_ = scrapeCmd.MarkFlagRequired("term")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	in := model.NewScraperInput()
	in.SearchTerm = scrapeTerm
	in.Location = scrapeLoc
	in.ResultsWanted = scrapeWanted
	in.HoursOld = scrapeHours
	in.IsRemote = scrapeRemote
	in.Position = cfg.BoardAT.Position
	for _, site := range scrapeSites {
		board, err := model.BoardFromString(site)
		if err != nil {
			return err
		}
		in.Boards = append(in.Boards, board)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lookupCache := setupCache(ctx, cfg, logger)
	coord := setupCoordinator(cfg, lookupCache, logger)

	filtered, remaining := coord.ScrapeJobs(ctx, in)
	jobs := remaining

	if scrapePersist || scrapeNotify {
		jobStore, err := setupStore(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		defer jobStore.Close(context.Background())

		seen, newJobs, err := jobStore.InsertManyIfNotFound(ctx, remaining)
		if err != nil {
			logger.Error("persisting results failed", "error", err)
			os.Exit(1)
		}
		logger.Info("persisted results", "seen", len(seen), "new", len(newJobs))
		jobs = newJobs

		if scrapeNotify {
			sink, err := dispatch.NewTelegram(cfg.Telegram.Token, logger)
			if err != nil {
				logger.Error("failed to set up telegram", "error", err)
				os.Exit(1)
			}
			dispatcher := dispatch.New(sink, jobStore, cfg.Telegram.ChatIDs, logger)
			dispatcher.DispatchNew(ctx, newJobs)
			dispatcher.DispatchFiltered(ctx, filtered)
		}
	}

	printJobs(jobs)
	if len(filtered) > 0 {
		fmt.Println(dimStyle.Render(fmt.Sprintf("%d more filtered by title", len(filtered))))
	}
	return nil
}

func printJobs(jobs []*model.JobPost) {
	if len(jobs) == 0 {
		fmt.Println(dimStyle.Render("no jobs found"))
		return
	}
	for _, job := range jobs {
		var b strings.Builder
		b.WriteString(titleStyle.Render(job.Title))
		if job.CompanyName != "" {
			b.WriteString("  " + companyStyle.Render(job.CompanyName))
		}
		b.WriteString("\n")
		if loc := job.Location.DisplayLocation(); loc != "" {
			b.WriteString(loc + "  ")
		} else if job.IsRemote != nil && *job.IsRemote {
			b.WriteString("Remote  ")
		}
		b.WriteString(dimStyle.Render(job.ID))
		b.WriteString("\n" + job.JobURL + "\n")
		fmt.Println(b.String())
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("%d jobs", len(jobs))))
}
