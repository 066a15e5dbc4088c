// Package dispatch delivers newly-seen jobs to chat channels and routes
// the reaction callbacks that come back. Delivery is best-effort: a failed
// send is logged and the run continues.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jobharvest/jobharvest/internal/model"
)

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string // callback payload
}

// Sink is the chat channel the dispatcher writes to.
type Sink interface {
	// SendMessage sends text with an optional inline keyboard and returns
	// the message id.
	SendMessage(ctx context.Context, chatID int64, text string, buttons [][]Button) (int, error)
	// SendJob sends one formatted job card with its reaction keyboard.
	SendJob(ctx context.Context, chatID int64, job *model.JobPost) (int, error)
	// SetMessageReaction sets an emoji reaction on a previously sent message.
	SetMessageReaction(ctx context.Context, chatID int64, messageID int, emoji string) error
}

const (
	emojiLike    = "👍"
	emojiDislike = "👎"
)

// ReactionButtons is the feedback row attached to every job card.
func ReactionButtons(jobID string) [][]Button {
	return [][]Button{{
		{Text: emojiLike, Data: "like:" + jobID},
		{Text: emojiDislike, Data: "dislike:" + jobID},
	}}
}

// FormatJob renders the compact card text for one job.
func FormatJob(job *model.JobPost) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s", job.ID, job.Title)
	if job.CompanyName != "" {
		fmt.Fprintf(&b, " @ %s", job.CompanyName)
	}
	if loc := job.Location.DisplayLocation(); loc != "" {
		fmt.Fprintf(&b, "\n%s", loc)
	} else if job.IsRemote != nil && *job.IsRemote {
		b.WriteString("\nRemote")
	}
	fmt.Fprintf(&b, "\n%s", job.JobURL)
	return b.String()
}

// Dispatcher fans jobs out to the configured chats.
type Dispatcher struct {
	sink    Sink
	store   model.JobStore
	chatIDs []int64
	logger  *slog.Logger
}

// New creates a dispatcher writing to every chat in chatIDs.
func New(sink Sink, store model.JobStore, chatIDs []int64, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, store: store, chatIDs: chatIDs, logger: logger}
}

// DispatchNew sends each job as its own card, strictly in order within a
// chat so the channel reads newest-run-first top to bottom. A failed send
// skips that job and moves on.
func (d *Dispatcher) DispatchNew(ctx context.Context, jobs []*model.JobPost) {
	for _, chatID := range d.chatIDs {
		sent := 0
		for _, job := range jobs {
			if ctx.Err() != nil {
				return
			}
			if _, err := d.sink.SendJob(ctx, chatID, job); err != nil {
				d.logger.Warn("job send failed", "chat_id", chatID, "job", job.ID, "error", err)
				continue
			}
			sent++
		}
		d.logger.Info("dispatched jobs", "chat_id", chatID, "sent", sent, "total", len(jobs))
	}
}

// DispatchFiltered sends one summary message per chat for title-filtered
// jobs, with a button per job so a human can pull any of them up anyway.
func (d *Dispatcher) DispatchFiltered(ctx context.Context, jobs []*model.JobPost) {
	if len(jobs) == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d filtered by title:\n", len(jobs))
	buttons := make([][]Button, 0, len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(&b, "- %s", job.Title)
		if job.CompanyName != "" {
			fmt.Fprintf(&b, " @ %s", job.CompanyName)
		}
		b.WriteString("\n")
		buttons = append(buttons, []Button{{Text: job.Title, Data: job.ID}})
	}

	for _, chatID := range d.chatIDs {
		if ctx.Err() != nil {
			return
		}
		if _, err := d.sink.SendMessage(ctx, chatID, b.String(), buttons); err != nil {
			d.logger.Warn("filtered summary send failed", "chat_id", chatID, "error", err)
		}
	}
}
