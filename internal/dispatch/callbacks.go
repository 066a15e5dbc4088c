package dispatch

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jobharvest/jobharvest/internal/model"
)

// Callback is one inline-button press forwarded by the sink.
type Callback struct {
	ChatID    int64
	MessageID int
	Data      string // "like:<id>", "dislike:<id>", or a bare job id
}

// Mux routes callbacks by their data prefix. A like sets the reaction and
// records the signal on the stored job; a dislike only sets the reaction;
// a bare job id re-sends the job card.
type Mux struct {
	sink   Sink
	store  model.JobStore
	logger *slog.Logger
}

// NewMux creates the callback router.
func NewMux(sink Sink, store model.JobStore, logger *slog.Logger) *Mux {
	return &Mux{sink: sink, store: store, logger: logger}
}

// Handle processes one callback. Returns true when the data matched a
// known shape.
func (m *Mux) Handle(ctx context.Context, cb Callback) bool {
	switch {
	case strings.HasPrefix(cb.Data, "like:"):
		m.react(ctx, cb, emojiLike)
		m.recordLike(ctx, strings.TrimPrefix(cb.Data, "like:"))
		return true
	case strings.HasPrefix(cb.Data, "dislike:"):
		m.react(ctx, cb, emojiDislike)
		return true
	case cb.Data != "":
		return m.resend(ctx, cb)
	}
	return false
}

func (m *Mux) react(ctx context.Context, cb Callback, emoji string) {
	if err := m.sink.SetMessageReaction(ctx, cb.ChatID, cb.MessageID, emoji); err != nil {
		m.logger.Warn("set reaction failed", "chat_id", cb.ChatID, "message_id", cb.MessageID, "error", err)
	}
}

// recordLike marks the stored job as liked. The write is out-of-band with
// the scrape path, so a missing job is only logged.
func (m *Mux) recordLike(ctx context.Context, jobID string) {
	job, err := m.store.FindByID(ctx, jobID)
	if err != nil {
		m.logger.Warn("lookup for like failed", "job", jobID, "error", err)
		return
	}
	if job == nil {
		m.logger.Warn("liked job not in store", "job", jobID)
		return
	}
	job.Liked = true
	if _, err := m.store.Update(ctx, job); err != nil {
		m.logger.Warn("recording like failed", "job", jobID, "error", err)
	}
}

// resend pulls the job by id and sends it as a fresh card.
func (m *Mux) resend(ctx context.Context, cb Callback) bool {
	job, err := m.store.FindByID(ctx, cb.Data)
	if err != nil || job == nil {
		m.logger.Warn("callback job not found", "job", cb.Data, "error", err)
		return false
	}
	if _, err := m.sink.SendJob(ctx, cb.ChatID, job); err != nil {
		m.logger.Warn("resend failed", "job", cb.Data, "error", err)
	}
	return true
}
