package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jobharvest/jobharvest/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMessage struct {
	chatID  int64
	text    string
	buttons [][]Button
}

type sentJob struct {
	chatID int64
	jobID  string
}

type reaction struct {
	chatID    int64
	messageID int
	emoji     string
}

// fakeSink records everything sent through it. failJobs lists job ids
// whose SendJob call should fail.
type fakeSink struct {
	messages  []sentMessage
	jobs      []sentJob
	reactions []reaction
	failJobs  map[string]bool
	nextID    int
}

var _ Sink = (*fakeSink)(nil)

func (f *fakeSink) SendMessage(_ context.Context, chatID int64, text string, buttons [][]Button) (int, error) {
	f.nextID++
	f.messages = append(f.messages, sentMessage{chatID: chatID, text: text, buttons: buttons})
	return f.nextID, nil
}

func (f *fakeSink) SendJob(_ context.Context, chatID int64, job *model.JobPost) (int, error) {
	if f.failJobs[job.ID] {
		return 0, errors.New("send rejected")
	}
	f.nextID++
	f.jobs = append(f.jobs, sentJob{chatID: chatID, jobID: job.ID})
	return f.nextID, nil
}

func (f *fakeSink) SetMessageReaction(_ context.Context, chatID int64, messageID int, emoji string) error {
	f.reactions = append(f.reactions, reaction{chatID: chatID, messageID: messageID, emoji: emoji})
	return nil
}

// fakeStore holds jobs in a map and counts Update calls.
type fakeStore struct {
	jobs    map[string]*model.JobPost
	updates int
}

var _ model.JobStore = (*fakeStore)(nil)

func newFakeStore(jobs ...*model.JobPost) *fakeStore {
	s := &fakeStore{jobs: map[string]*model.JobPost{}}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeStore) InsertManyIfNotFound(_ context.Context, jobs []*model.JobPost) (seen, newJobs []*model.JobPost, err error) {
	for _, j := range jobs {
		if _, ok := s.jobs[j.ID]; ok {
			seen = append(seen, j)
			continue
		}
		s.jobs[j.ID] = j
		newJobs = append(newJobs, j)
	}
	return seen, newJobs, nil
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*model.JobPost, error) {
	return s.jobs[id], nil
}

func (s *fakeStore) Update(_ context.Context, job *model.JobPost) (bool, error) {
	if _, ok := s.jobs[job.ID]; !ok {
		return false, nil
	}
	s.jobs[job.ID] = job
	s.updates++
	return true, nil
}

func (s *fakeStore) Close(context.Context) error { return nil }

func makeJobs(n int) []*model.JobPost {
	jobs := make([]*model.JobPost, 0, n)
	for i := 0; i < n; i++ {
		jobs = append(jobs, &model.JobPost{
			ID:          fmt.Sprintf("li-%d", i),
			Title:       fmt.Sprintf("Engineer %d", i),
			CompanyName: "Initech",
			JobURL:      fmt.Sprintf("https://example.com/%d", i),
		})
	}
	return jobs
}

func TestDispatchNew_OrderPerChat(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink, newFakeStore(), []int64{100, 200}, testLogger())

	jobs := makeJobs(3)
	d.DispatchNew(context.Background(), jobs)

	if len(sink.jobs) != 6 {
		t.Fatalf("expected 6 sends, got %d", len(sink.jobs))
	}
	for i, want := range []sentJob{
		{100, "li-0"}, {100, "li-1"}, {100, "li-2"},
		{200, "li-0"}, {200, "li-1"}, {200, "li-2"},
	} {
		if sink.jobs[i] != want {
			t.Errorf("send %d: got %+v, want %+v", i, sink.jobs[i], want)
		}
	}
}

func TestDispatchNew_FailedSendSkipsJob(t *testing.T) {
	sink := &fakeSink{failJobs: map[string]bool{"li-1": true}}
	d := New(sink, newFakeStore(), []int64{100}, testLogger())

	d.DispatchNew(context.Background(), makeJobs(3))

	if len(sink.jobs) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sink.jobs))
	}
	if sink.jobs[0].jobID != "li-0" || sink.jobs[1].jobID != "li-2" {
		t.Errorf("unexpected send order: %+v", sink.jobs)
	}
}

func TestDispatchFiltered(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink, newFakeStore(), []int64{100}, testLogger())

	jobs := makeJobs(2)
	d.DispatchFiltered(context.Background(), jobs)

	if len(sink.messages) != 1 {
		t.Fatalf("expected 1 summary message, got %d", len(sink.messages))
	}
	msg := sink.messages[0]
	if !strings.HasPrefix(msg.text, "2 filtered by title:") {
		t.Errorf("unexpected summary text: %q", msg.text)
	}
	if len(msg.buttons) != 2 {
		t.Fatalf("expected one button row per job, got %d", len(msg.buttons))
	}
	for i, job := range jobs {
		row := msg.buttons[i]
		if len(row) != 1 || row[0].Data != job.ID || row[0].Text != job.Title {
			t.Errorf("row %d: got %+v", i, row)
		}
	}
}

func TestDispatchFiltered_EmptyIsSilent(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink, newFakeStore(), []int64{100}, testLogger())
	d.DispatchFiltered(context.Background(), nil)
	if len(sink.messages) != 0 {
		t.Errorf("expected no messages for empty batch, got %d", len(sink.messages))
	}
}

func TestMuxHandle_LikeReactsAndRecords(t *testing.T) {
	job := &model.JobPost{ID: "li-7", Title: "Engineer", JobURL: "https://example.com/7"}
	store := newFakeStore(job)
	sink := &fakeSink{}
	mux := NewMux(sink, store, testLogger())

	ok := mux.Handle(context.Background(), Callback{ChatID: 100, MessageID: 42, Data: "like:li-7"})
	if !ok {
		t.Fatal("like callback not handled")
	}
	if len(sink.reactions) != 1 || sink.reactions[0] != (reaction{100, 42, emojiLike}) {
		t.Errorf("unexpected reactions: %+v", sink.reactions)
	}
	if !store.jobs["li-7"].Liked {
		t.Error("like not recorded on stored job")
	}
	if store.updates != 1 {
		t.Errorf("expected 1 store update, got %d", store.updates)
	}
}

func TestMuxHandle_DislikeReactsOnly(t *testing.T) {
	job := &model.JobPost{ID: "li-7", Title: "Engineer", JobURL: "https://example.com/7"}
	store := newFakeStore(job)
	sink := &fakeSink{}
	mux := NewMux(sink, store, testLogger())

	ok := mux.Handle(context.Background(), Callback{ChatID: 100, MessageID: 42, Data: "dislike:li-7"})
	if !ok {
		t.Fatal("dislike callback not handled")
	}
	if len(sink.reactions) != 1 || sink.reactions[0].emoji != emojiDislike {
		t.Errorf("unexpected reactions: %+v", sink.reactions)
	}
	if store.updates != 0 {
		t.Errorf("dislike should not touch the store, got %d updates", store.updates)
	}
}

func TestMuxHandle_BareIDResends(t *testing.T) {
	job := &model.JobPost{ID: "gd-3", Title: "Analyst", JobURL: "https://example.com/3"}
	store := newFakeStore(job)
	sink := &fakeSink{}
	mux := NewMux(sink, store, testLogger())

	if !mux.Handle(context.Background(), Callback{ChatID: 100, Data: "gd-3"}) {
		t.Fatal("bare id callback not handled")
	}
	if len(sink.jobs) != 1 || sink.jobs[0] != (sentJob{100, "gd-3"}) {
		t.Errorf("unexpected sends: %+v", sink.jobs)
	}

	if mux.Handle(context.Background(), Callback{ChatID: 100, Data: "gd-missing"}) {
		t.Error("unknown id should not be handled")
	}
	if mux.Handle(context.Background(), Callback{ChatID: 100, Data: ""}) {
		t.Error("empty data should not be handled")
	}
}

func TestFormatJob(t *testing.T) {
	job := &model.JobPost{
		ID:          "in-1",
		Title:       "Engineer",
		CompanyName: "Initech",
		JobURL:      "https://example.com/1",
		Location:    &model.Location{City: "Austin", State: "TX", Country: &model.USA},
	}
	got := FormatJob(job)
	for _, want := range []string{"in-1", "Engineer @ Initech", "Austin, TX", "https://example.com/1"} {
		if !strings.Contains(got, want) {
			t.Errorf("card missing %q:\n%s", want, got)
		}
	}

	remote := &model.JobPost{ID: "go-2", Title: "Engineer", JobURL: "https://example.com/2", IsRemote: model.BoolPtr(true)}
	if !strings.Contains(FormatJob(remote), "Remote") {
		t.Error("remote job card should say Remote")
	}
}
