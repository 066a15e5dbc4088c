// Package store persists job postings keyed by id and answers the single
// question the pipeline cares about: which of these have we seen before.
// Mongo is the primary backend; a sqlite file serves deployments without a
// cluster.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jobharvest/jobharvest/internal/model"
)

const jobsCollection = "jobs"

// MongoStore keeps one document per job in a single collection. The _id is
// the job id, so uniqueness needs no extra index.
type MongoStore struct {
	client *mongo.Client
	jobs   *mongo.Collection
	logger *slog.Logger
}

var _ model.JobStore = (*MongoStore)(nil)

// NewMongoStore connects and pings the deployment before returning.
func NewMongoStore(ctx context.Context, uri, dbName string, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoStore{
		client: client,
		jobs:   client.Database(dbName).Collection(jobsCollection),
		logger: logger.With("store", "mongo"),
	}, nil
}

// InsertManyIfNotFound writes every job that is not already stored and
// partitions the input into (seen, new). One bulk upsert with $setOnInsert
// keeps the operation atomic per id: under concurrent callers exactly one
// observes a given id as new. date_posted never reaches the document, so a
// re-scrape of an old posting is a clean no-op.
func (s *MongoStore) InsertManyIfNotFound(ctx context.Context, jobs []*model.JobPost) (seen, newJobs []*model.JobPost, err error) {
	if len(jobs) == 0 {
		return nil, nil, nil
	}

	models := make([]mongo.WriteModel, 0, len(jobs))
	for _, job := range jobs {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": job.ID}).
			SetUpdate(bson.M{"$setOnInsert": job}).
			SetUpsert(true))
	}

	res, err := s.jobs.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return nil, nil, fmt.Errorf("bulk upsert %d jobs: %w", len(jobs), err)
	}

	// UpsertedIDs is keyed by the index of the write model, which matches
	// the input slice by construction.
	for i, job := range jobs {
		if _, inserted := res.UpsertedIDs[int64(i)]; inserted {
			newJobs = append(newJobs, job)
		} else {
			seen = append(seen, job)
		}
	}

	s.logger.Debug("partitioned batch", "total", len(jobs), "new", len(newJobs), "seen", len(seen))
	return seen, newJobs, nil
}

// FindByID returns the stored job, or nil when the id is unknown.
func (s *MongoStore) FindByID(ctx context.Context, id string) (*model.JobPost, error) {
	var job model.JobPost
	err := s.jobs.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}
	return &job, nil
}

// Update replaces the stored document. Returns false when the id does not
// exist. Used by the chat front-end to record user signals, never by the
// scrape path.
func (s *MongoStore) Update(ctx context.Context, job *model.JobPost) (bool, error) {
	res, err := s.jobs.ReplaceOne(ctx, bson.M{"_id": job.ID}, job)
	if err != nil {
		return false, fmt.Errorf("update job %s: %w", job.ID, err)
	}
	return res.MatchedCount > 0, nil
}

// Close disconnects from the deployment.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
