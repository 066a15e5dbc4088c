package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jobharvest/jobharvest/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	first_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteStore is the single-file fallback backend. Documents are stored as
// JSON under the same id key and partition semantics as the Mongo store.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ model.JobStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	// Serialized access keeps INSERT OR IGNORE atomic per id.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger.With("store", "sqlite")}, nil
}

// InsertManyIfNotFound inserts every unseen job in one transaction and
// partitions the input into (seen, new) by rows affected. date_posted is
// dropped before encoding, matching the Mongo field policy.
func (s *SQLiteStore) InsertManyIfNotFound(ctx context.Context, jobs []*model.JobPost) (seen, newJobs []*model.JobPost, err error) {
	if len(jobs) == 0 {
		return nil, nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin insert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO jobs (id, doc, first_seen) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, job := range jobs {
		doc, err := encodeDoc(job)
		if err != nil {
			return nil, nil, fmt.Errorf("encode job %s: %w", job.ID, err)
		}
		res, err := stmt.ExecContext(ctx, job.ID, doc, now)
		if err != nil {
			return nil, nil, fmt.Errorf("insert job %s: %w", job.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, nil, fmt.Errorf("rows affected for %s: %w", job.ID, err)
		}
		if affected > 0 {
			newJobs = append(newJobs, job)
		} else {
			seen = append(seen, job)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit insert tx: %w", err)
	}
	s.logger.Debug("partitioned batch", "total", len(jobs), "new", len(newJobs), "seen", len(seen))
	return seen, newJobs, nil
}

// FindByID returns the stored job, or nil when the id is unknown.
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*model.JobPost, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM jobs WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}
	var job model.JobPost
	if err := json.Unmarshal([]byte(doc), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Update replaces the stored document. Returns false when the id does not
// exist.
func (s *SQLiteStore) Update(ctx context.Context, job *model.JobPost) (bool, error) {
	doc, err := encodeDoc(job)
	if err != nil {
		return false, fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET doc = ? WHERE id = ?`, doc, job.ID)
	if err != nil {
		return false, fmt.Errorf("update job %s: %w", job.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected for %s: %w", job.ID, err)
	}
	return affected > 0, nil
}

// Close closes the database file.
func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}

// encodeDoc marshals the job without its posting date, mirroring the
// bson:"-" elision on the Mongo side.
func encodeDoc(job *model.JobPost) (string, error) {
	clone := *job
	clone.DatePosted = nil
	data, err := json.Marshal(&clone)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
