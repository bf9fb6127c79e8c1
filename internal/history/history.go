// Package history records finished campaigns in a local SQLite database so
// runs can be compared over time.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/torosent/barrage/internal/runner"
)

const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	base_url       TEXT NOT NULL,
	path           TEXT NOT NULL,
	state          TEXT NOT NULL,
	count          INTEGER NOT NULL,
	concurrency    INTEGER NOT NULL,
	total_issued   INTEGER NOT NULL,
	buckets        TEXT NOT NULL,
	error_reasons  TEXT NOT NULL,
	elapsed_ms     REAL NOT NULL,
	p99_latency_ms REAL NOT NULL,
	started_at     TIMESTAMP NOT NULL,
	completed_at   TIMESTAMP,
	recorded_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_campaigns_started_at ON campaigns(started_at);
`

// Record is one stored campaign.
type Record struct {
	ID           string
	Name         string
	BaseURL      string
	Path         string
	State        string
	Count        int
	Concurrency  int
	TotalIssued  int64
	Buckets      map[string]int64
	ErrorReasons map[string]int64
	ElapsedMs    float64
	P99LatencyMs float64
	StartedAt    time.Time
	CompletedAt  time.Time
}

// FromResult converts a campaign result into a Record.
func FromResult(baseURL string, res runner.Result) Record {
	return Record{
		ID:           res.ID,
		Name:         res.Name,
		BaseURL:      baseURL,
		Path:         res.Path,
		State:        res.State,
		Count:        res.Count,
		Concurrency:  res.Concurrency,
		TotalIssued:  res.Tally.TotalIssued,
		Buckets:      res.Tally.Buckets,
		ErrorReasons: res.Tally.ErrorReasons,
		ElapsedMs:    res.Tally.ElapsedMs,
		P99LatencyMs: res.Tally.P99LatencyMs,
		StartedAt:    res.Tally.StartedAt,
		CompletedAt:  res.Tally.CompletedAt,
	}
}

// Store handles campaign history persistence.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts rec. Saving the same campaign ID twice is an error.
func (s *Store) Save(ctx context.Context, rec Record) error {
	buckets, err := json.Marshal(nonNil(rec.Buckets))
	if err != nil {
		return fmt.Errorf("failed to encode buckets: %w", err)
	}
	reasons, err := json.Marshal(nonNil(rec.ErrorReasons))
	if err != nil {
		return fmt.Errorf("failed to encode error reasons: %w", err)
	}

	var completed interface{}
	if !rec.CompletedAt.IsZero() {
		completed = rec.CompletedAt.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO campaigns
		(id, name, base_url, path, state, count, concurrency, total_issued, buckets, error_reasons,
		 elapsed_ms, p99_latency_ms, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, rec.BaseURL, rec.Path, rec.State, rec.Count, rec.Concurrency, rec.TotalIssued,
		string(buckets), string(reasons), rec.ElapsedMs, rec.P99LatencyMs, rec.StartedAt.UTC(), completed)
	if err != nil {
		return fmt.Errorf("failed to insert campaign %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, base_url, path, state, count, concurrency, total_issued, buckets, error_reasons,
		       elapsed_ms, p99_latency_ms, started_at, completed_at
		FROM campaigns
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec       Record
			buckets   string
			reasons   string
			completed sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.BaseURL, &rec.Path, &rec.State, &rec.Count,
			&rec.Concurrency, &rec.TotalIssued, &buckets, &reasons, &rec.ElapsedMs, &rec.P99LatencyMs,
			&rec.StartedAt, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if err := json.Unmarshal([]byte(buckets), &rec.Buckets); err != nil {
			return nil, fmt.Errorf("campaign %s: bad buckets: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(reasons), &rec.ErrorReasons); err != nil {
			return nil, fmt.Errorf("campaign %s: bad error reasons: %w", rec.ID, err)
		}
		if completed.Valid {
			rec.CompletedAt = completed.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nonNil(m map[string]int64) map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return m
}
