// Package store keeps privacy-conscious site metrics in SQLite: visits with
// hashed IP addresses and the outcome of contact submissions. Message content
// is never stored.
package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Retention is how long metrics are kept.
const Retention = 365 * 24 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS visitors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	hashed_ip TEXT NOT NULL,
	user_agent TEXT,
	path TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_visitors_created ON visitors(created_at);
CREATE TABLE IF NOT EXISTS submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	outcome TEXT NOT NULL,
	field_errors INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at);`

// Visitor is one recorded page view.
type Visitor struct {
	ID        int64     `json:"id"`
	HashedIP  string    `json:"hashed_ip"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats feeds the admin dashboard.
type Stats struct {
	TotalVisitors     int64     `json:"total_visitors"`
	UniqueVisitors    int64     `json:"unique_visitors"`
	VisitorsToday     int64     `json:"visitors_today"`
	VisitorsThisWeek  int64     `json:"visitors_this_week"`
	Submissions       int64     `json:"submissions"`
	SubmissionsSent   int64     `json:"submissions_sent"`
	SubmissionsFailed int64     `json:"submissions_failed"`
	RecentVisitors    []Visitor `json:"recent_visitors"`
}

// Store wraps the metrics database.
type Store struct {
	db   *sql.DB
	salt string
	log  *zap.Logger
	now  func() time.Time
}

// Open opens (creating if needed) the SQLite database at path.
func Open(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// one writer; background tracking goroutines queue behind it
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	salt, err := randomHex(32)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return &Store{db: db, salt: salt, log: log, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HashIP returns a per-process salted hash of ip, stable for the lifetime
// of the process.
func (s *Store) HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip + s.salt))
	return hex.EncodeToString(sum[:])[:16]
}

// RecordVisit stores a page view under the hashed ip.
func (s *Store) RecordVisit(ctx context.Context, ip, userAgent, path string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visitors (hashed_ip, user_agent, path, created_at) VALUES (?, ?, ?, ?)`,
		s.HashIP(ip), userAgent, path, s.now().Unix())
	if err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

// RecordSubmission stores the outcome of a contact submission.
func (s *Store) RecordSubmission(ctx context.Context, outcome string, fieldErrors int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (outcome, field_errors, created_at) VALUES (?, ?, ?)`,
		outcome, fieldErrors, s.now().Unix())
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// Cleanup deletes rows older than retention and returns how many went.
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention).Unix()
	var total int64
	for _, table := range []string{"visitors", "submissions"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE created_at < ?`, cutoff)
		if err != nil {
			return total, fmt.Errorf("cleanup %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if total > 0 {
		s.log.Info("privacy cleanup removed old metrics", zap.Int64("rows", total))
	}
	return total, nil
}

// RunCleanup runs Cleanup now and then on every interval until ctx ends.
func (s *Store) RunCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Cleanup(ctx, Retention); err != nil && ctx.Err() == nil {
			s.log.Error("privacy cleanup failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Stats gathers the dashboard numbers.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Unix()
	week := now.Add(-7 * 24 * time.Hour).Unix()

	stats := &Stats{}
	queries := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&stats.TotalVisitors, `SELECT COUNT(*) FROM visitors`, nil},
		{&stats.UniqueVisitors, `SELECT COUNT(DISTINCT hashed_ip) FROM visitors`, nil},
		{&stats.VisitorsToday, `SELECT COUNT(*) FROM visitors WHERE created_at >= ?`, []any{today}},
		{&stats.VisitorsThisWeek, `SELECT COUNT(*) FROM visitors WHERE created_at >= ?`, []any{week}},
		{&stats.Submissions, `SELECT COUNT(*) FROM submissions`, nil},
		{&stats.SubmissionsSent, `SELECT COUNT(*) FROM submissions WHERE outcome = 'succeeded'`, nil},
		{&stats.SubmissionsFailed, `SELECT COUNT(*) FROM submissions WHERE outcome = 'failed'`, nil},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, q.args...).Scan(q.dst); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}

	recent, err := s.RecentVisitors(ctx, 50)
	if err != nil {
		return nil, err
	}
	stats.RecentVisitors = recent
	return stats, nil
}

// RecentVisitors returns the latest visits, newest first.
func (s *Store) RecentVisitors(ctx context.Context, limit int) ([]Visitor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hashed_ip, COALESCE(user_agent, ''), COALESCE(path, ''), created_at
		FROM visitors
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent visitors: %w", err)
	}
	defer rows.Close()

	var visitors []Visitor
	for rows.Next() {
		var v Visitor
		var ts int64
		if err := rows.Scan(&v.ID, &v.HashedIP, &v.UserAgent, &v.Path, &ts); err != nil {
			return nil, fmt.Errorf("scan visitor: %w", err)
		}
		v.Timestamp = time.Unix(ts, 0).UTC()
		visitors = append(visitors, v)
	}
	return visitors, rows.Err()
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
