package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-bot/internal/weather"
)

//go:embed schema.sql
var ddl embed.FS

// SQLiteStore persists cache entries in a single weather_cache table,
// one row per (city, kind), overwritten in place.
type SQLiteStore struct {
	db     *sql.DB
	window time.Duration
	now    Clock
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string, window time.Duration, now Clock) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	if now == nil {
		now = time.Now
	}
	return &SQLiteStore{db: db, window: window, now: now}, nil
}

func migrate(db *sql.DB) error {
	b, err := ddl.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, city string, kind weather.Kind) (weather.Record, error) {
	rec, fetchedAt, err := s.load(ctx, city, kind)
	if err != nil {
		return weather.Record{}, err
	}
	if !fresh(fetchedAt, s.now(), s.window) {
		return weather.Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *SQLiteStore) GetStale(ctx context.Context, city string, kind weather.Kind) (weather.Record, error) {
	rec, _, err := s.load(ctx, city, kind)
	return rec, err
}

func (s *SQLiteStore) Put(ctx context.Context, city string, kind weather.Kind, rec weather.Record) error {
	payload, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO weather_cache (city, kind, payload, fetched_at)
        VALUES (?,?,?,?)
        ON CONFLICT(city, kind) DO UPDATE SET payload=excluded.payload,
            fetched_at=excluded.fetched_at
    `, weather.CityKey(city), string(kind), string(payload), s.now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("%w: %v", weather.ErrCacheUnavailable, err)
	}
	return nil
}

// Purge deletes rows stored before the given time and reports how many were removed.
func (s *SQLiteStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM weather_cache WHERE fetched_at < ?`, before.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", weather.ErrCacheUnavailable, err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) load(ctx context.Context, city string, kind weather.Kind) (weather.Record, time.Time, error) {
	var (
		payload string
		ts      int64
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT payload, fetched_at FROM weather_cache
        WHERE city=? AND kind=?`, weather.CityKey(city), string(kind),
	).Scan(&payload, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Record{}, time.Time{}, ErrNotFound
	}
	if err != nil {
		return weather.Record{}, time.Time{}, fmt.Errorf("%w: %v", weather.ErrCacheUnavailable, err)
	}

	var rec weather.Record
	if err := sonic.UnmarshalString(payload, &rec); err != nil {
		return weather.Record{}, time.Time{}, fmt.Errorf("%w: decode payload: %v", weather.ErrCacheUnavailable, err)
	}
	fetchedAt := time.Unix(0, ts).UTC()
	return withFetchedAt(rec, fetchedAt), fetchedAt, nil
}
