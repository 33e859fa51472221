// Package postgres is the mapping store backend for a remote Postgres
// database. Calls go through a circuit breaker so a dead database fails
// fast instead of stalling every request.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sony/gobreaker"
	"github.com/telemeet/conference-mapper/internal/allocator"
	"github.com/telemeet/conference-mapper/internal/mapstore/model"
	"github.com/telemeet/conference-mapper/internal/telemetry"
	"go.uber.org/zap"
)

// Schema is the SQL schema for the conferences table.
const Schema = `
CREATE TABLE IF NOT EXISTS conferences (
    id BIGINT PRIMARY KEY,
    jid TEXT UNIQUE NOT NULL,
    created_time BIGINT NOT NULL
);
`

// Store maps conferences to room codes in Postgres. Instead of a local
// mutex it relies on the table's uniqueness constraints: inserts race
// through ON CONFLICT DO NOTHING and losers re-probe at the next offset.
type Store struct {
	db      *sql.DB
	alloc   *allocator.Allocator
	logger  *zap.Logger
	metrics *telemetry.StoreMetrics
	cb      *gobreaker.CircuitBreaker
	space   int64
	now     func() time.Time
}

// New connects to Postgres, verifies the connection and idempotently
// creates the conferences table. metrics may be nil.
func New(connStr string, alloc *allocator.Allocator, logger *zap.Logger, metrics *telemetry.StoreMetrics) (*Store, error) {
	log := logger.Named("postgres")

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Error("failed to open Postgres connection", zap.Error(err))
		return nil, fmt.Errorf("failed to open Postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Error("failed to ping Postgres", zap.Error(err))
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		log.Error("failed to create conferences table", zap.Error(err))
		return nil, fmt.Errorf("failed to create conferences table: %w", err)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "PostgresMapStore",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
	})

	space := int64(1)
	for i := 0; i < alloc.CodeLength(); i++ {
		space *= 10
	}

	log.Info("postgres store initialized")
	return &Store{
		db:      db,
		alloc:   alloc,
		logger:  log,
		metrics: metrics,
		cb:      cb,
		space:   space,
		now:     time.Now,
	}, nil
}

// FindByConference returns the live code for the identifier, allocating
// and inserting a new row on first sight.
func (s *Store) FindByConference(ctx context.Context, conference string) (int64, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.findOrCreate(ctx, conference)
	})
	if err != nil {
		s.metrics.RecordLookup(ctx, "conference", "error")
		if errors.Is(err, allocator.ErrSpaceExhausted) || model.IsStorageError(err) {
			return 0, err
		}
		return 0, model.NewStorageError("find by conference", err)
	}
	return res.(int64), nil
}

func (s *Store) findOrCreate(ctx context.Context, conference string) (int64, error) {
	code, err := s.selectByConference(ctx, conference)
	if err == nil {
		s.metrics.RecordLookup(ctx, "conference", "hit")
		return code, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, model.NewStorageError("select by conference", err)
	}

	created := s.now().Unix()
	for offset := int64(0); offset < s.space; offset++ {
		candidate := s.alloc.Derive(conference, uint64(offset))
		if candidate == 0 {
			continue
		}

		tag, err := s.db.ExecContext(ctx, `
			INSERT INTO conferences (id, jid, created_time) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, candidate, conference, created)
		if err != nil {
			return 0, model.NewStorageError("insert", err)
		}
		inserted, err := tag.RowsAffected()
		if err != nil {
			return 0, model.NewStorageError("insert", err)
		}
		if inserted == 1 {
			s.logger.Info("creating room",
				zap.String("conference", conference),
				zap.Int64("id", candidate),
				zap.Int64("offset", offset),
			)
			s.metrics.RecordLookup(ctx, "conference", "miss")
			s.metrics.RecordAllocation(ctx, offset+1)
			return candidate, nil
		}

		// Nothing inserted: either a concurrent writer won the race for
		// this exact identifier, or the candidate code is taken.
		code, err := s.selectByConference(ctx, conference)
		if err == nil {
			s.metrics.RecordLookup(ctx, "conference", "hit")
			return code, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, model.NewStorageError("select by conference", err)
		}
	}
	return 0, fmt.Errorf("allocating code for %q: %w", conference, allocator.ErrSpaceExhausted)
}

func (s *Store) selectByConference(ctx context.Context, conference string) (int64, error) {
	var code int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM conferences WHERE jid = $1`, conference).Scan(&code)
	return code, err
}

// FindByCode returns the identifier mapped to code, or model.ErrNotFound.
func (s *Store) FindByCode(ctx context.Context, code int64) (string, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		var conference string
		err := s.db.QueryRowContext(ctx, `SELECT jid FROM conferences WHERE id = $1`, code).Scan(&conference)
		if errors.Is(err, sql.ErrNoRows) {
			// Not a storage failure; don't feed it to the breaker.
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return conference, nil
	})
	if err != nil {
		s.metrics.RecordLookup(ctx, "code", "error")
		return "", model.NewStorageError("select by code", err)
	}
	if res == nil {
		s.metrics.RecordLookup(ctx, "code", "miss")
		return "", model.ErrNotFound
	}
	s.metrics.RecordLookup(ctx, "code", "hit")
	return res.(string), nil
}

// SweepExpired deletes every row older than the retention window.
func (s *Store) SweepExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	cutoff := now.Add(-retention).Unix()
	res, err := s.cb.Execute(func() (interface{}, error) {
		tag, err := s.db.ExecContext(ctx, `DELETE FROM conferences WHERE created_time < $1`, cutoff)
		if err != nil {
			return nil, err
		}
		return tag.RowsAffected()
	})
	if err != nil {
		return 0, model.NewStorageError("delete expired", err)
	}
	removed := res.(int64)
	if removed > 0 {
		s.logger.Info("swept expired rooms", zap.Int64("removed", removed))
	}
	s.metrics.RecordSweep(ctx, removed)
	return removed, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
