// Package sqlite is the default mapping store backend, a single local
// SQLite file owned exclusively by this process.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/telemeet/conference-mapper/internal/allocator"
	"github.com/telemeet/conference-mapper/internal/mapstore/model"
	"github.com/telemeet/conference-mapper/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store maps conferences to room codes in a SQLite table. The mutex
// serializes the whole check-allocate-insert sequence: two concurrent
// requests for the same never-seen identifier must not both probe the
// same free code.
type Store struct {
	mu      sync.Mutex
	db      *gorm.DB
	alloc   *allocator.Allocator
	logger  *zap.Logger
	metrics *telemetry.StoreMetrics
	now     func() time.Time
}

// New opens (or creates) the SQLite database at path and idempotently
// ensures the conferences table exists. metrics may be nil.
func New(path string, alloc *allocator.Allocator, logger *zap.Logger, metrics *telemetry.StoreMetrics) (*Store, error) {
	log := logger.Named("sqlite")

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Error("failed to open sqlite database", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to open sqlite database %q: %w", path, err)
	}

	if err := db.AutoMigrate(&model.Mapping{}); err != nil {
		return nil, fmt.Errorf("failed to migrate conferences table: %w", err)
	}

	log.Info("sqlite store initialized", zap.String("path", path))
	return &Store{
		db:      db,
		alloc:   alloc,
		logger:  log,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

// FindByConference returns the live code for the identifier, allocating
// and inserting a new row on first sight.
func (s *Store) FindByConference(ctx context.Context, conference string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var m model.Mapping
	err := s.db.WithContext(ctx).Where("jid = ?", conference).Take(&m).Error
	if err == nil {
		s.metrics.RecordLookup(ctx, "conference", "hit")
		return m.Code, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.metrics.RecordLookup(ctx, "conference", "error")
		return 0, model.NewStorageError("select by conference", err)
	}

	probes := int64(0)
	code, err := s.alloc.Allocate(conference, func(candidate int64) (bool, error) {
		probes++
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.Mapping{}).Where("id = ?", candidate).Count(&count).Error; err != nil {
			return false, model.NewStorageError("select by code", err)
		}
		return count > 0, nil
	})
	if err != nil {
		s.metrics.RecordLookup(ctx, "conference", "error")
		return 0, err
	}

	row := model.Mapping{
		Code:       code,
		Conference: conference,
		CreatedAt:  s.now().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.metrics.RecordLookup(ctx, "conference", "error")
		return 0, model.NewStorageError("insert", err)
	}

	s.logger.Info("creating room",
		zap.String("conference", conference),
		zap.Int64("id", code),
		zap.Int64("probes", probes),
	)
	s.metrics.RecordLookup(ctx, "conference", "miss")
	s.metrics.RecordAllocation(ctx, probes)
	return code, nil
}

// FindByCode returns the identifier mapped to code, or model.ErrNotFound.
func (s *Store) FindByCode(ctx context.Context, code int64) (string, error) {
	var m model.Mapping
	err := s.db.WithContext(ctx).Where("id = ?", code).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.metrics.RecordLookup(ctx, "code", "miss")
		return "", model.ErrNotFound
	}
	if err != nil {
		s.metrics.RecordLookup(ctx, "code", "error")
		return "", model.NewStorageError("select by code", err)
	}
	s.metrics.RecordLookup(ctx, "code", "hit")
	return m.Conference, nil
}

// SweepExpired deletes every row older than the retention window.
func (s *Store) SweepExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	cutoff := now.Add(-retention).Unix()
	res := s.db.WithContext(ctx).Where("created_time < ?", cutoff).Delete(&model.Mapping{})
	if res.Error != nil {
		return 0, model.NewStorageError("delete expired", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Info("swept expired rooms", zap.Int64("removed", res.RowsAffected))
	}
	s.metrics.RecordSweep(ctx, res.RowsAffected)
	return res.RowsAffected, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
