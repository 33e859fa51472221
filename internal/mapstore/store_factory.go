package mapstore

import (
	"encoding/json"
	"fmt"

	"github.com/telemeet/conference-mapper/internal/allocator"
	"github.com/telemeet/conference-mapper/internal/mapstore/postgres"
	"github.com/telemeet/conference-mapper/internal/mapstore/sqlite"
	"github.com/telemeet/conference-mapper/internal/telemetry"
	"go.uber.org/zap"
)

// Factory defines the interface for creating mapping store backends.
type Factory interface {
	CreateStore(configJSON string) (ConferenceStore, error)
}

// StoreFactory builds mapping store backends from a JSON configuration.
type StoreFactory struct {
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	alloc     *allocator.Allocator
}

func NewStoreFactory(logger *zap.Logger, tel *telemetry.Telemetry, alloc *allocator.Allocator) *StoreFactory {
	return &StoreFactory{
		logger:    logger.Named("factory"),
		telemetry: tel,
		alloc:     alloc,
	}
}

// CreateStore parses the JSON store configuration and builds the
// matching backend.
func (f *StoreFactory) CreateStore(configJSON string) (ConferenceStore, error) {
	var config StoreConfig
	if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
		return nil, fmt.Errorf("failed to parse store configuration JSON: %w", err)
	}

	f.logger.Info("creating mapping store",
		zap.String("db_type", config.StoreType.String()))

	if !config.StoreType.IsValid() {
		return nil, fmt.Errorf("unsupported store type: %s", config.StoreType)
	}

	var metrics *telemetry.StoreMetrics
	if f.telemetry != nil {
		var err error
		metrics, err = f.telemetry.StoreMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to create store metrics: %w", err)
		}
	}

	switch config.StoreType {
	case StoreTypeSQLite:
		path, ok := config.ExtraDetails["path"].(string)
		if !ok || path == "" {
			return nil, fmt.Errorf("path is required for the sqlite store")
		}
		return sqlite.New(path, f.alloc, f.logger, metrics)
	case StoreTypePostgres:
		connStr, ok := config.ExtraDetails["conn_str"].(string)
		if !ok || connStr == "" {
			return nil, fmt.Errorf("conn_str is required for the postgres store")
		}
		return postgres.New(connStr, f.alloc, f.logger, metrics)
	case StoreTypeMemory:
		f.logger.Info("using in-memory mapping store")
		return NewInMemoryStore(f.alloc, metrics), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.StoreType)
	}
}
