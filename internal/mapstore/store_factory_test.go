package mapstore

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/telemeet/conference-mapper/internal/allocator"
	"github.com/telemeet/conference-mapper/internal/telemetry"
	"go.uber.org/zap"
)

func newTestFactory(t *testing.T) *StoreFactory {
	t.Helper()
	logger := zap.NewNop()
	tel, err := telemetry.NewTelemetry(logger)
	require.NoError(t, err)
	return NewStoreFactory(logger, tel, allocator.New(allocator.DefaultCodeLength))
}

func TestStoreFactory_CreateStore_Memory(t *testing.T) {
	factory := newTestFactory(t)

	config := StoreConfig{
		StoreType:    StoreTypeMemory,
		ExtraDetails: map[string]interface{}{},
	}
	configJSON, _ := json.Marshal(config)

	store, err := factory.CreateStore(string(configJSON))
	require.NoError(t, err)
	require.IsType(t, &InMemoryStore{}, store)
}

func TestStoreFactory_CreateStore_SQLite(t *testing.T) {
	factory := newTestFactory(t)

	config := StoreConfig{
		StoreType: StoreTypeSQLite,
		ExtraDetails: map[string]interface{}{
			"path": filepath.Join(t.TempDir(), "mapper.db"),
		},
	}
	configJSON, _ := json.Marshal(config)

	store, err := factory.CreateStore(string(configJSON))
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestStoreFactory_CreateStore_SQLiteRequiresPath(t *testing.T) {
	factory := newTestFactory(t)

	_, err := factory.CreateStore(`{"db_type":"sqlite","extra_details":{}}`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "path is required")
}

func TestStoreFactory_CreateStore_UnsupportedType(t *testing.T) {
	factory := newTestFactory(t)

	_, err := factory.CreateStore(`{"db_type":"cassandra","extra_details":{}}`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported store type")
}

func TestStoreFactory_CreateStore_InvalidJSON(t *testing.T) {
	factory := newTestFactory(t)

	_, err := factory.CreateStore(`{not json`)
	require.Error(t, err)
}
