package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/telemeet/conference-mapper/internal/allocator"
	"github.com/telemeet/conference-mapper/internal/mapstore/model"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := New(path, allocator.New(allocator.DefaultCodeLength), zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_InitIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapper.db")

	first := newTestStore(t, path)
	require.NoError(t, first.Close())

	// Opening over an existing database must not fail or reset it.
	newTestStore(t, path)
}

func TestStore_FindByConference_RoundTrip(t *testing.T) {
	s := newTestStore(t, ":memory:")
	ctx := context.Background()

	code, err := s.FindByConference(ctx, "room1@conference.example.com")
	require.NoError(t, err)
	require.Positive(t, code)
	require.Less(t, code, int64(100000))

	again, err := s.FindByConference(ctx, "room1@conference.example.com")
	require.NoError(t, err)
	require.Equal(t, code, again)

	conference, err := s.FindByCode(ctx, code)
	require.NoError(t, err)
	require.Equal(t, "room1@conference.example.com", conference)
}

func TestStore_FindByCode_NotFound(t *testing.T) {
	s := newTestStore(t, ":memory:")

	_, err := s.FindByCode(context.Background(), 99999999)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestStore_MappingSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapper.db")
	ctx := context.Background()

	first := newTestStore(t, path)
	code, err := first.FindByConference(ctx, "room1@conference.example.com")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newTestStore(t, path)
	conference, err := second.FindByCode(ctx, code)
	require.NoError(t, err)
	require.Equal(t, "room1@conference.example.com", conference)

	same, err := second.FindByConference(ctx, "room1@conference.example.com")
	require.NoError(t, err)
	require.Equal(t, code, same)
}

func TestStore_CollisionResolvesToNextOffset(t *testing.T) {
	s := newTestStore(t, ":memory:")
	ctx := context.Background()
	alloc := s.alloc

	const conference = "room1@conference.example.com"
	occupied := alloc.Derive(conference, 0)
	require.NoError(t, s.db.Create(&model.Mapping{
		Code:       occupied,
		Conference: "other@conference.example.com",
		CreatedAt:  time.Now().Unix(),
	}).Error)

	expected := alloc.Derive(conference, 1)
	if expected == 0 {
		expected = alloc.Derive(conference, 2)
	}

	code, err := s.FindByConference(ctx, conference)
	require.NoError(t, err)
	require.Equal(t, expected, code)
	require.NotEqual(t, occupied, code)
}

func TestStore_SweepExpired(t *testing.T) {
	s := newTestStore(t, ":memory:")
	ctx := context.Background()
	retention := 3 * 24 * time.Hour
	now := time.Unix(1700000000, 0)

	require.NoError(t, s.db.Create(&model.Mapping{
		Code:       11111,
		Conference: "expired@conference.example.com",
		CreatedAt:  now.Add(-retention - time.Second).Unix(),
	}).Error)
	require.NoError(t, s.db.Create(&model.Mapping{
		Code:       22222,
		Conference: "fresh@conference.example.com",
		CreatedAt:  now.Add(-retention + time.Second).Unix(),
	}).Error)

	removed, err := s.SweepExpired(ctx, now, retention)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	_, err = s.FindByCode(ctx, 11111)
	require.ErrorIs(t, err, model.ErrNotFound)

	conference, err := s.FindByCode(ctx, 22222)
	require.NoError(t, err)
	require.Equal(t, "fresh@conference.example.com", conference)

	removed, err = s.SweepExpired(ctx, now, retention)
	require.NoError(t, err)
	require.Zero(t, removed, "second sweep must be a no-op")
}

func TestStore_CreatedAtIsNotMutated(t *testing.T) {
	s := newTestStore(t, ":memory:")
	ctx := context.Background()

	created := time.Unix(1700000000, 0)
	s.now = func() time.Time { return created }
	code, err := s.FindByConference(ctx, "room1@conference.example.com")
	require.NoError(t, err)

	s.now = func() time.Time { return created.Add(48 * time.Hour) }
	_, err = s.FindByConference(ctx, "room1@conference.example.com")
	require.NoError(t, err)

	var m model.Mapping
	require.NoError(t, s.db.Where("id = ?", code).Take(&m).Error)
	require.Equal(t, created.Unix(), m.CreatedAt, "a repeat lookup must not refresh the creation time")
}
