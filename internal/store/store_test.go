package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hologram-cli/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.InitSchema(context.Background()))
	return s
}

func TestSaveAndLoadRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	records := []models.FinalRecord{
		{ID: "a", Received: "2021-06-05 10:00:00", Fields: map[int]string{0: "21.5", 1: "48"}},
		{ID: "b", Received: "2021-06-03 10:00:00", Fields: map[int]string{0: "19.0"}},
	}
	require.NoError(t, s.SaveRecords(ctx, "dev-1", records))

	got, err := s.Records(ctx, "dev-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, records[0].ID, got[0].ID)
	assert.Equal(t, records[0].Fields, got[0].Fields)
	assert.Equal(t, records[1].Received, got[1].Received)

	other, err := s.Records(ctx, "dev-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSaveRecordsUpserts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.SaveRecords(ctx, "dev-1", []models.FinalRecord{
		{ID: "a", Received: "2021-06-05", Fields: map[int]string{0: "old"}},
	}))
	require.NoError(t, s.SaveRecords(ctx, "dev-1", []models.FinalRecord{
		{ID: "a", Received: "2021-06-05", Fields: map[int]string{0: "new", 1: "x"}},
	}))

	got, err := s.Records(ctx, "dev-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"new", "x"}, got[0].Values())
}

func TestInitSchemaIdempotent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	assert.NoError(t, s.InitSchema(context.Background()))
}
