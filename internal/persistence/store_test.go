package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/screener/internal/config"
	"github.com/sawpanic/screener/internal/domain"
)

func testCfg(t *testing.T) config.PersistenceConfig {
	return config.PersistenceConfig{RunsPath: t.TempDir()}
}

func sampleRunState(runID string, status domain.RunStatus) domain.RunState {
	return domain.RunState{
		RunID:     runID,
		StartedAt: time.Date(2026, 7, 30, 6, 0, 0, 0, time.UTC),
		Status:    status,
		Opportunities: []domain.Opportunity{
			{Symbol: "AAA", Sector: "tech", ScanScore: 80, CombinedScore: 75, Rank: 1},
		},
	}
}

func TestOpenCreatesSQLiteFileWhenNoPostgresDSN(t *testing.T) {
	store, err := Open(testCfg(t))
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "sqlite", store.driver)
}

func TestSaveRunStateThenLatestRoundTrips(t *testing.T) {
	store, err := Open(testCfg(t))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveRunState(ctx, sampleRunState("run-1", domain.RunDone)))

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "run-1", latest.RunID)
	assert.Equal(t, domain.RunDone, latest.Status)
	require.Len(t, latest.Opportunities, 1)
	assert.Equal(t, domain.Symbol("AAA"), latest.Opportunities[0].Symbol)
}

func TestSaveRunStateUpsertsByRunID(t *testing.T) {
	store, err := Open(testCfg(t))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveRunState(ctx, sampleRunState("run-1", domain.RunDone)))

	updated := sampleRunState("run-1", domain.RunPartial)
	require.NoError(t, store.SaveRunState(ctx, updated))

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, domain.RunPartial, latest.Status)
}

func TestLatestReturnsNilWhenEmpty(t *testing.T) {
	store, err := Open(testCfg(t))
	require.NoError(t, err)
	defer store.Close()

	latest, err := store.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)
}
