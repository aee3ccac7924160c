package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/config"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
	memsheet "github.com/MuhamadAdhiWinata/catatan-keuangan/internal/sheets/memory"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		DataBackend:     "memory",
		AnomalyRatio:    3,
		InsightTrendPct: 7,
		HealthTrendPct:  12,
		CacheSize:       8,
		CacheTTL:        time.Minute,
	}
}

func TestThresholds(t *testing.T) {
	th := Thresholds(testConfig())

	assert.Equal(t, 3.0, th.AnomalyRatio)
	assert.Equal(t, 7.0, th.InsightTrendPct)
	assert.Equal(t, 12.0, th.HealthTrendPct)
	assert.Equal(t, 2, th.MinAnomalySamples)
	assert.Equal(t, 0.2, th.HighConfidenceCV)
}

func TestNewEngine(t *testing.T) {
	ctx := context.Background()
	logger := log.ForComponent(log.ComponentCLI)

	res, err := OpenStore(ctx, logger, testConfig())
	require.NoError(t, err)
	defer res.Cleanup()

	t.Run("with dashboard cache", func(t *testing.T) {
		engine, janitor := NewEngine(testConfig(), res.Store)
		require.NotNil(t, engine)
		assert.NotNil(t, janitor)
		assert.Equal(t, 3.0, engine.Thresholds().AnomalyRatio)
	})

	t.Run("cache disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.CacheSize = 0
		engine, janitor := NewEngine(cfg, res.Store)
		require.NotNil(t, engine)
		assert.Nil(t, janitor)
	})
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	logger := log.ForComponent(log.ComponentCLI)

	res, err := OpenStore(ctx, logger, testConfig())
	require.NoError(t, err)
	defer res.Cleanup()

	_, err = res.Store.GetUser(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	cfg := testConfig()
	cfg.DataBackend = "sheets"
	_, err = OpenStore(ctx, logger, cfg)
	assert.Error(t, err)
}

func TestNewSinkWithoutSpreadsheet(t *testing.T) {
	sink, err := NewSink(context.Background(), log.ForComponent(log.ComponentCLI), testConfig())
	require.NoError(t, err)
	assert.IsType(t, &memsheet.Store{}, sink)
}
