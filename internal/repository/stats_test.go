package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivalgrid/tictactoe-arena/internal/entity"
	"github.com/rivalgrid/tictactoe-arena/testing/suite"
)

func TestStatsRepository_RecordResult(t *testing.T) {
	ctx, st := suite.New(t)

	statsRepo := NewStatsRepository(st.Storage)

	// Given: a few finished games
	require.NoError(t, statsRepo.RecordResult(ctx, entity.PlayerX))
	require.NoError(t, statsRepo.RecordResult(ctx, entity.PlayerX))
	require.NoError(t, statsRepo.RecordResult(ctx, entity.PlayerO))
	require.NoError(t, statsRepo.RecordResult(ctx, entity.ResultDraw))

	// When: reading the summary back
	summary, err := statsRepo.Summary(ctx)

	// Then: the counters reflect every recorded game
	require.NoError(t, err)
	assert.Equal(t, int64(4), summary.Games)
	assert.Equal(t, int64(2), summary.WinsX)
	assert.Equal(t, int64(1), summary.WinsO)
	assert.Equal(t, int64(1), summary.Draws)
}

func TestStatsRepository_Summary_Empty(t *testing.T) {
	ctx, st := suite.New(t)

	statsRepo := NewStatsRepository(st.Storage)

	// When: reading the summary from an empty database
	summary, err := statsRepo.Summary(ctx)

	// Then: every counter is zero
	require.NoError(t, err)
	assert.Equal(t, &entity.StatsSummary{}, summary)
}
