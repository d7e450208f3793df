package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rivalgrid/tictactoe-arena/internal/entity"
)

const (
	keyGames = "stats:games"
	keyWinsX = "stats:wins:x"
	keyWinsO = "stats:wins:o"
	keyDraws = "stats:draws"
)

type StatsRepository interface {
	RecordResult(ctx context.Context, result string) error
	Summary(ctx context.Context) (*entity.StatsSummary, error)
}

type dbStats struct {
	client *redis.Client
}

func NewStatsRepository(client *redis.Client) StatsRepository {
	return &dbStats{
		client: client,
	}
}

// RecordResult increments the aggregate counters for one finished game.
func (that *dbStats) RecordResult(ctx context.Context, result string) error {
	key := keyDraws

	switch result {
	case entity.PlayerX:
		key = keyWinsX
	case entity.PlayerO:
		key = keyWinsO
	}

	pipe := that.client.TxPipeline()
	pipe.Incr(ctx, keyGames)
	pipe.Incr(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}

	return nil
}

// Summary reads the aggregate counters; missing keys count as zero.
func (that *dbStats) Summary(ctx context.Context) (*entity.StatsSummary, error) {
	summary := &entity.StatsSummary{}

	fields := []struct {
		key    string
		target *int64
	}{
		{keyGames, &summary.Games},
		{keyWinsX, &summary.WinsX},
		{keyWinsO, &summary.WinsO},
		{keyDraws, &summary.Draws},
	}

	for _, field := range fields {
		value, err := that.client.Get(ctx, field.key).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", field.key, err)
		}

		*field.target = value
	}

	return summary, nil
}
