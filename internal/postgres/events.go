// Package postgres records an audit trail of meaningful sync events. The
// trail is strictly best-effort: the in-memory store is the source of
// truth and a failed insert never affects the mutation that produced it.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/funniceguy/web-minigame-factory/internal/config"
	"github.com/funniceguy/web-minigame-factory/internal/domain"
)

// EventRecorder provides PostgreSQL-based sync-event auditing
type EventRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewEventRecorder creates a new recorder and verifies the connection
func NewEventRecorder(cfg *config.PostgresConfig, logger *slog.Logger) (*EventRecorder, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &EventRecorder{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *EventRecorder) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *EventRecorder) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sync_events (
			id BIGSERIAL PRIMARY KEY,
			uid VARCHAR(96) NOT NULL,
			season_id VARCHAR(32) NOT NULL,
			revision BIGINT NOT NULL,
			overall_score BIGINT NOT NULL,
			game_scores JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_events_uid ON sync_events(uid, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_events_season ON sync_events(season_id)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// RecordSync inserts one audit row for a meaningful sync
func (r *EventRecorder) RecordSync(ctx context.Context, event domain.SyncEvent) error {
	scoresJSON, err := json.Marshal(event.GameScores)
	if err != nil {
		return fmt.Errorf("marshaling game scores: %w", err)
	}

	query := `
		INSERT INTO sync_events (uid, season_id, revision, overall_score, game_scores, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.pool.Exec(ctx, query,
		event.UID,
		event.SeasonID,
		event.Revision,
		event.OverallScore,
		scoresJSON,
		time.UnixMilli(event.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("recording sync event: %w", err)
	}
	return nil
}
