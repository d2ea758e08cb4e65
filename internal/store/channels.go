package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Checker-Finance/recommend-go/pkg/model"
)

// DBExecutor is the subset of pgxpool.Pool the channel store needs.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// Connect opens a pgx pool, applying non-zero pool settings.
func Connect(ctx context.Context, dsn string, pc PGPoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}
	if pc.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = pc.HealthCheckPeriod
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return pool, nil
}

// ChannelStore upserts synced email channels into recommend.email_channel.
type ChannelStore struct {
	db     DBExecutor
	logger *zap.Logger
}

func NewChannelStore(db DBExecutor, logger *zap.Logger) *ChannelStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelStore{db: db, logger: logger}
}

const upsertChannelSQL = `
	INSERT INTO recommend.email_channel (
		s_account,
		s_id_channel,
		s_email,
		s_subscription_status,
		j_raw,
		dt_synced
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (s_account, s_id_channel)
	DO UPDATE SET
		s_email = EXCLUDED.s_email,
		s_subscription_status = EXCLUDED.s_subscription_status,
		j_raw = EXCLUDED.j_raw,
		dt_synced = EXCLUDED.dt_synced;
`

var errMissingChannelID = errors.New("email channel has no id")

// Name identifies the store as a channel sink.
func (s *ChannelStore) Name() string { return "postgres" }

// Write inserts or updates one channel keyed by account and channel ID.
func (s *ChannelStore) Write(ctx context.Context, rec model.EmailChannelRecord) error {
	if rec.ID == "" {
		return errMissingChannelID
	}
	raw := []byte(rec.Raw)
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	_, err := s.db.Exec(ctx, upsertChannelSQL,
		rec.Account,
		rec.ID,
		rec.Email,
		rec.SubscriptionStatus,
		raw,
		rec.SyncedAt,
	)
	if err != nil {
		s.logger.Error("store.channel_upsert_failed",
			zap.String("account", rec.Account),
			zap.String("channel_id", rec.ID),
			zap.Error(err))
		return fmt.Errorf("upsert email channel %q: %w", rec.ID, err)
	}
	return nil
}

// HealthCheck pings the database.
func (s *ChannelStore) HealthCheck(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
