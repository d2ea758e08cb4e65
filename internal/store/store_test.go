package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/recommend-go/pkg/model"
)

type fakeDB struct {
	sql     string
	args    []any
	execErr error
	pingErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

// --- ChannelStore ---

func TestChannelStore_WriteUpserts(t *testing.T) {
	db := &fakeDB{}
	s := NewChannelStore(db, nil)
	synced := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	err := s.Write(context.Background(), model.EmailChannelRecord{
		Account:            "acme",
		ID:                 "c1",
		Email:              "a@x.io",
		SubscriptionStatus: "subscribed",
		Raw:                json.RawMessage(`{"id":"c1"}`),
		SyncedAt:           synced,
	})
	require.NoError(t, err)
	assert.Contains(t, db.sql, "INSERT INTO recommend.email_channel")
	assert.Contains(t, db.sql, "ON CONFLICT (s_account, s_id_channel)")
	assert.Equal(t, []any{"acme", "c1", "a@x.io", "subscribed", []byte(`{"id":"c1"}`), synced}, db.args)
	assert.Equal(t, "postgres", s.Name())
}

func TestChannelStore_EmptyRawStoredAsObject(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewChannelStore(db, nil).Write(context.Background(), model.EmailChannelRecord{ID: "c1"}))
	assert.Equal(t, []byte("{}"), db.args[4])
}

func TestChannelStore_MissingID(t *testing.T) {
	db := &fakeDB{}
	err := NewChannelStore(db, nil).Write(context.Background(), model.EmailChannelRecord{})
	assert.ErrorIs(t, err, errMissingChannelID)
	assert.Empty(t, db.sql)
}

func TestChannelStore_ExecError(t *testing.T) {
	db := &fakeDB{execErr: errors.New("connection reset")}
	err := NewChannelStore(db, nil).Write(context.Background(), model.EmailChannelRecord{ID: "c1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestChannelStore_HealthCheck(t *testing.T) {
	assert.NoError(t, NewChannelStore(&fakeDB{}, nil).HealthCheck(context.Background()))

	err := NewChannelStore(&fakeDB{pingErr: errors.New("down")}, nil).HealthCheck(context.Background())
	assert.ErrorContains(t, err, "postgres ping failed")
}

// --- SyncState ---

func newTestState(t *testing.T) (*SyncState, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewSyncState(rdb), mr
}

func TestSyncState_RoundTrip(t *testing.T) {
	s, _ := newTestState(t)
	ctx := context.Background()

	w, err := s.LoadWatermark(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, w.IsZero())

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveWatermark(ctx, "acme", at))

	w, err = s.LoadWatermark(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, at.Equal(w))
}

func TestSyncState_CorruptValue(t *testing.T) {
	s, mr := newTestState(t)
	require.NoError(t, mr.Set("recommend:sync:acme", "{"))

	_, err := s.LoadWatermark(context.Background(), "acme")
	assert.ErrorContains(t, err, "decode watermark")
}

func TestSyncState_HealthCheck(t *testing.T) {
	s, mr := newTestState(t)
	require.NoError(t, s.HealthCheck(context.Background()))

	mr.Close()
	err := s.HealthCheck(context.Background())
	assert.ErrorContains(t, err, "redis ping failed")

	assert.Error(t, (&SyncState{}).HealthCheck(context.Background()))
}
