package channelsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/recommend-go/internal/metrics"
	"github.com/Checker-Finance/recommend-go/pkg/api"
	"github.com/Checker-Finance/recommend-go/pkg/model"
)

// Source yields email channels. *api.ChannelEmailAPI satisfies it.
type Source interface {
	Iterator(filter api.EmailSearch, opts ...api.IteratorOption) *api.Iterator
}

// Sink receives every synced channel.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec model.EmailChannelRecord) error
}

// WatermarkStore persists the point the next run resumes from.
type WatermarkStore interface {
	LoadWatermark(ctx context.Context, account string) (time.Time, error)
	SaveWatermark(ctx context.Context, account string, t time.Time) error
}

type Config struct {
	Account   string
	Interval  time.Duration
	PageSize  int
	MaxFailed int
	Statuses  []string
}

// Result summarises one sync run.
type Result struct {
	Seen    int
	Written int
	Failed  int
	From    time.Time
	Started time.Time
}

// Syncer walks the email channel search and fans records out to the sinks.
type Syncer struct {
	cfg    Config
	source Source
	sinks  []Sink
	state  WatermarkStore
	logger *zap.Logger

	mu        sync.Mutex // one run at a time
	watermark time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

var now = time.Now

func New(cfg Config, source Source, state WatermarkStore, logger *zap.Logger, sinks ...Sink) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	return &Syncer{
		cfg:    cfg,
		source: source,
		sinks:  sinks,
		state:  state,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Watermark returns the in-memory resume point.
func (s *Syncer) Watermark() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}

// RunOnce performs one incremental pass. The watermark only advances when
// every channel reached every sink and the search finished cleanly.
func (s *Syncer) RunOnce(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := Result{Started: now().UTC()}

	if s.watermark.IsZero() && s.state != nil {
		w, err := s.state.LoadWatermark(ctx, s.cfg.Account)
		if err != nil {
			s.logger.Warn("channelsync.watermark_load_failed", zap.Error(err))
		} else {
			s.watermark = w
		}
	}
	res.From = s.watermark

	filter := api.EmailSearch{SubscriptionStatuses: s.cfg.Statuses}
	if !s.watermark.IsZero() {
		filter.FromDate = s.watermark.Unix()
	}

	var opts []api.IteratorOption
	if s.cfg.PageSize > 0 {
		opts = append(opts, api.WithPageSize(s.cfg.PageSize))
	}
	if s.cfg.MaxFailed > 0 {
		opts = append(opts, api.WithMaxFailed(s.cfg.MaxFailed))
	}
	opts = append(opts, api.WithIteratorLogger(s.logger))

	s.logger.Info("channelsync.running",
		zap.String("account", s.cfg.Account),
		zap.Time("from", res.From))

	it := s.source.Iterator(filter, opts...)
	for it.Next(ctx) {
		res.Seen++
		item := it.Item()

		ch, err := api.Decode[api.EmailChannel](item)
		if err != nil {
			res.Failed++
			metrics.IncError("channelsync", "decode")
			s.logger.Warn("channelsync.decode_failed", zap.Error(err))
			continue
		}

		rec := model.EmailChannelRecord{
			Account:            s.cfg.Account,
			ID:                 ch.ID,
			Email:              ch.Email,
			SubscriptionStatus: ch.SubscriptionStatus,
			Raw:                item,
			SyncedAt:           res.Started,
		}
		if s.write(ctx, rec) {
			res.Written++
		} else {
			res.Failed++
		}
	}
	if err := it.Err(); err != nil {
		metrics.IncError("channelsync", "search")
		s.logger.Error("channelsync.search_failed",
			zap.Int("seen", res.Seen),
			zap.Error(err))
		return res, fmt.Errorf("channel search: %w", err)
	}

	if res.Failed > 0 {
		s.logger.Warn("channelsync.partial",
			zap.Int("seen", res.Seen),
			zap.Int("written", res.Written),
			zap.Int("failed", res.Failed))
		return res, nil
	}

	s.watermark = res.Started
	if s.state != nil {
		if err := s.state.SaveWatermark(ctx, s.cfg.Account, s.watermark); err != nil {
			s.logger.Warn("channelsync.watermark_save_failed", zap.Error(err))
		}
	}
	metrics.SetLastSync("channelsync", res.Started)

	s.logger.Info("channelsync.success",
		zap.Int("seen", res.Seen),
		zap.Int("written", res.Written),
		zap.Duration("duration", now().Sub(res.Started)))
	return res, nil
}

func (s *Syncer) write(ctx context.Context, rec model.EmailChannelRecord) bool {
	ok := true
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, rec); err != nil {
			ok = false
			metrics.IncChannelSynced(sink.Name(), "error")
			s.logger.Warn("channelsync.sink_write_failed",
				zap.String("sink", sink.Name()),
				zap.String("channel_id", rec.ID),
				zap.Error(err))
			continue
		}
		metrics.IncChannelSynced(sink.Name(), "ok")
	}
	return ok
}

// Start runs immediately and then every interval until ctx ends or Stop is called.
func (s *Syncer) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("channelsync.started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("sinks", len(s.sinks)))

	s.run(ctx)
	for {
		select {
		case <-ticker.C:
			s.run(ctx)
		case <-s.stopCh:
			s.logger.Info("channelsync.stopped (manual stop)")
			return
		case <-ctx.Done():
			s.logger.Info("channelsync.stopped (context canceled)")
			return
		}
	}
}

func (s *Syncer) run(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("channelsync.run_failed", zap.Error(err))
	}
}

// Stop halts Start. Safe to call more than once.
func (s *Syncer) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
