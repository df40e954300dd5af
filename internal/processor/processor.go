package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ChaseHampton/memorease/internal/config"
	"github.com/ChaseHampton/memorease/internal/db"
	"github.com/ChaseHampton/memorease/internal/diff"
	"github.com/ChaseHampton/memorease/internal/search"
	"github.com/ChaseHampton/memorease/internal/source"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const syncKey = "sync"

var ErrVerification = errors.New("local snapshot does not match remote after write")

// Syncer brings the local store in line with the remote snapshot. Calls that
// overlap a running sync wait for it and share its Outcome.
type Syncer struct {
	src          source.Source
	store        db.LocalStore
	params       search.SearchParams
	fetchTimeout time.Duration
	purgeStale   bool
	logger       zerolog.Logger
	metrics      *Metrics
	tracer       trace.Tracer
	now          func() time.Time

	group singleflight.Group
	state atomic.Int32

	mu   sync.RWMutex
	last *Outcome
}

type SyncerOption func(*Syncer)

func WithMetrics(m *Metrics) SyncerOption {
	return func(s *Syncer) { s.metrics = m }
}

func WithTracer(t trace.Tracer) SyncerOption {
	return func(s *Syncer) { s.tracer = t }
}

// WithClock sets the time stamped into synced_at.
func WithClock(now func() time.Time) SyncerOption {
	return func(s *Syncer) { s.now = now }
}

func WithParams(p search.SearchParams) SyncerOption {
	return func(s *Syncer) { s.params = p }
}

func NewSyncer(src source.Source, store db.LocalStore, cfg *config.Config, logger zerolog.Logger, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		src:          src,
		store:        store,
		params:       search.DefaultSnapshotParams(),
		fetchTimeout: cfg.SyncConfig.FetchTimeout,
		purgeStale:   cfg.SyncConfig.PurgeStale,
		logger:       logger.With().Str("component", "syncer").Logger(),
		tracer:       otel.Tracer("github.com/ChaseHampton/memorease/internal/processor"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

func (s *Syncer) State() State {
	return State(s.state.Load())
}

func (s *Syncer) LastOutcome() (Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Outcome{}, false
	}
	return *s.last, true
}

// Sync runs one sync, or joins the one already running. A caller whose ctx
// ends before the run finishes gets Failed; the run itself carries on under
// the context of the caller that started it.
func (s *Syncer) Sync(ctx context.Context) Outcome {
	ch := s.group.DoChan(syncKey, func() (any, error) {
		return s.run(ctx), nil
	})

	select {
	case res := <-ch:
		out := res.Val.(Outcome)
		if res.Shared {
			s.logger.Debug().Str("run_id", out.RunID).Msg("joined in-flight sync")
		}
		return out
	case <-ctx.Done():
		return failed("sync cancelled", ctx.Err())
	}
}

func (s *Syncer) run(ctx context.Context) Outcome {
	start := time.Now()
	runID := uuid.NewString()
	s.state.Store(int32(Syncing))
	defer s.state.Store(int32(Idle))

	ctx, span := s.tracer.Start(ctx, "memorease.sync", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	logger := s.logger.With().Str("run_id", runID).Logger()
	logger.Info().Msg("sync started")

	out := s.execute(ctx, logger)
	out.RunID = runID
	out.Duration = time.Since(start)

	span.SetAttributes(attribute.String("outcome", out.Kind.String()), attribute.Int("count", out.Count))
	if out.Kind == Failed {
		if out.Err != nil {
			span.RecordError(out.Err)
		}
		span.SetStatus(codes.Error, out.Reason)
		logger.Error().Err(out.Err).Str("reason", out.Reason).Dur("duration", out.Duration).Msg("sync failed")
	} else {
		logger.Info().Str("outcome", out.Kind.String()).Int("count", out.Count).Dur("duration", out.Duration).Msg("sync finished")
	}
	s.metrics.observe(out)

	s.mu.Lock()
	s.last = &out
	s.mu.Unlock()
	return out
}

func (s *Syncer) execute(ctx context.Context, logger zerolog.Logger) Outcome {
	remote, err := s.fetch(ctx)
	if err != nil {
		return failed("remote fetch failed", err)
	}
	if len(remote) == 0 {
		return Outcome{Kind: NoRemoteData}
	}
	if err := source.CheckUnique(remote); err != nil {
		return failed("remote snapshot rejected", err)
	}

	rows, err := s.store.ReadAll(ctx)
	if err != nil {
		return failed("local read failed", err)
	}
	local, malformed := db.ConvertRows(rows)
	if malformed > 0 {
		logger.Warn().Int("malformed", malformed).Msg("local rows have unreadable coordinates, rewriting snapshot")
	} else if diff.IsEquivalent(remote, local) {
		s.metrics.setLocalRecords(len(local))
		return Outcome{Kind: UpToDate}
	}
	if e := logger.Debug(); e.Enabled() {
		e.Str("diff", diff.Compare(remote, local).Summary()).Msg("local snapshot differs")
	}

	newRows, err := db.ConvertRecords(remote, s.now())
	if err != nil {
		return failed("failed to normalize remote records", err)
	}
	if err := ctx.Err(); err != nil {
		return failed("sync cancelled", err)
	}
	if s.purgeStale {
		err = s.store.ReplaceAll(ctx, newRows)
	} else {
		err = s.store.UpsertMany(ctx, newRows)
	}
	if err != nil {
		return failed("local write failed", err)
	}

	if err := s.verify(ctx, remote); err != nil {
		return failed("verification failed", err)
	}
	return Outcome{Kind: Synced, Count: len(remote)}
}

func (s *Syncer) fetch(ctx context.Context) ([]search.DeceasedRecord, error) {
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}
	return s.src.Fetch(ctx, s.params)
}

// verify re-reads the store and checks it against remote. Without purging,
// rows the remote no longer has are expected to remain and are ignored.
func (s *Syncer) verify(ctx context.Context, remote []search.DeceasedRecord) error {
	rows, err := s.store.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to re-read local store: %w", err)
	}
	s.metrics.setLocalRecords(len(rows))

	local, _ := db.ConvertRows(rows)
	if !s.purgeStale {
		local = onlyIDs(local, remote)
	}
	if !diff.IsEquivalent(remote, local) {
		return fmt.Errorf("%w: %s", ErrVerification, diff.Compare(remote, local).Summary())
	}
	return nil
}

func onlyIDs(local, remote []search.DeceasedRecord) []search.DeceasedRecord {
	want := make(map[int64]struct{}, len(remote))
	for _, rec := range remote {
		want[rec.ID] = struct{}{}
	}
	kept := local[:0]
	for _, rec := range local {
		if _, ok := want[rec.ID]; ok {
			kept = append(kept, rec)
		}
	}
	return kept
}
