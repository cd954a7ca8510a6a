package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"comparativo/internal/core"
	applog "comparativo/internal/log"
	"comparativo/internal/metrics"
	"comparativo/internal/session"
	"comparativo/internal/snapshots"
)

// ErrRunsUnsupported is returned by Runs when the source keeps no run history.
var ErrRunsUnsupported = errors.New("source does not record comparison runs")

// errStaleRun rejects the result of a run started before the stored one.
var errStaleRun = errors.New("comparison superseded by a later run")

// Publisher announces executed comparisons.
type Publisher interface {
	PublishComparisonExecuted(ctx context.Context, run core.Run) error
}

// Options configures a ComparisonService. Every field is optional.
type Options struct {
	Publisher Publisher
	Metrics   *metrics.Metrics
	Timeout   time.Duration
	Logger    *applog.Logger
}

// ComparisonService runs comparisons against a snapshot source and keeps the
// per-session result and filters.
type ComparisonService struct {
	source    snapshots.Source
	sessions  session.Store
	publisher Publisher
	metrics   *metrics.Metrics
	timeout   time.Duration
	logger    *applog.Logger
	events    *applog.StructuredLogger

	group singleflight.Group
	locks [32]sync.Mutex
}

func NewComparisonService(source snapshots.Source, sessions session.Store, opts Options) *ComparisonService {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentComparison)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ComparisonService{
		source:    source,
		sessions:  sessions,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		timeout:   timeout,
		logger:    logger,
		events:    applog.NewStructuredLogger(logger),
	}
}

// Snapshots lists the snapshot identifiers, newest first.
func (s *ComparisonService) Snapshots(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ids, err := s.source.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return ids, nil
}

// Session returns the stored state of id, or a fresh one.
func (s *ComparisonService) Session(ctx context.Context, id string) (session.State, error) {
	st, err := s.sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return session.New(id), nil
	}
	if err != nil {
		return session.State{}, fmt.Errorf("load session: %w", err)
	}
	return st, nil
}

// Execute compares req.Base against req.Actual and stores the result as the
// session's new state with every filter selected. Identical concurrent
// requests for one session share a single query, which is not cancelled
// when one of the callers gives up. On failure the previous state is left
// untouched. A run that finishes after a later-started run of the same
// session is discarded and the later result is returned.
func (s *ComparisonService) Execute(ctx context.Context, sessionID string, req core.ComparisonRequest) (session.State, error) {
	if err := req.Validate(); err != nil {
		return session.State{}, err
	}

	key := sessionID + "\x00" + req.Base + "\x00" + req.Actual
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.execute(shared, sessionID, req)
	})
	select {
	case <-ctx.Done():
		return session.State{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return session.State{}, res.Err
		}
		return res.Val.(session.State), nil
	}
}

func (s *ComparisonService) execute(ctx context.Context, sessionID string, req core.ComparisonRequest) (session.State, error) {
	start := time.Now()

	qctx, cancel := context.WithTimeout(ctx, s.timeout)
	rows, err := s.source.Compare(qctx, req.Base, req.Actual)
	cancel()
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveComparison(err, elapsed, 0)
		s.logger.ErrorContext(ctx, "Comparison failed",
			applog.FieldSessionID, sessionID,
			applog.FieldBase, req.Base,
			applog.FieldActual, req.Actual,
			applog.FieldError, err)
		return session.State{}, fmt.Errorf("compare %s with %s: %w", req.Base, req.Actual, err)
	}

	run := core.Run{
		ID:         uuid.NewString(),
		Base:       req.Base,
		Actual:     req.Actual,
		Rows:       len(rows),
		Duration:   elapsed,
		ExecutedAt: start.UTC(),
		Summary:    core.Aggregate(rows),
	}

	var newer session.State
	st, err := s.update(ctx, sessionID, func(cur session.State) (session.State, error) {
		if cur.HasRun() && cur.Run.ExecutedAt.After(run.ExecutedAt) {
			newer = cur
			return cur, errStaleRun
		}
		return cur.WithRun(run, rows), nil
	})
	if errors.Is(err, errStaleRun) {
		s.metrics.ObserveComparison(nil, elapsed, len(rows))
		s.logger.InfoContext(ctx, "Discarded comparison superseded by a later run",
			applog.FieldSessionID, sessionID,
			applog.FieldRunID, run.ID,
			"superseded_by", newer.Run.ID)
		return newer, nil
	}
	if err != nil {
		s.metrics.ObserveComparison(err, elapsed, 0)
		return session.State{}, err
	}
	s.metrics.ObserveComparison(nil, elapsed, len(rows))
	s.events.LogComparisonExecuted(ctx, sessionID, run.ID, run.Base, run.Actual, run.Rows, elapsed)

	s.recordRun(ctx, run)
	s.publish(ctx, run)

	return st, nil
}

func (s *ComparisonService) recordRun(ctx context.Context, run core.Run) {
	recorder, ok := snapshots.RecorderOf(s.source)
	if !ok {
		return
	}
	if err := recorder.RecordRun(ctx, run); err != nil {
		s.logger.WarnContext(ctx, "Failed to record comparison run",
			applog.FieldRunID, run.ID,
			applog.FieldError, err)
	}
}

func (s *ComparisonService) publish(ctx context.Context, run core.Run) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishComparisonExecuted(ctx, run); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish comparison event",
			applog.FieldRunID, run.ID,
			applog.FieldOperation, applog.OpPublish,
			applog.FieldError, err)
	}
}

// ToggleType flips one portfolio type of the session's type filter.
func (s *ComparisonService) ToggleType(ctx context.Context, sessionID, portfolioType string) (session.State, error) {
	st, err := s.update(ctx, sessionID, func(cur session.State) (session.State, error) {
		return cur.ToggleType(portfolioType)
	})
	if err != nil {
		return session.State{}, err
	}
	s.metrics.ObserveToggle("type")
	s.logger.DebugContext(ctx, "Filter toggled",
		applog.FieldSessionID, sessionID,
		applog.FieldFilter, "type",
		applog.FieldFilterValue, portfolioType)
	return st, nil
}

// ToggleRange flips one period range of the session's range filter.
func (s *ComparisonService) ToggleRange(ctx context.Context, sessionID, label string) (session.State, error) {
	st, err := s.update(ctx, sessionID, func(cur session.State) (session.State, error) {
		return cur.ToggleRange(label)
	})
	if err != nil {
		return session.State{}, err
	}
	s.metrics.ObserveToggle("range")
	s.logger.DebugContext(ctx, "Filter toggled",
		applog.FieldSessionID, sessionID,
		applog.FieldFilter, "range",
		applog.FieldFilterValue, label)
	return st, nil
}

// View returns the filtered rows and aggregates of the session.
func (s *ComparisonService) View(ctx context.Context, sessionID string) (session.View, error) {
	st, err := s.Session(ctx, sessionID)
	if err != nil {
		return session.View{}, err
	}
	return st.View(), nil
}

// Ready checks that the snapshot source is reachable.
func (s *ComparisonService) Ready(ctx context.Context) error {
	return s.source.Ping(ctx)
}

// Runs returns the recorded comparison history when the source keeps one.
func (s *ComparisonService) Runs(ctx context.Context, limit int) ([]core.Run, error) {
	lister, ok := snapshots.ListerOf(s.source)
	if !ok {
		return nil, ErrRunsUnsupported
	}
	return lister.ListRuns(ctx, limit)
}

// update applies fn to the current state of the session and saves the result.
// Updates of one session are serialized.
func (s *ComparisonService) update(ctx context.Context, sessionID string, fn func(session.State) (session.State, error)) (session.State, error) {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	cur, err := s.Session(ctx, sessionID)
	if err != nil {
		return session.State{}, err
	}
	next, err := fn(cur)
	if err != nil {
		return session.State{}, err
	}
	if err := s.sessions.Save(ctx, next); err != nil {
		return session.State{}, fmt.Errorf("save session: %w", err)
	}
	return next, nil
}

func (s *ComparisonService) lockFor(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}
