package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/pkg/jobs"
)

// Janitor job types.
const (
	JobPurgeBlacklist       = "purge_blacklist"
	JobPurgeRefreshTokens   = "purge_refresh_tokens"
	JobExpireChangeRequests = "expire_change_requests"
	defaultJanitorInterval  = time.Hour
)

var janitorJobs = []string{JobPurgeBlacklist, JobPurgeRefreshTokens, JobExpireChangeRequests}

type tokenJanitor interface {
	PurgeExpiredBlacklist(ctx context.Context, now time.Time) (int64, error)
	PurgeStaleRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type changeRequestExpirer interface {
	ExpireStale(ctx context.Context, today time.Time) (int64, error)
}

// JanitorService periodically removes expired token rows and expires stale
// change requests through the background queue.
type JanitorService struct {
	tokens   tokenJanitor
	requests changeRequestExpirer
	queue    jobDispatcher
	metrics  *MetricsService
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
}

// NewJanitorService constructs the janitor. queue may be nil when only RunOnce is used.
func NewJanitorService(tokens tokenJanitor, requests changeRequestExpirer, queue jobDispatcher, metrics *MetricsService, logger *zap.Logger, interval time.Duration) *JanitorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	return &JanitorService{
		tokens:   tokens,
		requests: requests,
		queue:    queue,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register routes the janitor job types to Handle.
func (s *JanitorService) Register(mux *jobs.Mux) {
	for _, jobType := range janitorJobs {
		mux.Handle(jobType, s.Handle)
	}
}

// Handle executes one janitor job.
func (s *JanitorService) Handle(ctx context.Context, job jobs.Job) (err error) {
	defer func() { s.metrics.RecordJob(job.Type, err) }()

	now := s.now()
	var n int64
	switch job.Type {
	case JobPurgeBlacklist:
		n, err = s.tokens.PurgeExpiredBlacklist(ctx, now)
	case JobPurgeRefreshTokens:
		n, err = s.tokens.PurgeStaleRefreshTokens(ctx, now)
	case JobExpireChangeRequests:
		n, err = s.requests.ExpireStale(ctx, now)
	default:
		return fmt.Errorf("janitor cannot handle job type %q", job.Type)
	}
	if err != nil {
		return err
	}
	s.logger.Debug("janitor job done", zap.String("type", job.Type), zap.Int64("rows", n))
	return nil
}

// Schedule enqueues one round of janitor jobs.
func (s *JanitorService) Schedule() {
	for _, jobType := range janitorJobs {
		if err := s.queue.Enqueue(jobs.Job{Type: jobType}); err != nil {
			s.logger.Warn("failed to enqueue janitor job", zap.String("type", jobType), zap.Error(err))
		}
	}
}

// Run schedules a round immediately and then on every tick until ctx is done.
func (s *JanitorService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Schedule()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Schedule()
		}
	}
}

// RunOnce executes every janitor job synchronously and joins their errors.
func (s *JanitorService) RunOnce(ctx context.Context) error {
	var errs []error
	for _, jobType := range janitorJobs {
		if err := s.Handle(ctx, jobs.Job{Type: jobType}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", jobType, err))
		}
	}
	return errors.Join(errs...)
}
