package worker

import (
	"context"
	"sync"
	"time"

	"tnf-api/internal/redisclient"
	"tnf-api/internal/service"
	"tnf-api/internal/util"

	"go.uber.org/zap"
)

// SyncRunner runs one sync job to completion.
type SyncRunner interface {
	Run(ctx context.Context, job string) (*service.SyncReport, error)
}

// Locker guards a job across instances.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (*redisclient.Lock, bool, error)
	ReleaseLock(ctx context.Context, lock *redisclient.Lock) error
}

// SyncScheduler runs each job on its own ticker. A run is skipped while
// another instance (or a manual trigger) holds the job's lock.
type SyncScheduler struct {
	runner     SyncRunner
	locker     Locker
	jobs       []string
	interval   time.Duration
	runOnStart bool
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSyncScheduler(runner SyncRunner, locker Locker, interval time.Duration, runOnStart bool, jobs ...string) *SyncScheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if len(jobs) == 0 {
		jobs = []string{service.JobProducts, service.JobOrders}
	}
	return &SyncScheduler{
		runner:     runner,
		locker:     locker,
		jobs:       jobs,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     util.Named("scheduler"),
	}
}

// Start launches one loop per job and returns immediately.
func (s *SyncScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		job := job
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, job)
		}()
	}
	s.logger.Info("Sync scheduler started",
		zap.Strings("jobs", s.jobs),
		zap.Duration("interval", s.interval))
}

// Stop cancels running jobs and waits for the loops to exit.
func (s *SyncScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Sync scheduler stopped")
}

func (s *SyncScheduler) loop(ctx context.Context, job string) {
	if s.runOnStart {
		s.runLogged(ctx, job)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runLogged(ctx, job)
		}
	}
}

// runLogged is the background path: failures are logged and the job waits
// for its next tick.
func (s *SyncScheduler) runLogged(ctx context.Context, job string) {
	if _, err := s.RunNow(ctx, job); err != nil {
		if service.ErrorCode(err) == service.ECONFLICT {
			s.logger.Info("Sync skipped, already running elsewhere", zap.String("job", job))
			return
		}
		s.logger.Error("Scheduled sync failed", zap.String("job", job), zap.Error(err))
	}
}

// RunNow runs job immediately under the job lock. A held lock is a conflict.
func (s *SyncScheduler) RunNow(ctx context.Context, job string) (*service.SyncReport, error) {
	if s.locker == nil {
		return s.runner.Run(ctx, job)
	}

	lock, ok, err := s.locker.AcquireLock(ctx, "sync:"+job, s.interval)
	if err != nil {
		// run unlocked when redis is unreachable
		s.logger.Warn("Sync lock unavailable", zap.String("job", job), zap.Error(err))
		return s.runner.Run(ctx, job)
	}
	if !ok {
		return nil, &service.Error{Code: service.ECONFLICT, Message: "sync job " + job + " is already running"}
	}
	defer func() {
		// release with a fresh context so a cancelled run still frees the lock
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.ReleaseLock(releaseCtx, lock); err != nil {
			s.logger.Warn("Failed to release sync lock", zap.String("job", job), zap.Error(err))
		}
	}()

	return s.runner.Run(ctx, job)
}
