package service

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-registration/pkg/jobs"
)

const autosaveJob = "save_snapshots"

// WithAutosave writes the snapshots on a background worker after every
// successful mutation instead of only on SaveAll. Bursts of changes collapse
// into one pending write. It has no effect without snapshots.
func WithAutosave(retryDelay time.Duration) RegistrationServiceOption {
	return func(s *RegistrationService) {
		s.autosave = &autosaver{retryDelay: retryDelay}
	}
}

type autosaver struct {
	retryDelay time.Duration
	queue      *jobs.Queue
	logger     *zap.Logger
	pending    atomic.Bool
	seq        atomic.Int64
}

func (a *autosaver) bind(s *RegistrationService) {
	a.logger = s.logger
	a.queue = jobs.New("autosave", func(ctx context.Context, _ jobs.Job) error {
		a.pending.Store(false)
		return s.saveSnapshots(ctx)
	}, jobs.Config{Workers: 1, BufferSize: 1, MaxRetries: 3, RetryDelay: a.retryDelay, Logger: s.logger})
}

func (a *autosaver) notify() {
	if a == nil || !a.pending.CompareAndSwap(false, true) {
		return
	}
	job := jobs.Job{ID: strconv.FormatInt(a.seq.Add(1), 10), Kind: autosaveJob}
	if err := a.queue.Enqueue(job); err != nil {
		a.pending.Store(false)
		a.logger.Debug("autosave skipped", zap.Error(err))
	}
}

// StartAutosave launches the background writer when WithAutosave is set.
func (s *RegistrationService) StartAutosave(ctx context.Context) {
	if s.autosave == nil || len(s.snapshots) == 0 {
		return
	}
	s.autosave.queue.Start(ctx)
}

// StopAutosave flushes a pending write and stops the background writer.
func (s *RegistrationService) StopAutosave() {
	if s.autosave == nil {
		return
	}
	s.autosave.queue.Stop()
}
