// Package scheduler owns exam closing. It keeps one in-memory close job per
// exam with a pending closing time, re-derived from the database on a fixed
// reconciliation interval, so timers survive restarts and instructor edits
// without any persistent job storage.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oesys/oes-backend/internal/model"
	"github.com/rs/zerolog"
)

// ExamSource lists the exams the reconciliation scan derives jobs from.
type ExamSource interface {
	ListOpen(ctx context.Context, now time.Time) ([]model.Exam, error)
	ListExpiredWithOpenAttempts(ctx context.Context, closedBefore time.Time) ([]uuid.UUID, error)
}

// Closer force-finalizes every still-open attempt of an exam. Calling it
// more than once for the same exam must be safe.
type Closer interface {
	CloseExpired(ctx context.Context, examID uuid.UUID) error
}

type closeJob struct {
	closesAt time.Time
	timer    *time.Timer
}

// Scheduler fires a close job per exam at closes_at plus a grace period.
// The grace period absorbs autosaves that were in flight at the deadline;
// entry gating still uses the exact closes_at.
type Scheduler struct {
	exams    ExamSource
	closer   Closer
	grace    time.Duration
	interval time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	jobs     map[uuid.UUID]*closeJob
	inflight map[uuid.UUID]bool
}

// New creates a Scheduler. grace is added once to every closing time;
// interval is the reconciliation tick.
func New(exams ExamSource, closer Closer, grace, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		exams:    exams,
		closer:   closer,
		grace:    grace,
		interval: interval,
		log:      log.With().Str("component", "close_scheduler").Logger(),
		jobs:     make(map[uuid.UUID]*closeJob),
		inflight: make(map[uuid.UUID]bool),
	}
}

// Run reconciles immediately, then on every tick until ctx is cancelled.
// Call in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info().
		Dur("interval", s.interval).
		Dur("grace", s.grace).
		Msg("Close scheduler started")

	s.ReconcileNow(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			s.log.Info().Msg("Close scheduler stopped")
			return
		case <-ticker.C:
			s.ReconcileNow(ctx)
		}
	}
}

// ReconcileNow re-derives close jobs from the database: open exams get a
// job matching their current closing time, and exams already past closing
// that still hold open attempts are closed right away. The second pass is
// what recovers timers lost to a restart.
func (s *Scheduler) ReconcileNow(ctx context.Context) {
	now := time.Now()

	exams, err := s.exams.ListOpen(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("List open exams failed")
	} else {
		for i := range exams {
			s.ScheduleClose(&exams[i])
		}
	}

	expired, err := s.exams.ListExpiredWithOpenAttempts(ctx, now.Add(-s.grace))
	if err != nil {
		s.log.Error().Err(err).Msg("List expired exams failed")
		return
	}
	for _, id := range expired {
		s.cancel(id)
		go s.fire(id)
	}
}

// ScheduleClose registers or replaces the exam's close job. A job whose
// closing time is unchanged is left alone; an edited closing time cancels
// the old timer and arms a new one.
func (s *Scheduler) ScheduleClose(exam *model.Exam) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[exam.ID]; ok {
		if job.closesAt.Equal(exam.ClosesAt) {
			return
		}
		job.timer.Stop()
		delete(s.jobs, exam.ID)
		s.log.Info().
			Str("exam_id", exam.ID.String()).
			Time("closes_at", exam.ClosesAt).
			Msg("Close job replaced after window edit")
	}

	id := exam.ID
	delay := time.Until(exam.ClosesAt.Add(s.grace))
	if delay < 0 {
		delay = 0
	}
	s.jobs[id] = &closeJob{
		closesAt: exam.ClosesAt,
		timer: time.AfterFunc(delay, func() {
			s.cancel(id)
			s.fire(id)
		}),
	}
}

// Stop cancels every pending job. Attempts left open are picked up by the
// expired-exam pass of the next process's first reconciliation.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		job.timer.Stop()
		delete(s.jobs, id)
	}
}

// PendingJobs reports how many close jobs are armed.
func (s *Scheduler) PendingJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) cancel(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.timer.Stop()
		delete(s.jobs, id)
	}
}

// fire closes the exam's open attempts. At most one fire per exam runs at
// a time: a close that outlives the scan interval would otherwise stack a
// duplicate from every sweep. A skipped sweep retries on the next tick.
func (s *Scheduler) fire(id uuid.UUID) {
	s.mu.Lock()
	if s.inflight[id] {
		s.mu.Unlock()
		return
	}
	s.inflight[id] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, id)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.closer.CloseExpired(ctx, id); err != nil {
		s.log.Error().Err(err).
			Str("exam_id", id.String()).
			Msg("Close job failed, next scan retries")
		return
	}
	s.log.Info().Str("exam_id", id.String()).Msg("Close job fired")
}
