package service

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// CycleRunner runs one monitoring cycle
type CycleRunner interface {
	RunCycle(ctx context.Context) (*CycleStats, error)
}

// Scheduler fires a monitoring cycle at a fixed interval. A tick that lands
// while the previous cycle is still running is skipped.
type Scheduler struct {
	cron      *cron.Cron
	job       cron.Job
	runner    CycleRunner
	interval  time.Duration
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *log.Logger
	errLogger *log.Logger
}

// NewScheduler creates a scheduler for runner. Nil loggers default to
// stdout and stderr.
func NewScheduler(runner CycleRunner, interval time.Duration, logger, errLogger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	if errLogger == nil {
		errLogger = log.New(os.Stderr, "ERROR: ", log.LstdFlags)
	}

	s := &Scheduler{
		cron:      cron.New(),
		runner:    runner,
		interval:  interval,
		logger:    logger,
		errLogger: errLogger,
	}
	s.job = cron.NewChain(
		cron.Recover(cron.PrintfLogger(errLogger)),
		cron.SkipIfStillRunning(cron.PrintfLogger(logger)),
	).Then(cron.FuncJob(s.tick))
	return s
}

// Start schedules the cycle and, if runNow is set, fires one immediately.
// Cycles run with a context derived from ctx that Stop cancels.
func (s *Scheduler) Start(ctx context.Context, runNow bool) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Schedule(cron.Every(s.interval), s.job)
	s.cron.Start()
	s.logger.Printf("Reservation monitoring started, interval %s", s.interval)

	if runNow {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.job.Run()
		}()
	}
}

// Stop stops new ticks and waits for a running cycle to finish. If ctx ends
// first the running cycle is cancelled.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cron.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.errLogger.Printf("Monitoring cycle did not finish before shutdown, cancelling")
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Println("Reservation monitoring stopped")
}

func (s *Scheduler) tick() {
	s.wg.Add(1)
	defer s.wg.Done()

	if s.ctx.Err() != nil {
		return
	}
	_, err := s.runner.RunCycle(s.ctx)
	switch {
	case errors.Is(err, ErrCycleRunning):
		s.logger.Println("Previous monitoring cycle still running, skipping tick")
	case err != nil:
		s.errLogger.Printf("Monitoring cycle failed: %v", err)
	}
}
