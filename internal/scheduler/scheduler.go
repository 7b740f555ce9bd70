// Package scheduler triggers scans on a wall-clock cron schedule. The
// scanning engine itself has no notion of wall-clock time; this is the
// collaborator that calls it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/scan"
)

// ScanRunner is the engine surface the trigger drives.
type ScanRunner interface {
	RunScan(ctx context.Context) (*model.ScanSnapshot, error)
}

// Scheduler manages the daily scan cron task.
type Scheduler struct {
	cron   *cron.Cron
	runner ScanRunner
	logger *zap.Logger
	ctx    context.Context
}

// NewScheduler creates a scheduler running in the given location.
func NewScheduler(ctx context.Context, runner ScanRunner, loc *time.Location, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		runner: runner,
		logger: logger,
		ctx:    ctx,
	}
}

// Register registers the daily scan task.
func (s *Scheduler) Register(cronSpec string) error {
	if _, err := s.cron.AddFunc(cronSpec, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

// RunNow executes the scan task immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.scanTask()
}

func (s *Scheduler) scanTask() {
	s.logger.Info("scheduled scan triggered")
	if _, err := s.runner.RunScan(s.ctx); err != nil {
		if errors.Is(err, scan.ErrAlreadyRunning) {
			s.logger.Warn("scheduled scan skipped, one already in flight")
			return
		}
		s.logger.Error("scheduled scan failed", zap.Error(err))
	}
}
