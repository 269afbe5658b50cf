package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/lottoloop/chain-custody/internal/observability"
	"github.com/lottoloop/chain-custody/internal/service"
)

// Scheduler drives the two periodic operations of the custody pipeline:
// the deposit scan (once a minute by default) and the pending-transaction
// reconciliation (once an hour). The scanner's own single-flight flag is the
// sole overlap guard; a tick that lands mid-scan becomes a no-op skip.
type Scheduler struct {
	sched             gocron.Scheduler
	scanner           *service.DepositScanner
	reconciler        *service.PendingTxReconciler
	scanInterval      time.Duration
	reconcileInterval time.Duration
}

func NewScheduler(scanner *service.DepositScanner, reconciler *service.PendingTxReconciler, scanInterval, reconcileInterval time.Duration) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{
		sched:             sched,
		scanner:           scanner,
		reconciler:        reconciler,
		scanInterval:      scanInterval,
		reconcileInterval: reconcileInterval,
	}, nil
}

// Start registers the jobs and begins ticking. Jobs run until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(s.scanInterval),
		gocron.NewTask(func() {
			if started := s.scanner.RunScanCycle(ctx); !started {
				observability.IncrementWorkerRun("scan", "skipped")
				return
			}
			observability.IncrementWorkerRun("scan", "completed")
		}),
	)
	if err != nil {
		return fmt.Errorf("register scan job: %w", err)
	}

	_, err = s.sched.NewJob(
		gocron.DurationJob(s.reconcileInterval),
		gocron.NewTask(func() {
			if err := s.reconciler.ReconcilePending(ctx); err != nil {
				observability.IncrementWorkerRun("reconcile", "failed")
				zap.L().Error("pending tx reconciliation failed", zap.Error(err))
				return
			}
			observability.IncrementWorkerRun("reconcile", "success")
		}),
	)
	if err != nil {
		return fmt.Errorf("register reconcile job: %w", err)
	}

	s.sched.Start()
	zap.L().Info("scheduler started",
		zap.Duration("scan_interval", s.scanInterval),
		zap.Duration("reconcile_interval", s.reconcileInterval),
	)
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs to finish.
func (s *Scheduler) Stop() {
	if err := s.sched.Shutdown(); err != nil {
		zap.L().Error("scheduler shutdown failed", zap.Error(err))
	}
}
