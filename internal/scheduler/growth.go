// Package scheduler runs the periodic balance-growth job: every cycle scans
// all accounts and applies a bounded 10% increase to each, through the same
// version fence the transfer engine uses.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mertakgul/payflow/internal/services"
	"github.com/mertakgul/payflow/internal/worker"
	"github.com/robfig/cron/v3"

	repo "github.com/mertakgul/payflow/internal/repository"
)

type Growth struct {
	accounts *services.AccountService
	wp       *worker.Pool
	interval time.Duration
	cron     *cron.Cron
}

func NewGrowth(accounts *services.AccountService, wp *worker.Pool, interval time.Duration) *Growth {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Growth{accounts: accounts, wp: wp, interval: interval}
}

// Start schedules the job. SkipIfStillRunning keeps cycles from
// overlapping; a long scan simply delays the next cycle.
func (g *Growth) Start(ctx context.Context) error {
	g.cron = cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	_, err := g.cron.AddFunc("@every "+g.interval.String(), func() {
		g.RunCycle(ctx)
	})
	if err != nil {
		return err
	}
	g.cron.Start()
	slog.Info("growth scheduler started", "interval", g.interval.String())
	return nil
}

func (g *Growth) Stop() {
	if g.cron != nil {
		<-g.cron.Stop().Done()
	}
}

// RunCycle performs one full pass. Per-account outcomes are independent: a
// conflicted or vanished record is skipped until the next cycle, a fatal
// storage error is logged for that record only, and the cycle always runs
// to completion.
func (g *Growth) RunCycle(ctx context.Context) {
	start := time.Now()
	accounts, err := g.accounts.ScanAccounts(ctx)
	if err != nil {
		slog.Error("growth scan", "err", err)
		return
	}

	var applied, conflicted atomic.Int64
	var wg sync.WaitGroup
	for _, a := range accounts {
		a := a
		wg.Add(1)
		g.wp.Submit(func() {
			defer wg.Done()
			ok, err := g.accounts.ApplyGrowth(ctx, a)
			switch {
			case err == nil:
				if ok {
					applied.Add(1)
				}
			case errors.Is(err, repo.ErrVersionConflict):
				// concurrent writer won this round; next cycle picks it up
				conflicted.Add(1)
			default:
				slog.Error("growth apply", "user_id", a.UserID, "err", err)
			}
		})
	}
	wg.Wait()

	slog.Info("growth cycle completed",
		"scanned", len(accounts),
		"applied", applied.Load(),
		"conflicted", conflicted.Load(),
		"took", time.Since(start).String())
	g.accounts.AuditGrowthCycle(len(accounts), int(applied.Load()), int(conflicted.Load()))
}
