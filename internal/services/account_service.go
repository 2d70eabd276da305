package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mertakgul/payflow/internal/cache"
	"github.com/mertakgul/payflow/internal/metrics"
	"github.com/mertakgul/payflow/internal/models"
	"github.com/mertakgul/payflow/internal/money"
	repo "github.com/mertakgul/payflow/internal/repository"
	"github.com/mertakgul/payflow/internal/worker"
	"github.com/sethvargo/go-retry"
)

// Retry policy for version conflicts: fresh read each attempt, exponential
// backoff between attempts, hard ceiling on attempts.
const (
	transferMaxAttempts  = 5
	transferInitialDelay = 100 * time.Millisecond
	transferMaxDelay     = 2 * time.Second
)

// AccountService owns every balance mutation. All writes go through the
// store's version fence; no in-process lock is involved, so correctness
// holds even when the growth job runs in another process.
type AccountService struct {
	accounts  repo.Accounts
	transfers repo.Transfers
	audit     repo.AuditLogs
	cache     *cache.Accounts
	wp        *worker.Pool
}

func NewAccountService(a repo.Accounts, t repo.Transfers, l repo.AuditLogs, c *cache.Accounts, wp *worker.Pool) *AccountService {
	return &AccountService{accounts: a, transfers: t, audit: l, cache: c, wp: wp}
}

// GetBalance serves point reads through the cache. The loader is the store
// itself; any write path invalidates the entry before acknowledging.
func (s *AccountService) GetBalance(ctx context.Context, userID int64) (*models.Account, error) {
	a, err := s.cache.GetOrLoad(ctx, userID, func(ctx context.Context) (*models.Account, error) {
		return s.accounts.Get(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	return a, nil
}

// Transfer moves amount from one account to another. Validation failures
// surface immediately; a version conflict aborts the attempt and the whole
// operation is retried from a fresh read, up to the ceiling.
func (s *AccountService) Transfer(ctx context.Context, fromID, toID int64, amount money.Cents) (models.Transfer, error) {
	if fromID == toID {
		return s.reject(fromID, toID, amount, ErrSelfTransfer)
	}
	if amount <= 0 {
		return s.reject(fromID, toID, amount, ErrNonPositiveAmount)
	}

	// Jitter desynchronizes contending writers so they do not re-collide
	// on every attempt.
	backoff := retry.WithMaxRetries(transferMaxAttempts-1,
		retry.WithCappedDuration(transferMaxDelay,
			retry.WithJitterPercent(25,
				retry.NewExponential(transferInitialDelay))))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := s.attempt(ctx, fromID, toID, amount)
		if errors.Is(err, repo.ErrVersionConflict) {
			metrics.TransferRetries.Inc()
			slog.Debug("transfer conflict, retrying",
				"from", fromID, "to", toID, "attempt", attempt)
			return retry.RetryableError(err)
		}
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrVersionConflict):
		metrics.TransfersTotal.WithLabelValues("conflict").Inc()
		slog.Warn("transfer abandoned after retries",
			"from", fromID, "to", toID, "attempts", attempt)
		return models.Transfer{}, ErrTransferContention
	case IsRejection(err):
		return s.reject(fromID, toID, amount, err)
	default:
		metrics.TransfersTotal.WithLabelValues("error").Inc()
		return models.Transfer{}, fmt.Errorf("transfer: %w", err)
	}

	metrics.TransfersTotal.WithLabelValues("completed").Inc()
	slog.Info("transfer completed", "from", fromID, "to", toID, "amount", amount.String())
	return s.record(ctx, fromID, toID, amount)
}

// attempt executes one read-compute-commit round. Both endpoint records are
// read fresh from the store; their versions fence the commit.
func (s *AccountService) attempt(ctx context.Context, fromID, toID int64, amount money.Cents) error {
	from, err := s.accounts.Get(ctx, fromID)
	if err != nil {
		return err
	}
	if from == nil {
		return ErrSourceNotFound
	}
	to, err := s.accounts.Get(ctx, toID)
	if err != nil {
		return err
	}
	if to == nil {
		return ErrDestinationNotFound
	}

	if from.Balance < amount {
		return ErrInsufficientFunds
	}
	newFrom := from.Balance - amount
	newTo := to.Balance + amount
	// Redundant with the check above, but guards the computed value against
	// anything that slipped in between read and compute.
	if newFrom < 0 {
		return ErrInsufficientFunds
	}

	err = s.accounts.TransferCommit(ctx,
		repo.AccountWrite{UserID: fromID, ExpectedVersion: from.Version, NewBalance: newFrom},
		repo.AccountWrite{UserID: toID, ExpectedVersion: to.Version, NewBalance: newTo},
	)
	// Both entries are dropped whether the commit landed or conflicted: a
	// conflict means someone else wrote, so the cached values are stale
	// either way.
	s.cache.Invalidate(ctx, fromID)
	s.cache.Invalidate(ctx, toID)
	return err
}

// record persists the history row and audit entry for a committed transfer.
// Failures here never undo the transfer; the balances are already correct.
func (s *AccountService) record(ctx context.Context, fromID, toID int64, amount money.Cents) (models.Transfer, error) {
	t, err := s.transfers.Create(ctx, models.Transfer{
		FromUserID: fromID,
		ToUserID:   toID,
		Amount:     amount,
		Status:     models.TransferCompleted,
	})
	if err != nil {
		slog.Error("transfer history write", "from", fromID, "to", toID, "err", err)
		t = models.Transfer{
			FromUserID: fromID, ToUserID: toID,
			Amount: amount, Status: models.TransferCompleted,
			CreatedAt: time.Now(),
		}
	}
	s.auditAsync("transfer", t.ID, "completed", map[string]any{
		"from": fromID, "to": toID, "amount": amount.String(),
	})
	return t, nil
}

func (s *AccountService) reject(fromID, toID int64, amount money.Cents, err error) (models.Transfer, error) {
	metrics.TransfersTotal.WithLabelValues("rejected").Inc()
	slog.Info("transfer rejected",
		"from", fromID, "to", toID, "amount", amount.String(), "reason", err.Error())
	return models.Transfer{}, err
}

func (s *AccountService) History(ctx context.Context, userID int64, limit, offset int) ([]models.Transfer, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.transfers.ListByUser(ctx, userID, limit, offset)
}

func (s *AccountService) auditAsync(entityType, entityID, action string, details map[string]any) {
	if s.audit == nil || s.wp == nil {
		return
	}
	id := entityID
	s.wp.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.audit.Create(ctx, models.AuditLog{
			EntityType: entityType,
			EntityID:   &id,
			Action:     action,
			Details:    details,
		}); err != nil {
			slog.Error("audit write", "entity", entityType, "id", id, "err", err)
		}
	})
}

// ScanAccounts exposes the store's full scan for the growth job.
func (s *AccountService) ScanAccounts(ctx context.Context) ([]models.Account, error) {
	return s.accounts.ScanAll(ctx)
}

// ApplyGrowth applies one growth step to a single account using the version
// read during the scan. A conflict is reported to the caller, which skips
// the record for this cycle; it is not retried here.
func (s *AccountService) ApplyGrowth(ctx context.Context, a models.Account) (applied bool, err error) {
	next := money.Grow(a.Balance, a.InitialBalance)
	if next <= a.Balance {
		metrics.GrowthSkipped.Inc()
		return false, nil
	}
	if _, err := s.accounts.CompareAndSwap(ctx, a.UserID, a.Version, next); err != nil {
		if errors.Is(err, repo.ErrVersionConflict) {
			metrics.GrowthConflicts.Inc()
		}
		return false, err
	}
	s.cache.Invalidate(ctx, a.UserID)
	metrics.GrowthApplied.Inc()
	slog.Debug("growth applied",
		"user_id", a.UserID,
		"balance", next.String(),
		"increase", (next - a.Balance).String())
	return true, nil
}

// AuditGrowthCycle records a cycle summary asynchronously.
func (s *AccountService) AuditGrowthCycle(scanned, applied, conflicted int) {
	s.auditAsync("growth_cycle", strconv.FormatInt(time.Now().Unix(), 10), "completed", map[string]any{
		"scanned": scanned, "applied": applied, "conflicted": conflicted,
	})
}
