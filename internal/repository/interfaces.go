package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mertakgul/payflow/internal/models"
	"github.com/mertakgul/payflow/internal/money"
)

var (
	// ErrVersionConflict is returned by a conditional write whose version
	// fence failed; the caller retries from a fresh read.
	ErrVersionConflict = errors.New("version conflict")

	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already in use")
	ErrPhoneTaken = errors.New("phone already in use")
)

type UserFilter struct {
	Name      string
	Email     string
	Phone     string
	BornAfter *time.Time
	Limit     int
	Offset    int
}

type Users interface {
	// Create provisions the user, its contact rows and its account
	// (balance = initial balance, version 1) in one transaction.
	Create(ctx context.Context, u models.User, initialBalance money.Cents) (models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	Search(ctx context.Context, f UserFilter) ([]models.User, error)
	ReplaceContacts(ctx context.Context, id int64, emails, phones []string) error
}

// AccountWrite is one fenced side of a balance mutation.
type AccountWrite struct {
	UserID          int64
	ExpectedVersion int64
	NewBalance      money.Cents
}

type Accounts interface {
	// Get returns (nil, nil) when no account exists for the user.
	Get(ctx context.Context, userID int64) (*models.Account, error)

	// CompareAndSwap writes the new balance and bumps the version iff the
	// stored version still equals expectedVersion, returning the new
	// version. A failed fence yields ErrVersionConflict and no mutation.
	CompareAndSwap(ctx context.Context, userID, expectedVersion int64, newBalance money.Cents) (int64, error)

	// TransferCommit applies both sides of a transfer in a single
	// transaction. Either both fences hold and both rows are written, or
	// nothing is and ErrVersionConflict is returned.
	TransferCommit(ctx context.Context, debit, credit AccountWrite) error

	// ScanAll reads every account. Rows may be stale by the time they are
	// processed; writers re-validate through CompareAndSwap.
	ScanAll(ctx context.Context) ([]models.Account, error)
}

type Transfers interface {
	Create(ctx context.Context, t models.Transfer) (models.Transfer, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Transfer, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}
