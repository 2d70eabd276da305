package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	repo "github.com/mertakgul/payflow/internal/repository"
)

type Repositories struct {
	Users     repo.Users
	Accounts  repo.Accounts
	Transfers repo.Transfers
	AuditLogs repo.AuditLogs
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Users:     &usersRepo{pool},
		Accounts:  &accountsRepo{pool},
		Transfers: &transfersRepo{pool},
		AuditLogs: &auditLogsRepo{pool},
	}
}
