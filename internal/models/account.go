package models

import (
	"time"

	"github.com/mertakgul/payflow/internal/money"
)

// Account is the single shared mutable record of the system. Every write
// goes through a conditional update fenced on Version; there is no other
// mutation path.
type Account struct {
	UserID         int64       `json:"user_id"`
	Balance        money.Cents `json:"balance"`
	InitialBalance money.Cents `json:"initial_balance"`
	Version        int64       `json:"version"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
