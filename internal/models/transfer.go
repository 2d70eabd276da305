package models

import (
	"time"

	"github.com/mertakgul/payflow/internal/money"
)

type TransferStatus string

const (
	TransferCompleted TransferStatus = "completed"
)

// Transfer is a history row recorded after a successful commit. It is
// bookkeeping only; balance invariants live in the accounts table.
type Transfer struct {
	ID         string         `json:"id"`
	FromUserID int64          `json:"from_user_id"`
	ToUserID   int64          `json:"to_user_id"`
	Amount     money.Cents    `json:"amount"`
	Status     TransferStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}
