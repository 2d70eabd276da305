package services

import "errors"

// Transfer rejections. These are business-rule outcomes detected before any
// mutation attempt; they are never retried.
var (
	ErrSelfTransfer        = errors.New("cannot transfer to yourself")
	ErrNonPositiveAmount   = errors.New("transfer amount must be positive")
	ErrSourceNotFound      = errors.New("source account not found")
	ErrDestinationNotFound = errors.New("destination account not found")
	ErrInsufficientFunds   = errors.New("insufficient balance")

	ErrAccountNotFound = errors.New("account not found")

	// ErrTransferContention is the terminal outcome after the retry
	// ceiling is exhausted: transient, safe for the caller to retry later.
	ErrTransferContention = errors.New("transfer aborted after repeated conflicts")
)

// IsRejection reports whether err is a validation rejection rather than a
// transient or fatal failure.
func IsRejection(err error) bool {
	for _, e := range []error{
		ErrSelfTransfer, ErrNonPositiveAmount, ErrSourceNotFound,
		ErrDestinationNotFound, ErrInsufficientFunds,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
