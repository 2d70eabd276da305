// Package money holds fixed-point monetary arithmetic. All balances are
// int64 cents; floats never touch an amount.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Cents int64

var ErrInvalidAmount = errors.New("invalid amount")

// Parse accepts a decimal string with at most two fraction digits
// ("10", "10.5", "10.50") and returns the amount in cents.
func Parse(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, dotted := strings.Cut(s, ".")
	if whole == "" || !digits(whole) {
		return 0, ErrInvalidAmount
	}
	if dotted && (frac == "" || len(frac) > 2 || !digits(frac)) {
		return 0, ErrInvalidAmount
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	var f int64
	if frac != "" {
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
		if len(frac) == 1 {
			f *= 10
		}
	}
	c := w*100 + f
	if neg {
		c = -c
	}
	return Cents(c), nil
}

// digits reports whether s is non-empty ASCII 0-9 only; ParseInt alone would
// let a stray sign inside a component through.
func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func (c Cents) String() string {
	v := int64(c)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// growthRateBP is the per-cycle increase and ceilingBP the lifetime cap,
// both in basis points of the relevant base amount.
const (
	growthRateBP = 1000  // 10%
	ceilingBP    = 20700 // 207% of the initial balance
)

// roundHalfUpBP applies a basis-point factor to an amount, rounding the
// resulting cents half-up.
func roundHalfUpBP(v Cents, bp int64) Cents {
	return Cents((int64(v)*bp + 5000) / 10000)
}

// GrowthIncrease returns 10% of the balance rounded half-up to cents.
func GrowthIncrease(balance Cents) Cents {
	return roundHalfUpBP(balance, growthRateBP)
}

// GrowthCeiling returns the maximum balance the growth job may ever
// produce for an account: 2.07 times its initial balance.
func GrowthCeiling(initial Cents) Cents {
	return roundHalfUpBP(initial, ceilingBP)
}

// Grow computes the next balance for one growth cycle. The increase is
// clamped so the result never exceeds the ceiling; a balance already at
// or above the ceiling is returned unchanged.
func Grow(balance, initial Cents) Cents {
	ceiling := GrowthCeiling(initial)
	if balance >= ceiling {
		return balance
	}
	next := balance + GrowthIncrease(balance)
	if next > ceiling {
		next = ceiling
	}
	return next
}
