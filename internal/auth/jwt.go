package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenManager(accessSecret, refreshSecret, issuer string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

type Claims struct {
	UserID int64  `json:"uid"`
	Type   string `json:"typ"` // "access" | "refresh"
	jwt.RegisteredClaims
}

// GeneratePair issues an access+refresh pair for a user id.
func (tm *TokenManager) GeneratePair(userID int64) (access string, refresh string, accessExp time.Time, err error) {
	now := time.Now()

	sign := func(typ string, ttl time.Duration, secret []byte) (string, time.Time, error) {
		claims := Claims{
			UserID: userID,
			Type:   typ,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    tm.issuer,
				Subject:   strconv.FormatInt(userID, 10),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			},
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		return tok, claims.ExpiresAt.Time, err
	}

	access, accessExp, err = sign("access", tm.accessTTL, tm.accessSecret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	refresh, _, err = sign("refresh", tm.refreshTTL, tm.refreshSecret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return access, refresh, accessExp, nil
}

// ParseAny tries the access secret first, then the refresh secret, and
// reports which kind matched.
func (tm *TokenManager) ParseAny(tokenStr string) (*Claims, bool, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return tm.accessSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err == nil && claims.Type == "access" {
		return claims, false, nil
	}

	claims = &Claims{}
	_, err = jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return tm.refreshSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err == nil && claims.Type == "refresh" {
		return claims, true, nil
	}
	return nil, false, ErrInvalidToken
}
