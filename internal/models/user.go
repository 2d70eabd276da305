package models

import (
	"errors"
	"strings"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	DateOfBirth  time.Time `json:"date_of_birth"`
	PasswordHash string    `json:"-"`
	Emails       []string  `json:"emails"`
	Phones       []string  `json:"phones"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) Validate() error {
	if len(strings.TrimSpace(u.Name)) < 2 {
		return errors.New("name too short")
	}
	if len(u.Emails) == 0 {
		return errors.New("at least one email required")
	}
	for _, e := range u.Emails {
		if !strings.Contains(e, "@") {
			return errors.New("invalid email: " + e)
		}
	}
	for _, p := range u.Phones {
		if len(strings.TrimSpace(p)) < 5 {
			return errors.New("invalid phone: " + p)
		}
	}
	return nil
}
