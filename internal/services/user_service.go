package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mertakgul/payflow/internal/auth"
	"github.com/mertakgul/payflow/internal/models"
	"github.com/mertakgul/payflow/internal/money"
	repo "github.com/mertakgul/payflow/internal/repository"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserService struct {
	r repo.Users
}

func NewUserService(r repo.Users) *UserService { return &UserService{r: r} }

type CreateUserInput struct {
	Name           string
	DateOfBirth    time.Time
	Password       string
	Emails         []string
	Phones         []string
	InitialBalance money.Cents
}

// Create provisions the user together with its account row; the account's
// initial balance doubles as its growth ceiling base and never changes.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (models.User, error) {
	u := models.User{
		Name:        strings.TrimSpace(in.Name),
		DateOfBirth: in.DateOfBirth,
		Emails:      trimAll(in.Emails),
		Phones:      trimAll(in.Phones),
	}
	if err := u.Validate(); err != nil {
		return models.User{}, err
	}
	if len(in.Password) < 8 {
		return models.User{}, errors.New("password too short")
	}
	if in.InitialBalance < 0 {
		return models.User{}, errors.New("initial balance cannot be negative")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	u.PasswordHash = hash
	return s.r.Create(ctx, u, in.InitialBalance)
}

// Authenticate resolves an email+password pair to a user. The caller turns
// the result into tokens; this layer never sees them.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	u, err := s.r.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repo.ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if auth.VerifyPassword(password, u.PasswordHash) != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (models.User, error) {
	return s.r.GetByID(ctx, id)
}

func (s *UserService) Search(ctx context.Context, f repo.UserFilter) ([]models.User, error) {
	return s.r.Search(ctx, f)
}

// UpdateContacts replaces the caller's own email/phone sets. A nil slice
// leaves that set untouched; an empty email set is rejected so every user
// stays reachable.
func (s *UserService) UpdateContacts(ctx context.Context, id int64, emails, phones []string) (models.User, error) {
	if emails != nil {
		emails = trimAll(emails)
		if len(emails) == 0 {
			return models.User{}, errors.New("at least one email required")
		}
		for _, e := range emails {
			if !strings.Contains(e, "@") {
				return models.User{}, errors.New("invalid email: " + e)
			}
		}
	}
	if phones != nil {
		phones = trimAll(phones)
	}
	if err := s.r.ReplaceContacts(ctx, id, emails, phones); err != nil {
		return models.User{}, err
	}
	return s.r.GetByID(ctx, id)
}

func trimAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
