package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mertakgul/payflow/internal/auth"
	"github.com/mertakgul/payflow/internal/cache"
	"github.com/mertakgul/payflow/internal/config"
	"github.com/mertakgul/payflow/internal/models"
	"github.com/mertakgul/payflow/internal/money"
	repo "github.com/mertakgul/payflow/internal/repository"
	"github.com/mertakgul/payflow/internal/services"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[int64]models.User
}

func (f *fakeUsers) Create(_ context.Context, u models.User, _ money.Cents) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = int64(len(f.users) + 1)
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return models.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		for _, e := range u.Emails {
			if e == email {
				return u, nil
			}
		}
	}
	return models.User{}, repo.ErrNotFound
}

func (f *fakeUsers) Search(_ context.Context, _ repo.UserFilter) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsers) ReplaceContacts(_ context.Context, id int64, emails, phones []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	if emails != nil {
		u.Emails = emails
	}
	if phones != nil {
		u.Phones = phones
	}
	f.users[id] = u
	return nil
}

type fakeAccounts struct {
	mu   sync.Mutex
	rows map[int64]*models.Account
}

func (f *fakeAccounts) Get(_ context.Context, userID int64) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[userID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) CompareAndSwap(_ context.Context, userID, expectedVersion int64, newBalance money.Cents) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[userID]
	if !ok || a.Version != expectedVersion {
		return 0, repo.ErrVersionConflict
	}
	a.Balance = newBalance
	a.Version++
	return a.Version, nil
}

func (f *fakeAccounts) TransferCommit(ctx context.Context, debit, credit repo.AccountWrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[debit.UserID]
	if !ok || d.Version != debit.ExpectedVersion {
		return repo.ErrVersionConflict
	}
	c, ok := f.rows[credit.UserID]
	if !ok || c.Version != credit.ExpectedVersion {
		return repo.ErrVersionConflict
	}
	d.Balance, d.Version = debit.NewBalance, d.Version+1
	c.Balance, c.Version = credit.NewBalance, c.Version+1
	return nil
}

func (f *fakeAccounts) ScanAll(_ context.Context) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Account
	for _, a := range f.rows {
		out = append(out, *a)
	}
	return out, nil
}

type fakeTransfers struct {
	mu   sync.Mutex
	rows []models.Transfer
}

func (f *fakeTransfers) Create(_ context.Context, t models.Transfer) (models.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = "t-1"
	t.CreatedAt = time.Now()
	f.rows = append(f.rows, t)
	return t, nil
}

func (f *fakeTransfers) ListByUser(_ context.Context, userID int64, _, _ int) ([]models.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transfer
	for _, t := range f.rows {
		if t.FromUserID == userID || t.ToUserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *auth.TokenManager, *fakeAccounts) {
	t.Helper()

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	users := &fakeUsers{users: map[int64]models.User{
		1: {ID: 1, Name: "Alice", Emails: []string{"alice@test.com"}, PasswordHash: hash},
		2: {ID: 2, Name: "Bob", Emails: []string{"bob@test.com"}, PasswordHash: hash},
	}}
	accounts := &fakeAccounts{rows: map[int64]*models.Account{
		1: {UserID: 1, Balance: 10000, InitialBalance: 10000, Version: 1},
		2: {UserID: 2, Balance: 10000, InitialBalance: 10000, Version: 1},
	}}

	tm := auth.NewTokenManager("a-secret", "r-secret", "payflow-test", 15*time.Minute, time.Hour)
	us := services.NewUserService(users)
	as := services.NewAccountService(accounts, &fakeTransfers{}, nil, cache.NewAccounts(nil, 0), nil)

	srv := httptest.NewServer(NewRouter(config.Load(), tm, us, as))
	t.Cleanup(srv.Close)
	return srv, tm, accounts
}

func doJSON(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestLogin(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "",
		`{"email":"alice@test.com","password":"password123"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tokens))
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	bad := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "",
		`{"email":"alice@test.com","password":"nope"}`)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)
}

func TestTransferEndpoint(t *testing.T) {
	srv, tm, accounts := newTestServer(t)
	access, _, _, err := tm.GeneratePair(1)
	require.NoError(t, err)

	// no token
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/transfer", "",
		`{"to_user_id":2,"amount":"25.00"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// happy path
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/transfer", access,
		`{"to_user_id":2,"amount":"25.00"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tr struct {
		Amount string `json:"amount"`
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	assert.Equal(t, "25.00", tr.Amount)
	assert.Equal(t, "completed", tr.Status)

	a, _ := accounts.Get(context.Background(), 1)
	b, _ := accounts.Get(context.Background(), 2)
	assert.Equal(t, money.Cents(7500), a.Balance)
	assert.Equal(t, money.Cents(12500), b.Balance)

	// self transfer is a validation rejection
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/transfer", access,
		`{"to_user_id":1,"amount":"1.00"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// unknown destination
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/transfer", access,
		`{"to_user_id":99,"amount":"1.00"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// more than the balance
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/transfer", access,
		`{"to_user_id":2,"amount":"10000.00"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTransferRejectsMalformedAmounts(t *testing.T) {
	srv, tm, accounts := newTestServer(t)
	access, _, _, err := tm.GeneratePair(1)
	require.NoError(t, err)

	for _, amount := range []string{"5.", "1.-5", "1.+5", "+5", "1.2.3", "abc"} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/transfer", access,
			`{"to_user_id":2,"amount":"`+amount+`"}`)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, amount)
	}

	a, _ := accounts.Get(context.Background(), 1)
	b, _ := accounts.Get(context.Background(), 2)
	assert.Equal(t, money.Cents(10000), a.Balance)
	assert.Equal(t, money.Cents(10000), b.Balance)
}

func TestCreateUserNameTooLong(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body := `{"name":"` + strings.Repeat("a", 101) + `","date_of_birth":"1990-01-01",` +
		`"password":"password123","emails":["c@test.com"],"initial_balance":"100.00"}`
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users", "", body)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOversizedBodyRejected(t *testing.T) {
	srv, tm, _ := newTestServer(t)
	access, _, _, err := tm.GeneratePair(1)
	require.NoError(t, err)

	body := `{"to_user_id":2,"amount":"1.00","pad":"` + strings.Repeat("x", 2<<20) + `"}`
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/transfer", access, body)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetBalanceEndpoint(t *testing.T) {
	srv, tm, _ := newTestServer(t)
	access, _, _, err := tm.GeneratePair(2)
	require.NoError(t, err)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/balance", access, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		UserID  int64  `json:"user_id"`
		Balance string `json:"balance"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(2), body.UserID)
	assert.Equal(t, "100.00", body.Balance)
}
