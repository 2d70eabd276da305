package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mertakgul/payflow/internal/api/httpx"
	"github.com/mertakgul/payflow/internal/api/validate"
	"github.com/mertakgul/payflow/internal/auth"
	"github.com/mertakgul/payflow/internal/middleware"
	"github.com/mertakgul/payflow/internal/models"
	"github.com/mertakgul/payflow/internal/money"
	"github.com/mertakgul/payflow/internal/repository"
	"github.com/mertakgul/payflow/internal/services"
)

type handlers struct {
	tm       *auth.TokenManager
	users    *services.UserService
	accounts *services.AccountService
}

// writeServiceError maps the service error taxonomy onto HTTP statuses:
// rejections are 4xx, contention is 409 (transient, retry later), anything
// else is a 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSourceNotFound),
		errors.Is(err, services.ErrDestinationNotFound),
		errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, repository.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, services.ErrTransferContention):
		httpx.WriteError(w, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, repository.ErrEmailTaken),
		errors.Is(err, repository.ErrPhoneTaken):
		httpx.WriteError(w, http.StatusConflict, "taken", err.Error(), nil)
	case errors.Is(err, services.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	case services.IsRejection(err), errors.Is(err, money.ErrInvalidAmount):
		httpx.WriteError(w, http.StatusBadRequest, "rejected", err.Error(), nil)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

// ---------- auth ----------

type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds until the access token expires
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct{ Email, Password string }
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	access, refresh, exp, err := h.tm.GeneratePair(u.ID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := httpx.Decode(w, r, &req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	claims, isRefresh, err := h.tm.ParseAny(req.RefreshToken)
	if err != nil || !isRefresh {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token", nil)
		return
	}
	access, refresh, exp, err := h.tm.GeneratePair(claims.UserID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	})
}

// ---------- users ----------

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string   `json:"name"`
		DateOfBirth    string   `json:"date_of_birth"`
		Password       string   `json:"password"`
		Emails         []string `json:"emails"`
		Phones         []string `json:"phones"`
		InitialBalance string   `json:"initial_balance"`
	}
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	var errs validate.Errs
	for _, check := range []*validate.ErrField{
		validate.Required("name", req.Name),
		validate.Required("date_of_birth", req.DateOfBirth),
		validate.Required("password", req.Password),
		validate.Required("initial_balance", req.InitialBalance),
		validate.MaxLen("name", req.Name, 100),
	} {
		if check != nil {
			errs = append(errs, *check)
		}
	}
	if len(errs) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", errs.Error(), errs)
		return
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "date_of_birth must be YYYY-MM-DD", nil)
		return
	}
	initial, err := money.Parse(req.InitialBalance)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid initial_balance", nil)
		return
	}
	u, err := h.users.Create(r.Context(), services.CreateUserInput{
		Name:           req.Name,
		DateOfBirth:    dob,
		Password:       req.Password,
		Emails:         req.Emails,
		Phones:         req.Phones,
		InitialBalance: initial,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) || errors.Is(err, repository.ErrPhoneTaken) {
			writeServiceError(w, err)
			return
		}
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, u)
}

func (h *handlers) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid user id", nil)
		return
	}
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (h *handlers) searchUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.UserFilter{
		Name:   q.Get("name"),
		Email:  q.Get("email"),
		Phone:  q.Get("phone"),
		Limit:  atoiDefault(q.Get("limit"), 50),
		Offset: atoiDefault(q.Get("offset"), 0),
	}
	if v := q.Get("born_after"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "bad_request", "born_after must be YYYY-MM-DD", nil)
			return
		}
		f.BornAfter = &t
	}
	users, err := h.users.Search(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

func (h *handlers) updateContacts(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid user id", nil)
		return
	}
	if id != uid {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "can only update your own contacts", nil)
		return
	}
	var req struct {
		Emails []string `json:"emails"`
		Phones []string `json:"phones"`
	}
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	u, err := h.users.UpdateContacts(r.Context(), id, req.Emails, req.Phones)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) || errors.Is(err, repository.ErrPhoneTaken) || errors.Is(err, repository.ErrNotFound) {
			writeServiceError(w, err)
			return
		}
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

// ---------- balances & transfers ----------

type balanceResp struct {
	UserID         int64  `json:"user_id"`
	Balance        string `json:"balance"`
	InitialBalance string `json:"initial_balance"`
	UpdatedAt      string `json:"updated_at"`
}

func (h *handlers) getBalance(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	a, err := h.accounts.GetBalance(r.Context(), uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, balanceResp{
		UserID:         a.UserID,
		Balance:        a.Balance.String(),
		InitialBalance: a.InitialBalance.String(),
		UpdatedAt:      a.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

type transferResp struct {
	ID        string `json:"id,omitempty"`
	From      int64  `json:"from_user_id"`
	To        int64  `json:"to_user_id"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func toTransferResp(t models.Transfer) transferResp {
	return transferResp{
		ID:        t.ID,
		From:      t.FromUserID,
		To:        t.ToUserID,
		Amount:    t.Amount.String(),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *handlers) transfer(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	var req struct {
		ToUserID int64  `json:"to_user_id"`
		Amount   string `json:"amount"`
	}
	if err := httpx.Decode(w, r, &req); err != nil || req.ToUserID == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid amount", nil)
		return
	}
	t, err := h.accounts.Transfer(r.Context(), uid, req.ToUserID, amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toTransferResp(t))
}

func (h *handlers) listTransfers(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	q := r.URL.Query()
	ts, err := h.accounts.History(r.Context(), uid, atoiDefault(q.Get("limit"), 50), atoiDefault(q.Get("offset"), 0))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]transferResp, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTransferResp(t))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return def
}
