package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/and161185/cybergames/internal/authz"
	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/model"
	"github.com/and161185/cybergames/internal/service"
)

// Fakes embed the service interface; calling a method a test did not
// implement panics and surfaces as a 500.

type fakeAccounts struct {
	service.AccountService
	byToken  map[string]*model.User
	loginErr error
	lastIP   string
}

func (f *fakeAccounts) Authenticate(_ context.Context, token string) (*model.User, error) {
	u, ok := f.byToken[token]
	if !ok {
		return nil, errs.ErrUnauthorized
	}
	return u, nil
}

func (f *fakeAccounts) Register(_ context.Context, username, email, _ string) (*model.User, error) {
	if username == "taken" {
		return nil, errs.ErrAlreadyExists
	}
	return &model.User{ID: 50, Username: username, Email: email, Role: model.RoleUser}, nil
}

func (f *fakeAccounts) Login(_ context.Context, email, _, ip string) (model.Tokens, *model.User, error) {
	f.lastIP = ip
	if f.loginErr != nil {
		return model.Tokens{}, nil, f.loginErr
	}
	return model.Tokens{AccessToken: "tok", ExpiresAt: time.Unix(1700000000, 0).UTC()},
		&model.User{ID: 3, Email: email, Role: model.RoleUser}, nil
}

func (f *fakeAccounts) Me(_ context.Context, userID int64) (*model.User, error) {
	for _, u := range f.byToken {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeAccounts) ForgotPassword(context.Context, string) error { return nil }

type fakeUsers struct {
	service.UserService
	patches []service.UserPatch
}

func (f *fakeUsers) List(context.Context, model.Subject) ([]model.User, error) {
	return []model.User{{ID: 1, Role: model.RoleAdmin}, {ID: 3, Role: model.RoleUser}}, nil
}

func (f *fakeUsers) AdminUpdate(_ context.Context, _ model.Subject, id int64, p service.UserPatch) (*model.User, error) {
	f.patches = append(f.patches, p)
	u := &model.User{ID: id, Role: model.RoleUser}
	if p.Role != nil {
		u.Role = *p.Role
	}
	return u, nil
}

type fakeGames struct {
	service.GameService
	games       map[int64]*model.Game
	enabledOnly bool
	created     []model.GameFields
}

func (f *fakeGames) List(_ context.Context, enabledOnly bool) ([]model.Game, error) {
	f.enabledOnly = enabledOnly
	out := []model.Game{}
	for _, g := range f.games {
		out = append(out, *g)
	}
	return out, nil
}

func (f *fakeGames) Get(_ context.Context, id int64) (*model.Game, error) {
	g, ok := f.games[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return g, nil
}

func (f *fakeGames) Create(_ context.Context, _ model.Subject, fields model.GameFields) (*model.Game, error) {
	f.created = append(f.created, fields)
	return &model.Game{ID: 10, GameFields: fields}, nil
}

type fakeChanges struct {
	service.ChangeService
	drafts  []service.ChangeDraft
	pending map[int64]*model.ChangeRequest
}

// editable mirrors the service rule: only the author or an admin may touch a
// pending request.
func (f *fakeChanges) editable(sub model.Subject, id int64) (*model.ChangeRequest, error) {
	cr, ok := f.pending[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if sub.Role != model.RoleAdmin && sub.UserID != cr.AuthorID {
		return nil, fmt.Errorf("change request %d belongs to another user: %w", id, errs.ErrConflict)
	}
	return cr, nil
}

func (f *fakeChanges) EditMine(_ context.Context, sub model.Subject, id int64, patch model.GamePatch) (*model.ChangeRequest, error) {
	cr, err := f.editable(sub, id)
	if err != nil {
		return nil, err
	}
	cr.Proposal = model.CreateProposal{F: patch.Apply(cr.Proposal.Fields())}
	c := *cr
	return &c, nil
}

func (f *fakeChanges) DeleteMine(_ context.Context, sub model.Subject, id int64) error {
	if _, err := f.editable(sub, id); err != nil {
		return err
	}
	delete(f.pending, id)
	return nil
}

func (f *fakeChanges) Submit(_ context.Context, sub model.Subject, d service.ChangeDraft) (service.SubmitResult, error) {
	f.drafts = append(f.drafts, d)
	f2 := d.Patch.Apply(model.GameFields{Enabled: true})
	if sub.Role == model.RoleAdmin {
		return service.SubmitResult{Game: &model.Game{ID: 11, GameFields: f2}}, nil
	}
	return service.SubmitResult{Request: &model.ChangeRequest{
		ID: 21, Proposal: model.CreateProposal{F: f2}, Status: model.StatusPending, AuthorID: sub.UserID,
	}}, nil
}

func (f *fakeChanges) Review(context.Context, model.Subject, int64, string) (service.ReviewResult, error) {
	return service.ReviewResult{}, fmt.Errorf("change request 21 already APPROVED: %w", errs.ErrConflict)
}

type fakePromotions struct {
	service.PromotionService
	mine *model.PromotionRequest
}

func (f *fakePromotions) Mine(context.Context, model.Subject) (*model.PromotionRequest, error) {
	return f.mine, nil
}

type fakeSaves struct {
	service.SaveService
	limit int
}

func (f *fakeSaves) Leaderboard(_ context.Context, _ int64, limit int) ([]model.LeaderboardEntry, error) {
	f.limit = limit
	return []model.LeaderboardEntry{{Rank: 1, UserID: 3, Username: "alice", Score: 900}}, nil
}

func (f *fakeSaves) GetSave(context.Context, model.Subject, int64, int) (*model.Save, error) {
	panic("boom")
}

type harness struct {
	e        *echo.Echo
	accounts *fakeAccounts
	users    *fakeUsers
	games    *fakeGames
	changes  *fakeChanges
	promos   *fakePromotions
	saves    *fakeSaves
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	policy, err := authz.Load("")
	require.NoError(t, err)

	h := &harness{
		accounts: &fakeAccounts{byToken: map[string]*model.User{
			"admin-token":  {ID: 1, Username: "root", Role: model.RoleAdmin},
			"mod-token":    {ID: 2, Username: "mod", Role: model.RoleModerator},
			"player-token": {ID: 3, Username: "alice", Role: model.RoleUser},
		}},
		users: &fakeUsers{},
		games: &fakeGames{games: map[int64]*model.Game{7: {ID: 7, GameFields: model.GameFields{Title: "Phish Hunt", Difficulty: 1}}}},
		changes: &fakeChanges{pending: map[int64]*model.ChangeRequest{
			21: {ID: 21, Proposal: model.CreateProposal{F: model.GameFields{Title: "Phish Hunt", Difficulty: 1}}, Status: model.StatusPending, AuthorID: 2},
		}},
		promos: &fakePromotions{},
		saves:  &fakeSaves{},
	}
	srv := New(Services{
		Accounts:   h.accounts,
		Users:      h.users,
		Games:      h.games,
		Changes:    h.changes,
		Promotions: h.promos,
		Saves:      h.saves,
	}, policy, zap.NewNop(), opts)
	h.e = srv.Echo()
	return h
}

func (h *harness) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, code int, tag string) {
	t.Helper()
	require.Equal(t, code, rec.Code, rec.Body.String())
	require.JSONEq(t, `"`+tag+`"`, string(extract(t, rec.Body.Bytes(), "error")))
}

func extract(t *testing.T, body []byte, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m), string(body))
	return m[key]
}
