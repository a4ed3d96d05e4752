package service

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/cybergames/internal/authz"
	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/identity"
	"github.com/and161185/cybergames/internal/model"
	"github.com/and161185/cybergames/internal/repository"
)

var (
	admin     = model.Subject{UserID: 1, Role: model.RoleAdmin}
	moderator = model.Subject{UserID: 2, Role: model.RoleModerator}
	player    = model.Subject{UserID: 3, Role: model.RoleUser}
)

func testPolicy(t *testing.T) authz.Policy {
	t.Helper()
	p, err := authz.Load("")
	if err != nil {
		t.Fatalf("authz.Load: %v", err)
	}
	return p
}

func ptr[T any](v T) *T { return &v }

type fakeUsers struct {
	byID   map[int64]*model.User
	nextID int64

	createErr error
	updateErr error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers(us ...model.User) *fakeUsers {
	f := &fakeUsers{byID: map[int64]*model.User{}, nextID: 100}
	for i := range us {
		u := us[i]
		f.byID[u.ID] = &u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now()
	c := *u
	f.byID[u.ID] = &c
	return nil
}
func (f *fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}
func (f *fakeUsers) GetByExternalID(_ context.Context, uid string) (*model.User, error) {
	for _, u := range f.byID {
		if u.ExternalID == uid {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}
func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}
func (f *fakeUsers) ExistsUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	for _, u := range f.byID {
		if strings.EqualFold(u.Username, username) || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}
func (f *fakeUsers) List(context.Context) ([]model.User, error) {
	out := []model.User{}
	for _, u := range f.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
func (f *fakeUsers) Update(_ context.Context, u *model.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.byID[u.ID]; !ok {
		return errs.ErrNotFound
	}
	c := *u
	f.byID[u.ID] = &c
	return nil
}
func (f *fakeUsers) Delete(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeGames struct {
	byID   map[int64]*model.Game
	nextID int64

	createCalls int
	updateCalls int
}

var _ repository.GameRepository = (*fakeGames)(nil)

func newFakeGames() *fakeGames { return &fakeGames{byID: map[int64]*model.Game{}} }

func (f *fakeGames) Create(_ context.Context, gf model.GameFields) (*model.Game, error) {
	f.createCalls++
	for _, g := range f.byID {
		if g.Title == gf.Title {
			return nil, errs.ErrAlreadyExists
		}
	}
	f.nextID++
	g := &model.Game{ID: f.nextID, GameFields: gf, CreatedAt: time.Now()}
	for i := range g.Controls {
		g.Controls[i].Order = i + 1
	}
	f.byID[g.ID] = g
	c := *g
	return &c, nil
}
func (f *fakeGames) Update(_ context.Context, id int64, gf model.GameFields) (*model.Game, error) {
	f.updateCalls++
	cur, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if len(gf.Controls) == 0 {
		gf.Controls = cur.Controls
	}
	cur.GameFields = gf
	c := *cur
	return &c, nil
}
func (f *fakeGames) Get(_ context.Context, id int64) (*model.Game, error) {
	g, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *g
	return &c, nil
}
func (f *fakeGames) GetByTitle(_ context.Context, title string) (*model.Game, error) {
	for _, g := range f.byID {
		if g.Title == title {
			c := *g
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}
func (f *fakeGames) List(_ context.Context, enabledOnly bool) ([]model.Game, error) {
	out := []model.Game{}
	for _, g := range f.byID {
		if enabledOnly && !g.Enabled {
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
func (f *fakeGames) Delete(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

// fakeChanges applies approved snapshots to games and restores the request
// when that fails, like the transactional repository.
type fakeChanges struct {
	byID   map[int64]*model.ChangeRequest
	nextID int64
	games  *fakeGames
}

var _ repository.ChangeRequestRepository = (*fakeChanges)(nil)

func newFakeChanges(games *fakeGames) *fakeChanges {
	return &fakeChanges{byID: map[int64]*model.ChangeRequest{}, games: games}
}

func (f *fakeChanges) Create(_ context.Context, authorID int64, p model.Proposal) (*model.ChangeRequest, error) {
	f.nextID++
	cr := &model.ChangeRequest{ID: f.nextID, Proposal: p, Status: model.StatusPending, AuthorID: authorID, CreatedAt: time.Now()}
	f.byID[cr.ID] = cr
	c := *cr
	return &c, nil
}
func (f *fakeChanges) Get(_ context.Context, id int64) (*model.ChangeRequest, error) {
	cr, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *cr
	return &c, nil
}
func (f *fakeChanges) List(_ context.Context, status model.Status) ([]model.ChangeRequest, error) {
	out := []model.ChangeRequest{}
	for _, cr := range f.byID {
		if status == "" || cr.Status == status {
			out = append(out, *cr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
func (f *fakeChanges) ListByAuthor(_ context.Context, authorID int64) ([]model.ChangeRequest, error) {
	out := []model.ChangeRequest{}
	for _, cr := range f.byID {
		if cr.AuthorID == authorID {
			out = append(out, *cr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
func (f *fakeChanges) UpdatePending(_ context.Context, id int64, p model.Proposal) (*model.ChangeRequest, error) {
	cr, ok := f.byID[id]
	if !ok || cr.Status != model.StatusPending {
		return nil, errs.ErrConflict
	}
	cr.Proposal = p
	c := *cr
	return &c, nil
}
func (f *fakeChanges) DeletePending(_ context.Context, id int64) error {
	cr, ok := f.byID[id]
	if !ok || cr.Status != model.StatusPending {
		return errs.ErrConflict
	}
	delete(f.byID, id)
	return nil
}
func (f *fakeChanges) Review(ctx context.Context, id int64, decision model.Status, reviewerID int64, at time.Time) (*model.ChangeRequest, *model.Game, error) {
	cr, ok := f.byID[id]
	if !ok {
		return nil, nil, errs.ErrNotFound
	}
	if cr.Status != model.StatusPending {
		return nil, nil, errs.ErrConflict
	}
	var (
		g   *model.Game
		err error
	)
	if decision == model.StatusApproved {
		switch p := cr.Proposal.(type) {
		case model.CreateProposal:
			g, err = f.games.Create(ctx, p.F)
		case model.UpdateProposal:
			g, err = f.games.Update(ctx, p.Target, p.F)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	cr.Status = decision
	cr.ReviewedBy = &reviewerID
	cr.ReviewedAt = &at
	c := *cr
	return &c, g, nil
}

type fakePromotions struct {
	byID   map[int64]*model.PromotionRequest
	nextID int64
	users  *fakeUsers
}

var _ repository.PromotionRepository = (*fakePromotions)(nil)

func newFakePromotions(users *fakeUsers) *fakePromotions {
	return &fakePromotions{byID: map[int64]*model.PromotionRequest{}, users: users}
}

func (f *fakePromotions) Create(_ context.Context, userID int64, reason string) (*model.PromotionRequest, error) {
	f.nextID++
	pr := &model.PromotionRequest{ID: f.nextID, UserID: userID, Reason: reason, Status: model.StatusPending, CreatedAt: time.Now()}
	f.byID[pr.ID] = pr
	c := *pr
	return &c, nil
}
func (f *fakePromotions) Get(_ context.Context, id int64) (*model.PromotionRequest, error) {
	pr, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *pr
	return &c, nil
}
func (f *fakePromotions) HasPending(_ context.Context, userID int64) (bool, error) {
	for _, pr := range f.byID {
		if pr.UserID == userID && pr.Status == model.StatusPending {
			return true, nil
		}
	}
	return false, nil
}
func (f *fakePromotions) List(_ context.Context, status model.Status) ([]model.PromotionRequest, error) {
	out := []model.PromotionRequest{}
	for _, pr := range f.byID {
		if status == "" || pr.Status == status {
			out = append(out, *pr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
func (f *fakePromotions) Latest(_ context.Context, userID int64) (*model.PromotionRequest, error) {
	var last *model.PromotionRequest
	for _, pr := range f.byID {
		if pr.UserID == userID && (last == nil || pr.ID > last.ID) {
			last = pr
		}
	}
	if last == nil {
		return nil, errs.ErrNotFound
	}
	c := *last
	return &c, nil
}
func (f *fakePromotions) Review(_ context.Context, id int64, decision model.Status, reviewerID int64, at time.Time) (*model.PromotionRequest, error) {
	pr, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if pr.Status != model.StatusPending {
		return nil, errs.ErrConflict
	}
	pr.Status = decision
	pr.ReviewedBy = &reviewerID
	pr.ReviewedAt = &at
	if u, ok := f.users.byID[pr.UserID]; ok && decision == model.StatusApproved && u.Role == model.RoleUser {
		u.Role = model.RoleModerator
	}
	c := *pr
	return &c, nil
}
func (f *fakePromotions) DeletePending(_ context.Context, id, userID int64) error {
	pr, ok := f.byID[id]
	if !ok || pr.UserID != userID || pr.Status != model.StatusPending {
		return errs.ErrConflict
	}
	delete(f.byID, id)
	return nil
}

type fakeSaves struct {
	byKey  map[model.SaveKey]*model.Save
	scores map[int64]*model.Highscore
	nextID int64

	inserts          int
	leaderboardCalls int
	leaderboardLimit int
}

var _ repository.SaveRepository = (*fakeSaves)(nil)

func newFakeSaves() *fakeSaves {
	return &fakeSaves{byKey: map[model.SaveKey]*model.Save{}, scores: map[int64]*model.Highscore{}}
}

func (f *fakeSaves) GetOrCreate(_ context.Context, key model.SaveKey) (*model.Save, error) {
	s, ok := f.byKey[key]
	if !ok {
		f.inserts++
		f.nextID++
		now := time.Now()
		s = &model.Save{ID: f.nextID, UserID: key.UserID, GameID: key.GameID, Slot: key.Slot, CreatedAt: now, UpdatedAt: now}
		f.byKey[key] = s
	}
	c := *s
	if hs, ok := f.scores[s.ID]; ok {
		h := *hs
		c.Highscore = &h
	}
	return &c, nil
}
func (f *fakeSaves) Upsert(ctx context.Context, key model.SaveKey, data string) (*model.Save, error) {
	if _, err := f.GetOrCreate(ctx, key); err != nil {
		return nil, err
	}
	s := f.byKey[key]
	s.Data = data
	s.UpdatedAt = time.Now()
	c := *s
	return &c, nil
}
func (f *fakeSaves) GetHighscore(_ context.Context, saveID int64) (*model.Highscore, error) {
	hs, ok := f.scores[saveID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *hs
	return &c, nil
}
func (f *fakeSaves) RaiseHighscore(_ context.Context, saveID, gameID, score int64) (*model.Highscore, bool, error) {
	hs, ok := f.scores[saveID]
	switch {
	case !ok:
		now := time.Now()
		hs = &model.Highscore{ID: saveID, SaveID: saveID, GameID: gameID, Score: score, CreatedAt: now, UpdatedAt: now}
		f.scores[saveID] = hs
	case hs.Score < score:
		hs.Score = score
		hs.UpdatedAt = time.Now()
	default:
		c := *hs
		return &c, false, nil
	}
	c := *hs
	return &c, true, nil
}
func (f *fakeSaves) Leaderboard(_ context.Context, gameID int64, limit int) ([]model.LeaderboardEntry, error) {
	f.leaderboardCalls++
	f.leaderboardLimit = limit
	out := []model.LeaderboardEntry{}
	for _, s := range f.byKey {
		hs, ok := f.scores[s.ID]
		if !ok || s.GameID != gameID {
			continue
		}
		out = append(out, model.LeaderboardEntry{UserID: s.UserID, Slot: s.Slot, Score: hs.Score, AchievedAt: hs.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].AchievedAt.Before(out[j].AchievedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

// fakeCache keeps only the current generation of each board.
type fakeCache struct {
	entries     map[int64][]model.LeaderboardEntry
	gens        map[int64]int64
	invalidated []int64
	staleFills  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[int64][]model.LeaderboardEntry{}, gens: map[int64]int64{}}
}

func (c *fakeCache) Get(_ context.Context, gameID int64) ([]model.LeaderboardEntry, int64, bool) {
	e, ok := c.entries[gameID]
	return e, c.gens[gameID], ok
}
func (c *fakeCache) Put(_ context.Context, gameID, gen int64, entries []model.LeaderboardEntry) {
	if gen != c.gens[gameID] {
		c.staleFills++
		return
	}
	c.entries[gameID] = entries
}
func (c *fakeCache) Invalidate(_ context.Context, gameID int64) {
	delete(c.entries, gameID)
	c.gens[gameID]++
	c.invalidated = append(c.invalidated, gameID)
}

type published struct {
	topic string
	event any
}

type recordingPublisher struct {
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.events = append(p.events, published{topic: topic, event: event})
	return p.err
}

// fakeGateway is an in-memory identity provider; tokens are "tok-<uid>".
type fakeGateway struct {
	byUID    map[uuid.UUID]*fakeIdentity
	sent     []model.OobKind
	codes    map[string]uuid.UUID
	deleted  []uuid.UUID
	renamed  map[uuid.UUID]string
	createID uuid.UUID

	signInErr error
	sendErr   error
}

type fakeIdentity struct {
	email    string
	password string
	verified bool
}

var _ identity.Gateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{byUID: map[uuid.UUID]*fakeIdentity{}, codes: map[string]uuid.UUID{}, renamed: map[uuid.UUID]string{}}
}

func (g *fakeGateway) byEmail(email string) (uuid.UUID, *fakeIdentity) {
	for uid, id := range g.byUID {
		if id.email == email {
			return uid, id
		}
	}
	return uuid.Nil, nil
}

func (g *fakeGateway) CreateUser(_ context.Context, email, password, _ string) (uuid.UUID, error) {
	if _, id := g.byEmail(email); id != nil {
		return uuid.Nil, errs.ErrAlreadyExists
	}
	uid := g.createID
	if uid == uuid.Nil {
		uid = uuid.Must(uuid.NewV4())
	}
	g.byUID[uid] = &fakeIdentity{email: email, password: password}
	return uid, nil
}
func (g *fakeGateway) SignIn(_ context.Context, email, password, _ string) (model.Tokens, identity.Claims, error) {
	if g.signInErr != nil {
		return model.Tokens{}, identity.Claims{}, g.signInErr
	}
	uid, id := g.byEmail(email)
	if id == nil || id.password != password {
		return model.Tokens{}, identity.Claims{}, errs.ErrUnauthorized
	}
	return model.Tokens{AccessToken: "tok-" + uid.String()}, identity.Claims{UID: uid, Email: email, EmailVerified: id.verified}, nil
}
func (g *fakeGateway) VerifyToken(_ context.Context, token string) (identity.Claims, error) {
	uid, err := uuid.FromString(strings.TrimPrefix(token, "tok-"))
	if err != nil {
		return identity.Claims{}, errs.ErrUnauthorized
	}
	id, ok := g.byUID[uid]
	if !ok {
		return identity.Claims{}, errs.ErrUnauthorized
	}
	return identity.Claims{UID: uid, Email: id.email, EmailVerified: id.verified}, nil
}
func (g *fakeGateway) Lookup(_ context.Context, uid uuid.UUID) (identity.Claims, error) {
	id, ok := g.byUID[uid]
	if !ok {
		return identity.Claims{}, errs.ErrNotFound
	}
	return identity.Claims{UID: uid, Email: id.email, EmailVerified: id.verified}, nil
}
func (g *fakeGateway) CheckPassword(_ context.Context, uid uuid.UUID, password string) error {
	id, ok := g.byUID[uid]
	if !ok || id.password != password {
		return errs.ErrUnauthorized
	}
	return nil
}
func (g *fakeGateway) UpdateUser(_ context.Context, uid uuid.UUID, upd identity.UserUpdate) error {
	id, ok := g.byUID[uid]
	if !ok {
		return errs.ErrNotFound
	}
	if upd.Password != nil {
		id.password = *upd.Password
	}
	if upd.DisplayName != nil {
		g.renamed[uid] = *upd.DisplayName
	}
	return nil
}
func (g *fakeGateway) DeleteUser(_ context.Context, uid uuid.UUID) error {
	if _, ok := g.byUID[uid]; !ok {
		return errs.ErrNotFound
	}
	delete(g.byUID, uid)
	g.deleted = append(g.deleted, uid)
	return nil
}
func (g *fakeGateway) SendOobCode(_ context.Context, kind model.OobKind, email string) error {
	if g.sendErr != nil {
		return g.sendErr
	}
	uid, id := g.byEmail(email)
	if id == nil {
		return errs.ErrNotFound
	}
	g.sent = append(g.sent, kind)
	g.codes[string(kind)+":code"] = uid
	return nil
}
func (g *fakeGateway) PeekOobCode(_ context.Context, kind model.OobKind, code string) (string, error) {
	uid, ok := g.codes[string(kind)+":"+code]
	if !ok {
		return "", errs.ErrInvalidArgument
	}
	return g.byUID[uid].email, nil
}
func (g *fakeGateway) ApplyOobCode(_ context.Context, kind model.OobKind, code, newPassword string) (string, error) {
	uid, ok := g.codes[string(kind)+":"+code]
	if !ok {
		return "", errs.ErrInvalidArgument
	}
	delete(g.codes, string(kind)+":"+code)
	id := g.byUID[uid]
	if kind == model.OobVerifyEmail {
		id.verified = true
	} else {
		id.password = newPassword
	}
	return id.email, nil
}
