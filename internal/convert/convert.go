// Package convert maps domain models to HTTP API bodies and back.
package convert

import (
	"github.com/and161185/cybergames/internal/api"
	"github.com/and161185/cybergames/internal/model"
)

// --- users ---

// ToUser derives the legacy admin flag from the role.
func ToUser(u *model.User) api.User {
	return api.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      string(u.Role),
		Admin:     u.IsAdmin(),
		CreatedAt: u.CreatedAt,
	}
}

func ToUsers(in []model.User) []api.User {
	out := make([]api.User, 0, len(in))
	for i := range in {
		out = append(out, ToUser(&in[i]))
	}
	return out
}

func toUserRef(r *model.UserRef) *api.UserRef {
	if r == nil {
		return nil
	}
	return &api.UserRef{ID: r.ID, Username: r.Username, FullName: r.FullName, Email: r.Email, Role: string(r.Role)}
}

// --- catalog ---

func toControls(in []model.Control) []api.Control {
	out := make([]api.Control, 0, len(in))
	for _, c := range in {
		out = append(out, api.Control{KeyImage: c.KeyImage, Description: c.Description, Order: c.Order})
	}
	return out
}

func ToGame(g *model.Game) *api.Game {
	if g == nil {
		return nil
	}
	return &api.Game{
		ID:          g.ID,
		Title:       g.Title,
		Description: g.Description,
		Difficulty:  g.Difficulty,
		ImageURL:    g.ImageURL,
		GameURL:     g.GameURL,
		GameType:    g.GameType,
		Enabled:     g.Enabled,
		Controls:    toControls(g.Controls),
		CreatedAt:   g.CreatedAt,
	}
}

func ToGames(in []model.Game) []api.Game {
	out := make([]api.Game, 0, len(in))
	for i := range in {
		out = append(out, *ToGame(&in[i]))
	}
	return out
}

// FromGameInput builds a patch. Control order is the submitted position.
func FromGameInput(in api.GameInput) model.GamePatch {
	p := model.GamePatch{
		Title:       in.Title,
		Description: in.Description,
		Difficulty:  in.Difficulty,
		ImageURL:    in.ImageURL,
		GameURL:     in.GameURL,
		GameType:    in.GameType,
		Enabled:     in.Enabled,
	}
	for i, c := range in.Controls {
		p.Controls = append(p.Controls, model.Control{KeyImage: c.KeyImage, Description: c.Description, Order: i + 1})
	}
	return p
}

// FromGameCreate turns a create body into a full field set; enabled defaults to true.
func FromGameCreate(in api.GameInput) model.GameFields {
	return FromGameInput(in).Apply(model.GameFields{Enabled: true})
}

// --- change requests ---

func ToChange(cr *model.ChangeRequest) *api.ChangeRequest {
	if cr == nil {
		return nil
	}
	f := cr.Proposal.Fields()
	out := &api.ChangeRequest{
		ID:          cr.ID,
		ChangeType:  string(cr.Proposal.Kind()),
		Title:       f.Title,
		Description: f.Description,
		Difficulty:  f.Difficulty,
		ImageURL:    f.ImageURL,
		GameURL:     f.GameURL,
		GameType:    f.GameType,
		Enabled:     f.Enabled,
		Controls:    toControls(f.Controls),
		Status:      string(cr.Status),
		AuthorID:    cr.AuthorID,
		ReviewedBy:  cr.ReviewedBy,
		ReviewedAt:  cr.ReviewedAt,
		CreatedAt:   cr.CreatedAt,
	}
	if id := cr.Proposal.TargetID(); id > 0 {
		out.GameID = &id
	}
	return out
}

func ToChanges(in []model.ChangeRequest) []api.ChangeRequest {
	out := make([]api.ChangeRequest, 0, len(in))
	for i := range in {
		out = append(out, *ToChange(&in[i]))
	}
	return out
}

// --- moderator requests ---

func ToPromotion(pr *model.PromotionRequest) *api.Promotion {
	if pr == nil {
		return nil
	}
	return &api.Promotion{
		ID:         pr.ID,
		UserID:     pr.UserID,
		Reason:     pr.Reason,
		Status:     string(pr.Status),
		ReviewedBy: pr.ReviewedBy,
		ReviewedAt: pr.ReviewedAt,
		CreatedAt:  pr.CreatedAt,
		User:       toUserRef(pr.User),
		Reviewer:   toUserRef(pr.Reviewer),
	}
}

func ToPromotions(in []model.PromotionRequest) []api.Promotion {
	out := make([]api.Promotion, 0, len(in))
	for i := range in {
		out = append(out, *ToPromotion(&in[i]))
	}
	return out
}

// --- saves ---

func ToSave(s *model.Save) api.Save {
	return api.Save{
		ID:        s.ID,
		UserID:    s.UserID,
		GameID:    s.GameID,
		Slot:      s.Slot,
		SaveData:  s.Data,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func ToHighscore(h *model.Highscore) api.Highscore {
	return api.Highscore{ID: h.ID, GameID: h.GameID, Score: h.Score, CreatedAt: h.CreatedAt, UpdatedAt: h.UpdatedAt}
}

func ToLeaderboard(in []model.LeaderboardEntry) []api.LeaderboardEntry {
	out := make([]api.LeaderboardEntry, 0, len(in))
	for _, e := range in {
		out = append(out, api.LeaderboardEntry(e))
	}
	return out
}
