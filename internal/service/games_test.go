package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/model"
)

func TestNormalizeFields(t *testing.T) {
	t.Parallel()
	ok := model.GameFields{Title: " T ", Description: " D ", Difficulty: 2, Controls: []model.Control{{KeyImage: "k.png"}}}
	got, err := NormalizeFields(ok)
	if err != nil {
		t.Fatalf("NormalizeFields: %v", err)
	}
	if got.Title != "T" || got.Description != "D" {
		t.Fatalf("not trimmed: %+v", got)
	}

	cases := map[string]func(f *model.GameFields){
		"no title":       func(f *model.GameFields) { f.Title = "  " },
		"no description": func(f *model.GameFields) { f.Description = "" },
		"too easy":       func(f *model.GameFields) { f.Difficulty = 0 },
		"too hard":       func(f *model.GameFields) { f.Difficulty = 4 },
		"bad control":    func(f *model.GameFields) { f.Controls = []model.Control{{Description: "x"}} },
	}
	for name, mut := range cases {
		f := ok
		mut(&f)
		if _, err := NormalizeFields(f); !errors.Is(err, errs.ErrInvalidArgument) {
			t.Fatalf("%s: want ErrInvalidArgument, got %v", name, err)
		}
	}
}

func TestGames_CRUD(t *testing.T) {
	t.Parallel()
	games := newFakeGames()
	cache := newFakeCache()
	s := NewGameService(games, testPolicy(t), cache, zap.NewNop())
	ctx := context.Background()

	f := model.GameFields{Title: "Crypto 101", Description: "ciphers", Difficulty: 1, Enabled: true,
		Controls: []model.Control{{KeyImage: "space.png"}}}
	if _, err := s.Create(ctx, moderator, f); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("want ErrForbidden for moderator, got %v", err)
	}
	g, err := s.Create(ctx, admin, f)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, admin, f); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("want ErrConflict for duplicate title, got %v", err)
	}

	up, err := s.Update(ctx, admin, g.ID, model.GamePatch{Enabled: ptr(false)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if up.Enabled || up.Title != "Crypto 101" || len(up.Controls) != 1 {
		t.Fatalf("unexpected update: %+v", up)
	}
	if _, err := s.Update(ctx, admin, 999, model.GamePatch{Enabled: ptr(true)}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := s.Update(ctx, player, g.ID, model.GamePatch{}); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	same, err := s.Update(ctx, admin, g.ID, model.GamePatch{})
	if err != nil || games.updateCalls != 1 || same.ID != g.ID {
		t.Fatalf("empty patch must not write: %v calls=%d", err, games.updateCalls)
	}

	enabled, _ := s.List(ctx, true)
	all, _ := s.List(ctx, false)
	if len(enabled) != 0 || len(all) != 1 {
		t.Fatalf("want 0 enabled and 1 total, got %d/%d", len(enabled), len(all))
	}

	if err := s.Delete(ctx, admin, g.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != g.ID {
		t.Fatalf("leaderboard not invalidated: %v", cache.invalidated)
	}
	if _, err := s.Get(ctx, g.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, admin, g.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound on second delete, got %v", err)
	}
}
