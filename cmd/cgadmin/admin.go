package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/identity"
	"github.com/and161185/cybergames/internal/model"
	"github.com/and161185/cybergames/internal/service"
)

// createAdmin promotes an existing account to ADMIN and marks its email as
// verified. A failed verification only warns.
func (t *tool) createAdmin(ctx context.Context, email string) error {
	email, err := identity.NormalizeEmail(email)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	u, err := t.users.GetByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("no account with email %q; register it first", email)
	}
	if err != nil {
		return err
	}
	if u.Role == model.RoleAdmin {
		fmt.Fprintf(t.out, "%s is already an administrator\n", email)
		return nil
	}

	u.Role = model.RoleAdmin
	if err := t.users.Update(ctx, u); err != nil {
		return fmt.Errorf("promote: %w", err)
	}
	if err := t.markVerified(ctx, u.ExternalID); err != nil {
		fmt.Fprintf(t.out, "warning: email not verified automatically: %v\n", err)
	}

	fmt.Fprintf(t.out, "promoted to administrator\n  name: %s\n  username: %s\n  email: %s\n  role: %s\n",
		u.FullName, u.Username, u.Email, u.Role)
	return nil
}

func (t *tool) markVerified(ctx context.Context, externalID string) error {
	uid, err := uuid.FromString(externalID)
	if err != nil {
		return fmt.Errorf("external id %q: %w", externalID, err)
	}
	id, err := t.identities.GetByUID(ctx, uid)
	if err != nil {
		return err
	}
	if id.EmailVerified {
		return nil
	}
	id.EmailVerified = true
	return t.identities.Update(ctx, id)
}

// defaultCatalog is the starter set of games.
var defaultCatalog = []model.GameFields{
	{
		Title:       "Phishing Detector",
		Description: "Learn to spot malicious emails that try to steal your personal data. Inspect each message and classify it.",
		Difficulty:  2,
		GameType:    "local",
		Enabled:     true,
		Controls: []model.Control{
			{KeyImage: "mouse", Description: "Navigate and select", Order: 1},
			{KeyImage: "click_l", Description: "Interact with elements", Order: 2},
		},
	},
	{
		Title:       "Secure Password Builder",
		Description: "Master building strong passwords and learn how password managers work.",
		Difficulty:  1,
		GameType:    "external",
	},
	{
		Title:       "Cryptography Master",
		Description: "Understand how data is encrypted on the internet.",
		Difficulty:  3,
		GameType:    "external",
	},
	{
		Title:       "Social Media Safety",
		Description: "Protect your privacy and data on social networks.",
		Difficulty:  1,
		GameType:    "external",
	},
	{
		Title:       "Malware Defense",
		Description: "Identify and defend against viruses, trojans and other malware.",
		Difficulty:  2,
		GameType:    "external",
	},
}

// seed inserts every default game whose title is not taken yet.
func (t *tool) seed(ctx context.Context) error {
	created := 0
	for _, f := range defaultCatalog {
		f, err := service.NormalizeFields(f)
		if err != nil {
			return fmt.Errorf("catalog %q: %w", f.Title, err)
		}
		_, err = t.games.GetByTitle(ctx, f.Title)
		switch {
		case err == nil:
			fmt.Fprintf(t.out, "  = %s (exists)\n", f.Title)
			continue
		case !errors.Is(err, errs.ErrNotFound):
			return err
		}
		g, err := t.games.Create(ctx, f)
		if errors.Is(err, errs.ErrAlreadyExists) {
			fmt.Fprintf(t.out, "  = %s (exists)\n", f.Title)
			continue
		}
		if err != nil {
			return fmt.Errorf("create %q: %w", f.Title, err)
		}
		created++
		state := "disabled"
		if g.Enabled {
			state = "enabled"
		}
		fmt.Fprintf(t.out, "  + %s (%s, %s)\n", g.Title, g.GameType, state)
	}
	fmt.Fprintf(t.out, "seed complete: %d game(s) created\n", created)
	return nil
}
