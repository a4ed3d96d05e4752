// Package model defines domain entities used by services and repositories.
package model

import (
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is the single source of truth for a user's privileges.
type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// ParseRole converts a case-insensitive role name into a Role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleUser, RoleModerator, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// Elevated reports whether the role is MODERATOR or ADMIN.
func (r Role) Elevated() bool { return r == RoleModerator || r == RoleAdmin }

// User represents a platform account. Credentials live in the identity provider.
type User struct {
	ID         int64
	ExternalID string // identity-provider uid
	Username   string // unique login handle
	Email      string // unique
	FullName   string
	Role       Role
	CreatedAt  time.Time
}

// IsAdmin is the legacy boolean view of Role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// UserRef is the display identity embedded in request and leaderboard projections.
type UserRef struct {
	ID       int64
	Username string
	FullName string
	Email    string
	Role     Role
}

// Subject is an authenticated caller.
type Subject struct {
	UserID int64
	Role   Role
}

// Status is the review state shared by change and promotion requests.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool { return s == StatusApproved || s == StatusRejected }

// ParseDecision accepts only the two terminal statuses.
func ParseDecision(s string) (Status, bool) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusApproved, StatusRejected:
		return st, true
	default:
		return "", false
	}
}

// Control is a single input-control descriptor shown next to a game.
type Control struct {
	KeyImage    string `json:"key_image"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

// GameFields is the full mutable field set of a game.
type GameFields struct {
	Title       string
	Description string
	Difficulty  int
	ImageURL    string
	GameURL     string
	GameType    string
	Enabled     bool
	Controls    []Control // nil or empty: controls are left untouched on update
}

// Game is a live catalog entry.
type Game struct {
	ID int64
	GameFields
	CreatedAt time.Time
}

// GamePatch is a partial update; nil fields are left untouched.
type GamePatch struct {
	Title       *string
	Description *string
	Difficulty  *int
	ImageURL    *string
	GameURL     *string
	GameType    *string
	Enabled     *bool
	Controls    []Control
}

// Apply merges the patch into f and returns the result.
func (p GamePatch) Apply(f GameFields) GameFields {
	if p.Title != nil {
		f.Title = *p.Title
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.Difficulty != nil {
		f.Difficulty = *p.Difficulty
	}
	if p.ImageURL != nil {
		f.ImageURL = *p.ImageURL
	}
	if p.GameURL != nil {
		f.GameURL = *p.GameURL
	}
	if p.GameType != nil {
		f.GameType = *p.GameType
	}
	if p.Enabled != nil {
		f.Enabled = *p.Enabled
	}
	if len(p.Controls) > 0 {
		f.Controls = p.Controls
	}
	return f
}

// Empty reports whether the patch changes nothing.
func (p GamePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Difficulty == nil && p.ImageURL == nil &&
		p.GameURL == nil && p.GameType == nil && p.Enabled == nil && len(p.Controls) == 0
}

// ChangeKind tags the Proposal variant.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "CREATE"
	ChangeUpdate ChangeKind = "UPDATE"
)

// Proposal is a proposed catalog change: either CreateProposal or UpdateProposal.
type Proposal interface {
	Kind() ChangeKind
	Fields() GameFields
	// TargetID is the game being updated, 0 for CREATE.
	TargetID() int64
	withFields(GameFields) Proposal
}

// CreateProposal proposes a new game.
type CreateProposal struct{ F GameFields }

func (p CreateProposal) Kind() ChangeKind                 { return ChangeCreate }
func (p CreateProposal) Fields() GameFields               { return p.F }
func (p CreateProposal) TargetID() int64                  { return 0 }
func (p CreateProposal) withFields(f GameFields) Proposal { return CreateProposal{F: f} }

// UpdateProposal proposes replacing the fields of an existing game.
type UpdateProposal struct {
	Target int64
	F      GameFields
}

func (p UpdateProposal) Kind() ChangeKind                 { return ChangeUpdate }
func (p UpdateProposal) Fields() GameFields               { return p.F }
func (p UpdateProposal) TargetID() int64                  { return p.Target }
func (p UpdateProposal) withFields(f GameFields) Proposal { return UpdateProposal{Target: p.Target, F: f} }

// NewProposal builds the variant for kind. UPDATE without a target yields ok=false.
func NewProposal(kind ChangeKind, target int64, f GameFields) (Proposal, bool) {
	switch kind {
	case ChangeCreate:
		return CreateProposal{F: f}, true
	case ChangeUpdate:
		if target <= 0 {
			return nil, false
		}
		return UpdateProposal{Target: target, F: f}, true
	default:
		return nil, false
	}
}

// PatchProposal merges patch into the proposal's field set, keeping its variant.
func PatchProposal(p Proposal, patch GamePatch) Proposal {
	return p.withFields(patch.Apply(p.Fields()))
}

// ChangeRequest is a queued catalog change awaiting administrator review.
type ChangeRequest struct {
	ID         int64
	Proposal   Proposal
	Status     Status
	AuthorID   int64
	ReviewedBy *int64
	ReviewedAt *time.Time
	CreatedAt  time.Time
}

// PromotionRequest is a USER's request to become a MODERATOR.
type PromotionRequest struct {
	ID         int64
	UserID     int64
	Reason     string
	Status     Status
	ReviewedBy *int64
	ReviewedAt *time.Time
	CreatedAt  time.Time
	User       *UserRef // requester, when loaded
	Reviewer   *UserRef // reviewer, when loaded
}

// SaveKey identifies a save slot.
type SaveKey struct {
	UserID int64
	GameID int64
	Slot   int
}

// Save is the opaque persisted progress of a user in a game slot.
type Save struct {
	ID        int64
	UserID    int64
	GameID    int64
	Slot      int
	Data      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Highscore *Highscore // nil when no score was recorded yet
}

// Highscore is the best score for a save. ID==0 marks a synthetic, unpersisted value.
type Highscore struct {
	ID        int64
	SaveID    int64
	GameID    int64
	Score     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LeaderboardEntry is one ranked row of a game leaderboard.
type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	Slot       int       `json:"slot"`
	Score      int64     `json:"score"`
	AchievedAt time.Time `json:"achieved_at"`
}

// Tokens collects issued identity tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// Identity is a credential record owned by the identity provider.
type Identity struct {
	UID           uuid.UUID
	Email         string
	PwdHash       string // encoded Argon2id
	DisplayName   string
	EmailVerified bool
	CreatedAt     time.Time
}

// OobKind is the purpose of an out-of-band code.
type OobKind string

const (
	OobVerifyEmail   OobKind = "VERIFY_EMAIL"
	OobPasswordReset OobKind = "PASSWORD_RESET"
)

// OobCode is a stored one-time code; only its hash is persisted.
type OobCode struct {
	Hash      []byte
	Kind      OobKind
	UID       uuid.UUID
	ExpiresAt time.Time
}
