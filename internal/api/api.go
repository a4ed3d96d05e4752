// Package api holds the JSON request and response bodies of the HTTP API.
package api

import "time"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MessageResponse acknowledges an action without a payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// --- auth ---

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type CodeRequest struct {
	Code string `json:"oob_code"`
}

type ResetPasswordRequest struct {
	Code        string `json:"oob_code"`
	NewPassword string `json:"new_password"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

type EmailVerificationResponse struct {
	EmailVerified bool `json:"email_verified"`
}

type ResetCodeResponse struct {
	Email string `json:"email"`
}

// --- users ---

// User is an account. Admin is derived from Role.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Admin     bool      `json:"admin"`
	CreatedAt time.Time `json:"created_at"`
}

type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

type ProfileUpdate struct {
	FullName string `json:"full_name"`
}

// AdminUserUpdate edits an account; role wins over the legacy admin flag.
type AdminUserUpdate struct {
	FullName *string `json:"full_name"`
	Role     *string `json:"role"`
	Admin    *bool   `json:"admin"`
}

// --- catalog ---

type Control struct {
	KeyImage    string `json:"key_image"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

type Game struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Difficulty  int       `json:"difficulty"`
	ImageURL    string    `json:"image_url"`
	GameURL     string    `json:"game_url"`
	GameType    string    `json:"game_type"`
	Enabled     bool      `json:"enabled"`
	Controls    []Control `json:"controls"`
	CreatedAt   time.Time `json:"created_at"`
}

// GameInput is a full or partial game body; omitted fields are kept.
// Order of Controls is their submitted position.
type GameInput struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Difficulty  *int      `json:"difficulty"`
	ImageURL    *string   `json:"image_url"`
	GameURL     *string   `json:"game_url"`
	GameType    *string   `json:"game_type"`
	Enabled     *bool     `json:"enabled"`
	Controls    []Control `json:"controls"`
}

type ChangeSubmitRequest struct {
	ChangeType string `json:"change_type"`
	GameID     int64  `json:"game_id,omitempty"`
	GameInput
}

type ChangeRequest struct {
	ID          int64      `json:"id"`
	ChangeType  string     `json:"change_type"`
	GameID      *int64     `json:"game_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  int        `json:"difficulty"`
	ImageURL    string     `json:"image_url"`
	GameURL     string     `json:"game_url"`
	GameType    string     `json:"game_type"`
	Enabled     bool       `json:"enabled"`
	Controls    []Control  `json:"controls"`
	Status      string     `json:"status"`
	AuthorID    int64      `json:"author_id"`
	ReviewedBy  *int64     `json:"reviewed_by"`
	ReviewedAt  *time.Time `json:"reviewed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SubmitResponse carries either the applied game or the queued request.
type SubmitResponse struct {
	Message string         `json:"message"`
	Game    *Game          `json:"game,omitempty"`
	Request *ChangeRequest `json:"request,omitempty"`
}

type ReviewRequest struct {
	Status string `json:"status"`
}

type ChangeReviewResponse struct {
	Message string         `json:"message"`
	Request *ChangeRequest `json:"request"`
	Game    *Game          `json:"game,omitempty"`
}

// --- moderator requests ---

type PromotionCreateRequest struct {
	Reason string `json:"reason"`
}

type Promotion struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Reason     string     `json:"reason"`
	Status     string     `json:"status"`
	ReviewedBy *int64     `json:"reviewed_by"`
	ReviewedAt *time.Time `json:"reviewed_at"`
	CreatedAt  time.Time  `json:"created_at"`
	User       *UserRef   `json:"user,omitempty"`
	Reviewer   *UserRef   `json:"reviewer,omitempty"`
}

// --- saves ---

type SaveRequest struct {
	GameID   int64  `json:"game_id"`
	Slot     int    `json:"slot"`
	SaveData string `json:"save_data"`
}

type Save struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	GameID    int64     `json:"game_id"`
	Slot      int       `json:"slot"`
	SaveData  string    `json:"save_data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type HighscoreRequest struct {
	GameID int64 `json:"game_id"`
	Slot   int   `json:"slot"`
	Score  int64 `json:"score"`
}

// Highscore is a best score; ID 0 means none was recorded yet.
type Highscore struct {
	ID        int64     `json:"id"`
	GameID    int64     `json:"game_id"`
	Score     int64     `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	Slot       int       `json:"slot"`
	Score      int64     `json:"score"`
	AchievedAt time.Time `json:"achieved_at"`
}
