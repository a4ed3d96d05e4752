package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/identity"
	"github.com/and161185/cybergames/internal/model"
	"github.com/and161185/cybergames/internal/repository"
)

// MinUsernameLen is the shortest accepted login handle.
const MinUsernameLen = 3

// AccountService defines registration, sign-in and credential flows.
type AccountService interface {
	// Register creates credentials in the identity provider and the platform account.
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	// Login signs in through the identity provider and resolves the account.
	Login(ctx context.Context, email, password, ip string) (model.Tokens, *model.User, error)
	// Authenticate resolves the account behind a bearer token.
	Authenticate(ctx context.Context, token string) (*model.User, error)
	// Me returns the caller's account.
	Me(ctx context.Context, userID int64) (*model.User, error)
	// EmailVerified reports the verification state of the caller's email.
	EmailVerified(ctx context.Context, userID int64) (bool, error)
	// ForgotPassword issues a reset code; unknown emails succeed silently.
	ForgotPassword(ctx context.Context, email string) error
	// CheckResetCode returns the email a reset code belongs to.
	CheckResetCode(ctx context.Context, code string) (string, error)
	// ResetPassword consumes a reset code and sets a new password.
	ResetPassword(ctx context.Context, code, newPassword string) error
	// VerifyEmail consumes a verification code.
	VerifyEmail(ctx context.Context, code string) error
	// ResendVerification issues a new verification code.
	ResendVerification(ctx context.Context, email string) error
	// ChangePassword replaces the caller's password after checking the current one.
	ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error
	// DeleteAccount removes credentials and the account; owned data cascades.
	DeleteAccount(ctx context.Context, userID int64) error
}

type AccountServiceImpl struct {
	users repository.UserRepository
	idp   identity.Gateway
	log   *zap.Logger
}

// NewAccountService constructs AccountService with required dependencies.
func NewAccountService(users repository.UserRepository, idp identity.Gateway, log *zap.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{users: users, idp: idp, log: log}
}

// Register checks handle uniqueness locally, creates the identity and then the
// account. When the account insert fails the identity is removed again.
func (s *AccountServiceImpl) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if utf8.RuneCountInString(username) < MinUsernameLen {
		return nil, invalid("username shorter than %d", MinUsernameLen)
	}
	email, err := identity.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < identity.MinPasswordLen {
		return nil, invalid("password shorter than %d", identity.MinPasswordLen)
	}

	taken, err := s.users.ExistsUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("username or email: %w", errs.ErrAlreadyExists)
	}

	uid, err := s.idp.CreateUser(ctx, email, password, username)
	if err != nil {
		return nil, err
	}
	u := &model.User{ExternalID: uid.String(), Username: username, Email: email, FullName: username, Role: model.RoleUser}
	if err := s.users.Create(ctx, u); err != nil {
		if derr := s.idp.DeleteUser(ctx, uid); derr != nil {
			s.log.Error("orphan identity after failed register", zap.String("uid", uid.String()), zap.Error(derr))
		}
		return nil, err
	}

	if err := s.idp.SendOobCode(ctx, model.OobVerifyEmail, email); err != nil {
		s.log.Warn("verification code not sent", zap.Int64("user_id", u.ID), zap.Error(err))
	}
	s.log.Info("account registered", zap.Int64("user_id", u.ID))
	return u, nil
}

// Login signs in and maps the identity to the platform account.
func (s *AccountServiceImpl) Login(ctx context.Context, email, password, ip string) (model.Tokens, *model.User, error) {
	tok, claims, err := s.idp.SignIn(ctx, email, password, ip)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	u, err := s.byExternalID(ctx, claims.UID)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	return tok, u, nil
}

// Authenticate verifies the token and loads its account.
func (s *AccountServiceImpl) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.idp.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.byExternalID(ctx, claims.UID)
}

func (s *AccountServiceImpl) byExternalID(ctx context.Context, uid uuid.UUID) (*model.User, error) {
	u, err := s.users.GetByExternalID(ctx, uid.String())
	if errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("no account for identity: %w", errs.ErrUnauthorized)
	}
	return u, err
}

// Me returns the caller's account.
func (s *AccountServiceImpl) Me(ctx context.Context, userID int64) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// EmailVerified asks the identity provider for the caller's verification state.
func (s *AccountServiceImpl) EmailVerified(ctx context.Context, userID int64) (bool, error) {
	uid, err := s.externalID(ctx, userID)
	if err != nil {
		return false, err
	}
	claims, err := s.idp.Lookup(ctx, uid)
	if err != nil {
		return false, err
	}
	return claims.EmailVerified, nil
}

// ForgotPassword never reveals whether the email is registered.
func (s *AccountServiceImpl) ForgotPassword(ctx context.Context, email string) error {
	err := s.idp.SendOobCode(ctx, model.OobPasswordReset, email)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	return err
}

// CheckResetCode returns the email of a still valid reset code.
func (s *AccountServiceImpl) CheckResetCode(ctx context.Context, code string) (string, error) {
	return s.idp.PeekOobCode(ctx, model.OobPasswordReset, code)
}

// ResetPassword consumes a reset code.
func (s *AccountServiceImpl) ResetPassword(ctx context.Context, code, newPassword string) error {
	_, err := s.idp.ApplyOobCode(ctx, model.OobPasswordReset, code, newPassword)
	return err
}

// VerifyEmail consumes a verification code.
func (s *AccountServiceImpl) VerifyEmail(ctx context.Context, code string) error {
	_, err := s.idp.ApplyOobCode(ctx, model.OobVerifyEmail, code, "")
	return err
}

// ResendVerification issues a new code unless the email is already verified.
func (s *AccountServiceImpl) ResendVerification(ctx context.Context, email string) error {
	email, err := identity.NormalizeEmail(email)
	if err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if ok, err := s.EmailVerified(ctx, u.ID); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("email already verified: %w", errs.ErrConflict)
	}
	return s.idp.SendOobCode(ctx, model.OobVerifyEmail, email)
}

// ChangePassword checks the current password before setting the new one.
func (s *AccountServiceImpl) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	uid, err := s.externalID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.idp.CheckPassword(ctx, uid, oldPassword); err != nil {
		return err
	}
	return s.idp.UpdateUser(ctx, uid, identity.UserUpdate{Password: &newPassword})
}

// DeleteAccount removes the identity, then the account.
func (s *AccountServiceImpl) DeleteAccount(ctx context.Context, userID int64) error {
	uid, err := s.externalID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.idp.DeleteUser(ctx, uid); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	s.log.Info("account deleted", zap.Int64("user_id", userID))
	return nil
}

func (s *AccountServiceImpl) externalID(ctx context.Context, userID int64) (uuid.UUID, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	uid, err := uuid.FromString(u.ExternalID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user %d: external id: %w", userID, err)
	}
	return uid, nil
}
