package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/cybergames/internal/authz"
	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/identity"
	"github.com/and161185/cybergames/internal/model"
	"github.com/and161185/cybergames/internal/repository"
)

// MinFullNameLen is the shortest accepted display name.
const MinFullNameLen = 3

// UserPatch is an administrator edit of an account. Admin is the legacy
// boolean view: true means ADMIN, false demotes an ADMIN to USER. Role wins
// when both are set.
type UserPatch struct {
	FullName *string
	Role     *model.Role
	Admin    *bool
}

// UserService defines profile and account administration operations.
type UserService interface {
	// Profile returns the caller's account.
	Profile(ctx context.Context, sub model.Subject) (*model.User, error)
	// UpdateProfile changes the caller's display name.
	UpdateProfile(ctx context.Context, sub model.Subject, fullName string) (*model.User, error)
	// List returns all accounts.
	List(ctx context.Context, sub model.Subject) ([]model.User, error)
	// Get returns an account.
	Get(ctx context.Context, sub model.Subject, id int64) (*model.User, error)
	// AdminUpdate edits another account's display name and role.
	AdminUpdate(ctx context.Context, sub model.Subject, id int64, patch UserPatch) (*model.User, error)
	// Delete removes an account and its credentials.
	Delete(ctx context.Context, sub model.Subject, id int64) error
}

type UserServiceImpl struct {
	users  repository.UserRepository
	idp    identity.Gateway
	policy authz.Policy
	log    *zap.Logger
}

// NewUserService constructs UserService.
func NewUserService(users repository.UserRepository, idp identity.Gateway, policy authz.Policy, log *zap.Logger) *UserServiceImpl {
	return &UserServiceImpl{users: users, idp: idp, policy: policy, log: log}
}

func (s *UserServiceImpl) guard(sub model.Subject, id int64, act string) error {
	if !s.policy.CanAct(sub, authz.Resource{Object: authz.ObjUser, OwnerID: id}, act) {
		return forbidden(act, authz.ObjUser)
	}
	return nil
}

func checkFullName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < MinFullNameLen {
		return "", invalid("full name shorter than %d", MinFullNameLen)
	}
	return name, nil
}

// Profile returns the caller's account.
func (s *UserServiceImpl) Profile(ctx context.Context, sub model.Subject) (*model.User, error) {
	return s.Get(ctx, sub, sub.UserID)
}

// UpdateProfile changes the caller's display name and mirrors it to the identity.
func (s *UserServiceImpl) UpdateProfile(ctx context.Context, sub model.Subject, fullName string) (*model.User, error) {
	if err := s.guard(sub, sub.UserID, authz.ActUpdate); err != nil {
		return nil, err
	}
	name, err := checkFullName(fullName)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}
	u.FullName = name
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	if uid, err := uuid.FromString(u.ExternalID); err == nil {
		if err := s.idp.UpdateUser(ctx, uid, identity.UserUpdate{DisplayName: &name}); err != nil {
			s.log.Warn("display name not mirrored", zap.Int64("user_id", u.ID), zap.Error(err))
		}
	}
	return u, nil
}

// List returns all accounts ordered by ID.
func (s *UserServiceImpl) List(ctx context.Context, sub model.Subject) ([]model.User, error) {
	if !s.policy.Permits(sub.Role, authz.ObjUser, authz.ActList) {
		return nil, forbidden(authz.ActList, authz.ObjUser)
	}
	return s.users.List(ctx)
}

// Get returns an account visible to the caller.
func (s *UserServiceImpl) Get(ctx context.Context, sub model.Subject, id int64) (*model.User, error) {
	if err := s.guard(sub, id, authz.ActRead); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

// AdminUpdate edits display name and role.
func (s *UserServiceImpl) AdminUpdate(ctx context.Context, sub model.Subject, id int64, patch UserPatch) (*model.User, error) {
	if err := s.guard(sub, id, authz.ActManage); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.FullName != nil {
		if u.FullName, err = checkFullName(*patch.FullName); err != nil {
			return nil, err
		}
	}
	switch {
	case patch.Role != nil:
		if _, ok := model.ParseRole(string(*patch.Role)); !ok {
			return nil, invalid("role %q", *patch.Role)
		}
		u.Role = *patch.Role
	case patch.Admin != nil && *patch.Admin:
		u.Role = model.RoleAdmin
	case patch.Admin != nil && u.Role == model.RoleAdmin:
		u.Role = model.RoleUser
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("account updated", zap.Int64("user_id", id), zap.String("role", string(u.Role)), zap.Int64("by", sub.UserID))
	return u, nil
}

// Delete removes credentials and then the account.
func (s *UserServiceImpl) Delete(ctx context.Context, sub model.Subject, id int64) error {
	if err := s.guard(sub, id, authz.ActManage); err != nil {
		return err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if uid, perr := uuid.FromString(u.ExternalID); perr == nil {
		if err := s.idp.DeleteUser(ctx, uid); err != nil && !errors.Is(err, errs.ErrNotFound) {
			return err
		}
	}
	return s.users.Delete(ctx, id)
}
