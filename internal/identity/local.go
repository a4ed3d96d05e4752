package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/cybergames/internal/crypto"
	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/events"
	"github.com/and161185/cybergames/internal/limiter"
	"github.com/and161185/cybergames/internal/model"
	"github.com/and161185/cybergames/internal/repository"
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 6

// CodeTTL is how long a one-time code stays valid.
const CodeTTL = time.Hour

type tokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// Local is a self-hosted Gateway backed by the relational store.
type Local struct {
	repo      repository.IdentityRepository
	lim       limiter.Limiter
	pub       events.Publisher
	log       *zap.Logger
	signKey   []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewLocal constructs the local identity provider.
func NewLocal(repo repository.IdentityRepository, lim limiter.Limiter, pub events.Publisher,
	signKey []byte, accessTTL time.Duration, log *zap.Logger) *Local {
	return &Local{repo: repo, lim: lim, pub: pub, log: log, signKey: signKey, accessTTL: accessTTL, now: time.Now}
}

// NormalizeEmail lowercases and trims an address and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("email %q: %w", email, errs.ErrInvalidArgument)
	}
	return email, nil
}

func checkPassword(pw string) error {
	if len(pw) < MinPasswordLen {
		return fmt.Errorf("password shorter than %d: %w", MinPasswordLen, errs.ErrInvalidArgument)
	}
	return nil
}

// CreateUser implements Gateway.
func (l *Local) CreateUser(ctx context.Context, email, password, displayName string) (uuid.UUID, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return uuid.Nil, err
	}
	if err := checkPassword(password); err != nil {
		return uuid.Nil, err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return uuid.Nil, err
	}
	id := &model.Identity{UID: uid, Email: email, PwdHash: hash, DisplayName: displayName}
	if err := l.repo.Create(ctx, id); err != nil {
		return uuid.Nil, err
	}
	return uid, nil
}

// SignIn implements Gateway. Unknown email and wrong password are indistinguishable.
func (l *Local) SignIn(ctx context.Context, email, password, ip string) (model.Tokens, Claims, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	ipHash := limiter.HashIP(ip)

	allowed, _, err := l.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, Claims{}, err
	}
	if !allowed {
		return model.Tokens{}, Claims{}, errs.ErrRateLimited
	}

	id, err := l.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, Claims{}, err
	}
	ok := false
	if err == nil {
		if ok, err = pkgcrypto.VerifyPassword(password, id.PwdHash); err != nil {
			return model.Tokens{}, Claims{}, err
		}
	}
	if !ok {
		if blocked, _, ferr := l.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.Tokens{}, Claims{}, errs.ErrRateLimited
		}
		return model.Tokens{}, Claims{}, errs.ErrUnauthorized
	}

	if err := l.lim.Success(ctx, email, ipHash); err != nil {
		l.log.Warn("limiter reset", zap.Error(err))
	}
	return l.issue(id)
}

func (l *Local) issue(id *model.Identity) (model.Tokens, Claims, error) {
	now := l.now()
	exp := now.Add(l.accessTTL)
	claims := tokenClaims{
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.signKey)
	if err != nil {
		return model.Tokens{}, Claims{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp},
		Claims{UID: id.UID, Email: id.Email, EmailVerified: id.EmailVerified, ExpiresAt: exp}, nil
}

// VerifyToken implements Gateway: HS256 only, 30s leeway, subject must be a uid.
func (l *Local) VerifyToken(_ context.Context, token string) (Claims, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return l.signKey, nil
	}, jwt.WithLeeway(30*time.Second), jwt.WithTimeFunc(l.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return Claims{}, errs.ErrUnauthorized
	}
	uid, err := uuid.FromString(claims.Subject)
	if err != nil {
		return Claims{}, errs.ErrUnauthorized
	}
	return Claims{UID: uid, Email: claims.Email, EmailVerified: claims.EmailVerified, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Lookup implements Gateway.
func (l *Local) Lookup(ctx context.Context, uid uuid.UUID) (Claims, error) {
	id, err := l.repo.GetByUID(ctx, uid)
	if err != nil {
		return Claims{}, err
	}
	return Claims{UID: id.UID, Email: id.Email, EmailVerified: id.EmailVerified}, nil
}

// CheckPassword implements Gateway.
func (l *Local) CheckPassword(ctx context.Context, uid uuid.UUID, password string) error {
	id, err := l.repo.GetByUID(ctx, uid)
	if err != nil {
		return err
	}
	ok, err := pkgcrypto.VerifyPassword(password, id.PwdHash)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrUnauthorized
	}
	return nil
}

// UpdateUser implements Gateway. Changing the email clears its verification.
func (l *Local) UpdateUser(ctx context.Context, uid uuid.UUID, upd UserUpdate) error {
	id, err := l.repo.GetByUID(ctx, uid)
	if err != nil {
		return err
	}
	if upd.Email != nil {
		email, err := NormalizeEmail(*upd.Email)
		if err != nil {
			return err
		}
		if email != id.Email {
			id.Email = email
			id.EmailVerified = false
		}
	}
	if upd.Password != nil {
		if err := checkPassword(*upd.Password); err != nil {
			return err
		}
		if id.PwdHash, err = pkgcrypto.HashPassword(*upd.Password); err != nil {
			return err
		}
	}
	if upd.DisplayName != nil {
		id.DisplayName = *upd.DisplayName
	}
	if upd.EmailVerified != nil {
		id.EmailVerified = *upd.EmailVerified
	}
	return l.repo.Update(ctx, id)
}

// DeleteUser implements Gateway.
func (l *Local) DeleteUser(ctx context.Context, uid uuid.UUID) error {
	return l.repo.Delete(ctx, uid)
}

// SendOobCode implements Gateway. The plaintext code only leaves through the event.
func (l *Local) SendOobCode(ctx context.Context, kind model.OobKind, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	id, err := l.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	code, err := pkgcrypto.NewToken()
	if err != nil {
		return err
	}
	exp := l.now().Add(CodeTTL)
	if err := l.repo.SaveCode(ctx, model.OobCode{Hash: pkgcrypto.HashToken(code), Kind: kind, UID: id.UID, ExpiresAt: exp}); err != nil {
		return err
	}
	ev := events.OobCodeIssued{Kind: string(kind), Email: email, Code: code, ExpiresAt: exp}
	if err := l.pub.Publish(ctx, events.TopicOobCode, ev); err != nil {
		l.log.Warn("oob code not delivered", zap.String("kind", string(kind)), zap.Error(err))
	}
	return nil
}

// PeekOobCode implements Gateway.
func (l *Local) PeekOobCode(ctx context.Context, kind model.OobKind, code string) (string, error) {
	uid, err := l.repo.PeekCode(ctx, pkgcrypto.HashToken(code), kind, l.now())
	if err != nil {
		return "", codeErr(err)
	}
	id, err := l.repo.GetByUID(ctx, uid)
	if err != nil {
		return "", err
	}
	return id.Email, nil
}

// ApplyOobCode implements Gateway. The code is only spent when the account
// change is stored.
func (l *Local) ApplyOobCode(ctx context.Context, kind model.OobKind, code, newPassword string) (string, error) {
	var apply func(*model.Identity)
	switch kind {
	case model.OobVerifyEmail:
		apply = func(id *model.Identity) { id.EmailVerified = true }
	case model.OobPasswordReset:
		if err := checkPassword(newPassword); err != nil {
			return "", err
		}
		hash, err := pkgcrypto.HashPassword(newPassword)
		if err != nil {
			return "", err
		}
		apply = func(id *model.Identity) { id.PwdHash = hash }
	default:
		return "", fmt.Errorf("oob kind %q: %w", kind, errs.ErrInvalidArgument)
	}
	id, err := l.repo.ConsumeCode(ctx, pkgcrypto.HashToken(code), kind, l.now(), apply)
	if err != nil {
		return "", codeErr(err)
	}
	return id.Email, nil
}

// codeErr reports unknown, used and expired codes as caller errors.
func codeErr(err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("invalid or expired code: %w", errs.ErrInvalidArgument)
	}
	return err
}
