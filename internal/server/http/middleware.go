package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/and161185/cybergames/internal/api"
	"github.com/and161185/cybergames/internal/authz"
	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/model"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates the caller's request id or assigns a new one.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(requestIDHeader)
			if id == "" {
				if u, err := uuid.NewV4(); err == nil {
					id = u.String()
				}
			}
			c.Response().Header().Set(requestIDHeader, id)
			return next(c)
		}
	}
}

// Logging writes one structured line per request.
func Logging(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			// metadata only, never bodies
			log.Info("http",
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", c.RealIP()),
				zap.String("request_id", c.Response().Header().Get(requestIDHeader)),
			)
			return nil
		}
	}
}

// Recover turns a handler panic into a 500.
func Recover(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic",
						zap.Any("reason", r),
						zap.ByteString("stack", debug.Stack()),
						zap.String("route", c.Path()),
					)
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(c)
		}
	}
}

// bearerToken extracts "Authorization: Bearer <token>".
func bearerToken(c echo.Context) (string, error) {
	v := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		if t := strings.TrimSpace(v[7:]); t != "" {
			return t, nil
		}
	}
	return "", fmt.Errorf("missing bearer token: %w", errs.ErrUnauthorized)
}

// Auth resolves the bearer token to a platform account and stores the subject.
func (s *Server) Auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tok, err := bearerToken(c)
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		u, err := s.accounts.Authenticate(ctx, tok)
		if err != nil {
			return err
		}
		sub := model.Subject{UserID: u.ID, Role: u.Role}
		c.SetRequest(c.Request().WithContext(WithSubject(ctx, sub)))
		return next(c)
	}
}

// RequireRole rejects callers whose role is not granted action on object.
func RequireRole(policy authz.Policy, object, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sub, ok := SubjectFromCtx(c.Request().Context())
			if !ok {
				return errs.ErrUnauthorized
			}
			if !policy.Permits(sub.Role, object, action) {
				return fmt.Errorf("%s %s: %w", action, object, errs.ErrForbidden)
			}
			return next(c)
		}
	}
}

func subject(c echo.Context) model.Subject {
	sub, _ := SubjectFromCtx(c.Request().Context())
	return sub
}

func statusFor(err error) int {
	switch errs.Tag(err) {
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	case "invalid_argument":
		return http.StatusBadRequest
	case "unauthorized":
		return http.StatusUnauthorized
	case "forbidden":
		return http.StatusForbidden
	case "rate_limited":
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func tagForStatus(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusInternalServerError:
		return "internal"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(code), " ", "_"))
	}
}

// handleError renders every failed request as api.ErrorResponse.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, api.ErrorResponse{Error: tagForStatus(he.Code), Message: fmt.Sprint(he.Message)})
		return
	}

	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("route", c.Path()),
			zap.String("request_id", c.Response().Header().Get(requestIDHeader)),
			zap.Error(err),
		)
		msg = "internal error"
	}
	_ = c.JSON(code, api.ErrorResponse{Error: errs.Tag(err), Message: msg})
}
