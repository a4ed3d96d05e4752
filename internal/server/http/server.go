// Package httpserver exposes the platform's JSON HTTP API on echo.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/and161185/cybergames/internal/authz"
	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/service"
)

// Services are the application services behind the HTTP API.
type Services struct {
	Accounts   service.AccountService
	Users      service.UserService
	Games      service.GameService
	Changes    service.ChangeService
	Promotions service.PromotionService
	Saves      service.SaveService
}

// Options tune the HTTP surface.
type Options struct {
	// CORSOrigins enables CORS for the listed origins; empty disables it.
	CORSOrigins []string
	// Ready reports backend readiness for /healthz; nil means always ready.
	Ready func(ctx context.Context) error
	// BodyLimit caps request bodies, e.g. "1M".
	BodyLimit string
}

// Server wires services into echo handlers.
type Server struct {
	accounts   service.AccountService
	users      service.UserService
	games      service.GameService
	changes    service.ChangeService
	promotions service.PromotionService
	saves      service.SaveService
	policy     authz.Policy
	log        *zap.Logger
	opts       Options
}

// New constructs the HTTP server with injected services.
func New(svc Services, policy authz.Policy, log *zap.Logger, opts Options) *Server {
	return &Server{
		accounts:   svc.Accounts,
		users:      svc.Users,
		games:      svc.Games,
		changes:    svc.Changes,
		promotions: svc.Promotions,
		saves:      svc.Saves,
		policy:     policy,
		log:        log,
		opts:       opts,
	}
}

// Echo builds the router with middleware and every route registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(RequestID(), Logging(s.log), Recover(s.log))
	if s.opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(s.opts.BodyLimit))
	}
	if len(s.opts.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.opts.CORSOrigins,
			AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, requestIDHeader},
		}))
	}

	e.GET("/healthz", s.health)
	s.routes(e.Group("/v1"))
	return e
}

func (s *Server) routes(v1 *echo.Group) {
	can := func(object, action string) echo.MiddlewareFunc { return RequireRole(s.policy, object, action) }

	auth := v1.Group("/auth")
	auth.POST("/register", s.register)
	auth.POST("/login", s.login)
	auth.POST("/forgot-password", s.forgotPassword)
	auth.POST("/verify-reset-token", s.verifyResetToken)
	auth.POST("/reset-password", s.resetPassword)
	auth.POST("/verify-email", s.verifyEmail)
	auth.POST("/resend-verification", s.resendVerification)
	auth.GET("/me", s.me, s.Auth)
	auth.GET("/check-email-verification", s.checkEmailVerification, s.Auth)
	auth.POST("/change-password", s.changePassword, s.Auth)
	auth.DELETE("/account", s.deleteAccount, s.Auth)

	users := v1.Group("/users", s.Auth)
	users.GET("", s.listUsers, can(authz.ObjUser, authz.ActList))
	users.GET("/profile", s.profile)
	users.PATCH("/profile", s.updateProfile)
	users.GET("/:id", s.getUser)
	users.PATCH("/:id", s.adminUpdateUser, can(authz.ObjUser, authz.ActManage))
	users.DELETE("/:id", s.deleteUser, can(authz.ObjUser, authz.ActManage))

	v1.GET("/games", s.listGames)
	v1.GET("/games/:id", s.getGame)
	games := v1.Group("/games", s.Auth)
	games.POST("", s.createGame, can(authz.ObjGame, authz.ActCreate))
	games.PATCH("/:id", s.updateGame, can(authz.ObjGame, authz.ActUpdate))
	games.DELETE("/:id", s.deleteGame, can(authz.ObjGame, authz.ActDelete))

	changes := v1.Group("/game-changes", s.Auth)
	changes.POST("", s.submitChange, can(authz.ObjChange, authz.ActCreate))
	changes.GET("", s.listChanges, can(authz.ObjChange, authz.ActList))
	changes.GET("/pending", s.listPendingChanges, can(authz.ObjChange, authz.ActList))
	changes.GET("/mine", s.listMyChanges)
	changes.GET("/:id", s.getChange)
	changes.PATCH("/:id", s.editChange)
	changes.DELETE("/:id", s.deleteChange)
	changes.PATCH("/:id/review", s.reviewChange, can(authz.ObjChange, authz.ActReview))

	promos := v1.Group("/moderator-requests", s.Auth)
	promos.POST("", s.requestPromotion)
	promos.GET("", s.listPromotions, can(authz.ObjPromotion, authz.ActList))
	promos.GET("/pending", s.listPendingPromotions, can(authz.ObjPromotion, authz.ActList))
	promos.GET("/mine", s.myPromotion)
	promos.PATCH("/:id/review", s.reviewPromotion, can(authz.ObjPromotion, authz.ActReview))
	promos.DELETE("/:id", s.deletePromotion)

	saves := v1.Group("/saves", s.Auth)
	saves.GET("/:gameId", s.getSave)
	saves.POST("", s.saveGame)
	saves.GET("/highscore/:gameId", s.getHighscore)
	saves.POST("/highscore", s.updateHighscore)

	v1.GET("/leaderboard/:gameId", s.leaderboard)
}

func (s *Server) health(c echo.Context) error {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(c.Request().Context()); err != nil {
			s.log.Warn("not ready", zap.Error(err))
			return c.String(http.StatusServiceUnavailable, "unavailable")
		}
	}
	return c.String(http.StatusOK, "ok")
}

// --- request helpers ---

func bind(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return fmt.Errorf("malformed body: %w", errs.ErrInvalidArgument)
	}
	return nil
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer: %w", name, errs.ErrInvalidArgument)
	}
	return id, nil
}

func intQuery(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, errs.ErrInvalidArgument)
	}
	return n, nil
}
