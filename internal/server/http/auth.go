package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/and161185/cybergames/internal/api"
	"github.com/and161185/cybergames/internal/convert"
)

func (s *Server) register(c echo.Context) error {
	var req api.RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := s.accounts.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, convert.ToUser(u))
}

func (s *Server) login(c echo.Context) error {
	var req api.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tok, u, err := s.accounts.Login(c.Request().Context(), req.Email, req.Password, c.RealIP())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.TokenResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
		User:        convert.ToUser(u),
	})
}

func (s *Server) forgotPassword(c echo.Context) error {
	var req api.EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.accounts.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.MessageResponse{Message: "if the account exists, a reset code was sent"})
}

func (s *Server) verifyResetToken(c echo.Context) error {
	var req api.CodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	email, err := s.accounts.CheckResetCode(c.Request().Context(), req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.ResetCodeResponse{Email: email})
}

func (s *Server) resetPassword(c echo.Context) error {
	var req api.ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.accounts.ResetPassword(c.Request().Context(), req.Code, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.MessageResponse{Message: "password updated"})
}

func (s *Server) verifyEmail(c echo.Context) error {
	var req api.CodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.accounts.VerifyEmail(c.Request().Context(), req.Code); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.MessageResponse{Message: "email verified"})
}

func (s *Server) resendVerification(c echo.Context) error {
	var req api.EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.accounts.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.MessageResponse{Message: "verification code sent"})
}

func (s *Server) me(c echo.Context) error {
	u, err := s.accounts.Me(c.Request().Context(), subject(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToUser(u))
}

func (s *Server) checkEmailVerification(c echo.Context) error {
	ok, err := s.accounts.EmailVerified(c.Request().Context(), subject(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.EmailVerificationResponse{EmailVerified: ok})
}

func (s *Server) changePassword(c echo.Context) error {
	var req api.ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	err := s.accounts.ChangePassword(c.Request().Context(), subject(c).UserID, req.OldPassword, req.NewPassword)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.MessageResponse{Message: "password changed"})
}

func (s *Server) deleteAccount(c echo.Context) error {
	if err := s.accounts.DeleteAccount(c.Request().Context(), subject(c).UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
