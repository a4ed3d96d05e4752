package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/and161185/cybergames/internal/api"
	"github.com/and161185/cybergames/internal/convert"
	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/model"
	"github.com/and161185/cybergames/internal/service"
)

func (s *Server) listUsers(c echo.Context) error {
	users, err := s.users.List(c.Request().Context(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToUsers(users))
}

func (s *Server) profile(c echo.Context) error {
	u, err := s.users.Profile(c.Request().Context(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToUser(u))
}

func (s *Server) updateProfile(c echo.Context) error {
	var req api.ProfileUpdate
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := s.users.UpdateProfile(c.Request().Context(), subject(c), req.FullName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToUser(u))
}

func (s *Server) getUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	u, err := s.users.Get(c.Request().Context(), subject(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToUser(u))
}

func (s *Server) adminUpdateUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req api.AdminUserUpdate
	if err := bind(c, &req); err != nil {
		return err
	}
	patch := service.UserPatch{FullName: req.FullName, Admin: req.Admin}
	if req.Role != nil {
		role, ok := model.ParseRole(*req.Role)
		if !ok {
			return fmt.Errorf("unknown role %q: %w", *req.Role, errs.ErrInvalidArgument)
		}
		patch.Role = &role
	}
	u, err := s.users.AdminUpdate(c.Request().Context(), subject(c), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToUser(u))
}

func (s *Server) deleteUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := s.users.Delete(c.Request().Context(), subject(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
