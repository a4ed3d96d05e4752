package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/and161185/cybergames/internal/api"
	"github.com/and161185/cybergames/internal/convert"
	"github.com/and161185/cybergames/internal/errs"
)

func (s *Server) listGames(c echo.Context) error {
	enabledOnly := false
	if v := c.QueryParam("enabled"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("enabled must be a boolean: %w", errs.ErrInvalidArgument)
		}
		enabledOnly = b
	}
	games, err := s.games.List(c.Request().Context(), enabledOnly)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToGames(games))
}

func (s *Server) getGame(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	g, err := s.games.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToGame(g))
}

func (s *Server) createGame(c echo.Context) error {
	var req api.GameInput
	if err := bind(c, &req); err != nil {
		return err
	}
	g, err := s.games.Create(c.Request().Context(), subject(c), convert.FromGameCreate(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, convert.ToGame(g))
}

func (s *Server) updateGame(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req api.GameInput
	if err := bind(c, &req); err != nil {
		return err
	}
	g, err := s.games.Update(c.Request().Context(), subject(c), id, convert.FromGameInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToGame(g))
}

func (s *Server) deleteGame(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := s.games.Delete(c.Request().Context(), subject(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
