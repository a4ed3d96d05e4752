package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/and161185/cybergames/internal/api"
	"github.com/and161185/cybergames/internal/convert"
)

func (s *Server) getSave(c echo.Context) error {
	gameID, err := pathID(c, "gameId")
	if err != nil {
		return err
	}
	slot, err := intQuery(c, "slot", 0)
	if err != nil {
		return err
	}
	sv, err := s.saves.GetSave(c.Request().Context(), subject(c), gameID, slot)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToSave(sv))
}

func (s *Server) saveGame(c echo.Context) error {
	var req api.SaveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sv, err := s.saves.SaveGame(c.Request().Context(), subject(c), req.GameID, req.Slot, req.SaveData)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToSave(sv))
}

func (s *Server) getHighscore(c echo.Context) error {
	gameID, err := pathID(c, "gameId")
	if err != nil {
		return err
	}
	slot, err := intQuery(c, "slot", 0)
	if err != nil {
		return err
	}
	hs, err := s.saves.GetHighscore(c.Request().Context(), subject(c), gameID, slot)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToHighscore(hs))
}

func (s *Server) updateHighscore(c echo.Context) error {
	var req api.HighscoreRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	hs, err := s.saves.UpdateHighscore(c.Request().Context(), subject(c), req.GameID, req.Slot, req.Score)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToHighscore(hs))
}

// leaderboard is public; limit defaults and caps are applied by the service.
func (s *Server) leaderboard(c echo.Context) error {
	gameID, err := pathID(c, "gameId")
	if err != nil {
		return err
	}
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		return err
	}
	out, err := s.saves.Leaderboard(c.Request().Context(), gameID, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToLeaderboard(out))
}
