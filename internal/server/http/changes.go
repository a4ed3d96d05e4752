package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/and161185/cybergames/internal/api"
	"github.com/and161185/cybergames/internal/convert"
	"github.com/and161185/cybergames/internal/model"
	"github.com/and161185/cybergames/internal/service"
)

// submitChange applies the change for administrators (201) and queues it for
// moderators (202).
func (s *Server) submitChange(c echo.Context) error {
	var req api.ChangeSubmitRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	d := service.ChangeDraft{
		Kind:   model.ChangeKind(strings.ToUpper(strings.TrimSpace(req.ChangeType))),
		Target: req.GameID,
		Patch:  convert.FromGameInput(req.GameInput),
	}
	res, err := s.changes.Submit(c.Request().Context(), subject(c), d)
	if err != nil {
		return err
	}
	if res.Game != nil {
		return c.JSON(http.StatusCreated, api.SubmitResponse{Message: "change applied", Game: convert.ToGame(res.Game)})
	}
	return c.JSON(http.StatusAccepted, api.SubmitResponse{
		Message: "change submitted for review",
		Request: convert.ToChange(res.Request),
	})
}

func (s *Server) listChanges(c echo.Context) error {
	out, err := s.changes.ListAll(c.Request().Context(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToChanges(out))
}

func (s *Server) listPendingChanges(c echo.Context) error {
	out, err := s.changes.ListPending(c.Request().Context(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToChanges(out))
}

func (s *Server) listMyChanges(c echo.Context) error {
	out, err := s.changes.ListMine(c.Request().Context(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToChanges(out))
}

func (s *Server) getChange(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	cr, err := s.changes.Get(c.Request().Context(), subject(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToChange(cr))
}

func (s *Server) editChange(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req api.GameInput
	if err := bind(c, &req); err != nil {
		return err
	}
	cr, err := s.changes.EditMine(c.Request().Context(), subject(c), id, convert.FromGameInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToChange(cr))
}

func (s *Server) deleteChange(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := s.changes.DeleteMine(c.Request().Context(), subject(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) reviewChange(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req api.ReviewRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.changes.Review(c.Request().Context(), subject(c), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.ChangeReviewResponse{
		Message: res.Message,
		Request: convert.ToChange(res.Request),
		Game:    convert.ToGame(res.Game),
	})
}
