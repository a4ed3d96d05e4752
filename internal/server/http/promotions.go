package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/and161185/cybergames/internal/api"
	"github.com/and161185/cybergames/internal/convert"
)

func (s *Server) requestPromotion(c echo.Context) error {
	var req api.PromotionCreateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	pr, err := s.promotions.Request(c.Request().Context(), subject(c), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, convert.ToPromotion(pr))
}

func (s *Server) listPromotions(c echo.Context) error {
	out, err := s.promotions.ListAll(c.Request().Context(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToPromotions(out))
}

func (s *Server) listPendingPromotions(c echo.Context) error {
	out, err := s.promotions.ListPending(c.Request().Context(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToPromotions(out))
}

// myPromotion answers null when the caller never asked.
func (s *Server) myPromotion(c echo.Context) error {
	pr, err := s.promotions.Mine(c.Request().Context(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToPromotion(pr))
}

func (s *Server) reviewPromotion(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req api.ReviewRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	pr, err := s.promotions.Review(c.Request().Context(), subject(c), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToPromotion(pr))
}

func (s *Server) deletePromotion(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := s.promotions.Delete(c.Request().Context(), subject(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
