package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"morality-quiz-backend/internal/dto"
	"morality-quiz-backend/internal/middleware"
	"morality-quiz-backend/internal/service"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

func (h *CheckoutHandler) CreateCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.checkoutService.CreateCheckout(ctx, &req, middleware.AuthedUserID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *CheckoutHandler) UnlockWithCredit(c echo.Context) error {
	ctx := c.Request().Context()

	userID := middleware.AuthedUserID(c)
	if userID == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "sign in required")
	}

	resultID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid result id")
	}

	result, err := h.checkoutService.UnlockWithCredit(ctx, resultID, *userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"result_id":     result.ID.String(),
		"is_purchased":  result.IsPurchased,
		"access_method": result.AccessMethod,
	})
}
