package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"morality-quiz-backend/internal/dto"
	"morality-quiz-backend/internal/service"
)

type AdminHandler struct {
	adminService service.AdminService
}

func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (h *AdminHandler) CreateCoupon(c echo.Context) error {
	var req dto.CouponRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	coupon, err := h.adminService.CreateCoupon(c.Request().Context(), &req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, coupon)
}

func (h *AdminHandler) ListCoupons(c echo.Context) error {
	coupons, err := h.adminService.ListCoupons(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, coupons)
}

func (h *AdminHandler) DeactivateCoupon(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid coupon id")
	}

	if err := h.adminService.DeactivateCoupon(c.Request().Context(), id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) CreateAffiliate(c echo.Context) error {
	var req dto.AffiliateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	affiliate, err := h.adminService.CreateAffiliate(c.Request().Context(), &req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, affiliate)
}

func (h *AdminHandler) ListAffiliates(c echo.Context) error {
	affiliates, err := h.adminService.ListAffiliates(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, affiliates)
}

func (h *AdminHandler) DeactivateAffiliate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid affiliate id")
	}

	if err := h.adminService.DeactivateAffiliate(c.Request().Context(), id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) CreateCommissionTier(c echo.Context) error {
	var req dto.CommissionTierRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	tier, err := h.adminService.CreateCommissionTier(c.Request().Context(), &req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, tier)
}

func (h *AdminHandler) ListCommissionTiers(c echo.Context) error {
	affiliateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid affiliate id")
	}

	tiers, err := h.adminService.ListCommissionTiers(c.Request().Context(), affiliateID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tiers)
}

func (h *AdminHandler) DeactivateCommissionTier(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid tier id")
	}

	if err := h.adminService.DeactivateCommissionTier(c.Request().Context(), id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
