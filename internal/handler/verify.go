package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"morality-quiz-backend/internal/dto"
	"morality-quiz-backend/internal/middleware"
	"morality-quiz-backend/internal/model"
	"morality-quiz-backend/internal/service"
)

// VerifyHandler drives post-checkout purchase verification. The SPA calls
// it once on return from the processor with whatever context it persisted
// before redirecting; the server runs the bounded retry loop against the
// webhook-driven state.
type VerifyHandler struct {
	verification *service.VerificationService
	resolver     *service.IdentityResolver
}

func NewVerifyHandler(verification *service.VerificationService, resolver *service.IdentityResolver) *VerifyHandler {
	return &VerifyHandler{verification: verification, resolver: resolver}
}

func (h *VerifyHandler) Verify(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.VerifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	vc, err := h.resolver.Resolve(&req, middleware.AuthedUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrNoIdentity) {
			return echo.NewHTTPError(http.StatusBadRequest, "no identity available to verify this purchase")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, outcome, err := h.verification.Verify(ctx, vc)
	if err != nil {
		return err
	}

	if outcome == service.OutcomeExhausted && req.Force {
		result, err = h.verification.ForceFinalize(ctx, vc.ResultID)
		if err != nil {
			return err
		}
		outcome = service.OutcomeForced
	}

	resp := &dto.VerifyResponse{Outcome: string(outcome)}
	if result != nil {
		resp.Result = resultResponse(result)
	}

	// Exhaustion is a "still settling, refresh shortly" answer, not an
	// error.
	if outcome == service.OutcomeExhausted {
		return c.JSON(http.StatusAccepted, resp)
	}

	return c.JSON(http.StatusOK, resp)
}

func resultResponse(result *model.QuizResult) *dto.QuizResultResponse {
	resp := &dto.QuizResultResponse{
		ResultID:       result.ID.String(),
		Category:       result.Category,
		IsPurchased:    result.IsPurchased,
		PurchaseStatus: string(result.PurchaseStatus),
	}
	if result.AccessMethod != nil {
		resp.AccessMethod = string(*result.AccessMethod)
	}
	if result.IsPurchased {
		resp.Analysis = result.Analysis
	}

	scores := make(map[string]float64, len(result.Scores))
	for category, value := range result.Scores {
		if f, ok := value.(float64); ok {
			scores[category] = f
		}
	}
	resp.Scores = scores

	return resp
}
