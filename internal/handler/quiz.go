package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"morality-quiz-backend/internal/dto"
	"morality-quiz-backend/internal/middleware"
	"morality-quiz-backend/internal/service"
)

type QuizHandler struct {
	quizService service.QuizService
	resolver    *service.IdentityResolver
}

func NewQuizHandler(quizService service.QuizService, resolver *service.IdentityResolver) *QuizHandler {
	return &QuizHandler{quizService: quizService, resolver: resolver}
}

func (h *QuizHandler) Submit(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.SubmitQuizRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.quizService.Submit(ctx, &req, middleware.AuthedUserID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, resp)
}

// GetResult accepts guest credentials as query parameters so a bare link
// from a confirmation email still works.
func (h *QuizHandler) GetResult(c echo.Context) error {
	ctx := c.Request().Context()

	resultID := c.Param("id")
	if _, err := uuid.Parse(resultID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid result id")
	}

	vc, err := h.resolver.Resolve(&dto.VerifyRequest{
		ResultID:   resultID,
		GuestToken: c.QueryParam("guest_token"),
		GuestEmail: c.QueryParam("guest_email"),
	}, middleware.AuthedUserID(c))
	if err != nil && !errors.Is(err, service.ErrNoIdentity) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if vc == nil {
		// Anonymous read: free summary only.
		id, _ := uuid.Parse(resultID)
		vc = &service.VerificationContext{ResultID: id}
	}

	resp, err := h.quizService.GetResult(ctx, vc)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	return c.JSON(http.StatusOK, resp)
}
