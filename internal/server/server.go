package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"morality-quiz-backend/internal/handler"
	"morality-quiz-backend/internal/middleware"
	"morality-quiz-backend/internal/model"
	"morality-quiz-backend/internal/token"
)

type Server struct {
	echo            *echo.Echo
	tokens          *token.Manager
	authHandler     *handler.AuthHandler
	quizHandler     *handler.QuizHandler
	checkoutHandler *handler.CheckoutHandler
	verifyHandler   *handler.VerifyHandler
	webhookHandler  *handler.WebhookHandler
	adminHandler    *handler.AdminHandler
}

func NewServer(
	tokens *token.Manager,
	authHandler *handler.AuthHandler,
	quizHandler *handler.QuizHandler,
	checkoutHandler *handler.CheckoutHandler,
	verifyHandler *handler.VerifyHandler,
	webhookHandler *handler.WebhookHandler,
	adminHandler *handler.AdminHandler,
) *Server {
	e := echo.New()

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	s := &Server{
		echo:            e,
		tokens:          tokens,
		authHandler:     authHandler,
		quizHandler:     quizHandler,
		checkoutHandler: checkoutHandler,
		verifyHandler:   verifyHandler,
		webhookHandler:  webhookHandler,
		adminHandler:    adminHandler,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api.POST("/auth/register", s.authHandler.Register)
	api.POST("/auth/login", s.authHandler.Login)

	optional := middleware.OptionalAuth(s.tokens)

	// -------- quiz --------
	api.POST("/quiz/submit", s.quizHandler.Submit, optional)
	api.GET("/quiz/results/:id", s.quizHandler.GetResult, optional)

	// -------- purchase flow --------
	api.POST("/checkout", s.checkoutHandler.CreateCheckout, optional)
	api.POST("/quiz/results/:id/unlock-credit", s.checkoutHandler.UnlockWithCredit, middleware.Auth(s.tokens))
	api.POST("/purchases/verify", s.verifyHandler.Verify, optional)

	// -------- processor webhooks --------
	api.POST("/webhooks/payment", s.webhookHandler.StripeWebhook)

	// -------- admin --------
	admin := api.Group("/admin", middleware.Auth(s.tokens), middleware.RequireRole(string(model.RoleAdmin)))
	admin.POST("/coupons", s.adminHandler.CreateCoupon)
	admin.GET("/coupons", s.adminHandler.ListCoupons)
	admin.DELETE("/coupons/:id", s.adminHandler.DeactivateCoupon)
	admin.POST("/affiliates", s.adminHandler.CreateAffiliate)
	admin.GET("/affiliates", s.adminHandler.ListAffiliates)
	admin.DELETE("/affiliates/:id", s.adminHandler.DeactivateAffiliate)
	admin.POST("/commission-tiers", s.adminHandler.CreateCommissionTier)
	admin.GET("/affiliates/:id/commission-tiers", s.adminHandler.ListCommissionTiers)
	admin.DELETE("/commission-tiers/:id", s.adminHandler.DeactivateCommissionTier)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
