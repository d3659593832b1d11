package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"morality-quiz-backend/internal/client"
	"morality-quiz-backend/internal/config"
	"morality-quiz-backend/internal/handler"
	"morality-quiz-backend/internal/repository"
	"morality-quiz-backend/internal/server"
	"morality-quiz-backend/internal/service"
	"morality-quiz-backend/internal/token"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)

	db := client.InitPostgresClient(cfg.DatabaseURL)
	stripeClient := client.NewStripeClient(&cfg.Stripe)
	emailClient := client.NewEmailClient(&cfg.SMTP)
	tokens := token.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.GuestTokenTTL)

	userRepo := repository.NewUserRepository(db)
	resultRepo := repository.NewQuizResultRepository(db)
	trackingRepo := repository.NewPurchaseTrackingRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	affiliateRepo := repository.NewAffiliateRepository(db)

	resolver := service.NewIdentityResolver(tokens, logger)
	userService := service.NewUserService(userRepo, tokens)
	quizService := service.NewQuizService(resultRepo, tokens)
	verificationService := service.NewVerificationService(resultRepo, trackingRepo, &cfg.Verify, logger)
	checkoutService := service.NewCheckoutService(
		stripeClient, resultRepo, trackingRepo, couponRepo, affiliateRepo, userRepo,
		tokens, &cfg.Pricing, cfg.FrontendURL, logger,
	)
	webhookService := service.NewWebhookService(
		stripeClient, emailClient, resultRepo, trackingRepo, webhookEventRepo,
		userRepo, affiliateRepo, tokens, &cfg.Pricing, cfg.FrontendURL, logger,
	)
	adminService := service.NewAdminService(couponRepo, affiliateRepo)

	srv := server.NewServer(
		tokens,
		handler.NewAuthHandler(userService),
		handler.NewQuizHandler(quizService, resolver),
		handler.NewCheckoutHandler(checkoutService),
		handler.NewVerifyHandler(verificationService, resolver),
		handler.NewWebhookHandler(webhookService),
		handler.NewAdminHandler(adminService),
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	log.Println("Starting HTTP server on", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Println("Signal received, starting graceful shutdown...")

	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error")
	}
}
