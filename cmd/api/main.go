package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-identity-api/internal/infrastructure/jwt"
	"github.com/go-identity-api/internal/infrastructure/smtp"
	"github.com/go-identity-api/internal/infrastructure/sns"
	transporthttp "github.com/go-identity-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// JWT provider (optional, graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender (optional, graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	deps := &transporthttp.Deps{
		UserRepo:      dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		ProfileRepo:   dynamo.NewProfileRepo(dynamoClient, cfg.DynamoTables.BusinessProfiles),
		SessionRepo:   dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		TwoFactorRepo: dynamo.NewTwoFactorRepo(dynamoClient, cfg.DynamoTables.TwoFactor),
		OTPRepo:       dynamo.NewResetOTPRepo(dynamoClient, cfg.DynamoTables.PasswordResetOTPs),
		ContextRepo:   dynamo.NewRecoveryContextRepo(dynamoClient, cfg.DynamoTables.RecoveryContexts),
		ChallengeRepo: dynamo.NewChallengeRepo(dynamoClient, cfg.DynamoTables.LoginChallenges),
		Mailer:        mailer,
		SMSSender:     smsSender,
		JWTProvider:   jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
