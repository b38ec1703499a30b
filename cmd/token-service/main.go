package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/appleboy/graceful"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/civicpulse/platform-token/pkg/config"
	"github.com/civicpulse/platform-token/pkg/controller"
	"github.com/civicpulse/platform-token/pkg/infrastructure/identity"
	"github.com/civicpulse/platform-token/pkg/infrastructure/rabbitmq"
	"github.com/civicpulse/platform-token/pkg/logger"
	"github.com/civicpulse/platform-token/pkg/router"
	services "github.com/civicpulse/platform-token/pkg/service"
)

const appID = "platform-token"

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if cfg.ProviderURL == "" {
		log.Warn("SUPABASE_URL is not set; every exchange will fail at the identity provider")
	}

	tracer := otel.GetTracerProvider()

	var keyOpts []services.KeyOption
	if cfg.JWTKeyDerivation == config.KeyDerivationHKDF {
		keyOpts = append(keyOpts, services.WithHKDF(cfg.JWTKeyInfo))
	}
	signer, err := services.NewJWTService(cfg.JWTSecret, keyOpts...)
	if err != nil {
		log.WithError(err).Fatal("Failed to load signing key")
	}

	provider := identity.NewClient(cfg.ProviderURL, cfg.ProviderServiceKey, cfg.ProviderTimeout, log, tracer)

	exchangeOpts := []services.Option{}
	var publisher rabbitmq.Publisher
	if cfg.RabbitMQURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, appID, log, tracer)
		if err != nil {
			// audit events are optional; keep serving without them
			log.WithError(err).Warn("RabbitMQ unavailable, token.issued events disabled")
		} else {
			exchangeOpts = append(exchangeOpts, services.WithEventPublisher(publisher, cfg.RabbitMQExchange))
		}
	}

	exchange := services.NewExchangeService(provider, signer, services.ExchangeConfig{
		Claims: services.ClaimSettings{
			Issuer:      cfg.JWTIssuer,
			Audience:    cfg.JWTAudience,
			PlatformTag: cfg.JWTPlatformTag,
		},
		TTL: cfg.JWTTTL,
	}, log, tracer, exchangeOpts...)
	validation := services.NewValidationService(signer, log, tracer, services.WithRequireExpiry(cfg.RequireExpiry))

	tokens := controller.NewTokenController(exchange, validation, log)
	e := router.New(tokens, router.Options{
		APIKey: cfg.FunctionAPIKey,
		Logger: log,
		Tracer: tracer,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	m := graceful.NewManager()
	addServerRunningJob(m, srv, log)
	addServerShutdownJob(m, srv, cfg.ShutdownTimeout, log)
	addPublisherShutdownJob(m, publisher, log)

	log.WithFields(logrus.Fields{
		"addr":           cfg.ServerAddr,
		"issuer":         cfg.JWTIssuer,
		"ttl":            cfg.JWTTTL.String(),
		"key_derivation": cfg.JWTKeyDerivation,
		"require_exp":    cfg.RequireExpiry,
		"api_key_gate":   cfg.FunctionAPIKey != "",
		"audit_events":   publisher != nil,
	}).Info("Platform token service starting")

	<-m.Done()
}

func addServerRunningJob(m *graceful.Manager, srv *http.Server, log *logrus.Logger) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Fatal("Failed to start server")
			}
		}()
		<-ctx.Done()
		return nil
	})
}

func addServerShutdownJob(m *graceful.Manager, srv *http.Server, timeout time.Duration, log *logrus.Logger) {
	m.AddShutdownJob(func() error {
		log.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("Server forced to shutdown")
			return err
		}
		log.Info("Server exited")
		return nil
	})
}

func addPublisherShutdownJob(m *graceful.Manager, publisher rabbitmq.Publisher, log *logrus.Logger) {
	if publisher == nil {
		return
	}
	m.AddShutdownJob(func() error {
		log.Info("Closing RabbitMQ publisher...")
		return publisher.Close()
	})
}
