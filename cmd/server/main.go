package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/appdiversa/diversa-server/internal/api"
	"github.com/appdiversa/diversa-server/internal/config"
	"github.com/appdiversa/diversa-server/internal/db"
	"github.com/appdiversa/diversa-server/internal/geo"
	"github.com/appdiversa/diversa-server/internal/middleware"
	"github.com/appdiversa/diversa-server/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("load configuration")
	}

	log := newLogger(cfg.Log.Level)

	database, err := db.Open(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.Database.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	store, err := db.NewStore(database)
	if err != nil {
		log.Fatal().Err(err).Msg("init store")
	}

	geoService := geo.NewService(store)
	if err := geoService.LoadFromStore(); err != nil {
		log.Fatal().Err(err).Msg("index geographic reference data")
	}
	if err := seedGeoIfConfigured(geoService, log); err != nil {
		log.Fatal().Err(err).Msg("seed geographic reference data")
	}
	countries, departments, municipalities := geoService.Registry().Counts()
	log.Info().
		Int("countries", countries).
		Int("departments", departments).
		Int("municipalities", municipalities).
		Msg("geographic registry ready")

	gate := services.NewEligibilityGate(store, services.GateConfig{
		MinimumAge:       cfg.App.MinimumAge,
		NegativeSentinel: cfg.App.NegativeSentinel,
		BirthDateLayout:  cfg.App.BirthDateLayout,
	})
	validator := services.NewAnswerValidator(store, geoService.Registry(), services.ValidatorConfig{
		DomesticCountryCode: cfg.App.DomesticCountryCode,
		NegativeSentinel:    cfg.App.NegativeSentinel,
		OtherSentinel:       cfg.App.OtherSentinel,
		BirthDateLayout:     cfg.App.BirthDateLayout,
	})

	jwtManager := middleware.NewJWTManager(cfg.JWT.Secret)

	container := &api.Container{
		Auth:        services.NewAuthService(store, jwtManager.SignToken, cfg.JWT.Expiration),
		Schema:      services.NewSchemaService(store, cfg.App.OtherSentinel),
		Submissions: services.NewSubmissionService(store, gate, validator),
		Exports:     services.NewExportService(store),
		Geo:         geoService,
		JWT:         jwtManager,
		Log:         log,
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(container),
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("driver", cfg.Database.Driver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("server stopped")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
