package main

import (
	"net/http"
	"os"

	"cloudpad/internal/auth"
	"cloudpad/internal/config"
	"cloudpad/internal/httpapi"
	"cloudpad/internal/middleware"
	"cloudpad/pkg/models"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env for local development; in containers the environment is
	// already set.
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using system environment variables")
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("CLOUDPAD_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg := config.Load()

	e := echo.New()
	e.HideBanner = true
	initialize(e, cfg)

	log.Info().Str("addr", cfg.ListenAddr).Msg("starting cloudpad server")
	log.Fatal().Err(http.ListenAndServe(cfg.ListenAddr, e)).Msg("server stopped")
}

func initialize(e *echo.Echo, cfg config.Config) {
	tokens := auth.NewStore()

	// Preseeded tokens let the API run headless (no browser auth step).
	if cfg.YandexToken != "" {
		_ = tokens.SetToken("local", &models.Token{AccessToken: cfg.YandexToken, Provider: models.ProviderYandex})
	}
	if cfg.GoogleToken != "" {
		_ = tokens.SetToken("local", &models.Token{AccessToken: cfg.GoogleToken, Provider: models.ProviderGoogle})
	}

	apiHandler := httpapi.NewHandler(cfg, tokens, log.Logger)
	apiHandler.RegisterRoutes(e)

	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.CORSConfig())
}
