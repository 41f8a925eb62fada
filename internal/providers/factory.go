// Package providers wires tokens to concrete storage adapters.
package providers

import (
	"context"
	"fmt"

	"cloudpad/internal/config"
	"cloudpad/internal/providers/googledrive"
	"cloudpad/internal/providers/yandexdisk"
	"cloudpad/internal/remote"
	"cloudpad/pkg/models"

	"github.com/rs/zerolog"
)

// New returns the storage adapter for the provider the token belongs to
func New(ctx context.Context, token *models.Token, cfg config.Config, logger zerolog.Logger) (remote.Storage, error) {
	if !token.Valid() {
		return nil, fmt.Errorf("%w: no token registered", remote.ErrAuth)
	}

	switch token.Provider {
	case models.ProviderYandex:
		poll := yandexdisk.PollConfig{
			MaxAttempts: cfg.PollMaxAttempts,
			Interval:    cfg.PollInterval,
		}
		return yandexdisk.NewService(token, poll, logger), nil
	case models.ProviderGoogle:
		return googledrive.NewService(ctx, token, cfg.GoogleAppFolderName, logger)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", token.Provider)
	}
}
