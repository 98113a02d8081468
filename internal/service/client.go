package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/oauth2"

	"formcoach/internal/config"
	"formcoach/internal/store"
	"formcoach/internal/strava"
)

// NewStravaClient builds an authenticated client whose refreshed tokens are
// written back to the store. The refresh token from config seeds the store
// the first time; after that the stored token wins since Strava rotates it.
func NewStravaClient(ctx context.Context, cfg config.StravaConfig, st *store.Store, logger *slog.Logger, opts ...strava.ClientOption) (*strava.Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	token, athleteID, err := storedToken(ctx, cfg, st)
	if err != nil {
		return nil, err
	}

	oauthCfg := strava.OAuthConfig(cfg.ClientID, cfg.ClientSecret)
	ts := strava.NewTokenSource(oauthCfg, token, func(tok *oauth2.Token) error {
		if id := strava.AthleteID(tok); id != 0 {
			athleteID = id
		}
		logger.Debug("strava token refreshed", "expires", tok.Expiry)
		return st.SaveAuth(context.WithoutCancel(ctx), &store.Auth{
			AthleteID:    athleteID,
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			ExpiresAt:    tok.Expiry,
		})
	})
	return strava.NewClient(ts, opts...), nil
}

func storedToken(ctx context.Context, cfg config.StravaConfig, st *store.Store) (*oauth2.Token, int64, error) {
	auth, err := st.GetAuth(ctx)
	if err == nil {
		return &oauth2.Token{
			AccessToken:  auth.AccessToken,
			RefreshToken: auth.RefreshToken,
			Expiry:       auth.ExpiresAt,
		}, auth.AthleteID, nil
	}
	if !errors.Is(err, store.ErrNoAuth) {
		return nil, 0, fmt.Errorf("loading stored tokens: %w", err)
	}
	if cfg.RefreshToken == "" || cfg.RefreshToken == "YOUR_REFRESH_TOKEN" {
		return nil, 0, fmt.Errorf("no stored Strava tokens and strava.refresh_token is not set: %w", store.ErrNoAuth)
	}
	return &oauth2.Token{RefreshToken: cfg.RefreshToken}, 0, nil
}
