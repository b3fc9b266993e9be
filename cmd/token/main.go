package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/Temutjin2k/ride-match/config"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/Temutjin2k/ride-match/internal/service/auth"
	"github.com/Temutjin2k/ride-match/pkg/logger"
)

// Development helper: prints a signed access token for the given user.
var (
	configPath = flag.String("config-path", "config.yaml", "Path to the config yaml file")
	userFlag   = flag.String("user", "", "user id, a new one is generated when empty")
	roleFlag   = flag.String("role", types.CustomerRole.String(), "CUSTOMER | RIDER")
)

func main() {
	flag.Parse()

	ctx := context.Background()
	log := logger.InitLogger("token", logger.LevelWarn)

	if err := run(ctx, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log logger.Logger) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	userID := uuid.New()
	if *userFlag != "" {
		if userID, err = uuid.Parse(*userFlag); err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, log)
	if err != nil {
		return err
	}

	token, expiresAt, err := tokens.Issue(ctx, userID, types.UserRole(*roleFlag))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"user_id":      userID,
		"role":         *roleFlag,
		"access_token": token,
		"expires_at":   expiresAt,
	})
}
