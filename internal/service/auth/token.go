package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const accessTokenType = "access"

// TokenService issues and validates HS256 access tokens.
// Credentials live outside this system, tokens only carry the user id and role.
type TokenService struct {
	secret    []byte
	AccessTTL time.Duration
	log       logger.Logger
}

func NewTokenService(secret string, accessTTL time.Duration, log logger.Logger) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &TokenService{
		secret:    []byte(secret),
		AccessTTL: accessTTL,
		log:       log,
	}, nil
}

// Issue signs an access token for the user.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID, role types.UserRole) (string, time.Time, error) {
	ctx = wrap.WithAction(ctx, "issue_token")

	if !role.Valid() {
		return "", time.Time{}, wrap.Error(ctx, fmt.Errorf("%w: unknown role %q", types.ErrValidation, role))
	}

	issuedAt := time.Now().UTC()
	exp := issuedAt.Add(s.AccessTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"typ":     accessTokenType,
		"jti":     uuid.NewString(),
		"user_id": userID.String(),
		"role":    role.String(),
		"iat":     issuedAt.Unix(),
		"exp":     exp.Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, wrap.Error(ctx, fmt.Errorf("failed to sign token: %w", err))
	}
	return signed, exp, nil
}

// Validate parses the token and returns the identity it carries.
func (s *TokenService) Validate(ctx context.Context, token string) (models.Identity, error) {
	ctx = wrap.WithAction(ctx, "validate_token")

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return models.Identity{}, wrap.Error(ctx, types.ErrInvalidToken)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, wrap.Error(ctx, types.ErrInvalidToken)
	}

	if typ, _ := mc["typ"].(string); typ != accessTokenType {
		return models.Identity{}, wrap.Error(ctx, types.ErrInvalidToken)
	}

	userIDStr, _ := mc["user_id"].(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return models.Identity{}, wrap.Error(ctx, fmt.Errorf("%w: invalid 'user_id' in token claims", types.ErrInvalidToken))
	}

	roleStr, _ := mc["role"].(string)
	role := types.UserRole(roleStr)
	if !role.Valid() {
		return models.Identity{}, wrap.Error(ctx, fmt.Errorf("%w: invalid 'role' in token claims", types.ErrInvalidToken))
	}

	return models.Identity{UserID: userID, Role: role}, nil
}
