package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-service/internal/auth"
	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/repository"
)

// seedDevUsers provisions one agent per tier with random ids and returns them.
// Tokens are logged at debug only.
func seedDevUsers(ctx context.Context, users repository.UserRepository, tokens *auth.TokenManager, logger *zap.Logger) ([]*domain.User, error) {
	seeded := make([]*domain.User, 0, 3)
	for _, role := range []domain.Role{domain.RoleL1, domain.RoleL2, domain.RoleL3} {
		username := "agent." + string(role)
		user := &domain.User{
			ID:        uuid.NewString(),
			Username:  username,
			Email:     username + "@support.local",
			Role:      role,
			CreatedAt: time.Now().UTC(),
		}
		if err := users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("seed %s: %w", username, err)
		}
		token, expiresAt, err := tokens.GenerateToken(user.ID, role)
		if err != nil {
			return nil, fmt.Errorf("token for %s: %w", username, err)
		}
		logger.Info("development user seeded", zap.String("username", username), zap.String("role", string(role)))
		logger.Debug("development user token",
			zap.String("username", username),
			zap.String("token", token),
			zap.Time("expires_at", expiresAt),
		)
		seeded = append(seeded, user)
	}
	return seeded, nil
}
