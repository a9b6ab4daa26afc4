package query

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// CredentialStore is implemented by repository.UserRepository.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetMembership(ctx context.Context, userID, orgID string) (*models.Membership, error)
	GetDefaultMembership(ctx context.Context, userID string) (*models.Membership, error)
}

// AuthQueryService handles login, token refresh and organization switching.
// There's no CommandService for auth because these operations don't mutate
// application state.
type AuthQueryService struct {
	store  CredentialStore
	ttl    time.Duration
	logger *zap.Logger
}

func NewAuthQueryService(store CredentialStore, ttl time.Duration, logger *zap.Logger) *AuthQueryService {
	if ttl <= 0 {
		ttl = middleware.DefaultTokenTTL
	}
	return &AuthQueryService{store: store, ttl: ttl, logger: logger}
}

// Login checks the password and scopes the token to the requested
// organization, or to the user's oldest membership when none is given.
// A user without any membership still gets a token, without organization.
func (s *AuthQueryService) Login(ctx context.Context, cmd cqrs.LoginCommand) (*models.AuthToken, error) {
	user, err := s.store.GetByEmail(ctx, cmd.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(cmd.Password, user.PasswordHash) {
		s.logger.Info("login rejected", zap.String("userId", user.ID))
		return nil, apperr.Unauthorized("invalid credentials")
	}

	membership, err := s.resolveMembership(ctx, user.ID, cmd.OrganizationID)
	if err != nil {
		return nil, err
	}
	return s.issue(user, membership)
}

// RefreshToken re-reads the user and their role so that role changes and
// removals take effect at the next refresh.
func (s *AuthQueryService) RefreshToken(ctx context.Context, cmd cqrs.RefreshTokenCommand) (*models.AuthToken, error) {
	claims, err := middleware.ParseToken(cmd.Token)
	if err != nil {
		return nil, apperr.Unauthorized("invalid token")
	}
	user, err := s.store.GetByID(ctx, claims.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthorized("invalid token")
	}
	if err != nil {
		return nil, err
	}

	var membership *models.Membership
	if claims.OrganizationID != "" {
		membership, err = s.store.GetMembership(ctx, user.ID, claims.OrganizationID)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Forbidden("no longer a member of this organization")
		}
		if err != nil {
			return nil, err
		}
	}
	return s.issue(user, membership)
}

func (s *AuthQueryService) SwitchOrganization(ctx context.Context, cmd cqrs.SwitchOrganizationCommand) (*models.AuthToken, error) {
	user, err := s.store.GetByID(ctx, cmd.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthorized("invalid token")
	}
	if err != nil {
		return nil, err
	}
	membership, err := s.resolveMembership(ctx, user.ID, cmd.OrganizationID)
	if err != nil {
		return nil, err
	}
	return s.issue(user, membership)
}

func (s *AuthQueryService) resolveMembership(ctx context.Context, userID, orgID string) (*models.Membership, error) {
	if orgID != "" {
		m, err := s.store.GetMembership(ctx, userID, orgID)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Forbidden("not a member of this organization")
		}
		return m, err
	}
	m, err := s.store.GetDefaultMembership(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

func (s *AuthQueryService) issue(user *models.User, membership *models.Membership) (*models.AuthToken, error) {
	identity := middleware.Identity{UserID: user.ID, Email: user.Email}
	if membership != nil {
		identity.OrganizationID = membership.OrganizationID
		identity.Role = membership.Role
	}
	expiresAt := time.Now().Add(s.ttl).UTC()
	token, err := middleware.IssueToken(identity, s.ttl)
	if err != nil {
		return nil, err
	}
	return &models.AuthToken{
		Token:          token,
		OrganizationID: identity.OrganizationID,
		Role:           identity.Role,
		ExpiresAt:      expiresAt,
	}, nil
}
