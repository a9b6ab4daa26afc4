package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/events"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// UserCommandService writes user state to PostgreSQL and keeps the Redis
// read model up to date.
type UserCommandService struct {
	users     UserStore
	userViews UserViews
	orgViews  OrganizationViews
	publisher events.Emitter
	logger    *zap.Logger
}

func NewUserCommandService(
	users UserStore,
	userViews UserViews,
	orgViews OrganizationViews,
	publisher events.Emitter,
	logger *zap.Logger,
) *UserCommandService {
	return &UserCommandService{
		users:     users,
		userViews: userViews,
		orgViews:  orgViews,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateUser registers a user. When OrganizationName is set the user is also
// made owner of a new organization in the same transaction.
func (s *UserCommandService) CreateUser(ctx context.Context, cmd cqrs.CreateUserCommand) (*models.User, error) {
	passwordHash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	now := time.Now().UTC()
	user := &models.User{
		ID:           utils.GenerateID("usr"),
		Name:         cmd.Name,
		Email:        strings.ToLower(cmd.Email),
		PasswordHash: passwordHash,
		PhoneNumber:  cmd.PhoneNumber,
		Address:      cmd.Address,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var org *models.Organization
	if name := strings.TrimSpace(cmd.OrganizationName); name != "" {
		org = newOrganization(name, "", "", "", 0, user.ID, now)
	}

	if err := s.users.Create(ctx, user, org); err != nil {
		return nil, err
	}
	s.userViews.CacheUserView(ctx, userToView(user))
	s.publish(ctx, events.UserCreated, events.UserCreatedEvent{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	})
	if org != nil {
		s.orgViews.CacheOrganizationView(ctx, organizationToView(org, 1))
		s.publish(ctx, events.OrganizationCreated, events.OrganizationEvent{
			OrganizationID: org.ID,
			Name:           org.Name,
			UserID:         user.ID,
		})
	}
	return user, nil
}

func (s *UserCommandService) UpdateUser(ctx context.Context, cmd cqrs.UpdateUserCommand) (*models.UserView, error) {
	if cmd.UserID != cmd.RequestingUserID {
		return nil, apperr.Forbidden("you can only update your own user")
	}
	user, err := s.users.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	user.Name = cmd.Name
	user.Email = strings.ToLower(cmd.Email)
	user.PhoneNumber = cmd.PhoneNumber
	user.Address = cmd.Address
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	view := userToView(user)
	s.userViews.CacheUserView(ctx, view)
	s.publish(ctx, events.UserUpdated, events.UserUpdatedEvent{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	})
	return view, nil
}

// DeleteUser rejects the operation while the user is the only owner of an
// organization, since that organization would be left without one.
func (s *UserCommandService) DeleteUser(ctx context.Context, cmd cqrs.DeleteUserCommand) error {
	if cmd.UserID != cmd.RequestingUserID {
		return apperr.Forbidden("you can only delete your own user")
	}
	owned, err := s.users.SoleOwnerOrganizations(ctx, cmd.UserID)
	if err != nil {
		return err
	}
	if len(owned) > 0 {
		return apperr.Conflict("user is the last owner of %d organization(s)", len(owned))
	}
	if err := s.users.Delete(ctx, cmd.UserID); err != nil {
		return err
	}
	s.userViews.InvalidateUserView(ctx, cmd.UserID)
	s.publish(ctx, events.UserDeleted, events.UserDeletedEvent{UserID: cmd.UserID})
	return nil
}

func (s *UserCommandService) publish(ctx context.Context, eventType string, data any) {
	if err := s.publisher.Publish(ctx, events.OrganizationEventsStream, eventType, data); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func userToView(u *models.User) *models.UserView {
	return &models.UserView{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Address:     u.Address,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
