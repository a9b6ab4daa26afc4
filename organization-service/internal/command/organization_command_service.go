package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/events"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

const defaultCurrency = "USD"

// OrganizationCommandService manages organizations and their memberships.
type OrganizationCommandService struct {
	orgs      OrganizationStore
	users     UserStore
	orgViews  OrganizationViews
	publisher events.Emitter
	logger    *zap.Logger
}

func NewOrganizationCommandService(
	orgs OrganizationStore,
	users UserStore,
	orgViews OrganizationViews,
	publisher events.Emitter,
	logger *zap.Logger,
) *OrganizationCommandService {
	return &OrganizationCommandService{
		orgs:      orgs,
		users:     users,
		orgViews:  orgViews,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *OrganizationCommandService) CreateOrganization(ctx context.Context, cmd cqrs.CreateOrganizationCommand) (*models.OrganizationView, error) {
	org := newOrganization(cmd.Name, cmd.Country, cmd.State, cmd.Currency, cmd.FiscalYearStartMonth, cmd.UserID, time.Now().UTC())
	if err := s.orgs.CreateWithOwner(ctx, org, cmd.UserID); err != nil {
		return nil, err
	}
	view := organizationToView(org, 1)
	s.orgViews.CacheOrganizationView(ctx, view)
	s.publish(ctx, events.OrganizationCreated, events.OrganizationEvent{
		OrganizationID: org.ID,
		Name:           org.Name,
		UserID:         cmd.UserID,
	})
	view.Role = middleware.RoleOwner
	return view, nil
}

func (s *OrganizationCommandService) UpdateOrganization(ctx context.Context, cmd cqrs.UpdateOrganizationCommand) (*models.OrganizationView, error) {
	membership, err := s.requireRole(ctx, cmd.OrganizationID, cmd.RequestingUserID, middleware.RoleAdmin)
	if err != nil {
		return nil, err
	}
	org, err := s.orgs.GetByID(ctx, cmd.OrganizationID)
	if err != nil {
		return nil, err
	}
	if cmd.Name != "" && cmd.Name != org.Name {
		org.Name = cmd.Name
		org.Slug = utils.Slugify(cmd.Name)
	}
	if cmd.Country != "" {
		org.Country = strings.ToUpper(cmd.Country)
	}
	if cmd.State != "" {
		org.State = strings.ToUpper(cmd.State)
	}
	if cmd.Currency != "" {
		org.Currency = strings.ToUpper(cmd.Currency)
	}
	if cmd.FiscalYearStartMonth != 0 {
		org.FiscalYearStartMonth = cmd.FiscalYearStartMonth
	}
	org.UpdatedAt = time.Now().UTC()
	if err := s.orgs.Update(ctx, org); err != nil {
		return nil, err
	}
	view := s.orgViews.Refresh(ctx, org.ID)
	if view == nil {
		view = organizationToView(org, 0)
	}
	s.publish(ctx, events.OrganizationUpdated, events.OrganizationEvent{
		OrganizationID: org.ID,
		Name:           org.Name,
		UserID:         cmd.RequestingUserID,
	})
	view.Role = membership.Role
	return view, nil
}

func (s *OrganizationCommandService) DeleteOrganization(ctx context.Context, cmd cqrs.DeleteOrganizationCommand) error {
	if _, err := s.requireRole(ctx, cmd.OrganizationID, cmd.RequestingUserID, middleware.RoleOwner); err != nil {
		return err
	}
	if err := s.orgs.Delete(ctx, cmd.OrganizationID); err != nil {
		return err
	}
	s.orgViews.InvalidateOrganizationView(ctx, cmd.OrganizationID)
	s.publish(ctx, events.OrganizationDeleted, events.OrganizationEvent{
		OrganizationID: cmd.OrganizationID,
		UserID:         cmd.RequestingUserID,
	})
	return nil
}

// AddMember invites an existing user by email. Only owners may grant owner.
func (s *OrganizationCommandService) AddMember(ctx context.Context, cmd cqrs.AddMemberCommand) (*models.Membership, error) {
	requester, err := s.requireRole(ctx, cmd.OrganizationID, cmd.RequestingUserID, middleware.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if cmd.Role == middleware.RoleOwner && requester.Role != middleware.RoleOwner {
		return nil, apperr.Forbidden("only an owner can grant the owner role")
	}
	user, err := s.users.GetByEmail(ctx, cmd.Email)
	if err != nil {
		return nil, err
	}
	membership := &models.Membership{
		OrganizationID: cmd.OrganizationID,
		UserID:         user.ID,
		Role:           cmd.Role,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.orgs.AddMember(ctx, membership); err != nil {
		return nil, err
	}
	s.orgViews.Refresh(ctx, cmd.OrganizationID)
	s.publish(ctx, events.MemberAdded, events.MemberEvent{
		OrganizationID: cmd.OrganizationID,
		UserID:         user.ID,
		Role:           cmd.Role,
	})
	return membership, nil
}

func (s *OrganizationCommandService) ChangeMemberRole(ctx context.Context, cmd cqrs.ChangeMemberRoleCommand) (*models.Membership, error) {
	if _, err := s.requireRole(ctx, cmd.OrganizationID, cmd.RequestingUserID, middleware.RoleOwner); err != nil {
		return nil, err
	}
	target, err := s.memberOf(ctx, cmd.OrganizationID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if target.Role == middleware.RoleOwner && cmd.Role != middleware.RoleOwner {
		if err := s.ensureAnotherOwner(ctx, cmd.OrganizationID); err != nil {
			return nil, err
		}
	}
	if err := s.orgs.UpdateMemberRole(ctx, cmd.OrganizationID, cmd.UserID, cmd.Role); err != nil {
		return nil, err
	}
	target.Role = cmd.Role
	s.publish(ctx, events.MemberRoleChanged, events.MemberEvent{
		OrganizationID: cmd.OrganizationID,
		UserID:         cmd.UserID,
		Role:           cmd.Role,
	})
	return target, nil
}

// RemoveMember lets admins remove others and anyone remove themselves.
// Removing an owner takes an owner, and the last owner can never leave.
func (s *OrganizationCommandService) RemoveMember(ctx context.Context, cmd cqrs.RemoveMemberCommand) error {
	requester, err := s.orgs.GetMembership(ctx, cmd.OrganizationID, cmd.RequestingUserID)
	if err != nil {
		return err
	}
	target := requester
	if cmd.UserID != cmd.RequestingUserID {
		if !middleware.RoleAtLeast(requester.Role, middleware.RoleAdmin) {
			return apperr.Forbidden("insufficient role to remove members")
		}
		if target, err = s.memberOf(ctx, cmd.OrganizationID, cmd.UserID); err != nil {
			return err
		}
		if target.Role == middleware.RoleOwner && requester.Role != middleware.RoleOwner {
			return apperr.Forbidden("only an owner can remove an owner")
		}
	}
	if target.Role == middleware.RoleOwner {
		if err := s.ensureAnotherOwner(ctx, cmd.OrganizationID); err != nil {
			return err
		}
	}
	if err := s.orgs.RemoveMember(ctx, cmd.OrganizationID, cmd.UserID); err != nil {
		return err
	}
	s.orgViews.Refresh(ctx, cmd.OrganizationID)
	s.publish(ctx, events.MemberRemoved, events.MemberEvent{
		OrganizationID: cmd.OrganizationID,
		UserID:         cmd.UserID,
		Role:           target.Role,
	})
	return nil
}

func (s *OrganizationCommandService) requireRole(ctx context.Context, orgID, userID, min string) (*models.Membership, error) {
	membership, err := s.orgs.GetMembership(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if !middleware.RoleAtLeast(membership.Role, min) {
		return nil, apperr.Forbidden("insufficient role for this operation")
	}
	return membership, nil
}

func (s *OrganizationCommandService) memberOf(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	m, err := s.orgs.GetMembership(ctx, orgID, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("member")
	}
	return m, err
}

func (s *OrganizationCommandService) ensureAnotherOwner(ctx context.Context, orgID string) error {
	owners, err := s.orgs.CountOwners(ctx, orgID)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return apperr.Conflict("organization must keep at least one owner")
	}
	return nil
}

func (s *OrganizationCommandService) publish(ctx context.Context, eventType string, data any) {
	if err := s.publisher.Publish(ctx, events.OrganizationEventsStream, eventType, data); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func newOrganization(name, country, state, currency string, fiscalStart int, createdBy string, now time.Time) *models.Organization {
	if currency == "" {
		currency = defaultCurrency
	}
	if fiscalStart == 0 {
		fiscalStart = 1
	}
	if country == "" {
		country = "US"
	}
	return &models.Organization{
		ID:                   utils.GenerateID("org"),
		Name:                 name,
		Slug:                 utils.Slugify(name),
		Country:              strings.ToUpper(country),
		State:                strings.ToUpper(state),
		Currency:             strings.ToUpper(currency),
		FiscalYearStartMonth: fiscalStart,
		CreatedBy:            createdBy,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func organizationToView(o *models.Organization, memberCount int) *models.OrganizationView {
	return &models.OrganizationView{
		ID:                   o.ID,
		Name:                 o.Name,
		Slug:                 o.Slug,
		Country:              o.Country,
		State:                o.State,
		Currency:             o.Currency,
		FiscalYearStartMonth: o.FiscalYearStartMonth,
		MemberCount:          memberCount,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}
}
