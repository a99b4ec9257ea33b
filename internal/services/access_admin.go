package services

import (
	"context"

	"go.uber.org/zap"

	"clan-backend/internal/authz"
	"clan-backend/internal/dto"
	"clan-backend/internal/entities"
	"clan-backend/internal/events"
	"clan-backend/internal/repositories"
)

type AccessAdminServiceInterface interface {
	GrantUserPermission(ctx context.Context, in dto.UserPermissionDTO) error
	RevokeUserPermission(ctx context.Context, in dto.UserPermissionDTO) error
	AttachRolePermission(ctx context.Context, in dto.RolePermissionDTO) error
	DetachRolePermission(ctx context.Context, in dto.RolePermissionDTO) error
	AssignBranches(ctx context.Context, in dto.AssignBranchesDTO) (*entities.BranchAssignment, error)
}

type AccessAdminService struct {
	gatekeeper *authz.Gatekeeper
	resources  repositories.ResourceRepositoryInterface
	adminRepo  repositories.AccessAdminRepositoryInterface
	publisher  EventPublisher
	logger     *zap.Logger
}

func NewAccessAdminService(
	gatekeeper *authz.Gatekeeper,
	resources repositories.ResourceRepositoryInterface,
	adminRepo repositories.AccessAdminRepositoryInterface,
	publisher EventPublisher,
	logger *zap.Logger,
) AccessAdminServiceInterface {
	return &AccessAdminService{
		gatekeeper: gatekeeper,
		resources:  resources,
		adminRepo:  adminRepo,
		publisher:  publisher,
		logger:     logger,
	}
}

// require: проверка глагола над объектом и повторная проверка самого объекта.
// Объект вне области доступа неотличим от несуществующего.
func (s *AccessAdminService) require(ctx context.Context, resource authz.ResourceType, verb authz.Verb, id uint64) (*authz.Decision, error) {
	decision, err := s.gatekeeper.Begin(ctx, authz.PrincipalFrom(ctx), resource, verb, objectID(id))
	if err != nil {
		return nil, err
	}
	row, err := s.resources.Find(ctx, decision.Resource, id)
	if err != nil {
		return nil, err
	}
	if err := decision.Check(row); err != nil {
		return nil, err
	}
	return decision, nil
}

func (s *AccessAdminService) GrantUserPermission(ctx context.Context, in dto.UserPermissionDTO) error {
	decision, err := s.require(ctx, authz.ResourcePermissions, authz.VerbEdit, in.PermissionID)
	if err != nil {
		return err
	}
	if _, err := s.require(ctx, authz.ResourceStaff, authz.VerbView, in.UserID); err != nil {
		return err
	}
	if err := s.adminRepo.GrantUserPermission(ctx, in.UserID, in.PermissionID); err != nil {
		return err
	}
	s.logger.Info("право выдано пользователю",
		zap.Uint64("actor_id", decision.Principal.ID),
		zap.Uint64("user_id", in.UserID),
		zap.Uint64("permission_id", in.PermissionID),
	)
	s.changed(ctx, decision.Principal.ID, authz.ResourcePermissions, in.PermissionID, "grant")
	return nil
}

func (s *AccessAdminService) RevokeUserPermission(ctx context.Context, in dto.UserPermissionDTO) error {
	decision, err := s.require(ctx, authz.ResourcePermissions, authz.VerbEdit, in.PermissionID)
	if err != nil {
		return err
	}
	if _, err := s.require(ctx, authz.ResourceStaff, authz.VerbView, in.UserID); err != nil {
		return err
	}
	if err := s.adminRepo.RevokeUserPermission(ctx, in.UserID, in.PermissionID); err != nil {
		return err
	}
	s.logger.Info("право отозвано у пользователя",
		zap.Uint64("actor_id", decision.Principal.ID),
		zap.Uint64("user_id", in.UserID),
		zap.Uint64("permission_id", in.PermissionID),
	)
	s.changed(ctx, decision.Principal.ID, authz.ResourcePermissions, in.PermissionID, "revoke")
	return nil
}

func (s *AccessAdminService) AttachRolePermission(ctx context.Context, in dto.RolePermissionDTO) error {
	decision, err := s.require(ctx, authz.ResourceRoles, authz.VerbEdit, in.RoleID)
	if err != nil {
		return err
	}
	if _, err := s.require(ctx, authz.ResourcePermissions, authz.VerbView, in.PermissionID); err != nil {
		return err
	}
	if err := s.adminRepo.AttachRolePermission(ctx, in.RoleID, in.PermissionID); err != nil {
		return err
	}
	s.changed(ctx, decision.Principal.ID, authz.ResourceRoles, in.RoleID, "attach")
	return nil
}

func (s *AccessAdminService) DetachRolePermission(ctx context.Context, in dto.RolePermissionDTO) error {
	decision, err := s.require(ctx, authz.ResourceRoles, authz.VerbEdit, in.RoleID)
	if err != nil {
		return err
	}
	if _, err := s.require(ctx, authz.ResourcePermissions, authz.VerbView, in.PermissionID); err != nil {
		return err
	}
	if err := s.adminRepo.DetachRolePermission(ctx, in.RoleID, in.PermissionID); err != nil {
		return err
	}
	s.changed(ctx, decision.Principal.ID, authz.ResourceRoles, in.RoleID, "detach")
	return nil
}

// AssignBranches заменяет филиалы назначения. Каждый филиал должен быть виден вызывающему.
func (s *AccessAdminService) AssignBranches(ctx context.Context, in dto.AssignBranchesDTO) (*entities.BranchAssignment, error) {
	principal := authz.PrincipalFrom(ctx)
	if _, err := s.gatekeeper.Begin(ctx, principal, authz.ResourceAssignedBranches, authz.VerbEdit, ""); err != nil {
		return nil, err
	}
	if _, err := s.require(ctx, authz.ResourceStaff, authz.VerbView, in.UserID); err != nil {
		return nil, err
	}
	for _, branchID := range uniqueIDs(in.BranchIDs) {
		if _, err := s.require(ctx, authz.ResourceBranches, authz.VerbView, branchID); err != nil {
			return nil, err
		}
	}

	assignment, err := s.adminRepo.SetAssignmentBranches(ctx, in.UserID, uniqueIDs(in.BranchIDs))
	if err != nil {
		return nil, err
	}
	s.logger.Info("назначение филиалов обновлено",
		zap.Uint64("actor_id", principal.ID),
		zap.Uint64("user_id", in.UserID),
		zap.Int("branches", len(assignment.BranchIDs)),
	)
	s.changed(ctx, principal.ID, authz.ResourceAssignedBranches, assignment.ID, "assign")
	return assignment, nil
}

func (s *AccessAdminService) changed(ctx context.Context, actorID uint64, resource authz.ResourceType, id uint64, action string) {
	event := events.AccessChangedEvent{Resource: resource, ObjectID: objectID(id), ActorID: actorID, Action: action}
	if err := s.publisher.PublishSync(ctx, event); err != nil {
		s.logger.Error("не удалось обработать изменение модели доступа", zap.String("resource", string(resource)), zap.Error(err))
	}
}

func uniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
