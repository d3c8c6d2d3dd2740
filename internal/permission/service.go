package permission

import (
	"log/slog"

	"github.com/tianting/celestial-court/internal"
)

// Service owns administrative mutation of the role/permission catalog. The
// catalog is otherwise read-only configuration: every successful mutation
// reloads the resolver snapshot so in-flight checks switch over atomically.
type Service struct {
	repo     RepositoryAPI
	resolver *Resolver
	logger   *slog.Logger
}

func NewService(repo RepositoryAPI, resolver *Resolver, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		logger:   logger,
	}
}

func (s *Service) ListPermissions() ([]*Permission, error) {
	perms, err := s.repo.ListPermissions()
	if err != nil {
		s.logger.Error("failed to list permissions", "error", err)
		return nil, err
	}
	return perms, nil
}

func (s *Service) ListRoles() ([]*Role, error) {
	roles, err := s.repo.ListRoles()
	if err != nil {
		s.logger.Error("failed to list roles", "error", err)
		return nil, err
	}
	return roles, nil
}

// UpdateRolePermissions replaces the permission set of a role. Every id
// must reference an existing catalog entry.
func (s *Service) UpdateRolePermissions(roleID int64, dto UpdateRoleDTO) (*Role, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	role, err := s.repo.GetRoleByID(roleID)
	if err != nil {
		return nil, err
	}

	for _, permID := range dto.PermissionIDs {
		if _, err := s.repo.GetPermissionByID(permID); err != nil {
			s.logger.Warn("role update references unknown permission",
				"role_id", roleID,
				"permission_id", permID)
			return nil, err
		}
	}

	if err := s.repo.ReplaceRolePermissions(roleID, dto.PermissionIDs); err != nil {
		s.logger.Error("failed to replace role permissions", "error", err, "role_id", roleID)
		return nil, err
	}

	if err := s.resolver.Reload(); err != nil {
		return nil, err
	}

	s.logger.Info("role permissions updated",
		"role_id", roleID,
		"role_code", role.Code,
		"permission_count", len(dto.PermissionIDs))

	return s.repo.GetRoleByID(roleID)
}

// UpdatePermission edits a permission's display metadata.
func (s *Service) UpdatePermission(id int64, dto UpdatePermissionDTO) (*Permission, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	perm, err := s.repo.GetPermissionByID(id)
	if err != nil {
		return nil, err
	}

	perm.Name = dto.Name
	perm.Description = dto.Description
	if err := s.repo.UpdatePermission(perm); err != nil {
		s.logger.Error("failed to update permission", "error", err, "permission_id", id)
		return nil, err
	}

	if err := s.resolver.Reload(); err != nil {
		return nil, err
	}

	s.logger.Info("permission updated", "permission_id", id, "code", perm.Code)
	return perm, nil
}
