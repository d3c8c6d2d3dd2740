package permission

import "errors"

// UpdateRoleDTO replaces a role's permission set.
type UpdateRoleDTO struct {
	PermissionIDs []int64 `json:"permission_ids"`
}

func (dto UpdateRoleDTO) Validate() error {
	if dto.PermissionIDs == nil {
		return errors.New("permission_ids is required")
	}
	return nil
}

// UpdatePermissionDTO edits permission metadata. Code, type and parent
// linkage are fixed at bootstrap and cannot be changed here.
type UpdatePermissionDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (dto UpdatePermissionDTO) Validate() error {
	if dto.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
