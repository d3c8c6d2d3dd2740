package postgres

import (
	"github.com/tianting/celestial-court/internal/permission"
	"gorm.io/gorm"
)

// PermissionRepository implements permission.RepositoryAPI using GORM
type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

type rolePermissionRow struct {
	RoleID       int64 `gorm:"column:role_id"`
	PermissionID int64 `gorm:"column:permission_id"`
}

func (rolePermissionRow) TableName() string {
	return "role_permissions"
}

func (r *PermissionRepository) ListPermissions() ([]*permission.Permission, error) {
	var perms []*permission.Permission
	err := r.db.Order("id ASC").Find(&perms).Error
	return perms, err
}

func (r *PermissionRepository) ListRoles() ([]*permission.Role, error) {
	var roles []*permission.Role
	if err := r.db.Order("level ASC, id ASC").Find(&roles).Error; err != nil {
		return nil, err
	}

	var grants []rolePermissionRow
	if err := r.db.Find(&grants).Error; err != nil {
		return nil, err
	}

	byRole := make(map[int64][]int64, len(roles))
	for _, g := range grants {
		byRole[g.RoleID] = append(byRole[g.RoleID], g.PermissionID)
	}
	for _, role := range roles {
		role.PermissionIDs = byRole[role.ID]
	}

	return roles, nil
}

func (r *PermissionRepository) GetPermissionByID(id int64) (*permission.Permission, error) {
	var perm permission.Permission
	err := r.db.Where("id = ?", id).First(&perm).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, permission.ErrPermissionNotFound
		}
		return nil, err
	}
	return &perm, nil
}

func (r *PermissionRepository) GetRoleByID(id int64) (*permission.Role, error) {
	var role permission.Role
	err := r.db.Where("id = ?", id).First(&role).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, permission.ErrRoleNotFound
		}
		return nil, err
	}

	var grants []rolePermissionRow
	if err := r.db.Where("role_id = ?", id).Find(&grants).Error; err != nil {
		return nil, err
	}
	for _, g := range grants {
		role.PermissionIDs = append(role.PermissionIDs, g.PermissionID)
	}

	return &role, nil
}

// ReplaceRolePermissions swaps a role's grant set in one transaction.
func (r *PermissionRepository) ReplaceRolePermissions(roleID int64, permissionIDs []int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&rolePermissionRow{}).Error; err != nil {
			return err
		}
		for _, permID := range permissionIDs {
			row := rolePermissionRow{RoleID: roleID, PermissionID: permID}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PermissionRepository) UpdatePermission(p *permission.Permission) error {
	return r.db.Model(&permission.Permission{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"name":        p.Name,
			"description": p.Description,
		}).Error
}
