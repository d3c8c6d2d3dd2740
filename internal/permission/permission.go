package permission

import (
	"time"

	"github.com/tianting/celestial-court/internal"
)

// Permission types. Menu permissions gate whole UI modules; operation
// permissions gate single actions and always hang off a menu permission.
const (
	TypeMenu      = "menu"
	TypeOperation = "operation"
)

type Permission struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Code        string    `json:"code" gorm:"uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	Type        string    `json:"type" gorm:"not null"`
	ParentID    *int64    `json:"parent_id,omitempty" gorm:"column:parent_id"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
}

// TableName returns the table name for GORM
func (Permission) TableName() string {
	return "permissions"
}

func (p *Permission) IsMenu() bool {
	return p.Type == TypeMenu
}

func (p *Permission) IsOperation() bool {
	return p.Type == TypeOperation
}

// Role groups permissions. Level is a display ordering hint only; it does
// not imply inheritance between roles.
type Role struct {
	ID            int64     `json:"id" gorm:"primaryKey"`
	Code          string    `json:"code" gorm:"uniqueIndex;not null"`
	Name          string    `json:"name" gorm:"not null"`
	Description   string    `json:"description"`
	Level         int       `json:"level"`
	PermissionIDs []int64   `json:"permission_ids" gorm:"-"`
	CreatedAt     time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
}

// TableName returns the table name for GORM
func (Role) TableName() string {
	return "roles"
}

type RepositoryAPI interface {
	ListPermissions() ([]*Permission, error)
	ListRoles() ([]*Role, error)
	GetPermissionByID(id int64) (*Permission, error)
	GetRoleByID(id int64) (*Role, error)
	ReplaceRolePermissions(roleID int64, permissionIDs []int64) error
	UpdatePermission(p *Permission) error
}

var (
	ErrRoleNotFound       = internal.NewNotFoundError("role not found", internal.ErrCodeRoleNotFound)
	ErrPermissionNotFound = internal.NewNotFoundError("permission not found", internal.ErrCodePermissionNotFound)
)
