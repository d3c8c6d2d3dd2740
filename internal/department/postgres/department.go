package postgres

import (
	"github.com/tianting/celestial-court/internal/department"
	"gorm.io/gorm"
)

// DepartmentRepository implements department.RepositoryAPI using GORM
type DepartmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) List() ([]*department.Department, error) {
	var rows []*department.Department
	err := r.db.Order("level ASC, parent_id ASC, id ASC").Find(&rows).Error
	return rows, err
}

func (r *DepartmentRepository) GetByID(id int64) (*department.Department, error) {
	var dept department.Department
	err := r.db.Where("id = ?", id).First(&dept).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, department.ErrDepartmentNotFound
		}
		return nil, err
	}
	return &dept, nil
}

func (r *DepartmentRepository) GetByCode(code string) (*department.Department, error) {
	var dept department.Department
	err := r.db.Where("code = ?", code).First(&dept).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, department.ErrDepartmentNotFound
		}
		return nil, err
	}
	return &dept, nil
}

func (r *DepartmentRepository) Create(d *department.Department) error {
	return r.db.Create(d).Error
}

func (r *DepartmentRepository) Update(d *department.Department) error {
	return r.db.Model(&department.Department{}).
		Where("id = ?", d.ID).
		Updates(map[string]interface{}{
			"code":        d.Code,
			"name":        d.Name,
			"description": d.Description,
			"parent_id":   d.ParentID,
			"level":       d.Level,
			"min_rank_id": d.MinRankID,
		}).Error
}

// Reparent moves the department and rewrites the levels of its subtree in a
// single transaction so readers never see a half-moved branch.
func (r *DepartmentRepository) Reparent(id int64, newParentID *int64, newLevels map[int64]int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&department.Department{}).
			Where("id = ?", id).
			Update("parent_id", newParentID).Error; err != nil {
			return err
		}
		for deptID, level := range newLevels {
			if err := tx.Model(&department.Department{}).
				Where("id = ?", deptID).
				Update("level", level).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *DepartmentRepository) SetLeader(id int64, leaderID *int64) error {
	return r.db.Model(&department.Department{}).
		Where("id = ?", id).
		Update("leader_id", leaderID).Error
}

func (r *DepartmentRepository) SetStatus(id int64, status string) error {
	return r.db.Model(&department.Department{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// DepartmentExists answers the cheap referential check the deity service
// needs when assigning a deity to a department.
func (r *DepartmentRepository) DepartmentExists(id int64) (bool, error) {
	var count int64
	err := r.db.Model(&department.Department{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// DepartmentsLedBy returns the names of departments currently led by the
// deity. The deity lifecycle uses it to block punitive transitions while a
// leadership assignment is still in place.
func (r *DepartmentRepository) DepartmentsLedBy(deityID int64) ([]string, error) {
	var names []string
	err := r.db.Model(&department.Department{}).
		Where("leader_id = ?", deityID).
		Order("id ASC").
		Pluck("name", &names).Error
	return names, err
}
