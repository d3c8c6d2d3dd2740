package postgres

import (
	"fmt"

	"github.com/tianting/celestial-court/internal/deity"
	"github.com/tianting/celestial-court/internal/department"
	"gorm.io/gorm"
)

// DeityRepository implements deity.RepositoryAPI using GORM
type DeityRepository struct {
	db *gorm.DB
}

func NewDeityRepository(db *gorm.DB) *DeityRepository {
	return &DeityRepository{db: db}
}

type deityRow struct {
	deity.Deity
	DepartmentName *string `gorm:"column:department_name"`
	RankName       string  `gorm:"column:rank_name"`
	RankCode       string  `gorm:"column:rank_code"`
	RankLevel      int     `gorm:"column:rank_level"`
}

const viewSelect = `deities.*,
	departments.name AS department_name,
	ranks.name AS rank_name,
	ranks.code AS rank_code,
	ranks.level AS rank_level`

func (r *DeityRepository) viewQuery() *gorm.DB {
	return r.db.Table("deities").
		Select(viewSelect).
		Joins("JOIN ranks ON ranks.id = deities.rank_id").
		Joins("LEFT JOIN departments ON departments.id = deities.department_id")
}

func (r *DeityRepository) List(params deity.ListParams) ([]*deity.DeityView, int64, error) {
	query := r.viewQuery()

	if params.Keyword != "" {
		pattern := "%" + params.Keyword + "%"
		query = query.Where("deities.name LIKE ? OR deities.title LIKE ?", pattern, pattern)
	}
	if params.DepartmentID != nil {
		query = query.Where("deities.department_id = ?", *params.DepartmentID)
	}
	if params.RankID != nil {
		query = query.Where("deities.rank_id = ?", *params.RankID)
	}
	if params.Status != "" {
		query = query.Where("deities.status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "ranks.level ASC, deities.created_at DESC"
	if params.SortBy != "" {
		column := map[string]string{
			"name":       "deities.name",
			"created_at": "deities.created_at",
			"rank":       "ranks.level",
			"status":     "deities.status",
		}[params.SortBy]
		if column != "" {
			direction := "ASC"
			if params.SortOrder == "desc" {
				direction = "DESC"
			}
			order = fmt.Sprintf("%s %s, deities.id ASC", column, direction)
		}
	}

	var rows []deityRow
	err := query.Order(order).
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	views := make([]*deity.DeityView, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for i := range rows {
		views = append(views, rowToView(&rows[i]))
		ids = append(ids, rows[i].ID)
	}

	if err := r.attachResponsibilities(views, ids); err != nil {
		return nil, 0, err
	}

	return views, total, nil
}

func (r *DeityRepository) GetByID(id int64) (*deity.Deity, error) {
	var d deity.Deity
	err := r.db.Where("id = ?", id).First(&d).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, deity.ErrDeityNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DeityRepository) GetView(id int64) (*deity.DeityView, error) {
	var row deityRow
	err := r.viewQuery().Where("deities.id = ?", id).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, deity.ErrDeityNotFound
	}

	view := rowToView(&row)
	if err := r.attachResponsibilities([]*deity.DeityView{view}, []int64{id}); err != nil {
		return nil, err
	}
	return view, nil
}

func (r *DeityRepository) Create(d *deity.Deity, responsibilities []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(d).Error; err != nil {
			return err
		}
		return replaceResponsibilities(tx, d.ID, responsibilities)
	})
}

func (r *DeityRepository) Update(d *deity.Deity, responsibilities []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&deity.Deity{}).
			Where("id = ?", d.ID).
			Updates(map[string]interface{}{
				"name":          d.Name,
				"title":         d.Title,
				"department_id": d.DepartmentID,
				"rank_id":       d.RankID,
			}).Error
		if err != nil {
			return err
		}
		if responsibilities == nil {
			return nil
		}
		return replaceResponsibilities(tx, d.ID, responsibilities)
	})
}

// ChangeStatus writes the status and the optional history row atomically.
func (r *DeityRepository) ChangeStatus(id int64, status string, history *deity.StatusHistory) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&deity.Deity{}).
			Where("id = ?", id).
			Update("status", status).Error; err != nil {
			return err
		}
		if history != nil {
			if err := tx.Create(history).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *DeityRepository) History(deityID int64) ([]*deity.StatusHistory, error) {
	var rows []*deity.StatusHistory
	err := r.db.Where("deity_id = ?", deityID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

// LeaderCandidate gives the department tree engine the slice of a deity it
// needs for leadership eligibility.
func (r *DeityRepository) LeaderCandidate(deityID int64) (*department.LeaderCandidate, error) {
	d, err := r.GetByID(deityID)
	if err != nil {
		return nil, err
	}
	return &department.LeaderCandidate{
		ID:     d.ID,
		Name:   d.Name,
		Status: d.Status,
		RankID: d.RankID,
	}, nil
}

func rowToView(row *deityRow) *deity.DeityView {
	view := &deity.DeityView{
		Deity:            row.Deity,
		RankDisplay:      fmt.Sprintf("%s (%s)", row.RankName, row.RankCode),
		RankLevel:        row.RankLevel,
		Responsibilities: []string{},
	}
	if row.DepartmentName != nil {
		view.DepartmentName = *row.DepartmentName
	}
	return view
}

func (r *DeityRepository) attachResponsibilities(views []*deity.DeityView, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	var rows []deity.Responsibility
	err := r.db.Where("deity_id IN ?", ids).
		Order("deity_id ASC, position ASC").
		Find(&rows).Error
	if err != nil {
		return err
	}

	byDeity := make(map[int64][]string)
	for _, row := range rows {
		byDeity[row.DeityID] = append(byDeity[row.DeityID], row.Responsibility)
	}
	for _, view := range views {
		if list, ok := byDeity[view.ID]; ok {
			view.Responsibilities = list
		}
	}
	return nil
}

func replaceResponsibilities(tx *gorm.DB, deityID int64, responsibilities []string) error {
	if err := tx.Where("deity_id = ?", deityID).Delete(&deity.Responsibility{}).Error; err != nil {
		return err
	}
	for i, text := range responsibilities {
		row := deity.Responsibility{
			DeityID:        deityID,
			Position:       i + 1,
			Responsibility: text,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
