package postgres

import (
	"github.com/tianting/celestial-court/internal/rank"
	"gorm.io/gorm"
)

// RankRepository implements the rank.RepositoryAPI interface using GORM
type RankRepository struct {
	db *gorm.DB
}

func NewRankRepository(db *gorm.DB) *RankRepository {
	return &RankRepository{db: db}
}

func (r *RankRepository) List() ([]*rank.Rank, error) {
	var ranks []*rank.Rank
	err := r.db.Order("level ASC").Find(&ranks).Error
	return ranks, err
}

func (r *RankRepository) GetByID(id int64) (*rank.Rank, error) {
	var rk rank.Rank
	err := r.db.Where("id = ?", id).First(&rk).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, rank.ErrRankNotFound
		}
		return nil, err
	}
	return &rk, nil
}

// RankLevel returns the seniority level for a rank id. Used by the
// department engine for leader eligibility checks.
func (r *RankRepository) RankLevel(id int64) (int, error) {
	rk, err := r.GetByID(id)
	if err != nil {
		return 0, err
	}
	return rk.Level, nil
}
