package rank

import (
	"fmt"
	"time"

	"github.com/tianting/celestial-court/internal"
)

// Rank is an ordered eligibility level. Lower level means higher authority;
// the seeded catalog runs S(1) through C(4). Reference data, never mutated
// at runtime.
type Rank struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Code        string    `json:"code" gorm:"uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"not null"`
	Level       int       `json:"level" gorm:"not null"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
}

// TableName returns the table name for GORM
func (Rank) TableName() string {
	return "ranks"
}

// Display renders the rank the way list views show it, e.g. "Gold Immortal (A)".
func (r *Rank) Display() string {
	return fmt.Sprintf("%s (%s)", r.Name, r.Code)
}

// OutranksOrEquals reports whether r is at least as senior as other.
func (r *Rank) OutranksOrEquals(other *Rank) bool {
	return r.Level <= other.Level
}

type RepositoryAPI interface {
	List() ([]*Rank, error)
	GetByID(id int64) (*Rank, error)
}

var ErrRankNotFound = internal.NewNotFoundError("rank not found", internal.ErrCodeRankNotFound)
