package deity

import (
	"time"

	"github.com/tianting/celestial-court/internal"
)

const (
	StatusActive      = "active"
	StatusSuspended   = "suspended"
	StatusDismissed   = "dismissed"
	StatusBlacklisted = "blacklisted"
)

// Deity is a personnel record on the celestial roster.
type Deity struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name"`
	Title        string    `json:"title"`
	DepartmentID *int64    `json:"department_id" gorm:"column:department_id"`
	RankID       int64     `json:"rank_id" gorm:"column:rank_id"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Deity) TableName() string {
	return "deities"
}

// Responsibility is one ordered duty line attached to a deity.
type Responsibility struct {
	ID             int64  `json:"-" gorm:"primaryKey"`
	DeityID        int64  `json:"-" gorm:"column:deity_id"`
	Position       int    `json:"-"`
	Responsibility string `json:"responsibility"`
}

func (Responsibility) TableName() string {
	return "deity_responsibilities"
}

// StatusHistory is an append-only punitive-action record. Rows exist only
// for transitions into suspended, dismissed or blacklisted; reinstatements
// leave no row.
type StatusHistory struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	DeityID    int64     `json:"deity_id" gorm:"column:deity_id"`
	FromStatus string    `json:"from_status" gorm:"column:from_status"`
	ToStatus   string    `json:"to_status" gorm:"column:to_status"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

func (StatusHistory) TableName() string {
	return "deity_status_history"
}

// allowedTransitions is the lifecycle state machine. Absence means the
// transition is invalid; blacklisted→blacklisted is handled separately as an
// idempotent no-op.
var allowedTransitions = map[string][]string{
	StatusActive:      {StatusSuspended, StatusDismissed, StatusBlacklisted},
	StatusSuspended:   {StatusActive, StatusBlacklisted},
	StatusDismissed:   {StatusActive, StatusBlacklisted},
	StatusBlacklisted: {StatusActive},
}

func ValidStatus(status string) bool {
	switch status {
	case StatusActive, StatusSuspended, StatusDismissed, StatusBlacklisted:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows from→to.
func CanTransition(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsPunitive reports whether entering the status must append a history row.
func IsPunitive(status string) bool {
	return status == StatusSuspended || status == StatusDismissed || status == StatusBlacklisted
}

// DeityView is the list/detail shape with joined display fields.
type DeityView struct {
	Deity
	DepartmentName   string   `json:"department_name,omitempty"`
	RankDisplay      string   `json:"rank_display"`
	RankLevel        int      `json:"rank_level"`
	Responsibilities []string `json:"responsibilities"`
}

// ListParams carries list filtering, paging and sorting.
type ListParams struct {
	Keyword      string
	DepartmentID *int64
	RankID       *int64
	Status       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

type RepositoryAPI interface {
	List(params ListParams) ([]*DeityView, int64, error)
	GetByID(id int64) (*Deity, error)
	GetView(id int64) (*DeityView, error)
	Create(d *Deity, responsibilities []string) error
	Update(d *Deity, responsibilities []string) error
	// ChangeStatus writes the status and, when history is non-nil, appends
	// the history row in the same transaction.
	ChangeStatus(id int64, status string, history *StatusHistory) error
	History(deityID int64) ([]*StatusHistory, error)
}

// DepartmentRegistry is implemented by the department repository.
type DepartmentRegistry interface {
	DepartmentsLedBy(deityID int64) ([]string, error)
	DepartmentExists(id int64) (bool, error)
}

// RankDirectory is implemented by the rank repository.
type RankDirectory interface {
	RankLevel(id int64) (int, error)
}

var ErrDeityNotFound = internal.NewNotFoundError("deity not found", internal.ErrCodeDeityNotFound)
