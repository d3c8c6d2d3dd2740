package department

import (
	"fmt"
	"sort"
	"time"

	"github.com/tianting/celestial-court/internal"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Department is a node in the organizational tree. Level is derived: roots
// are level 1, every child is parent.Level+1. MinRankID, when set, caps who
// may lead: a candidate's rank level must be numerically <= the minimum
// rank's level (lower level means more senior).
type Department struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Code        string    `json:"code" gorm:"uniqueIndex"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ParentID    *int64    `json:"parent_id" gorm:"column:parent_id"`
	Level       int       `json:"level"`
	LeaderID    *int64    `json:"leader_id" gorm:"column:leader_id"`
	MinRankID   *int64    `json:"min_rank_id" gorm:"column:min_rank_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Department) TableName() string {
	return "departments"
}

func (d *Department) IsActive() bool {
	return d.Status == StatusActive
}

// TreeNode is a department with its children attached, for the nested view.
type TreeNode struct {
	*Department
	Children []*TreeNode `json:"children"`
}

// LeaderCandidate is the slice of a deity the tree engine needs to decide
// leadership eligibility.
type LeaderCandidate struct {
	ID     int64
	Name   string
	Status string
	RankID int64
}

// DeityDirectory is implemented by the deity repository.
type DeityDirectory interface {
	LeaderCandidate(deityID int64) (*LeaderCandidate, error)
}

// RankDirectory is implemented by the rank repository.
type RankDirectory interface {
	RankLevel(id int64) (int, error)
}

type RepositoryAPI interface {
	List() ([]*Department, error)
	GetByID(id int64) (*Department, error)
	GetByCode(code string) (*Department, error)
	Create(d *Department) error
	Update(d *Department) error
	// Reparent moves a department and rewrites the levels of its whole
	// subtree in one transaction.
	Reparent(id int64, newParentID *int64, newLevels map[int64]int) error
	SetLeader(id int64, leaderID *int64) error
	SetStatus(id int64, status string) error
}

var ErrDepartmentNotFound = internal.NewNotFoundError("department not found", internal.ErrCodeDepartmentNotFound)

// BuildTree assembles the nested view from flat rows. Pure: no I/O, no
// mutation of the input structs. Ordering is deterministic (level, parent id,
// id). Rows pointing at a missing parent are excluded from the tree and
// reported as warnings, never silently dropped.
func BuildTree(flat []*Department) ([]*TreeNode, []string) {
	rows := make([]*Department, len(flat))
	copy(rows, flat)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Level != rows[j].Level {
			return rows[i].Level < rows[j].Level
		}
		pi, pj := parentOrZero(rows[i]), parentOrZero(rows[j])
		if pi != pj {
			return pi < pj
		}
		return rows[i].ID < rows[j].ID
	})

	nodes := make(map[int64]*TreeNode, len(rows))
	for _, row := range rows {
		nodes[row.ID] = &TreeNode{Department: row, Children: []*TreeNode{}}
	}

	var roots []*TreeNode
	var warnings []string
	for _, row := range rows {
		node := nodes[row.ID]
		if row.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*row.ParentID]
		if !ok {
			warnings = append(warnings, fmt.Sprintf(
				"department %d (%s) references missing parent %d", row.ID, row.Code, *row.ParentID))
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	return roots, warnings
}

// Flatten walks the tree depth-first and returns the rows in pre-order.
func Flatten(roots []*TreeNode) []*Department {
	var out []*Department
	var walk func(nodes []*TreeNode)
	walk = func(nodes []*TreeNode) {
		for _, n := range nodes {
			out = append(out, n.Department)
			walk(n.Children)
		}
	}
	walk(roots)
	return out
}

func parentOrZero(d *Department) int64 {
	if d.ParentID == nil {
		return 0
	}
	return *d.ParentID
}
