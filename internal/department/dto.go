package department

import "errors"

type CreateDepartmentDTO struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent_id"`
	MinRankID   *int64 `json:"min_rank_id"`
}

func (d CreateDepartmentDTO) Validate() error {
	if d.Code == "" {
		return errors.New("code is required")
	}
	if d.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type UpdateDepartmentDTO struct {
	Code        *string `json:"code"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ParentID    *int64  `json:"parent_id"`
	// ClearParent promotes the department to a root; ParentID alone cannot
	// distinguish "unchanged" from "remove parent".
	ClearParent bool   `json:"clear_parent"`
	MinRankID   *int64 `json:"min_rank_id"`
	ClearRank   bool   `json:"clear_min_rank"`
}

func (d UpdateDepartmentDTO) Validate() error {
	if d.Code != nil && *d.Code == "" {
		return errors.New("code cannot be empty")
	}
	if d.Name != nil && *d.Name == "" {
		return errors.New("name cannot be empty")
	}
	if d.ClearParent && d.ParentID != nil {
		return errors.New("parent_id and clear_parent are mutually exclusive")
	}
	return nil
}

type SetLeaderDTO struct {
	LeaderID *int64 `json:"leader_id"`
}

type SetStatusDTO struct {
	Status string `json:"status"`
}

func (d SetStatusDTO) Validate() error {
	if d.Status != StatusActive && d.Status != StatusInactive {
		return errors.New("status must be active or inactive")
	}
	return nil
}
