package deity

import (
	"errors"
	"net/url"
	"strconv"
)

type CreateDeityDTO struct {
	Name             string   `json:"name"`
	Title            string   `json:"title"`
	DepartmentID     *int64   `json:"department_id"`
	RankID           int64    `json:"rank_id"`
	Responsibilities []string `json:"responsibilities"`
}

func (d CreateDeityDTO) Validate() error {
	if d.Name == "" {
		return errors.New("name is required")
	}
	if d.RankID == 0 {
		return errors.New("rank_id is required")
	}
	return nil
}

type UpdateDeityDTO struct {
	Name             *string   `json:"name"`
	Title            *string   `json:"title"`
	DepartmentID     *int64    `json:"department_id"`
	ClearDepartment  bool      `json:"clear_department"`
	RankID           *int64    `json:"rank_id"`
	Responsibilities *[]string `json:"responsibilities"`
}

func (d UpdateDeityDTO) Validate() error {
	if d.Name != nil && *d.Name == "" {
		return errors.New("name cannot be empty")
	}
	if d.ClearDepartment && d.DepartmentID != nil {
		return errors.New("department_id and clear_department are mutually exclusive")
	}
	return nil
}

type ChangeStatusDTO struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (d ChangeStatusDTO) Validate() error {
	if !ValidStatus(d.Status) {
		return errors.New("status must be one of active, suspended, dismissed, blacklisted")
	}
	return nil
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// sortWhitelist maps accepted sort keys to ORDER BY columns. Anything else
// falls back to the default ordering.
var sortWhitelist = map[string]string{
	"name":       "deities.name",
	"created_at": "deities.created_at",
	"rank":       "ranks.level",
	"status":     "deities.status",
}

// ParseListParams reads filters, paging and sorting from a query string.
func ParseListParams(q url.Values) ListParams {
	params := ListParams{
		Keyword:  q.Get("keyword"),
		Status:   q.Get("status"),
		Page:     1,
		PageSize: defaultPageSize,
	}

	if v := q.Get("department_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.DepartmentID = &id
		}
	}
	if v := q.Get("rank_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.RankID = &id
		}
	}
	if v := q.Get("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil && page > 0 {
			params.Page = page
		}
	}
	if v := q.Get("page_size"); v != "" {
		if size, err := strconv.Atoi(v); err == nil && size > 0 {
			if size > maxPageSize {
				size = maxPageSize
			}
			params.PageSize = size
		}
	}
	if v := q.Get("sort_by"); v != "" {
		if _, ok := sortWhitelist[v]; ok {
			params.SortBy = v
		}
	}
	if v := q.Get("sort_order"); v == "asc" || v == "desc" {
		params.SortOrder = v
	}

	return params
}
