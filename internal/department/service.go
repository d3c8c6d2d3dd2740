package department

import (
	"log/slog"

	"github.com/tianting/celestial-court/internal"
)

// Service is the tree engine: it owns level derivation, reparent cycle
// checks, leadership eligibility and activation rules. Repositories only
// persist what the service already validated.
type Service struct {
	repo    RepositoryAPI
	deities DeityDirectory
	ranks   RankDirectory
	logger  *slog.Logger
}

func NewService(repo RepositoryAPI, deities DeityDirectory, ranks RankDirectory, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		deities: deities,
		ranks:   ranks,
		logger:  logger,
	}
}

func (s *Service) List() ([]*Department, error) {
	return s.repo.List()
}

func (s *Service) GetByID(id int64) (*Department, error) {
	return s.repo.GetByID(id)
}

// Tree returns the nested view plus integrity warnings for rows whose parent
// is missing.
func (s *Service) Tree() ([]*TreeNode, []string, error) {
	rows, err := s.repo.List()
	if err != nil {
		return nil, nil, err
	}

	roots, warnings := BuildTree(rows)
	for _, w := range warnings {
		s.logger.Warn("department tree integrity", "warning", w)
	}
	return roots, warnings, nil
}

// Path returns root-first ancestor names ending at the department itself.
// For consistent data its length equals the department's level.
func (s *Service) Path(id int64) ([]string, error) {
	rows, err := s.repo.List()
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*Department, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	current, ok := byID[id]
	if !ok {
		return nil, ErrDepartmentNotFound
	}

	var reversed []string
	for steps := 0; current != nil; steps++ {
		if steps > len(rows) {
			s.logger.Error("department path: parent chain does not terminate", "department_id", id)
			return nil, internal.NewInternalError("department hierarchy is inconsistent", nil).
				WithDetails(map[string]string{"code": string(internal.ErrCodeDataIntegrity)})
		}
		reversed = append(reversed, current.Name)
		if current.ParentID == nil {
			break
		}
		current = byID[*current.ParentID]
	}

	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path, nil
}

func (s *Service) Create(dto CreateDepartmentDTO) (*Department, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	if existing, err := s.repo.GetByCode(dto.Code); err == nil && existing != nil {
		return nil, internal.NewConflictError("department code already exists", internal.ErrCodeConflict)
	}

	level := 1
	if dto.ParentID != nil {
		parent, err := s.repo.GetByID(*dto.ParentID)
		if err != nil {
			return nil, err
		}
		level = parent.Level + 1
	}

	if dto.MinRankID != nil {
		if _, err := s.ranks.RankLevel(*dto.MinRankID); err != nil {
			return nil, err
		}
	}

	dept := &Department{
		Code:        dto.Code,
		Name:        dto.Name,
		Description: dto.Description,
		ParentID:    dto.ParentID,
		Level:       level,
		MinRankID:   dto.MinRankID,
		Status:      StatusActive,
	}

	if err := s.repo.Create(dept); err != nil {
		s.logger.Error("failed to create department", "error", err, "code", dto.Code)
		return nil, err
	}

	s.logger.Info("department created", "department_id", dept.ID, "code", dept.Code, "level", dept.Level)
	return dept, nil
}

func (s *Service) Update(id int64, dto UpdateDepartmentDTO) (*Department, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	dept, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if dto.Code != nil && *dto.Code != dept.Code {
		if existing, gerr := s.repo.GetByCode(*dto.Code); gerr == nil && existing != nil && existing.ID != id {
			return nil, internal.NewConflictError("department code already exists", internal.ErrCodeConflict)
		}
		dept.Code = *dto.Code
	}
	if dto.Name != nil {
		dept.Name = *dto.Name
	}
	if dto.Description != nil {
		dept.Description = *dto.Description
	}
	if dto.ClearRank {
		dept.MinRankID = nil
	} else if dto.MinRankID != nil {
		if _, err := s.ranks.RankLevel(*dto.MinRankID); err != nil {
			return nil, err
		}
		dept.MinRankID = dto.MinRankID
	}

	if dto.ClearParent || dto.ParentID != nil {
		var newParentID *int64
		if !dto.ClearParent {
			newParentID = dto.ParentID
		}
		if err := s.reparent(dept, newParentID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(dept); err != nil {
		s.logger.Error("failed to update department", "error", err, "department_id", id)
		return nil, err
	}

	return s.repo.GetByID(id)
}

// reparent validates the move and rewrites subtree levels in one repository
// transaction. The target may not be the department itself or anything in
// its subtree.
func (s *Service) reparent(dept *Department, newParentID *int64) error {
	if sameParent(dept.ParentID, newParentID) {
		return nil
	}

	rows, err := s.repo.List()
	if err != nil {
		return err
	}
	subtree := subtreeIDs(rows, dept.ID)

	newLevel := 1
	if newParentID != nil {
		if *newParentID == dept.ID {
			return internal.NewUnprocessableError("department cannot be its own parent", internal.ErrCodeCycleDetected)
		}

		parent, err := s.repo.GetByID(*newParentID)
		if err != nil {
			return err
		}
		if subtree[parent.ID] {
			return internal.NewUnprocessableError("cannot move department under its own descendant", internal.ErrCodeCycleDetected)
		}
		newLevel = parent.Level + 1
	}

	delta := newLevel - dept.Level
	newLevels := make(map[int64]int, len(subtree))
	for _, row := range rows {
		if subtree[row.ID] {
			newLevels[row.ID] = row.Level + delta
		}
	}
	newLevels[dept.ID] = newLevel

	if err := s.repo.Reparent(dept.ID, newParentID, newLevels); err != nil {
		s.logger.Error("failed to reparent department", "error", err, "department_id", dept.ID)
		return err
	}

	dept.ParentID = newParentID
	dept.Level = newLevel
	s.logger.Info("department reparented",
		"department_id", dept.ID,
		"new_parent_id", newParentID,
		"new_level", newLevel,
		"subtree_size", len(newLevels))
	return nil
}

// SetLeader assigns or clears the department leader. A candidate must be an
// active deity whose rank is at least as senior as the department's minimum.
func (s *Service) SetLeader(id int64, dto SetLeaderDTO) (*Department, error) {
	dept, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if dto.LeaderID == nil {
		if err := s.repo.SetLeader(id, nil); err != nil {
			return nil, err
		}
		return s.repo.GetByID(id)
	}

	candidate, err := s.deities.LeaderCandidate(*dto.LeaderID)
	if err != nil {
		return nil, err
	}

	if candidate.Status != StatusActive {
		return nil, internal.NewValidationError("leader must be an active deity", internal.ErrCodeValidationFailed)
	}

	if dept.MinRankID != nil {
		minLevel, err := s.ranks.RankLevel(*dept.MinRankID)
		if err != nil {
			return nil, err
		}
		candidateLevel, err := s.ranks.RankLevel(candidate.RankID)
		if err != nil {
			return nil, err
		}
		// Lower level outranks higher level
		if candidateLevel > minLevel {
			s.logger.Warn("leader candidate below minimum rank",
				"department_id", id,
				"deity_id", candidate.ID,
				"candidate_level", candidateLevel,
				"min_level", minLevel)
			return nil, internal.NewUnprocessableError("deity rank is below the department minimum", internal.ErrCodeRankInsufficient)
		}
	}

	if err := s.repo.SetLeader(id, dto.LeaderID); err != nil {
		s.logger.Error("failed to set department leader", "error", err, "department_id", id)
		return nil, err
	}

	s.logger.Info("department leader assigned", "department_id", id, "deity_id", candidate.ID)
	return s.repo.GetByID(id)
}

// SetStatus toggles a department. Deactivation is unconditional; activation
// is rejected while any ancestor is inactive, so a re-activated subtree never
// dangles from a disabled branch.
func (s *Service) SetStatus(id int64, dto SetStatusDTO) (*Department, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	dept, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if dept.Status == dto.Status {
		return dept, nil
	}

	if dto.Status == StatusActive {
		rows, err := s.repo.List()
		if err != nil {
			return nil, err
		}
		byID := make(map[int64]*Department, len(rows))
		for _, row := range rows {
			byID[row.ID] = row
		}
		for parentID := dept.ParentID; parentID != nil; {
			parent, ok := byID[*parentID]
			if !ok {
				break
			}
			if !parent.IsActive() {
				return nil, internal.NewUnprocessableError("cannot activate under an inactive ancestor", internal.ErrCodeInactiveAncestor)
			}
			parentID = parent.ParentID
		}
	}

	if err := s.repo.SetStatus(id, dto.Status); err != nil {
		s.logger.Error("failed to set department status", "error", err, "department_id", id)
		return nil, err
	}

	s.logger.Info("department status changed", "department_id", id, "status", dto.Status)
	return s.repo.GetByID(id)
}

// subtreeIDs returns every id in the subtree rooted at rootID, the root
// itself included.
func subtreeIDs(rows []*Department, rootID int64) map[int64]bool {
	children := make(map[int64][]int64)
	for _, row := range rows {
		if row.ParentID != nil {
			children[*row.ParentID] = append(children[*row.ParentID], row.ID)
		}
	}

	ids := map[int64]bool{rootID: true}
	stack := []int64{rootID}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, childID := range children[current] {
			if !ids[childID] {
				ids[childID] = true
				stack = append(stack, childID)
			}
		}
	}
	return ids
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
