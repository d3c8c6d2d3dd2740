package deity

import (
	"log/slog"
	"strings"

	"github.com/tianting/celestial-court/internal"
)

// Service is the lifecycle manager. Status transitions, history writes and
// the leadership policy all live here; the repository persists decided state.
type Service struct {
	repo        RepositoryAPI
	departments DepartmentRegistry
	ranks       RankDirectory
	logger      *slog.Logger
}

func NewService(repo RepositoryAPI, departments DepartmentRegistry, ranks RankDirectory, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		departments: departments,
		ranks:       ranks,
		logger:      logger,
	}
}

// ListResult is the paginated list envelope.
type ListResult struct {
	Data     []*DeityView `json:"data"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

func (s *Service) List(params ListParams) (*ListResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.Status != "" && !ValidStatus(params.Status) {
		return nil, internal.NewValidationError("invalid status filter", internal.ErrCodeValidationFailed)
	}

	views, total, err := s.repo.List(params)
	if err != nil {
		s.logger.Error("failed to list deities", "error", err)
		return nil, err
	}

	return &ListResult{
		Data:     views,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}, nil
}

func (s *Service) Get(id int64) (*DeityView, error) {
	return s.repo.GetView(id)
}

func (s *Service) Create(dto CreateDeityDTO) (*DeityView, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	if _, err := s.ranks.RankLevel(dto.RankID); err != nil {
		return nil, err
	}
	if dto.DepartmentID != nil {
		exists, err := s.departments.DepartmentExists(*dto.DepartmentID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, internal.NewNotFoundError("department not found", internal.ErrCodeDepartmentNotFound)
		}
	}

	d := &Deity{
		Name:         strings.TrimSpace(dto.Name),
		Title:        strings.TrimSpace(dto.Title),
		DepartmentID: dto.DepartmentID,
		RankID:       dto.RankID,
		Status:       StatusActive,
	}

	if err := s.repo.Create(d, dto.Responsibilities); err != nil {
		s.logger.Error("failed to create deity", "error", err, "name", dto.Name)
		return nil, err
	}

	s.logger.Info("deity enrolled", "deity_id", d.ID, "name", d.Name, "rank_id", d.RankID)
	return s.repo.GetView(d.ID)
}

func (s *Service) Update(id int64, dto UpdateDeityDTO) (*DeityView, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	d, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if dto.Name != nil {
		d.Name = strings.TrimSpace(*dto.Name)
	}
	if dto.Title != nil {
		d.Title = strings.TrimSpace(*dto.Title)
	}
	if dto.RankID != nil {
		if _, err := s.ranks.RankLevel(*dto.RankID); err != nil {
			return nil, err
		}
		d.RankID = *dto.RankID
	}
	if dto.ClearDepartment {
		d.DepartmentID = nil
	} else if dto.DepartmentID != nil {
		exists, err := s.departments.DepartmentExists(*dto.DepartmentID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, internal.NewNotFoundError("department not found", internal.ErrCodeDepartmentNotFound)
		}
		d.DepartmentID = dto.DepartmentID
	}

	var responsibilities []string
	if dto.Responsibilities != nil {
		responsibilities = *dto.Responsibilities
	}

	if err := s.repo.Update(d, responsibilities); err != nil {
		s.logger.Error("failed to update deity", "error", err, "deity_id", id)
		return nil, err
	}

	return s.repo.GetView(id)
}

// ChangeStatus drives the lifecycle state machine. A deity who still leads a
// department cannot leave active; transitions into a punitive status append
// exactly one history row in the same transaction as the status write.
func (s *Service) ChangeStatus(id int64, dto ChangeStatusDTO) (*DeityView, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	d, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	// Re-blacklisting is an idempotent no-op, no second history row
	if d.Status == StatusBlacklisted && dto.Status == StatusBlacklisted {
		return s.repo.GetView(id)
	}

	if !CanTransition(d.Status, dto.Status) {
		s.logger.Warn("rejected status transition",
			"deity_id", id,
			"from", d.Status,
			"to", dto.Status)
		return nil, internal.NewUnprocessableError("status transition not allowed", internal.ErrCodeInvalidTransition)
	}

	if d.Status == StatusActive && dto.Status != StatusActive {
		led, err := s.departments.DepartmentsLedBy(id)
		if err != nil {
			return nil, err
		}
		if len(led) > 0 {
			s.logger.Warn("rejected status change for acting leader",
				"deity_id", id,
				"departments", led)
			return nil, internal.NewUnprocessableError(
				"deity still leads departments: "+strings.Join(led, ", "),
				internal.ErrCodeLeaderAssigned)
		}
	}

	var history *StatusHistory
	if IsPunitive(dto.Status) {
		history = &StatusHistory{
			DeityID:    id,
			FromStatus: d.Status,
			ToStatus:   dto.Status,
			Reason:     dto.Reason,
		}
	}

	if err := s.repo.ChangeStatus(id, dto.Status, history); err != nil {
		s.logger.Error("failed to change deity status", "error", err, "deity_id", id)
		return nil, err
	}

	s.logger.Info("deity status changed",
		"deity_id", id,
		"from", d.Status,
		"to", dto.Status)
	return s.repo.GetView(id)
}

func (s *Service) History(id int64) ([]*StatusHistory, error) {
	if _, err := s.repo.GetByID(id); err != nil {
		return nil, err
	}
	return s.repo.History(id)
}
