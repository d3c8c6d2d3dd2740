package rank

import "log/slog"

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// List returns all ranks ordered by level, most senior first.
func (s *Service) List() ([]*Rank, error) {
	ranks, err := s.repo.List()
	if err != nil {
		s.logger.Error("failed to list ranks", "error", err)
		return nil, err
	}
	return ranks, nil
}

func (s *Service) GetByID(id int64) (*Rank, error) {
	r, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return r, nil
}
