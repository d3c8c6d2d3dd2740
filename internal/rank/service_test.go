package rank

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func TestRank(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Rank Module Suite")
}

// Mock RankRepository for testing
type mockRankRepository struct {
	ranks       []*Rank
	returnError bool
}

func newMockRankRepository() *mockRankRepository {
	return &mockRankRepository{
		ranks: []*Rank{
			{ID: 1, Code: "S", Name: "Great Golden Immortal", Level: 1},
			{ID: 2, Code: "A", Name: "Golden Immortal", Level: 2},
			{ID: 3, Code: "B", Name: "Mysterious Immortal", Level: 3},
			{ID: 4, Code: "C", Name: "Earth Immortal", Level: 4},
		},
	}
}

func (m *mockRankRepository) List() ([]*Rank, error) {
	if m.returnError {
		return nil, errors.New("database error")
	}
	return m.ranks, nil
}

func (m *mockRankRepository) GetByID(id int64) (*Rank, error) {
	if m.returnError {
		return nil, errors.New("database error")
	}
	for _, r := range m.ranks {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ErrRankNotFound
}

var _ = ginkgo.Describe("RankService", func() {
	var (
		mockRepo *mockRankRepository
		service  *Service
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockRankRepository()
		service = NewService(mockRepo, slog.Default())
	})

	ginkgo.Describe("List", func() {
		ginkgo.It("should return the catalog most senior first", func() {
			// When: listing the rank catalog
			ranks, err := service.List()

			// Then: four ranks come back in level order
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(ranks).To(gomega.HaveLen(4))
			gomega.Expect(ranks[0].Code).To(gomega.Equal("S"))
			gomega.Expect(ranks[3].Code).To(gomega.Equal("C"))
		})

		ginkgo.It("should propagate repository errors", func() {
			mockRepo.returnError = true

			_, err := service.List()
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("GetByID", func() {
		ginkgo.It("should return the rank", func() {
			r, err := service.GetByID(2)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(r.Code).To(gomega.Equal("A"))
		})

		ginkgo.It("should return not found for unknown ids", func() {
			_, err := service.GetByID(99)
			gomega.Expect(err).To(gomega.Equal(ErrRankNotFound))
		})
	})
})

var _ = ginkgo.Describe("Rank", func() {
	ginkgo.Describe("Display", func() {
		ginkgo.It("should render name with code", func() {
			r := &Rank{Code: "A", Name: "Golden Immortal", Level: 2}
			gomega.Expect(r.Display()).To(gomega.Equal("Golden Immortal (A)"))
		})
	})

	ginkgo.Describe("OutranksOrEquals", func() {
		ginkgo.It("should treat a lower level as more senior", func() {
			s := &Rank{Code: "S", Level: 1}
			c := &Rank{Code: "C", Level: 4}

			gomega.Expect(s.OutranksOrEquals(c)).To(gomega.BeTrue())
			gomega.Expect(c.OutranksOrEquals(s)).To(gomega.BeFalse())
			gomega.Expect(s.OutranksOrEquals(s)).To(gomega.BeTrue())
		})
	})
})
