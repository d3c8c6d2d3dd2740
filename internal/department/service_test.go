package department

import (
	"log/slog"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/tianting/celestial-court/internal"
)

func TestDepartment(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Department Module Suite")
}

func ptr(v int64) *int64 { return &v }

// Mock DepartmentRepository for testing
type mockDepartmentRepository struct {
	rows   map[int64]*Department
	nextID int64
}

func newMockDepartmentRepository() *mockDepartmentRepository {
	// heaven(1) -> thunder(2) -> inspection(3); heaven -> treasury(4)
	m := &mockDepartmentRepository{rows: map[int64]*Department{}, nextID: 5}
	m.rows[1] = &Department{ID: 1, Code: "HEAVEN", Name: "Heavenly Court", Level: 1, Status: StatusActive}
	m.rows[2] = &Department{ID: 2, Code: "THUNDER", Name: "Thunder Bureau", ParentID: ptr(1), Level: 2, Status: StatusActive, MinRankID: ptr(2)}
	m.rows[3] = &Department{ID: 3, Code: "INSPECT", Name: "Inspection Division", ParentID: ptr(2), Level: 3, Status: StatusActive}
	m.rows[4] = &Department{ID: 4, Code: "TREASURY", Name: "Celestial Treasury", ParentID: ptr(1), Level: 2, Status: StatusActive}
	return m
}

func (m *mockDepartmentRepository) List() ([]*Department, error) {
	var out []*Department
	for id := int64(1); id < m.nextID; id++ {
		if row, ok := m.rows[id]; ok {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockDepartmentRepository) GetByID(id int64) (*Department, error) {
	if row, ok := m.rows[id]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, ErrDepartmentNotFound
}

func (m *mockDepartmentRepository) GetByCode(code string) (*Department, error) {
	for _, row := range m.rows {
		if row.Code == code {
			copied := *row
			return &copied, nil
		}
	}
	return nil, ErrDepartmentNotFound
}

func (m *mockDepartmentRepository) Create(d *Department) error {
	d.ID = m.nextID
	m.nextID++
	copied := *d
	m.rows[d.ID] = &copied
	return nil
}

func (m *mockDepartmentRepository) Update(d *Department) error {
	copied := *d
	m.rows[d.ID] = &copied
	return nil
}

func (m *mockDepartmentRepository) Reparent(id int64, newParentID *int64, newLevels map[int64]int) error {
	m.rows[id].ParentID = newParentID
	for deptID, level := range newLevels {
		m.rows[deptID].Level = level
	}
	return nil
}

func (m *mockDepartmentRepository) SetLeader(id int64, leaderID *int64) error {
	m.rows[id].LeaderID = leaderID
	return nil
}

func (m *mockDepartmentRepository) SetStatus(id int64, status string) error {
	m.rows[id].Status = status
	return nil
}

// Mock DeityDirectory for testing
type mockDeityDirectory struct {
	candidates map[int64]*LeaderCandidate
}

func newMockDeityDirectory() *mockDeityDirectory {
	return &mockDeityDirectory{
		candidates: map[int64]*LeaderCandidate{
			// rank 1 = S, rank 2 = A, rank 3 = B
			10: {ID: 10, Name: "Lei Gong", Status: StatusActive, RankID: 1},
			11: {ID: 11, Name: "Dian Mu", Status: StatusActive, RankID: 3},
			12: {ID: 12, Name: "Yang Jian", Status: "suspended", RankID: 1},
		},
	}
}

func (m *mockDeityDirectory) LeaderCandidate(deityID int64) (*LeaderCandidate, error) {
	if c, ok := m.candidates[deityID]; ok {
		return c, nil
	}
	return nil, internal.NewNotFoundError("deity not found", internal.ErrCodeDeityNotFound)
}

// Mock RankDirectory for testing
type mockRankDirectory struct {
	levels map[int64]int
}

func newMockRankDirectory() *mockRankDirectory {
	return &mockRankDirectory{levels: map[int64]int{1: 1, 2: 2, 3: 3, 4: 4}}
}

func (m *mockRankDirectory) RankLevel(id int64) (int, error) {
	if level, ok := m.levels[id]; ok {
		return level, nil
	}
	return 0, internal.NewNotFoundError("rank not found", internal.ErrCodeRankNotFound)
}

func expectCode(err error, code internal.ErrorCode) {
	ginkgo.GinkgoHelper()
	gomega.Expect(err).To(gomega.HaveOccurred())
	appErr, ok := internal.IsAppError(err)
	gomega.Expect(ok).To(gomega.BeTrue())
	gomega.Expect(appErr.Code).To(gomega.Equal(code))
}

var _ = ginkgo.Describe("BuildTree", func() {
	ginkgo.Context("with consistent rows", func() {
		ginkgo.It("should nest children under parents deterministically", func() {
			// Given
			flat := []*Department{
				{ID: 3, Code: "C", Name: "Inspection", ParentID: ptr(2), Level: 3},
				{ID: 1, Code: "A", Name: "Court", Level: 1},
				{ID: 4, Code: "D", Name: "Treasury", ParentID: ptr(1), Level: 2},
				{ID: 2, Code: "B", Name: "Thunder", ParentID: ptr(1), Level: 2},
			}

			// When
			roots, warnings := BuildTree(flat)

			// Then
			gomega.Expect(warnings).To(gomega.BeEmpty())
			gomega.Expect(roots).To(gomega.HaveLen(1))
			gomega.Expect(roots[0].ID).To(gomega.Equal(int64(1)))
			gomega.Expect(roots[0].Children).To(gomega.HaveLen(2))
			gomega.Expect(roots[0].Children[0].ID).To(gomega.Equal(int64(2)))
			gomega.Expect(roots[0].Children[1].ID).To(gomega.Equal(int64(4)))
			gomega.Expect(roots[0].Children[0].Children[0].ID).To(gomega.Equal(int64(3)))
		})

		ginkgo.It("should round-trip through Flatten", func() {
			// Given
			flat := []*Department{
				{ID: 1, Code: "A", Name: "Court", Level: 1},
				{ID: 2, Code: "B", Name: "Thunder", ParentID: ptr(1), Level: 2},
				{ID: 3, Code: "C", Name: "Inspection", ParentID: ptr(2), Level: 3},
				{ID: 4, Code: "D", Name: "Treasury", ParentID: ptr(1), Level: 2},
			}

			// When
			roots, _ := BuildTree(flat)
			back := Flatten(roots)

			// Then: same set of ids, no duplicates
			ids := map[int64]int{}
			for _, d := range back {
				ids[d.ID]++
			}
			gomega.Expect(back).To(gomega.HaveLen(4))
			for _, d := range flat {
				gomega.Expect(ids[d.ID]).To(gomega.Equal(1))
			}
		})
	})

	ginkgo.Context("with an orphaned row", func() {
		ginkgo.It("should surface a warning instead of dropping it silently", func() {
			// Given a row pointing at a parent that is gone
			flat := []*Department{
				{ID: 1, Code: "A", Name: "Court", Level: 1},
				{ID: 7, Code: "GHOST", Name: "Ghost Office", ParentID: ptr(99), Level: 2},
			}

			// When
			roots, warnings := BuildTree(flat)

			// Then
			gomega.Expect(roots).To(gomega.HaveLen(1))
			gomega.Expect(warnings).To(gomega.HaveLen(1))
			gomega.Expect(warnings[0]).To(gomega.ContainSubstring("missing parent 99"))
		})
	})

	ginkgo.Context("with no rows", func() {
		ginkgo.It("should return an empty forest", func() {
			roots, warnings := BuildTree(nil)
			gomega.Expect(roots).To(gomega.BeEmpty())
			gomega.Expect(warnings).To(gomega.BeEmpty())
		})
	})
})

var _ = ginkgo.Describe("DepartmentService", func() {
	var (
		service  *Service
		mockRepo *mockDepartmentRepository
		deities  *mockDeityDirectory
		ranks    *mockRankDirectory
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockDepartmentRepository()
		deities = newMockDeityDirectory()
		ranks = newMockRankDirectory()
		service = NewService(mockRepo, deities, ranks, slog.Default())
	})

	ginkgo.Describe("Create", func() {
		ginkgo.It("should derive level from the parent", func() {
			// When
			dept, err := service.Create(CreateDepartmentDTO{Code: "RAIN", Name: "Rain Office", ParentID: ptr(2)})

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(dept.Level).To(gomega.Equal(3))
			gomega.Expect(dept.Status).To(gomega.Equal(StatusActive))
		})

		ginkgo.It("should create roots at level 1", func() {
			dept, err := service.Create(CreateDepartmentDTO{Code: "UNDERWORLD", Name: "Underworld Liaison"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(dept.Level).To(gomega.Equal(1))
			gomega.Expect(dept.ParentID).To(gomega.BeNil())
		})

		ginkgo.It("should reject a duplicate code", func() {
			_, err := service.Create(CreateDepartmentDTO{Code: "THUNDER", Name: "Thunder Again"})
			expectCode(err, internal.ErrCodeConflict)
		})

		ginkgo.It("should reject a missing parent", func() {
			_, err := service.Create(CreateDepartmentDTO{Code: "LOST", Name: "Lost Office", ParentID: ptr(999)})
			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("should reject an unknown minimum rank", func() {
			_, err := service.Create(CreateDepartmentDTO{Code: "NEW", Name: "New Office", MinRankID: ptr(99)})
			expectCode(err, internal.ErrCodeRankNotFound)
		})
	})

	ginkgo.Describe("Update with reparenting", func() {
		ginkgo.Context("when moving to a valid parent", func() {
			ginkgo.It("should recompute the subtree levels", func() {
				// Given thunder(2) with child inspection(3) moves under treasury(4)
				dept, err := service.Update(2, UpdateDepartmentDTO{ParentID: ptr(4)})

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(*dept.ParentID).To(gomega.Equal(int64(4)))
				gomega.Expect(dept.Level).To(gomega.Equal(3))

				child, err := service.GetByID(3)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(child.Level).To(gomega.Equal(4))
			})

			ginkgo.It("should promote to root when clearing the parent", func() {
				// When
				dept, err := service.Update(3, UpdateDepartmentDTO{ClearParent: true})

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(dept.ParentID).To(gomega.BeNil())
				gomega.Expect(dept.Level).To(gomega.Equal(1))
			})
		})

		ginkgo.Context("when the move would create a cycle", func() {
			ginkgo.It("should reject moving under itself", func() {
				// When
				_, err := service.Update(2, UpdateDepartmentDTO{ParentID: ptr(2)})

				// Then
				expectCode(err, internal.ErrCodeCycleDetected)
			})

			ginkgo.It("should reject moving under a descendant and leave the tree unchanged", func() {
				// When: heaven(1) under inspection(3), which sits in heaven's subtree
				_, err := service.Update(1, UpdateDepartmentDTO{ParentID: ptr(3)})

				// Then
				expectCode(err, internal.ErrCodeCycleDetected)

				root, gerr := service.GetByID(1)
				gomega.Expect(gerr).ToNot(gomega.HaveOccurred())
				gomega.Expect(root.ParentID).To(gomega.BeNil())
				gomega.Expect(root.Level).To(gomega.Equal(1))
			})
		})
	})

	ginkgo.Describe("SetLeader", func() {
		ginkgo.Context("when the candidate outranks the minimum", func() {
			ginkgo.It("should assign the leader", func() {
				// Given thunder requires rank A (level 2); Lei Gong holds S (level 1)
				dept, err := service.SetLeader(2, SetLeaderDTO{LeaderID: ptr(10)})

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(*dept.LeaderID).To(gomega.Equal(int64(10)))
			})
		})

		ginkgo.Context("when the candidate's rank is too junior", func() {
			ginkgo.It("should return RANK_INSUFFICIENT", func() {
				// Given Dian Mu holds B (level 3) against minimum A (level 2)
				_, err := service.SetLeader(2, SetLeaderDTO{LeaderID: ptr(11)})

				// Then
				expectCode(err, internal.ErrCodeRankInsufficient)
			})
		})

		ginkgo.Context("when the candidate is not active", func() {
			ginkgo.It("should reject even a top-ranked deity", func() {
				// Given Yang Jian holds S but is suspended
				_, err := service.SetLeader(2, SetLeaderDTO{LeaderID: ptr(12)})

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
			})
		})

		ginkgo.Context("when the department has no minimum rank", func() {
			ginkgo.It("should accept any active deity", func() {
				dept, err := service.SetLeader(4, SetLeaderDTO{LeaderID: ptr(11)})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(*dept.LeaderID).To(gomega.Equal(int64(11)))
			})
		})

		ginkgo.It("should clear the leader with a nil id", func() {
			_, err := service.SetLeader(2, SetLeaderDTO{LeaderID: ptr(10)})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			dept, err := service.SetLeader(2, SetLeaderDTO{})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(dept.LeaderID).To(gomega.BeNil())
		})
	})

	ginkgo.Describe("SetStatus", func() {
		ginkgo.It("should deactivate unconditionally", func() {
			dept, err := service.SetStatus(1, SetStatusDTO{Status: StatusInactive})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(dept.Status).To(gomega.Equal(StatusInactive))
		})

		ginkgo.Context("when activating under an inactive ancestor", func() {
			ginkgo.It("should return INACTIVE_ANCESTOR", func() {
				// Given thunder(2) and inspection(3) both inactive
				_, err := service.SetStatus(2, SetStatusDTO{Status: StatusInactive})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				_, err = service.SetStatus(3, SetStatusDTO{Status: StatusInactive})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When reactivating the grandchild first
				_, err = service.SetStatus(3, SetStatusDTO{Status: StatusActive})

				// Then
				expectCode(err, internal.ErrCodeInactiveAncestor)
			})

			ginkgo.It("should allow activation once the ancestor chain is active", func() {
				_, err := service.SetStatus(2, SetStatusDTO{Status: StatusInactive})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				_, err = service.SetStatus(3, SetStatusDTO{Status: StatusInactive})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				_, err = service.SetStatus(2, SetStatusDTO{Status: StatusActive})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				dept, err := service.SetStatus(3, SetStatusDTO{Status: StatusActive})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(dept.Status).To(gomega.Equal(StatusActive))
			})
		})

		ginkgo.It("should treat a same-status request as a no-op", func() {
			dept, err := service.SetStatus(1, SetStatusDTO{Status: StatusActive})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(dept.Status).To(gomega.Equal(StatusActive))
		})

		ginkgo.It("should reject an unknown status value", func() {
			_, err := service.SetStatus(1, SetStatusDTO{Status: "frozen"})
			expectCode(err, internal.ErrCodeValidationFailed)
		})
	})

	ginkgo.Describe("Path", func() {
		ginkgo.It("should return root-first names with length equal to level", func() {
			// When
			path, err := service.Path(3)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(path).To(gomega.Equal([]string{"Heavenly Court", "Thunder Bureau", "Inspection Division"}))

			dept, _ := service.GetByID(3)
			gomega.Expect(path).To(gomega.HaveLen(dept.Level))
		})

		ginkgo.It("should return a single name for a root", func() {
			path, err := service.Path(1)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(path).To(gomega.Equal([]string{"Heavenly Court"}))
		})

		ginkgo.It("should return not found for an unknown id", func() {
			_, err := service.Path(999)
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})
})
