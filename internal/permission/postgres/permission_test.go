package postgres_test

import (
	"testing"
	"time"

	"github.com/tianting/celestial-court/internal/permission"
	permissionPostgres "github.com/tianting/celestial-court/internal/permission/postgres"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestPermissionPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Permission Postgres Suite")
}

// SQLite-compatible models for testing; the production defaults use now()
// which SQLite does not accept.
type sqlitePermission struct {
	ID          int64  `gorm:"primaryKey"`
	Code        string `gorm:"uniqueIndex;not null"`
	Name        string `gorm:"not null"`
	Description string
	Type        string `gorm:"not null"`
	ParentID    *int64 `gorm:"column:parent_id"`
	CreatedAt   time.Time
}

func (sqlitePermission) TableName() string { return "permissions" }

type sqliteRole struct {
	ID          int64  `gorm:"primaryKey"`
	Code        string `gorm:"uniqueIndex;not null"`
	Name        string `gorm:"not null"`
	Description string
	Level       int
	CreatedAt   time.Time
}

func (sqliteRole) TableName() string { return "roles" }

type sqliteRolePermission struct {
	RoleID       int64 `gorm:"column:role_id;primaryKey"`
	PermissionID int64 `gorm:"column:permission_id;primaryKey"`
}

func (sqliteRolePermission) TableName() string { return "role_permissions" }

var _ = Describe("Permission PostgreSQL Repository", func() {
	var (
		db   *gorm.DB
		repo permission.RepositoryAPI

		menuID, createOpID, editOpID int64
		adminRoleID                  int64
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&sqlitePermission{}, &sqliteRole{}, &sqliteRolePermission{})
		Expect(err).NotTo(HaveOccurred())

		repo = permissionPostgres.NewPermissionRepository(db)

		menu := sqlitePermission{Code: "deities", Name: "Deity Roster", Type: permission.TypeMenu}
		Expect(db.Create(&menu).Error).To(Succeed())
		menuID = menu.ID

		createOp := sqlitePermission{Code: "deity:create", Name: "Enroll Deity", Type: permission.TypeOperation, ParentID: &menuID}
		Expect(db.Create(&createOp).Error).To(Succeed())
		createOpID = createOp.ID

		editOp := sqlitePermission{Code: "deity:edit", Name: "Edit Deity", Type: permission.TypeOperation, ParentID: &menuID}
		Expect(db.Create(&editOp).Error).To(Succeed())
		editOpID = editOp.ID

		admin := sqliteRole{Code: "admin", Name: "Administrator", Level: 1}
		Expect(db.Create(&admin).Error).To(Succeed())
		adminRoleID = admin.ID

		Expect(db.Create(&sqliteRolePermission{RoleID: adminRoleID, PermissionID: menuID}).Error).To(Succeed())
		Expect(db.Create(&sqliteRolePermission{RoleID: adminRoleID, PermissionID: createOpID}).Error).To(Succeed())
	})

	Describe("ListPermissions", func() {
		It("should return the catalog ordered by id with parent linkage", func() {
			perms, err := repo.ListPermissions()
			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(HaveLen(3))
			Expect(perms[0].Code).To(Equal("deities"))
			Expect(perms[1].ParentID).To(HaveValue(Equal(menuID)))
		})
	})

	Describe("ListRoles", func() {
		It("should populate each role's permission ids", func() {
			roles, err := repo.ListRoles()
			Expect(err).NotTo(HaveOccurred())
			Expect(roles).To(HaveLen(1))
			Expect(roles[0].PermissionIDs).To(ConsistOf(menuID, createOpID))
		})
	})

	Describe("GetRoleByID", func() {
		It("should load grants with the role", func() {
			role, err := repo.GetRoleByID(adminRoleID)
			Expect(err).NotTo(HaveOccurred())
			Expect(role.Code).To(Equal("admin"))
			Expect(role.PermissionIDs).To(ConsistOf(menuID, createOpID))
		})

		It("should return the not-found error for unknown roles", func() {
			_, err := repo.GetRoleByID(999)
			Expect(err).To(Equal(permission.ErrRoleNotFound))
		})
	})

	Describe("ReplaceRolePermissions", func() {
		It("should swap the grant set", func() {
			err := repo.ReplaceRolePermissions(adminRoleID, []int64{editOpID})
			Expect(err).NotTo(HaveOccurred())

			role, err := repo.GetRoleByID(adminRoleID)
			Expect(err).NotTo(HaveOccurred())
			Expect(role.PermissionIDs).To(ConsistOf(editOpID))
		})

		It("should revoke everything when given an empty set", func() {
			err := repo.ReplaceRolePermissions(adminRoleID, []int64{})
			Expect(err).NotTo(HaveOccurred())

			role, err := repo.GetRoleByID(adminRoleID)
			Expect(err).NotTo(HaveOccurred())
			Expect(role.PermissionIDs).To(BeEmpty())
		})
	})

	Describe("UpdatePermission", func() {
		It("should change display fields and nothing else", func() {
			perm, err := repo.GetPermissionByID(menuID)
			Expect(err).NotTo(HaveOccurred())

			perm.Name = "Roster"
			perm.Description = "roster administration"
			Expect(repo.UpdatePermission(perm)).To(Succeed())

			got, err := repo.GetPermissionByID(menuID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Roster"))
			Expect(got.Description).To(Equal("roster administration"))
			Expect(got.Code).To(Equal("deities"))
			Expect(got.Type).To(Equal(permission.TypeMenu))
		})

		It("should return the not-found error for unknown permissions", func() {
			_, err := repo.GetPermissionByID(999)
			Expect(err).To(Equal(permission.ErrPermissionNotFound))
		})
	})
})
