package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with the bootstrap catalog",
	Long:  `Seed ranks, the permission catalog, roles, console users and a sample roster for development and testing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		if clearData {
			clearAll(db)
		}

		seedRanks(db)
		seedPermissions(db)
		seedRoles(db)
		seedUsers(db, cfg.Security.BCryptCost)
		seedDepartments(db)
		seedDeities(db)

		fmt.Println("Seeding complete")
	},
}

func clearAll(db *gorm.DB) {
	// Children before parents
	tables := []string{
		"deity_status_history",
		"deity_responsibilities",
		"user_roles",
		"role_permissions",
		"users",
		"departments",
		"deities",
		"roles",
		"permissions",
		"ranks",
	}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			log.Fatalf("failed to clear %s: %v", table, err)
		}
	}
	fmt.Println("Cleared existing data")
}

func seedRanks(db *gorm.DB) {
	ranks := []struct {
		Code  string
		Name  string
		Level int
		Desc  string
	}{
		{"S", "Great Golden Immortal", 1, "Highest celestial rank"},
		{"A", "Golden Immortal", 2, "Senior celestial rank"},
		{"B", "Mysterious Immortal", 3, "Middle celestial rank"},
		{"C", "Earth Immortal", 4, "Entry celestial rank"},
	}

	for _, r := range ranks {
		var id int64
		row := db.Raw("SELECT id FROM ranks WHERE code = ?", r.Code).Row()
		if err := row.Scan(&id); err == nil {
			continue
		}
		if err := db.Exec(
			"INSERT INTO ranks (code, name, level, description, created_at) VALUES (?, ?, ?, ?, now())",
			r.Code, r.Name, r.Level, r.Desc).Error; err != nil {
			log.Fatalf("failed to insert rank %s: %v", r.Code, err)
		}
		fmt.Println("Seeded rank:", r.Code)
	}
}

func permissionID(db *gorm.DB, code string) int64 {
	var id int64
	row := db.Raw("SELECT id FROM permissions WHERE code = ?", code).Row()
	if err := row.Scan(&id); err != nil {
		log.Fatalf("permission %s not found after seeding: %v", code, err)
	}
	return id
}

func seedPermissions(db *gorm.DB) {
	menus := []struct {
		Code string
		Name string
	}{
		{"dashboard", "Dashboard"},
		{"deities", "Deity Roster"},
		{"departments", "Departments"},
		{"permissions", "Access Control"},
	}

	for _, m := range menus {
		var id int64
		row := db.Raw("SELECT id FROM permissions WHERE code = ?", m.Code).Row()
		if err := row.Scan(&id); err == nil {
			continue
		}
		if err := db.Exec(
			"INSERT INTO permissions (code, name, type, created_at) VALUES (?, ?, 'menu', now())",
			m.Code, m.Name).Error; err != nil {
			log.Fatalf("failed to insert menu permission %s: %v", m.Code, err)
		}
		fmt.Println("Seeded menu permission:", m.Code)
	}

	operations := []struct {
		Code   string
		Name   string
		Parent string
	}{
		{"deity:create", "Enroll Deity", "deities"},
		{"deity:edit", "Edit Deity", "deities"},
		{"deity:status", "Change Deity Status", "deities"},
		{"department:create", "Create Department", "departments"},
		{"department:edit", "Edit Department", "departments"},
		{"department:status", "Change Department Status", "departments"},
		{"permission:edit", "Edit Permission", "permissions"},
		{"role:edit", "Edit Role", "permissions"},
	}

	for _, op := range operations {
		var id int64
		row := db.Raw("SELECT id FROM permissions WHERE code = ?", op.Code).Row()
		if err := row.Scan(&id); err == nil {
			continue
		}
		parentID := permissionID(db, op.Parent)
		if err := db.Exec(
			"INSERT INTO permissions (code, name, type, parent_id, created_at) VALUES (?, ?, 'operation', ?, now())",
			op.Code, op.Name, parentID).Error; err != nil {
			log.Fatalf("failed to insert operation permission %s: %v", op.Code, err)
		}
		fmt.Println("Seeded operation permission:", op.Code)
	}
}

func seedRoles(db *gorm.DB) {
	roles := []struct {
		Code  string
		Name  string
		Level int
		Perms []string
	}{
		{"admin", "Administrator", 1, []string{
			"dashboard", "deities", "departments", "permissions",
			"deity:create", "deity:edit", "deity:status",
			"department:create", "department:edit", "department:status",
			"permission:edit", "role:edit",
		}},
		{"manager", "Manager", 2, []string{
			"dashboard", "deities", "departments",
			"deity:edit", "department:edit",
		}},
		{"user", "User", 3, []string{"dashboard"}},
	}

	for _, r := range roles {
		var roleID int64
		row := db.Raw("SELECT id FROM roles WHERE code = ?", r.Code).Row()
		if err := row.Scan(&roleID); err != nil {
			if err := db.Exec(
				"INSERT INTO roles (code, name, level, created_at) VALUES (?, ?, ?, now())",
				r.Code, r.Name, r.Level).Error; err != nil {
				log.Fatalf("failed to insert role %s: %v", r.Code, err)
			}
			row = db.Raw("SELECT id FROM roles WHERE code = ?", r.Code).Row()
			if err := row.Scan(&roleID); err != nil {
				log.Fatalf("role %s not found after insert: %v", r.Code, err)
			}
			fmt.Println("Seeded role:", r.Code)
		}

		for _, code := range r.Perms {
			permID := permissionID(db, code)
			var exists int
			row := db.Raw(
				"SELECT 1 FROM role_permissions WHERE role_id = ? AND permission_id = ?",
				roleID, permID).Row()
			if err := row.Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec(
				"INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?)",
				roleID, permID).Error; err != nil {
				log.Fatalf("failed to grant %s to %s: %v", code, r.Code, err)
			}
		}
	}
}

func seedUsers(db *gorm.DB, bcryptCost int) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcryptCost)
	if err != nil {
		log.Fatalf("failed to hash seed password: %v", err)
	}

	users := []struct {
		Username string
		Role     string
	}{
		{"admin", "admin"},
		{"manager", "manager"},
		{"user", "user"},
	}

	for _, u := range users {
		var userID int64
		row := db.Raw("SELECT id FROM users WHERE username = ?", u.Username).Row()
		if err := row.Scan(&userID); err != nil {
			if err := db.Exec(
				"INSERT INTO users (username, password_hash, is_active, created_at, updated_at) VALUES (?, ?, true, now(), now())",
				u.Username, string(hash)).Error; err != nil {
				log.Fatalf("failed to insert user %s: %v", u.Username, err)
			}
			row = db.Raw("SELECT id FROM users WHERE username = ?", u.Username).Row()
			if err := row.Scan(&userID); err != nil {
				log.Fatalf("user %s not found after insert: %v", u.Username, err)
			}
			fmt.Println("Seeded user:", u.Username)
		}

		var roleID int64
		row = db.Raw("SELECT id FROM roles WHERE code = ?", u.Role).Row()
		if err := row.Scan(&roleID); err != nil {
			log.Fatalf("role %s not found for user %s: %v", u.Role, u.Username, err)
		}

		var exists int
		row = db.Raw("SELECT 1 FROM user_roles WHERE user_id = ? AND role_id = ?", userID, roleID).Row()
		if err := row.Scan(&exists); err == nil {
			continue
		}
		if err := db.Exec(
			"INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)",
			userID, roleID).Error; err != nil {
			log.Fatalf("failed to assign role %s to %s: %v", u.Role, u.Username, err)
		}
	}
}

func rankIDByCode(db *gorm.DB, code string) int64 {
	var id int64
	row := db.Raw("SELECT id FROM ranks WHERE code = ?", code).Row()
	if err := row.Scan(&id); err != nil {
		log.Fatalf("rank %s not found: %v", code, err)
	}
	return id
}

func seedDepartments(db *gorm.DB) {
	departments := []struct {
		Code    string
		Name    string
		Parent  string
		MinRank string
	}{
		{"HEAVEN", "Heavenly Court", "", "S"},
		{"THUNDER", "Thunder Bureau", "HEAVEN", "A"},
		{"RAIN", "Rain Office", "THUNDER", ""},
		{"TREASURY", "Celestial Treasury", "HEAVEN", "B"},
	}

	for _, d := range departments {
		var id int64
		row := db.Raw("SELECT id FROM departments WHERE code = ?", d.Code).Row()
		if err := row.Scan(&id); err == nil {
			continue
		}

		var parentID *int64
		level := 1
		if d.Parent != "" {
			var pid int64
			var plevel int
			row := db.Raw("SELECT id, level FROM departments WHERE code = ?", d.Parent).Row()
			if err := row.Scan(&pid, &plevel); err != nil {
				log.Fatalf("parent department %s not found: %v", d.Parent, err)
			}
			parentID = &pid
			level = plevel + 1
		}

		var minRankID *int64
		if d.MinRank != "" {
			rid := rankIDByCode(db, d.MinRank)
			minRankID = &rid
		}

		if err := db.Exec(
			"INSERT INTO departments (code, name, parent_id, level, min_rank_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, 'active', now(), now())",
			d.Code, d.Name, parentID, level, minRankID).Error; err != nil {
			log.Fatalf("failed to insert department %s: %v", d.Code, err)
		}
		fmt.Println("Seeded department:", d.Code)
	}
}

func seedDeities(db *gorm.DB) {
	deities := []struct {
		Name       string
		Title      string
		Rank       string
		Department string
		Duties     []string
	}{
		{"Lei Gong", "Duke of Thunder", "S", "THUNDER", []string{"thunder scheduling", "storm discipline"}},
		{"Dian Mu", "Mother of Lightning", "A", "THUNDER", []string{"lightning placement"}},
		{"Yu Shi", "Master of Rain", "B", "RAIN", []string{"rainfall allocation"}},
		{"Zhao Gongming", "Marshal of Wealth", "A", "TREASURY", []string{"treasury audits"}},
	}

	for _, d := range deities {
		var id int64
		row := db.Raw("SELECT id FROM deities WHERE name = ?", d.Name).Row()
		if err := row.Scan(&id); err == nil {
			continue
		}

		rankID := rankIDByCode(db, d.Rank)
		var departmentID *int64
		if d.Department != "" {
			var did int64
			row := db.Raw("SELECT id FROM departments WHERE code = ?", d.Department).Row()
			if err := row.Scan(&did); err != nil {
				log.Fatalf("department %s not found for deity %s: %v", d.Department, d.Name, err)
			}
			departmentID = &did
		}

		if err := db.Exec(
			"INSERT INTO deities (name, title, department_id, rank_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, 'active', now(), now())",
			d.Name, d.Title, departmentID, rankID).Error; err != nil {
			log.Fatalf("failed to insert deity %s: %v", d.Name, err)
		}

		row = db.Raw("SELECT id FROM deities WHERE name = ?", d.Name).Row()
		if err := row.Scan(&id); err != nil {
			log.Fatalf("deity %s not found after insert: %v", d.Name, err)
		}
		for i, duty := range d.Duties {
			if err := db.Exec(
				"INSERT INTO deity_responsibilities (deity_id, position, responsibility) VALUES (?, ?, ?)",
				id, i+1, duty).Error; err != nil {
				log.Fatalf("failed to insert responsibility for %s: %v", d.Name, err)
			}
		}
		fmt.Println("Seeded deity:", d.Name)
	}
}
