package postgres

import (
	"database/sql"

	"github.com/tianting/celestial-court/internal"
	"github.com/tianting/celestial-court/internal/auth"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetCredentialsForUsername(username string) (*auth.Credentials, error) {
	var creds auth.Credentials
	query := `SELECT id, password_hash, is_active FROM users WHERE username = ?`

	row := r.db.Raw(query, username).Row()
	if err := row.Scan(&creds.UserID, &creds.PasswordHash, &creds.IsActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, internal.ErrInvalidCredentials
		}
		return nil, err
	}
	return &creds, nil
}

func (r *Repository) GetUserWithRoles(userID int64) (*auth.User, error) {
	var user auth.User
	var deityID sql.NullInt64
	var deityName, deityTitle sql.NullString
	var lastLogin sql.NullTime

	query := `SELECT u.id, u.username, u.is_active, u.deity_id, d.name, d.title, u.last_login_at
	          FROM users u
	          LEFT JOIN deities d ON d.id = u.deity_id
	          WHERE u.id = ?`

	row := r.db.Raw(query, userID).Row()
	if err := row.Scan(&user.ID, &user.Username, &user.IsActive, &deityID, &deityName, &deityTitle, &lastLogin); err != nil {
		if err == sql.ErrNoRows {
			return nil, internal.NewNotFoundError("user not found", internal.ErrCodeNotFound)
		}
		return nil, err
	}

	if deityID.Valid {
		user.DeityID = &deityID.Int64
	}
	if deityName.Valid {
		user.DeityName = deityName.String
	}
	if deityTitle.Valid {
		user.DeityTitle = deityTitle.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}

	roleQuery := `SELECT role_id FROM user_roles WHERE user_id = ? ORDER BY role_id`
	rows, err := r.db.Raw(roleQuery, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var roleID int64
		if err := rows.Scan(&roleID); err != nil {
			return nil, err
		}
		user.RoleIDs = append(user.RoleIDs, roleID)
	}

	return &user, nil
}

func (r *Repository) UpdateLastLogin(userID int64) error {
	return r.db.Exec(`UPDATE users SET last_login_at = NOW() WHERE id = ?`, userID).Error
}
