package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

// Mock UserRepository for testing
type mockUserRepository struct {
	creds         map[string]*Credentials
	usersByID     map[int64]*User
	lastLoginSet  []int64
	returnError   bool
	errorToReturn error
}

func newMockUserRepository() *mockUserRepository {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("correct_password"), bcrypt.MinCost)

	return &mockUserRepository{
		creds: map[string]*Credentials{
			"jade_emperor": {UserID: 1, PasswordHash: string(hashedPassword), IsActive: true},
			"erlang_shen":  {UserID: 2, PasswordHash: string(hashedPassword), IsActive: true},
			"nezha":        {UserID: 3, PasswordHash: string(hashedPassword), IsActive: false},
		},
		usersByID: map[int64]*User{
			1: {ID: 1, Username: "jade_emperor", RoleIDs: []int64{1}, IsActive: true},
			2: {ID: 2, Username: "erlang_shen", RoleIDs: []int64{2}, IsActive: true},
			3: {ID: 3, Username: "nezha", RoleIDs: []int64{3}, IsActive: false},
		},
	}
}

func (m *mockUserRepository) GetCredentialsForUsername(username string) (*Credentials, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	if creds, exists := m.creds[username]; exists {
		return creds, nil
	}
	return nil, errors.New("user not found")
}

func (m *mockUserRepository) GetUserWithRoles(userID int64) (*User, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	if user, exists := m.usersByID[userID]; exists {
		copied := *user
		return &copied, nil
	}
	return nil, errors.New("user not found")
}

func (m *mockUserRepository) UpdateLastLogin(userID int64) error {
	m.lastLoginSet = append(m.lastLoginSet, userID)
	return nil
}

func (m *mockUserRepository) setError(err error) {
	m.returnError = true
	m.errorToReturn = err
}

// Mock PermissionSource for testing
type mockPermissionSource struct {
	byRole map[int64][]string
}

func newMockPermissionSource() *mockPermissionSource {
	return &mockPermissionSource{
		byRole: map[int64][]string{
			1: {"dashboard", "deities", "deity:create", "deity:edit", "deity:status", "role:edit"},
			2: {"dashboard", "deities", "deity:edit"},
			3: {"dashboard"},
		},
	}
}

func (m *mockPermissionSource) ResolvePermissions(roleIDs []int64) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, roleID := range roleIDs {
		for _, code := range m.byRole[roleID] {
			if _, dup := seen[code]; !dup {
				seen[code] = struct{}{}
				out = append(out, code)
			}
		}
	}
	return out
}

func (m *mockPermissionSource) HasPermission(roleIDs []int64, code string) bool {
	for _, granted := range m.ResolvePermissions(roleIDs) {
		if granted == code {
			return true
		}
	}
	return false
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		service       *Service
		mockRepo      *mockUserRepository
		mockPerms     *mockPermissionSource
		tokenGen      *JWTTokenGenerator
		accessSecret  string        = "test-access-secret"
		refreshSecret string        = "test-refresh-secret"
		accessTTL     time.Duration = 15 * time.Minute
		refreshTTL    time.Duration = 24 * time.Hour
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockUserRepository()
		mockPerms = newMockPermissionSource()
		tokenGen = NewJWTTokenGenerator(accessSecret, refreshSecret, accessTTL, refreshTTL)
		service = NewService(mockRepo, tokenGen, mockPerms, bcrypt.MinCost)
	})

	ginkgo.Describe("Authenticate", func() {
		ginkgo.Context("when credentials are valid", func() {
			ginkgo.It("should return access and refresh tokens", func() {
				// Given
				dto := LoginDTO{
					Username: "jade_emperor",
					Password: "correct_password",
				}

				// When
				tokens, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.RefreshToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.Equal(tokens.RefreshToken))
			})

			ginkgo.It("should record the login timestamp", func() {
				// When
				_, err := service.Authenticate(LoginDTO{Username: "erlang_shen", Password: "correct_password"})

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(mockRepo.lastLoginSet).To(gomega.ContainElement(int64(2)))
			})

			ginkgo.It("should generate valid JWT tokens", func() {
				// Given
				dto := LoginDTO{
					Username: "erlang_shen",
					Password: "correct_password",
				}

				// When
				tokens, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				claims, err := service.ValidateAccessToken(tokens.AccessToken)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.UserID).To(gomega.Equal("2"))
				gomega.Expect(claims.Username).To(gomega.Equal("erlang_shen"))
			})
		})

		ginkgo.Context("when credentials are invalid", func() {
			ginkgo.It("should return error for unknown username", func() {
				// When
				tokens, err := service.Authenticate(LoginDTO{Username: "nonexistent", Password: "any_password"})

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err).To(gomega.Equal(ErrInvalidCredentials))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})

			ginkgo.It("should return error for wrong password", func() {
				// When
				tokens, err := service.Authenticate(LoginDTO{Username: "jade_emperor", Password: "wrong_password"})

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err).To(gomega.Equal(ErrInvalidCredentials))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})
		})

		ginkgo.Context("when the account is inactive", func() {
			ginkgo.It("should refuse login even with the right password", func() {
				// When
				tokens, err := service.Authenticate(LoginDTO{Username: "nezha", Password: "correct_password"})

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err).To(gomega.Equal(ErrUserInactive))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})
		})

		ginkgo.Context("when input validation fails", func() {
			ginkgo.It("should return validation error for empty username", func() {
				// When
				tokens, err := service.Authenticate(LoginDTO{Username: "", Password: "password"})

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err.Error()).To(gomega.ContainSubstring("username is required"))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})

			ginkgo.It("should return validation error for empty password", func() {
				// When
				tokens, err := service.Authenticate(LoginDTO{Username: "jade_emperor", Password: ""})

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err.Error()).To(gomega.ContainSubstring("password is required"))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})
		})

		ginkgo.Context("when repository returns error", func() {
			ginkgo.It("should return invalid credentials error", func() {
				// Given
				mockRepo.setError(errors.New("database error"))

				// When
				tokens, err := service.Authenticate(LoginDTO{Username: "jade_emperor", Password: "correct_password"})

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err).To(gomega.Equal(ErrInvalidCredentials))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})
		})
	})

	ginkgo.Describe("RefreshTokens", func() {
		var validRefreshToken string

		ginkgo.BeforeEach(func() {
			tokens, err := service.Authenticate(LoginDTO{Username: "jade_emperor", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			validRefreshToken = tokens.RefreshToken
		})

		ginkgo.Context("when refresh token is valid", func() {
			ginkgo.It("should return new tokens preserving user information", func() {
				// When
				newTokens, err := service.RefreshTokens(validRefreshToken)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				claims, err := service.ValidateAccessToken(newTokens.AccessToken)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.UserID).To(gomega.Equal("1"))
				gomega.Expect(claims.Username).To(gomega.Equal("jade_emperor"))
			})
		})

		ginkgo.Context("when the account was deactivated after issuing", func() {
			ginkgo.It("should refuse to mint new tokens", func() {
				// Given
				mockRepo.usersByID[1].IsActive = false

				// When
				tokens, err := service.RefreshTokens(validRefreshToken)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err).To(gomega.Equal(ErrUserInactive))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})
		})

		ginkgo.Context("when refresh token is invalid", func() {
			ginkgo.It("should return error for malformed token", func() {
				// When
				tokens, err := service.RefreshTokens("invalid.token.format")

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})

			ginkgo.It("should return error for expired token", func() {
				// Given
				expiredTokenGen := NewJWTTokenGenerator(accessSecret, refreshSecret, -1*time.Hour, -1*time.Hour)
				expiredToken, err := expiredTokenGen.GenerateRefreshToken("1", "jade_emperor")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				tokens, err := service.RefreshTokens(expiredToken)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err).To(gomega.Or(gomega.Equal(ErrTokenExpired), gomega.Equal(ErrInvalidToken)))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})
		})
	})

	ginkgo.Describe("ValidateAccessToken", func() {
		ginkgo.Context("when access token is valid", func() {
			ginkgo.It("should return claims with user information", func() {
				// Given
				tokens, err := service.Authenticate(LoginDTO{Username: "erlang_shen", Password: "correct_password"})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				claims, err := service.ValidateAccessToken(tokens.AccessToken)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims).ToNot(gomega.BeNil())
				gomega.Expect(claims.UserID).To(gomega.Equal("2"))
				gomega.Expect(claims.ExpiresAt).ToNot(gomega.BeNil())
			})
		})

		ginkgo.Context("when access token is invalid", func() {
			ginkgo.It("should return error for malformed token", func() {
				// When
				claims, err := service.ValidateAccessToken("invalid.token")

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(claims).To(gomega.BeNil())
			})

			ginkgo.It("should return error for expired token", func() {
				// Given
				expiredTokenGen := NewJWTTokenGenerator(accessSecret, refreshSecret, -1*time.Hour, refreshTTL)
				expiredToken, err := expiredTokenGen.GenerateAccessToken("1", "jade_emperor")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				claims, err := service.ValidateAccessToken(expiredToken)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err).To(gomega.Equal(ErrTokenExpired))
				gomega.Expect(claims).To(gomega.BeNil())
			})
		})
	})

	ginkgo.Describe("GetUserWithPermissions", func() {
		ginkgo.Context("when user exists", func() {
			ginkgo.It("should attach the permission set resolved from roles", func() {
				// When
				user, err := service.GetUserWithPermissions(2)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(user).ToNot(gomega.BeNil())
				gomega.Expect(user.Username).To(gomega.Equal("erlang_shen"))
				gomega.Expect(user.Permissions).To(gomega.ContainElements("dashboard", "deities", "deity:edit"))
			})
		})

		ginkgo.Context("when user does not exist", func() {
			ginkgo.It("should return error", func() {
				// When
				user, err := service.GetUserWithPermissions(999)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(user).To(gomega.BeNil())
			})
		})
	})

	ginkgo.Describe("HashPassword", func() {
		ginkgo.It("should return a verifiable hash", func() {
			// Given
			password := "test_password_123"

			// When
			hash, err := service.HashPassword(password)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(hash).ToNot(gomega.BeEmpty())
			gomega.Expect(hash).ToNot(gomega.Equal(password))
			gomega.Expect(bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))).To(gomega.Succeed())
		})
	})

	ginkgo.Describe("GenerateRandomToken", func() {
		ginkgo.It("should generate different tokens each time", func() {
			// When
			token1, err1 := GenerateRandomToken()
			token2, err2 := GenerateRandomToken()

			// Then
			gomega.Expect(err1).ToNot(gomega.HaveOccurred())
			gomega.Expect(err2).ToNot(gomega.HaveOccurred())
			gomega.Expect(len(token1)).To(gomega.Equal(64))
			gomega.Expect(token1).ToNot(gomega.Equal(token2))
		})
	})
})

var _ = ginkgo.Describe("Guard", func() {
	var (
		guard     *Guard
		mockPerms *mockPermissionSource
	)

	activeAdmin := func() *User {
		return &User{ID: 1, Username: "jade_emperor", RoleIDs: []int64{1}, IsActive: true}
	}

	ginkgo.BeforeEach(func() {
		mockPerms = newMockPermissionSource()
		guard = NewGuard(mockPerms, slog.Default())
	})

	ginkgo.Describe("Authorize", func() {
		ginkgo.Context("when the principal's roles grant the code", func() {
			ginkgo.It("should allow", func() {
				gomega.Expect(guard.Authorize(activeAdmin(), PermDeityCreate)).To(gomega.Succeed())
			})
		})

		ginkgo.Context("when the code is not granted", func() {
			ginkgo.It("should deny", func() {
				// Given a manager without deity:status
				user := &User{ID: 2, RoleIDs: []int64{2}, IsActive: true}

				// When
				err := guard.Authorize(user, PermDeityStatus)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
			})
		})

		ginkgo.Context("when the principal is nil", func() {
			ginkgo.It("should deny", func() {
				gomega.Expect(guard.Authorize(nil, PermMenuDashboard)).To(gomega.HaveOccurred())
			})
		})

		ginkgo.Context("when the principal is inactive", func() {
			ginkgo.It("should deny regardless of grants", func() {
				// Given
				user := activeAdmin()
				user.IsActive = false

				// Then
				gomega.Expect(guard.Authorize(user, PermDeityCreate)).To(gomega.HaveOccurred())
			})
		})

		ginkgo.Context("when the permission code is unknown", func() {
			ginkgo.It("should deny", func() {
				gomega.Expect(guard.Authorize(activeAdmin(), "no-such-code")).To(gomega.HaveOccurred())
			})
		})
	})

	ginkgo.Describe("Can", func() {
		ginkgo.It("should mirror Authorize as a boolean", func() {
			gomega.Expect(guard.Can(activeAdmin(), PermRoleEdit)).To(gomega.BeTrue())
			gomega.Expect(guard.Can(&User{RoleIDs: []int64{3}, IsActive: true}, PermRoleEdit)).To(gomega.BeFalse())
		})
	})

	ginkgo.Describe("Require", func() {
		var invoked bool

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			invoked = true
			w.WriteHeader(http.StatusOK)
		})

		ginkgo.BeforeEach(func() {
			invoked = false
		})

		ginkgo.It("should pass through when the principal is authorized", func() {
			// Given
			req := httptest.NewRequest(http.MethodPost, "/deities", nil)
			req = req.WithContext(ContextWithUser(req.Context(), activeAdmin()))
			rec := httptest.NewRecorder()

			// When
			guard.Require(PermDeityCreate)(next).ServeHTTP(rec, req)

			// Then
			gomega.Expect(invoked).To(gomega.BeTrue())
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})

		ginkgo.It("should return 403 when the permission is missing", func() {
			// Given
			user := &User{ID: 3, RoleIDs: []int64{3}, IsActive: true}
			req := httptest.NewRequest(http.MethodPost, "/deities", nil)
			req = req.WithContext(ContextWithUser(req.Context(), user))
			rec := httptest.NewRecorder()

			// When
			guard.Require(PermDeityCreate)(next).ServeHTTP(rec, req)

			// Then
			gomega.Expect(invoked).To(gomega.BeFalse())
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
		})

		ginkgo.It("should return 401 when no principal is in context", func() {
			// Given
			req := httptest.NewRequest(http.MethodPost, "/deities", nil)
			rec := httptest.NewRecorder()

			// When
			guard.Require(PermDeityCreate)(next).ServeHTTP(rec, req)

			// Then
			gomega.Expect(invoked).To(gomega.BeFalse())
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})
})
