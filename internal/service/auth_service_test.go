package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pahal-edu/pahal-api/internal/models"
)

type mockUserRepo struct {
	users   map[string]models.User
	tokens  map[string]models.RefreshToken
	revoked []string
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return &user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.tokens == nil {
		m.tokens = make(map[string]models.RefreshToken)
	}
	m.tokens[token.Token] = *token
	return nil
}

func (m *mockUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := m.tokens[token]; ok {
		return &stored, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revoked = append(m.revoked, id)
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return nil
}

type mockParentPhoneRepo struct {
	parents map[string]models.Parent
}

func (m *mockParentPhoneRepo) FindByPhone(ctx context.Context, phone string) (*models.Parent, error) {
	for _, parent := range m.parents {
		if parent.Phone == phone {
			p := parent
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func newTestAuthService(users *mockUserRepo, parents *mockParentPhoneRepo) *AuthService {
	return NewAuthService(users, parents, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "pahal-api",
	})
}

func adminUser(t *testing.T) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	return models.User{
		ID:           "u1",
		Email:        "admin@pahal.edu",
		PasswordHash: string(hash),
		FullName:     "Admin",
		Role:         models.RoleAdmin,
		Active:       true,
	}
}

func TestAuthServiceLogin(t *testing.T) {
	users := &mockUserRepo{users: map[string]models.User{"u1": adminUser(t)}}
	svc := newTestAuthService(users, &mockParentPhoneRepo{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@pahal.edu", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleAdmin, resp.Principal.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.SubjectID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	users := &mockUserRepo{users: map[string]models.User{"u1": adminUser(t)}}
	svc := newTestAuthService(users, &mockParentPhoneRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@pahal.edu", Password: "nope"})
	require.Error(t, err)
}

func TestAuthServiceParentLogin(t *testing.T) {
	parents := &mockParentPhoneRepo{parents: map[string]models.Parent{
		"p1": {ID: "p1", Name: "Ravi", Phone: "+919876500001"},
	}}
	svc := newTestAuthService(&mockUserRepo{}, parents)

	resp, err := svc.ParentLogin(context.Background(), models.ParentLoginRequest{Phone: "+919876500001"})
	require.NoError(t, err)
	assert.Empty(t, resp.RefreshToken, "parents get access tokens only")
	assert.Equal(t, models.RoleParent, resp.Principal.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "p1", claims.SubjectID)
	assert.Equal(t, models.RoleParent, claims.Role)

	_, err = svc.ParentLogin(context.Background(), models.ParentLoginRequest{Phone: "+910000000000"})
	require.Error(t, err)
}

func TestAuthServiceRefreshRotation(t *testing.T) {
	users := &mockUserRepo{users: map[string]models.User{"u1": adminUser(t)}}
	svc := newTestAuthService(users, &mockParentPhoneRepo{})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@pahal.edu", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.Len(t, users.revoked, 1, "used refresh token is revoked")
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	users := &mockUserRepo{users: map[string]models.User{"u1": adminUser(t)}}
	svc := newTestAuthService(users, &mockParentPhoneRepo{})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@pahal.edu", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(login.AccessToken + "x")
	require.Error(t, err)
}
