package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/go-sweet-shop/internal/application"
	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
	"github.com/oksasatya/go-sweet-shop/internal/infrastructure/memory"
	"github.com/oksasatya/go-sweet-shop/pkg/helpers"
)

func newAuth() *application.AuthService {
	return application.NewAuthService(
		memory.NewUserRepository(),
		helpers.NewJWTManager("test-secret", time.Hour),
		helpers.NewPasswordHasher(bcrypt.MinCost),
		helpers.NewNopLogger(),
	)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	auth := newAuth()

	reg, err := auth.Register(ctx, application.RegisterInput{Name: "Asha", Email: "Asha@Example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleUser, reg.User.Role)
	assert.Equal(t, "asha@example.com", reg.User.Email)
	assert.NotEqual(t, "correct-horse", reg.User.PasswordHash)
	assert.NotEmpty(t, reg.Token)

	_, err = auth.Register(ctx, application.RegisterInput{Name: "Asha", Email: "asha@example.com", Password: "another-pass"})
	assert.ErrorIs(t, err, entity.ErrDuplicateEmail)

	res, err := auth.Login(ctx, "ASHA@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)

	p, err := auth.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, p.UserID)
	assert.Equal(t, entity.RoleUser, p.Role)
}

func TestRegisterValidation(t *testing.T) {
	auth := newAuth()
	_, err := auth.Register(context.Background(), application.RegisterInput{Name: " ", Email: "bad", Password: "short"})
	var ve *entity.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "name")
	assert.Contains(t, ve.Fields, "email")
	assert.Contains(t, ve.Fields, "password")
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	auth := newAuth()
	_, err := auth.Register(ctx, application.RegisterInput{Name: "Ravi", Email: "ravi@example.com", Password: "password-1"})
	require.NoError(t, err)

	_, err = auth.Login(ctx, "ravi@example.com", "wrong-password")
	assert.ErrorIs(t, err, entity.ErrInvalidCredentials)
	_, err = auth.Login(ctx, "nobody@example.com", "password-1")
	assert.ErrorIs(t, err, entity.ErrInvalidCredentials)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	auth := newAuth()
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		_, err := auth.Verify(tok)
		assert.ErrorIs(t, err, entity.ErrUnauthenticated)
	}

	other := helpers.NewJWTManager("other-secret", time.Hour)
	tok, _, err := other.GenerateAccessToken("u1", "admin")
	require.NoError(t, err)
	_, err = auth.Verify(tok)
	assert.ErrorIs(t, err, entity.ErrUnauthenticated)

	tok, _, err = auth.JWT.GenerateAccessToken("u1", "superuser")
	require.NoError(t, err)
	_, err = auth.Verify(tok)
	assert.ErrorIs(t, err, entity.ErrUnauthenticated, "unknown roles are rejected")
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	auth := newAuth()

	admin, created, err := auth.EnsureAdmin(ctx, application.RegisterInput{Name: "Admin", Email: "admin@example.com", Password: "admin-pass"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, entity.RoleAdmin, admin.Role)

	again, created, err := auth.EnsureAdmin(ctx, application.RegisterInput{Name: "Admin", Email: "admin@example.com", Password: "ignored-pass"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)

	reg, err := auth.Register(ctx, application.RegisterInput{Name: "Mina", Email: "mina@example.com", Password: "mina-pass-1"})
	require.NoError(t, err)
	promoted, created, err := auth.EnsureAdmin(ctx, application.RegisterInput{Email: "mina@example.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, reg.User.ID, promoted.ID)
	assert.Equal(t, entity.RoleAdmin, promoted.Role)

	res, err := auth.Login(ctx, "mina@example.com", "mina-pass-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, res.User.Role)
}
