package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
	"github.com/oksasatya/go-sweet-shop/internal/domain/repository"
	"github.com/oksasatya/go-sweet-shop/pkg/helpers"
	"github.com/oksasatya/go-sweet-shop/pkg/validation"
)

type AuthService struct {
	Repo   repository.UserRepository
	JWT    *helpers.JWTManager
	Hasher helpers.PasswordHasher
	Logger *logrus.Logger
}

func NewAuthService(repo repository.UserRepository, jwt *helpers.JWTManager, hasher helpers.PasswordHasher, logger *logrus.Logger) *AuthService {
	return &AuthService{Repo: repo, JWT: jwt, Hasher: hasher, Logger: logger}
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,pwd"`
}

// AuthResult is an identity with a freshly issued session token.
type AuthResult struct {
	User      *entity.User
	Token     string
	ExpiresAt time.Time
}

func (s *AuthService) issue(u *entity.User) (*AuthResult, error) {
	token, exp, err := s.JWT.GenerateAccessToken(u.ID, string(u.Role))
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		return nil, err
	}
	return &AuthResult{User: u, Token: token, ExpiresAt: exp}, nil
}

// Register creates an identity with the user role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	ctx = context.WithoutCancel(ctx)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = entity.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, entity.NewValidationError("invalid registration", validation.ToDetails(err))
	}
	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &entity.User{Name: in.Name, Email: in.Email, PasswordHash: hash, Role: entity.RoleUser}
	if err := s.Repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.Logger.WithField("user_id", u.ID).Info("user registered")
	return s.issue(u)
}

// Login checks the credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, entity.ErrUserNotFound) {
		return nil, entity.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !s.Hasher.Compare(u.PasswordHash, password) {
		return nil, entity.ErrInvalidCredentials
	}
	return s.issue(u)
}

// Verify resolves a session token into a principal.
func (s *AuthService) Verify(token string) (*entity.Principal, error) {
	claims, err := s.JWT.ParseAccessToken(token)
	if err != nil {
		return nil, entity.ErrUnauthenticated
	}
	role := entity.Role(claims.Role)
	if !role.Valid() {
		return nil, entity.ErrUnauthenticated
	}
	return &entity.Principal{UserID: claims.UserID, Role: role}, nil
}

// EnsureAdmin creates an admin identity, or promotes the existing one with
// the same email. The password of an existing identity is left untouched.
func (s *AuthService) EnsureAdmin(ctx context.Context, in RegisterInput) (*entity.User, bool, error) {
	u, err := s.Repo.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		if u.Role != entity.RoleAdmin {
			if err := s.Repo.UpdateRole(ctx, u.ID, entity.RoleAdmin); err != nil {
				return nil, false, fmt.Errorf("promote admin: %w", err)
			}
			u.Role = entity.RoleAdmin
		}
		return u, false, nil
	case !errors.Is(err, entity.ErrUserNotFound):
		return nil, false, fmt.Errorf("load admin: %w", err)
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Email = entity.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, false, entity.NewValidationError("invalid admin", validation.ToDetails(err))
	}
	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}
	u = &entity.User{Name: in.Name, Email: in.Email, PasswordHash: hash, Role: entity.RoleAdmin}
	if err := s.Repo.Create(ctx, u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}
