package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"schoolhub/internal/model"
	"schoolhub/internal/modules"
	"schoolhub/internal/navigation"
	"schoolhub/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Phone        string `json:"phone"`
	Password     string `json:"password" binding:"required,min=6"`
	Role         string `json:"role" binding:"required"`
	RecordNo     string `json:"record_no"`
	ClassSection string `json:"class_section"`
}

type UpdateUserRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email" binding:"omitempty,email"`
	Phone        string `json:"phone"`
	Role         string `json:"role"`
	Password     string `json:"password" binding:"omitempty,min=6"`
	RecordNo     string `json:"record_no"`
	ClassSection string `json:"class_section"`
	Active       *bool  `json:"active"` // false deactivates the account and blocks sign-in
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
}

type UserFilter struct {
	Role   string
	Search string // partial match on name, email or record number
	Page   int
	Limit  int
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Role         string    `json:"role"`
	RecordNo     string    `json:"record_no"`
	ClassSection string    `json:"class_section"`
	Active       bool      `json:"active"`
	LastLoginAt  string    `json:"last_login_at,omitempty"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
}

// MeResponse is the signed-in user plus everything the shell needs to
// decide what to show
type MeResponse struct {
	UserResponse
	Modules        map[string]bool                          `json:"modules"`
	VisibleModules []modules.Key                            `json:"visible_modules"`
	Navigation     []navigation.Entry                       `json:"navigation"`
	Permissions    map[string]map[model.Action]model.Access `json:"permissions"`
}

// AuthConfig controls token issuing
type AuthConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID string) (*MeResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, id string) error
}

type userService struct {
	repo      repository.UserRepository
	roleRepo  repository.RoleRepository
	txManager repository.TransactionManager
	access    AccessService
	auth      AuthConfig
	now       func() time.Time
}

// NewUserService returns a new instance of UserService
func NewUserService(
	repo repository.UserRepository,
	roleRepo repository.RoleRepository,
	txManager repository.TransactionManager,
	access AccessService,
	auth AuthConfig,
) UserService {
	if auth.AccessTTL <= 0 {
		auth.AccessTTL = 24 * time.Hour
	}
	if auth.RefreshTTL <= 0 {
		auth.RefreshTTL = 7 * 24 * time.Hour
	}
	return &userService{
		repo:      repo,
		roleRepo:  roleRepo,
		txManager: txManager,
		access:    access,
		auth:      auth,
		now:       time.Now,
	}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	res := &UserResponse{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Phone:        user.Phone,
		Role:         user.Role,
		RecordNo:     user.RecordNo,
		ClassSection: user.ClassSection,
		Active:       user.Active,
		CreatedAt:    user.CreatedAt.Format(timeLayout),
		UpdatedAt:    user.UpdatedAt.Format(timeLayout),
	}
	if user.LastLoginAt != nil {
		res.LastLoginAt = user.LastLoginAt.Format(timeLayout)
	}
	return res
}

func (s *userService) ensureRole(ctx context.Context, name string) error {
	if _, err := s.roleRepo.FindByName(ctx, name); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalid("unknown role '%s'", name)
		}
		return fmt.Errorf("failed to check role: %w", err)
	}
	return nil
}

func (s *userService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return fmt.Errorf("email already exists: %w", ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}
	return nil
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureRole(ctx, req.Role); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		Phone:        req.Phone,
		Password:     string(hashedPassword),
		Role:         req.Role,
		RecordNo:     strings.TrimSpace(req.RecordNo),
		ClassSection: strings.TrimSpace(req.ClassSection),
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
	}
	if !user.Active {
		return nil, fmt.Errorf("account is deactivated: %w", ErrForbidden)
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to record sign-in: %w", err)
	}
	return s.issueTokens(ctx, user)
}

// RefreshToken rotates a refresh token: the old one is deleted and a new pair issued
func (s *userService) RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	var out *TokenResponse
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rt, err := s.repo.FindRefreshToken(txCtx, req.RefreshToken)
		if err != nil {
			return fmt.Errorf("invalid or expired refresh token: %w", ErrUnauthorized)
		}
		if err := s.repo.DeleteRefreshToken(txCtx, rt.Token); err != nil {
			return fmt.Errorf("failed to revoke refresh token: %w", err)
		}
		user, err := s.repo.GetByID(txCtx, rt.UserID.String())
		if err != nil {
			return fmt.Errorf("user no longer exists: %w", ErrUnauthorized)
		}
		if !user.Active {
			return fmt.Errorf("account is deactivated: %w", ErrForbidden)
		}
		out, err = s.issueTokens(txCtx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.repo.DeleteRefreshToken(ctx, refreshToken)
}

func (s *userService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	now := s.now()
	expiresAt := now.Add(s.auth.AccessTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	})
	tokenString, err := token.SignedString(s.auth.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	refresh := &model.RefreshToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.auth.RefreshTTL),
	}
	if err := s.repo.SaveRefreshToken(ctx, refresh); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenResponse{
		Token:        tokenString,
		RefreshToken: refresh.Token,
		ExpiresAt:    expiresAt.Format(timeLayout),
	}, nil
}

// Me resolves the caller's role into module visibility, the filtered sidebar
// and the permission matrix
func (s *userService) Me(ctx context.Context, userID string) (*MeResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, lookupErr("user", err)
	}

	grants, err := s.access.Grants(ctx, user.Role)
	if err != nil {
		return nil, err
	}

	return &MeResponse{
		UserResponse:   *mapToResponse(user),
		Modules:        grants.Modules.Strings(),
		VisibleModules: grants.Modules.Enabled(),
		Navigation:     navigation.Filter(grants.Modules, navigation.DefaultEntries()),
		Permissions:    grants.Permissions,
	}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	if _, err := parseID("user", id); err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr("user", err)
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, filter UserFilter) ([]UserResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 10
	}

	users, total, err := s.repo.List(ctx, filter.Role, strings.TrimSpace(filter.Search), filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}

	return responses, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error) {
	if _, err := parseID("user", id); err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr("user", err)
	}

	if req.Role != "" && req.Role != user.Role {
		if err := s.ensureRole(ctx, req.Role); err != nil {
			return nil, err
		}
		user.Role = req.Role
	}

	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		if err := s.ensureEmailFree(ctx, email); err != nil {
			return nil, err
		}
		user.Email = email
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if rec := strings.TrimSpace(req.RecordNo); rec != "" {
		user.RecordNo = rec
	}
	if class := strings.TrimSpace(req.ClassSection); class != "" {
		user.ClassSection = class
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = string(hashed)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return mapToResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, id string) error {
	if _, err := parseID("user", id); err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return lookupErr("user", err)
	}
	return s.repo.Delete(ctx, id)
}
