package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"gorm.io/gorm"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/adapters/persistence/repositories"
	"toolhub/internal/core/domain"
	"toolhub/internal/pkg/pagination"
	"toolhub/internal/pkg/password"
)

// User service errors
var (
	ErrEmailAlreadyExists  = fmt.Errorf("%w: email already exists", domain.ErrConflict)
	ErrOldPasswordWrong    = fmt.Errorf("%w: old password is incorrect", domain.ErrValidationFailed)
	ErrCannotDeleteSelf    = fmt.Errorf("%w: cannot delete your own account", domain.ErrPreconditionFailed)
	ErrCannotChangeOwnRole = fmt.Errorf("%w: cannot change your own role", domain.ErrPreconditionFailed)
	ErrInvalidRole         = fmt.Errorf("%w: role must be ADMIN, STAFF or BORROWER", domain.ErrValidationFailed)
)

// UserService handles user management business logic
type UserService struct {
	userRepo repositories.UserRepository
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// ListUsersInput represents list users input
type ListUsersInput struct {
	Page   int
	Limit  int
	Role   string
	Search string
}

// ListUsersOutput represents list users output
type ListUsersOutput struct {
	Users []*models.UserResponse `json:"users"`
	Meta  *pagination.Meta       `json:"meta"`
}

// CreateUserInput represents admin user creation
type CreateUserInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UpdateUserByAdminInput represents update user input (for admin)
type UpdateUserByAdminInput struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// UpdateProfileInput represents update profile input (for self)
type UpdateProfileInput struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
}

// ChangePasswordInput represents change password input
type ChangePasswordInput struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ListUsers lists users with pagination
func (s *UserService) ListUsers(ctx context.Context, input *ListUsersInput) (*ListUsersOutput, error) {
	params := pagination.New(input.Page, input.Limit)

	users, total, err := s.userRepo.List(ctx, repositories.UserFilter{Role: input.Role, Search: input.Search}, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}

	out := make([]*models.UserResponse, len(users))
	for i, user := range users {
		out[i] = user.ToResponse()
	}

	return &ListUsersOutput{Users: out, Meta: pagination.GetMeta(params, total)}, nil
}

// CreateUser creates an account with any role
func (s *UserService) CreateUser(ctx context.Context, input *CreateUserInput) (*models.UserResponse, error) {
	if err := validateAccount(input.Username, input.Email, input.Password); err != nil {
		return nil, err
	}
	role := domain.Role(strings.ToUpper(strings.TrimSpace(input.Role)))
	if role == "" {
		role = domain.RoleBorrower
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	hashed, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: strings.TrimSpace(input.Username),
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		FullName: strings.TrimSpace(input.FullName),
		Phone:    strings.TrimSpace(input.Phone),
		Password: hashed,
		Role:     string(role),
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	return user.ToResponse(), nil
}

// GetUserByID gets a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return user.ToResponse(), nil
}

// UpdateUserByAdmin updates a user by admin
func (s *UserService) UpdateUserByAdmin(ctx context.Context, id uint, adminID uint, input *UpdateUserByAdminInput) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}

	if id == adminID && input.Role != nil && *input.Role != user.Role {
		return nil, ErrCannotChangeOwnRole
	}

	if err := s.applyContact(ctx, user, input.Email, input.FullName, input.Phone); err != nil {
		return nil, err
	}

	if input.Role != nil {
		role := domain.Role(strings.ToUpper(strings.TrimSpace(*input.Role)))
		if !role.Valid() {
			return nil, ErrInvalidRole
		}
		user.Role = string(role)
	}

	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// applyContact updates email, name and phone, rejecting a taken email
func (s *UserService) applyContact(ctx context.Context, user *models.User, email, fullName, phone *string) error {
	if email != nil {
		next := strings.ToLower(strings.TrimSpace(*email))
		if next != strings.ToLower(user.Email) {
			if _, err := mail.ParseAddress(next); err != nil {
				return fmt.Errorf("%w: invalid email %q", domain.ErrValidationFailed, *email)
			}
			exists, err := s.userRepo.ExistsByEmail(ctx, next)
			if err != nil {
				return err
			}
			if exists {
				return ErrEmailAlreadyExists
			}
			user.Email = next
		}
	}
	if fullName != nil {
		user.FullName = strings.TrimSpace(*fullName)
	}
	if phone != nil {
		user.Phone = strings.TrimSpace(*phone)
	}
	return nil
}

// DeleteUser deletes a user (soft delete)
func (s *UserService) DeleteUser(ctx context.Context, id uint, adminID uint) error {
	if id == adminID {
		return ErrCannotDeleteSelf
	}

	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		return notFound(err, ErrUserNotFound)
	}

	return s.userRepo.Delete(ctx, id)
}

// GetProfile gets own profile
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.UserResponse, error) {
	return s.GetUserByID(ctx, userID)
}

// UpdateProfile updates own profile
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, input *UpdateProfileInput) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}

	if err := s.applyContact(ctx, user, input.Email, input.FullName, input.Phone); err != nil {
		return nil, err
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// ChangePassword changes user's password
func (s *UserService) ChangePassword(ctx context.Context, userID uint, input *ChangePasswordInput) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return notFound(err, ErrUserNotFound)
	}

	if !password.Verify(input.OldPassword, user.Password) {
		return ErrOldPasswordWrong
	}
	if !password.ValidatePassword(input.NewPassword) {
		return fmt.Errorf("%w: new password must be at least %d characters", domain.ErrValidationFailed, password.MinLength)
	}

	hashed, err := password.Hash(input.NewPassword)
	if err != nil {
		return err
	}

	user.Password = hashed
	return s.userRepo.Update(ctx, user)
}
