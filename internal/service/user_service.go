package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"cabinrent/internal/database"
	"cabinrent/internal/domain"
	"cabinrent/internal/models"

	"github.com/rs/zerolog"
)

const minPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{3,32}$`)

type UserService struct {
	repo   domain.UserRepository
	logger *zerolog.Logger
}

func NewUserService(repo domain.UserRepository, logger *zerolog.Logger) *UserService {
	return &UserService{repo: repo, logger: nopLogger(logger)}
}

// UserInput carries the writable user fields. Nil pointers leave a field unchanged on update.
type UserInput struct {
	Username string
	FullName *string
	Role     *string
	Password *string
}

func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *UserService) Create(ctx context.Context, in UserInput) (*models.User, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if !usernamePattern.MatchString(username) {
		return nil, invalid("username", "must be 3-32 characters of a-z, 0-9, dot, dash or underscore")
	}
	user := &models.User{Username: username, Role: models.RoleStaff}
	if in.FullName != nil {
		user.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Role != nil {
		user.Role = *in.Role
	}
	if !models.IsRole(user.Role) {
		return nil, invalid("role", "must be admin or staff")
	}
	if in.Password == nil {
		return nil, invalid("password", "is required")
	}
	hash, err := s.hash(*in.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info().Str("username", user.Username).Str("role", user.Role).Msg("User created")
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id int64, in UserInput) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.FullName != nil {
		user.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Role != nil {
		if !models.IsRole(*in.Role) {
			return nil, invalid("role", "must be admin or staff")
		}
		user.Role = *in.Role
	}
	if in.Password != nil {
		hash, err := s.hash(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes a user. Nobody may delete their own account and one admin always remains.
func (s *UserService) Delete(ctx context.Context, id int64, actor Actor) error {
	if id == actor.ID {
		return ErrSelfDelete
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", id).Str("by", actor.Username).Msg("User deleted")
	return nil
}

// EnsureAdmin creates the first admin account when the users table is empty.
// It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	n, err := s.repo.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	role := models.RoleAdmin
	name := "Administrator"
	if _, err := s.Create(ctx, UserInput{Username: username, FullName: &name, Role: &role, Password: &password}); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *UserService) hash(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", invalid("password", "must be at least 8 characters")
	}
	return HashPassword(password)
}
