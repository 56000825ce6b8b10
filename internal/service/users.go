package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Rodovar-GPS/GPS/internal/storage"
)

// UserView is an admin user without its password hash.
type UserView struct {
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newUserView(u *storage.AdminUser) UserView {
	return UserView{
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserInput is the editable part of an admin user. An empty Password keeps
// the current one on update.
type UserInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role" binding:"required,oneof=MASTER BASIC"`
	Password string `json:"password"`
	Active   *bool  `json:"active"`
}

// UserService manages back-office accounts.
type UserService struct {
	users storage.UsersRepository
	auth  *AuthService
	now   func() time.Time
}

// NewUserService creates a UserService. auth may be nil, in which case
// deleted users keep their refresh tokens until they expire.
func NewUserService(users storage.UsersRepository, auth *AuthService) *UserService {
	return &UserService{users: users, auth: auth, now: time.Now}
}

func (s *UserService) List(ctx context.Context) ([]UserView, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: ListUsers: %w", err)
	}
	out := make([]UserView, 0, len(users))
	for i := range users {
		out = append(out, newUserView(&users[i]))
	}
	return out, nil
}

// Save creates or updates a user.
func (s *UserService) Save(ctx context.Context, in UserInput) (*UserView, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	if in.Role != storage.RoleMaster && in.Role != storage.RoleBasic {
		return nil, fmt.Errorf("%w: role must be MASTER or BASIC", ErrInvalidUser)
	}

	existing, err := s.users.GetUser(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("service: SaveUser: %w", err)
	}

	now := s.now().UTC()
	u := existing
	if u == nil {
		if in.Password == "" {
			return nil, fmt.Errorf("%w: password is required for new users", ErrInvalidUser)
		}
		u = &storage.AdminUser{Username: in.Username, Active: true, CreatedAt: now}
	} else if existing.Role == storage.RoleMaster && (in.Role != storage.RoleMaster || (in.Active != nil && !*in.Active)) {
		if err := s.ensureOtherMaster(ctx, existing.Username); err != nil {
			return nil, err
		}
	}

	u.Email = strings.TrimSpace(in.Email)
	u.FullName = strings.TrimSpace(in.FullName)
	u.Role = in.Role
	if in.Active != nil {
		u.Active = *in.Active
	}
	if in.Password != "" {
		hash, err := HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = now

	if err := s.users.UpsertUser(ctx, u); err != nil {
		return nil, fmt.Errorf("service: SaveUser: %w", err)
	}
	if !u.Active {
		s.revoke(ctx, u.Username)
	}
	v := newUserView(u)
	return &v, nil
}

// Delete removes a user. The last active MASTER cannot be removed.
func (s *UserService) Delete(ctx context.Context, username string) error {
	u, err := s.users.GetUser(ctx, username)
	if err != nil {
		return fmt.Errorf("service: DeleteUser: %w", err)
	}
	if u == nil {
		return ErrUserNotFound
	}
	if u.Role == storage.RoleMaster {
		if err := s.ensureOtherMaster(ctx, u.Username); err != nil {
			return err
		}
	}
	if err := s.users.DeleteUser(ctx, username); err != nil {
		return fmt.Errorf("service: DeleteUser: %w", err)
	}
	s.revoke(ctx, username)
	return nil
}

// Bootstrap creates a MASTER user when no users exist yet. It reports
// whether a user was created.
func (s *UserService) Bootstrap(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("service: Bootstrap: %w", err)
	}
	if len(users) > 0 {
		return false, nil
	}
	if _, err := s.Save(ctx, UserInput{Username: username, Role: storage.RoleMaster, Password: password}); err != nil {
		return false, err
	}
	log.Printf("service: bootstrap MASTER user %q created", username)
	return true, nil
}

func (s *UserService) ensureOtherMaster(ctx context.Context, except string) error {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("service: ListUsers: %w", err)
	}
	for _, u := range users {
		if u.Username != except && u.Role == storage.RoleMaster && u.Active {
			return nil
		}
	}
	return ErrLastMaster
}

func (s *UserService) revoke(ctx context.Context, username string) {
	if s.auth == nil {
		return
	}
	if err := s.auth.RevokeUser(ctx, username); err != nil {
		log.Printf("service: revoke tokens for %q: %v", username, err)
	}
}
