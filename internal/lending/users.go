package lending

import (
	"context"
	"strings"

	"github.com/erazemk/posoja/internal/auth"
	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/store"
)

// UserInput registers a user.
type UserInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// RegisterUser creates an account with the configured starting trust score.
func (s *Service) RegisterUser(ctx context.Context, in UserInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return nil, invalid("username is required")
	}
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	if !model.ValidRole(in.Role) {
		return nil, invalid("invalid role %q", in.Role)
	}
	if err := model.ValidatePassword(in.Password); err != nil {
		return nil, invalid("%s", err.Error())
	}

	existing, err := store.GetUserByUsername(ctx, s.db, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u, err := store.CreateUser(ctx, s.db, store.NewUser{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		Email:        strings.TrimSpace(in.Email),
		Phone:        strings.TrimSpace(in.Phone),
		TrustScore:   s.opts.DefaultTrustScore,
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// UpdateContact replaces a user's notification contact.
func (s *Service) UpdateContact(ctx context.Context, actor Actor, userID int64, email, phone string) (*model.User, error) {
	if actor.UserID != userID && !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	ok, err := store.UpdateUserContact(ctx, s.db, userID, strings.TrimSpace(email), strings.TrimSpace(phone))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	return s.activeUser(ctx, userID)
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords both return ErrInvalidCredentials after the same bcrypt work.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := store.GetUserByUsername(ctx, s.db, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if u == nil {
		auth.CheckNoUser(password)
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		s.log.WarnContext(ctx, "login failed", "username", u.Username)
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetUser returns a user. Users may read themselves; admins anyone.
func (s *Service) GetUser(ctx context.Context, actor Actor, id int64) (*model.User, error) {
	if actor.UserID != id && !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return s.activeUser(ctx, id)
}

// ListUsers returns every active user. Admin only.
func (s *Service) ListUsers(ctx context.Context, actor Actor) ([]model.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return store.ListUsers(ctx, s.db)
}

// ChangePassword replaces the actor's own password after checking the
// current one.
func (s *Service) ChangePassword(ctx context.Context, actor Actor, current, next string) error {
	u, err := s.activeUser(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	return s.setPassword(ctx, u.ID, next)
}

// ResetPassword sets another user's password. Admin only.
func (s *Service) ResetPassword(ctx context.Context, actor Actor, userID int64, password string) error {
	if !actor.IsAdmin() {
		return ErrNotAdmin
	}
	return s.setPassword(ctx, userID, password)
}

func (s *Service) setPassword(ctx context.Context, userID int64, password string) error {
	if err := model.ValidatePassword(password); err != nil {
		return invalid("%s", err.Error())
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	ok, err := store.UpdateUserPassword(ctx, s.db, userID, hash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

// SetRole changes a user's role. Admin only.
func (s *Service) SetRole(ctx context.Context, actor Actor, userID int64, role string) (*model.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	if !model.ValidRole(role) {
		return nil, invalid("invalid role %q", role)
	}
	ok, err := store.UpdateUserRole(ctx, s.db, userID, role)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	s.log.InfoContext(ctx, "user role updated", "user_id", userID, "role", role, "admin_id", actor.UserID)
	return s.activeUser(ctx, userID)
}

// DeleteUser soft-deletes a user. Admins cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actor Actor, userID int64) error {
	if !actor.IsAdmin() {
		return ErrNotAdmin
	}
	if actor.UserID == userID {
		return invalid("cannot delete yourself")
	}
	ok, err := store.DeleteUser(ctx, s.db, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	s.log.InfoContext(ctx, "user deleted", "user_id", userID, "admin_id", actor.UserID)
	return nil
}
