package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sync"
	"unicode/utf8"

	"github.com/schooldesk/schooldesk/internal/config"
	"github.com/schooldesk/schooldesk/internal/database/users"
	"github.com/schooldesk/schooldesk/internal/entities"
)

// UserStore is the credential store the service reads and writes.
// Implemented by users.Repository.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	Create(ctx context.Context, user *entities.User) error
	Upsert(ctx context.Context, user *entities.User, updateCredentials bool) (*entities.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	Count(ctx context.Context) (int64, error)
}

var _ UserStore = (*users.Repository)(nil)

// Service handles credential checks and user provisioning.
type Service struct {
	users  UserStore
	params Argon2Params
	config config.Auth

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new authentication service.
func NewService(store UserStore, cfg config.Auth) *Service {
	return &Service{
		users:  store,
		params: ParamsFromConfig(cfg),
		config: cfg,
	}
}

// Authenticate validates an email and password against the credential store.
// All credential failures return ErrInvalidCredentials; only store failures
// surface as other errors. The returned user never carries a password hash.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entities.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			s.equalizeTiming(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.HasPassword() {
		s.equalizeTiming(password)
		return nil, ErrInvalidCredentials
	}

	if !VerifyPassword(password, *user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return user.Sanitized(), nil
}

// equalizeTiming runs one verification against a throwaway hash so a miss
// on the email lookup costs about as much as a wrong password.
func (s *Service) equalizeTiming(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = HashPassword("timing-equalizer", s.params)
	})
	VerifyPassword(password, s.dummyHash)
}

// LocalUserInput describes an account to create or update with a password.
type LocalUserInput struct {
	ID        string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      entities.UserRole
}

// CreateLocalUser creates a password-enabled account or, when an account
// with the same ID or email exists, replaces its password, role and profile.
func (s *Service) CreateLocalUser(ctx context.Context, in LocalUserInput) (*entities.User, error) {
	email := entities.NormalizeEmail(in.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, NewValidationError("email", "must be a valid email address")
	}
	if in.Password == "" {
		return nil, ErrPasswordRequired
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	role := in.Role
	if role == "" {
		role = entities.UserRoleAdmin
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	id := in.ID
	if id == "" {
		existing, err := s.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			id = existing.ID
		case errors.Is(err, users.ErrNotFound):
		default:
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
	}

	hash, err := HashPassword(in.Password, s.params)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		ID:           id,
		Email:        &email,
		PasswordHash: &hash,
		FirstName:    entities.StringPtr(in.FirstName),
		LastName:     entities.StringPtr(in.LastName),
		Role:         role,
	}

	if user.ID == "" {
		if err := s.users.Create(ctx, user); err != nil {
			return nil, mapStoreError(err)
		}
		return user.Sanitized(), nil
	}

	saved, err := s.users.Upsert(ctx, user, true)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return saved.Sanitized(), nil
}

// HostedProfile is the subset of identity-provider claims stored on the user.
type HostedProfile struct {
	Subject         string
	Email           string
	FirstName       string
	LastName        string
	ProfileImageURL string
}

// UpsertHostedUser creates or refreshes the account for a hosted identity.
// The subject becomes the user ID. Existing roles are preserved; new
// accounts get the configured default role.
func (s *Service) UpsertHostedUser(ctx context.Context, p HostedProfile) (*entities.User, error) {
	if p.Subject == "" {
		return nil, NewValidationError("sub", "is required")
	}

	role := entities.UserRole(s.config.DefaultRole)
	if !role.Valid() {
		role = entities.UserRoleAdmin
	}

	user := &entities.User{
		ID:              p.Subject,
		Email:           entities.StringPtr(entities.NormalizeEmail(p.Email)),
		FirstName:       entities.StringPtr(p.FirstName),
		LastName:        entities.StringPtr(p.LastName),
		ProfileImageURL: entities.StringPtr(p.ProfileImageURL),
		Role:            role,
	}

	saved, err := s.users.Upsert(ctx, user, false)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return saved.Sanitized(), nil
}

// GetUserByID retrieves a user by ID without its password hash.
func (s *Service) GetUserByID(ctx context.Context, id string) (*entities.User, error) {
	if id == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return user.Sanitized(), nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return mapStoreError(err)
	}
	if !user.HasPassword() || !VerifyPassword(oldPassword, *user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	hash, err := HashPassword(newPassword, s.params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return mapStoreError(s.users.UpdatePasswordHash(ctx, userID, hash))
}

// HasUsers returns true if any users exist in the database.
func (s *Service) HasUsers(ctx context.Context) (bool, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, users.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, users.ErrEmailTaken):
		return ErrUserExists
	default:
		return err
	}
}
