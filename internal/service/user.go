// Package service contains the business logic layer of the application.
//
// Handlers parse HTTP and write responses; services validate input, enforce
// the rules, and orchestrate repositories and helpers; repositories talk to
// the database. Services accept primitives and return domain errors, never
// HTTP types, so the same logic would serve a CLI or a different transport
// unchanged.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/places-api/internal/apperror"
	"github.com/sakif/places-api/internal/auth"
	"github.com/sakif/places-api/internal/model"
	"github.com/sakif/places-api/internal/repository"
)

// Validation constants.
const (
	MaxNameLength     = 100
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit. Checked here so an
	// oversized password is a validation failure, not an internal error.
	MaxPasswordLength = 72
)

// defaultAvatar is the profile image used when signup includes no upload.
const defaultAvatar = "https://upload.wikimedia.org/wikipedia/commons/7/7c/Profile_avatar_placeholder_large.png"

// invalidCredentials is the one message every failed login gets, whether the
// email is unknown or the password is wrong. Distinguishing the two would let
// an attacker enumerate accounts.
const invalidCredentials = "invalid credentials, could not log you in"

// UserService handles signup, login, and user listing.
type UserService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewUserService creates a UserService with all required dependencies.
func NewUserService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult is returned by Signup and Login. It bundles the user record and
// the issued JWT so the handler can respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Signup registers a new account and logs it in.
//
// The plaintext password is hashed before anything is stored and is never
// logged. A duplicate email surfaces as apperror.ErrConflict straight from
// the repository's uniqueness constraint; there is no pre-check, so there is
// no window for two concurrent signups to both pass.
func (s *UserService) Signup(ctx context.Context, name, email, password, image string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if len(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	if !validEmail(email) {
		return nil, apperror.ValidationFailed("email", "a valid email is required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/user: hashing password: %w", err)
	}

	if image == "" {
		image = defaultAvatar
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Image:        image,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: creating user: %w", err)
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/user: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies credentials and issues a fresh token.
//
// Both "no such email" and "wrong password" come back as the same
// apperror.ErrUnauthorized with the same message.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/user: looking up user: %w", err)
	}

	ok, err := s.passwords.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("service/user: verifying password: %w", err)
	}
	if !ok {
		return nil, apperror.Unauthorized(invalidCredentials)
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/user: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

// List returns all registered users. Password hashes stay out of responses
// via the model's `json:"-"` tag.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/user: listing users: %w", err)
	}
	return users, nil
}

// GetByID returns a single user.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetByID(ctx, id)
}

// normalizeEmail lowercases and trims the login key so lookups and the
// uniqueness constraint are case-insensitive in practice.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmail is a sanity check, not RFC 5322 enforcement: something before
// an "@", something after, no spaces.
func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}
