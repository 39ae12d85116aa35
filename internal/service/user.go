// Package service holds the business rules. Services receive repository
// interfaces and collaborators through their constructors and never touch
// HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/auth"
	"github.com/sakif/cardbook/internal/mail"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

// AuthResult bundles a user with the access token issued for them.
type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

type UserService struct {
	users     repository.UserRepository
	messages  repository.MessageRepository
	bookmarks *BookmarkService
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	mailer    mail.Mailer
	resetURL  string
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	messages repository.MessageRepository,
	bookmarks *BookmarkService,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	mailer mail.Mailer,
	resetURL string,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		messages:  messages,
		bookmarks: bookmarks,
		tokens:    tokens,
		passwords: passwords,
		mailer:    mailer,
		resetURL:  resetURL,
		logger:    logger,
	}
}

var errBadCredentials = apperror.Unauthorized("invalid email or password")

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates the account and its bookmark list. If the list cannot be
// created the user is deleted again, so no account exists without one.
func (s *UserService) SignUp(ctx context.Context, in SignUpInput) (*AuthResult, error) {
	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
	}
	if err := s.createWithList(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("user", user.Email)
		}
		return nil, err
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID))
	return s.issue(user)
}

func (s *UserService) createWithList(ctx context.Context, user *model.User) error {
	if err := s.users.Create(ctx, user); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	if _, err := s.bookmarks.CreateDefaultList(ctx, user.ID); err != nil {
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			s.logger.Error("failed to roll back user without bookmark list",
				slog.String("userID", user.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return fmt.Errorf("creating bookmark list for user %s: %w", user.ID, err)
	}
	return nil
}

// Login answers Unauthorized for an unknown email, a wrong password and an
// account that only signs in with Google alike.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if user.PasswordHash == "" {
		return nil, errBadCredentials
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	return s.issue(user)
}

// LoginWithGoogle signs in the account with the Google email, creating it
// on first use.
func (s *UserService) LoginWithGoogle(ctx context.Context, gu *auth.GoogleUser) (*AuthResult, error) {
	if gu == nil {
		return nil, fmt.Errorf("google user must not be nil")
	}
	email := normalizeEmail(gu.Email)

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.issue(user)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	user = &model.User{Name: gu.Name, Email: email, AvatarURL: gu.Picture}
	if err := s.createWithList(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user signed up with Google", slog.String("userID", user.ID))
	return s.issue(user)
}

func (s *UserService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token for user %s: %w", user.ID, err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// ChangePassword requires the current password. Accounts created through
// Google have none and must use the reset mail instead.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" {
		return apperror.ValidationFailed("password", "this account has no password, use the reset mail to set one")
	}
	if err := s.passwords.Verify(user.PasswordHash, current); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return apperror.ValidationFailed("password", "current password is incorrect")
		}
		return err
	}
	return s.setPassword(ctx, userID, next)
}

func (s *UserService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return apperror.ValidationFailed("newPassword", err.Error())
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("updating password of user %s: %w", userID, err)
	}
	s.logger.Info("password changed", slog.String("userID", userID))
	return nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID, name, avatarURL string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if err := s.users.UpdateProfile(ctx, userID, name, strings.TrimSpace(avatarURL)); err != nil {
		return nil, fmt.Errorf("updating profile of user %s: %w", userID, err)
	}
	return s.users.GetByID(ctx, userID)
}

// SendResetMail mails a reset link when email belongs to an account. It
// reports success either way so the endpoint cannot be used to check for
// accounts; failures are only logged.
func (s *UserService) SendResetMail(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("reset mail: looking up user", slog.String("error", err.Error()))
		}
		return nil
	}

	token, err := s.tokens.GenerateReset(user.ID)
	if err != nil {
		s.logger.Error("reset mail: issuing token",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	link, err := resetLink(s.resetURL, token)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, mail.ResetPasswordMessage(user.Email, user.Name, link)); err != nil {
		s.logger.Error("reset mail: sending",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	s.logger.Info("reset mail sent", slog.String("userID", user.ID))
	return nil
}

func resetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing reset URL %q: %w", base, err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ResetPassword accepts only tokens issued by SendResetMail.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	userID, err := s.tokens.ValidateReset(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return apperror.Unauthorized("reset link expired, please request a new one")
		}
		return apperror.Unauthorized("reset link is invalid")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Unauthorized("reset link is invalid")
		}
		return err
	}
	return s.setPassword(ctx, userID, password)
}

func (s *UserService) Me(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *UserService) Navbar(ctx context.Context, userID string) (*model.Navbar, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.messages.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("counting unread messages: %w", err)
	}
	return &model.Navbar{Name: user.Name, AvatarURL: user.AvatarURL, UnreadCount: unread}, nil
}
