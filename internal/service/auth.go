package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"thumbexpert/internal/apperror"
	"thumbexpert/internal/auth"
	"thumbexpert/internal/catalog"
	"thumbexpert/internal/model"
	"thumbexpert/internal/store"
)

// ErrInvalidCredentials covers both an unknown email and a wrong password.
var ErrInvalidCredentials = apperror.Unauthorized("invalid credentials")

type AuthOptions struct {
	Users     store.Users
	Tokens    *auth.TokenService
	Passwords *auth.PasswordService
	Revoker   auth.Revoker
	Validator *Validator
	Logger    *slog.Logger
}

type AuthService struct {
	users     store.Users
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	revoker   auth.Revoker
	validator *Validator
	logger    *slog.Logger
}

// Session is the result of every successful sign-in.
type Session struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func NewAuthService(opts AuthOptions) *AuthService {
	v := opts.Validator
	if v == nil {
		v = NewValidator()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	revoker := opts.Revoker
	if revoker == nil {
		revoker = auth.NewMemoryRevoker()
	}

	return &AuthService{
		users:     opts.Users,
		tokens:    opts.Tokens,
		passwords: opts.Passwords,
		revoker:   revoker,
		validator: v,
		logger:    logger,
	}
}

func (s *AuthService) Register(ctx context.Context, reg model.Registration) (Session, error) {
	reg.FullName = strings.TrimSpace(reg.FullName)
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = normalizeEmail(reg.Email)
	if reg.Role == "" {
		reg.Role = string(catalog.RoleYouTuber)
	}
	if reg.PreferredLanguage == "" {
		reg.PreferredLanguage = string(catalog.LanguageEnglish)
	}

	if err := s.validator.Struct(reg); err != nil {
		return Session{}, err
	}
	if err := auth.CheckPolicy(reg.Password); err != nil {
		return Session{}, err
	}

	hash, err := s.passwords.Hash(reg.Password)
	if err != nil {
		return Session{}, err
	}

	user, err := s.users.CreateUser(ctx, model.User{
		Name:              reg.FullName,
		Username:          reg.Username,
		Email:             reg.Email,
		Plan:              model.PlanFree,
		ProfilePhoto:      reg.ProfilePhoto,
		Role:              reg.Role,
		PreferredLanguage: reg.PreferredLanguage,
		PasswordHash:      hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return Session{}, apperror.Conflict("An account with this email already exists.")
		}
		return Session{}, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Session{}, apperror.ValidationFailed("email", "Please enter both email and password.")
	}

	user, err := s.users.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = s.passwords.VerifyDecoy(password)
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("service/auth: looking up user: %w", err)
	}
	if user.PasswordHash == "" {
		_ = s.passwords.VerifyDecoy(password)
		return Session{}, ErrInvalidCredentials
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.issue(user)
}

// SocialLogin signs in the account matching the provider's email, creating it on first use.
func (s *AuthService) SocialLogin(ctx context.Context, profile auth.SocialProfile) (Session, error) {
	email := normalizeEmail(profile.Email)
	user, err := s.users.UserByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		name := strings.TrimSpace(profile.Name)
		if name == "" {
			name, _, _ = strings.Cut(email, "@")
		}
		user, err = s.users.CreateUser(ctx, model.User{
			Name:              name,
			Username:          name,
			Email:             email,
			Plan:              model.PlanFree,
			ProfilePhoto:      profile.Picture,
			Role:              string(catalog.RoleYouTuber),
			PreferredLanguage: string(catalog.LanguageEnglish),
		})
		if err != nil {
			return Session{}, fmt.Errorf("service/auth: creating %s user: %w", profile.Provider, err)
		}
		s.logger.Info("user registered via social login",
			slog.String("userID", user.ID),
			slog.String("provider", profile.Provider),
		)
	default:
		return Session{}, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, userID string) (model.User, error) {
	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.User{}, apperror.Unauthorized("account no longer exists")
		}
		return model.User{}, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	return user, nil
}

// Logout revokes the presented token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims auth.Claims) error {
	if err := s.revoker.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("service/auth: revoking token: %w", err)
	}
	return nil
}

// Upgrade moves the account to Premium. Upgrading a Premium account is a no-op.
func (s *AuthService) Upgrade(ctx context.Context, userID string) (model.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	if user.Premium() {
		return user, nil
	}

	user.Plan = model.PlanPremium
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return model.User{}, fmt.Errorf("service/auth: upgrading user %s: %w", userID, err)
	}
	s.logger.Info("user upgraded", slog.String("userID", userID))
	return user, nil
}

func (s *AuthService) issue(user model.User) (Session, error) {
	token, _, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("service/auth: issuing token for %s: %w", user.ID, err)
	}
	return Session{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
