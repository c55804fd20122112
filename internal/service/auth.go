package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"sub2play/internal/apperr"
	"sub2play/internal/constants"
	"sub2play/internal/domain"
	"sub2play/internal/kv"
	"sub2play/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type AuthService struct {
	userRepo *repository.UserRepository
	logger   zerolog.Logger
}

func NewAuthService(userRepo *repository.UserRepository, logger zerolog.Logger) *AuthService {
	return &AuthService{userRepo: userRepo, logger: logger}
}

type SignupInput struct {
	Username string
	Email    string
	Password string
}

// Signup registers a user keyed by username. The store rejects a second
// write to the same username, so two racing signups resolve to one account.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, apperr.New(apperr.KindValidation, "username and password required")
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hashPassword(in.Password),
		Credits:      constants.SignupCredits,
		Type:         "User",
		CreatedAt:    time.Now().Unix(),
	}

	result, err := s.userRepo.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	if result == kv.AlreadyExists {
		return nil, apperr.New(apperr.KindConflict, "username already taken")
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", username).Msg("user registered")
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.New(apperr.KindValidation, "username and password required")
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(hashPassword(password))) != 1 {
		return nil, apperr.New(apperr.KindNotFound, "invalid username or password")
	}
	return user, nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, apperr.New(apperr.KindValidation, "user id required")
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	return user, nil
}

// UpdateAvatar sets the avatar url, or clears it when empty.
func (s *AuthService) UpdateAvatar(ctx context.Context, id, avatarURL string) error {
	if id == "" {
		return apperr.New(apperr.KindValidation, "user id required")
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	found, err := s.userRepo.UpdateAvatarURL(ctx, id, avatarURL)
	if err != nil {
		return err
	}
	if !found {
		return apperr.New(apperr.KindNotFound, "user not found")
	}
	return nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
