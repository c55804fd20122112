package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sub2play/internal/domain"
	"sub2play/internal/kv"

	"github.com/rs/zerolog"
)

type UserRepository struct {
	store  kv.Store
	logger zerolog.Logger
}

func NewUserRepository(store kv.Store, logger zerolog.Logger) *UserRepository {
	return &UserRepository{store: store, logger: logger}
}

// Create writes the user only if the username is free; AlreadyExists means
// the username is taken.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) (kv.PutResult, error) {
	attrs := kv.Attrs{
		"Id":             user.ID,
		"Email":          user.Email,
		"PasswordHash":   user.PasswordHash,
		"AvatarUrl":      user.AvatarURL,
		"Credits":        int64(user.Credits),
		"Type":           user.Type,
		"CreatedAtEpoch": time.Now().Unix(),
	}
	result, err := r.store.Put(ctx, userPK(user.Username), metaSK, attrs, true)
	if err != nil {
		return result, fmt.Errorf("create user: %w", err)
	}
	return result, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	attrs, err := r.store.Get(ctx, userPK(username), metaSK)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if attrs == nil {
		return nil, nil
	}
	return userFromAttrs(username, attrs), nil
}

// GetByID resolves a user by the server-generated id attribute. The store has
// no secondary index, so this is a filtered scan; ids are only resolved this
// way on low-volume paths.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	items, err := r.store.ScanWithFilter(ctx, "Id", id, 1)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	for _, item := range items {
		if item.SK != metaSK || !strings.HasPrefix(item.PK, "USER#") {
			continue
		}
		return userFromAttrs(strings.TrimPrefix(item.PK, "USER#"), item.Attrs), nil
	}
	return nil, nil
}

// UpdateAvatarURL sets or clears the user's avatar. An empty URL removes the
// attribute rather than storing an empty string.
func (r *UserRepository) UpdateAvatarURL(ctx context.Context, id, avatarURL string) (bool, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}

	set := kv.Attrs{}
	var remove []string
	if avatarURL != "" {
		set["AvatarUrl"] = avatarURL
	} else {
		remove = append(remove, "AvatarUrl")
	}
	if len(set) == 0 {
		set["UpdatedAtEpoch"] = time.Now().Unix()
	}

	if _, err := r.store.ConditionalUpdate(ctx, userPK(user.Username), metaSK, set, remove, nil); err != nil {
		return false, fmt.Errorf("update avatar: %w", err)
	}
	return true, nil
}

func userFromAttrs(username string, attrs kv.Attrs) *domain.User {
	created, _ := attrs.Int64("CreatedAtEpoch")
	return &domain.User{
		ID:           attrs.String("Id"),
		Username:     username,
		Email:        attrs.String("Email"),
		PasswordHash: attrs.String("PasswordHash"),
		AvatarURL:    attrs.String("AvatarUrl"),
		Credits:      attrs.Int("Credits"),
		Type:         attrs.String("Type"),
		CreatedAt:    created,
	}
}
