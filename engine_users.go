package phonauth

import (
	"context"
	"errors"

	"github.com/phonetica/phonauth/internal/flows"
)

// userStore adapts a UserRepository to the flow-local user model.
type userStore struct {
	repo UserRepository
}

func (s userStore) FindByEmail(ctx context.Context, email string) (flows.UserRecord, bool, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return flows.UserRecord{}, false, nil
		}
		return flows.UserRecord{}, false, err
	}
	return toFlowUser(u), true, nil
}

func (s userStore) Create(ctx context.Context, user flows.UserRecord) (flows.UserRecord, error) {
	u, err := s.repo.Create(ctx, fromFlowUser(user))
	if err != nil {
		return flows.UserRecord{}, err
	}
	return toFlowUser(u), nil
}

func (s userStore) Save(ctx context.Context, user flows.UserRecord) error {
	return s.repo.Save(ctx, fromFlowUser(user))
}

func toFlowUser(u User) flows.UserRecord {
	return flows.UserRecord{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		PasswordHash:   u.PasswordHash,
		Timezone:       u.Timezone,
		NativeLanguage: u.NativeLanguage,
		HasAccess:      u.HasAccess,
		CreatedAt:      u.CreatedAt,
		LastLogin:      u.LastLogin,
		LastActive:     u.LastActive,
	}
}

func fromFlowUser(u flows.UserRecord) User {
	return User{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		PasswordHash:   u.PasswordHash,
		Timezone:       u.Timezone,
		NativeLanguage: u.NativeLanguage,
		HasAccess:      u.HasAccess,
		CreatedAt:      u.CreatedAt,
		LastLogin:      u.LastLogin,
		LastActive:     u.LastActive,
	}
}

func fromFlowLogin(res flows.LoginResult) *LoginResult {
	return &LoginResult{
		User:             fromFlowUser(res.User),
		Access:           AccessToken(res.Access),
		RefreshToken:     res.RefreshToken,
		RefreshExpiresAt: res.RefreshExpiresAt,
	}
}
