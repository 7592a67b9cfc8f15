package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/repository"
)

// UserService resolves the session user and their local preferences.
type UserService struct {
	users repository.UserRepository
	sync  SyncRequester
}

func NewUserService(users repository.UserRepository, sync SyncRequester) *UserService {
	return &UserService{users: users, sync: sync}
}

// CurrentUser returns the signed-in user. It fails with
// core.ErrNotAuthenticated without a session and core.ErrEmailNotVerified
// when the address is unconfirmed.
func (s *UserService) CurrentUser(ctx context.Context) (core.User, error) {
	u, err := s.users.Current(ctx)
	if err != nil {
		return core.User{}, fmt.Errorf("load session: %w", err)
	}
	if u == nil {
		return core.User{}, core.ErrNotAuthenticated
	}
	if !u.EmailVerified {
		return core.User{}, core.ErrEmailNotVerified
	}
	return *u, nil
}

func (s *UserService) SignIn(ctx context.Context, u core.User) (core.User, error) {
	saved, err := s.users.SignIn(ctx, u)
	if err != nil {
		return core.User{}, fmt.Errorf("sign in: %w", err)
	}
	slog.InfoContext(ctx, "Signed in", applog.FieldUserID, saved.ID)
	if s.sync != nil {
		if err := s.sync.RequestSync(ctx, core.EntityUser, saved.ID); err != nil {
			slog.WarnContext(ctx, "Failed to request sync",
				applog.FieldEntity, string(core.EntityUser),
				applog.FieldError, err)
		}
	}
	return saved, nil
}

func (s *UserService) SignOut(ctx context.Context) error {
	return s.users.SignOut(ctx)
}

func (s *UserService) UserData(ctx context.Context, userID string) (core.UserData, error) {
	return s.users.UserData(ctx, userID)
}

func (s *UserService) UpdateUserData(ctx context.Context, d core.UserData) (core.UserData, error) {
	if err := s.users.SaveUserData(ctx, d); err != nil {
		return core.UserData{}, fmt.Errorf("save user data: %w", err)
	}
	return d, nil
}
