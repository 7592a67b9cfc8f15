package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
	"fintrack/internal/stream"
)

// Users is the offline-first UserRepository. It also owns the local
// session, which records the signed-in user.
type Users struct {
	local Local
	inv   *stream.Invalidator
	now   func() time.Time
	sync  *reconciler[core.User]
}

var _ UserRepository = (*Users)(nil)

func NewUsers(local Local, remote sheets.Store[core.User], now func() time.Time) *Users {
	if now == nil {
		now = time.Now
	}
	r := &Users{local: local, inv: stream.NewInvalidator(), now: now}
	r.sync = &reconciler[core.User]{
		entity: core.EntityUser,
		local:  local,
		remote: remote,
		now:    now,
		key:    func(u core.User) (string, time.Time) { return u.ID, u.UpdatedAt },
		listUnsynced: func(ctx context.Context, userID string) ([]core.User, error) {
			u, err := local.GetUser(ctx, userID)
			if err != nil || u == nil || u.Synced {
				return nil, err
			}
			return []core.User{*u}, nil
		},
		markSynced:  local.MarkUserSynced,
		applyRemote: local.ApplyRemoteUser,
		changed:     r.inv.Invalidate,
	}
	return r
}

func (r *Users) Get(ctx context.Context, id string) *stream.Subscription[*core.User] {
	return stream.Watch(ctx, r.inv, func(ctx context.Context) (*core.User, error) {
		return r.local.GetUser(ctx, id)
	})
}

func (r *Users) Current(ctx context.Context) (*core.User, error) {
	id, err := r.local.SessionUserID(ctx)
	if err != nil || id == "" {
		return nil, err
	}
	return r.local.GetUser(ctx, id)
}

// SignIn stores u and makes it the session user.
func (r *Users) SignIn(ctx context.Context, u core.User) (core.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u, err := r.Update(ctx, u)
	if err != nil {
		return core.User{}, err
	}
	if err := r.local.SetSessionUserID(ctx, u.ID); err != nil {
		return core.User{}, err
	}
	return u, nil
}

func (r *Users) SignOut(ctx context.Context) error {
	if err := r.local.SetSessionUserID(ctx, ""); err != nil {
		return err
	}
	r.inv.Invalidate()
	return nil
}

func (r *Users) Update(ctx context.Context, u core.User) (core.User, error) {
	u.UpdatedAt = r.now()
	u.Synced = false
	if err := r.local.UpsertUser(ctx, u); err != nil {
		return core.User{}, err
	}
	r.inv.Invalidate()
	return u, nil
}

func (r *Users) UserData(ctx context.Context, userID string) (core.UserData, error) {
	return r.local.GetUserData(ctx, userID)
}

func (r *Users) SaveUserData(ctx context.Context, d core.UserData) error {
	return r.local.SaveUserData(ctx, d)
}

func (r *Users) Sync(ctx context.Context, userID string) (bool, error) {
	return r.sync.run(ctx, userID)
}
