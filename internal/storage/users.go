package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

const userColumns = `id, email, display_name, email_verified, updated_at, synced`

func scanUser(s rowScanner) (core.User, error) {
	var (
		u                         core.User
		verified, updated, synced int64
	)
	if err := s.Scan(&u.ID, &u.Email, &u.DisplayName, &verified, &updated, &synced); err != nil {
		return core.User{}, err
	}
	u.EmailVerified = verified != 0
	u.UpdatedAt = fromNanos(updated)
	u.Synced = synced != 0
	return u, nil
}

// GetUser returns the user with id, or nil.
func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (*core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

// UpsertUser inserts or replaces a user row.
func (r *SQLiteRepository) UpsertUser(ctx context.Context, u core.User) error {
	return upsertUser(ctx, r.db, u)
}

func upsertUser(ctx context.Context, q querier, u core.User) error {
	_, err := q.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			email_verified = excluded.email_verified,
			updated_at = excluded.updated_at,
			synced = excluded.synced`,
		u.ID, u.Email, u.DisplayName, boolToInt(u.EmailVerified), toNanos(u.UpdatedAt), boolToInt(u.Synced))
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

// MarkUserSynced flags the user row as pushed unless it changed after updatedAt.
func (r *SQLiteRepository) MarkUserSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET synced = 1 WHERE id = ? AND updated_at = ?`,
		id, toNanos(updatedAt))
	if err != nil {
		return false, fmt.Errorf("mark user %s synced: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark user %s synced: %w", id, err)
	}
	return n > 0, nil
}

// ApplyRemoteUser stores a pulled user when the local row is absent, or
// synced and older.
func (r *SQLiteRepository) ApplyRemoteUser(ctx context.Context, u core.User) (bool, error) {
	applied := false
	err := r.withTx(ctx, func(q querier) error {
		ok, err := canApplyRemote(ctx, q, "users", core.EntityUser, u.ID, u.UpdatedAt)
		if err != nil || !ok {
			return err
		}
		u.Synced = true
		applied = true
		return upsertUser(ctx, q, u)
	})
	return applied, err
}

// SessionUserID returns the signed-in user id, or "" when signed out.
func (r *SQLiteRepository) SessionUserID(ctx context.Context) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM session WHERE slot = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}
	return id, nil
}

// SetSessionUserID signs userID in; an empty id signs out.
func (r *SQLiteRepository) SetSessionUserID(ctx context.Context, userID string) error {
	var err error
	if userID == "" {
		_, err = r.db.ExecContext(ctx, `DELETE FROM session`)
	} else {
		_, err = r.db.ExecContext(ctx, `INSERT INTO session (slot, user_id) VALUES (1, ?)
			ON CONFLICT(slot) DO UPDATE SET user_id = excluded.user_id`, userID)
	}
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// GetUserData returns the user's local preferences. Missing rows yield the
// zero preferences for userID.
func (r *SQLiteRepository) GetUserData(ctx context.Context, userID string) (core.UserData, error) {
	d := core.UserData{UserID: userID}
	var onboarded int64
	err := r.db.QueryRowContext(ctx, `SELECT theme, locale, currency, onboarding_completed
		FROM user_data WHERE user_id = ?`, userID).Scan(&d.Theme, &d.Locale, &d.Currency, &onboarded)
	if errors.Is(err, sql.ErrNoRows) {
		return d, nil
	}
	if err != nil {
		return core.UserData{}, fmt.Errorf("get user data: %w", err)
	}
	d.OnboardingCompleted = onboarded != 0
	return d, nil
}

// SaveUserData stores the user's local preferences.
func (r *SQLiteRepository) SaveUserData(ctx context.Context, d core.UserData) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_data (user_id, theme, locale, currency, onboarding_completed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			theme = excluded.theme,
			locale = excluded.locale,
			currency = excluded.currency,
			onboarding_completed = excluded.onboarding_completed`,
		d.UserID, d.Theme, d.Locale, d.Currency, boolToInt(d.OnboardingCompleted))
	if err != nil {
		return fmt.Errorf("save user data: %w", err)
	}
	return nil
}
