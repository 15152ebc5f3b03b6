package store

import (
	"database/sql"
	"fmt"

	"happyd/internal/model"
)

const userColumns = "id, platform, platform_user_id, namespace, created_at"

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Platform, &u.PlatformUserID, &u.Namespace, &u.CreatedAt)
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

// AddUser registers a user by its (platform, platformUserID) identity.
// A duplicate insert is a no-op and the existing row is returned, so the
// call is safe to retry.
func (s *Store) AddUser(platform, platformUserID, namespace string) (model.User, error) {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO users (platform, platform_user_id, namespace, created_at)
		VALUES (?, ?, ?, ?)`,
		platform, platformUserID, namespace, nowMillis())
	if err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}

	user, err := s.GetUser(platform, platformUserID)
	if err != nil {
		return model.User{}, err
	}
	if user == nil {
		return model.User{}, fmt.Errorf("user %s/%s vanished after insert", platform, platformUserID)
	}
	return *user, nil
}

// GetUser looks up by the globally unique (platform, platformUserID) pair;
// the lookup is intentionally not namespace-scoped.
func (s *Store) GetUser(platform, platformUserID string) (*model.User, error) {
	row := s.db.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE platform = ? AND platform_user_id = ? LIMIT 1",
		platform, platformUserID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUsersByPlatform(platform string) ([]model.User, error) {
	return s.queryUsers(
		"SELECT "+userColumns+" FROM users WHERE platform = ? ORDER BY created_at ASC",
		platform)
}

func (s *Store) GetUsersByPlatformAndNamespace(platform, namespace string) ([]model.User, error) {
	return s.queryUsers(
		"SELECT "+userColumns+" FROM users WHERE platform = ? AND namespace = ? ORDER BY created_at ASC",
		platform, namespace)
}

func (s *Store) queryUsers(query string, args ...any) ([]model.User, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	result := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return result, nil
}

func (s *Store) RemoveUser(platform, platformUserID string) (bool, error) {
	res, err := s.db.Exec(
		"DELETE FROM users WHERE platform = ? AND platform_user_id = ?",
		platform, platformUserID)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return affected > 0, nil
}
