package store

import (
	"fmt"

	"happyd/internal/model"
)

const pushSubscriptionColumns = "id, namespace, endpoint, p256dh, auth, created_at"

// PushSubscriptionInput is the caller-supplied part of a subscription; the
// endpoint is the natural key within a namespace.
type PushSubscriptionInput struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// AddPushSubscription upserts by (namespace, endpoint): re-subscribing a
// known endpoint replaces its credential material instead of erroring.
func (s *Store) AddPushSubscription(namespace string, sub PushSubscriptionInput) error {
	_, err := s.db.Exec(`
		INSERT INTO push_subscriptions (namespace, endpoint, p256dh, auth, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, endpoint)
		DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth,
			created_at = excluded.created_at`,
		namespace, sub.Endpoint, sub.P256dh, sub.Auth, nowMillis())
	if err != nil {
		return fmt.Errorf("upsert push subscription: %w", err)
	}
	return nil
}

func (s *Store) RemovePushSubscription(namespace, endpoint string) (bool, error) {
	res, err := s.db.Exec(
		"DELETE FROM push_subscriptions WHERE namespace = ? AND endpoint = ?",
		namespace, endpoint)
	if err != nil {
		return false, fmt.Errorf("delete push subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete push subscription: %w", err)
	}
	return affected > 0, nil
}

func (s *Store) GetPushSubscriptionsByNamespace(namespace string) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		"SELECT "+pushSubscriptionColumns+" FROM push_subscriptions WHERE namespace = ? ORDER BY created_at DESC",
		namespace)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	result := make([]model.PushSubscription, 0)
	for rows.Next() {
		var sub model.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.Namespace, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("list push subscriptions: %w", err)
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	return result, nil
}
