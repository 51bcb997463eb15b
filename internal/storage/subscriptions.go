package storage

import (
	"path/filepath"
	"sync"
	"time"
)

// PushSubscription is one browser push endpoint registered by a user.
// A user may hold several (one per device/browser profile).
type PushSubscription struct {
	UserID    int64     `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}

type SubscriptionStore struct {
	mu   sync.Mutex
	path string
}

func NewSubscriptionStore(dir string) *SubscriptionStore {
	return &SubscriptionStore{path: filepath.Join(dir, "subscriptions.json")}
}

// Upsert registers a subscription, replacing any previous entry for the
// same endpoint.
func (s *SubscriptionStore) Upsert(sub PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := readCollection[PushSubscription](s.path)
	if err != nil {
		return err
	}

	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	for i, existing := range subs {
		if existing.Endpoint == sub.Endpoint {
			subs[i] = sub
			return writeCollection(s.path, subs)
		}
	}
	subs = append(subs, sub)
	return writeCollection(s.path, subs)
}

func (s *SubscriptionStore) ListByUser(userID int64) ([]PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := readCollection[PushSubscription](s.path)
	if err != nil {
		return nil, err
	}
	matched := make([]PushSubscription, 0)
	for _, sub := range subs {
		if sub.UserID == userID {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

// DeleteByEndpoint drops a subscription, e.g. after the push service
// reports it gone. Unknown endpoints are a no-op.
func (s *SubscriptionStore) DeleteByEndpoint(endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := readCollection[PushSubscription](s.path)
	if err != nil {
		return err
	}
	for i, sub := range subs {
		if sub.Endpoint == endpoint {
			subs = append(subs[:i], subs[i+1:]...)
			return writeCollection(s.path, subs)
		}
	}
	return nil
}
