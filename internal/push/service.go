// Package push delivers web push notifications to subscribed browsers
// via VAPID.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"pondwatch/internal/storage"
)

// Notification is the payload handed to the service worker on the
// client; Data rides along for deep links.
type Notification struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Tag   string         `json:"tag,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

type Service struct {
	logger     *slog.Logger
	subs       *storage.SubscriptionStore
	publicKey  string
	privateKey string
	subscriber string
}

// New builds the push service. Missing VAPID keys are generated on the
// fly: fine for development, but generated keys invalidate existing
// subscriptions on every restart, so deployments should pin them.
func New(logger *slog.Logger, subs *storage.SubscriptionStore, publicKey, privateKey, subscriber string) (*Service, error) {
	if publicKey == "" || privateKey == "" {
		var err error
		privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
		if err != nil {
			return nil, fmt.Errorf("generating VAPID keys: %w", err)
		}
		logger.Warn("VAPID keys not configured, generated ephemeral pair", "public_key", publicKey)
	}
	return &Service{
		logger:     logger,
		subs:       subs,
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
	}, nil
}

// PublicKey is what clients need to create a push subscription.
func (s *Service) PublicKey() string {
	return s.publicKey
}

func (s *Service) Subscribe(sub storage.PushSubscription) error {
	return s.subs.Upsert(sub)
}

// NotifyUser pushes a notification to every subscription the user holds.
// Subscriptions the push gateway reports gone are pruned; other per-
// subscription failures are logged and skipped so one dead endpoint
// cannot block the rest.
func (s *Service) NotifyUser(ctx context.Context, userID int64, n Notification) error {
	subs, err := s.subs.ListByUser(userID)
	if err != nil {
		return fmt.Errorf("listing subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshalling notification: %w", err)
	}

	for _, sub := range subs {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}, &webpush.Options{
			Subscriber:      s.subscriber,
			VAPIDPublicKey:  s.publicKey,
			VAPIDPrivateKey: s.privateKey,
			TTL:             60,
		})
		if err != nil {
			s.logger.Warn("push delivery failed", "user_id", userID, "error", err)
			continue
		}
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			s.logger.Info("pruning gone push subscription", "user_id", userID)
			if err := s.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				s.logger.Warn("failed to prune subscription", "error", err)
			}
		}
		_ = resp.Body.Close()
	}
	return nil
}
