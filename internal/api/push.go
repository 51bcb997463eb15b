package api

import (
	"errors"
	"net/http"

	"github.com/matheodrd/httphelper/handler"

	"pondwatch/internal/storage"
)

func (s *Server) vapidKey() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return respondJSON(w, http.StatusOK, map[string]string{
			"public_key": s.deps.Push.PublicKey(),
		})
	})
}

func (s *Server) pushSubscribe() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		user, err := s.currentUser(r)
		if err != nil {
			return err
		}

		// Matches the subscription object the browser Push API hands to
		// the frontend.
		var req struct {
			Endpoint string `json:"endpoint"`
			Keys     struct {
				P256dh string `json:"p256dh"`
				Auth   string `json:"auth"`
			} `json:"keys"`
		}
		if err := decodeJSON(r, &req); err != nil {
			return err
		}
		if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
			return handler.NewErrWithStatus(http.StatusBadRequest, errors.New("incomplete push subscription"))
		}

		err = s.deps.Push.Subscribe(storage.PushSubscription{
			UserID:   user.ID,
			Endpoint: req.Endpoint,
			P256dh:   req.Keys.P256dh,
			Auth:     req.Keys.Auth,
		})
		if err != nil {
			return err
		}
		return respondJSON(w, http.StatusCreated, map[string]string{"status": "subscribed"})
	})
}
