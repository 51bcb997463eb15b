package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/matheodrd/httphelper/handler"

	"pondwatch/internal/auth"
	"pondwatch/internal/storage"
)

func respondJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	return nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return handler.NewErrWithStatus(http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, handler.NewErrWithStatus(http.StatusBadRequest, fmt.Errorf("invalid %s", name))
	}
	return id, nil
}

// currentUser resolves the Bearer token on the request to a stored user.
func (s *Server) currentUser(r *http.Request) (storage.User, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return storage.User{}, handler.NewErrWithStatus(http.StatusUnauthorized, errors.New("missing bearer token"))
	}
	userID, err := s.deps.Auth.Verify(token)
	if err != nil {
		return storage.User{}, handler.NewErrWithStatus(http.StatusUnauthorized, errors.New("invalid token"))
	}
	user, err := s.deps.Users.GetByID(userID)
	if err != nil {
		return storage.User{}, handler.NewErrWithStatus(http.StatusUnauthorized, errors.New("unknown user"))
	}
	return user, nil
}

// requirePondAccess loads a pond and checks the user may act on it.
// Admins may act on every pond, everyone else only on their own.
func (s *Server) requirePondAccess(user storage.User, pondID int64) (storage.Pond, error) {
	pond, err := s.deps.Ponds.GetByID(pondID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Pond{}, handler.NewErrWithStatus(http.StatusNotFound, errors.New("pond not found"))
	}
	if err != nil {
		return storage.Pond{}, err
	}
	if !user.IsAdmin && pond.OwnerID != user.ID {
		return storage.Pond{}, handler.NewErrWithStatus(http.StatusForbidden, errors.New("access denied to this pond"))
	}
	return pond, nil
}

func (s *Server) storageInfo() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		usersCount, err := s.deps.Users.Count()
		if err != nil {
			return err
		}
		pondsCount, err := s.deps.Ponds.Count()
		if err != nil {
			return err
		}
		return respondJSON(w, http.StatusOK, map[string]any{
			"storage_type": "json",
			"users_count":  usersCount,
			"ponds_count":  pondsCount,
			"status":       "healthy",
		})
	})
}

func (s *Server) wsStats() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return respondJSON(w, http.StatusOK, s.deps.Manager.Stats())
	})
}

type userResponse struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

func toUserResponse(u storage.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, IsAdmin: u.IsAdmin}
}

func (s *Server) register() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var req struct {
			Email    string `json:"email"`
			Name     string `json:"name"`
			Password string `json:"password"`
		}
		if err := decodeJSON(r, &req); err != nil {
			return err
		}
		if req.Email == "" || req.Password == "" {
			return handler.NewErrWithStatus(http.StatusBadRequest, errors.New("email and password are required"))
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return err
		}
		user, err := s.deps.Users.Create(req.Email, req.Name, hash)
		if errors.Is(err, storage.ErrEmailTaken) {
			return handler.NewErrWithStatus(http.StatusConflict, err)
		}
		if err != nil {
			return err
		}
		return respondJSON(w, http.StatusCreated, toUserResponse(user))
	})
}

func (s *Server) login() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeJSON(r, &req); err != nil {
			return err
		}

		user, err := s.deps.Users.GetByEmail(req.Email)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && !auth.CheckPassword(user.PasswordHash, req.Password)) {
			return handler.NewErrWithStatus(http.StatusUnauthorized, errors.New("invalid credentials"))
		}
		if err != nil {
			return err
		}

		token, err := s.deps.Auth.Issue(user.ID)
		if err != nil {
			return err
		}
		return respondJSON(w, http.StatusOK, map[string]any{
			"access_token": token,
			"token_type":   "bearer",
			"user":         toUserResponse(user),
		})
	})
}

func (s *Server) me() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		user, err := s.currentUser(r)
		if err != nil {
			return err
		}
		return respondJSON(w, http.StatusOK, toUserResponse(user))
	})
}
