package api

import (
	"errors"
	"net/http"

	"github.com/matheodrd/httphelper/handler"

	"pondwatch/internal/storage"
)

func (s *Server) listPonds() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		user, err := s.currentUser(r)
		if err != nil {
			return err
		}
		ownerID := &user.ID
		if user.IsAdmin {
			ownerID = nil
		}
		ponds, err := s.deps.Ponds.List(ownerID)
		if err != nil {
			return err
		}
		return respondJSON(w, http.StatusOK, ponds)
	})
}

func (s *Server) createPond() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		user, err := s.currentUser(r)
		if err != nil {
			return err
		}
		var req struct {
			Name     string `json:"name"`
			Location string `json:"location"`
		}
		if err := decodeJSON(r, &req); err != nil {
			return err
		}
		if req.Name == "" {
			return handler.NewErrWithStatus(http.StatusBadRequest, errors.New("pond name is required"))
		}
		pond, err := s.deps.Ponds.Create(user.ID, req.Name, req.Location)
		if err != nil {
			return err
		}
		return respondJSON(w, http.StatusCreated, pond)
	})
}

func (s *Server) getPond() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		user, err := s.currentUser(r)
		if err != nil {
			return err
		}
		id, err := pathID(r, "id")
		if err != nil {
			return err
		}
		pond, err := s.requirePondAccess(user, id)
		if err != nil {
			return err
		}
		return respondJSON(w, http.StatusOK, pond)
	})
}

func (s *Server) updatePond() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		user, err := s.currentUser(r)
		if err != nil {
			return err
		}
		id, err := pathID(r, "id")
		if err != nil {
			return err
		}
		pond, err := s.requirePondAccess(user, id)
		if err != nil {
			return err
		}

		var req struct {
			Name     *string `json:"name"`
			Location *string `json:"location"`
			Status   *string `json:"status"`
		}
		if err := decodeJSON(r, &req); err != nil {
			return err
		}
		if req.Name != nil {
			pond.Name = *req.Name
		}
		if req.Location != nil {
			pond.Location = *req.Location
		}
		if req.Status != nil {
			switch *req.Status {
			case storage.PondStatusActive, storage.PondStatusMaintenance, storage.PondStatusInactive:
				pond.Status = *req.Status
			default:
				return handler.NewErrWithStatus(http.StatusBadRequest, errors.New("invalid pond status"))
			}
		}

		updated, err := s.deps.Ponds.Update(pond)
		if err != nil {
			return err
		}
		return respondJSON(w, http.StatusOK, updated)
	})
}

func (s *Server) deletePond() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		user, err := s.currentUser(r)
		if err != nil {
			return err
		}
		id, err := pathID(r, "id")
		if err != nil {
			return err
		}
		if _, err := s.requirePondAccess(user, id); err != nil {
			return err
		}
		if err := s.deps.Ponds.Delete(id); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}

func (s *Server) listReadings() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		user, err := s.currentUser(r)
		if err != nil {
			return err
		}
		id, err := pathID(r, "id")
		if err != nil {
			return err
		}
		if _, err := s.requirePondAccess(user, id); err != nil {
			return err
		}

		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := parseLimit(raw)
			if err != nil {
				return err
			}
			limit = parsed
		}
		readings, err := s.deps.Readings.ListByPond(id, limit)
		if err != nil {
			return err
		}
		return respondJSON(w, http.StatusOK, readings)
	})
}
