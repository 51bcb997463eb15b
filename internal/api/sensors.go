package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/matheodrd/httphelper/handler"

	"pondwatch/internal/sensors"
	"pondwatch/internal/storage"
)

func parseLimit(raw string) (int, error) {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, handler.NewErrWithStatus(http.StatusBadRequest, errors.New("invalid limit"))
	}
	return limit, nil
}

func (s *Server) ingestReading() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		user, err := s.currentUser(r)
		if err != nil {
			return err
		}
		var req struct {
			PondID     int64          `json:"pond_id"`
			SensorType string         `json:"sensor_type"`
			Value      float64        `json:"value"`
			Metadata   map[string]any `json:"meta_data"`
		}
		if err := decodeJSON(r, &req); err != nil {
			return err
		}
		if _, err := s.requirePondAccess(user, req.PondID); err != nil {
			return err
		}

		reading, err := s.deps.Sensors.Ingest(r.Context(), sensors.Reading{
			PondID:     req.PondID,
			SensorType: req.SensorType,
			Value:      req.Value,
			Metadata:   req.Metadata,
			UserID:     &user.ID,
		})
		if errors.Is(err, sensors.ErrInvalidReading) {
			return handler.NewErrWithStatus(http.StatusBadRequest, err)
		}
		if errors.Is(err, storage.ErrNotFound) {
			return handler.NewErrWithStatus(http.StatusNotFound, errors.New("pond not found"))
		}
		if err != nil {
			return err
		}
		return respondJSON(w, http.StatusCreated, reading)
	})
}

func (s *Server) latestReadings() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		user, err := s.currentUser(r)
		if err != nil {
			return err
		}
		pondID, err := pathID(r, "pond_id")
		if err != nil {
			return err
		}
		if _, err := s.requirePondAccess(user, pondID); err != nil {
			return err
		}

		latest, err := s.deps.Cache.Latest(r.Context(), pondID)
		if err != nil {
			return fmt.Errorf("fetching latest readings: %w", err)
		}
		return respondJSON(w, http.StatusOK, latest)
	})
}
