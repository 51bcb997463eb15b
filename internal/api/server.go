package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"pondwatch/internal/auth"
	"pondwatch/internal/cache"
	"pondwatch/internal/config"
	"pondwatch/internal/metrics"
	"pondwatch/internal/push"
	"pondwatch/internal/sensors"
	"pondwatch/internal/storage"
	"pondwatch/internal/ws"
)

type Deps struct {
	Manager  *ws.Manager
	Auth     *auth.Authenticator
	Users    *storage.UserStore
	Ponds    *storage.PondStore
	Readings *storage.ReadingStore
	Sensors  *sensors.Service
	Push     *push.Service
	Cache    *cache.RedisReadingCache
	Metrics  *metrics.Metrics
}

type Server struct {
	Config *config.Config
	logger *slog.Logger
	deps   Deps
}

func NewServer(config *config.Config, logger *slog.Logger, deps Deps) *Server {
	return &Server{
		Config: config,
		logger: logger,
		deps:   deps,
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate;")
	if _, err := w.Write([]byte("API server is started.")); err != nil {
		s.logger.Error(fmt.Sprintf("Error writing response: %v", err))
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /storage-info", s.storageInfo())
	mux.HandleFunc("GET /ws/stats", s.wsStats())
	mux.Handle("GET /metrics", s.deps.Metrics.Handler())

	mux.HandleFunc("GET /ws/{pond_id}", s.wsHandler())

	mux.HandleFunc("POST /api/v1/auth/register", s.register())
	mux.HandleFunc("POST /api/v1/auth/login", s.login())
	mux.HandleFunc("GET /api/v1/auth/me", s.me())

	mux.HandleFunc("GET /api/v1/ponds", s.listPonds())
	mux.HandleFunc("POST /api/v1/ponds", s.createPond())
	mux.HandleFunc("GET /api/v1/ponds/{id}", s.getPond())
	mux.HandleFunc("PUT /api/v1/ponds/{id}", s.updatePond())
	mux.HandleFunc("DELETE /api/v1/ponds/{id}", s.deletePond())
	mux.HandleFunc("GET /api/v1/ponds/{id}/readings", s.listReadings())

	mux.HandleFunc("POST /api/v1/sensors/data", s.ingestReading())
	mux.HandleFunc("GET /api/v1/sensors/latest/{pond_id}", s.latestReadings())

	mux.HandleFunc("GET /api/v1/push/vapid-key", s.vapidKey())
	mux.HandleFunc("POST /api/v1/push/subscribe", s.pushSubscribe())

	mux.HandleFunc("POST /api/v1/media", s.uploadMedia())
	mux.HandleFunc("GET /api/v1/media/{id}", s.getMedia())

	return mux
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    net.JoinHostPort(s.Config.APIServerHost, s.Config.APIServerPort),
		Handler: s.routes(),
	}

	go func() {
		s.logger.Info("API server is running", "port", s.Config.APIServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server failed to listen and serve", "error", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("API server failed to shutdown", "error", err)
		}
	}()

	wg.Wait()
	return nil
}
