package api

import (
	"net/http"
	"time"

	"live_contest/internal/api/handler"
	"live_contest/internal/api/middleware"
	"live_contest/internal/app/service"
	"live_contest/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func NewRouter(
	tokens *security.TokenAuthority,
	live http.Handler,
	leaderboardService *service.LeaderboardService,
	leaderboardSize int,
	flusher handler.Flusher,
	log logrus.FieldLogger,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Long-lived participant connections; no request timeout here.
	r.Handle("/ws", live)

	// API v1 Routes
	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(middleware.RequestLogger(log))
		v1.Use(chiMiddleware.Timeout(60 * time.Second))
		v1.Use(jwtauth.Verifier(tokens.JWTAuth()))

		leaderboardHandler := handler.NewLeaderboardHandler(leaderboardService, leaderboardSize, log)
		v1.Route("/contests", leaderboardHandler.RegisterRoutes)

		flushHandler := handler.NewFlushHandler(flusher, log)
		v1.Route("/admin", flushHandler.RegisterRoutes)
	})

	return r
}
