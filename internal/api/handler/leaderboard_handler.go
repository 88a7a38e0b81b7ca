package handler

import (
	"net/http"
	"strconv"

	"live_contest/internal/api/middleware"
	"live_contest/internal/app/service"
	"live_contest/internal/common"
	"live_contest/internal/domain/model"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const maxLeaderboardLimit = 100

type LeaderboardHandler struct {
	leaderboard  *service.LeaderboardService
	defaultLimit int
	log          logrus.FieldLogger
}

func NewLeaderboardHandler(ls *service.LeaderboardService, defaultLimit int, log logrus.FieldLogger) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: ls, defaultLimit: defaultLimit, log: log}
}

func (h *LeaderboardHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Get("/{contestID}/leaderboard", h.getLeaderboard)
}

func (h *LeaderboardHandler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	contestID := chi.URLParam(r, "contestID")
	if !model.ValidID(contestID) {
		common.RespondWithError(w, http.StatusBadRequest, "invalid contest id")
		return
	}

	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxLeaderboardLimit {
			common.RespondWithError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxLeaderboardLimit))
			return
		}
		limit = n
	}

	standing, err := h.leaderboard.Standing(r.Context(), contestID, identity.UserID, limit)
	if err != nil {
		h.log.WithError(err).WithField("contest_id", contestID).Error("Failed to read leaderboard")
		common.RespondWithError(w, common.HTTPStatusFromError(err), "failed to read leaderboard")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, standing)
}
