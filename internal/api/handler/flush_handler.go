package handler

import (
	"context"
	"net/http"

	"live_contest/internal/api/middleware"
	"live_contest/internal/app/worker"
	"live_contest/internal/common"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Flusher runs one submission flush cycle on demand.
type Flusher interface {
	RunOnce(ctx context.Context) (worker.FlushResult, error)
}

type FlushHandler struct {
	flusher Flusher
	log     logrus.FieldLogger
}

func NewFlushHandler(f Flusher, log logrus.FieldLogger) *FlushHandler {
	return &FlushHandler{flusher: f, log: log}
}

func (h *FlushHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Use(middleware.AdminOnly)
	r.Post("/flush", h.flush)
}

func (h *FlushHandler) flush(w http.ResponseWriter, r *http.Request) {
	res, err := h.flusher.RunOnce(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Manual flush failed")
		common.RespondWithError(w, common.HTTPStatusFromError(err), "flush failed: "+err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, res)
}
