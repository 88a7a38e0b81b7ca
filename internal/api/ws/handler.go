package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"live_contest/internal/app/service"
	"live_contest/internal/common/security"
	"live_contest/internal/platform/metrics"

	"github.com/go-chi/jwtauth/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Config struct {
	WriteTimeout   time.Duration
	ReadLimitBytes int64
}

// Handler upgrades participant connections and runs the contest protocol on
// them, one goroutine per connection.
type Handler struct {
	contests *service.ContestService
	tokens   *security.TokenAuthority
	registry *Registry
	upgrader websocket.Upgrader
	cfg      Config
	log      logrus.FieldLogger
}

func NewHandler(contests *service.ContestService, tokens *security.TokenAuthority, registry *Registry, cfg Config, log logrus.FieldLogger) *Handler {
	return &Handler{
		contests: contests,
		tokens:   tokens,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// participants connect from the contest web client on another origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cfg: cfg,
		log: log.WithField("component", "ws"),
	}
}

// ServeHTTP authenticates with ?token= (or an Authorization bearer header)
// and then reads messages until the client leaves or the socket drops.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = jwtauth.TokenFromHeader(r)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		h.log.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	identity, err := h.tokens.Verify(token)
	if err != nil {
		h.log.WithError(err).WithField("remote", r.RemoteAddr).Info("Rejected unauthenticated connection")
		h.reject(conn)
		return
	}

	s := newSession(conn, identity, h.cfg.WriteTimeout)
	logger := h.log.WithFields(logrus.Fields{"session_id": s.ID(), "user_id": identity.UserID})
	h.registry.add(s)
	defer func() {
		h.registry.remove(s)
		s.close(websocket.CloseNormalClosure, "")
		logger.Debug("Session closed")
	}()

	if h.cfg.ReadLimitBytes > 0 {
		conn.SetReadLimit(h.cfg.ReadLimitBytes)
	}
	if err := s.send(ok(TagConnected, map[string]any{
		"sessionId": s.ID(),
		"userId":    identity.UserID,
		"role":      identity.Role,
	})); err != nil {
		logger.WithError(err).Debug("Failed to greet session")
		return
	}
	logger.Debug("Session opened")

	ctx := r.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithError(err).Info("Connection dropped")
			}
			return
		}
		if leave := h.dispatch(ctx, s, raw, logger); leave {
			s.close(websocket.CloseNormalClosure, TagLeft)
			return
		}
	}
}

func (h *Handler) reject(conn *websocket.Conn) {
	deadline := time.Now().Add(h.cfg.WriteTimeout)
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.WriteJSON(fail(TagUnauthorized, nil))
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, TagUnauthorized), deadline)
	_ = conn.Close()
}

// dispatch handles one frame and reports whether the session should end.
func (h *Handler) dispatch(ctx context.Context, s *Session, raw []byte, logger logrus.FieldLogger) bool {
	msg, err := ParseMessage(raw)
	if err != nil {
		tag := TagInvalidMessage
		if errors.Is(err, ErrUnknownType) {
			tag = TagUnhandled
		}
		metrics.MessagesTotal.WithLabelValues("unknown", metrics.OutcomeInvalid).Inc()
		logger.WithError(err).Debug("Rejected client frame")
		h.reply(s, fail(tag, map[string]string{"detail": err.Error()}), logger)
		return false
	}

	var resp Response
	switch m := msg.(type) {
	case InitContest:
		resp = h.initContest(ctx, m, logger)
	case JoinContest:
		resp = h.joinContest(ctx, s, m, logger)
	case SubmitAnswer:
		resp = h.submitAnswer(ctx, s, m, logger)
	case LeaveContest:
		resp = ok(TagLeft, map[string]string{"contestId": s.ContestID()})
	default:
		resp = fail(TagUnhandled, nil)
	}

	metrics.MessagesTotal.WithLabelValues(string(msg.Type()), outcomeOf(resp)).Inc()
	h.reply(s, resp, logger)
	_, leaving := msg.(LeaveContest)
	return leaving
}

func (h *Handler) reply(s *Session, resp Response, logger logrus.FieldLogger) {
	if err := s.send(resp); err != nil {
		logger.WithError(err).Debug("Failed to write response")
	}
}

func (h *Handler) initContest(ctx context.Context, m InitContest, logger logrus.FieldLogger) Response {
	n, err := h.contests.InitContest(ctx, m.ContestID)
	if err != nil {
		return h.failure(err, nil, logger.WithField("contest_id", m.ContestID))
	}
	return ok(TagContestInitialized, map[string]any{"contestId": m.ContestID, "questions": n})
}

func (h *Handler) joinContest(ctx context.Context, s *Session, m JoinContest, logger logrus.FieldLogger) Response {
	res, err := h.contests.JoinContest(ctx, s.Identity().UserID, m.ContestID)
	if err != nil {
		return h.failure(err, nil, logger.WithField("contest_id", m.ContestID))
	}
	s.attach(m.ContestID)
	if res.Rejoined {
		return ok(TagRejoined, res)
	}
	return ok(TagJoined, res)
}

func (h *Handler) submitAnswer(ctx context.Context, s *Session, m SubmitAnswer, logger logrus.FieldLogger) Response {
	joined := s.ContestID()
	if joined == "" {
		return fail(TagNotInContest, nil)
	}
	if joined != m.ContestID {
		return fail(TagContestMismatch, map[string]string{"contestId": joined})
	}

	res, err := h.contests.SubmitAnswer(ctx, service.SubmitInput{
		ContestID:  m.ContestID,
		UserID:     s.Identity().UserID,
		QuestionID: m.QuestionID,
		Answer:     m.Answer,
	})
	if err != nil {
		logger = logger.WithFields(logrus.Fields{"contest_id": m.ContestID, "question_id": m.QuestionID})
		if res == nil {
			return h.failure(err, nil, logger)
		}
		return h.failure(err, res, logger)
	}
	if res.IsCorrect {
		return ok(TagCorrect, res)
	}
	return ok(TagIncorrect, res)
}

// failure maps a service error onto its tag. Expected outcomes are logged at
// debug; anything else is a dependency failure and surfaces its cause.
func (h *Handler) failure(err error, data any, logger logrus.FieldLogger) Response {
	tag := ""
	switch {
	case errors.Is(err, service.ErrContestAlreadyInitialized):
		tag = TagAlreadyInitialized
	case errors.Is(err, service.ErrSubmissionExists):
		tag = TagSubmissionExists
	case errors.Is(err, service.ErrNoQuestions):
		tag = TagNoQuestions
	case errors.Is(err, service.ErrQuestionNotFound):
		tag = TagQuestionNotFound
	case errors.Is(err, service.ErrNotInContest):
		tag = TagNotInContest
	case errors.Is(err, service.ErrContestMismatch):
		tag = TagContestMismatch
	case errors.Is(err, service.ErrInvalidID), errors.Is(err, service.ErrInvalidAnswer):
		tag = TagInvalidMessage
	}
	if tag != "" {
		logger.WithField("outcome", tag).Debug("Request not applied")
		return fail(tag, data)
	}
	logger.WithError(err).Error("Request failed")
	return fail(TagInternalPrefix+err.Error(), nil)
}

func outcomeOf(resp Response) string {
	switch {
	case resp.Success:
		return metrics.OutcomeOK
	case resp.Error == TagSubmissionExists, resp.Error == TagAlreadyInitialized:
		return metrics.OutcomeConflict
	case strings.HasPrefix(resp.Error, TagInternalPrefix):
		return metrics.OutcomeError
	default:
		return metrics.OutcomeInvalid
	}
}
