package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sitskillbridge/skillbridge-backend/internal/assessment"
	"github.com/sitskillbridge/skillbridge-backend/internal/config"
	"github.com/sitskillbridge/skillbridge-backend/internal/events"
	"github.com/sitskillbridge/skillbridge-backend/internal/metrics"
	"github.com/sitskillbridge/skillbridge-backend/internal/middleware"
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/proctor"
	"github.com/sitskillbridge/skillbridge-backend/internal/response"
	"github.com/sitskillbridge/skillbridge-backend/internal/service"
	ws "github.com/sitskillbridge/skillbridge-backend/internal/websocket"
)

// LoginRedirect is where a terminated client is sent.
const LoginRedirect = "/login"

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a proctored assessment over a WebSocket.
type WSHandler struct {
	rdb         *redis.Client
	assessments *service.AssessmentService
	metrics     *metrics.Metrics
	policy      proctor.Policy
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	rdb *redis.Client,
	assessments *service.AssessmentService,
	m *metrics.Metrics,
	policy proctor.Policy,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		rdb:         rdb,
		assessments: assessments,
		metrics:     m,
		policy:      policy,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// stream is the per-connection state of one assessment stream.
type stream struct {
	h       *WSHandler
	conn    *ws.Conn
	session *service.UserSession
	userID  string
	test    *model.ActiveTest
	state   *assessment.State
	monitor *proctor.Monitor
	log     zerolog.Logger
}

// AssessmentStream godoc
// WS /ws/assessment/stream?token=<jwt>
// Upgrades to WebSocket for autosave, proctoring and grading of the caller's
// active test.
func (h *WSHandler) AssessmentStream(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	wsConn := ws.NewConn(conn)
	defer wsConn.Close()

	ctx := context.WithoutCancel(c.Request.Context())
	userID := session.CurrentUser().ID
	wsLog := h.log.With().Str("user_id", userID).Logger()

	test, err := h.assessments.ActiveTest(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveTest) {
			wsConn.WriteError(string(response.ErrNoActiveTest), response.GetMessage(response.ErrNoActiveTest))
			return
		}
		wsLog.Error().Err(err).Msg("Load active test failed")
		wsConn.WriteError(string(response.ErrInternal), response.GetMessage(response.ErrInternal))
		return
	}

	state, err := assessment.NewState(test.Questions)
	if err != nil {
		wsConn.WriteError(string(response.ErrQuestionsUnavailable), response.GetMessage(response.ErrQuestionsUnavailable))
		return
	}
	saved, err := h.assessments.SavedAnswers(ctx, userID)
	if err != nil {
		wsLog.Warn().Err(err).Msg("Load autosaved answers failed")
	}
	state.Restore(saved)

	s := &stream{
		h:       h,
		conn:    wsConn,
		session: session,
		userID:  userID,
		test:    test,
		state:   state,
		log:     wsLog,
	}
	s.monitor = proctor.New(h.policy, session, s, proctor.WithLogger(wsLog))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.monitor.Run(runCtx)
	defer s.monitor.Close()

	h.metrics.ActiveSessions.Inc()
	defer h.metrics.ActiveSessions.Dec()

	wsLog.Info().Int("questions", len(test.Questions)).Msg("Assessment stream connected")

	for {
		action, data, err := wsConn.ReadRequest()
		if err != nil {
			if errors.Is(err, ws.ErrMalformed) {
				wsConn.WriteError(string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		if action != ws.ActionPing && !session.IsAuthenticated() {
			wsConn.WriteError(string(response.ErrSessionTerminated), response.GetMessage(response.ErrSessionTerminated))
			continue
		}

		switch action {
		case ws.ActionStart:
			s.handleStart(ctx)
		case ws.ActionAnswer:
			s.handleAnswer(ctx, data)
		case ws.ActionVisibility:
			var req ws.VisibilityRequest
			if s.decode(data, &req) {
				s.monitor.ReportVisibility(req.Hidden)
			}
		case ws.ActionPresence:
			var req ws.PresenceRequest
			if s.decode(data, &req) {
				s.monitor.ReportPresence(req.Present)
			}
		case ws.ActionAck:
			s.monitor.Acknowledge()
		case ws.ActionSubmit:
			s.handleSubmit(ctx)
		case ws.ActionRetake:
			s.handleRetake(ctx)
		case ws.ActionPing:
			s.write(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
			wsConn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(action))
		}
	}
}

func (s *stream) handleStart(ctx context.Context) {
	s.monitor.Start()
	s.h.assessments.Publish(ctx, events.New(events.TypeStarted, s.userID, map[string]any{
		"domain":    s.test.Domain,
		"questions": len(s.test.Questions),
	}))
	s.write(ws.StartedResponse{
		Event:         ws.EventStarted,
		Domain:        s.test.Domain,
		Questions:     s.test.Public(),
		Answers:       s.state.Answers(),
		MaxViolations: s.monitor.Policy().MaxViolations,
	})
}

func (s *stream) handleAnswer(ctx context.Context, data []byte) {
	var req ws.AnswerRequest
	if !s.decode(data, &req) {
		return
	}
	if req.Index == nil || req.Option == "" {
		s.conn.WriteError(string(response.ErrInvalidAnswer), "index and option are required")
		return
	}

	if err := s.state.Record(*req.Index, req.Option); err != nil {
		s.conn.WriteError(string(response.ErrInvalidAnswer), response.GetMessage(response.ErrInvalidAnswer))
		return
	}

	if err := s.h.assessments.SaveAnswer(ctx, s.userID, *req.Index, req.Option); err != nil {
		s.log.Error().Err(err).Int("index", *req.Index).Msg("Autosave Redis error")
		s.conn.WriteError(string(response.ErrInternal), "save failed")
		return
	}

	s.write(ws.SavedResponse{Event: ws.EventSaved, Index: *req.Index, Answered: s.state.Answered()})
}

func (s *stream) handleSubmit(ctx context.Context) {
	result, err := s.h.assessments.Submit(ctx, s.userID, s.test, s.state.Answers())
	if err != nil {
		s.log.Error().Err(err).Msg("Grading failed")
		s.conn.WriteError(string(response.ErrInternal), "grading failed")
		return
	}
	// Grading ends proctoring for this attempt.
	s.monitor.Reset()

	s.write(ws.GradedResponse{
		Event:      ws.EventGraded,
		Scores:     result.Scores,
		TotalScore: result.TotalScore,
		SavedOK:    result.SavedOK,
	})
}

func (s *stream) handleRetake(ctx context.Context) {
	s.state.Reset()
	if err := s.h.assessments.ClearAnswers(ctx, s.userID); err != nil {
		s.log.Warn().Err(err).Msg("Clear autosaved answers failed")
	}
	s.monitor.Reset()
	s.h.assessments.Publish(ctx, events.New(events.TypeReset, s.userID, nil))
	s.write(ws.ResetResponse{Event: ws.EventReset})
}

func (s *stream) decode(data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		s.conn.WriteError(string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
		return false
	}
	return true
}

func (s *stream) write(v any) {
	if err := s.conn.WriteTyped(v); err != nil {
		s.log.Debug().Err(err).Msg("Write to closed stream")
	}
}

// OnStatus implements proctor.Observer.
func (s *stream) OnStatus(status proctor.Status) {
	s.write(ws.StatusResponse{Event: ws.EventStatus, Status: string(status)})
}

// OnWarning implements proctor.Observer.
func (s *stream) OnWarning(w proctor.Warning) {
	s.h.metrics.Violations.WithLabelValues(string(w.Kind)).Inc()
	s.archive(w)
	s.h.assessments.Publish(context.Background(), events.New(events.TypeWarning, s.userID, w))

	s.write(ws.WarningResponse{
		Event:            ws.EventWarning,
		Kind:             string(w.Kind),
		Total:            w.Total,
		TabSwitches:      w.TabSwitches,
		CameraViolations: w.CameraViolations,
		Remaining:        s.monitor.Policy().MaxViolations - w.Total,
	})
}

// OnTerminated implements proctor.Observer. The session has already been
// signed out; the stream is closed after the client is told to redirect.
func (s *stream) OnTerminated(w proctor.Warning) {
	s.h.metrics.Violations.WithLabelValues(string(w.Kind)).Inc()
	s.h.metrics.Terminations.Inc()
	s.archive(w)
	s.h.assessments.Publish(context.Background(), events.New(events.TypeTerminated, s.userID, w))

	s.write(ws.TerminatedResponse{
		Event:    ws.EventTerminated,
		Kind:     string(w.Kind),
		Total:    w.Total,
		Redirect: LoginRedirect,
	})
	s.conn.Close()
}

// archive queues the violation for the violation worker.
func (s *stream) archive(w proctor.Warning) {
	payload, err := json.Marshal(model.ViolationRecord{
		UserID:     s.userID,
		Kind:       w.Kind,
		Total:      w.Total,
		Terminated: w.Terminal,
		RecordedAt: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.h.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		s.log.Error().Err(err).Msg("Queue violation record failed")
	}
}
