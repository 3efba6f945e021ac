package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/trilliondigital/Dirt-v1.0-sub007/content"
	"github.com/trilliondigital/Dirt-v1.0-sub007/events"
	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
	"github.com/trilliondigital/Dirt-v1.0-sub007/moderation"
	"github.com/trilliondigital/Dirt-v1.0-sub007/notifs"
	"github.com/trilliondigital/Dirt-v1.0-sub007/reports"
	"github.com/trilliondigital/Dirt-v1.0-sub007/reputation"
	"github.com/trilliondigital/Dirt-v1.0-sub007/votes"
)

// serverListenerBootTimeout is how long to wait for the requested server
// socket to become available for use.
const serverListenerBootTimeout = 5 * time.Second

type Config struct {
	JWTSecret  []byte
	Moderation moderation.Config
	Reputation reputation.Config
	// MaxMentions caps mention fan-out per content unit.
	MaxMentions int
}

// Server wires the engine's components together and exposes them over
// HTTP. All cross-component collaboration is explicit construction-time
// injection; there is no ambient global state.
type Server struct {
	db       *gorm.DB
	cstore   *content.Store
	ledger   *votes.Ledger
	intake   *reports.Intake
	sm       *moderation.StateMachine
	rep      *reputation.Engine
	notifman *notifs.NotificationManager
	events   *events.EventManager
	persist  events.EventPersistence
	echo     *echo.Echo

	jwtSigningKey []byte

	log *slog.Logger
}

func NewServer(db *gorm.DB, cfg Config) (*Server, error) {
	persist, err := events.NewDbPersistence(db)
	if err != nil {
		return nil, err
	}
	evtman := events.NewEventManager(persist)
	go evtman.Run()

	rep, err := reputation.NewEngine(db, evtman, cfg.Reputation)
	if err != nil {
		return nil, err
	}
	go rep.Run()

	notifman, err := notifs.NewNotificationManager(db, evtman, cfg.MaxMentions)
	if err != nil {
		return nil, err
	}

	cstore, err := content.NewStore(db, notifman, evtman)
	if err != nil {
		return nil, err
	}

	ledger, err := votes.NewLedger(db, rep)
	if err != nil {
		return nil, err
	}

	sm, err := moderation.NewStateMachine(db, rep, notifman, evtman, cfg.Moderation)
	if err != nil {
		return nil, err
	}

	intake, err := reports.NewIntake(db, sm)
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:            db,
		cstore:        cstore,
		ledger:        ledger,
		intake:        intake,
		sm:            sm,
		rep:           rep,
		notifman:      notifman,
		events:        evtman,
		persist:       persist,
		jwtSigningKey: cfg.JWTSecret,
		log:           slog.Default().With("system", "server"),
	}

	return s, nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.echo != nil {
		err = s.echo.Shutdown(ctx)
	}
	s.rep.Shutdown()
	s.events.Shutdown()
	return err
}

func (s *Server) RunAPI(addr string) error {
	var lc net.ListenConfig
	ctx, cancel := context.WithTimeout(context.Background(), serverListenerBootTimeout)
	defer cancel()

	li, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.RunAPIWithListener(li)
}

func (s *Server) RunAPIWithListener(listen net.Listener) error {
	e := echo.New()
	s.echo = e
	e.HideBanner = true
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status} latency=${latency_human}\n",
	}))
	e.HTTPErrorHandler = s.errorHandler
	e.Use(s.authMiddleware)

	s.registerRoutes(e)

	// In order to support booting on random ports in tests, we need to tell
	// the Echo instance it's already got a port, and then use its
	// StartServer method to re-use that listener.
	e.Listener = listen
	srv := &http.Server{}
	return e.StartServer(srv)
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/health", s.handleHealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/account.create", s.handleCreateAccount)
	e.POST("/session.create", s.handleCreateSession)

	e.POST("/content.submit", s.handleSubmitContent)
	e.GET("/content.list", s.handleListContent)
	e.POST("/content.delete", s.handleDeleteContent)

	e.POST("/vote.cast", s.handleCastVote)

	e.POST("/report.submit", s.handleSubmitReport)
	e.POST("/report.resolve", s.handleResolveReport)
	e.GET("/moderation.queue", s.handleModerationQueue)
	e.POST("/moderation.transition", s.handleTransition)
	e.GET("/moderation.audit", s.handleAuditTrail)

	e.GET("/reputation.get", s.handleGetReputation)
	e.GET("/events.recent", s.handleRecentEvents)

	e.GET("/notifications.list", s.handleGetNotifications)
	e.POST("/notifications.seen", s.handleUpdateSeen)

	e.POST("/admin.verify", s.handleVerifyUser)
	e.POST("/admin.ban", s.handleBanUser)
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorHandler maps the engine's sentinel errors onto HTTP statuses.
// Forbidden failures get logged as suspicious access but stay non-fatal.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		c.JSON(he.Code, apiError{Error: "http", Message: he.Error()})
		return
	}

	var code int
	var kind string
	switch {
	case errors.Is(err, models.ErrValidation):
		code, kind = http.StatusBadRequest, "validation"
	case errors.Is(err, models.ErrUnauthorized):
		code, kind = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, models.ErrForbidden):
		code, kind = http.StatusForbidden, "forbidden"
		s.log.Warn("suspicious access rejected", "path", c.Path(), "err", err)
	case models.IsNotFound(err):
		code, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrConflict):
		code, kind = http.StatusConflict, "conflict"
	case errors.Is(err, models.ErrStoreUnavailable):
		code, kind = http.StatusServiceUnavailable, "store_unavailable"
		s.log.Error("store unavailable", "path", c.Path(), "err", err)
	default:
		code, kind = http.StatusInternalServerError, "internal"
		s.log.Error("handler error", "path", c.Path(), "err", err)
	}

	c.JSON(code, apiError{Error: kind, Message: err.Error()})
}

type healthStatus struct {
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	if err := s.db.Exec("SELECT 1").Error; err != nil {
		s.log.Error("healthcheck can't connect to database", "err", err)
		return c.JSON(500, healthStatus{Status: "error", Message: "can't connect to database"})
	}
	return c.JSON(200, healthStatus{Status: "ok"})
}
