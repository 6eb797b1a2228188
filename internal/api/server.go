package api

import (
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/yourorg/convosync/internal/auth"
	"github.com/yourorg/convosync/internal/cache"
	"github.com/yourorg/convosync/internal/chat"
	"github.com/yourorg/convosync/internal/config"
	"github.com/yourorg/convosync/internal/profile"
	"github.com/yourorg/convosync/internal/store"
	"github.com/yourorg/convosync/internal/upload"
)

type Server struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	store    store.RecordStore
	pipeline *upload.Pipeline
	resolver *profile.Resolver
	sessions *auth.Sessions
	cache    *cache.Client
	events   chat.EventSink
}

func NewServer(cfg *config.Config, log *zap.SugaredLogger, rs store.RecordStore, pl *upload.Pipeline,
	pr *profile.Resolver, sess *auth.Sessions, c *cache.Client, sink chat.EventSink) *fiber.App {

	app := fiber.New()
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	s := &Server{cfg: cfg, log: log, store: rs, pipeline: pl, resolver: pr, sessions: sess, cache: c, events: sink}

	v1 := app.Group("/v1")
	v1.Post("/join", s.join)
	v1.Get("/profiles/:id", s.getProfile)
	v1.Get("/ws", websocket.New(s.handleWS))

	return app
}

type joinRequest struct {
	Username  string `json:"username"`
	Code      string `json:"code"`
	ProfileID string `json:"profile_id"`
	AppUserID string `json:"app_user_id"`
}

// join verifies the handshake inputs and mints the session token that
// seeds the conversation socket. Validation failures are rejected here,
// before any store call.
func (s *Server) join(c *fiber.Ctx) error {
	var req joinRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Username == "" || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "username and code are required"})
	}
	if req.Code != s.cfg.App.JoinCode {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid join code"})
	}
	if req.ProfileID == "" || req.AppUserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "both participants are required"})
	}

	token, err := s.sessions.Issue(req.ProfileID, req.AppUserID, req.Username)
	if err != nil {
		s.log.Errorw("issue session", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not start session"})
	}
	return c.JSON(fiber.Map{"token": token})
}

func (s *Server) getProfile(c *fiber.Ctx) error {
	p, err := s.resolver.Resolve(c.Context(), c.Params("id"))
	if err != nil {
		if err == profile.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "profile not found"})
		}
		s.log.Errorw("resolve profile", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}
	return c.JSON(p)
}
