// Package server exposes the chat pipeline over HTTP. A single POST
// endpoint accepts a buyer message and returns the agent reply in the
// buyer's language; unauthenticated requests are answered with a localized
// sign-in prompt without ever reaching the agents.
package server

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/chemfalcon/chembot/engine"
	"github.com/chemfalcon/chembot/logging"
	"github.com/chemfalcon/chembot/translate"
)

// ChatRequest is the inbound chat payload. The frontend sends language
// names ("English", "Arabic", "Bangla"); codes are accepted too.
type ChatRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	UserAuth  string `json:"userAuth"`
	Message   string `json:"message" validate:"required"`
	Language  string `json:"language"`
}

// ChatResponse is the outbound chat payload.
type ChatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}

var signInReplies = map[string]string{
	translate.LangEnglish: "Please sign in or sign up to activate the chatbot.",
	translate.LangArabic:  "يرجى تسجيل الدخول أو الاشتراك لتفعيل الدردشة.",
	translate.LangBengali: "চ্যাটবট সক্রিয় করতে সাইন ইন বা সাইন আপ করুন।",
}

var errorReplies = map[string]string{
	translate.LangEnglish: "Sorry, something went wrong. Please try again.",
	translate.LangArabic:  "عذرًا، حدث خطأ. يرجى المحاولة مرة أخرى.",
	translate.LangBengali: "দুঃখিত, একটি ত্রুটি ঘটেছে। অনুগ্রহ করে আবার চেষ্টা করুন।",
}

// Options configures the HTTP server.
type Options struct {
	// CORSAllowOrigins restricts cross-origin callers. Defaults to "*".
	CORSAllowOrigins string

	// BodyLimit caps the request body size in bytes.
	BodyLimit int

	// Logger receives request events.
	Logger logging.Logger
}

// Server wires the engine behind a fiber application.
type Server struct {
	app      *fiber.App
	engine   *engine.Engine
	validate *validator.Validate
	logger   logging.Logger
}

// New builds the HTTP server around the given engine.
func New(eng *engine.Engine, opts *Options) *Server {
	if opts == nil {
		opts = &Options{}
	}

	origins := opts.CORSAllowOrigins
	if origins == "" {
		origins = "*"
	}

	bodyLimit := opts.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 1 * 1024 * 1024
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	s := &Server{
		app:      app,
		engine:   eng,
		validate: validator.New(),
		logger:   logger,
	}

	app.Get("/health", s.handleHealth)
	api := app.Group("/api")
	api.Post("/chat", s.handleChat)

	return s
}

// App returns the underlying fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving HTTP on the given address.
func (s *Server) Listen(addr string) error {
	s.logger.Info("server.listen", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":              "ok",
		"supported_languages": []string{translate.LangEnglish, translate.LangArabic, translate.LangBengali},
	})
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid request body",
		})
	}

	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	lang, supported := translate.Normalize(req.Language)
	if !supported {
		if req.Language != "" {
			s.logger.Warn("server.language.unsupported", "language", req.Language, "session_id", req.SessionID)
		}
		lang = translate.DefaultLanguage
	}

	if strings.TrimSpace(req.UserAuth) == "" {
		s.logger.Warn("server.chat.unauthenticated", "session_id", req.SessionID)
		return c.JSON(ChatResponse{Reply: signInReplies[lang], SessionID: req.SessionID})
	}

	s.logger.Info("server.chat.request", "session_id", req.SessionID, "language", lang)

	reply, err := s.engine.Route(c.Context(), req.SessionID, req.UserAuth, req.Message, lang)
	if err != nil {
		s.logger.Error("server.chat.failed", "session_id", req.SessionID, "error", err.Error())
		reply = errorReplies[lang]
	}
	if reply == "" {
		reply = errorReplies[lang]
	}

	return c.JSON(ChatResponse{Reply: reply, SessionID: req.SessionID})
}
