// Package http serves the analysis pipeline over a fiber app.
package http

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"chessmate/internal/metrics"
	"chessmate/internal/platform"
	"chessmate/internal/processor"
	"chessmate/internal/storage"
)

// Analyser runs one analysis; *processor.Processor satisfies it
type Analyser interface {
	Analyse(ctx context.Context, req processor.Request) (*processor.Report, error)
}

// Catalog lists configured platforms; *platform.Registry satisfies it
type Catalog interface {
	Platforms() []platform.Info
}

// Archive reads past analyses; *storage.Store satisfies it
type Archive interface {
	IsHealthy() bool
	QueryAnalyses(username, platform string) ([]storage.AnalysisRecord, error)
	QueryMistakes(analysisID string) ([]storage.MistakeRow, error)
}

// Engines reports pool capacity; *engine.Pool satisfies it
type Engines interface {
	Size() int
	Alive() int
}

// Deps are the collaborators of the HTTP layer. Archive, Engines and Metrics may be nil.
type Deps struct {
	Analyser  Analyser
	Catalog   Catalog
	Archive   Archive
	Engines   Engines
	Metrics   *metrics.Manager
	Logger    *slog.Logger
	RateLimit int // analyses per minute per client, 0 disables
	Timeout   time.Duration
}

// HTTPHandler handles HTTP requests and routes them to the pipeline
type HTTPHandler struct {
	deps Deps
	log  *slog.Logger
}

func NewHTTPHandler(deps Deps) *HTTPHandler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &HTTPHandler{deps: deps, log: log}
}

func NewFiberApp(deps Deps) *fiber.App {
	h := NewHTTPHandler(deps)

	writeTimeout := 10 * time.Minute
	if deps.Timeout > 0 {
		writeTimeout = deps.Timeout + 5*time.Second
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          writeTimeout,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
	})

	// order matters
	app.Use(recover.New())
	app.Use(h.requestLogger)
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Get("/health", h.Health)
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	api := app.Group("/api/v1")
	api.Use(contentTypeValidator)
	api.Use(validationMiddleware)

	api.Get("/platforms", h.Platforms)
	api.Get("/analyses", h.ListAnalyses)
	api.Get("/analyses/:analysisId/mistakes", h.GetMistakes)

	if deps.RateLimit > 0 {
		api.Post("/analyses", analysisLimiter(deps.RateLimit), h.Analyse)
	} else {
		api.Post("/analyses", h.Analyse)
	}

	return app
}

// analysisLimiter bounds analyses per client IP and minute
func analysisLimiter(perMinute int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if xff := c.Get("X-Forwarded-For"); xff != "" {
				if idx := strings.Index(xff, ","); idx != -1 {
					return strings.TrimSpace(xff[:idx])
				}
				return xff
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    ErrRateLimitExceeded,
				Details: "analysis requests are limited per minute",
			})
		},
	})
}

func (h *HTTPHandler) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	h.log.Info("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"latency", time.Since(start))
	return err
}

// Health reports engine capacity and archive status
func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	status := "healthy"
	resp := fiber.Map{"time": time.Now().Unix()}

	if e := h.deps.Engines; e != nil {
		resp["engines"] = e.Size()
		resp["engines_alive"] = e.Alive()
		if e.Alive() == 0 {
			status = "degraded"
		}
	}

	storageStatus := "disabled"
	if a := h.deps.Archive; a != nil {
		storageStatus = "ok"
		if !a.IsHealthy() {
			storageStatus = "degraded"
			status = "degraded"
		}
	}
	resp["storage"] = storageStatus
	resp["status"] = status

	return c.JSON(resp)
}

func (h *HTTPHandler) Platforms(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"platforms": h.deps.Catalog.Platforms()})
}

// Analyse runs a request synchronously and returns the report
func (h *HTTPHandler) Analyse(c *fiber.Ctx) error {
	if ok, _ := c.Locals(localValidated).(bool); !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "request body was not validated",
			Code:  ErrInternalError,
		})
	}
	req, ok := c.Locals(localBody).(*processor.Request)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "unexpected request body",
			Code:  ErrInternalError,
		})
	}

	ctx := c.UserContext()
	if h.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.deps.Timeout)
		defer cancel()
	}

	report, err := h.deps.Analyser.Analyse(ctx, *req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(report)
}

// ListAnalyses returns archived runs, filtered by ?username= and ?platform=
func (h *HTTPHandler) ListAnalyses(c *fiber.Ctx) error {
	if h.deps.Archive == nil {
		return archiveDisabled(c)
	}
	records, err := h.deps.Archive.QueryAnalyses(c.Query("username"), c.Query("platform"))
	if err != nil {
		return writeError(c, err)
	}
	if records == nil {
		records = []storage.AnalysisRecord{}
	}
	return c.JSON(fiber.Map{"analyses": records})
}

func (h *HTTPHandler) GetMistakes(c *fiber.Ctx) error {
	if h.deps.Archive == nil {
		return archiveDisabled(c)
	}
	id := c.Params("analysisId")
	if !isValidUUID(id) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid analysis ID format",
			Code:    ErrInvalidRequest,
			Details: "analysis ID must be a valid UUID",
		})
	}

	rows, err := h.deps.Archive.QueryMistakes(id)
	if err != nil {
		return writeError(c, err)
	}
	if rows == nil {
		rows = []storage.MistakeRow{}
	}
	return c.JSON(fiber.Map{"analysis_id": id, "mistakes": rows})
}

func archiveDisabled(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
		Error:   "analysis archive is disabled",
		Code:    ErrArchiveDisabled,
		Details: "enable storage in the configuration",
	})
}
