package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wikihashtags/hashtagd/internal/app/repository"
	inthttp "github.com/wikihashtags/hashtagd/internal/http/handler"
	"github.com/wikihashtags/hashtagd/internal/http/middleware"
	"go.uber.org/zap"
)

// Dependencies bundles infrastructure dependencies required by the HTTP server.
type Dependencies struct {
	Logger   *zap.Logger
	Postgres *pgxpool.Pool
	Hashtags repository.HashtagRepository
}

// Server wraps the Fiber application serving the read-only API. It reads the
// rows the ingestion pipeline writes and never touches them otherwise.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	app := fiber.New()

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.Logger(s.deps.Logger))

	hashtagHandler := inthttp.NewHashtagHandler(inthttp.HashtagDeps{
		Logger:   s.deps.Logger,
		Hashtags: s.deps.Hashtags,
		Postgres: s.deps.Postgres,
	})
	hashtagHandler.Register(s.app)
}
