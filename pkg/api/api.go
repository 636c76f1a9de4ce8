// Package api implements the HTTP compile service: a small REST surface that
// accepts program definitions and returns compiled workflow YAML.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aajanki/ts2workflows-sub001/pkg/compiler"
	"github.com/aajanki/ts2workflows-sub001/pkg/types"
)

// Server is the compile API server.
type Server struct {
	app *fiber.App
}

// New creates a new compile server.
func New() *Server {
	srv := &Server{}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	app.Post("/compile", srv.compile)
	app.Get("/healthz", srv.healthz)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

// compile compiles the request body. A bad program yields 422 with the error
// message; a compiler defect yields 500.
func (s *Server) compile(c *fiber.Ctx) error {
	source := c.Body()
	if len(source) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "request body must contain a program definition",
		})
	}

	out, err := compiler.Compile(source)
	if err != nil {
		if types.IsUserError(err) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, "application/yaml")
	return c.Status(fiber.StatusOK).Send(out)
}

func (s *Server) healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
