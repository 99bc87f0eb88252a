package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/anantzoid/kernel-tuner/internal/jobfile"
)

// Server wires the sweep manager into HTTP handlers.
type Server struct {
	manager *Manager
}

func NewServer(m *Manager) *Server {
	return &Server{manager: m}
}

// Register attaches the sweep API routes.
func (s *Server) Register(e *echo.Echo) {
	e.POST("/api/v1/sweeps", s.handleCreateSweep)
	e.GET("/api/v1/sweeps", s.handleListSweeps)
	e.GET("/api/v1/sweeps/:id", s.handleGetSweep)
	e.DELETE("/api/v1/sweeps/:id", s.handleCancelSweep)
	e.GET("/healthz", s.handleHealth)
}

// SweepList is the GET /api/v1/sweeps payload.
type SweepList struct {
	Sweeps []Sweep `json:"sweeps"`
}

func (s *Server) handleCreateSweep(c *echo.Context) error {
	job, err := decodeJSON[jobfile.Job](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, "invalid job: "+err.Error())
	}
	if err := job.Validate(); err != nil {
		return writeBadRequest(c, err.Error())
	}
	sw := s.manager.Submit(&job)
	return c.JSON(http.StatusAccepted, sw)
}

func (s *Server) handleListSweeps(c *echo.Context) error {
	return c.JSON(http.StatusOK, SweepList{Sweeps: s.manager.List()})
}

func (s *Server) handleGetSweep(c *echo.Context) error {
	sw, ok := s.manager.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "sweep not found")
	}
	return c.JSON(http.StatusOK, sw)
}

func (s *Server) handleCancelSweep(c *echo.Context) error {
	sw, err := s.manager.Cancel(c.Param("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		return writeNotFound(c, "sweep not found")
	case errors.Is(err, ErrNotPending):
		return writeError(c, http.StatusConflict, err.Error())
	case err != nil:
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sw)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type apiError struct {
	Message string `json:"message"`
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, msg)
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, msg)
}

func writeError(c *echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]any{"error": apiError{Message: msg}})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
