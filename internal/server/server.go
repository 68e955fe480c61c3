// Package server exposes the sink over HTTP: an ingest route for events and
// a status route for the sink's counters.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/harborlog/docsink/internal/config"
	"github.com/harborlog/docsink/internal/model"
	"github.com/harborlog/docsink/internal/response"
	"github.com/harborlog/docsink/internal/sink"
)

// Server holds the Echo app and its dependencies.
type Server struct {
	Echo   *echo.Echo
	Config *config.Config
	sink   *sink.Sink
	nrApp  *newrelic.Application
}

// New builds the Echo server and registers routes. nrApp may be nil.
func New(cfg *config.Config, s *sink.Sink, nrApp *newrelic.Application) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover(), middleware.Logger())

	srv := &Server{Echo: e, Config: cfg, sink: s, nrApp: nrApp}

	e.POST("/ingest", srv.handleIngest)
	e.GET("/logs/status", srv.handleStatus)
	e.GET("/healthz", func(c echo.Context) error {
		return response.OK(c, map[string]any{"ok": true})
	})

	return srv
}

// handleIngest accepts one event or an array of events. Events are buffered,
// not persisted, so success is 202; malformed events are counted and the
// first parse error is reported.
func (s *Server) handleIngest(c echo.Context) error {
	if s.nrApp != nil {
		txn := s.nrApp.StartTransaction("ingest")
		defer txn.End()
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return response.InternalError(c, "could not read body", err.Error())
	}
	events, err := decodeEvents(body)
	if err != nil {
		return response.BadRequest(c, "could not parse events", err.Error())
	}

	accepted, rejected := 0, 0
	var firstErr string
	for _, we := range events {
		ev, err := we.ToSink()
		if err != nil {
			rejected++
			if firstErr == "" {
				firstErr = err.Error()
			}
			continue
		}
		s.sink.Emit(ev)
		accepted++
	}
	if accepted == 0 && rejected > 0 {
		return response.BadRequest(c, "no valid events", firstErr)
	}
	return response.Accepted(c, map[string]any{"accepted": accepted, "rejected": rejected})
}

func (s *Server) handleStatus(c echo.Context) error {
	return response.OK(c, s.sink.Stats())
}

func decodeEvents(body []byte) ([]model.LogEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	if trimmed[0] == '[' {
		var events []model.LogEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		return events, nil
	}
	var event model.LogEvent
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, err
	}
	return []model.LogEvent{event}, nil
}

// Start starts the HTTP server. Blocks until the context is cancelled or the
// server fails. On context cancel, Shutdown runs so the sink flushes.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.Shutdown(context.Background())
	}()
	return s.Echo.Start(":" + s.Config.Server.Port)
}

// Shutdown closes the sink (final flush) and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sink.Close()
	return s.Echo.Shutdown(ctx)
}
