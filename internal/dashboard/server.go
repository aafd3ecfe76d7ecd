// Package dashboard serves the local JSON API and pushes host snapshots to
// WebSocket subscribers.
//
//   - GET    /api/hosts[?filter=all|online|offline]
//   - POST   /api/hosts            {"hostname": "..."}
//   - DELETE /api/hosts/:hostname
//   - GET    /api/filter, PUT /api/filter    {"filter": "..."}
//   - GET    /api/settings, PUT /api/settings {"show_detailed_stats": bool}
//   - GET    /ws
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"hostwatch/internal/addrutil"
	"hostwatch/internal/logger"
	"hostwatch/internal/model"
	"hostwatch/internal/monitor"
	"hostwatch/internal/registry"
	"hostwatch/internal/store"
	"hostwatch/internal/view"
)

// Hosts is the registry surface used by the API.
type Hosts interface {
	Add(hostname string) error
	Remove(hostname string) error
	Hosts() []model.HostRecord
}

// Filter is the view surface used by the API.
type Filter interface {
	Filter() model.FilterState
	SetFilter(model.FilterState)
}

// States reports the live state of the visible hosts.
type States interface {
	Snapshot() []monitor.HostState
}

// Deps wires the server to the rest of the process.
type Deps struct {
	Hosts   Hosts
	Filter  Filter
	States  States
	Storage store.Storage
	Log     logger.Logger
}

// Server is the dashboard HTTP server.
type Server struct {
	echo *echo.Echo
	deps Deps
	hub  *Hub
}

// NewServer builds the routes. Call Broadcast whenever host state changes.
func NewServer(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logger.Noop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())

	s := &Server{echo: e, deps: deps, hub: NewHub(deps.Log)}
	s.hub.initial = s.payload

	api := e.Group("/api")
	api.GET("/hosts", s.handleListHosts)
	api.POST("/hosts", s.handleAddHost)
	api.DELETE("/hosts/:hostname", s.handleRemoveHost)
	api.GET("/filter", s.handleGetFilter)
	api.PUT("/filter", s.handleSetFilter)
	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings", s.handleSetSettings)
	e.GET("/ws", echo.WrapHandler(s.hub.Handler()))

	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.deps.Log.Info("dashboard listening on %s", addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.CloseAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Broadcast pushes the current snapshot to every WebSocket client.
func (s *Server) Broadcast() {
	s.hub.Broadcast(s.payload())
}

// Snapshot is the body of GET /api/hosts and of every WebSocket message.
type Snapshot struct {
	Filter            model.FilterState   `json:"filter"`
	ShowDetailedStats bool                `json:"show_detailed_stats"`
	Hosts             []monitor.HostState `json:"hosts"`
}

func (s *Server) payload() Snapshot {
	return s.snapshot(s.deps.Filter.Filter())
}

// snapshot lists the registry hosts matching state, enriched with the live
// state of those the monitor is running.
func (s *Server) snapshot(state model.FilterState) Snapshot {
	live := map[string]monitor.HostState{}
	if s.deps.States != nil {
		for _, st := range s.deps.States.Snapshot() {
			live[st.Record.Hostname] = st
		}
	}

	visible := view.Apply(s.deps.Hosts.Hosts(), state)
	hosts := make([]monitor.HostState, 0, len(visible))
	for _, rec := range visible {
		st, ok := live[rec.Hostname]
		if !ok {
			st = monitor.HostState{}
		}
		st.Record = rec
		hosts = append(hosts, st)
	}

	show, err := store.ShowDetailedStats(s.deps.Storage)
	if err != nil {
		s.deps.Log.Warn("read settings: %v", err)
		show = true
	}
	return Snapshot{Filter: state, ShowDetailedStats: show, Hosts: hosts}
}

func (s *Server) handleListHosts(c echo.Context) error {
	state := s.deps.Filter.Filter()
	if q := c.QueryParam("filter"); q != "" {
		parsed, err := model.ParseFilterState(q)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		state = parsed
	}
	return c.JSON(http.StatusOK, s.snapshot(state))
}

func (s *Server) handleAddHost(c echo.Context) error {
	var req struct {
		Hostname string `json:"hostname"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	hostname := strings.TrimSpace(req.Hostname)
	if hostname != "" {
		normalized, err := addrutil.Normalize(hostname)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		hostname = normalized
	}
	if err := s.deps.Hosts.Add(hostname); err != nil {
		return registryError(err)
	}
	return c.JSON(http.StatusCreated, model.Placeholder(hostname))
}

func (s *Server) handleRemoveHost(c echo.Context) error {
	hostname := c.Param("hostname")
	if unescaped, err := url.PathUnescape(hostname); err == nil {
		hostname = unescaped
	}
	if err := s.deps.Hosts.Remove(addrutil.Key(hostname)); err != nil {
		return registryError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type filterBody struct {
	Filter model.FilterState `json:"filter"`
}

func (s *Server) handleGetFilter(c echo.Context) error {
	return c.JSON(http.StatusOK, filterBody{Filter: s.deps.Filter.Filter()})
}

func (s *Server) handleSetFilter(c echo.Context) error {
	var req struct {
		Filter string `json:"filter"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	state, err := model.ParseFilterState(req.Filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.deps.Filter.SetFilter(state)
	return c.JSON(http.StatusOK, filterBody{Filter: state})
}

type settingsBody struct {
	ShowDetailedStats *bool `json:"show_detailed_stats"`
}

func (s *Server) handleGetSettings(c echo.Context) error {
	show, err := store.ShowDetailedStats(s.deps.Storage)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, settingsBody{ShowDetailedStats: &show})
}

func (s *Server) handleSetSettings(c echo.Context) error {
	var req settingsBody
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ShowDetailedStats == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "show_detailed_stats is required")
	}
	if err := store.SetShowDetailedStats(s.deps.Storage, *req.ShowDetailedStats); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.Broadcast()
	return c.JSON(http.StatusOK, req)
}

func registryError(err error) error {
	var dup *registry.DuplicateHostError
	var missing *registry.HostNotFoundError
	switch {
	case errors.Is(err, registry.ErrEmptyHostname):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &dup):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &missing):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
