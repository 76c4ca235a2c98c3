// Package server exposes an engine over HTTP and WebSocket.
//
// Clients connect to /ws and receive every chat line as a JSON object
// {id, username, text, colorId, timestamp}. They send frames of the form
// {"type":"utterance","text":...} for finalized speech, {"type":"chat",...}
// for lines the presenter typed, and {"type":"settings",...} to change the
// runtime configuration. The same operations exist as JSON endpoints under
// /api. /healthz and /metrics serve liveness and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yaajosh/chat-simulator/core"
	"github.com/yaajosh/chat-simulator/engine"
	"github.com/yaajosh/chat-simulator/logging"
)

// Controller is the part of *engine.Engine the server drives.
type Controller interface {
	Start()
	Stop()
	Pause()
	Resume()
	Running() bool
	Config() engine.Config
	SetToken(token string) error
	SetLocale(code string) core.Locale
	SetActivityLevel(level int) int
	SetAutoResponse(on bool)
	OnUtterance(text string)
	OnUserUtterance(text string)
	OnMessage(fn engine.MessageListener)
	Personas() []core.Persona
	Recent(n int) []core.Entry
}

// Frame types accepted on the websocket.
const (
	FrameUtterance = "utterance"
	FrameChat      = "chat"
	FrameSettings  = "settings"
)

// Frame is an inbound websocket message.
type Frame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Settings
}

// Settings is a partial configuration update. Nil fields are left alone.
type Settings struct {
	Token         *string `json:"token,omitempty"`
	Locale        *string `json:"locale,omitempty"`
	ActivityLevel *int    `json:"activityLevel,omitempty"`
	AutoResponse  *bool   `json:"autoResponse,omitempty"`
	Paused        *bool   `json:"paused,omitempty"`
	Running       *bool   `json:"running,omitempty"`
}

// Status is the configuration view returned by the API.
type Status struct {
	engine.Config
	Running       bool `json:"running"`
	HasCredential bool `json:"hasCredential"`
}

type textBody struct {
	Text string `json:"text" binding:"required"`
}

// Options configures a Server.
type Options struct {
	Addr     string
	Logger   logging.Logger
	Gatherer prometheus.Gatherer
	// AllowOrigins lists CORS origins; empty allows all.
	AllowOrigins []string
	Debug        bool
}

// Server is the HTTP surface for one engine.
type Server struct {
	ctl      Controller
	opts     Options
	log      logging.Logger
	hub      *Hub
	router   *gin.Engine
	upgrader websocket.Upgrader
}

// New wires ctl's message listener to the websocket hub and builds routes.
func New(ctl Controller, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:     ":8080",
		Gatherer: prometheus.DefaultGatherer,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		ctl:  ctl,
		opts: opts,
		log:  logging.OrNoOp(opts.Logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.hub = NewHub(s.log)
	ctl.OnMessage(func(m core.Message) { s.hub.Broadcast(m) })
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(s.opts.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.opts.AllowOrigins
	}
	corsConfig.AllowWebSockets = true
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	{
		api.GET("/config", s.handleGetConfig)
		api.PUT("/config", s.handlePutConfig)
		api.POST("/utterance", s.handleUtterance)
		api.POST("/chat", s.handleChat)
		api.GET("/personas", s.handlePersonas)
		api.GET("/recent", s.handleRecent)
	}
	return r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		s.hub.Close()
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) status() Status {
	cfg := s.ctl.Config()
	return Status{Config: cfg, Running: s.ctl.Running(), HasCredential: cfg.Token != ""}
}

// Apply executes a settings update. The running flag is applied last so a
// token and a start can arrive in one update.
func (s *Server) Apply(u Settings) error {
	if u.Token != nil {
		if err := s.ctl.SetToken(*u.Token); err != nil {
			return err
		}
	}
	if u.Locale != nil {
		s.ctl.SetLocale(*u.Locale)
	}
	if u.ActivityLevel != nil {
		s.ctl.SetActivityLevel(*u.ActivityLevel)
	}
	if u.AutoResponse != nil {
		s.ctl.SetAutoResponse(*u.AutoResponse)
	}
	if u.Running != nil {
		if *u.Running {
			s.ctl.Start()
		} else {
			s.ctl.Stop()
		}
	}
	if u.Paused != nil {
		if *u.Paused {
			s.ctl.Pause()
		} else {
			s.ctl.Resume()
		}
	}
	return nil
}

// Dispatch handles one inbound frame.
func (s *Server) Dispatch(f Frame) error {
	switch f.Type {
	case FrameUtterance:
		s.ctl.OnUtterance(f.Text)
	case FrameChat:
		s.ctl.OnUserUtterance(f.Text)
	case FrameSettings:
		return s.Apply(f.Settings)
	default:
		return fmt.Errorf("server: unknown frame type %q", f.Type)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "running": s.ctl.Running(), "clients": s.hub.Len()})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.status())
}

func (s *Server) handlePutConfig(c *gin.Context) {
	var u Settings
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Apply(u); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.status())
}

func (s *Server) handleUtterance(c *gin.Context) {
	var body textBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.ctl.OnUtterance(body.Text)
	c.Status(http.StatusAccepted)
}

func (s *Server) handleChat(c *gin.Context) {
	var body textBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.ctl.OnUserUtterance(body.Text)
	c.Status(http.StatusAccepted)
}

func (s *Server) handlePersonas(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctl.Personas())
}

func (s *Server) handleRecent(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("n", "10"))
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "n must be a non-negative integer"})
		return
	}
	c.JSON(http.StatusOK, s.ctl.Recent(n))
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	cl := newClient(conn)
	s.hub.add(cl)
	go cl.writePump()
	s.readPump(cl)
}

func (s *Server) readPump(cl *client) {
	defer s.hub.remove(cl)
	cl.conn.SetReadLimit(maxFrameSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var f Frame
		if err := cl.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket closed", "error", err)
			}
			return
		}
		if err := s.Dispatch(f); err != nil {
			s.log.Warn("websocket frame rejected", "type", f.Type, "error", err)
		}
	}
}
