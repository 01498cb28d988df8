package relay

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Config configures the relay server.
type Config struct {
	Addr   string
	Logger *logrus.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server exposes the relay over HTTP: the signaling WebSocket plus small
// read-only endpoints for the roster and health.
type Server struct {
	config Config
	log    *logrus.Logger
	hub    *Hub
	engine *gin.Engine
}

func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config: cfg,
		log:    cfg.Logger,
		hub:    NewHub(cfg.Logger),
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery())

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/users", s.handleUsers)
	api.GET("/ws/:peer_id", s.handleWS)

	return s
}

// Handler returns the HTTP handler, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	s.log.Infof("Relay listening on %s", s.config.Addr)
	return s.engine.Run(s.config.Addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": s.hub.Users()})
}

func (s *Server) handleWS(c *gin.Context) {
	peerID := c.Param("peer_id")
	if peerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing peer id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warnf("WebSocket upgrade for %s failed: %v", peerID, err)
		return
	}

	client := newClient(s.hub, conn, peerID)
	s.hub.register(client)

	go client.writePump()
	client.readPump()
}
