package api

import (
	"log"
	"net/http"
	"time"

	"futures-core/internal/events"
	"futures-core/internal/monitor"
	"futures-core/internal/state"

	"github.com/gin-gonic/gin"
)

// Server wires the dashboard HTTP endpoints around the loop state.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	State     *state.Manager
	Metrics   *monitor.SystemMetrics
	JWTSecret string
	Meta      SystemMeta

	passwordHash string
}

// SystemMeta describes runtime status exposed to the UI.
type SystemMeta struct {
	Quote        string
	Timeframe    string
	Testnet      bool
	MaxPositions int
	Version      string
}

// NewServer builds the router with the full middleware stack.
func NewServer(bus *events.Bus, st *state.Manager, metrics *monitor.SystemMetrics, meta SystemMeta, jwtSecret, dashboardPassword string) *Server {
	r := gin.New()

	s := &Server{
		Router:    r,
		Bus:       bus,
		State:     st,
		Metrics:   metrics,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	if dashboardPassword != "" {
		hash, err := hashPassword(dashboardPassword)
		if err != nil {
			log.Printf("dashboard password hash failed: %v", err)
		} else {
			s.passwordHash = hash
		}
	}

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware(20, 50))
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.POST("/auth/login", s.login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/status", s.getStatus)
			protected.GET("/positions", s.getPositions)
			protected.GET("/trades", s.getTrades)
			protected.GET("/metrics", s.getMetrics)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
