// Package api exposes the HTTP surface: the pull endpoint, the provider
// webhook, and the real-time event channel.
package api

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mailmirror/mailmirror/internal/graph"
	"github.com/mailmirror/mailmirror/internal/realtime"
	"github.com/mailmirror/mailmirror/internal/sync"
)

// Server holds the handlers' collaborators.
type Server struct {
	Orchestrator *sync.Orchestrator
	Dispatcher   *sync.Dispatcher
	Hub          *realtime.Hub

	limits *rateLimiters
}

// NewServer wires the handlers with a per-client rate limiter on the
// pull endpoint.
func NewServer(orch *sync.Orchestrator, disp *sync.Dispatcher, hub *realtime.Hub, perMinute, burst int) *Server {
	return &Server{
		Orchestrator: orch,
		Dispatcher:   disp,
		Hub:          hub,
		limits:       newRateLimiters(perMinute, burst),
	}
}

// Register attaches all routes.
func (s *Server) Register(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.Hub.ClientCount()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/api/email/get", s.limits.middleware(), s.getEmails)
	r.POST("/api/email/listen", s.listen)
	r.GET("/api/email/events", s.events)
}

// getEmails performs the full pull for the caller's token: fetch,
// persist, best-effort subscription setup, and return the batch.
func (s *Server) getEmails(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		return
	}

	emails, err := s.Orchestrator.Synchronize(c.Request.Context(), token)
	if err != nil {
		var authErr *graph.AuthError
		var unavailErr *graph.UnavailableError
		switch {
		case errors.As(err, &authErr):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		case errors.As(err, &unavailErr):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, emails)
}

// notificationBatch is the provider's webhook delivery shape.
type notificationBatch struct {
	Value []struct {
		ChangeType   string `json:"changeType"`
		ResourceData struct {
			ID string `json:"id"`
		} `json:"resourceData"`
	} `json:"value"`
}

// listen handles provider callbacks. The handshake echoes the
// validation token verbatim; real deliveries are always acknowledged
// with 202 so a failing handler does not provoke a retry storm.
func (s *Server) listen(c *gin.Context) {
	if vt := c.Query("validationToken"); vt != "" {
		c.String(http.StatusOK, vt)
		return
	}

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "access token not available"})
		return
	}

	var batch notificationBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		log.Printf("webhook: decode delivery: %v", err)
		c.Status(http.StatusAccepted)
		return
	}

	notifications := make([]sync.Notification, 0, len(batch.Value))
	for _, n := range batch.Value {
		notifications = append(notifications, sync.Notification{
			ProviderMessageID: n.ResourceData.ID,
			ChangeType:        n.ChangeType,
		})
	}
	s.Dispatcher.HandleBatch(c.Request.Context(), token, notifications)

	c.Status(http.StatusAccepted)
}

// events upgrades the connection into the broadcast hub.
func (s *Server) events(c *gin.Context) {
	s.Hub.Serve(c.Writer, c.Request)
}

// bearerToken extracts the access token from the Authorization header,
// writing the error response itself when the header is unusable. Tokens
// that are well-formed JWTs and already expired are rejected before
// spending a provider round-trip; opaque tokens pass through untouched.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")

	if parsed, err := jwt.ParseInsecure([]byte(token)); err == nil {
		if exp := parsed.Expiration(); !exp.IsZero() && exp.Before(time.Now()) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
			return "", false
		}
	}
	return token, true
}
