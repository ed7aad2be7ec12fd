// Package rest exposes the matching server over HTTP: a JSON API for the
// request/response operations and a websocket endpoint for the push channel.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/crosswap-network/crosswap-daemon/internal/core/application"
)

// Hub is the websocket side of the service, implemented by the ws package.
type Hub interface {
	Upgrade(w http.ResponseWriter, r *http.Request, masterKeyID string) error
}

type Service struct {
	matcherSvc application.MatcherService
	hub        Hub
	server     *http.Server
}

func NewService(
	address string, matcherSvc application.MatcherService, hub Hub,
) *Service {
	svc := &Service{matcherSvc: matcherSvc, hub: hub}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	v1 := router.Group("/v1")
	v1.POST("/identity", svc.registerIdentity)
	v1.POST("/order", svc.registerOrder)
	v1.GET("/orders", svc.listOpenOrders)
	v1.GET("/order/:id", svc.getOrder)
	v1.POST("/takeOrder", svc.takeOrder)
	v1.POST("/gradualReleaseFirstMessage", svc.relayFirstMessage)
	v1.POST("/segment", svc.relaySegment)
	v1.POST("/withdraw", svc.withdraw)
	v1.GET("/ws/:masterKeyId", svc.connect)

	svc.server = &http.Server{
		Addr:    address,
		Handler: router,
	}
	return svc
}

// Start serves the API until Stop is called.
func (s *Service) Start() error {
	log.Infof("matching server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil &&
		err != http.ErrServerClosed {
		return fmt.Errorf("rest server: %w", err)
	}
	return nil
}

func (s *Service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// nolint:errcheck
	s.server.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("handled request")
	}
}
