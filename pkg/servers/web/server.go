/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package web

import (
	"context"
	"net/http"

	"github.com/beaconmq/broker/internal/logctx"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger attaches a request-scoped klog logger to the request's
// context, the way framework.go's handler loop used to for the
// stdlib-mux path this server replaced. Controllers reach it through
// klog.FromContext(r.Context()).
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := logctx.From(c.Request.Context(), "requestID", requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// Service defines the interface the broker's HTTP layer must implement.
// We define it here rather than importing the httpapi package, preventing
// an import cycle between the transport and its controllers.
type Service interface {
	PostMessages(c *gin.Context)
	QueueStats(c *gin.Context)
	CreateClaim(c *gin.Context)
	GetClaim(c *gin.Context)
	UpdateClaim(c *gin.Context)
	DeleteClaim(c *gin.Context)
}

type Server struct {
	server *http.Server
}

// NewServer wires a gin engine around service's handlers plus the
// Prometheus metrics endpoint scraped by the broker's operators.
func NewServer(addr string, service Service, metricsHandler http.Handler) *Server {
	r := gin.Default()

	r.Use(otelgin.Middleware("beaconmq-broker"))
	r.Use(RequestLogger())

	r.POST("/queues/:project/:queue/messages", service.PostMessages)
	r.GET("/queues/:project/:queue/stats", service.QueueStats)
	r.POST("/queues/:project/:queue/claims", service.CreateClaim)
	r.GET("/queues/:project/:queue/claims/:claimID", service.GetClaim)
	r.PATCH("/queues/:project/:queue/claims/:claimID", service.UpdateClaim)
	r.DELETE("/queues/:project/:queue/claims/:claimID", service.DeleteClaim)

	r.GET("/metrics", gin.WrapH(metricsHandler))

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: r,
		},
	}
}

func (s *Server) Run() error {
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
