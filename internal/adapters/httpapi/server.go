// Package httpapi exposes the intake services over HTTP with gin.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/intake/internal/metrics"
	"github.com/example/intake/internal/ports/primary"
)

// maxBodySize bounds request bodies; webhook payloads are well under this.
const maxBodySize = 1 << 20

// Server is the intake HTTP API.
type Server struct {
	instructions primary.InstructionService
	payments     primary.PaymentService
	metrics      *metrics.Metrics
	logger       *zap.Logger
	router       *gin.Engine
}

// NewServer creates the API and registers its routes.
func NewServer(
	instructions primary.InstructionService,
	payments primary.PaymentService,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		instructions: instructions,
		payments:     payments,
		metrics:      m,
		logger:       logger,
		router:       router,
	}

	router.Use(gin.Recovery(), requestID(), accessLog(logger), observe(m))

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api")
	{
		api.GET("/instruction", s.handleGetInstruction)
		api.POST("/instruction", s.handleSubmitInstruction)
		api.POST("/instruction/complete", s.handleCompleteInstruction)
		api.POST("/instruction/send-emails", s.handleSendEmails)

		api.POST("/payments/create-payment-intent", s.handleCreatePaymentIntent)
		api.POST("/payments/webhook", s.handleWebhook)
		api.GET("/payments/:intentId", s.handleGetPayment)
	}

	return s
}

// Handler returns the router for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}
