package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/intake/internal/core/instruction"
	"github.com/example/intake/internal/ctxutil"
	"github.com/example/intake/internal/ports/primary"
	"github.com/example/intake/internal/ports/secondary"
)

// StripeSignatureHeader is the header carrying the webhook signature.
const StripeSignatureHeader = "Stripe-Signature"

// instructionResponse is a record plus any warnings about ignored input.
type instructionResponse struct {
	*instruction.Instruction
	Warnings []string `json:"warnings,omitempty"`
}

type refRequest struct {
	InstructionRef string `json:"instructionRef"`
}

type createIntentRequest struct {
	InstructionRef string  `json:"instructionRef"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Product        string  `json:"product"`
}

type createIntentResponse struct {
	PaymentID    string `json:"paymentId"`
	IntentID     string `json:"intentId"`
	ClientSecret string `json:"clientSecret"`
	Status       string `json:"status"`
}

type paymentResponse struct {
	ID              string `json:"id"`
	PaymentIntentID string `json:"paymentIntentId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
	InternalStatus  string `json:"internalStatus"`
	InstructionRef  string `json:"instructionRef"`
	Product         string `json:"product,omitempty"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

var errBadBody = &instruction.ValidationError{Field: "body", Message: "must be a JSON object"}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleGetInstruction(c *gin.Context) {
	inst, err := s.instructions.GetInstruction(c.Request.Context(), c.Query("instructionRef"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	// nil renders as null
	c.JSON(http.StatusOK, inst)
}

func (s *Server) handleSubmitInstruction(c *gin.Context) {
	var body map[string]any
	if err := decodeBody(c, &body); err != nil || body == nil {
		s.writeError(c, errBadBody)
		return
	}

	ref, _ := body["instructionRef"].(string)
	stage, _ := body["stage"].(string)
	delete(body, "instructionRef")
	delete(body, "stage")

	resp, err := s.instructions.SubmitInstruction(c.Request.Context(), primary.SubmitInstructionRequest{
		InstructionRef: ref,
		Stage:          stage,
		Fields:         body,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	if resp.Completed {
		c.JSON(http.StatusOK, gin.H{"completed": true})
		return
	}
	c.JSON(http.StatusOK, instructionResponse{Instruction: resp.Instruction, Warnings: resp.Warnings})
}

func (s *Server) handleCompleteInstruction(c *gin.Context) {
	ref, ok := s.bindRef(c)
	if !ok {
		return
	}

	inst, err := s.instructions.CompleteInstruction(c.Request.Context(), ref)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

func (s *Server) handleSendEmails(c *gin.Context) {
	ref, ok := s.bindRef(c)
	if !ok {
		return
	}

	resp, err := s.instructions.SendEmails(c.Request.Context(), ref)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queued": resp.Queued, "warnings": resp.Warnings})
}

func (s *Server) handleCreatePaymentIntent(c *gin.Context) {
	var req createIntentRequest
	if err := decodeBody(c, &req); err != nil {
		s.writeError(c, errBadBody)
		return
	}

	resp, err := s.payments.CreatePaymentIntent(c.Request.Context(), primary.CreatePaymentIntentRequest{
		InstructionRef: req.InstructionRef,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Product:        req.Product,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, createIntentResponse{
		PaymentID:    resp.PaymentID,
		IntentID:     resp.IntentID,
		ClientSecret: resp.ClientSecret,
		Status:       resp.Status,
	})
}

func (s *Server) handleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize))
	if err != nil {
		s.writeError(c, errBadBody)
		return
	}

	if err := s.payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader(StripeSignatureHeader)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) handleGetPayment(c *gin.Context) {
	p, err := s.payments.GetPayment(c.Request.Context(), c.Param("intentId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}

	c.JSON(http.StatusOK, paymentResponse{
		ID:              p.ID,
		PaymentIntentID: p.PaymentIntentID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Status:          p.Status,
		InternalStatus:  p.InternalStatus,
		InstructionRef:  p.InstructionRef,
		Product:         p.Product,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	})
}

// bindRef reads instructionRef from the JSON body, falling back to the query string.
func (s *Server) bindRef(c *gin.Context) (string, bool) {
	if ref := c.Query("instructionRef"); ref != "" {
		return ref, true
	}
	var req refRequest
	if err := decodeBody(c, &req); err != nil {
		s.writeError(c, errBadBody)
		return "", false
	}
	return req.InstructionRef, true
}

func decodeBody(c *gin.Context, v any) error {
	return json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)).Decode(v)
}

// writeError maps service errors to status codes. Server-side failures are
// logged and answered with a generic message.
func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		ctxutil.Logger(c.Request.Context(), s.logger).Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": http.StatusText(status)})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, instruction.ErrValidation), errors.Is(err, secondary.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, secondary.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, primary.ErrPaymentsDisabled):
		return http.StatusConflict
	case errors.Is(err, primary.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
