package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tradekart/internal/model"
	"tradekart/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaymentHandler handles payment-related HTTP requests, including the
// gateway webhook and the settlement simulation endpoints.
type PaymentHandler struct {
	service service.PaymentService
	logger  zerolog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(service service.PaymentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger.With().Str("handler", "payment").Logger(),
	}
}

// Create handles POST /api/payments requests.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	payment, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, payment)
}

// GetByID handles GET /api/payments/{id} requests.
func (h *PaymentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment ID format", h.logger)
		return
	}

	payment, err := h.service.GetByID(r.Context(), paymentID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, payment)
}

// Refund handles POST /api/payments/{id}/refund requests. An empty or
// zero amount refunds the full remaining refundable amount.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment ID format", h.logger)
		return
	}

	var req model.RefundRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
			return
		}
	}

	payment, err := h.service.Refund(r.Context(), paymentID, &req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, payment)
}

// Webhook handles POST /api/webhooks/payment requests from the gateway.
// The payment is resolved by the transaction id inside the event data.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var evt model.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook payload", h.logger)
		return
	}

	payment, err := h.service.HandleWebhook(r.Context(), &evt)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, payment)
}

// SimulatePaid handles POST /api/payments/{id}/simulate/paid requests.
// It settles the payment with a synthetic transaction id, standing in
// for a real gateway in development and integration tests.
func (h *PaymentHandler) SimulatePaid(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment ID format", h.logger)
		return
	}

	transactionID := fmt.Sprintf("sim_%d", time.Now().UnixNano())
	payment, err := h.service.MarkPaid(r.Context(), paymentID, transactionID, json.RawMessage(`{"simulated":true}`))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, payment)
}

// SimulateFailed handles POST /api/payments/{id}/simulate/failed
// requests.
func (h *PaymentHandler) SimulateFailed(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment ID format", h.logger)
		return
	}

	payment, err := h.service.MarkFailed(r.Context(), paymentID, "simulated failure", json.RawMessage(`{"simulated":true}`))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, payment)
}
