package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type initializePaymentRequest struct {
	OrderID string `json:"order_id"`
	Email   string `json:"email"`
}

type initializePaymentResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

type verifyPaymentRequest struct {
	OrderID        string `json:"order_id"`
	TransactionRef string `json:"transaction_ref"`
	Method         string `json:"method"`
}

type verifyPaymentResponse struct {
	Order            orderDTO `json:"order"`
	AlreadyProcessed bool     `json:"already_processed"`
}

func (h *Handler) initializePayment(w http.ResponseWriter, r *http.Request) {
	var req initializePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.OrderID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id is required")
		return
	}

	init, err := h.payments.Initialize(r.Context(), req.OrderID, req.Email)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, initializePaymentResponse{
		AuthorizationURL: init.AuthorizationURL,
		AccessCode:       init.AccessCode,
	})
}

// verifyPayment подтверждает транзакцию у провайдера и записывает оплату.
// Повтор уже записанного платежа — успех с флагом already_processed.
func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.OrderID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id is required")
		return
	}

	ord, err := h.payments.VerifyAndRecord(r.Context(), req.OrderID, req.TransactionRef, req.Method)
	if err != nil {
		if domain.IsAlreadyProcessed(err) {
			h.respondJSON(w, http.StatusOK, verifyPaymentResponse{
				Order:            toOrderDTO(ord),
				AlreadyProcessed: true,
			})
			return
		}
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, verifyPaymentResponse{Order: toOrderDTO(ord)})
}
