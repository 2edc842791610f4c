package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// Заголовки идентификации владельца корзины. Клиентский заголовок имеет
// приоритет: залогиненный клиент работает со своей корзиной, даже если
// гостевая сессия ещё жива.
const (
	headerSessionID  = "X-Session-ID"
	headerCustomerID = "X-Customer-ID"
)

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
}

type setQtyRequest struct {
	Qty int32 `json:"qty"`
}

type mergeCartRequest struct {
	SessionID string `json:"session_id"`
}

type cartLineDTO struct {
	ProductID  string    `json:"product_id"`
	Qty        int32     `json:"qty"`
	PriceMinor int64     `json:"price_minor"`
	AddedAt    time.Time `json:"added_at"`
}

type cartDTO struct {
	Lines      []cartLineDTO `json:"lines"`
	TotalMinor int64         `json:"total_minor"`
}

// resolveOwner извлекает владельца корзины из заголовков запроса.
func resolveOwner(r *http.Request) (domain.CartOwner, bool) {
	if customerID := r.Header.Get(headerCustomerID); customerID != "" {
		return domain.CustomerOwner(customerID), true
	}
	if sessionID := r.Header.Get(headerSessionID); sessionID != "" {
		return domain.GuestOwner(sessionID), true
	}
	return domain.CartOwner{}, false
}

func toCartDTO(lines []domain.CartLine) cartDTO {
	dto := cartDTO{Lines: make([]cartLineDTO, 0, len(lines))}
	for _, line := range lines {
		dto.Lines = append(dto.Lines, cartLineDTO{
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: line.PriceMinor,
			AddedAt:    line.AddedAt,
		})
		dto.TotalMinor += int64(line.Qty) * line.PriceMinor
	}
	return dto
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(r)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "owner_required", "X-Session-ID or X-Customer-ID header is required")
		return
	}

	lines, err := h.carts.List(owner)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toCartDTO(lines))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(r)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "owner_required", "X-Session-ID or X-Customer-ID header is required")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	if err := h.carts.Add(owner, req.ProductID, req.Qty); err != nil {
		h.respondDomainError(w, err)
		return
	}

	lines, err := h.carts.List(owner)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toCartDTO(lines))
}

func (h *Handler) setCartItemQty(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(r)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "owner_required", "X-Session-ID or X-Customer-ID header is required")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req setQtyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.carts.SetQty(owner, productID, req.Qty); err != nil {
		h.respondDomainError(w, err)
		return
	}

	lines, err := h.carts.List(owner)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toCartDTO(lines))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(r)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "owner_required", "X-Session-ID or X-Customer-ID header is required")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	if err := h.carts.Remove(owner, productID); err != nil {
		h.respondDomainError(w, err)
		return
	}

	lines, err := h.carts.List(owner)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toCartDTO(lines))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(r)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "owner_required", "X-Session-ID or X-Customer-ID header is required")
		return
	}

	if err := h.carts.Empty(owner); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toCartDTO(nil))
}

// mergeCart переносит гостевую корзину в корзину залогиненного клиента.
func (h *Handler) mergeCart(w http.ResponseWriter, r *http.Request) {
	customerID := r.Header.Get(headerCustomerID)
	if customerID == "" {
		h.respondError(w, http.StatusUnauthorized, "customer_required", "X-Customer-ID header is required")
		return
	}

	var req mergeCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = r.Header.Get(headerSessionID)
	}
	if req.SessionID == "" {
		h.respondError(w, http.StatusBadRequest, "session_required", "session_id is required")
		return
	}

	if err := h.carts.Merge(req.SessionID, customerID); err != nil {
		h.respondDomainError(w, err)
		return
	}

	lines, err := h.carts.List(domain.CustomerOwner(customerID))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toCartDTO(lines))
}
