package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type orderLineDTO struct {
	ProductID  string `json:"product_id"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

type orderDTO struct {
	ID            string         `json:"id"`
	Reference     string         `json:"reference"`
	CustomerID    string         `json:"customer_id"`
	Status        string         `json:"status"`
	Currency      string         `json:"currency"`
	TotalMinor    int64          `json:"total_minor"`
	InvoiceNo     string         `json:"invoice_no,omitempty"`
	TrackingNotes string         `json:"tracking_notes,omitempty"`
	Lines         []orderLineDTO `json:"lines"`
	Version       int64          `json:"version"`
	OrderDate     time.Time      `json:"order_date"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type timelineStepDTO struct {
	Label     string     `json:"label"`
	Icon      string     `json:"icon"`
	Status    string     `json:"status"`
	Completed bool       `json:"completed"`
	Current   bool       `json:"current"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func toOrderDTO(ord domain.Order) orderDTO {
	lines := make([]orderLineDTO, 0, len(ord.Lines))
	for _, line := range ord.Lines {
		lines = append(lines, orderLineDTO{
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: line.PriceMinor,
		})
	}
	return orderDTO{
		ID:            ord.ID,
		Reference:     ord.Reference,
		CustomerID:    ord.CustomerID,
		Status:        string(ord.Status),
		Currency:      ord.Currency,
		TotalMinor:    ord.TotalMinor,
		InvoiceNo:     ord.InvoiceNo,
		TrackingNotes: ord.TrackingNotes,
		Lines:         lines,
		Version:       ord.Version,
		OrderDate:     ord.OrderDate,
		UpdatedAt:     ord.UpdatedAt,
	}
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	customerID := r.Header.Get(headerCustomerID)
	if customerID == "" {
		h.respondError(w, http.StatusUnauthorized, "customer_required", "X-Customer-ID header is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	orders, err := h.orders.List(customerID, limit)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	dtos := make([]orderDTO, 0, len(orders))
	for _, ord := range orders {
		dtos = append(dtos, toOrderDTO(ord))
	}
	h.respondJSON(w, http.StatusOK, dtos)
}

// getOrder ищет заказ по внутреннему ID, а при промахе — по клиентскому
// reference: обе формы встречаются в ссылках из писем и чеков.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ord, err := h.orders.Get(id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		ord, err = h.orders.GetByReference(id)
	}
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderDTO(ord))
}

func (h *Handler) getOrderTimeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ord, err := h.orders.Get(id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		ord, err = h.orders.GetByReference(id)
	}
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	steps, err := h.orders.Timeline(ord.ID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	dtos := make([]timelineStepDTO, 0, len(steps))
	for _, step := range steps {
		dtos = append(dtos, timelineStepDTO{
			Label:     step.Label,
			Icon:      step.Icon,
			Status:    string(step.Status),
			Completed: step.Completed,
			Current:   step.Current,
			Timestamp: step.Timestamp,
		})
	}
	h.respondJSON(w, http.StatusOK, dtos)
}

// fulfillOrder — ручная сверка: резервирует сток для pending-заказа, оплата
// которого подтвердилась вне основного пути (например, после consistency
// fault), и переводит его в confirmed. Для заказа в любом другом статусе
// возвращает ошибку валидации: сток там либо уже удержан, либо не нужен.
func (h *Handler) fulfillOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ord, err := h.orders.Get(id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		ord, err = h.orders.GetByReference(id)
	}
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	if err := h.fulfill.Fulfill(r.Context(), ord.ID); err != nil {
		h.respondDomainError(w, err)
		return
	}

	updated, err := h.orders.UpdateStatus(r.Context(), ord.ID, domain.OrderStatusConfirmed, "manual fulfillment")
	if err != nil {
		h.logger.WithError(err).WithField("order_id", ord.ID).
			Error("stock fulfilled but confirm status not persisted")
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderDTO(updated))
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Status == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_status", "status is required")
		return
	}

	ord, err := h.orders.UpdateStatus(r.Context(), id, domain.OrderStatus(req.Status), req.Notes)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderDTO(ord))
}
