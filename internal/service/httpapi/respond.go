package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// ErrorResponse — единый формат ошибки API.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// shortfallDTO описывает одну строку с нехваткой стока.
type shortfallDTO struct {
	ProductID string `json:"product_id"`
	Requested int32  `json:"requested"`
	Available int32  `json:"available"`
}

// priceDriftDTO описывает отклонение суммы корзины от актуальных цен.
type priceDriftDTO struct {
	OldTotalMinor int64           `json:"old_total_minor"`
	NewTotalMinor int64           `json:"new_total_minor"`
	Changes       []lineChangeDTO `json:"changes,omitempty"`
}

type lineChangeDTO struct {
	ProductID     string `json:"product_id"`
	OldPriceMinor int64  `json:"old_price_minor"`
	NewPriceMinor int64  `json:"new_price_minor"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("failed to encode response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondDomainError транслирует доменную ошибку в HTTP-статус и тело.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	var (
		stockErr   *domain.StockError
		driftErr   *domain.PriceDriftError
		unavailErr *domain.ProductUnavailableError
		faultErr   *domain.ConsistencyFaultError
	)

	switch {
	case errors.As(err, &stockErr):
		shortfalls := make([]shortfallDTO, 0, len(stockErr.Shortfalls))
		for _, s := range stockErr.Shortfalls {
			shortfalls = append(shortfalls, shortfallDTO(s))
		}
		h.respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:   stockErr.Error(),
			Code:    "insufficient_stock",
			Details: shortfalls,
		})
	case errors.As(err, &driftErr):
		changes := make([]lineChangeDTO, 0, len(driftErr.Changes))
		for _, c := range driftErr.Changes {
			changes = append(changes, lineChangeDTO(c))
		}
		h.respondJSON(w, http.StatusConflict, ErrorResponse{
			Error: driftErr.Error(),
			Code:  "price_drift",
			Details: priceDriftDTO{
				OldTotalMinor: driftErr.OldTotalMinor,
				NewTotalMinor: driftErr.NewTotalMinor,
				Changes:       changes,
			},
		})
	case errors.As(err, &unavailErr):
		h.respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:   unavailErr.Error(),
			Code:    "product_unavailable",
			Details: map[string]string{"product_id": unavailErr.ProductID},
		})
	case errors.As(err, &faultErr):
		h.logger.WithError(err).Error("consistency fault surfaced to API")
		h.respondError(w, http.StatusInternalServerError, "consistency_fault",
			"payment verified but not recorded; manual reconciliation required")
	case errors.Is(err, domain.ErrGuestCheckout):
		h.respondError(w, http.StatusForbidden, "guest_checkout", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCartLineNotFound):
		h.respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrGatewayUnavailable):
		h.respondError(w, http.StatusBadGateway, "gateway_unavailable", err.Error())
	case errors.Is(err, domain.ErrPaymentNotApproved):
		h.respondError(w, http.StatusPaymentRequired, "payment_not_approved", err.Error())
	case errors.Is(err, domain.ErrAmountMismatch),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrOrderVersionConflict),
		errors.Is(err, domain.ErrRestoreNotPermitted):
		h.respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrCartEmpty),
		errors.Is(err, domain.ErrCartQtyInvalid),
		errors.Is(err, domain.ErrOwnerIDRequired),
		errors.Is(err, domain.ErrOwnerKindInvalid),
		errors.Is(err, domain.ErrStatusInvalid),
		errors.Is(err, domain.ErrTransactionRefRequired),
		errors.Is(err, domain.ErrCustomerRequired),
		errors.Is(err, domain.ErrOrderIDRequired):
		h.respondError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		h.logger.WithError(err).Error("unhandled error in HTTP API")
		h.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
