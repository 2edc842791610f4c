package httpapi

import "net/http"

// postCheckout превращает корзину клиента в заказ. Гостевые корзины
// отклоняются сервисным слоем.
func (h *Handler) postCheckout(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(r)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "owner_required", "X-Session-ID or X-Customer-ID header is required")
		return
	}

	ord, err := h.checkout.Checkout(r.Context(), owner)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toOrderDTO(ord))
}
