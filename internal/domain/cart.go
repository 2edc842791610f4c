package domain

import "time"

// OwnerKind различает гостевую и клиентскую корзину.
type OwnerKind string

const (
	// OwnerKindGuest — корзина привязана к гостевой сессии.
	OwnerKindGuest OwnerKind = "guest"
	// OwnerKindCustomer — корзина привязана к залогиненному клиенту.
	OwnerKindCustomer OwnerKind = "customer"
)

// CartOwner — владелец корзины: ровно один из session_id или customer_id.
// Tagged union вместо двух nullable-полей, чтобы операции матчились по Kind.
type CartOwner struct {
	Kind OwnerKind
	ID   string
}

// GuestOwner возвращает владельца-гостя по идентификатору сессии.
func GuestOwner(sessionID string) CartOwner {
	return CartOwner{Kind: OwnerKindGuest, ID: sessionID}
}

// CustomerOwner возвращает владельца-клиента.
func CustomerOwner(customerID string) CartOwner {
	return CartOwner{Kind: OwnerKindCustomer, ID: customerID}
}

// Validate проверяет, что владелец корректно заполнен.
func (o CartOwner) Validate() error {
	switch o.Kind {
	case OwnerKindGuest, OwnerKindCustomer:
	default:
		return ErrOwnerKindInvalid
	}
	if o.ID == "" {
		return ErrOwnerIDRequired
	}
	return nil
}

// IsGuest сообщает, принадлежит ли корзина гостевой сессии.
func (o CartOwner) IsGuest() bool {
	return o.Kind == OwnerKindGuest
}

// CartLine — одна строка корзины. Уникальна по (owner, product_id).
// PriceMinor — цена на момент добавления; checkout никогда не доверяет ей
// как актуальной, она нужна только для расчёта дрейфа.
type CartLine struct {
	Owner      CartOwner
	ProductID  string
	Qty        int32
	PriceMinor int64
	AddedAt    time.Time
}

// Validate проверяет инварианты строки корзины: qty всегда >= 1,
// нулевое или отрицательное количество — это удаление, а не состояние.
func (l CartLine) Validate() error {
	if err := l.Owner.Validate(); err != nil {
		return err
	}
	if l.ProductID == "" {
		return ErrProductNotFound
	}
	if l.Qty < 1 {
		return ErrCartQtyInvalid
	}
	return nil
}
