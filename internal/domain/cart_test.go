package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestCartOwnerValidate(t *testing.T) {
	if err := domain.GuestOwner("sess-1").Validate(); err != nil {
		t.Fatalf("guest owner must be valid: %v", err)
	}
	if err := domain.CustomerOwner("cust-1").Validate(); err != nil {
		t.Fatalf("customer owner must be valid: %v", err)
	}

	if err := domain.GuestOwner("").Validate(); !errors.Is(err, domain.ErrOwnerIDRequired) {
		t.Fatalf("empty id: expected ErrOwnerIDRequired, got %v", err)
	}
	bad := domain.CartOwner{Kind: "session", ID: "x"}
	if err := bad.Validate(); !errors.Is(err, domain.ErrOwnerKindInvalid) {
		t.Fatalf("bad kind: expected ErrOwnerKindInvalid, got %v", err)
	}
}

func TestCartOwnerIsGuest(t *testing.T) {
	if !domain.GuestOwner("s").IsGuest() {
		t.Fatal("guest owner must report IsGuest")
	}
	if domain.CustomerOwner("c").IsGuest() {
		t.Fatal("customer owner must not report IsGuest")
	}
}

func TestCartLineValidate(t *testing.T) {
	line := domain.CartLine{
		Owner:      domain.CustomerOwner("cust-1"),
		ProductID:  "product-1",
		Qty:        1,
		PriceMinor: 999,
		AddedAt:    time.Now().UTC(),
	}
	if err := line.Validate(); err != nil {
		t.Fatalf("line must be valid: %v", err)
	}

	zero := line
	zero.Qty = 0
	if err := zero.Validate(); !errors.Is(err, domain.ErrCartQtyInvalid) {
		t.Fatalf("qty 0: expected ErrCartQtyInvalid, got %v", err)
	}

	negative := line
	negative.Qty = -3
	if err := negative.Validate(); !errors.Is(err, domain.ErrCartQtyInvalid) {
		t.Fatalf("negative qty: expected ErrCartQtyInvalid, got %v", err)
	}

	noProduct := line
	noProduct.ProductID = ""
	if err := noProduct.Validate(); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("no product: expected ErrProductNotFound, got %v", err)
	}
}
