package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestCartRepository_PostgresAddSetRemove(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewCartRepository(store)

	seedProductForIntegrationTest(t, store, "prod-1", "Widget", 500, 10)
	owner := domain.GuestOwner("session-1")

	if err := repo.AddLine(domain.CartLine{Owner: owner, ProductID: "prod-1", Qty: 2, PriceMinor: 500, AddedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("add line: %v", err)
	}
	// Повторное добавление того же товара суммирует количество.
	if err := repo.AddLine(domain.CartLine{Owner: owner, ProductID: "prod-1", Qty: 1, PriceMinor: 500, AddedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("add line again: %v", err)
	}

	lines, err := repo.ListLines(owner)
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	if len(lines) != 1 || lines[0].Qty != 3 {
		t.Fatalf("unexpected lines after upsert: %+v", lines)
	}

	if err := repo.SetQty(owner, "prod-1", 5); err != nil {
		t.Fatalf("set qty: %v", err)
	}
	lines, _ = repo.ListLines(owner)
	if lines[0].Qty != 5 {
		t.Fatalf("expected qty 5, got %d", lines[0].Qty)
	}

	// qty <= 0 эквивалентен удалению строки.
	if err := repo.SetQty(owner, "prod-1", 0); err != nil {
		t.Fatalf("set qty to zero: %v", err)
	}
	lines, _ = repo.ListLines(owner)
	if len(lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", lines)
	}

	if err := repo.RemoveLine(owner, "prod-1"); !errors.Is(err, domain.ErrCartLineNotFound) {
		t.Fatalf("expected ErrCartLineNotFound, got %v", err)
	}
}

func TestCartRepository_PostgresMergeGuestIntoCustomer(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewCartRepository(store)

	seedProductForIntegrationTest(t, store, "prod-a", "Gadget A", 500, 10)
	seedProductForIntegrationTest(t, store, "prod-b", "Gadget B", 700, 10)

	guest := domain.GuestOwner("session-2")
	customer := domain.CustomerOwner("customer-2")
	now := time.Now().UTC()

	for _, line := range []domain.CartLine{
		{Owner: guest, ProductID: "prod-a", Qty: 2, PriceMinor: 500, AddedAt: now},
		{Owner: guest, ProductID: "prod-b", Qty: 1, PriceMinor: 700, AddedAt: now},
		{Owner: customer, ProductID: "prod-a", Qty: 1, PriceMinor: 500, AddedAt: now},
	} {
		if err := repo.AddLine(line); err != nil {
			t.Fatalf("seed cart line %s: %v", line.ProductID, err)
		}
	}

	if err := repo.MergeGuestIntoCustomer(guest, customer); err != nil {
		t.Fatalf("merge: %v", err)
	}

	merged, err := repo.ListLines(customer)
	if err != nil {
		t.Fatalf("list merged lines: %v", err)
	}
	got := map[string]int32{}
	for _, l := range merged {
		got[l.ProductID] = l.Qty
	}
	if got["prod-a"] != 3 || got["prod-b"] != 1 {
		t.Fatalf("unexpected merged quantities: %+v", got)
	}

	guestLines, _ := repo.ListLines(guest)
	if len(guestLines) != 0 {
		t.Fatalf("guest cart must be empty after merge: %+v", guestLines)
	}

	// Повторный merge пустого гостя ничего не меняет.
	if err := repo.MergeGuestIntoCustomer(guest, customer); err != nil {
		t.Fatalf("repeat merge: %v", err)
	}
	merged, _ = repo.ListLines(customer)
	if len(merged) != 2 {
		t.Fatalf("repeat merge changed cart: %+v", merged)
	}
}

func TestCartRepository_PostgresDeleteStaleGuestLines(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewCartRepository(store)

	seedProductForIntegrationTest(t, store, "prod-old", "Old", 100, 10)

	now := time.Now().UTC()
	stale := domain.CartLine{
		Owner: domain.GuestOwner("session-stale"), ProductID: "prod-old",
		Qty: 1, PriceMinor: 100, AddedAt: now.Add(-48 * time.Hour),
	}
	fresh := domain.CartLine{
		Owner: domain.GuestOwner("session-fresh"), ProductID: "prod-old",
		Qty: 1, PriceMinor: 100, AddedAt: now,
	}
	kept := domain.CartLine{
		Owner: domain.CustomerOwner("customer-3"), ProductID: "prod-old",
		Qty: 1, PriceMinor: 100, AddedAt: now.Add(-48 * time.Hour),
	}
	for _, line := range []domain.CartLine{stale, fresh, kept} {
		if err := repo.AddLine(line); err != nil {
			t.Fatalf("seed line: %v", err)
		}
	}

	removed, err := repo.DeleteStaleGuestLines(now.Add(-24*time.Hour), 100)
	if err != nil {
		t.Fatalf("delete stale: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed line, got %d", removed)
	}

	if lines, _ := repo.ListLines(fresh.Owner); len(lines) != 1 {
		t.Fatal("fresh guest line must survive cleanup")
	}
	if lines, _ := repo.ListLines(kept.Owner); len(lines) != 1 {
		t.Fatal("customer line must survive cleanup")
	}
}
