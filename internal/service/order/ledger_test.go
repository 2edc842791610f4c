package order_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/service/fulfillment"
	"github.com/vladislavdragonenkov/checkout/internal/service/order"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
)

type ledgerFixture struct {
	ledger   *order.Ledger
	orders   domain.OrderRepository
	products *memory.ProductRepositoryInMemory
	outbox   *memory.OutboxRepositoryInMemory
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	products := memory.NewProductRepository()
	products.Seed(domain.Product{ID: "p1", Title: "Widget", PriceMinor: 500, Stock: 10, Purchasable: true})
	products.Seed(domain.Product{ID: "p2", Title: "Gadget", PriceMinor: 700, Stock: 3, Purchasable: true})

	orders := memory.NewOrderRepository(products)
	outbox := memory.NewOutboxRepository()
	restorer := fulfillment.NewEngine(orders, products, nil, nil)

	return &ledgerFixture{
		ledger:   order.NewLedger(orders, restorer, outbox, nil, nil),
		orders:   orders,
		products: products,
		outbox:   outbox,
	}
}

func (f *ledgerFixture) createOrder(t *testing.T, lines []domain.OrderLine) domain.Order {
	t.Helper()

	created, err := f.ledger.CreateOrder(context.Background(), "customer-1", "USD", lines)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return created
}

func TestLedger_CreateOrder(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)
	created := f.createOrder(t, []domain.OrderLine{
		{ProductID: "p1", Qty: 2, PriceMinor: 500},
		{ProductID: "p2", Qty: 1, PriceMinor: 700},
	})

	if created.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending status, got %s", created.Status)
	}
	if created.TotalMinor != 1700 {
		t.Fatalf("expected total 1700, got %d", created.TotalMinor)
	}
	if !strings.HasPrefix(created.Reference, "ORD-") {
		t.Fatalf("unexpected reference format: %s", created.Reference)
	}
	if created.InvoiceNo != "" {
		t.Fatal("invoice number must be empty until payment")
	}
	for _, line := range created.Lines {
		if line.OrderID != created.ID {
			t.Fatalf("line not stamped with order id: %+v", line)
		}
	}

	stored, err := f.ledger.Get(created.ID)
	if err != nil {
		t.Fatalf("get created order: %v", err)
	}
	if stored.Reference != created.Reference {
		t.Fatalf("stored order mismatch: %+v", stored)
	}

	if events := f.outbox.AllPending(); len(events) != 1 || events[0].EventType != domain.EventOrderCreated {
		t.Fatalf("expected order.created outbox event, got %+v", events)
	}
}

func TestLedger_CreateOrderRejectsInvalid(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)

	if _, err := f.ledger.CreateOrder(context.Background(), "", "USD", []domain.OrderLine{
		{ProductID: "p1", Qty: 1, PriceMinor: 500},
	}); !errors.Is(err, domain.ErrCustomerRequired) {
		t.Fatalf("expected ErrCustomerRequired, got %v", err)
	}

	if _, err := f.ledger.CreateOrder(context.Background(), "customer-1", "USD", nil); !errors.Is(err, domain.ErrLinesRequired) {
		t.Fatalf("expected ErrLinesRequired, got %v", err)
	}
}

func TestLedger_RecordPayment(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)
	created := f.createOrder(t, []domain.OrderLine{
		{ProductID: "p1", Qty: 3, PriceMinor: 500},
	})

	paid, err := f.ledger.RecordPayment(context.Background(), created.ID, 1500, "USD", "txn-1", "card")
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if paid.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", paid.Status)
	}
	if !strings.HasPrefix(paid.InvoiceNo, "INV-") {
		t.Fatalf("unexpected invoice number: %s", paid.InvoiceNo)
	}

	p1, _ := f.products.Get("p1")
	if p1.Stock != 7 {
		t.Fatalf("expected stock 7 after payment, got %d", p1.Stock)
	}

	// Повтор — идемпотентный конфликт, сток не трогается.
	replay, err := f.ledger.RecordPayment(context.Background(), created.ID, 1500, "USD", "txn-1", "card")
	if !domain.IsAlreadyProcessed(err) {
		t.Fatalf("expected ErrPaymentAlreadyProcessed, got %v", err)
	}
	if replay.ID != created.ID {
		t.Fatalf("replay must return the order, got %+v", replay)
	}
	p1, _ = f.products.Get("p1")
	if p1.Stock != 7 {
		t.Fatalf("replay changed stock: %d", p1.Stock)
	}
}

func TestLedger_RecordPaymentMismatches(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)
	created := f.createOrder(t, []domain.OrderLine{
		{ProductID: "p1", Qty: 2, PriceMinor: 500},
	})

	if _, err := f.ledger.RecordPayment(context.Background(), created.ID, 999, "USD", "txn-2", "card"); !errors.Is(err, domain.ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
	if _, err := f.ledger.RecordPayment(context.Background(), created.ID, 1000, "EUR", "txn-3", "card"); !errors.Is(err, domain.ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := f.ledger.RecordPayment(context.Background(), created.ID, 1000, "USD", "", "card"); !errors.Is(err, domain.ErrTransactionRefRequired) {
		t.Fatalf("expected ErrTransactionRefRequired, got %v", err)
	}
	if _, err := f.ledger.RecordPayment(context.Background(), "missing", 1000, "USD", "txn-4", "card"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestLedger_RecordPaymentStockShortfall(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)
	created := f.createOrder(t, []domain.OrderLine{
		{ProductID: "p2", Qty: 3, PriceMinor: 700},
	})

	// Сток уходит между созданием заказа и оплатой.
	if _, err := f.products.DecrementStock("p2", 2); err != nil {
		t.Fatalf("drain stock: %v", err)
	}

	_, err := f.ledger.RecordPayment(context.Background(), created.ID, 2100, "USD", "txn-5", "card")
	stockErr, ok := domain.AsStockError(err)
	if !ok {
		t.Fatalf("expected StockError, got %v", err)
	}
	if stockErr.Shortfalls[0].ProductID != "p2" || stockErr.Shortfalls[0].Available != 1 {
		t.Fatalf("unexpected shortfall: %+v", stockErr.Shortfalls[0])
	}

	// Заказ остался pending, платёж не записан.
	after, _ := f.ledger.Get(created.ID)
	if after.Status != domain.OrderStatusPending || after.InvoiceNo != "" {
		t.Fatalf("order must stay pending after stock failure: %+v", after)
	}
}

func TestLedger_UpdateStatusFlow(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)
	created := f.createOrder(t, []domain.OrderLine{
		{ProductID: "p1", Qty: 1, PriceMinor: 500},
	})

	updated, err := f.ledger.UpdateStatus(context.Background(), created.ID, domain.OrderStatusConfirmed, "manual confirm")
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.OrderStatusConfirmed || updated.TrackingNotes != "manual confirm" {
		t.Fatalf("unexpected order after update: %+v", updated)
	}

	if _, err := f.ledger.UpdateStatus(context.Background(), created.ID, domain.OrderStatus("unknown"), ""); !errors.Is(err, domain.ErrStatusInvalid) {
		t.Fatalf("expected ErrStatusInvalid, got %v", err)
	}

	// Повтор того же статуса — no-op.
	again, err := f.ledger.UpdateStatus(context.Background(), created.ID, domain.OrderStatusConfirmed, "")
	if err != nil {
		t.Fatalf("repeat update: %v", err)
	}
	if again.Version != updated.Version {
		t.Fatalf("no-op update must not bump version: %d vs %d", again.Version, updated.Version)
	}
}

func TestLedger_CancelRestoresStockExactlyOnce(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)
	created := f.createOrder(t, []domain.OrderLine{
		{ProductID: "p1", Qty: 4, PriceMinor: 500},
	})

	if _, err := f.ledger.RecordPayment(context.Background(), created.ID, 2000, "USD", "txn-6", "card"); err != nil {
		t.Fatalf("record payment: %v", err)
	}
	p1, _ := f.products.Get("p1")
	if p1.Stock != 6 {
		t.Fatalf("expected stock 6 after payment, got %d", p1.Stock)
	}

	cancelled, err := f.ledger.UpdateStatus(context.Background(), created.ID, domain.OrderStatusCancelled, "customer request")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	p1, _ = f.products.Get("p1")
	if p1.Stock != 10 {
		t.Fatalf("expected stock restored to 10, got %d", p1.Stock)
	}

	// Из терминального статуса выхода нет, второй возврат стока невозможен.
	if _, err := f.ledger.UpdateStatus(context.Background(), created.ID, domain.OrderStatusProcessing, ""); !errors.Is(err, domain.ErrStatusInvalid) {
		t.Fatalf("expected ErrStatusInvalid from terminal, got %v", err)
	}
	cancelledAgain, err := f.ledger.UpdateStatus(context.Background(), created.ID, domain.OrderStatusCancelled, "")
	if err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if cancelledAgain.Status != domain.OrderStatusCancelled {
		t.Fatalf("unexpected status: %s", cancelledAgain.Status)
	}
	p1, _ = f.products.Get("p1")
	if p1.Stock != 10 {
		t.Fatalf("repeat cancel must not restore again, got %d", p1.Stock)
	}
}

// failingRestorer имитирует отказ возврата стока при отмене.
type failingRestorer struct {
	err   error
	calls int
}

func (r *failingRestorer) Restore(_ context.Context, _ string) error {
	r.calls++
	return r.err
}

func TestLedger_CancelPersistsWhenRestoreFails(t *testing.T) {
	t.Parallel()

	products := memory.NewProductRepository()
	products.Seed(domain.Product{ID: "p1", Title: "Widget", PriceMinor: 500, Stock: 10, Purchasable: true})
	orders := memory.NewOrderRepository(products)
	outbox := memory.NewOutboxRepository()
	restorer := &failingRestorer{err: errors.New("storage gone")}
	ledger := order.NewLedger(orders, restorer, outbox, nil, nil)

	created, err := ledger.CreateOrder(context.Background(), "customer-1", "USD", []domain.OrderLine{
		{ProductID: "p1", Qty: 2, PriceMinor: 500},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := ledger.RecordPayment(context.Background(), created.ID, 1000, "USD", "txn-7", "card"); err != nil {
		t.Fatalf("record payment: %v", err)
	}

	// Статус сохраняется до возврата стока: отказ возврата не отменяет отмену.
	cancelled, err := ledger.UpdateStatus(context.Background(), created.ID, domain.OrderStatusCancelled, "")
	if err != nil {
		t.Fatalf("cancel must succeed despite restore failure: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if restorer.calls != 1 {
		t.Fatalf("expected exactly one restore attempt, got %d", restorer.calls)
	}

	// Сток остаётся заниженным, не задвоенным.
	p1, _ := products.Get("p1")
	if p1.Stock != 8 {
		t.Fatalf("stock must stay decremented, got %d", p1.Stock)
	}

	var sawFailure, sawRestored bool
	for _, e := range outbox.AllPending() {
		switch e.EventType {
		case domain.EventStockRestoreFailed:
			sawFailure = true
		case domain.EventStockRestored:
			sawRestored = true
		}
	}
	if !sawFailure {
		t.Fatal("expected stock.restore_failed outbox event")
	}
	if sawRestored {
		t.Fatal("stock.restored must not be emitted on failed restore")
	}

	// Повтор отмены — no-op по гейту, второй Restore не запускается.
	if _, err := ledger.UpdateStatus(context.Background(), created.ID, domain.OrderStatusCancelled, ""); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if restorer.calls != 1 {
		t.Fatalf("repeat cancel must not retry restore, got %d calls", restorer.calls)
	}
}

func TestLedger_CancelFromPendingDoesNotRestore(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)
	created := f.createOrder(t, []domain.OrderLine{
		{ProductID: "p1", Qty: 2, PriceMinor: 500},
	})

	// Pending сток не удерживает: отмена не должна его трогать.
	if _, err := f.ledger.UpdateStatus(context.Background(), created.ID, domain.OrderStatusCancelled, ""); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}

	p1, _ := f.products.Get("p1")
	if p1.Stock != 10 {
		t.Fatalf("pending cancel must not change stock, got %d", p1.Stock)
	}
}

func TestLedger_Timeline(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)
	created := f.createOrder(t, []domain.OrderLine{
		{ProductID: "p1", Qty: 1, PriceMinor: 500},
	})

	steps, err := f.ledger.Timeline(created.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(steps) == 0 || !steps[0].Current {
		t.Fatalf("expected pending to be the current first step, got %+v", steps)
	}

	if _, err := f.ledger.Timeline("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
