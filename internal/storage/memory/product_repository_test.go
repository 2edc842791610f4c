package memory

import (
	"errors"
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestProductGet(t *testing.T) {
	repo := NewProductRepository()
	repo.Seed(domain.Product{ID: "p1", Title: "Widget", PriceMinor: 500, Stock: 10, Purchasable: true})

	p, err := repo.Get("p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.PriceMinor != 500 || p.Stock != 10 {
		t.Fatalf("unexpected product: %+v", p)
	}

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductDecrementStockConditional(t *testing.T) {
	repo := NewProductRepository()
	repo.Seed(domain.Product{ID: "p1", Stock: 5, Purchasable: true})

	affected, err := repo.DecrementStock("p1", 3)
	if err != nil || affected != 1 {
		t.Fatalf("decrement 3: affected=%d err=%v", affected, err)
	}

	// Списание, уводящее сток в минус, отклоняется, а не клампится.
	affected, err = repo.DecrementStock("p1", 3)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if affected != 0 {
		t.Fatalf("oversell decrement must affect 0 rows, got %d", affected)
	}

	p, _ := repo.Get("p1")
	if p.Stock != 2 {
		t.Fatalf("stock = %d, want 2", p.Stock)
	}
}

func TestProductIncrementStock(t *testing.T) {
	repo := NewProductRepository()
	repo.Seed(domain.Product{ID: "p1", Stock: 2})

	if err := repo.IncrementStock("p1", 3); err != nil {
		t.Fatalf("increment: %v", err)
	}
	p, _ := repo.Get("p1")
	if p.Stock != 5 {
		t.Fatalf("stock = %d, want 5", p.Stock)
	}

	if err := repo.IncrementStock("missing", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

// Конкурентные списания никогда не продают больше имеющегося стока.
func TestProductConcurrentDecrementNeverOversells(t *testing.T) {
	repo := NewProductRepository()
	const stock = 50
	repo.Seed(domain.Product{ID: "p1", Stock: stock, Purchasable: true})

	const workers = 30
	const perWorker = 3

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			affected, err := repo.DecrementStock("p1", perWorker)
			if err != nil {
				return
			}
			if affected == 1 {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	p, _ := repo.Get("p1")
	if p.Stock < 0 {
		t.Fatalf("stock went negative: %d", p.Stock)
	}
	if int32(succeeded*perWorker) != stock-p.Stock {
		t.Fatalf("accounting mismatch: %d sold, stock %d", succeeded*perWorker, p.Stock)
	}
	if succeeded*perWorker > stock {
		t.Fatalf("oversold: %d units from stock %d", succeeded*perWorker, stock)
	}
}
