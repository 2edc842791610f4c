package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestBuildTimeline_Pending(t *testing.T) {
	orderDate := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	updatedAt := orderDate

	steps := domain.BuildTimeline(domain.OrderStatusPending, orderDate, updatedAt)
	if len(steps) != 5 {
		t.Fatalf("expected 5 forward steps, got %d", len(steps))
	}

	if !steps[0].Completed || !steps[0].Current {
		t.Fatalf("first step must be completed and current: %+v", steps[0])
	}
	if steps[0].Timestamp == nil || !steps[0].Timestamp.Equal(orderDate) {
		t.Fatalf("first step must carry order date")
	}
	for i := 1; i < len(steps); i++ {
		if steps[i].Completed || steps[i].Current {
			t.Fatalf("step %d must not be completed/current: %+v", i, steps[i])
		}
		if steps[i].Timestamp != nil {
			t.Fatalf("future step %d must have nil timestamp", i)
		}
	}
}

func TestBuildTimeline_Shipped(t *testing.T) {
	orderDate := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	updatedAt := orderDate.Add(48 * time.Hour)

	steps := domain.BuildTimeline(domain.OrderStatusShipped, orderDate, updatedAt)
	if len(steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(steps))
	}

	for i, step := range steps {
		wantCompleted := i <= 3
		if step.Completed != wantCompleted {
			t.Fatalf("step %d completed=%v, want %v", i, step.Completed, wantCompleted)
		}
		if step.Current != (i == 3) {
			t.Fatalf("step %d current=%v", i, step.Current)
		}
	}

	if steps[3].Timestamp == nil || !steps[3].Timestamp.Equal(updatedAt) {
		t.Fatal("current step must carry updated_at")
	}
	if steps[1].Timestamp != nil || steps[2].Timestamp != nil {
		t.Fatal("intermediate completed steps have no known timestamp")
	}
}

func TestBuildTimeline_Cancelled(t *testing.T) {
	orderDate := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	updatedAt := orderDate.Add(time.Hour)

	steps := domain.BuildTimeline(domain.OrderStatusCancelled, orderDate, updatedAt)
	if len(steps) != 1 {
		t.Fatalf("cancelled order renders as a single step, got %d", len(steps))
	}
	step := steps[0]
	if step.Status != domain.OrderStatusCancelled || !step.Completed || !step.Current {
		t.Fatalf("unexpected cancelled step: %+v", step)
	}
	if step.Timestamp == nil || !step.Timestamp.Equal(updatedAt) {
		t.Fatal("cancelled step must carry updated_at")
	}
}

func TestBuildTimeline_DeliveredAllCompleted(t *testing.T) {
	orderDate := time.Now().UTC()
	steps := domain.BuildTimeline(domain.OrderStatusDelivered, orderDate, orderDate.Add(time.Hour))
	for i, step := range steps {
		if !step.Completed {
			t.Fatalf("step %d must be completed for delivered order", i)
		}
	}
	if !steps[4].Current {
		t.Fatal("delivered step must be current")
	}
}
