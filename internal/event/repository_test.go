package event

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedEvent(id string, price *float64) *Event {
	return &Event{
		ID:        id,
		Title:     "Event " + id,
		Category:  CategoryMusic,
		City:      "portland",
		StartTime: time.Date(2026, 8, 29, 20, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC),
		Price:     price,
	}
}

func TestInMemoryRepositoryGetByID(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.Put(seedEvent("e1", nil))

	got, err := repo.GetByID(context.Background(), "e1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ID != "e1" || got.City != "portland" {
		t.Errorf("GetByID() = %+v", got)
	}

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrEventNotFound", err)
	}
}

func TestInMemoryRepositoryGetByIDsOmitsMissing(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.Put(seedEvent("e1", nil))
	repo.Put(seedEvent("e2", nil))

	got, err := repo.GetByIDs(context.Background(), []string{"e1", "missing", "e2"})
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetByIDs() returned %d events, want 2", len(got))
	}
}

func TestInMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.Put(seedEvent("e1", nil))

	first, _ := repo.GetByID(context.Background(), "e1")
	first.Title = "mutated"

	second, _ := repo.GetByID(context.Background(), "e1")
	if second.Title == "mutated" {
		t.Error("repository returned a shared pointer, want a copy")
	}
}

func TestEventPricing(t *testing.T) {
	price := func(v float64) *float64 { return &v }

	tests := []struct {
		name      string
		price     *float64
		free      bool
		effective float64
	}{
		{"nil price is free", nil, true, 0},
		{"zero price is free", price(0), true, 0},
		{"negative price is free", price(-5), true, 0},
		{"paid event", price(22.5), false, 22.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := seedEvent("e1", tt.price)
			if got := e.Free(); got != tt.free {
				t.Errorf("Free() = %v, want %v", got, tt.free)
			}
			if got := e.EffectivePrice(); got != tt.effective {
				t.Errorf("EffectivePrice() = %g, want %g", got, tt.effective)
			}
		})
	}
}
