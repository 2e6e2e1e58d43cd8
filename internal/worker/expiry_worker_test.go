package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/communa-labs/ticketing/internal/domain"
	"github.com/communa-labs/ticketing/internal/inventory"
	"github.com/communa-labs/ticketing/internal/repository"
	"github.com/communa-labs/ticketing/internal/scancode"
	"github.com/communa-labs/ticketing/internal/service"
)

func staleReservation(ticketTypeID string) *domain.Ticket {
	now := time.Now()
	return &domain.Ticket{
		ID:            uuid.New().String(),
		Serial:        uuid.New().String(),
		TicketTypeID:  ticketTypeID,
		Sellable:      domain.Sellable{Kind: domain.SellableKindEvent, ID: "event-001"},
		OwnerID:       "user-001",
		Status:        domain.TicketStatusReserved,
		ValidFrom:     now.Add(-time.Hour),
		ValidUntil:    now.Add(time.Hour),
		ReservedAt:    now.Add(-30 * time.Minute),
		HoldExpiresAt: now.Add(-15 * time.Minute),
		CreatedAt:     now.Add(-30 * time.Minute),
		UpdatedAt:     now.Add(-30 * time.Minute),
	}
}

func newSweepService(t *testing.T, ticketRepo *repository.MemoryTicketRepository, ledger *inventory.MemoryLedger) service.TicketService {
	t.Helper()
	codec := scancode.New("test-secret", "")
	return service.NewTicketService(ticketRepo, nil, ledger, codec, service.NewNoOpEventPublisher(), nil, nil)
}

func TestExpiryWorker_SweepExpiresLapsedHolds(t *testing.T) {
	ledger := inventory.NewMemoryLedger()
	ledger.Register("type-001", 10, 4)

	ticketRepo := repository.NewMemoryTicketRepository()
	for i := 0; i < 3; i++ {
		if err := ticketRepo.Create(context.Background(), staleReservation("type-001")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// One live hold that must survive the sweep.
	live := staleReservation("type-001")
	live.HoldExpiresAt = time.Now().Add(10 * time.Minute)
	if err := ticketRepo.Create(context.Background(), live); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc := newSweepService(t, ticketRepo, ledger)
	w := NewExpiryWorker(svc, &ExpiryWorkerConfig{SweepInterval: time.Hour, BatchSize: 100})

	w.sweep(context.Background())

	stats := w.GetStats()
	if stats.LastSweepCount != 3 {
		t.Errorf("expected 3 expired in the sweep, got %d", stats.LastSweepCount)
	}
	if stats.TotalExpired != 3 {
		t.Errorf("expected total expired 3, got %d", stats.TotalExpired)
	}

	avail, err := ledger.CheckAvailability(context.Background(), "type-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if avail.Sold != 1 {
		t.Errorf("expected only the live hold to remain counted, sold=%d", avail.Sold)
	}

	stored, err := ticketRepo.GetByID(context.Background(), live.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != domain.TicketStatusReserved {
		t.Errorf("expected the live hold to stay reserved, got %s", stored.Status)
	}
}

func TestExpiryWorker_StartStop(t *testing.T) {
	ledger := inventory.NewMemoryLedger()
	ledger.Register("type-001", 10, 1)

	ticketRepo := repository.NewMemoryTicketRepository()
	if err := ticketRepo.Create(context.Background(), staleReservation("type-001")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc := newSweepService(t, ticketRepo, ledger)
	w := NewExpiryWorker(svc, &ExpiryWorkerConfig{SweepInterval: 10 * time.Millisecond, BatchSize: 10})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Error("expected an error starting the worker twice")
	}

	// The initial sweep runs synchronously inside the goroutine; give it
	// a moment before stopping.
	time.Sleep(50 * time.Millisecond)
	w.Stop()

	stats := w.GetStats()
	if stats.IsRunning {
		t.Error("expected the worker to report stopped")
	}
	if stats.TotalExpired != 1 {
		t.Errorf("expected 1 expired hold, got %d", stats.TotalExpired)
	}

	// Stop again is a no-op.
	w.Stop()
}
