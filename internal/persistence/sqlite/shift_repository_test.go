package sqlite

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/example/fieldops/internal/persistence"
)

func openShift(id, workerID, workerKind string) persistence.ShiftRecord {
	scheduleID := "schedule-1"
	return persistence.ShiftRecord{
		ID:                   id,
		WorkerID:             workerID,
		WorkerKind:           workerKind,
		ClientID:             "client-1",
		ScheduleID:           &scheduleID,
		CheckInAt:            referenceTime(),
		CheckInLatitude:      40.7128,
		CheckInLongitude:     -74.0060,
		CheckInDistanceMiles: 0.2,
	}
}

func TestShiftRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestStorage(t).Shifts

	if _, err := repo.GetOpenShift(ctx, "alice", "staff"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before check-in, got %v", err)
	}

	if err := repo.CreateOpenShift(ctx, openShift("shift-1", "alice", "staff")); err != nil {
		t.Fatalf("CreateOpenShift failed: %v", err)
	}

	open, err := repo.GetOpenShift(ctx, "alice", "staff")
	if err != nil {
		t.Fatalf("GetOpenShift failed: %v", err)
	}
	if open.ID != "shift-1" || open.CheckOutAt != nil || open.ScheduleID == nil || *open.ScheduleID != "schedule-1" {
		t.Fatalf("unexpected open shift: %#v", open)
	}
	if !open.CheckInAt.Equal(referenceTime()) || open.CheckInDistanceMiles != 0.2 {
		t.Fatalf("check-in fields not persisted: %#v", open)
	}

	closure := persistence.ShiftClosure{
		ID:              "shift-1",
		WorkerID:        "alice",
		WorkerKind:      "staff",
		CheckOutAt:      referenceTime().Add(2*time.Hour + 30*time.Second),
		Latitude:        40.73,
		Longitude:       -74.0,
		DistanceMiles:   1.2,
		PinOverrideUsed: true,
		Message:         "done",
		PhotoURLs:       []string{"https://example.com/a.jpg", "https://example.com/b.jpg"},
	}
	closed, err := repo.CloseShift(ctx, closure)
	if err != nil {
		t.Fatalf("CloseShift failed: %v", err)
	}
	if closed.CheckOutAt == nil || !closed.CheckOutAt.Equal(closure.CheckOutAt) {
		t.Fatalf("unexpected check_out_at: %v", closed.CheckOutAt)
	}
	if closed.CheckOutDistanceMiles == nil || *closed.CheckOutDistanceMiles != 1.2 || !closed.PinOverrideUsed {
		t.Fatalf("check-out fields not persisted: %#v", closed)
	}
	if len(closed.PhotoURLs) != 2 || closed.Message != "done" {
		t.Fatalf("unexpected notes: %#v", closed)
	}

	if _, err := repo.GetOpenShift(ctx, "alice", "staff"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected no open shift after close, got %v", err)
	}
	if _, err := repo.CloseShift(ctx, closure); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound closing twice, got %v", err)
	}

	// A closed shift does not block the next check-in.
	if err := repo.CreateOpenShift(ctx, openShift("shift-2", "alice", "staff")); err != nil {
		t.Fatalf("CreateOpenShift after close failed: %v", err)
	}

	stored, err := repo.GetShift(ctx, "shift-1")
	if err != nil {
		t.Fatalf("GetShift failed: %v", err)
	}
	if stored.CheckOutAt == nil {
		t.Fatal("closed shift lost its check-out")
	}
}

func TestShiftRepository_SingleOpenShift(t *testing.T) {
	ctx := context.Background()
	repo := newTestStorage(t).Shifts

	if err := repo.CreateOpenShift(ctx, openShift("shift-1", "alice", "staff")); err != nil {
		t.Fatalf("CreateOpenShift failed: %v", err)
	}

	err := repo.CreateOpenShift(ctx, openShift("shift-2", "alice", "staff"))
	if !errors.Is(err, persistence.ErrOpenShiftExists) {
		t.Fatalf("expected ErrOpenShiftExists, got %v", err)
	}

	// Same ID string, different worker kind: a distinct identity.
	if err := repo.CreateOpenShift(ctx, openShift("shift-3", "alice", "admin")); err != nil {
		t.Fatalf("admin alice should be able to check in: %v", err)
	}

	if err := repo.CreateOpenShift(ctx, openShift("shift-1", "bob", "staff")); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for reused shift ID, got %v", err)
	}

	wrongOwner := persistence.ShiftClosure{ID: "shift-1", WorkerID: "bob", WorkerKind: "staff", CheckOutAt: referenceTime()}
	if _, err := repo.CloseShift(ctx, wrongOwner); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound closing another worker's shift, got %v", err)
	}
}

func TestShiftRepository_ConcurrentCheckIns(t *testing.T) {
	ctx := context.Background()
	repo := newTestStorage(t).Shifts

	const attempts = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
		other     []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.CreateOpenShift(ctx, openShift("shift-"+strconv.Itoa(i), "alice", "staff"))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, persistence.ErrOpenShiftExists):
				conflicts++
			default:
				other = append(other, err)
			}
		}(i)
	}
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if succeeded != 1 || conflicts != attempts-1 {
		t.Fatalf("expected exactly one success, got %d successes and %d conflicts", succeeded, conflicts)
	}
}

func TestShiftRepository_ListOpenShifts(t *testing.T) {
	ctx := context.Background()
	repo := newTestStorage(t).Shifts

	later := openShift("shift-b", "bob", "staff")
	later.CheckInAt = referenceTime().Add(time.Hour)
	for _, s := range []persistence.ShiftRecord{later, openShift("shift-a", "alice", "staff"), openShift("shift-c", "carol", "staff")} {
		if err := repo.CreateOpenShift(ctx, s); err != nil {
			t.Fatalf("CreateOpenShift(%s) failed: %v", s.ID, err)
		}
	}

	if _, err := repo.CloseShift(ctx, persistence.ShiftClosure{
		ID: "shift-c", WorkerID: "carol", WorkerKind: "staff", CheckOutAt: referenceTime().Add(time.Hour),
	}); err != nil {
		t.Fatalf("CloseShift failed: %v", err)
	}

	open, err := repo.ListOpenShifts(ctx)
	if err != nil {
		t.Fatalf("ListOpenShifts failed: %v", err)
	}
	if len(open) != 2 || open[0].ID != "shift-a" || open[1].ID != "shift-b" {
		t.Fatalf("unexpected open shifts: %v", open)
	}
}
