package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/intake/internal/adapters/sqlite"
	"github.com/example/intake/internal/core/outbox"
	"github.com/example/intake/internal/ports/secondary"
)

func newTask(id, dedupe string, due time.Time) *secondary.OutboxTask {
	return &secondary.OutboxTask{
		ID:             id,
		Kind:           outbox.KindVerificationSubmit,
		InstructionRef: "HLX-42-xyz",
		Payload:        []byte(`{"instructionRef":"HLX-42-xyz"}`),
		MaxAttempts:    2,
		NextAttemptAt:  due,
		DedupeKey:      dedupe,
	}
}

func TestOutboxRepository_EnqueueDedupe(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewOutboxRepository(db)
	ctx := context.Background()
	now := time.Now()

	ok, err := repo.Enqueue(ctx, newTask("t1", "verification:HLX-42-xyz", now))
	if err != nil || !ok {
		t.Fatalf("first Enqueue = %v, %v", ok, err)
	}

	ok, err = repo.Enqueue(ctx, newTask("t2", "verification:HLX-42-xyz", now))
	if err != nil {
		t.Fatalf("second Enqueue failed: %v", err)
	}
	if ok {
		t.Error("duplicate dedupe key was enqueued")
	}

	ok, err = repo.Enqueue(ctx, newTask("t3", "", now))
	if err != nil || !ok {
		t.Errorf("Enqueue without dedupe = %v, %v", ok, err)
	}

	// once the live task is terminal the key may be reused
	if err := repo.MarkSent(ctx, "t1"); err != nil {
		t.Fatalf("MarkSent failed: %v", err)
	}
	ok, err = repo.Enqueue(ctx, newTask("t4", "verification:HLX-42-xyz", now))
	if err != nil || !ok {
		t.Errorf("Enqueue after terminal = %v, %v", ok, err)
	}
}

func TestOutboxRepository_ClaimDue(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewOutboxRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mustEnqueue(t, repo, newTask("due-1", "", now.Add(-2*time.Minute)))
	mustEnqueue(t, repo, newTask("due-2", "", now.Add(-time.Minute)))
	mustEnqueue(t, repo, newTask("later", "", now.Add(time.Hour)))

	claimed, err := repo.ClaimDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("ClaimDue failed: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("claimed = %d, want 2", len(claimed))
	}
	if claimed[0].ID != "due-1" || claimed[1].ID != "due-2" {
		t.Errorf("claim order = %s, %s", claimed[0].ID, claimed[1].ID)
	}
	for _, task := range claimed {
		if task.Status != outbox.StatusSending || task.Attempts != 1 {
			t.Errorf("claimed task = %+v", task)
		}
	}

	again, err := repo.ClaimDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("second ClaimDue failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("tasks claimed twice: %d", len(again))
	}
}

func TestOutboxRepository_FailRetryAndTerminal(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewOutboxRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mustEnqueue(t, repo, newTask("t1", "", now))
	if _, err := repo.ClaimDue(ctx, now, 1); err != nil {
		t.Fatalf("ClaimDue failed: %v", err)
	}

	next := now.Add(30 * time.Second)
	if err := repo.Fail(ctx, "t1", "provider timeout", &next); err != nil {
		t.Fatalf("Fail (retry) failed: %v", err)
	}

	if claimed, _ := repo.ClaimDue(ctx, now, 1); len(claimed) != 0 {
		t.Error("retry claimed before its next attempt time")
	}
	claimed, err := repo.ClaimDue(ctx, next, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimDue at retry time = %v, %v", claimed, err)
	}
	if claimed[0].Attempts != 2 || claimed[0].LastError != "provider timeout" {
		t.Errorf("retried task = %+v", claimed[0])
	}

	if err := repo.Fail(ctx, "t1", "still down", nil); err != nil {
		t.Fatalf("Fail (terminal) failed: %v", err)
	}
	failed, err := repo.List(ctx, secondary.OutboxFilters{Status: outbox.StatusFailed})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 || failed[0].LastError != "still down" {
		t.Errorf("failed tasks = %+v", failed)
	}

	if err := repo.Fail(ctx, "missing", "x", nil); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("Fail(missing) error = %v, want ErrNotFound", err)
	}
}

func TestOutboxRepository_RequeueStale(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewOutboxRepository(db)
	ctx := context.Background()
	claimedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mustEnqueue(t, repo, newTask("t1", "", claimedAt))
	if _, err := repo.ClaimDue(ctx, claimedAt, 1); err != nil {
		t.Fatalf("ClaimDue failed: %v", err)
	}

	n, err := repo.RequeueStale(ctx, claimedAt.Add(-time.Minute))
	if err != nil || n != 0 {
		t.Errorf("RequeueStale(before claim) = %d, %v", n, err)
	}

	n, err = repo.RequeueStale(ctx, claimedAt.Add(5*time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("RequeueStale = %d, %v", n, err)
	}

	queued, _ := repo.List(ctx, secondary.OutboxFilters{Status: outbox.StatusQueued, InstructionRef: "HLX-42-xyz"})
	if len(queued) != 1 {
		t.Errorf("queued = %d, want 1", len(queued))
	}
}

func mustEnqueue(t *testing.T, repo *sqlite.OutboxRepository, task *secondary.OutboxTask) {
	t.Helper()
	ok, err := repo.Enqueue(context.Background(), task)
	if err != nil || !ok {
		t.Fatalf("Enqueue(%s) = %v, %v", task.ID, ok, err)
	}
}
