package sqlite_test

import (
	"context"
	"testing"

	"github.com/example/intake/internal/adapters/sqlite"
	"github.com/example/intake/internal/ports/secondary"
)

func TestVerificationRepository_CreateAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewVerificationRepository(db)
	ctx := context.Background()

	first := &secondary.VerificationRecord{InstructionRef: "HLX-1-A", Provider: "tiller", OverallResult: "review", RawResponse: `{"a":1}`}
	second := &secondary.VerificationRecord{InstructionRef: "HLX-1-A", Provider: "tiller", OverallResult: "passed", RawResponse: `{"a":2}`}
	other := &secondary.VerificationRecord{InstructionRef: "HLX-2-B", Provider: "tiller", RawResponse: `{}`}

	for _, rec := range []*secondary.VerificationRecord{first, second, other} {
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if rec.ID == 0 {
			t.Error("Create did not fill in ID")
		}
	}

	list, err := repo.ListByInstruction(ctx, "HLX-1-A")
	if err != nil {
		t.Fatalf("ListByInstruction failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].OverallResult != "passed" || list[1].RawResponse != `{"a":1}` {
		t.Errorf("list order = %+v, %+v", list[0], list[1])
	}
}
