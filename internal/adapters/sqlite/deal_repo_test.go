package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/intake/internal/adapters/sqlite"
	"github.com/example/intake/internal/ports/secondary"
)

func TestDealRepository_GetByPasscodeIncludingLinked(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewDealRepository(db)
	ctx := context.Background()

	seedDeal(t, db, "42", "", "xyz", "Contract Dispute")
	newest := seedDeal(t, db, "42", "", "xyz", "Shareholder Dispute")
	linked := seedDeal(t, db, "77", "42", "linked", "Settlement Agreement")

	tests := []struct {
		name       string
		passcode   string
		prospectID string
		wantID     int64
	}{
		{"newest deal for prospect", "xyz", "42", newest},
		{"passcode without prospect", "xyz", "", newest},
		{"linked prospect matches", "linked", "42", linked},
		{"wrong prospect", "xyz", "99", 0},
		{"unknown passcode", "nope", "42", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deal, err := repo.GetByPasscodeIncludingLinked(ctx, tt.passcode, tt.prospectID)
			if err != nil {
				t.Fatalf("GetByPasscodeIncludingLinked failed: %v", err)
			}
			if tt.wantID == 0 {
				if deal != nil {
					t.Errorf("deal = %+v, want nil", deal)
				}
				return
			}
			if deal == nil || deal.DealID != tt.wantID {
				t.Errorf("deal = %+v, want id %d", deal, tt.wantID)
			}
		})
	}
}

func TestDealRepository_GetLatest(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewDealRepository(db)
	ctx := context.Background()

	seedDeal(t, db, "42", "", "xyz", "Contract Dispute")
	seedDeal(t, db, "42", "", "abc", "Shareholder Dispute")

	deal, err := repo.GetLatest(ctx, "42")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if deal == nil || deal.ServiceDescription != "Shareholder Dispute" {
		t.Errorf("deal = %+v", deal)
	}
	if deal.Amount != 1200 || deal.PitchedBy != "AC" {
		t.Errorf("deal fields = %+v", deal)
	}

	none, err := repo.GetLatest(ctx, "999")
	if err != nil {
		t.Fatalf("GetLatest(missing) failed: %v", err)
	}
	if none != nil {
		t.Errorf("GetLatest(missing) = %+v, want nil", none)
	}
}

func TestDealRepository_LinkAndClose(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewDealRepository(db)
	ctx := context.Background()

	id := seedDeal(t, db, "42", "", "xyz", "Contract Dispute")

	if err := repo.LinkInstruction(ctx, id, "HLX-42-xyz"); err != nil {
		t.Fatalf("LinkInstruction failed: %v", err)
	}
	if err := repo.LinkInstruction(ctx, 9999, "HLX-42-xyz"); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("LinkInstruction(missing) error = %v, want ErrNotFound", err)
	}

	closed, err := repo.CloseForInstruction(ctx, "HLX-42-xyz")
	if err != nil {
		t.Fatalf("CloseForInstruction failed: %v", err)
	}
	if closed != 1 {
		t.Errorf("closed = %d, want 1", closed)
	}

	again, err := repo.CloseForInstruction(ctx, "HLX-42-xyz")
	if err != nil {
		t.Fatalf("second CloseForInstruction failed: %v", err)
	}
	if again != 0 {
		t.Errorf("second close = %d, want 0", again)
	}

	deal, _ := repo.GetLatest(ctx, "42")
	if deal.Status != secondary.DealStatusClosed || deal.InstructionRef != "HLX-42-xyz" {
		t.Errorf("deal = %+v", deal)
	}
}
