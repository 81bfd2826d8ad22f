// services/merchant_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/wfunc/gamebot/models"
)

func TestPlanConsumptionOldestFirst(t *testing.T) {
	_, merchant, db := newTestServices()
	db.CreateMerchantTag(&models.MerchantTag{MerchantID: 10, TaggedUserID: 1, Amount: 50})
	db.CreateMerchantTag(&models.MerchantTag{MerchantID: 11, TaggedUserID: 1, Amount: 500})

	plan, total, err := merchant.PlanConsumption(1, 120)
	if err != nil {
		t.Fatalf("PlanConsumption failed: %v", err)
	}
	if total != 120 {
		t.Errorf("expected total 120, got %d", total)
	}
	if len(plan) != 2 || plan[0].Amount != 50 || plan[1].Amount != 70 {
		t.Errorf("unexpected plan: %+v", plan)
	}
}

func TestPlanConsumptionPartial(t *testing.T) {
	_, merchant, db := newTestServices()
	db.CreateMerchantTag(&models.MerchantTag{MerchantID: 10, TaggedUserID: 1, Amount: 30})

	plan, total, err := merchant.PlanConsumption(1, 100)
	if err != nil {
		t.Fatalf("PlanConsumption failed: %v", err)
	}
	if total != 30 || len(plan) != 1 {
		t.Errorf("expected partial plan of 30, got total=%d plan=%+v", total, plan)
	}
}

func TestTrackSpendExhaustedTag(t *testing.T) {
	credit, _, db := newTestServices()
	db.credits[1] = 500
	db.CreateMerchantTag(&models.MerchantTag{MerchantID: 10, MerchantUserID: 100, TaggedUserID: 1, Amount: 40})
	db.tags[1].Remaining = 0
	db.tags[1].Status = "exhausted"

	// The tag is spent, so the whole entry comes from the primary
	// balance, but the merchant still earns commission on it.
	source, err := credit.DeductEntry(1, "alice", 100, models.VariantDice, "s1", "dice entry")
	if err != nil {
		t.Fatalf("DeductEntry failed: %v", err)
	}
	if source != "primary" {
		t.Errorf("expected primary source, got %s", source)
	}
	if db.credits[1] != 400 {
		t.Errorf("expected balance 400, got %d", db.credits[1])
	}
	if len(db.commissions) != 1 {
		t.Fatalf("expected 1 commission on the full spend, got %d", len(db.commissions))
	}
	comm := db.commissions[1]
	if comm.SpendAmount != 100 || comm.MerchantShare != 2 || comm.UserShare != 2 {
		t.Errorf("expected 2/2 shares of the full 100, got %+v", comm)
	}
	if db.tags[1].TotalSpent != 100 {
		t.Errorf("expected total_spent bumped to 100, got %d", db.tags[1].TotalSpent)
	}
}

func TestTrackSpendUntaggedUser(t *testing.T) {
	credit, _, db := newTestServices()
	db.credits[1] = 500

	if _, err := credit.DeductEntry(1, "alice", 100, models.VariantDice, "s1", "dice entry"); err != nil {
		t.Fatalf("DeductEntry failed: %v", err)
	}
	if len(db.commissions) != 0 {
		t.Errorf("untagged user must not accrue commission, got %d", len(db.commissions))
	}
	if len(db.spends) != 0 {
		t.Errorf("untagged user must not record spends, got %d", len(db.spends))
	}
}

func TestTrackSpendUsesLatestTag(t *testing.T) {
	credit, _, db := newTestServices()
	db.credits[1] = 500
	db.CreateMerchantTag(&models.MerchantTag{MerchantID: 10, MerchantUserID: 100, TaggedUserID: 1, Amount: 40})
	db.CreateMerchantTag(&models.MerchantTag{MerchantID: 11, MerchantUserID: 110, TaggedUserID: 1, Amount: 200})
	db.tags[2].TaggedAt = db.tags[1].TaggedAt.Add(time.Minute)

	if _, err := credit.DeductEntry(1, "alice", 100, models.VariantDice, "s1", "dice entry"); err != nil {
		t.Fatalf("DeductEntry failed: %v", err)
	}

	// Consumption drains oldest first; full-spend tracking goes to the
	// most recent tagging merchant.
	var full *models.CommissionRecord
	for _, c := range db.commissions {
		if c.SpendAmount == 100 {
			full = c
		}
	}
	if full == nil {
		t.Fatal("expected a full-amount commission record")
	}
	if full.MerchantID != 11 {
		t.Errorf("expected full-spend commission for merchant 11, got %d", full.MerchantID)
	}
}

func TestPayHouseFeeShare(t *testing.T) {
	_, merchant, db := newTestServices()
	db.credits[100] = 0
	db.CreateMerchantTag(&models.MerchantTag{MerchantID: 10, MerchantUserID: 100, TaggedUserID: 1, Amount: 300})

	if err := merchant.PayHouseFeeShare(1, 50, "dice fee share"); err != nil {
		t.Fatalf("PayHouseFeeShare failed: %v", err)
	}
	// 10% of the 50 fee.
	if db.credits[100] != 5 {
		t.Errorf("expected merchant credited 5, got %d", db.credits[100])
	}
	if len(db.txByType("tag_commission")) != 1 {
		t.Error("expected a tag_commission ledger row")
	}
}

func TestPayHouseFeeShareNoTag(t *testing.T) {
	_, merchant, db := newTestServices()
	if err := merchant.PayHouseFeeShare(1, 50, "fee share"); err != nil {
		t.Fatalf("expected no-op without tags, got %v", err)
	}
	if len(db.txByType("tag_commission")) != 0 {
		t.Error("expected no ledger rows")
	}
}

func TestProcessMatured(t *testing.T) {
	credit, merchant, db := newTestServices()
	db.credits[1] = 1000
	db.credits[100] = 0
	db.CreateMerchantTag(&models.MerchantTag{MerchantID: 10, MerchantUserID: 100, TaggedUserID: 1, Amount: 500})

	// Each entry accrues a consumption commission plus a full-spend one.
	credit.DeductEntry(1, "alice", 100, models.VariantDice, "s1", "entry")
	credit.DeductEntry(1, "alice", 100, models.VariantDice, "s2", "entry")

	// Not matured yet.
	batch, err := merchant.ProcessMatured(time.Now(), 100)
	if err != nil {
		t.Fatalf("ProcessMatured failed: %v", err)
	}
	if batch != nil {
		t.Fatalf("expected nothing matured, got %+v", batch)
	}

	// Past the maturity delay.
	batch, err = merchant.ProcessMatured(time.Now().Add(25*time.Hour), 100)
	if err != nil {
		t.Fatalf("ProcessMatured failed: %v", err)
	}
	if batch == nil || batch.Count != 4 {
		t.Fatalf("expected batch of 4, got %+v", batch)
	}
	if batch.MerchantPayout != 8 || batch.UserPayout != 8 {
		t.Errorf("expected 8/8 payout totals, got %d/%d", batch.MerchantPayout, batch.UserPayout)
	}
	if db.credits[100] != 8 {
		t.Errorf("expected merchant balance 8, got %d", db.credits[100])
	}
	// 1000 - 0 primary spend (tag covered both entries) + 8 user share.
	if db.credits[1] != 1008 {
		t.Errorf("expected user balance 1008, got %d", db.credits[1])
	}

	// Replay pays nothing twice.
	batch, err = merchant.ProcessMatured(time.Now().Add(26*time.Hour), 100)
	if err != nil {
		t.Fatalf("ProcessMatured replay failed: %v", err)
	}
	if batch != nil {
		t.Errorf("expected idempotent replay, got %+v", batch)
	}
	if len(db.batches) != 1 {
		t.Errorf("expected 1 payout batch, got %d", len(db.batches))
	}
}
