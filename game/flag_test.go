// game/flag_test.go
package game

import (
	"math/rand"
	"testing"

	"github.com/wfunc/gamebot/models"
)

func TestFlagDrawSixValidGroups(t *testing.T) {
	f := NewFlagResolver()
	rng := rand.New(rand.NewSource(3))
	sess := &models.GameSession{Variant: models.VariantFlag}

	f.BeginRound(sess, rng)
	if len(sess.Results) != 6 {
		t.Fatalf("expected 6 draws, got %d", len(sess.Results))
	}
	for _, code := range sess.Results {
		if !ValidFlagGroup(code) {
			t.Errorf("invalid group drawn: %s", code)
		}
	}
}

func TestFlagPayoutMultipliers(t *testing.T) {
	f := NewFlagResolver()
	rng := rand.New(rand.NewSource(1))

	cases := []struct {
		results []string
		mult    int
	}{
		{[]string{"j", "m", "a", "d", "s", "r"}, 0},  // single occurrence pays nothing
		{[]string{"j", "j", "a", "d", "s", "r"}, 2},
		{[]string{"j", "j", "j", "d", "s", "r"}, 3},
		{[]string{"j", "j", "j", "j", "s", "r"}, 5},
		{[]string{"j", "j", "j", "j", "j", "r"}, 8},
		{[]string{"j", "j", "j", "j", "j", "j"}, 15},
	}
	for _, c := range cases {
		sess := &models.GameSession{
			Variant: models.VariantFlag,
			Results: c.results,
			Bets: []*models.GroupBet{
				{UserID: 1, Username: "alice", Group: "j", Amount: 100},
			},
		}
		out := f.ResolveRound(sess, rng)
		if c.mult == 0 {
			if len(out.Payouts) != 0 {
				t.Errorf("results %v: expected no payout, got %+v", c.results, out.Payouts)
			}
			continue
		}
		if len(out.Payouts) != 1 {
			t.Fatalf("results %v: expected 1 payout, got %d", c.results, len(out.Payouts))
		}
		wantGross := int64(100 + 100*c.mult)
		if out.Payouts[0].Gross != wantGross {
			t.Errorf("results %v: expected gross %d, got %d", c.results, wantGross, out.Payouts[0].Gross)
		}
	}
}

func TestFlagLosingGroupPaysNothing(t *testing.T) {
	f := NewFlagResolver()
	rng := rand.New(rand.NewSource(1))

	sess := &models.GameSession{
		Variant: models.VariantFlag,
		Results: []string{"j", "j", "j", "d", "s", "r"},
		Bets: []*models.GroupBet{
			{UserID: 1, Username: "alice", Group: "m", Amount: 500},
		},
	}
	out := f.ResolveRound(sess, rng)
	if len(out.Payouts) != 0 {
		t.Errorf("expected losing bet to pay nothing, got %+v", out.Payouts)
	}
	if !out.Finished {
		t.Error("flag resolution is always terminal")
	}
}

func TestFlagMultipleBettorsAndTopWinner(t *testing.T) {
	f := NewFlagResolver()
	rng := rand.New(rand.NewSource(1))

	sess := &models.GameSession{
		Variant: models.VariantFlag,
		Results: []string{"j", "j", "m", "m", "m", "r"},
		Bets: []*models.GroupBet{
			{UserID: 1, Username: "alice", Group: "j", Amount: 100}, // gross 300
			{UserID: 2, Username: "bob", Group: "m", Amount: 200},   // gross 800
			{UserID: 3, Username: "carol", Group: "r", Amount: 999}, // single, nothing
		},
	}
	out := f.ResolveRound(sess, rng)
	if len(out.Payouts) != 2 {
		t.Fatalf("expected 2 payouts, got %d", len(out.Payouts))
	}
	if out.WinnerID != 2 {
		t.Errorf("expected bob as top winner, got %d", out.WinnerID)
	}
}

func TestFlagUserCanWinOnSeveralBets(t *testing.T) {
	f := NewFlagResolver()
	rng := rand.New(rand.NewSource(1))

	sess := &models.GameSession{
		Variant: models.VariantFlag,
		Results: []string{"j", "j", "m", "m", "s", "r"},
		Bets: []*models.GroupBet{
			{UserID: 1, Username: "alice", Group: "j", Amount: 100},
			{UserID: 1, Username: "alice", Group: "m", Amount: 50},
		},
	}
	out := f.ResolveRound(sess, rng)
	if len(out.Payouts) != 2 {
		t.Fatalf("expected both bets to pay, got %d", len(out.Payouts))
	}
}
