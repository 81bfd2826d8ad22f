// state/state_test.go
package state

import (
	"testing"

	"github.com/wfunc/gamebot/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.Phase
		want     bool
	}{
		{models.PhaseWaiting, models.PhasePlaying, true},
		{models.PhaseWaiting, models.PhaseCancelled, true},
		{models.PhaseWaiting, models.PhaseFinished, false},
		{models.PhasePlaying, models.PhaseFinished, true},
		{models.PhasePlaying, models.PhaseCancelled, true},
		{models.PhasePlaying, models.PhaseWaiting, false},
		{models.PhaseFinished, models.PhasePlaying, false},
		{models.PhaseFinished, models.PhaseCancelled, false},
		{models.PhaseCancelled, models.PhaseWaiting, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTransitionMutatesOnlyWhenLegal(t *testing.T) {
	sess := &models.GameSession{Phase: models.PhaseWaiting}
	if err := Transition(sess, models.PhasePlaying); err != nil {
		t.Fatalf("legal transition failed: %v", err)
	}
	if sess.Phase != models.PhasePlaying {
		t.Errorf("expected playing, got %s", sess.Phase)
	}

	if err := Transition(sess, models.PhaseWaiting); err == nil {
		t.Fatal("expected error on illegal transition")
	}
	if sess.Phase != models.PhasePlaying {
		t.Errorf("illegal transition must not mutate, got %s", sess.Phase)
	}
}

func TestTerminalPhases(t *testing.T) {
	if !models.PhaseFinished.Terminal() || !models.PhaseCancelled.Terminal() {
		t.Error("finished and cancelled must be terminal")
	}
	if models.PhaseWaiting.Terminal() || models.PhasePlaying.Terminal() {
		t.Error("waiting and playing must not be terminal")
	}
}
