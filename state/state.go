// state/state.go
package state

import (
	"fmt"

	"github.com/wfunc/gamebot/models"
)

// transitions 合法的阶段转移表，终态不再转移
var transitions = map[models.Phase][]models.Phase{
	models.PhaseWaiting: {models.PhasePlaying, models.PhaseCancelled},
	models.PhasePlaying: {models.PhaseFinished, models.PhaseCancelled},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to models.Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the session to the new phase or fails without mutating.
func Transition(sess *models.GameSession, to models.Phase) error {
	if !CanTransition(sess.Phase, to) {
		return fmt.Errorf("invalid phase transition %s -> %s", sess.Phase, to)
	}
	sess.Phase = to
	return nil
}
