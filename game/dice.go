// game/dice.go
package game

import (
	"fmt"
	"math/rand"

	"github.com/wfunc/gamebot/models"
)

// DiceResolver 骰子淘汰赛：每轮掷出目标点数，掷不到的淘汰，
// 双六获得下一轮免疫，全员失败则重掷目标重试本轮。
type DiceResolver struct{}

func NewDiceResolver() *DiceResolver {
	return &DiceResolver{}
}

func (d *DiceResolver) Variant() models.Variant { return models.VariantDice }
func (d *DiceResolver) MinPlayers() int         { return 2 }
func (d *DiceResolver) UsesRounds() bool        { return true }

func rollDice(rng *rand.Rand) *models.DiceRoll {
	d1 := rng.Intn(6) + 1
	d2 := rng.Intn(6) + 1
	return &models.DiceRoll{Die1: d1, Die2: d2, Total: d1 + d2}
}

func (d *DiceResolver) BeginRound(sess *models.GameSession, rng *rand.Rand) []string {
	for _, p := range sess.Players {
		if p.Eliminated {
			continue
		}
		// Immunity earned last round covers exactly this one.
		p.HasImmunity = p.EarnedImmunity
		p.EarnedImmunity = false
		p.Acted = false
		p.Roll = nil
		p.In = false
	}
	sess.Target = rollDice(rng)

	msgs := []string{fmt.Sprintf("Round %d! Target: %d and %d (total %d). Type !r to roll, beat or match the total to stay in!",
		sess.Round, sess.Target.Die1, sess.Target.Die2, sess.Target.Total)}
	for _, p := range sess.Players {
		if !p.Eliminated && p.HasImmunity {
			msgs = append(msgs, fmt.Sprintf("%s is immune this round!", p.Username))
		}
	}
	return msgs
}

func (d *DiceResolver) Act(sess *models.GameSession, player *models.PlayerEntry, rng *rand.Rand) (*ActResult, error) {
	roll := rollDice(rng)
	player.Roll = roll
	player.Acted = true
	player.In = roll.Total >= sess.Target.Total

	msg := fmt.Sprintf("%s rolled %d and %d (total %d)", player.Username, roll.Die1, roll.Die2, roll.Total)
	if roll.DoubleSix() {
		player.EarnedImmunity = true
		msg += " DOUBLE SIX! Immune next round!"
	} else if player.In {
		msg += " - IN!"
	} else if player.HasImmunity {
		msg += " - missed, but immunity saves them!"
	} else {
		msg += " - OUT!"
	}
	return &ActResult{Roll: roll, Message: msg}, nil
}

func (d *DiceResolver) AutoAct(sess *models.GameSession, rng *rand.Rand) []*ActResult {
	var results []*ActResult
	for _, p := range sess.Players {
		if p.Eliminated || p.Acted {
			continue
		}
		res, _ := d.Act(sess, p, rng)
		res.Message = "(auto) " + res.Message
		results = append(results, res)
	}
	return results
}

func (d *DiceResolver) ResolveRound(sess *models.GameSession, rng *rand.Rand) *RoundOutcome {
	out := &RoundOutcome{}

	var survivors, failed []*models.PlayerEntry
	for _, p := range sess.ActivePlayers() {
		if p.In || p.HasImmunity {
			survivors = append(survivors, p)
		} else {
			failed = append(failed, p)
		}
	}

	if len(survivors) == 0 {
		out.Retry = true
		out.Messages = append(out.Messages, "Nobody made the target! New target, roll again!")
		return out
	}

	for _, p := range failed {
		p.Eliminated = true
		out.Eliminated = append(out.Eliminated, p)
		out.Messages = append(out.Messages, fmt.Sprintf("%s is eliminated!", p.Username))
	}

	if len(survivors) == 1 {
		out.Finished = true
		out.WinnerID = survivors[0].UserID
		out.WinnerName = survivors[0].Username
	}
	return out
}
