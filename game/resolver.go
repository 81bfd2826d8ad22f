// game/resolver.go
package game

import (
	"math/rand"

	"github.com/wfunc/gamebot/models"
)

// ActResult is the outcome of a single player action within a round.
type ActResult struct {
	Roll    *models.DiceRoll
	Card    *models.Card
	Message string
}

// Payout is one player's settlement at game end.
type Payout struct {
	UserID   int64
	Username string
	Gross    int64 // bet returned plus winnings, before any fee
	Amount   int64 // credited amount
	Group    string
	Mult     int
}

// RoundOutcome describes what happened when a round resolved.
type RoundOutcome struct {
	// Eliminated lists players knocked out this round.
	Eliminated []*models.PlayerEntry

	// Retry restarts the round with the same field, e.g. when every dice
	// player missed the target.
	Retry bool

	// TieBreak narrows the next round to the players still tied.
	TieBreak bool

	// Finished marks the game terminal; Winner/Payouts are then set.
	Finished   bool
	WinnerID   int64
	WinnerName string
	Payouts    []Payout

	// Results carries variant-specific draw output, e.g. flag symbols.
	Results []string

	// Messages are chat lines describing the resolution.
	Messages []string
}

// Resolver implements one variant's rules. The engine owns phases, money
// and timers; a resolver only reads and mutates the round state it is
// handed, against the supplied rng.
type Resolver interface {
	Variant() models.Variant

	// MinPlayers is the entry count needed for the game to begin.
	MinPlayers() int

	// UsesRounds reports whether the variant plays action rounds. A
	// one-shot variant resolves directly when its betting window closes.
	UsesRounds() bool

	// BeginRound prepares a new round: clears per-round state and draws
	// whatever the round opens with. Returns chat lines announcing it.
	BeginRound(sess *models.GameSession, rng *rand.Rand) []string

	// Act performs one player's action for the round.
	Act(sess *models.GameSession, player *models.PlayerEntry, rng *rand.Rand) (*ActResult, error)

	// AutoAct acts for every expected player who has not acted when the
	// round window expires.
	AutoAct(sess *models.GameSession, rng *rand.Rand) []*ActResult

	// ResolveRound settles the round once every expected player acted.
	ResolveRound(sess *models.GameSession, rng *rand.Rand) *RoundOutcome
}
