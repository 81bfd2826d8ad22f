// game/lowcard.go
package game

import (
	"fmt"
	"math/rand"

	"github.com/wfunc/gamebot/models"
)

var cardSuits = []string{"h", "d", "c", "s"}

var cardNames = map[int]string{
	11: "J", 12: "Q", 13: "K", 14: "A",
}

// maxTieBreakRounds caps repeated redraws; past it the tie is settled by
// a single random pick among the tied players.
const maxTieBreakRounds = 8

// CardName 牌面显示名，11..14 显示 J Q K A
func CardName(c *models.Card) string {
	if name, ok := cardNames[c.Value]; ok {
		return name + c.Suit
	}
	return fmt.Sprintf("%d%s", c.Value, c.Suit)
}

// newDeck builds a shuffled deck of card codes, minus the excluded ones.
func newDeck(rng *rand.Rand, exclude map[string]bool) []string {
	deck := make([]string, 0, 52)
	for value := 2; value <= 14; value++ { // 2..14, ace high
		for _, suit := range cardSuits {
			code := fmt.Sprintf("lc_%d%s", value, suit)
			if !exclude[code] {
				deck = append(deck, code)
			}
		}
	}
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	return deck
}

func parseCard(code string) *models.Card {
	var value int
	var suit string
	fmt.Sscanf(code, "lc_%d%s", &value, &suit)
	return &models.Card{Value: value, Suit: suit, Code: code}
}

// drawCard pops the next card from the session's deck. The deck is dealt
// lazily on the first draw and persists with the session across rounds, so
// a dealt card cannot come back until the deck runs out. On exhaustion a
// fresh deck is shuffled, keeping out the cards held this round.
func drawCard(sess *models.GameSession, rng *rand.Rand) *models.Card {
	if len(sess.Deck) == 0 {
		held := make(map[string]bool)
		for _, p := range sess.Players {
			if p.Card != nil {
				held[p.Card.Code] = true
			}
		}
		sess.Deck = newDeck(rng, held)
	}
	code := sess.Deck[0]
	sess.Deck = sess.Deck[1:]
	return parseCard(code)
}

// LowCardResolver 低牌淘汰赛：每轮人手一张，点数唯一最低者淘汰，
// 最低点并列时只有并列者重抽。
type LowCardResolver struct{}

func NewLowCardResolver() *LowCardResolver {
	return &LowCardResolver{}
}

func (l *LowCardResolver) Variant() models.Variant { return models.VariantLowCard }
func (l *LowCardResolver) MinPlayers() int         { return 2 }
func (l *LowCardResolver) UsesRounds() bool        { return true }

// expected reports whether the player draws this round.
func expected(sess *models.GameSession, p *models.PlayerEntry) bool {
	if p.Eliminated {
		return false
	}
	return !sess.TieBreak || p.InTieBreak
}

func (l *LowCardResolver) BeginRound(sess *models.GameSession, rng *rand.Rand) []string {
	for _, p := range sess.Players {
		if !expected(sess, p) {
			continue
		}
		p.Acted = false
		p.Card = nil
	}

	if sess.TieBreak {
		return []string{fmt.Sprintf("Tie-break round %d! Tied players, type !d to draw again!", sess.TieBreakRounds)}
	}
	return []string{fmt.Sprintf("Round %d! Type !d to draw your card. Lowest card is out!", sess.Round)}
}

func (l *LowCardResolver) Act(sess *models.GameSession, player *models.PlayerEntry, rng *rand.Rand) (*ActResult, error) {
	if !expected(sess, player) {
		return nil, ErrNotExpectedToAct
	}
	card := drawCard(sess, rng)
	player.Card = card
	player.Acted = true
	return &ActResult{
		Card:    card,
		Message: fmt.Sprintf("%s draws %s", player.Username, CardName(card)),
	}, nil
}

func (l *LowCardResolver) AutoAct(sess *models.GameSession, rng *rand.Rand) []*ActResult {
	var results []*ActResult
	for _, p := range sess.Players {
		if !expected(sess, p) || p.Acted {
			continue
		}
		res, err := l.Act(sess, p, rng)
		if err != nil {
			continue
		}
		res.Message = "(auto) " + res.Message
		results = append(results, res)
	}
	return results
}

func (l *LowCardResolver) ResolveRound(sess *models.GameSession, rng *rand.Rand) *RoundOutcome {
	out := &RoundOutcome{}

	var field []*models.PlayerEntry
	for _, p := range sess.Players {
		if expected(sess, p) && p.Card != nil {
			field = append(field, p)
		}
	}
	if len(field) == 0 {
		out.Retry = true
		return out
	}

	lowest := field[0].Card.Value
	for _, p := range field {
		if p.Card.Value < lowest {
			lowest = p.Card.Value
		}
	}
	var tied []*models.PlayerEntry
	for _, p := range field {
		if p.Card.Value == lowest {
			tied = append(tied, p)
		}
	}

	if len(tied) > 1 {
		if sess.TieBreakRounds >= maxTieBreakRounds {
			// Stuck tie, settle it randomly.
			loser := tied[rng.Intn(len(tied))]
			out.Messages = append(out.Messages,
				fmt.Sprintf("Still tied after %d redraws, drawing lots: %s is out!", sess.TieBreakRounds, loser.Username))
			l.eliminate(sess, loser, out)
			return out
		}
		for _, p := range sess.Players {
			p.InTieBreak = false
		}
		var names string
		for i, p := range tied {
			p.InTieBreak = true
			if i > 0 {
				names += ", "
			}
			names += p.Username
		}
		sess.TieBreak = true
		sess.WasTieBreak = true
		sess.TieBreakRounds++
		out.TieBreak = true
		out.Messages = append(out.Messages,
			fmt.Sprintf("Tie at %s! %s must draw again!", CardName(tied[0].Card), names))
		return out
	}

	loser := tied[0]
	out.Messages = append(out.Messages,
		fmt.Sprintf("%s had the lowest card (%s)!", loser.Username, CardName(loser.Card)))
	l.eliminate(sess, loser, out)
	return out
}

func (l *LowCardResolver) eliminate(sess *models.GameSession, loser *models.PlayerEntry, out *RoundOutcome) {
	loser.Eliminated = true
	out.Eliminated = append(out.Eliminated, loser)
	out.Messages = append(out.Messages, fmt.Sprintf("%s is eliminated!", loser.Username))

	sess.TieBreak = false
	sess.TieBreakRounds = 0
	for _, p := range sess.Players {
		p.InTieBreak = false
	}

	active := sess.ActivePlayers()
	if len(active) == 1 {
		out.Finished = true
		out.WinnerID = active[0].UserID
		out.WinnerName = active[0].Username
	}
}
