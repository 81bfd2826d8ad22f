// game/flag.go
package game

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/wfunc/gamebot/models"
)

// FlagGroups 可下注的旗帜分组
var FlagGroups = []string{"j", "m", "a", "d", "s", "r"}

var flagNames = map[string]string{
	"j": "Japan",
	"m": "Malaysia",
	"a": "America",
	"d": "Germany",
	"s": "Singapore",
	"r": "Russia",
}

// flagMultipliers maps occurrence count in the six draws to the winnings
// multiplier. A single occurrence pays nothing.
var flagMultipliers = map[int]int{
	1: 0,
	2: 2,
	3: 3,
	4: 5,
	5: 8,
	6: 15,
}

const flagDrawCount = 6

// ValidFlagGroup reports whether code is a bettable group.
func ValidFlagGroup(code string) bool {
	_, ok := flagNames[code]
	return ok
}

// FlagName 分组显示名
func FlagName(code string) string {
	return flagNames[code]
}

// FlagResolver 旗帜押注：45 秒下注窗口关闭后抽 6 面旗，
// 出现两次以上的分组按倍率赔付，赢家派彩抽一成。
type FlagResolver struct{}

func NewFlagResolver() *FlagResolver {
	return &FlagResolver{}
}

func (f *FlagResolver) Variant() models.Variant { return models.VariantFlag }
func (f *FlagResolver) MinPlayers() int         { return 1 }
func (f *FlagResolver) UsesRounds() bool        { return false }

func (f *FlagResolver) BeginRound(sess *models.GameSession, rng *rand.Rand) []string {
	sess.Results = make([]string, 0, flagDrawCount)
	for i := 0; i < flagDrawCount; i++ {
		sess.Results = append(sess.Results, FlagGroups[rng.Intn(len(FlagGroups))])
	}

	shown := make([]string, len(sess.Results))
	for i, code := range sess.Results {
		shown[i] = flagNames[code]
	}
	return []string{"Flags are up: " + strings.Join(shown, ", ")}
}

// Act is unused: flag players bet through the engine, there is no
// per-player action round.
func (f *FlagResolver) Act(sess *models.GameSession, player *models.PlayerEntry, rng *rand.Rand) (*ActResult, error) {
	return nil, ErrWrongPhase
}

func (f *FlagResolver) AutoAct(sess *models.GameSession, rng *rand.Rand) []*ActResult {
	return nil
}

func (f *FlagResolver) ResolveRound(sess *models.GameSession, rng *rand.Rand) *RoundOutcome {
	out := &RoundOutcome{Finished: true, Results: sess.Results}

	counts := make(map[string]int)
	for _, code := range sess.Results {
		counts[code]++
	}

	var topPayout int64
	for _, bet := range sess.Bets {
		mult := flagMultipliers[counts[bet.Group]]
		if counts[bet.Group] < 2 || mult == 0 {
			continue
		}
		gross := bet.Amount + bet.Amount*int64(mult)
		out.Payouts = append(out.Payouts, Payout{
			UserID:   bet.UserID,
			Username: bet.Username,
			Gross:    gross,
			Group:    bet.Group,
			Mult:     mult,
		})
		if gross > topPayout {
			topPayout = gross
			out.WinnerID = bet.UserID
			out.WinnerName = bet.Username
		}
	}

	if len(out.Payouts) == 0 {
		out.Messages = append(out.Messages, "No winning bets this time. House takes the pot!")
	} else {
		for _, p := range out.Payouts {
			out.Messages = append(out.Messages,
				fmt.Sprintf("%s wins on %s (x%d)!", p.Username, flagNames[p.Group], p.Mult))
		}
	}
	return out
}
