// models/models.go
package models

import (
	"time"
)

// Variant identifies one of the mini-game rule sets.
type Variant string

const (
	VariantDice    Variant = "dice"
	VariantLowCard Variant = "lowcard"
	VariantFlag    Variant = "flag"
)

// DisplayName 返回机器人在聊天中的名字
func (v Variant) DisplayName() string {
	switch v {
	case VariantDice:
		return "DiceBot"
	case VariantLowCard:
		return "LowCardBot"
	case VariantFlag:
		return "FlagBot"
	}
	return "GameBot"
}

// Phase is the lifecycle stage of a game session.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhasePlaying   Phase = "playing"
	PhaseFinished  Phase = "finished"
	PhaseCancelled Phase = "cancelled"
)

// Terminal reports whether the phase admits no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseFinished || p == PhaseCancelled
}

// TimerPhase distinguishes the two scheduled windows of a session.
type TimerPhase string

const (
	TimerEntry   TimerPhase = "entry"
	TimerAction  TimerPhase = "action"
	TimerCleanup TimerPhase = "cleanup"
)

// DiceRoll 两颗骰子的一次投掷
type DiceRoll struct {
	Die1  int `json:"die1"`
	Die2  int `json:"die2"`
	Total int `json:"total"`
}

// DoubleSix grants immunity for the next round.
func (r DiceRoll) DoubleSix() bool {
	return r.Die1 == 6 && r.Die2 == 6
}

// Card is one card of the shared LowCard deck. Value runs 2..14 (ace high).
type Card struct {
	Value int    `json:"value"`
	Suit  string `json:"suit"`
	Code  string `json:"code"`
}

// PlayerEntry is one player's seat in a session. Players are soft-eliminated:
// the flag is set, the entry is never removed.
type PlayerEntry struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`

	Eliminated bool `json:"eliminated"`
	Acted      bool `json:"acted"`

	// Dice
	Roll           *DiceRoll `json:"roll,omitempty"`
	In             bool      `json:"in"`
	HasImmunity    bool      `json:"has_immunity"`
	EarnedImmunity bool      `json:"earned_immunity"`

	// LowCard
	Card       *Card `json:"card,omitempty"`
	InTieBreak bool  `json:"in_tie_break"`
}

// GroupBet is a Flag-variant bet on one symbol group.
type GroupBet struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	Group    string    `json:"group"`
	Amount   int64     `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

// GameSession is the durable record of one game instance in a room. It is
// mutated only through the session store's compare-and-swap update, under
// the lock appropriate to the caller's phase.
type GameSession struct {
	ID          string  `json:"id"`
	RoomID      string  `json:"room_id"`
	Variant     Variant `json:"variant"`
	Phase       Phase   `json:"phase"`
	EntryAmount int64   `json:"entry_amount"`
	Pot         int64   `json:"pot"`
	Round       int     `json:"round"`

	Players []*PlayerEntry `json:"players"`

	StartedBy     int64  `json:"started_by"`
	StartedByName string `json:"started_by_name"`

	CreatedAt       time.Time `json:"created_at"`
	PhaseDeadline   time.Time `json:"phase_deadline"`
	CountdownEndsAt time.Time `json:"countdown_ends_at"`

	// Dice: the target rolled once per round, nil between rounds.
	Target *DiceRoll `json:"target,omitempty"`

	// LowCard: the remaining shuffled deck, card codes popped per draw.
	// Reshuffled only when it runs out mid-game. Cleared with the session.
	Deck []string `json:"deck,omitempty"`

	// LowCard tie-break state.
	TieBreak       bool `json:"tie_break"`
	WasTieBreak    bool `json:"was_tie_break"`
	TieBreakRounds int  `json:"tie_break_rounds"`

	// Flag: independent group bets and running per-group totals.
	Bets        []*GroupBet      `json:"bets,omitempty"`
	GroupTotals map[string]int64 `json:"group_totals,omitempty"`
	Results     []string         `json:"results,omitempty"`

	// Set on FINISHED.
	WinnerID   int64     `json:"winner_id,omitempty"`
	WinnerName string    `json:"winner_name,omitempty"`
	Winnings   int64     `json:"winnings,omitempty"`
	HouseFee   int64     `json:"house_fee,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// RecordID links to the game_records row created at start.
	RecordID uint `json:"record_id,omitempty"`
}

// Player returns the seat for userID, eliminated or not.
func (s *GameSession) Player(userID int64) *PlayerEntry {
	for _, p := range s.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// ActivePlayers returns the seats not yet eliminated.
func (s *GameSession) ActivePlayers() []*PlayerEntry {
	var active []*PlayerEntry
	for _, p := range s.Players {
		if !p.Eliminated {
			active = append(active, p)
		}
	}
	return active
}

// AllActed reports whether every player expected to act this round has.
// During a LowCard tie-break only the tied players are expected to act.
func (s *GameSession) AllActed() bool {
	for _, p := range s.Players {
		if p.Eliminated {
			continue
		}
		if s.TieBreak && !p.InTieBreak {
			continue
		}
		if !p.Acted {
			return false
		}
	}
	return true
}

// PhaseTimer is the persisted half of a scheduled phase expiry; the recovery
// scan processes it if the in-process callback is lost.
type PhaseTimer struct {
	RoomID    string     `json:"room_id"`
	Variant   Variant    `json:"variant"`
	Phase     TimerPhase `json:"phase"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// Expired reports whether the timer deadline has passed at now.
func (t *PhaseTimer) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// WagerTransaction is one append-only ledger movement.
type WagerTransaction struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Amount    int64     `json:"amount"`
	TxType    string    `json:"tx_type"` // game_bet / game_win / game_refund / tag_commission
	Source    string    `json:"source"`  // tagged / primary / mixed
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// MerchantTag is a merchant's promotional-credit link to a user.
type MerchantTag struct {
	ID             uint      `json:"id"`
	MerchantID     int64     `json:"merchant_id"`
	MerchantUserID int64     `json:"merchant_user_id"`
	TaggedUserID   int64     `json:"tagged_user_id"`
	TaggedUsername string    `json:"tagged_username"`
	Amount         int64     `json:"amount"`
	Remaining      int64     `json:"remaining"`
	TotalSpent     int64     `json:"total_spent"`
	Status         string    `json:"status"` // active / exhausted / inactive
	TaggedAt       time.Time `json:"tagged_at"`
	ExpiredAt      time.Time `json:"expired_at"`
}

// TagSpend records one consumption or tracked spend against a tag.
type TagSpend struct {
	ID            uint    `json:"id"`
	TagID         uint    `json:"tag_id"`
	MerchantID    int64   `json:"merchant_id"`
	TaggedUserID  int64   `json:"tagged_user_id"`
	Variant       Variant `json:"variant"`
	SpendAmount   int64   `json:"spend_amount"`
	GameSessionID string  `json:"game_session_id"`
}

// CommissionRecord is a pending or paid commission accrued from tagged-credit
// consumption. Pending records are promoted by the maturity sweep.
type CommissionRecord struct {
	ID             uint       `json:"id"`
	SpendID        uint       `json:"spend_id"`
	TagID          uint       `json:"tag_id"`
	MerchantID     int64      `json:"merchant_id"`
	MerchantUserID int64      `json:"merchant_user_id"`
	TaggedUserID   int64      `json:"tagged_user_id"`
	SpendAmount    int64      `json:"spend_amount"`
	MerchantShare  int64      `json:"merchant_share"`
	UserShare      int64      `json:"user_share"`
	Status         string     `json:"status"` // pending / paid
	MatureAt       time.Time  `json:"mature_at"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	PayoutBatchID  string     `json:"payout_batch_id,omitempty"`
}

// PayoutBatch summarizes one sweep run.
type PayoutBatch struct {
	BatchID        string `json:"batch_id"`
	MerchantPayout int64  `json:"merchant_payout"`
	UserPayout     int64  `json:"user_payout"`
	Count          int    `json:"count"`
	Note           string `json:"note"`
}

// GameRecord is the immutable per-game history row.
type GameRecord struct {
	ID           uint      `json:"id"`
	RoomID       string    `json:"room_id"`
	Variant      Variant   `json:"variant"`
	Status       string    `json:"status"`
	EntryAmount  int64     `json:"entry_amount"`
	Pot          int64     `json:"pot"`
	HouseFee     int64     `json:"house_fee"`
	WinnerID     int64     `json:"winner_id"`
	WinnerName   string    `json:"winner_name"`
	PlayersCount int       `json:"players_count"`
	StartedBy    int64     `json:"started_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// BetRecord is one settled Flag bet inside a game record.
type BetRecord struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	GroupCode string `json:"group_code"`
	BetAmount int64  `json:"bet_amount"`
	WinAmount int64  `json:"win_amount"`
	Mult      int    `json:"multiplier"`
	IsWinner  bool   `json:"is_winner"`
}

// LeaderboardEntry is one row of the winnings leaderboard.
type LeaderboardEntry struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	TotalWon int64  `json:"total_won"`
}

// PlayerStats 玩家输赢统计
type PlayerStats struct {
	TotalGames int   `json:"total_games"`
	Wins       int   `json:"wins"`
	TotalBet   int64 `json:"total_bet"`
	TotalWon   int64 `json:"total_won"`
}
