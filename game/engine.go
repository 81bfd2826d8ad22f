// game/engine.go
package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/gamebot/config"
	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/models"
	"github.com/wfunc/gamebot/monitor"
	"github.com/wfunc/gamebot/persistence"
	"github.com/wfunc/gamebot/scheduler"
	"github.com/wfunc/gamebot/services"
	"github.com/wfunc/gamebot/session"
	"github.com/wfunc/gamebot/state"
)

// Broadcaster delivers bot output to a room. The network layer implements
// it; tests swap in a recorder.
type Broadcaster interface {
	GameMessage(roomID string, botName string, text string)
	CreditsUpdated(roomID string, userID int64, balance int64)
}

// Engine 游戏编排：阶段、计时、资金进出都在这里，
// 玩法规则交给各 Resolver。
type Engine struct {
	cfg      config.GameConfig
	sessions *session.Manager
	sched    *scheduler.Scheduler
	credit   *services.CreditService
	merchant *services.MerchantService
	db       persistence.Database
	bc       Broadcaster

	resolvers map[models.Variant]Resolver

	rngMu sync.Mutex
	rng   *rand.Rand

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewEngine wires the orchestrator. Register resolvers before Start.
func NewEngine(cfg config.GameConfig, sessions *session.Manager, sched *scheduler.Scheduler,
	credit *services.CreditService, merchant *services.MerchantService,
	db persistence.Database, bc Broadcaster) *Engine {
	e := &Engine{
		cfg:       cfg,
		sessions:  sessions,
		sched:     sched,
		credit:    credit,
		merchant:  merchant,
		db:        db,
		bc:        bc,
		resolvers: make(map[models.Variant]Resolver),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		stop:      make(chan struct{}),
	}
	sched.SetHandler(e.HandleTimer)
	return e
}

// Register adds a variant's resolver.
func (e *Engine) Register(r Resolver) {
	e.resolvers[r.Variant()] = r
}

// Start runs the scheduler and the stale-game sweep.
func (e *Engine) Start() {
	e.sched.Start()
	e.wg.Add(1)
	go e.staleSweepLoop()
}

// Stop shuts the engine down.
func (e *Engine) Stop() {
	e.once.Do(func() {
		close(e.stop)
	})
	e.wg.Wait()
	e.sched.Stop()
}

// ActiveVariant reports which variant currently holds the room, if any.
func (e *Engine) ActiveVariant(roomID string) (models.Variant, bool) {
	return e.sessions.ActiveVariant(roomID)
}

// withRng runs fn with the engine's rng under its lock.
func (e *Engine) withRng(fn func(rng *rand.Rand)) {
	e.rngMu.Lock()
	fn(e.rng)
	e.rngMu.Unlock()
}

func (e *Engine) say(roomID string, variant models.Variant, lines ...string) {
	if e.bc == nil {
		return
	}
	for _, line := range lines {
		if line != "" {
			e.bc.GameMessage(roomID, variant.DisplayName(), line)
		}
	}
}

func (e *Engine) pushBalance(roomID string, userID int64) {
	if e.bc == nil {
		return
	}
	if bal, err := e.credit.Balance(userID); err == nil {
		e.bc.CreditsUpdated(roomID, userID, bal)
	}
}

// StartGame opens a dice or lowcard game in the room, the starter seated
// and their entry already in the pot.
func (e *Engine) StartGame(variant models.Variant, roomID string, userID int64, username string, amount int64) (*models.GameSession, error) {
	resolver, ok := e.resolvers[variant]
	if !ok || !resolver.UsesRounds() {
		return nil, ErrNoGame
	}
	if amount < e.cfg.MinEntry {
		return nil, ErrBelowMinEntry
	}
	if locked, err := e.db.GetRoomLock(roomID); err == nil && locked {
		return nil, ErrRoomLocked
	}
	if reg, ok := e.sessions.RegisteredBot(roomID); ok && reg != variant {
		return nil, ErrBotRegistered
	}

	token, ok, err := e.sessions.LockCreation(variant, roomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrGameInProgress
	}
	defer e.sessions.UnlockCreation(variant, roomID, token)

	if _, err := e.credit.DeductEntry(userID, username, amount, variant, "", fmt.Sprintf("%s entry, room %s", variant, roomID)); err != nil {
		return nil, err
	}

	recordID, err := e.db.CreateGameRecord(&models.GameRecord{
		RoomID:      roomID,
		Variant:     variant,
		Status:      "waiting",
		EntryAmount: amount,
		Pot:         amount,
		StartedBy:   userID,
	})
	if err != nil {
		logger.Log.Errorw("game record create failed", "room", roomID, "error", err)
	}

	now := time.Now()
	sess := &models.GameSession{
		ID:            uuid.NewString(),
		RoomID:        roomID,
		Variant:       variant,
		Phase:         models.PhaseWaiting,
		EntryAmount:   amount,
		Pot:           amount,
		StartedBy:     userID,
		StartedByName: username,
		CreatedAt:     now,
		PhaseDeadline: now.Add(e.cfg.EntryWindow),
		RecordID:      recordID,
		Players: []*models.PlayerEntry{
			{UserID: userID, Username: username},
		},
	}

	if err := e.sessions.Create(sess); err != nil {
		e.credit.Refund(userID, username, amount, "game start failed")
		if recordID != 0 {
			e.db.FinishGameRecord(recordID, "cancelled", 0, 0, 0, "", 0, "")
		}
		switch {
		case errors.Is(err, session.ErrSessionExists):
			return nil, ErrGameInProgress
		case errors.Is(err, session.ErrRoomBusy):
			return nil, ErrRoomBusy
		}
		return nil, err
	}

	if err := e.sched.Schedule(variant, roomID, models.TimerEntry, sess.PhaseDeadline); err != nil {
		logger.Log.Errorw("entry timer schedule failed", "room", roomID, "error", err)
	}

	monitor.GameStarted(string(variant))
	monitor.WagerPlaced(string(variant), amount)
	e.say(roomID, variant, fmt.Sprintf(
		"%s started a game for %d credits! Type !j to join, starting in %d seconds.",
		username, amount, int(e.cfg.EntryWindow.Seconds())))
	e.pushBalance(roomID, userID)
	return sess, nil
}

// Join seats a player during the entry window and takes their entry.
func (e *Engine) Join(variant models.Variant, roomID string, userID int64, username string) error {
	token, ok, err := e.sessions.LockAction(variant, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrActionBusy
	}
	defer e.sessions.UnlockAction(variant, roomID, userID, token)

	sess, _, err := e.sessions.Get(variant, roomID)
	if err != nil {
		return ErrNoGame
	}
	if sess.Phase != models.PhaseWaiting {
		return ErrWrongPhase
	}
	if sess.Player(userID) != nil {
		return ErrAlreadyJoined
	}

	amount := sess.EntryAmount
	if _, err := e.credit.DeductEntry(userID, username, amount, variant, sess.ID, fmt.Sprintf("%s entry, room %s", variant, roomID)); err != nil {
		return err
	}

	sess, err = e.sessions.Mutate(variant, roomID, func(s *models.GameSession) error {
		if s.Phase != models.PhaseWaiting {
			return ErrWrongPhase
		}
		if s.Player(userID) != nil {
			return ErrAlreadyJoined
		}
		s.Players = append(s.Players, &models.PlayerEntry{UserID: userID, Username: username})
		s.Pot += amount
		return nil
	})
	if err != nil {
		e.credit.Refund(userID, username, amount, "join failed")
		return err
	}

	monitor.PlayerJoined(string(variant))
	monitor.WagerPlaced(string(variant), amount)
	e.say(roomID, variant, fmt.Sprintf("%s joined! Pot is now %d.", username, sess.Pot))
	e.pushBalance(roomID, userID)
	return nil
}

// CancelJoin lets a seated player leave during the entry window, entry
// refunded. The last player leaving cancels the game.
func (e *Engine) CancelJoin(variant models.Variant, roomID string, userID int64) error {
	token, ok, err := e.sessions.LockAction(variant, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrActionBusy
	}
	defer e.sessions.UnlockAction(variant, roomID, userID, token)

	var username string
	var amount int64
	sess, err := e.sessions.Mutate(variant, roomID, func(s *models.GameSession) error {
		if s.Phase != models.PhaseWaiting {
			return ErrWrongPhase
		}
		p := s.Player(userID)
		if p == nil {
			return ErrNotJoined
		}
		username = p.Username
		amount = s.EntryAmount
		players := s.Players[:0]
		for _, q := range s.Players {
			if q.UserID != userID {
				players = append(players, q)
			}
		}
		s.Players = players
		s.Pot -= amount
		return nil
	})
	if errors.Is(err, session.ErrSessionNotFound) {
		return ErrNoGame
	}
	if err != nil {
		return err
	}

	e.credit.Refund(userID, username, amount, fmt.Sprintf("%s entry cancelled, room %s", variant, roomID))
	e.say(roomID, variant, fmt.Sprintf("%s left the game, entry refunded.", username))
	e.pushBalance(roomID, userID)

	if len(sess.Players) == 0 {
		e.sched.Cancel(variant, roomID, models.TimerEntry)
		e.finishRecord(sess, "cancelled")
		e.sessions.Delete(variant, roomID)
		monitor.GameFinished(string(variant), "cancelled")
		e.say(roomID, variant, "Nobody left, game cancelled.")
	}
	return nil
}

// Act performs the player's round action, resolving the round early when
// everyone has acted.
func (e *Engine) Act(variant models.Variant, roomID string, userID int64) (*ActResult, error) {
	resolver, ok := e.resolvers[variant]
	if !ok {
		return nil, ErrNoGame
	}

	token, lok, err := e.sessions.LockAction(variant, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !lok {
		return nil, ErrActionBusy
	}
	defer e.sessions.UnlockAction(variant, roomID, userID, token)

	var result *ActResult
	sess, err := e.sessions.Mutate(variant, roomID, func(s *models.GameSession) error {
		if s.Phase != models.PhasePlaying {
			return ErrWrongPhase
		}
		p := s.Player(userID)
		if p == nil {
			return ErrNotJoined
		}
		if p.Eliminated {
			return ErrEliminated
		}
		if p.Acted {
			return ErrAlreadyActed
		}
		var aerr error
		e.withRng(func(rng *rand.Rand) {
			result, aerr = resolver.Act(s, p, rng)
		})
		return aerr
	})
	if errors.Is(err, session.ErrSessionNotFound) {
		return nil, ErrNoGame
	}
	if err != nil {
		return nil, err
	}

	e.say(roomID, variant, result.Message)

	if sess.AllActed() {
		go e.resolveRound(variant, roomID)
	}
	return result, nil
}

// PlaceBet handles the flag variant: the first bet of a room opens the
// betting window, later bets stack onto it. A user may bet several groups.
func (e *Engine) PlaceBet(roomID string, userID int64, username string, group string, amount int64) error {
	variant := models.VariantFlag
	if !ValidFlagGroup(group) {
		return ErrInvalidGroup
	}
	if amount < e.cfg.MinEntry {
		return ErrBelowMinEntry
	}

	token, ok, err := e.sessions.LockAction(variant, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrActionBusy
	}
	defer e.sessions.UnlockAction(variant, roomID, userID, token)

	_, _, err = e.sessions.Get(variant, roomID)
	if errors.Is(err, session.ErrSessionNotFound) {
		if err := e.openBetting(roomID, userID, username); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if _, err := e.credit.DeductEntry(userID, username, amount, variant, "", fmt.Sprintf("flag bet on %s, room %s", group, roomID)); err != nil {
		return err
	}

	_, err = e.sessions.Mutate(variant, roomID, func(s *models.GameSession) error {
		if s.Phase != models.PhaseWaiting {
			return ErrWrongPhase
		}
		s.Bets = append(s.Bets, &models.GroupBet{
			UserID:   userID,
			Username: username,
			Group:    group,
			Amount:   amount,
			PlacedAt: time.Now(),
		})
		if s.GroupTotals == nil {
			s.GroupTotals = make(map[string]int64)
		}
		s.GroupTotals[group] += amount
		s.Pot += amount
		if s.Player(userID) == nil {
			s.Players = append(s.Players, &models.PlayerEntry{UserID: userID, Username: username, Acted: true})
		}
		return nil
	})
	if err != nil {
		e.credit.Refund(userID, username, amount, "flag bet failed")
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrNoGame
		}
		return err
	}

	monitor.WagerPlaced(string(variant), amount)
	e.say(roomID, variant, fmt.Sprintf("%s bets %d on %s!", username, amount, FlagName(group)))
	e.pushBalance(roomID, userID)
	return nil
}

// openBetting creates the flag session and arms its betting window.
func (e *Engine) openBetting(roomID string, userID int64, username string) error {
	variant := models.VariantFlag
	if locked, err := e.db.GetRoomLock(roomID); err == nil && locked {
		return ErrRoomLocked
	}
	if reg, ok := e.sessions.RegisteredBot(roomID); ok && reg != variant {
		return ErrBotRegistered
	}

	token, ok, err := e.sessions.LockCreation(variant, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGameInProgress
	}
	defer e.sessions.UnlockCreation(variant, roomID, token)

	recordID, err := e.db.CreateGameRecord(&models.GameRecord{
		RoomID:    roomID,
		Variant:   variant,
		Status:    "waiting",
		StartedBy: userID,
	})
	if err != nil {
		logger.Log.Errorw("game record create failed", "room", roomID, "error", err)
	}

	now := time.Now()
	sess := &models.GameSession{
		ID:            uuid.NewString(),
		RoomID:        roomID,
		Variant:       variant,
		Phase:         models.PhaseWaiting,
		StartedBy:     userID,
		StartedByName: username,
		CreatedAt:     now,
		PhaseDeadline: now.Add(e.cfg.BettingWindow),
		RecordID:      recordID,
		GroupTotals:   make(map[string]int64),
	}
	if err := e.sessions.Create(sess); err != nil {
		if recordID != 0 {
			e.db.FinishGameRecord(recordID, "cancelled", 0, 0, 0, "", 0, "")
		}
		switch {
		case errors.Is(err, session.ErrSessionExists):
			return nil // lost the race to another bettor, their window stands
		case errors.Is(err, session.ErrRoomBusy):
			return ErrRoomBusy
		}
		return err
	}

	if err := e.sched.Schedule(variant, roomID, models.TimerEntry, sess.PhaseDeadline); err != nil {
		logger.Log.Errorw("betting timer schedule failed", "room", roomID, "error", err)
	}
	monitor.GameStarted(string(variant))
	e.say(roomID, variant, fmt.Sprintf(
		"Flag betting is open! %d seconds to place bets: !bet <group> <amount>, groups j m a d s r.",
		int(e.cfg.BettingWindow.Seconds())))
	return nil
}

// HandleTimer dispatches a fired phase timer. Installed on the scheduler.
func (e *Engine) HandleTimer(t *models.PhaseTimer) {
	switch t.Phase {
	case models.TimerEntry:
		e.onEntryExpired(t.Variant, t.RoomID)
	case models.TimerAction:
		e.resolveRound(t.Variant, t.RoomID)
	case models.TimerCleanup:
		e.cleanup(t.Variant, t.RoomID)
	}
}

// onEntryExpired closes the entry or betting window.
func (e *Engine) onEntryExpired(variant models.Variant, roomID string) {
	resolver, ok := e.resolvers[variant]
	if !ok {
		return
	}
	token, lok, err := e.sessions.LockProcessing(variant, roomID)
	if err != nil || !lok {
		return
	}
	defer e.sessions.UnlockProcessing(variant, roomID, token)

	sess, _, err := e.sessions.Get(variant, roomID)
	if err != nil || sess.Phase != models.PhaseWaiting {
		return
	}

	if !resolver.UsesRounds() {
		e.settleFlag(roomID)
		return
	}

	if len(sess.Players) < resolver.MinPlayers() {
		e.say(roomID, variant, "Not enough players, game cancelled. Entries refunded.")
		e.cancelWithRefunds(sess, "not enough players")
		return
	}

	var msgs []string
	now := time.Now()
	sess, err = e.sessions.Mutate(variant, roomID, func(s *models.GameSession) error {
		if s.Phase != models.PhaseWaiting {
			return ErrWrongPhase
		}
		if err := state.Transition(s, models.PhasePlaying); err != nil {
			return err
		}
		s.Round = 1
		s.CountdownEndsAt = now.Add(e.cfg.CountdownDelay)
		s.PhaseDeadline = now.Add(e.cfg.CountdownDelay + e.cfg.ActionWindow)
		msgs = nil
		e.withRng(func(rng *rand.Rand) {
			msgs = resolver.BeginRound(s, rng)
		})
		return nil
	})
	if err != nil {
		logger.Log.Errorw("round start failed", "room", roomID, "variant", variant, "error", err)
		return
	}

	e.say(roomID, variant, fmt.Sprintf("Entries closed with %d players! Pot: %d. Starting...", len(sess.Players), sess.Pot))
	e.say(roomID, variant, msgs...)
	e.sched.Schedule(variant, roomID, models.TimerAction, sess.PhaseDeadline)
}

// resolveRound settles the current round, from the action timer or from
// the last player acting. The processing lock makes duplicate triggers
// harmless.
func (e *Engine) resolveRound(variant models.Variant, roomID string) {
	resolver, ok := e.resolvers[variant]
	if !ok {
		return
	}
	token, lok, err := e.sessions.LockProcessing(variant, roomID)
	if err != nil || !lok {
		return
	}
	defer e.sessions.UnlockProcessing(variant, roomID, token)

	e.sched.Cancel(variant, roomID, models.TimerAction)

	var outcome *RoundOutcome
	var msgs []string
	now := time.Now()
	sess, err := e.sessions.Mutate(variant, roomID, func(s *models.GameSession) error {
		if s.Phase != models.PhasePlaying {
			return ErrWrongPhase
		}
		msgs = nil
		e.withRng(func(rng *rand.Rand) {
			for _, res := range resolver.AutoAct(s, rng) {
				msgs = append(msgs, res.Message)
			}
			outcome = resolver.ResolveRound(s, rng)
		})
		msgs = append(msgs, outcome.Messages...)
		if outcome.Finished {
			return nil
		}
		if !outcome.Retry && !outcome.TieBreak {
			s.Round++
		}
		var beginMsgs []string
		e.withRng(func(rng *rand.Rand) {
			beginMsgs = resolver.BeginRound(s, rng)
		})
		msgs = append(msgs, beginMsgs...)
		s.PhaseDeadline = now.Add(e.cfg.ActionWindow)
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrWrongPhase) && !errors.Is(err, session.ErrSessionNotFound) {
			logger.Log.Errorw("round resolve failed", "room", roomID, "variant", variant, "error", err)
		}
		return
	}

	e.say(roomID, variant, msgs...)

	if outcome.Finished {
		e.settleElimination(sess, outcome)
		return
	}
	e.sched.Schedule(variant, roomID, models.TimerAction, sess.PhaseDeadline)
}

// settleElimination pays the last player standing the pot minus the house
// fee and closes the session out.
func (e *Engine) settleElimination(sess *models.GameSession, outcome *RoundOutcome) {
	variant := sess.Variant
	roomID := sess.RoomID

	fee := sess.Pot * int64(e.cfg.HouseFeePercent) / 100
	winnings := sess.Pot - fee

	now := time.Now()
	sess, err := e.sessions.Mutate(variant, roomID, func(s *models.GameSession) error {
		if err := state.Transition(s, models.PhaseFinished); err != nil {
			return err
		}
		s.WinnerID = outcome.WinnerID
		s.WinnerName = outcome.WinnerName
		s.Winnings = winnings
		s.HouseFee = fee
		s.FinishedAt = now
		return nil
	})
	if err != nil {
		logger.Log.Errorw("finish transition failed", "room", roomID, "error", err)
		return
	}

	if err := e.credit.Credit(outcome.WinnerID, outcome.WinnerName, winnings, "game_win",
		fmt.Sprintf("%s pot, room %s", variant, roomID)); err != nil {
		logger.Log.Errorw("winner payout failed", "room", roomID, "winner", outcome.WinnerID, "error", err)
	}
	if err := e.merchant.PayHouseFeeShare(outcome.WinnerID, fee,
		fmt.Sprintf("%s house fee share, room %s", variant, roomID)); err != nil {
		logger.Log.Errorw("fee share payout failed", "room", roomID, "error", err)
	}

	e.finishRecord(sess, "finished")
	monitor.GameFinished(string(variant), "finished")
	monitor.PayoutPaid(string(variant), winnings)

	e.say(roomID, variant, fmt.Sprintf("%s WINS the pot of %d! (%d after the %d%% house cut)",
		outcome.WinnerName, sess.Pot, winnings, e.cfg.HouseFeePercent))
	e.pushBalance(roomID, outcome.WinnerID)

	e.sched.Schedule(variant, roomID, models.TimerCleanup, now.Add(e.cfg.FinishedRetention))
}

// settleFlag draws the flags and pays every winning bet, each payout
// shaved by the house fee.
func (e *Engine) settleFlag(roomID string) {
	variant := models.VariantFlag
	resolver := e.resolvers[variant]

	sess, _, err := e.sessions.Get(variant, roomID)
	if err != nil {
		return
	}
	if len(sess.Bets) == 0 {
		e.say(roomID, variant, "No bets placed, flags cancelled.")
		e.cancelWithRefunds(sess, "no bets")
		return
	}

	var outcome *RoundOutcome
	var msgs []string
	now := time.Now()
	sess, err = e.sessions.Mutate(variant, roomID, func(s *models.GameSession) error {
		if s.Phase != models.PhaseWaiting {
			return ErrWrongPhase
		}
		if err := state.Transition(s, models.PhasePlaying); err != nil {
			return err
		}
		msgs = nil
		e.withRng(func(rng *rand.Rand) {
			msgs = resolver.BeginRound(s, rng)
			outcome = resolver.ResolveRound(s, rng)
		})
		msgs = append(msgs, outcome.Messages...)
		return nil
	})
	if err != nil {
		logger.Log.Errorw("flag settle failed", "room", roomID, "error", err)
		return
	}

	e.say(roomID, variant, msgs...)

	var totalFee, totalPaid int64
	credited := make(map[int64]int64)
	for i := range outcome.Payouts {
		p := &outcome.Payouts[i]
		fee := p.Gross * int64(e.cfg.HouseFeePercent) / 100
		p.Amount = p.Gross - fee
		totalFee += fee
		totalPaid += p.Amount
		credited[p.UserID] += p.Amount

		if err := e.credit.Credit(p.UserID, p.Username, p.Amount, "game_win",
			fmt.Sprintf("flag win on %s, room %s", p.Group, roomID)); err != nil {
			logger.Log.Errorw("flag payout failed", "room", roomID, "user", p.UserID, "error", err)
			continue
		}
		if err := e.merchant.PayHouseFeeShare(p.UserID, fee,
			fmt.Sprintf("flag house fee share, room %s", roomID)); err != nil {
			logger.Log.Errorw("fee share payout failed", "room", roomID, "error", err)
		}
	}

	sess, err = e.sessions.Mutate(variant, roomID, func(s *models.GameSession) error {
		if err := state.Transition(s, models.PhaseFinished); err != nil {
			return err
		}
		s.WinnerID = outcome.WinnerID
		s.WinnerName = outcome.WinnerName
		s.Winnings = totalPaid
		s.HouseFee = totalFee
		s.FinishedAt = now
		return nil
	})
	if err != nil {
		logger.Log.Errorw("flag finish transition failed", "room", roomID, "error", err)
		return
	}

	e.saveFlagBetRecords(sess, outcome)
	e.finishRecord(sess, "finished")
	monitor.GameFinished(string(variant), "finished")
	monitor.PayoutPaid(string(variant), totalPaid)
	for userID := range credited {
		e.pushBalance(roomID, userID)
	}

	e.sched.Schedule(variant, roomID, models.TimerCleanup, now.Add(e.cfg.FinishedRetention))
}

func (e *Engine) saveFlagBetRecords(sess *models.GameSession, outcome *RoundOutcome) {
	if sess.RecordID == 0 {
		return
	}
	won := make(map[string]Payout)
	for _, p := range outcome.Payouts {
		won[fmt.Sprintf("%d:%s", p.UserID, p.Group)] = p
	}
	var rows []*models.BetRecord
	for _, b := range sess.Bets {
		row := &models.BetRecord{
			UserID:    b.UserID,
			Username:  b.Username,
			GroupCode: b.Group,
			BetAmount: b.Amount,
		}
		if p, ok := won[fmt.Sprintf("%d:%s", b.UserID, b.Group)]; ok {
			row.WinAmount = p.Amount
			row.Mult = p.Mult
			row.IsWinner = true
		}
		rows = append(rows, row)
	}
	if err := e.db.SaveBetRecords(sess.RecordID, rows); err != nil {
		logger.Log.Errorw("bet record save failed", "room", sess.RoomID, "error", err)
	}
}

// cleanup drops a finished session once its retention elapses, freeing
// the room. Replays are no-ops.
func (e *Engine) cleanup(variant models.Variant, roomID string) {
	sess, _, err := e.sessions.Get(variant, roomID)
	if err != nil {
		return
	}
	if !sess.Phase.Terminal() {
		return
	}
	e.sessions.Delete(variant, roomID)
}

// StopGame cancels the room's game and refunds everyone. Allowed for the
// starter, a room admin or a platform admin.
func (e *Engine) StopGame(variant models.Variant, roomID string, userID int64) error {
	sess, _, err := e.sessions.Get(variant, roomID)
	if err != nil {
		return ErrNoGame
	}
	if sess.Phase.Terminal() {
		return ErrNoGame
	}
	authorized, err := e.canManage(sess, roomID, userID)
	if err != nil {
		return err
	}
	if !authorized {
		return ErrNotAuthorized
	}

	e.say(roomID, variant, "Game stopped. All entries refunded.")
	e.cancelWithRefunds(sess, "stopped by "+fmt.Sprint(userID))
	return nil
}

// ResetRoom force-clears a stuck session, refunds included. Admin only.
func (e *Engine) ResetRoom(variant models.Variant, roomID string, userID int64) error {
	authorized, err := e.isAdmin(roomID, userID)
	if err != nil {
		return err
	}
	if !authorized {
		return ErrNotAuthorized
	}

	sess, _, err := e.sessions.Get(variant, roomID)
	if err != nil {
		// Nothing stored; still clear timers and free the room slot.
		e.sched.Cancel(variant, roomID, models.TimerEntry)
		e.sched.Cancel(variant, roomID, models.TimerAction)
		e.sched.Cancel(variant, roomID, models.TimerCleanup)
		return e.sessions.Delete(variant, roomID)
	}
	if sess.Phase.Terminal() {
		e.sched.Cancel(variant, roomID, models.TimerCleanup)
		return e.sessions.Delete(variant, roomID)
	}
	e.say(roomID, variant, "Game reset by admin. Entries refunded.")
	e.cancelWithRefunds(sess, "reset by admin")
	return nil
}

// SetRoomLock toggles whether new games may start in the room.
func (e *Engine) SetRoomLock(roomID string, userID int64, locked bool) error {
	authorized, err := e.isAdmin(roomID, userID)
	if err != nil {
		return err
	}
	if !authorized {
		return ErrNotAuthorized
	}
	return e.db.SetRoomLock(roomID, locked, userID)
}

// botRegistrationTTL 机器人注册有效期
const botRegistrationTTL = 7 * 24 * time.Hour

// RegisterBot enables a variant's bot in the room. Room admin or platform
// admin. A room carries at most one registered variant; rooms with no
// registration at all accept any variant.
func (e *Engine) RegisterBot(roomID string, variant models.Variant, userID int64) error {
	if _, ok := e.resolvers[variant]; !ok {
		return ErrUnknownVariant
	}
	authorized, err := e.isAdmin(roomID, userID)
	if err != nil {
		return err
	}
	if !authorized {
		return ErrNotAuthorized
	}
	if err := e.sessions.RegisterBot(roomID, variant, botRegistrationTTL); err != nil {
		if errors.Is(err, session.ErrRoomBusy) {
			return ErrBotRegistered
		}
		return err
	}
	e.say(roomID, variant, fmt.Sprintf("%s is now active in this room!", variant.DisplayName()))
	return nil
}

// UnregisterBot removes the room's bot. Refused while a game is running.
func (e *Engine) UnregisterBot(roomID string, userID int64) error {
	authorized, err := e.isAdmin(roomID, userID)
	if err != nil {
		return err
	}
	if !authorized {
		return ErrNotAuthorized
	}
	if _, active := e.sessions.ActiveVariant(roomID); active {
		return ErrGameInProgress
	}
	return e.sessions.UnregisterBot(roomID)
}

// CloseBetting ends the flag betting window early and settles at once.
// Allowed for the starter, a room admin or a platform admin.
func (e *Engine) CloseBetting(roomID string, userID int64) error {
	variant := models.VariantFlag
	sess, _, err := e.sessions.Get(variant, roomID)
	if err != nil {
		return ErrNoGame
	}
	if sess.Phase != models.PhaseWaiting {
		return ErrWrongPhase
	}
	authorized, err := e.canManage(sess, roomID, userID)
	if err != nil {
		return err
	}
	if !authorized {
		return ErrNotAuthorized
	}

	token, lok, err := e.sessions.LockProcessing(variant, roomID)
	if err != nil || !lok {
		return ErrActionBusy
	}
	defer e.sessions.UnlockProcessing(variant, roomID, token)

	e.sched.Cancel(variant, roomID, models.TimerEntry)
	e.settleFlag(roomID)
	return nil
}

func (e *Engine) canManage(sess *models.GameSession, roomID string, userID int64) (bool, error) {
	if sess.StartedBy == userID {
		return true, nil
	}
	return e.isAdmin(roomID, userID)
}

func (e *Engine) isAdmin(roomID string, userID int64) (bool, error) {
	if ok, err := e.db.IsRoomAdmin(roomID, userID); err == nil && ok {
		return true, nil
	}
	role, err := e.db.GetUserRole(userID)
	if err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return role == "admin", nil
}

// cancelWithRefunds returns every stake and tears the session down.
func (e *Engine) cancelWithRefunds(sess *models.GameSession, reason string) {
	variant := sess.Variant
	roomID := sess.RoomID

	e.sched.Cancel(variant, roomID, models.TimerEntry)
	e.sched.Cancel(variant, roomID, models.TimerAction)

	// Refund from the state the CANCELLED transition actually committed
	// against, not the caller's snapshot: a join or bet can land between
	// the caller's read and the transition.
	cur, err := e.sessions.Mutate(variant, roomID, func(s *models.GameSession) error {
		if s.Phase.Terminal() {
			return ErrWrongPhase
		}
		return state.Transition(s, models.PhaseCancelled)
	})
	if err != nil {
		// Someone else already finished or cancelled it.
		return
	}

	if len(cur.Bets) > 0 {
		for _, b := range cur.Bets {
			e.credit.Refund(b.UserID, b.Username, b.Amount, "flag bet refund: "+reason)
			e.pushBalance(roomID, b.UserID)
		}
	} else {
		for _, p := range cur.Players {
			e.credit.Refund(p.UserID, p.Username, cur.EntryAmount, fmt.Sprintf("%s entry refund: %s", variant, reason))
			e.pushBalance(roomID, p.UserID)
		}
	}

	e.finishRecord(cur, "cancelled")
	monitor.GameFinished(string(variant), "cancelled")
	e.sessions.Delete(variant, roomID)
}

func (e *Engine) finishRecord(sess *models.GameSession, status string) {
	if sess.RecordID == 0 {
		return
	}
	detail, _ := json.Marshal(map[string]interface{}{
		"session_id": sess.ID,
		"rounds":     sess.Round,
		"results":    sess.Results,
	})
	err := e.db.FinishGameRecord(sess.RecordID, status, sess.Pot, sess.HouseFee,
		sess.WinnerID, sess.WinnerName, len(sess.Players), string(detail))
	if err != nil {
		logger.Log.Errorw("game record finish failed", "record", sess.RecordID, "error", err)
	}
}

// staleSweepLoop cancels sessions whose deadline passed long ago without
// any timer firing, e.g. after a crash that lost both timer halves.
func (e *Engine) staleSweepLoop() {
	defer e.wg.Done()
	interval := e.cfg.StaleGameGrace / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.SweepStale(time.Now())
		}
	}
}

// SweepStale runs one stale-session pass.
func (e *Engine) SweepStale(now time.Time) {
	for variant := range e.resolvers {
		sessions, err := e.sessions.Sessions(variant)
		if err != nil {
			continue
		}
		for _, sess := range sessions {
			if sess.Phase.Terminal() {
				continue
			}
			if now.Sub(sess.PhaseDeadline) < e.cfg.StaleGameGrace {
				continue
			}
			logger.Log.Warnw("cancelling stale game",
				"room", sess.RoomID, "variant", variant, "deadline", sess.PhaseDeadline)
			e.say(sess.RoomID, variant, "Game went stale and was cancelled. Entries refunded.")
			e.cancelWithRefunds(sess, "stale game")
		}
	}
}
