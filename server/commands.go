package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wfunc/gamebot/broadcast"
	"github.com/wfunc/gamebot/game"
	"github.com/wfunc/gamebot/models"
	"github.com/wfunc/gamebot/network"
	"github.com/wfunc/gamebot/room"
	"github.com/wfunc/gamebot/services"
)

// dispatchCommand 解析聊天指令，返回是否已作为指令处理。
//
//	!dice <amt>     开一局骰子
//	!lowcard <amt>  开一局LowCard（!lc 同义）
//	!j              加入当前等待中的游戏
//	!j <amt>        旗帜玩法：押日本（各分组同理 !m !a !d !s !r）
//	!bet <组> <amt> 旗帜下注的完整写法
//	!n              退出报名
//	!r              掷骰子
//	!d              抽牌
//	!stop           终止本局（开局者或管理员）
//	!reset          强制清房（管理员）
//	!lock / !unlock 锁定或解锁本房间的开局
//	!b              查余额
//	!stats          查战绩
//	!top            排行榜
//	/bot <玩法> add|off  注册或移除房间机器人（管理员）
func (s *GameServer) dispatchCommand(client *room.Client, text string) bool {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/bot") {
		return s.handleBotCommand(client, text)
	}
	if !strings.HasPrefix(text, "!") {
		return false
	}

	fields := strings.Fields(strings.ToLower(text[1:]))
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]
	userID, username := client.Identity()
	roomID := client.RoomID

	switch cmd {
	case "dice":
		amount, ok := s.parseAmount(client, args)
		if !ok {
			return true
		}
		_, err := s.engine.StartGame(models.VariantDice, roomID, userID, username, amount)
		s.replyOnError(client, err)

	case "lowcard", "lc":
		amount, ok := s.parseAmount(client, args)
		if !ok {
			return true
		}
		_, err := s.engine.StartGame(models.VariantLowCard, roomID, userID, username, amount)
		s.replyOnError(client, err)

	case "bet":
		if len(args) != 2 {
			s.replyError(client, "usage: !bet <group> <amount>")
			return true
		}
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || amount <= 0 {
			s.replyError(client, "invalid bet amount")
			return true
		}
		s.replyOnError(client, s.engine.PlaceBet(roomID, userID, username, args[0], amount))

	case "j", "m", "a", "d", "s", "r":
		// 旗帜分组带金额是下注，j/n/r/d 不带参数时是回合玩法指令
		if len(args) == 1 && game.ValidFlagGroup(cmd) {
			amount, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || amount <= 0 {
				s.replyError(client, "invalid bet amount")
				return true
			}
			s.replyOnError(client, s.engine.PlaceBet(roomID, userID, username, cmd, amount))
			return true
		}
		switch cmd {
		case "j":
			s.handleJoinGame(client, userID, username, roomID)
		case "r":
			s.handleAct(client, models.VariantDice, roomID, userID)
		case "d":
			s.handleAct(client, models.VariantLowCard, roomID, userID)
		default:
			return false
		}

	case "n":
		variant, ok := s.engine.ActiveVariant(roomID)
		if !ok {
			s.replyOnError(client, game.ErrNoGame)
			return true
		}
		s.replyOnError(client, s.engine.CancelJoin(variant, roomID, userID))

	case "stop":
		variant, ok := s.engine.ActiveVariant(roomID)
		if !ok {
			s.replyOnError(client, game.ErrNoGame)
			return true
		}
		s.replyOnError(client, s.engine.StopGame(variant, roomID, userID))

	case "reset":
		variant, ok := s.engine.ActiveVariant(roomID)
		if !ok {
			variant = models.VariantDice
		}
		s.replyOnError(client, s.engine.ResetRoom(variant, roomID, userID))

	case "lock":
		// 旗帜下注期间 !lock 提前封盘，否则是锁房
		if variant, ok := s.engine.ActiveVariant(roomID); ok && variant == models.VariantFlag {
			s.replyOnError(client, s.engine.CloseBetting(roomID, userID))
			return true
		}
		s.replyOnError(client, s.engine.SetRoomLock(roomID, userID, true))

	case "unlock":
		s.replyOnError(client, s.engine.SetRoomLock(roomID, userID, false))

	case "b", "balance":
		s.handleBalance(client, userID)

	case "stats":
		s.handleStats(client, userID, username)

	case "top":
		s.handleLeaderboard(client)

	default:
		return false
	}
	return true
}

// handleBotCommand 处理 /bot <玩法> add|off 的机器人注册
func (s *GameServer) handleBotCommand(client *room.Client, text string) bool {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) != 3 || fields[0] != "/bot" {
		s.replyError(client, "usage: /bot <dice|lowcard|flag> <add|off>")
		return true
	}
	userID, _ := client.Identity()
	roomID := client.RoomID

	var variant models.Variant
	switch fields[1] {
	case "dice":
		variant = models.VariantDice
	case "lowcard", "lc":
		variant = models.VariantLowCard
	case "flag", "flagh":
		variant = models.VariantFlag
	default:
		s.replyError(client, "unknown bot: "+fields[1])
		return true
	}

	switch fields[2] {
	case "add":
		s.replyOnError(client, s.engine.RegisterBot(roomID, variant, userID))
	case "off":
		s.replyOnError(client, s.engine.UnregisterBot(roomID, userID))
	default:
		s.replyError(client, "usage: /bot <dice|lowcard|flag> <add|off>")
	}
	return true
}

func (s *GameServer) handleJoinGame(client *room.Client, userID int64, username, roomID string) {
	variant, ok := s.engine.ActiveVariant(roomID)
	if !ok {
		s.replyOnError(client, game.ErrNoGame)
		return
	}
	s.replyOnError(client, s.engine.Join(variant, roomID, userID, username))
}

func (s *GameServer) handleAct(client *room.Client, variant models.Variant, roomID string, userID int64) {
	_, err := s.engine.Act(variant, roomID, userID)
	s.replyOnError(client, err)
}

func (s *GameServer) handleBalance(client *room.Client, userID int64) {
	profile, err := s.players.GetPlayerWithStats(userID)
	if err != nil {
		s.replyError(client, "could not load your balance")
		return
	}
	s.whisper(client, fmt.Sprintf("Your balance: %d credits", profile.Credits))
}

func (s *GameServer) handleStats(client *room.Client, userID int64, username string) {
	profile, err := s.players.GetPlayerWithStats(userID)
	if err != nil {
		s.replyError(client, "could not load your stats")
		return
	}
	st := profile.Stats
	s.whisper(client, fmt.Sprintf("%s: %d games, %d wins, bet %d, won %d",
		username, st.TotalGames, st.Wins, st.TotalBet, st.TotalWon))
}

func (s *GameServer) handleLeaderboard(client *room.Client) {
	entries, err := s.players.Leaderboard(10)
	if err != nil {
		s.replyError(client, "could not load the leaderboard")
		return
	}
	if len(entries) == 0 {
		s.whisper(client, "No winners yet")
		return
	}
	var b strings.Builder
	b.WriteString("Top winners:")
	for i, e := range entries {
		fmt.Fprintf(&b, " %d.%s(%d)", i+1, e.Username, e.TotalWon)
	}
	s.whisper(client, b.String())
}

// whisper 以机器人身份只回给发送者
func (s *GameServer) whisper(client *room.Client, text string) {
	client.SendJSON(network.MsgTypeGameMessage, broadcast.ChatPush{
		RoomID: client.RoomID,
		From:   "GameBot",
		Text:   text,
		Bot:    true,
		Time:   time.Now().Unix(),
	})
}

// parseAmount 读取指令金额参数，缺省用最低入场额
func (s *GameServer) parseAmount(client *room.Client, args []string) (int64, bool) {
	if len(args) == 0 {
		return s.minEntry, true
	}
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || amount <= 0 {
		s.replyError(client, "invalid amount")
		return 0, false
	}
	return amount, true
}

// replyOnError 把引擎错误翻译成玩家能看懂的话，只回给发送者
func (s *GameServer) replyOnError(client *room.Client, err error) {
	if err == nil {
		return
	}
	s.replyError(client, errorText(err))
}

func errorText(err error) string {
	switch {
	case errors.Is(err, game.ErrGameInProgress):
		return "a game is already running in this room"
	case errors.Is(err, game.ErrRoomBusy):
		return "another game is active in this room"
	case errors.Is(err, game.ErrNoGame):
		return "no game is running in this room"
	case errors.Is(err, game.ErrRoomLocked):
		return "games are locked in this room"
	case errors.Is(err, game.ErrBelowMinEntry):
		return "the amount is below the minimum entry"
	case errors.Is(err, game.ErrAlreadyJoined):
		return "you already joined this game"
	case errors.Is(err, game.ErrNotJoined):
		return "you are not in this game"
	case errors.Is(err, game.ErrEliminated):
		return "you have been eliminated"
	case errors.Is(err, game.ErrAlreadyActed):
		return "you already played this round"
	case errors.Is(err, game.ErrWrongPhase):
		return "you can't do that right now"
	case errors.Is(err, game.ErrNotAuthorized):
		return "you are not allowed to do that"
	case errors.Is(err, game.ErrActionBusy):
		return "slow down and try again"
	case errors.Is(err, game.ErrInvalidGroup):
		return "unknown flag group"
	case errors.Is(err, game.ErrNotExpectedToAct):
		return "wait for your turn"
	case errors.Is(err, game.ErrUnknownVariant):
		return "unknown game variant"
	case errors.Is(err, game.ErrBotRegistered):
		return "a different bot is registered in this room"
	case errors.Is(err, services.ErrInsufficientCredits):
		return "insufficient credits"
	default:
		return "something went wrong, try again"
	}
}
