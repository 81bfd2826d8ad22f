// game/errors.go
package game

import "errors"

var (
	// ErrGameInProgress 房间已有同玩法的游戏
	ErrGameInProgress = errors.New("a game is already running")
	// ErrRoomBusy 房间被其他玩法占用
	ErrRoomBusy = errors.New("another game type is active in this room")
	// ErrNoGame 没有进行中的游戏
	ErrNoGame = errors.New("no game in progress")
	// ErrRoomLocked 房间禁止开局
	ErrRoomLocked = errors.New("games are locked in this room")
	// ErrBelowMinEntry 入场额低于下限
	ErrBelowMinEntry = errors.New("entry amount below minimum")
	// ErrAlreadyJoined 已经加入
	ErrAlreadyJoined = errors.New("already joined")
	// ErrNotJoined 未加入本局
	ErrNotJoined = errors.New("not in this game")
	// ErrEliminated 已被淘汰
	ErrEliminated = errors.New("already eliminated")
	// ErrAlreadyActed 本轮已经行动过
	ErrAlreadyActed = errors.New("already acted this round")
	// ErrWrongPhase 当前阶段不允许该操作
	ErrWrongPhase = errors.New("operation not allowed in current phase")
	// ErrNotAuthorized 需要开局者或管理员权限
	ErrNotAuthorized = errors.New("not authorized")
	// ErrActionBusy 同一用户的上一条指令还在处理
	ErrActionBusy = errors.New("previous command still processing")
	// ErrInvalidGroup 无效的旗帜分组
	ErrInvalidGroup = errors.New("invalid flag group")
	// ErrNotExpectedToAct is returned when a player outside the tie-break
	// tries to draw during one.
	ErrNotExpectedToAct = errors.New("not expected to act this round")
	// ErrUnknownVariant 不存在的玩法
	ErrUnknownVariant = errors.New("unknown game variant")
	// ErrBotRegistered 房间已注册其他玩法的机器人
	ErrBotRegistered = errors.New("a different bot is registered in this room")
)
