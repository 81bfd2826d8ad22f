// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/network"
	"github.com/wfunc/gamebot/room"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// ChatPush 推送到房间的聊天消息体
type ChatPush struct {
	RoomID string `json:"room_id"`
	From   string `json:"from"`
	Text   string `json:"text"`
	Bot    bool   `json:"bot"`
	Time   int64  `json:"time"`
}

// CreditsPush 余额变动推送
type CreditsPush struct {
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

// RoomBroadcaster 基于房间的广播器，机器人消息和余额推送都走这里
type RoomBroadcaster struct {
	rooms *room.Manager
}

func NewRoomBroadcaster(rooms *room.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{rooms: rooms}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	r, exists := b.rooms.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}
	r.Broadcast(msgID, data)
	return nil
}

func (b *RoomBroadcaster) BroadcastToUser(userID int64, msgID uint16, data []byte) {
	for _, c := range b.rooms.ClientsByUserID(userID) {
		if err := c.Send(msgID, data); err != nil {
			continue
		}
	}
}

// ChatMessage 把普通玩家的聊天转发到房间
func (b *RoomBroadcaster) ChatMessage(roomID, from, text string) {
	b.push(roomID, network.MsgTypeChat, ChatPush{
		RoomID: roomID,
		From:   from,
		Text:   text,
		Time:   time.Now().Unix(),
	})
}

// GameMessage 以机器人身份向房间发消息
func (b *RoomBroadcaster) GameMessage(roomID, botName, text string) {
	b.push(roomID, network.MsgTypeGameMessage, ChatPush{
		RoomID: roomID,
		From:   botName,
		Text:   text,
		Bot:    true,
		Time:   time.Now().Unix(),
	})
}

// CreditsUpdated 给房间里某个用户的所有连接推余额
func (b *RoomBroadcaster) CreditsUpdated(roomID string, userID int64, balance int64) {
	data, err := json.Marshal(CreditsPush{UserID: userID, Balance: balance})
	if err != nil {
		logger.Log.Errorf("编码余额推送失败: %v", err)
		return
	}
	b.BroadcastToUser(userID, network.MsgTypeCreditsUpdate, data)
}

func (b *RoomBroadcaster) push(roomID string, msgID uint16, msg ChatPush) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Errorf("编码房间消息失败: %v", err)
		return
	}
	if err := b.BroadcastToRoom(roomID, msgID, data); err != nil {
		logger.Log.Debugf("房间 %s 无在线连接: %v", roomID, err)
	}
}
