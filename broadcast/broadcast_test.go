package broadcast

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/network"
	"github.com/wfunc/gamebot/room"
)

func init() {
	logger.InitDevelopment()
}

type mockConn struct {
	packets []struct {
		msgID uint16
		data  []byte
	}
}

func (m *mockConn) Send(msgID uint16, data []byte) error {
	m.packets = append(m.packets, struct {
		msgID uint16
		data  []byte
	}{msgID, data})
	return nil
}
func (m *mockConn) SendJSON(msgID uint16, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.Send(msgID, data)
}
func (m *mockConn) Close() error                         { return nil }
func (m *mockConn) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *mockConn) SetHeartbeat(interval time.Duration)  {}
func (m *mockConn) ReadPacket() (*network.Packet, error) { return nil, nil }

func setup() (*RoomBroadcaster, *room.Manager) {
	rooms := room.NewManager()
	return NewRoomBroadcaster(rooms), rooms
}

func joinClient(rooms *room.Manager, clientID string, userID int64, roomID string) *mockConn {
	conn := &mockConn{}
	c := room.NewClient(clientID, conn)
	c.Bind(userID, "user")
	rooms.Register(c)
	rooms.Join(c, roomID)
	return conn
}

func TestGameMessage_ReachesRoom(t *testing.T) {
	b, rooms := setup()
	conn1 := joinClient(rooms, "c1", 100, "room_1")
	conn2 := joinClient(rooms, "c2", 200, "room_1")
	other := joinClient(rooms, "c3", 300, "room_2")

	b.GameMessage("room_1", "DiceBot", "the game begins")

	for _, conn := range []*mockConn{conn1, conn2} {
		if len(conn.packets) != 1 {
			t.Fatalf("expected 1 packet, got %d", len(conn.packets))
		}
		p := conn.packets[0]
		if p.msgID != network.MsgTypeGameMessage {
			t.Errorf("expected msgID %d, got %d", network.MsgTypeGameMessage, p.msgID)
		}
		var push ChatPush
		if err := json.Unmarshal(p.data, &push); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if push.From != "DiceBot" || !push.Bot || push.Text != "the game begins" {
			t.Errorf("unexpected push: %+v", push)
		}
	}

	if len(other.packets) != 0 {
		t.Error("another room should not receive the message")
	}
}

func TestGameMessage_NoRoomIsQuiet(t *testing.T) {
	b, _ := setup()
	// No one is in the room; nothing should panic
	b.GameMessage("empty_room", "DiceBot", "anyone here")
}

func TestCreditsUpdated_OnlyTargetUser(t *testing.T) {
	b, rooms := setup()
	target1 := joinClient(rooms, "c1", 100, "room_1")
	target2 := joinClient(rooms, "c2", 100, "room_1") // same user, second device
	bystander := joinClient(rooms, "c3", 200, "room_1")

	b.CreditsUpdated("room_1", 100, 950)

	for _, conn := range []*mockConn{target1, target2} {
		if len(conn.packets) != 1 {
			t.Fatalf("expected 1 packet, got %d", len(conn.packets))
		}
		p := conn.packets[0]
		if p.msgID != network.MsgTypeCreditsUpdate {
			t.Errorf("expected msgID %d, got %d", network.MsgTypeCreditsUpdate, p.msgID)
		}
		var push CreditsPush
		if err := json.Unmarshal(p.data, &push); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if push.UserID != 100 || push.Balance != 950 {
			t.Errorf("unexpected push: %+v", push)
		}
	}

	if len(bystander.packets) != 0 {
		t.Error("other users should not receive the credits push")
	}
}

func TestChatMessage_NotMarkedAsBot(t *testing.T) {
	b, rooms := setup()
	conn := joinClient(rooms, "c1", 100, "room_1")

	b.ChatMessage("room_1", "alice", "hello")

	if len(conn.packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(conn.packets))
	}
	var push ChatPush
	if err := json.Unmarshal(conn.packets[0].data, &push); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if push.Bot {
		t.Error("player chat must not be marked as bot")
	}
	if push.From != "alice" {
		t.Errorf("expected from alice, got %s", push.From)
	}
}
