package room

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/wfunc/gamebot/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	sent []uint16
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.sent = append(m.sent, msgID)
	return nil
}
func (m *MockConnection) SendJSON(msgID uint16, v interface{}) error {
	if _, err := json.Marshal(v); err != nil {
		return err
	}
	return m.Send(msgID, nil)
}
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func newTestClient(id string, userID int64) *Client {
	c := NewClient(id, &MockConnection{})
	c.Bind(userID, "user_"+id)
	return c
}

func TestManager_RegisterAndGetClient(t *testing.T) {
	manager := NewManager()
	client := newTestClient("c1", 100)

	manager.Register(client)

	retrieved, exists := manager.GetClient("c1")
	if !exists {
		t.Fatal("GetClient should find the registered client")
	}
	if retrieved != client {
		t.Error("GetClient should return the same client instance")
	}
}

func TestManager_JoinCreatesRoom(t *testing.T) {
	manager := NewManager()
	client := newTestClient("c1", 100)
	manager.Register(client)

	r := manager.Join(client, "room_1")
	if r == nil {
		t.Fatal("Join should not return nil")
	}
	if r.ID != "room_1" {
		t.Errorf("Expected room ID room_1, got %s", r.ID)
	}
	if client.RoomID != "room_1" {
		t.Errorf("Expected client RoomID room_1, got %s", client.RoomID)
	}
	if r.Size() != 1 {
		t.Errorf("Expected room size 1, got %d", r.Size())
	}

	retrieved, exists := manager.GetRoom("room_1")
	if !exists || retrieved != r {
		t.Error("GetRoom should return the created room")
	}
}

func TestManager_JoinMovesBetweenRooms(t *testing.T) {
	manager := NewManager()
	client := newTestClient("c1", 100)
	manager.Register(client)

	manager.Join(client, "room_a")
	manager.Join(client, "room_b")

	if client.RoomID != "room_b" {
		t.Errorf("Expected client to be in room_b, got %s", client.RoomID)
	}
	// room_a emptied out and should be gone
	if _, exists := manager.GetRoom("room_a"); exists {
		t.Error("Empty room_a should have been removed")
	}
	if r, _ := manager.GetRoom("room_b"); r.Size() != 1 {
		t.Error("Client should be a member of room_b")
	}
}

func TestManager_UnregisterLeavesRoom(t *testing.T) {
	manager := NewManager()
	c1 := newTestClient("c1", 100)
	c2 := newTestClient("c2", 200)
	manager.Register(c1)
	manager.Register(c2)
	manager.Join(c1, "room_1")
	manager.Join(c2, "room_1")

	manager.Unregister("c1")

	if _, exists := manager.GetClient("c1"); exists {
		t.Error("Unregistered client should be gone")
	}
	r, exists := manager.GetRoom("room_1")
	if !exists {
		t.Fatal("Room with a remaining member should survive")
	}
	if r.Size() != 1 {
		t.Errorf("Expected room size 1 after unregister, got %d", r.Size())
	}

	manager.Unregister("c2")
	if _, exists := manager.GetRoom("room_1"); exists {
		t.Error("Empty room should have been removed")
	}
}

func TestRoom_BroadcastReachesAllClients(t *testing.T) {
	manager := NewManager()
	c1 := newTestClient("c1", 100)
	c2 := newTestClient("c2", 200)
	manager.Register(c1)
	manager.Register(c2)
	r := manager.Join(c1, "room_1")
	manager.Join(c2, "room_1")

	r.Broadcast(42, []byte("hello"))

	for _, c := range []*Client{c1, c2} {
		conn := c.Conn.(*MockConnection)
		if len(conn.sent) != 1 || conn.sent[0] != 42 {
			t.Errorf("Client %s should have received msgID 42, got %v", c.ID, conn.sent)
		}
	}
}

func TestManager_ClientsByUserID(t *testing.T) {
	manager := NewManager()
	// Same user connected twice, plus another user
	c1 := newTestClient("c1", 100)
	c2 := newTestClient("c2", 100)
	c3 := newTestClient("c3", 200)
	manager.Register(c1)
	manager.Register(c2)
	manager.Register(c3)

	clients := manager.ClientsByUserID(100)
	if len(clients) != 2 {
		t.Fatalf("Expected 2 connections for user 100, got %d", len(clients))
	}
	for _, c := range clients {
		if c.UserID != 100 {
			t.Errorf("Got a connection for the wrong user: %d", c.UserID)
		}
	}
}
