// room/room.go
package room

import (
	"sync"
	"time"
)

// Room 是一个聊天房间的订阅者集合，房间ID来自聊天平台
type Room struct {
	ID        string
	CreatedAt time.Time
	clients   map[string]*Client // clientID -> client
	mutex     sync.RWMutex
}

func newRoom(id string) *Room {
	return &Room{
		ID:        id,
		CreatedAt: time.Now(),
		clients:   make(map[string]*Client),
	}
}

func (r *Room) add(c *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.clients[c.ID] = c
}

func (r *Room) remove(clientID string) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.clients, clientID)
	return len(r.clients)
}

// Clients 返回房间内所有连接的副本，避免并发修改
func (r *Room) Clients() []*Client {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

func (r *Room) Size() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.clients)
}

// Broadcast 给房间内所有连接发消息，单条发送失败不影响其余连接
func (r *Room) Broadcast(msgID uint16, data []byte) {
	for _, c := range r.Clients() {
		c.Send(msgID, data)
	}
}

// Manager 管理所有房间和连接
type Manager struct {
	rooms   map[string]*Room
	clients map[string]*Client // clientID -> client
	mutex   sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		rooms:   make(map[string]*Room),
		clients: make(map[string]*Client),
	}
}

// Register 登记一条新连接
func (m *Manager) Register(c *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.clients[c.ID] = c
}

// Unregister 注销连接并把它从所在房间移除，房间空了就回收
func (m *Manager) Unregister(clientID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	c, exists := m.clients[clientID]
	if !exists {
		return
	}
	delete(m.clients, clientID)

	if c.RoomID == "" {
		return
	}
	if r, ok := m.rooms[c.RoomID]; ok {
		if r.remove(clientID) == 0 {
			delete(m.rooms, c.RoomID)
		}
	}
}

// Join 把连接加入房间，房间不存在则创建；已在别的房间会先退出
func (m *Manager) Join(c *Client, roomID string) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if c.RoomID != "" && c.RoomID != roomID {
		if old, ok := m.rooms[c.RoomID]; ok {
			if old.remove(c.ID) == 0 {
				delete(m.rooms, c.RoomID)
			}
		}
	}

	r, exists := m.rooms[roomID]
	if !exists {
		r = newRoom(roomID)
		m.rooms[roomID] = r
	}
	r.add(c)
	c.RoomID = roomID
	return r
}

// Leave 把连接从当前房间移除
func (m *Manager) Leave(c *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if c.RoomID == "" {
		return
	}
	if r, ok := m.rooms[c.RoomID]; ok {
		if r.remove(c.ID) == 0 {
			delete(m.rooms, c.RoomID)
		}
	}
	c.RoomID = ""
}

func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	r, exists := m.rooms[id]
	return r, exists
}

func (m *Manager) GetClient(id string) (*Client, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	c, exists := m.clients[id]
	return c, exists
}

// ClientsByUserID 找出某个用户的所有连接，同一用户可能多端在线
func (m *Manager) ClientsByUserID(userID int64) []*Client {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Client
	for _, c := range m.clients {
		if c.UserID == userID {
			result = append(result, c)
		}
	}
	return result
}
