// room/client.go
package room

import (
	"sync"
	"time"

	"github.com/wfunc/gamebot/network"
)

// Client 表示一条已连接的聊天客户端连接
type Client struct {
	ID         string
	Conn       network.Connection
	UserID     int64
	Username   string
	RoomID     string
	CreatedAt  time.Time
	LastActive time.Time
	mutex      sync.RWMutex
}

func NewClient(id string, conn network.Connection) *Client {
	now := time.Now()
	return &Client{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

// Bind 绑定用户身份，进房前必须调用
func (c *Client) Bind(userID int64, username string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.UserID = userID
	c.Username = username
}

func (c *Client) Identity() (int64, string) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.UserID, c.Username
}

func (c *Client) Send(msgID uint16, data []byte) error {
	c.mutex.Lock()
	c.LastActive = time.Now()
	c.mutex.Unlock()
	return c.Conn.Send(msgID, data)
}

func (c *Client) SendJSON(msgID uint16, v interface{}) error {
	c.mutex.Lock()
	c.LastActive = time.Now()
	c.mutex.Unlock()
	return c.Conn.SendJSON(msgID, v)
}

func (c *Client) Close() error {
	return c.Conn.Close()
}
