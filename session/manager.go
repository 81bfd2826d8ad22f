// session/manager.go
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/models"
	"github.com/wfunc/gamebot/store"
)

// Lock TTLs. Creation covers the start handshake, action covers one user
// command, processing covers a full round resolution.
const (
	CreationLockTTL   = 5 * time.Second
	ActionLockTTL     = 3 * time.Second
	ProcessingLockTTL = 10 * time.Second
)

var (
	// ErrSessionExists 同玩法已有进行中的游戏
	ErrSessionExists = errors.New("session already exists")
	// ErrSessionNotFound 没有进行中的游戏
	ErrSessionNotFound = errors.New("session not found")
	// ErrRoomBusy is returned when a different variant is already active
	// in the room.
	ErrRoomBusy = errors.New("another game is active in this room")
	// ErrConflict surfaces a lost compare-and-swap after retries.
	ErrConflict = store.ErrVersionConflict
)

// Manager 房间会话管理，所有会话写入都走 CAS
type Manager struct {
	store store.Store
	ttl   time.Duration
}

// NewManager wraps a store with session semantics. ttl is the rolling
// session lifetime, refreshed on every write.
func NewManager(s store.Store, ttl time.Duration) *Manager {
	return &Manager{store: s, ttl: ttl}
}

// Store exposes the underlying store for the scheduler's timer records.
func (m *Manager) Store() store.Store {
	return m.store
}

func gameKey(variant models.Variant, roomID string) string {
	return fmt.Sprintf("game:%s:%s", variant, roomID)
}

func activeKey(roomID string) string {
	return "active:" + roomID
}

func botKey(roomID string) string {
	return "bot:" + roomID
}

// RegisterBot enables a variant's bot in the room. Only one variant may
// be registered per room; re-registering the same variant refreshes the
// ttl. The record expires on its own, so an abandoned room frees up.
func (m *Manager) RegisterBot(roomID string, variant models.Variant, ttl time.Duration) error {
	val, ver, err := m.store.Get(botKey(roomID))
	if err == nil {
		if string(val) != string(variant) {
			return ErrRoomBusy
		}
		_, err = m.store.Put(botKey(roomID), []byte(variant), ver, ttl)
		return err
	}
	_, err = m.store.Put(botKey(roomID), []byte(variant), 0, ttl)
	return err
}

// UnregisterBot removes the room's bot registration.
func (m *Manager) UnregisterBot(roomID string) error {
	return m.store.Delete(botKey(roomID))
}

// RegisteredBot returns the variant registered in the room, if any.
func (m *Manager) RegisteredBot(roomID string) (models.Variant, bool) {
	val, _, err := m.store.Get(botKey(roomID))
	if err != nil {
		return "", false
	}
	return models.Variant(val), true
}

// Create registers the room for sess.Variant and writes the session.
// Only one variant may be active per room at a time.
func (m *Manager) Create(sess *models.GameSession) error {
	ok, err := m.store.SetNX(activeKey(sess.RoomID), string(sess.Variant), m.ttl)
	if err != nil {
		return err
	}
	if !ok {
		val, _, gerr := m.store.Get(activeKey(sess.RoomID))
		if gerr == nil && string(val) == string(sess.Variant) {
			return ErrSessionExists
		}
		return ErrRoomBusy
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = m.store.Put(gameKey(sess.Variant, sess.RoomID), data, 0, m.ttl)
	if errors.Is(err, store.ErrVersionConflict) {
		return ErrSessionExists
	}
	return err
}

// Get loads the room's session for a variant along with its version for a
// later CAS write.
func (m *Manager) Get(variant models.Variant, roomID string) (*models.GameSession, int64, error) {
	data, ver, err := m.store.Get(gameKey(variant, roomID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, 0, ErrSessionNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	sess := &models.GameSession{}
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, 0, err
	}
	return sess, ver, nil
}

// Save writes sess at the given version, refreshing the session TTL.
func (m *Manager) Save(sess *models.GameSession, version int64) (int64, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return 0, err
	}
	return m.store.Put(gameKey(sess.Variant, sess.RoomID), data, version, m.ttl)
}

// Mutate runs fn against the current session under a read-modify-CAS loop,
// retrying on conflict. fn returning an error aborts without writing.
func (m *Manager) Mutate(variant models.Variant, roomID string, fn func(*models.GameSession) error) (*models.GameSession, error) {
	const maxRetries = 5
	for i := 0; i < maxRetries; i++ {
		sess, ver, err := m.Get(variant, roomID)
		if err != nil {
			return nil, err
		}
		if err := fn(sess); err != nil {
			return nil, err
		}
		_, err = m.Save(sess, ver)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, err
		}
		logger.Log.Debugw("session CAS retry", "room", roomID, "variant", variant, "attempt", i+1)
	}
	return nil, ErrConflict
}

// Delete removes the session and frees the room's active slot if this
// variant holds it.
func (m *Manager) Delete(variant models.Variant, roomID string) error {
	if err := m.store.Delete(gameKey(variant, roomID)); err != nil {
		return err
	}
	val, _, err := m.store.Get(activeKey(roomID))
	if err == nil && string(val) == string(variant) {
		return m.store.Delete(activeKey(roomID))
	}
	return nil
}

// ActiveVariant returns the variant currently holding the room, if any.
func (m *Manager) ActiveVariant(roomID string) (models.Variant, bool) {
	val, _, err := m.store.Get(activeKey(roomID))
	if err != nil {
		return "", false
	}
	return models.Variant(val), true
}

// Sessions returns every live session of a variant, for recovery and
// stale-game sweeps.
func (m *Manager) Sessions(variant models.Variant) ([]*models.GameSession, error) {
	prefix := fmt.Sprintf("game:%s:", variant)
	keys, err := m.store.Keys(prefix)
	if err != nil {
		return nil, err
	}
	var sessions []*models.GameSession
	for _, key := range keys {
		data, _, err := m.store.Get(key)
		if err != nil {
			continue
		}
		sess := &models.GameSession{}
		if err := json.Unmarshal(data, sess); err != nil {
			// Full delete, so the room's active slot frees with it.
			logger.Log.Warnw("corrupt session dropped", "key", key, "error", err)
			m.Delete(variant, strings.TrimPrefix(key, prefix))
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// acquire takes a SetNX lock under a fresh token. The token is what lets
// the matching unlock tell its own acquisition from a successor's: a
// holder that outlived its TTL must not release the next holder's lock.
func (m *Manager) acquire(key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := m.store.SetNX(key, token, ttl)
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (m *Manager) release(key, token string) {
	if token == "" {
		return
	}
	m.store.CompareAndDelete(key, []byte(token))
}

// LockCreation guards the start handshake for a room.
func (m *Manager) LockCreation(variant models.Variant, roomID string) (string, bool, error) {
	return m.acquire(fmt.Sprintf("lock:create:%s:%s", variant, roomID), CreationLockTTL)
}

// UnlockCreation releases the start handshake lock held under token.
func (m *Manager) UnlockCreation(variant models.Variant, roomID string, token string) {
	m.release(fmt.Sprintf("lock:create:%s:%s", variant, roomID), token)
}

// LockAction serializes one user's commands against a room.
func (m *Manager) LockAction(variant models.Variant, roomID string, userID int64) (string, bool, error) {
	return m.acquire(fmt.Sprintf("lock:action:%s:%s:%d", variant, roomID, userID), ActionLockTTL)
}

// UnlockAction releases a user's action lock held under token.
func (m *Manager) UnlockAction(variant models.Variant, roomID string, userID int64, token string) {
	m.release(fmt.Sprintf("lock:action:%s:%s:%d", variant, roomID, userID), token)
}

// LockProcessing guards a round resolution so the timer callback and the
// recovery scan never process the same expiry twice.
func (m *Manager) LockProcessing(variant models.Variant, roomID string) (string, bool, error) {
	return m.acquire(fmt.Sprintf("lock:processing:%s:%s", variant, roomID), ProcessingLockTTL)
}

// UnlockProcessing releases the round resolution lock held under token.
func (m *Manager) UnlockProcessing(variant models.Variant, roomID string, token string) {
	m.release(fmt.Sprintf("lock:processing:%s:%s", variant, roomID), token)
}
