// game/mocks_test.go
package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/gamebot/models"
	"github.com/wfunc/gamebot/persistence"
)

// mockBroadcaster records bot output per room.
type mockBroadcaster struct {
	mu       sync.Mutex
	messages []string
	balances map[int64]int64
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{balances: make(map[int64]int64)}
}

func (b *mockBroadcaster) GameMessage(roomID, botName, text string) {
	b.mu.Lock()
	b.messages = append(b.messages, fmt.Sprintf("[%s] %s: %s", roomID, botName, text))
	b.mu.Unlock()
}

func (b *mockBroadcaster) CreditsUpdated(roomID string, userID int64, balance int64) {
	b.mu.Lock()
	b.balances[userID] = balance
	b.mu.Unlock()
}

// mockDatabase is a map-backed persistence.Database for engine tests.
type mockDatabase struct {
	mu sync.Mutex

	credits      map[int64]int64
	roles        map[int64]string
	roomAdmins   map[string]map[int64]bool
	roomLocks    map[string]bool
	transactions []*models.WagerTransaction
	records      map[uint]*models.GameRecord
	betRecords   map[uint][]*models.BetRecord
	tags         []*models.MerchantTag
	nextRecordID uint
}

func newMockDatabase() *mockDatabase {
	return &mockDatabase{
		credits:    make(map[int64]int64),
		roles:      make(map[int64]string),
		roomAdmins: make(map[string]map[int64]bool),
		roomLocks:  make(map[string]bool),
		records:    make(map[uint]*models.GameRecord),
		betRecords: make(map[uint][]*models.BetRecord),
	}
}

func (m *mockDatabase) EnsureUser(userID int64, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.credits[userID]; !ok {
		m.credits[userID] = 0
	}
	return nil
}

func (m *mockDatabase) GetCredits(userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credits[userID]
	if !ok {
		return 0, persistence.ErrRecordNotFound
	}
	return c, nil
}

func (m *mockDatabase) AddCredits(userID int64, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.credits[userID]; !ok {
		return persistence.ErrRecordNotFound
	}
	m.credits[userID] += amount
	return nil
}

func (m *mockDatabase) DeductCredits(userID int64, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.credits[userID] < amount {
		return persistence.ErrInsufficientCredits
	}
	m.credits[userID] -= amount
	return nil
}

func (m *mockDatabase) GetUserRole(userID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if role, ok := m.roles[userID]; ok {
		return role, nil
	}
	return "user", nil
}

func (m *mockDatabase) IsRoomAdmin(roomID string, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomAdmins[roomID][userID], nil
}

func (m *mockDatabase) SetRoomLock(roomID string, locked bool, lockedBy int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roomLocks[roomID] = locked
	return nil
}

func (m *mockDatabase) GetRoomLock(roomID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomLocks[roomID], nil
}

func (m *mockDatabase) RecordTransaction(tx *models.WagerTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, tx)
	return nil
}

func (m *mockDatabase) CreateGameRecord(rec *models.GameRecord) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRecordID++
	rec.ID = m.nextRecordID
	m.records[rec.ID] = rec
	return rec.ID, nil
}

func (m *mockDatabase) FinishGameRecord(recordID uint, status string, pot, houseFee int64, winnerID int64, winnerName string, playersCount int, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[recordID]
	if !ok {
		return persistence.ErrRecordNotFound
	}
	rec.Status = status
	rec.Pot = pot
	rec.HouseFee = houseFee
	rec.WinnerID = winnerID
	rec.WinnerName = winnerName
	rec.PlayersCount = playersCount
	return nil
}

func (m *mockDatabase) SaveBetRecords(recordID uint, bets []*models.BetRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.betRecords[recordID] = append(m.betRecords[recordID], bets...)
	return nil
}

func (m *mockDatabase) GetPlayerStats(userID int64) (*models.PlayerStats, error) {
	return &models.PlayerStats{}, nil
}

func (m *mockDatabase) GetLeaderboard(limit int) ([]*models.LeaderboardEntry, error) {
	return nil, nil
}

func (m *mockDatabase) CreateMerchantTag(tag *models.MerchantTag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tag.ID = uint(len(m.tags) + 1)
	tag.Remaining = tag.Amount
	tag.Status = "active"
	m.tags = append(m.tags, tag)
	return nil
}

func (m *mockDatabase) ActiveTagsForUser(userID int64) ([]*models.MerchantTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.MerchantTag
	for _, t := range m.tags {
		if t.TaggedUserID == userID && t.Status == "active" && t.Remaining > 0 {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockDatabase) TagForUser(userID int64) (*models.MerchantTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.tags) - 1; i >= 0; i-- {
		t := m.tags[i]
		if t.TaggedUserID == userID && (t.Status == "active" || t.Status == "exhausted") {
			return t, nil
		}
	}
	return nil, persistence.ErrRecordNotFound
}

func (m *mockDatabase) AddTagSpent(tagID uint, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tags {
		if t.ID == tagID {
			t.TotalSpent += amount
			return nil
		}
	}
	return persistence.ErrRecordNotFound
}

func (m *mockDatabase) ConsumeTag(tagID uint, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tags {
		if t.ID == tagID {
			if t.Remaining < amount {
				return persistence.ErrTagExhausted
			}
			t.Remaining -= amount
			t.TotalSpent += amount
			if t.Remaining == 0 {
				t.Status = "exhausted"
			}
			return nil
		}
	}
	return persistence.ErrTagExhausted
}

func (m *mockDatabase) CreateTagSpend(spend *models.TagSpend) (uint, error) { return 1, nil }
func (m *mockDatabase) CreateCommission(rec *models.CommissionRecord) error { return nil }
func (m *mockDatabase) MaturedCommissions(now time.Time, limit int) ([]*models.CommissionRecord, error) {
	return nil, nil
}
func (m *mockDatabase) MarkCommissionsPaid(ids []uint, batchID string, paidAt time.Time) error {
	return nil
}
func (m *mockDatabase) CreatePayoutBatch(batch *models.PayoutBatch) error { return nil }
func (m *mockDatabase) Ping() error                                       { return nil }
func (m *mockDatabase) Close() error                                      { return nil }

func (m *mockDatabase) balance(userID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credits[userID]
}

func (m *mockDatabase) record(id uint) *models.GameRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}
