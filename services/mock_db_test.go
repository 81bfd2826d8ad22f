// services/mock_db_test.go
package services

import (
	"sync"
	"time"

	"github.com/wfunc/gamebot/models"
	"github.com/wfunc/gamebot/persistence"
)

// mockDB is an in-memory persistence.Database for tests.
type mockDB struct {
	mu sync.Mutex

	credits map[int64]int64
	roles   map[int64]string
	admins  map[string]map[int64]bool
	locks   map[string]bool

	transactions []*models.WagerTransaction
	records      map[uint]*models.GameRecord
	betRecords   map[uint][]*models.BetRecord
	nextRecordID uint

	tags        map[uint]*models.MerchantTag
	spends      map[uint]*models.TagSpend
	commissions map[uint]*models.CommissionRecord
	batches     []*models.PayoutBatch
	nextTagID   uint
	nextSpendID uint
	nextCommID  uint
}

func newMockDB() *mockDB {
	return &mockDB{
		credits:     make(map[int64]int64),
		roles:       make(map[int64]string),
		admins:      make(map[string]map[int64]bool),
		locks:       make(map[string]bool),
		records:     make(map[uint]*models.GameRecord),
		betRecords:  make(map[uint][]*models.BetRecord),
		tags:        make(map[uint]*models.MerchantTag),
		spends:      make(map[uint]*models.TagSpend),
		commissions: make(map[uint]*models.CommissionRecord),
	}
}

func (m *mockDB) EnsureUser(userID int64, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.credits[userID]; !ok {
		m.credits[userID] = 0
	}
	return nil
}

func (m *mockDB) GetCredits(userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credits[userID]
	if !ok {
		return 0, persistence.ErrRecordNotFound
	}
	return c, nil
}

func (m *mockDB) AddCredits(userID int64, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.credits[userID]; !ok {
		return persistence.ErrRecordNotFound
	}
	m.credits[userID] += amount
	return nil
}

func (m *mockDB) DeductCredits(userID int64, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.credits[userID] < amount {
		return persistence.ErrInsufficientCredits
	}
	m.credits[userID] -= amount
	return nil
}

func (m *mockDB) GetUserRole(userID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[userID]
	if !ok {
		return "user", nil
	}
	return role, nil
}

func (m *mockDB) IsRoomAdmin(roomID string, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admins[roomID][userID], nil
}

func (m *mockDB) SetRoomLock(roomID string, locked bool, lockedBy int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[roomID] = locked
	return nil
}

func (m *mockDB) GetRoomLock(roomID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[roomID], nil
}

func (m *mockDB) RecordTransaction(tx *models.WagerTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx.CreatedAt = time.Now()
	m.transactions = append(m.transactions, tx)
	return nil
}

func (m *mockDB) CreateGameRecord(rec *models.GameRecord) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRecordID++
	rec.ID = m.nextRecordID
	m.records[rec.ID] = rec
	return rec.ID, nil
}

func (m *mockDB) FinishGameRecord(recordID uint, status string, pot, houseFee int64, winnerID int64, winnerName string, playersCount int, detail string) error {
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

func (m *mockDB) SaveBetRecords(recordID uint, bets []*models.BetRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.betRecords[recordID] = append(m.betRecords[recordID], bets...)
	return nil
}

func (m *mockDB) GetPlayerStats(userID int64) (*models.PlayerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.PlayerStats{}
	for _, tx := range m.transactions {
		if tx.UserID != userID {
			continue
		}
		switch tx.TxType {
		case "game_bet":
			stats.TotalGames++
			stats.TotalBet += -tx.Amount
		case "game_win":
			stats.TotalWon += tx.Amount
		}
	}
	for _, rec := range m.records {
		if rec.WinnerID == userID && rec.Status == "finished" {
			stats.Wins++
		}
	}
	return stats, nil
}

func (m *mockDB) GetLeaderboard(limit int) ([]*models.LeaderboardEntry, error) {
	return nil, nil
}

func (m *mockDB) CreateMerchantTag(tag *models.MerchantTag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTagID++
	tag.ID = m.nextTagID
	tag.Remaining = tag.Amount
	tag.Status = "active"
	if tag.TaggedAt.IsZero() {
		tag.TaggedAt = time.Now()
	}
	m.tags[tag.ID] = tag
	return nil
}

func (m *mockDB) ActiveTagsForUser(userID int64) ([]*models.MerchantTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tags []*models.MerchantTag
	for id := uint(1); id <= m.nextTagID; id++ {
		t, ok := m.tags[id]
		if ok && t.TaggedUserID == userID && t.Status == "active" && t.Remaining > 0 {
			tags = append(tags, t)
		}
	}
	return tags, nil
}

func (m *mockDB) TagForUser(userID int64) (*models.MerchantTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.MerchantTag
	for id := uint(1); id <= m.nextTagID; id++ {
		t, ok := m.tags[id]
		if !ok || t.TaggedUserID != userID {
			continue
		}
		if t.Status != "active" && t.Status != "exhausted" {
			continue
		}
		if latest == nil || t.TaggedAt.After(latest.TaggedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, persistence.ErrRecordNotFound
	}
	return latest, nil
}

func (m *mockDB) AddTagSpent(tagID uint, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tags[tagID]
	if !ok {
		return persistence.ErrRecordNotFound
	}
	t.TotalSpent += amount
	return nil
}

func (m *mockDB) ConsumeTag(tagID uint, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tags[tagID]
	if !ok || t.Remaining < amount {
		return persistence.ErrTagExhausted
	}
	t.Remaining -= amount
	t.TotalSpent += amount
	if t.Remaining == 0 {
		t.Status = "exhausted"
	}
	return nil
}

func (m *mockDB) CreateTagSpend(spend *models.TagSpend) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSpendID++
	spend.ID = m.nextSpendID
	m.spends[spend.ID] = spend
	return spend.ID, nil
}

func (m *mockDB) CreateCommission(rec *models.CommissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCommID++
	rec.ID = m.nextCommID
	m.commissions[rec.ID] = rec
	return nil
}

func (m *mockDB) MaturedCommissions(now time.Time, limit int) ([]*models.CommissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var recs []*models.CommissionRecord
	for id := uint(1); id <= m.nextCommID; id++ {
		r, ok := m.commissions[id]
		if ok && r.Status == "pending" && !r.MatureAt.After(now) {
			recs = append(recs, r)
			if len(recs) >= limit {
				break
			}
		}
	}
	return recs, nil
}

func (m *mockDB) MarkCommissionsPaid(ids []uint, batchID string, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if r, ok := m.commissions[id]; ok && r.Status == "pending" {
			r.Status = "paid"
			r.PaidAt = &paidAt
			r.PayoutBatchID = batchID
		}
	}
	return nil
}

func (m *mockDB) CreatePayoutBatch(batch *models.PayoutBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	return nil
}

func (m *mockDB) Ping() error  { return nil }
func (m *mockDB) Close() error { return nil }

func (m *mockDB) txByType(txType string) []*models.WagerTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.WagerTransaction
	for _, tx := range m.transactions {
		if tx.TxType == txType {
			out = append(out, tx)
		}
	}
	return out
}
