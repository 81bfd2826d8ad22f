// persistence/interface.go
package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/gamebot/config"
	"github.com/wfunc/gamebot/models"
)

var (
	// ErrRecordNotFound 记录不存在
	ErrRecordNotFound = errors.New("record not found")
	// ErrInsufficientCredits is returned when a conditional deduction finds
	// the balance smaller than the amount.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrTagExhausted is returned when a conditional tag consumption finds
	// the remaining amount smaller than requested.
	ErrTagExhausted = errors.New("merchant tag exhausted")
)

// Database 数据库抽象，gorm 和 pq 两套实现
type Database interface {
	// Users and credits. DeductCredits is a conditional decrement: it only
	// succeeds when the stored balance covers amount.
	EnsureUser(userID int64, username string) error
	GetCredits(userID int64) (int64, error)
	AddCredits(userID int64, amount int64) error
	DeductCredits(userID int64, amount int64) error
	GetUserRole(userID int64) (string, error)

	// Room administration.
	IsRoomAdmin(roomID string, userID int64) (bool, error)
	SetRoomLock(roomID string, locked bool, lockedBy int64) error
	GetRoomLock(roomID string) (bool, error)

	// Append-only wager ledger.
	RecordTransaction(tx *models.WagerTransaction) error

	// Game history.
	CreateGameRecord(rec *models.GameRecord) (uint, error)
	FinishGameRecord(recordID uint, status string, pot, houseFee int64, winnerID int64, winnerName string, playersCount int, detail string) error
	SaveBetRecords(recordID uint, bets []*models.BetRecord) error
	GetPlayerStats(userID int64) (*models.PlayerStats, error)
	GetLeaderboard(limit int) ([]*models.LeaderboardEntry, error)

	// Merchant tags and commissions.
	CreateMerchantTag(tag *models.MerchantTag) error
	ActiveTagsForUser(userID int64) ([]*models.MerchantTag, error)
	TagForUser(userID int64) (*models.MerchantTag, error)
	ConsumeTag(tagID uint, amount int64) error
	AddTagSpent(tagID uint, amount int64) error
	CreateTagSpend(spend *models.TagSpend) (uint, error)
	CreateCommission(rec *models.CommissionRecord) error
	MaturedCommissions(now time.Time, limit int) ([]*models.CommissionRecord, error)
	MarkCommissionsPaid(ids []uint, batchID string, paidAt time.Time) error
	CreatePayoutBatch(batch *models.PayoutBatch) error

	Ping() error
	Close() error
}

// NewDatabase 根据配置选择后端
func NewDatabase(cfg config.PostgresConfig) (Database, error) {
	switch cfg.Driver {
	case "", "gorm":
		return NewGormPostgreSQL(cfg)
	case "pq":
		return NewPostgreSQL(cfg)
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
