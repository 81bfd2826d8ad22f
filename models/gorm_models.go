// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormUser 用户账户（主余额）
type GormUser struct {
	gorm.Model
	UserID   int64  `gorm:"uniqueIndex;not null" json:"user_id"`
	Username string `gorm:"size:100" json:"username"`
	Credits  int64  `gorm:"default:0" json:"credits"`
	Role     string `gorm:"size:20;default:user" json:"role"` // user / admin / merchant
}

func (GormUser) TableName() string {
	return "users"
}

// GormRoomAdmin 房间管理员
type GormRoomAdmin struct {
	gorm.Model
	RoomID string `gorm:"size:64;index:idx_room_admin,unique" json:"room_id"`
	UserID int64  `gorm:"index:idx_room_admin,unique" json:"user_id"`
}

func (GormRoomAdmin) TableName() string {
	return "room_admins"
}

// GormRoomLock 房间游戏锁定状态
type GormRoomLock struct {
	gorm.Model
	RoomID   string `gorm:"size:64;uniqueIndex" json:"room_id"`
	Locked   bool   `gorm:"default:false" json:"locked"`
	LockedBy int64  `json:"locked_by"`
}

func (GormRoomLock) TableName() string {
	return "room_locks"
}

// GormWagerTransaction 流水记录，只追加
type GormWagerTransaction struct {
	gorm.Model
	UserID   int64  `gorm:"index" json:"user_id"`
	Username string `gorm:"size:100" json:"username"`
	Amount   int64  `json:"amount"`
	TxType   string `gorm:"size:32;index" json:"tx_type"`
	Source   string `gorm:"size:16" json:"source"`
	Reason   string `gorm:"size:255" json:"reason"`
}

func (GormWagerTransaction) TableName() string {
	return "wager_transactions"
}

// GormGameRecord 对局历史
type GormGameRecord struct {
	gorm.Model
	RoomID       string `gorm:"size:64;index" json:"room_id"`
	Variant      string `gorm:"size:16;index" json:"variant"`
	Status       string `gorm:"size:16" json:"status"`
	EntryAmount  int64  `json:"entry_amount"`
	Pot          int64  `json:"pot"`
	HouseFee     int64  `json:"house_fee"`
	WinnerID     int64  `json:"winner_id"`
	WinnerName   string `gorm:"size:100" json:"winner_name"`
	PlayersCount int    `json:"players_count"`
	StartedBy    int64  `json:"started_by"`
	Detail       string `gorm:"type:jsonb;default:'{}'" json:"detail"`
}

func (GormGameRecord) TableName() string {
	return "game_records"
}

// GormBetRecord 旗帜玩法单注结算记录
type GormBetRecord struct {
	gorm.Model
	RecordID  uint   `gorm:"index" json:"record_id"`
	UserID    int64  `gorm:"index" json:"user_id"`
	Username  string `gorm:"size:100" json:"username"`
	GroupCode string `gorm:"size:8" json:"group_code"`
	BetAmount int64  `json:"bet_amount"`
	WinAmount int64  `json:"win_amount"`
	Mult      int    `json:"multiplier"`
	IsWinner  bool   `json:"is_winner"`
}

func (GormBetRecord) TableName() string {
	return "bet_records"
}

// GormMerchantTag 商户标记
type GormMerchantTag struct {
	gorm.Model
	MerchantID     int64     `gorm:"index" json:"merchant_id"`
	MerchantUserID int64     `json:"merchant_user_id"`
	TaggedUserID   int64     `gorm:"index" json:"tagged_user_id"`
	TaggedUsername string    `gorm:"size:100" json:"tagged_username"`
	Amount         int64     `json:"amount"`
	Remaining      int64     `json:"remaining"`
	TotalSpent     int64     `json:"total_spent"`
	Status         string    `gorm:"size:16;index;default:active" json:"status"`
	TaggedAt       time.Time `json:"tagged_at"`
	ExpiredAt      time.Time `json:"expired_at"`
}

func (GormMerchantTag) TableName() string {
	return "merchant_tags"
}

// GormTagSpend 标记消耗记录
type GormTagSpend struct {
	gorm.Model
	TagID         uint   `gorm:"index" json:"tag_id"`
	MerchantID    int64  `gorm:"index" json:"merchant_id"`
	TaggedUserID  int64  `json:"tagged_user_id"`
	Variant       string `gorm:"size:16" json:"variant"`
	SpendAmount   int64  `json:"spend_amount"`
	GameSessionID string `gorm:"size:64" json:"game_session_id"`
}

func (GormTagSpend) TableName() string {
	return "tag_spends"
}

// GormCommissionRecord 佣金记录，pending 的由到期扫描转账
type GormCommissionRecord struct {
	gorm.Model
	SpendID        uint       `gorm:"index" json:"spend_id"`
	TagID          uint       `json:"tag_id"`
	MerchantID     int64      `gorm:"index" json:"merchant_id"`
	MerchantUserID int64      `json:"merchant_user_id"`
	TaggedUserID   int64      `json:"tagged_user_id"`
	SpendAmount    int64      `json:"spend_amount"`
	MerchantShare  int64      `json:"merchant_share"`
	UserShare      int64      `json:"user_share"`
	Status         string     `gorm:"size:16;index;default:pending" json:"status"`
	MatureAt       time.Time  `gorm:"index" json:"mature_at"`
	PaidAt         *time.Time `json:"paid_at"`
	PayoutBatchID  string     `gorm:"size:64" json:"payout_batch_id"`
}

func (GormCommissionRecord) TableName() string {
	return "commission_records"
}

// GormPayoutBatch 佣金批次
type GormPayoutBatch struct {
	gorm.Model
	BatchID        string `gorm:"size:64;uniqueIndex" json:"batch_id"`
	MerchantPayout int64  `json:"merchant_payout"`
	UserPayout     int64  `json:"user_payout"`
	Count          int    `json:"count"`
	Note           string `gorm:"size:255" json:"note"`
}

func (GormPayoutBatch) TableName() string {
	return "payout_batches"
}
