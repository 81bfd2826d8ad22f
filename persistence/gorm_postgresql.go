// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/gamebot/config"
	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormPostgreSQL 基于 GORM 的 PostgreSQL 实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建 GORM PostgreSQL 连接并自动迁移表结构
func NewGormPostgreSQL(cfg config.PostgresConfig) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	err = db.AutoMigrate(
		&models.GormUser{},
		&models.GormRoomAdmin{},
		&models.GormRoomLock{},
		&models.GormWagerTransaction{},
		&models.GormGameRecord{},
		&models.GormBetRecord{},
		&models.GormMerchantTag{},
		&models.GormTagSpend{},
		&models.GormCommissionRecord{},
		&models.GormPayoutBatch{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	logger.Log.Info("GORM PostgreSQL connected and migrated")
	return &GormPostgreSQL{db: db}, nil
}

func (g *GormPostgreSQL) EnsureUser(userID int64, username string) error {
	var user models.GormUser
	err := g.db.Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.GormUser{UserID: userID, Username: username}
		return g.db.Create(&user).Error
	}
	if err != nil {
		return err
	}
	if username != "" && user.Username != username {
		return g.db.Model(&user).Update("username", username).Error
	}
	return nil
}

func (g *GormPostgreSQL) GetCredits(userID int64) (int64, error) {
	var user models.GormUser
	err := g.db.Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrRecordNotFound
	}
	if err != nil {
		return 0, err
	}
	return user.Credits, nil
}

func (g *GormPostgreSQL) AddCredits(userID int64, amount int64) error {
	result := g.db.Model(&models.GormUser{}).
		Where("user_id = ?", userID).
		Update("credits", gorm.Expr("credits + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeductCredits 条件扣款：余额不足时一行都不会更新
func (g *GormPostgreSQL) DeductCredits(userID int64, amount int64) error {
	result := g.db.Model(&models.GormUser{}).
		Where("user_id = ? AND credits >= ?", userID, amount).
		Update("credits", gorm.Expr("credits - ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientCredits
	}
	return nil
}

func (g *GormPostgreSQL) GetUserRole(userID int64) (string, error) {
	var user models.GormUser
	err := g.db.Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrRecordNotFound
	}
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

func (g *GormPostgreSQL) IsRoomAdmin(roomID string, userID int64) (bool, error) {
	var count int64
	err := g.db.Model(&models.GormRoomAdmin{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (g *GormPostgreSQL) SetRoomLock(roomID string, locked bool, lockedBy int64) error {
	var lock models.GormRoomLock
	err := g.db.Where("room_id = ?", roomID).First(&lock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		lock = models.GormRoomLock{RoomID: roomID, Locked: locked, LockedBy: lockedBy}
		return g.db.Create(&lock).Error
	}
	if err != nil {
		return err
	}
	return g.db.Model(&lock).Updates(map[string]interface{}{
		"locked":    locked,
		"locked_by": lockedBy,
	}).Error
}

func (g *GormPostgreSQL) GetRoomLock(roomID string) (bool, error) {
	var lock models.GormRoomLock
	err := g.db.Where("room_id = ?", roomID).First(&lock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return lock.Locked, nil
}

func (g *GormPostgreSQL) RecordTransaction(tx *models.WagerTransaction) error {
	row := models.GormWagerTransaction{
		UserID:   tx.UserID,
		Username: tx.Username,
		Amount:   tx.Amount,
		TxType:   tx.TxType,
		Source:   tx.Source,
		Reason:   tx.Reason,
	}
	return g.db.Create(&row).Error
}

func (g *GormPostgreSQL) CreateGameRecord(rec *models.GameRecord) (uint, error) {
	row := models.GormGameRecord{
		RoomID:       rec.RoomID,
		Variant:      string(rec.Variant),
		Status:       rec.Status,
		EntryAmount:  rec.EntryAmount,
		Pot:          rec.Pot,
		StartedBy:    rec.StartedBy,
		PlayersCount: rec.PlayersCount,
	}
	if err := g.db.Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (g *GormPostgreSQL) FinishGameRecord(recordID uint, status string, pot, houseFee int64, winnerID int64, winnerName string, playersCount int, detail string) error {
	updates := map[string]interface{}{
		"status":        status,
		"pot":           pot,
		"house_fee":     houseFee,
		"winner_id":     winnerID,
		"winner_name":   winnerName,
		"players_count": playersCount,
	}
	if detail != "" {
		updates["detail"] = detail
	}
	result := g.db.Model(&models.GormGameRecord{}).Where("id = ?", recordID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (g *GormPostgreSQL) SaveBetRecords(recordID uint, bets []*models.BetRecord) error {
	if len(bets) == 0 {
		return nil
	}
	rows := make([]models.GormBetRecord, 0, len(bets))
	for _, b := range bets {
		rows = append(rows, models.GormBetRecord{
			RecordID:  recordID,
			UserID:    b.UserID,
			Username:  b.Username,
			GroupCode: b.GroupCode,
			BetAmount: b.BetAmount,
			WinAmount: b.WinAmount,
			Mult:      b.Mult,
			IsWinner:  b.IsWinner,
		})
	}
	return g.db.Create(&rows).Error
}

func (g *GormPostgreSQL) GetPlayerStats(userID int64) (*models.PlayerStats, error) {
	stats := &models.PlayerStats{}

	var totalGames int64
	err := g.db.Model(&models.GormWagerTransaction{}).
		Where("user_id = ? AND tx_type = ?", userID, "game_bet").
		Count(&totalGames).Error
	if err != nil {
		return nil, err
	}
	stats.TotalGames = int(totalGames)

	var wins int64
	err = g.db.Model(&models.GormGameRecord{}).
		Where("winner_id = ? AND status = ?", userID, "finished").
		Count(&wins).Error
	if err != nil {
		return nil, err
	}
	stats.Wins = int(wins)

	type sums struct {
		TotalBet int64
		TotalWon int64
	}
	var s sums
	err = g.db.Model(&models.GormWagerTransaction{}).
		Select("COALESCE(SUM(CASE WHEN tx_type = 'game_bet' THEN -amount ELSE 0 END), 0) AS total_bet, "+
			"COALESCE(SUM(CASE WHEN tx_type = 'game_win' THEN amount ELSE 0 END), 0) AS total_won").
		Where("user_id = ?", userID).
		Scan(&s).Error
	if err != nil {
		return nil, err
	}
	stats.TotalBet = s.TotalBet
	stats.TotalWon = s.TotalWon
	return stats, nil
}

func (g *GormPostgreSQL) GetLeaderboard(limit int) ([]*models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	var entries []*models.LeaderboardEntry
	err := g.db.Model(&models.GormGameRecord{}).
		Select("winner_id AS user_id, winner_name AS username, COUNT(*) AS wins, COALESCE(SUM(pot - house_fee), 0) AS total_won").
		Where("status = ? AND winner_id > 0", "finished").
		Group("winner_id, winner_name").
		Order("total_won DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (g *GormPostgreSQL) CreateMerchantTag(tag *models.MerchantTag) error {
	row := models.GormMerchantTag{
		MerchantID:     tag.MerchantID,
		MerchantUserID: tag.MerchantUserID,
		TaggedUserID:   tag.TaggedUserID,
		TaggedUsername: tag.TaggedUsername,
		Amount:         tag.Amount,
		Remaining:      tag.Amount,
		Status:         "active",
		TaggedAt:       time.Now(),
		ExpiredAt:      tag.ExpiredAt,
	}
	if err := g.db.Create(&row).Error; err != nil {
		return err
	}
	tag.ID = row.ID
	tag.Remaining = row.Remaining
	return nil
}

// ActiveTagsForUser 按标记时间先后返回 active 标记，先到先消耗
func (g *GormPostgreSQL) ActiveTagsForUser(userID int64) ([]*models.MerchantTag, error) {
	var rows []models.GormMerchantTag
	err := g.db.Where("tagged_user_id = ? AND status = ? AND remaining > 0", userID, "active").
		Order("tagged_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	tags := make([]*models.MerchantTag, 0, len(rows))
	for i := range rows {
		r := rows[i]
		tags = append(tags, &models.MerchantTag{
			ID:             r.ID,
			MerchantID:     r.MerchantID,
			MerchantUserID: r.MerchantUserID,
			TaggedUserID:   r.TaggedUserID,
			TaggedUsername: r.TaggedUsername,
			Amount:         r.Amount,
			Remaining:      r.Remaining,
			TotalSpent:     r.TotalSpent,
			Status:         r.Status,
			TaggedAt:       r.TaggedAt,
			ExpiredAt:      r.ExpiredAt,
		})
	}
	return tags, nil
}

// TagForUser 返回用户最近的一条标记，active 或 exhausted；没有返回
// ErrRecordNotFound
func (g *GormPostgreSQL) TagForUser(userID int64) (*models.MerchantTag, error) {
	var row models.GormMerchantTag
	err := g.db.Where("tagged_user_id = ? AND status IN ?", userID, []string{"active", "exhausted"}).
		Order("tagged_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &models.MerchantTag{
		ID:             row.ID,
		MerchantID:     row.MerchantID,
		MerchantUserID: row.MerchantUserID,
		TaggedUserID:   row.TaggedUserID,
		TaggedUsername: row.TaggedUsername,
		Amount:         row.Amount,
		Remaining:      row.Remaining,
		TotalSpent:     row.TotalSpent,
		Status:         row.Status,
		TaggedAt:       row.TaggedAt,
		ExpiredAt:      row.ExpiredAt,
	}, nil
}

// ConsumeTag 条件扣减标记余额，扣到 0 时置为 exhausted
func (g *GormPostgreSQL) ConsumeTag(tagID uint, amount int64) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.GormMerchantTag{}).
			Where("id = ? AND remaining >= ?", tagID, amount).
			Updates(map[string]interface{}{
				"remaining":   gorm.Expr("remaining - ?", amount),
				"total_spent": gorm.Expr("total_spent + ?", amount),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTagExhausted
		}
		return tx.Model(&models.GormMerchantTag{}).
			Where("id = ? AND remaining = 0", tagID).
			Update("status", "exhausted").Error
	})
}

// AddTagSpent 只累计 total_spent，不动 remaining，用于全额消费统计
func (g *GormPostgreSQL) AddTagSpent(tagID uint, amount int64) error {
	return g.db.Model(&models.GormMerchantTag{}).
		Where("id = ?", tagID).
		Update("total_spent", gorm.Expr("total_spent + ?", amount)).Error
}

func (g *GormPostgreSQL) CreateTagSpend(spend *models.TagSpend) (uint, error) {
	row := models.GormTagSpend{
		TagID:         spend.TagID,
		MerchantID:    spend.MerchantID,
		TaggedUserID:  spend.TaggedUserID,
		Variant:       string(spend.Variant),
		SpendAmount:   spend.SpendAmount,
		GameSessionID: spend.GameSessionID,
	}
	if err := g.db.Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (g *GormPostgreSQL) CreateCommission(rec *models.CommissionRecord) error {
	row := models.GormCommissionRecord{
		SpendID:        rec.SpendID,
		TagID:          rec.TagID,
		MerchantID:     rec.MerchantID,
		MerchantUserID: rec.MerchantUserID,
		TaggedUserID:   rec.TaggedUserID,
		SpendAmount:    rec.SpendAmount,
		MerchantShare:  rec.MerchantShare,
		UserShare:      rec.UserShare,
		Status:         rec.Status,
		MatureAt:       rec.MatureAt,
	}
	if err := g.db.Create(&row).Error; err != nil {
		return err
	}
	rec.ID = row.ID
	return nil
}

func (g *GormPostgreSQL) MaturedCommissions(now time.Time, limit int) ([]*models.CommissionRecord, error) {
	var rows []models.GormCommissionRecord
	err := g.db.Where("status = ? AND mature_at <= ?", "pending", now).
		Order("mature_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	recs := make([]*models.CommissionRecord, 0, len(rows))
	for i := range rows {
		r := rows[i]
		recs = append(recs, &models.CommissionRecord{
			ID:             r.ID,
			SpendID:        r.SpendID,
			TagID:          r.TagID,
			MerchantID:     r.MerchantID,
			MerchantUserID: r.MerchantUserID,
			TaggedUserID:   r.TaggedUserID,
			SpendAmount:    r.SpendAmount,
			MerchantShare:  r.MerchantShare,
			UserShare:      r.UserShare,
			Status:         r.Status,
			MatureAt:       r.MatureAt,
		})
	}
	return recs, nil
}

func (g *GormPostgreSQL) MarkCommissionsPaid(ids []uint, batchID string, paidAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return g.db.Model(&models.GormCommissionRecord{}).
		Where("id IN ? AND status = ?", ids, "pending").
		Updates(map[string]interface{}{
			"status":          "paid",
			"paid_at":         paidAt,
			"payout_batch_id": batchID,
		}).Error
}

func (g *GormPostgreSQL) CreatePayoutBatch(batch *models.PayoutBatch) error {
	row := models.GormPayoutBatch{
		BatchID:        batch.BatchID,
		MerchantPayout: batch.MerchantPayout,
		UserPayout:     batch.UserPayout,
		Count:          batch.Count,
		Note:           batch.Note,
	}
	return g.db.Create(&row).Error
}

func (g *GormPostgreSQL) Ping() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (g *GormPostgreSQL) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
