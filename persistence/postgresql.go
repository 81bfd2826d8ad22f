// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/wfunc/gamebot/config"
	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/models"
)

const queryTimeout = 5 * time.Second

// PostgreSQL 原生 database/sql 实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建原生 PostgreSQL 连接并初始化表
func NewPostgreSQL(cfg config.PostgresConfig) (*PostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	p := &PostgreSQL{db: db}
	if err := p.initTables(); err != nil {
		return nil, fmt.Errorf("failed to init tables: %w", err)
	}

	logger.Log.Info("PostgreSQL connected")
	return p, nil
}

func (p *PostgreSQL) initTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT UNIQUE NOT NULL,
			username VARCHAR(100),
			credits BIGINT DEFAULT 0,
			role VARCHAR(20) DEFAULT 'user',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS room_admins (
			id BIGSERIAL PRIMARY KEY,
			room_id VARCHAR(64) NOT NULL,
			user_id BIGINT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ,
			UNIQUE (room_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS room_locks (
			id BIGSERIAL PRIMARY KEY,
			room_id VARCHAR(64) UNIQUE NOT NULL,
			locked BOOLEAN DEFAULT FALSE,
			locked_by BIGINT DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS wager_transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			username VARCHAR(100),
			amount BIGINT NOT NULL,
			tx_type VARCHAR(32) NOT NULL,
			source VARCHAR(16),
			reason VARCHAR(255),
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wager_tx_user ON wager_transactions (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_wager_tx_type ON wager_transactions (tx_type)`,
		`CREATE TABLE IF NOT EXISTS game_records (
			id BIGSERIAL PRIMARY KEY,
			room_id VARCHAR(64) NOT NULL,
			variant VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL,
			entry_amount BIGINT DEFAULT 0,
			pot BIGINT DEFAULT 0,
			house_fee BIGINT DEFAULT 0,
			winner_id BIGINT DEFAULT 0,
			winner_name VARCHAR(100),
			players_count INT DEFAULT 0,
			started_by BIGINT DEFAULT 0,
			detail JSONB DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_game_records_room ON game_records (room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_game_records_variant ON game_records (variant)`,
		`CREATE TABLE IF NOT EXISTS bet_records (
			id BIGSERIAL PRIMARY KEY,
			record_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			username VARCHAR(100),
			group_code VARCHAR(8),
			bet_amount BIGINT DEFAULT 0,
			win_amount BIGINT DEFAULT 0,
			mult INT DEFAULT 0,
			is_winner BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bet_records_record ON bet_records (record_id)`,
		`CREATE TABLE IF NOT EXISTS merchant_tags (
			id BIGSERIAL PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			merchant_user_id BIGINT DEFAULT 0,
			tagged_user_id BIGINT NOT NULL,
			tagged_username VARCHAR(100),
			amount BIGINT DEFAULT 0,
			remaining BIGINT DEFAULT 0,
			total_spent BIGINT DEFAULT 0,
			status VARCHAR(16) DEFAULT 'active',
			tagged_at TIMESTAMPTZ DEFAULT NOW(),
			expired_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_merchant_tags_user ON merchant_tags (tagged_user_id)`,
		`CREATE TABLE IF NOT EXISTS tag_spends (
			id BIGSERIAL PRIMARY KEY,
			tag_id BIGINT NOT NULL,
			merchant_id BIGINT NOT NULL,
			tagged_user_id BIGINT NOT NULL,
			variant VARCHAR(16),
			spend_amount BIGINT DEFAULT 0,
			game_session_id VARCHAR(64),
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS commission_records (
			id BIGSERIAL PRIMARY KEY,
			spend_id BIGINT NOT NULL,
			tag_id BIGINT DEFAULT 0,
			merchant_id BIGINT NOT NULL,
			merchant_user_id BIGINT DEFAULT 0,
			tagged_user_id BIGINT DEFAULT 0,
			spend_amount BIGINT DEFAULT 0,
			merchant_share BIGINT DEFAULT 0,
			user_share BIGINT DEFAULT 0,
			status VARCHAR(16) DEFAULT 'pending',
			mature_at TIMESTAMPTZ NOT NULL,
			paid_at TIMESTAMPTZ,
			payout_batch_id VARCHAR(64),
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_commission_mature ON commission_records (status, mature_at)`,
		`CREATE TABLE IF NOT EXISTS payout_batches (
			id BIGSERIAL PRIMARY KEY,
			batch_id VARCHAR(64) UNIQUE NOT NULL,
			merchant_payout BIGINT DEFAULT 0,
			user_payout BIGINT DEFAULT 0,
			count INT DEFAULT 0,
			note VARCHAR(255),
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgreSQL) EnsureUser(userID int64, username string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE users.username END,
			updated_at = NOW()`,
		userID, username)
	return err
}

func (p *PostgreSQL) GetCredits(userID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var credits int64
	err := p.db.QueryRowContext(ctx,
		`SELECT credits FROM users WHERE user_id = $1 AND deleted_at IS NULL`, userID).
		Scan(&credits)
	if err == sql.ErrNoRows {
		return 0, ErrRecordNotFound
	}
	if err != nil {
		return 0, err
	}
	return credits, nil
}

func (p *PostgreSQL) AddCredits(userID int64, amount int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	result, err := p.db.ExecContext(ctx,
		`UPDATE users SET credits = credits + $1, updated_at = NOW() WHERE user_id = $2`,
		amount, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeductCredits 条件扣款，余额不够时 0 行受影响
func (p *PostgreSQL) DeductCredits(userID int64, amount int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	result, err := p.db.ExecContext(ctx,
		`UPDATE users SET credits = credits - $1, updated_at = NOW()
		 WHERE user_id = $2 AND credits >= $1`,
		amount, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInsufficientCredits
	}
	return nil
}

func (p *PostgreSQL) GetUserRole(userID int64) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var role string
	err := p.db.QueryRowContext(ctx,
		`SELECT role FROM users WHERE user_id = $1 AND deleted_at IS NULL`, userID).
		Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrRecordNotFound
	}
	if err != nil {
		return "", err
	}
	return role, nil
}

func (p *PostgreSQL) IsRoomAdmin(roomID string, userID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var count int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM room_admins
		 WHERE room_id = $1 AND user_id = $2 AND deleted_at IS NULL`,
		roomID, userID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *PostgreSQL) SetRoomLock(roomID string, locked bool, lockedBy int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO room_locks (room_id, locked, locked_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id) DO UPDATE SET
			locked = EXCLUDED.locked,
			locked_by = EXCLUDED.locked_by,
			updated_at = NOW()`,
		roomID, locked, lockedBy)
	return err
}

func (p *PostgreSQL) GetRoomLock(roomID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var locked bool
	err := p.db.QueryRowContext(ctx,
		`SELECT locked FROM room_locks WHERE room_id = $1 AND deleted_at IS NULL`, roomID).
		Scan(&locked)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return locked, nil
}

func (p *PostgreSQL) RecordTransaction(tx *models.WagerTransaction) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO wager_transactions (user_id, username, amount, tx_type, source, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tx.UserID, tx.Username, tx.Amount, tx.TxType, tx.Source, tx.Reason)
	return err
}

func (p *PostgreSQL) CreateGameRecord(rec *models.GameRecord) (uint, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var id uint
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO game_records (room_id, variant, status, entry_amount, pot, started_by, players_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		rec.RoomID, string(rec.Variant), rec.Status, rec.EntryAmount, rec.Pot,
		rec.StartedBy, rec.PlayersCount).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (p *PostgreSQL) FinishGameRecord(recordID uint, status string, pot, houseFee int64, winnerID int64, winnerName string, playersCount int, detail string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if detail == "" {
		detail = "{}"
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE game_records SET
			status = $1, pot = $2, house_fee = $3, winner_id = $4,
			winner_name = $5, players_count = $6, detail = $7, updated_at = NOW()
		WHERE id = $8`,
		status, pot, houseFee, winnerID, winnerName, playersCount, detail, recordID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *PostgreSQL) SaveBetRecords(recordID uint, bets []*models.BetRecord) error {
	if len(bets) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, b := range bets {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO bet_records (record_id, user_id, username, group_code, bet_amount, win_amount, mult, is_winner)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			recordID, b.UserID, b.Username, b.GroupCode, b.BetAmount, b.WinAmount, b.Mult, b.IsWinner)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgreSQL) GetPlayerStats(userID int64) (*models.PlayerStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	stats := &models.PlayerStats{}
	err := p.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE tx_type = 'game_bet'),
			COALESCE(SUM(CASE WHEN tx_type = 'game_bet' THEN -amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN tx_type = 'game_win' THEN amount ELSE 0 END), 0)
		FROM wager_transactions WHERE user_id = $1`, userID).
		Scan(&stats.TotalGames, &stats.TotalBet, &stats.TotalWon)
	if err != nil {
		return nil, err
	}

	err = p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM game_records
		WHERE winner_id = $1 AND status = 'finished'`, userID).
		Scan(&stats.Wins)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (p *PostgreSQL) GetLeaderboard(limit int) ([]*models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
		SELECT winner_id, winner_name, COUNT(*), COALESCE(SUM(pot - house_fee), 0)
		FROM game_records
		WHERE status = 'finished' AND winner_id > 0
		GROUP BY winner_id, winner_name
		ORDER BY 4 DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.LeaderboardEntry
	for rows.Next() {
		e := &models.LeaderboardEntry{}
		if err := rows.Scan(&e.UserID, &e.Username, &e.Wins, &e.TotalWon); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (p *PostgreSQL) CreateMerchantTag(tag *models.MerchantTag) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	err := p.db.QueryRowContext(ctx, `
		INSERT INTO merchant_tags (merchant_id, merchant_user_id, tagged_user_id, tagged_username, amount, remaining, expired_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6)
		RETURNING id`,
		tag.MerchantID, tag.MerchantUserID, tag.TaggedUserID, tag.TaggedUsername,
		tag.Amount, tag.ExpiredAt).Scan(&tag.ID)
	if err != nil {
		return err
	}
	tag.Remaining = tag.Amount
	return nil
}

func (p *PostgreSQL) ActiveTagsForUser(userID int64) ([]*models.MerchantTag, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, merchant_id, merchant_user_id, tagged_user_id, tagged_username,
		       amount, remaining, total_spent, status, tagged_at, expired_at
		FROM merchant_tags
		WHERE tagged_user_id = $1 AND status = 'active' AND remaining > 0 AND deleted_at IS NULL
		ORDER BY tagged_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*models.MerchantTag
	for rows.Next() {
		t := &models.MerchantTag{}
		err := rows.Scan(&t.ID, &t.MerchantID, &t.MerchantUserID, &t.TaggedUserID,
			&t.TaggedUsername, &t.Amount, &t.Remaining, &t.TotalSpent,
			&t.Status, &t.TaggedAt, &t.ExpiredAt)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (p *PostgreSQL) TagForUser(userID int64) (*models.MerchantTag, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	t := &models.MerchantTag{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, merchant_id, merchant_user_id, tagged_user_id, tagged_username,
		       amount, remaining, total_spent, status, tagged_at, expired_at
		FROM merchant_tags
		WHERE tagged_user_id = $1 AND status IN ('active', 'exhausted') AND deleted_at IS NULL
		ORDER BY tagged_at DESC
		LIMIT 1`, userID).Scan(&t.ID, &t.MerchantID, &t.MerchantUserID, &t.TaggedUserID,
		&t.TaggedUsername, &t.Amount, &t.Remaining, &t.TotalSpent,
		&t.Status, &t.TaggedAt, &t.ExpiredAt)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (p *PostgreSQL) ConsumeTag(tagID uint, amount int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	result, err := p.db.ExecContext(ctx, `
		UPDATE merchant_tags SET
			remaining = remaining - $1,
			total_spent = total_spent + $1,
			status = CASE WHEN remaining - $1 = 0 THEN 'exhausted' ELSE status END,
			updated_at = NOW()
		WHERE id = $2 AND remaining >= $1`,
		amount, tagID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTagExhausted
	}
	return nil
}

func (p *PostgreSQL) AddTagSpent(tagID uint, amount int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		UPDATE merchant_tags SET total_spent = total_spent + $1, updated_at = NOW()
		WHERE id = $2`, amount, tagID)
	return err
}

func (p *PostgreSQL) CreateTagSpend(spend *models.TagSpend) (uint, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var id uint
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO tag_spends (tag_id, merchant_id, tagged_user_id, variant, spend_amount, game_session_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		spend.TagID, spend.MerchantID, spend.TaggedUserID, string(spend.Variant),
		spend.SpendAmount, spend.GameSessionID).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (p *PostgreSQL) CreateCommission(rec *models.CommissionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	return p.db.QueryRowContext(ctx, `
		INSERT INTO commission_records (spend_id, tag_id, merchant_id, merchant_user_id,
			tagged_user_id, spend_amount, merchant_share, user_share, status, mature_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		rec.SpendID, rec.TagID, rec.MerchantID, rec.MerchantUserID, rec.TaggedUserID,
		rec.SpendAmount, rec.MerchantShare, rec.UserShare, rec.Status, rec.MatureAt).
		Scan(&rec.ID)
}

func (p *PostgreSQL) MaturedCommissions(now time.Time, limit int) ([]*models.CommissionRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, spend_id, tag_id, merchant_id, merchant_user_id, tagged_user_id,
		       spend_amount, merchant_share, user_share, status, mature_at
		FROM commission_records
		WHERE status = 'pending' AND mature_at <= $1 AND deleted_at IS NULL
		ORDER BY mature_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.CommissionRecord
	for rows.Next() {
		r := &models.CommissionRecord{}
		err := rows.Scan(&r.ID, &r.SpendID, &r.TagID, &r.MerchantID, &r.MerchantUserID,
			&r.TaggedUserID, &r.SpendAmount, &r.MerchantShare, &r.UserShare,
			&r.Status, &r.MatureAt)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (p *PostgreSQL) MarkCommissionsPaid(ids []uint, batchID string, paidAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	int64IDs := make([]int64, 0, len(ids))
	for _, id := range ids {
		int64IDs = append(int64IDs, int64(id))
	}
	_, err := p.db.ExecContext(ctx, `
		UPDATE commission_records SET
			status = 'paid', paid_at = $1, payout_batch_id = $2, updated_at = NOW()
		WHERE id = ANY($3) AND status = 'pending'`,
		paidAt, batchID, pq.Array(int64IDs))
	return err
}

func (p *PostgreSQL) CreatePayoutBatch(batch *models.PayoutBatch) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO payout_batches (batch_id, merchant_payout, user_payout, count, note)
		VALUES ($1, $2, $3, $4, $5)`,
		batch.BatchID, batch.MerchantPayout, batch.UserPayout, batch.Count, batch.Note)
	return err
}

func (p *PostgreSQL) Ping() error {
	return p.db.Ping()
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
