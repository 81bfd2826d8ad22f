// services/merchant_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/gamebot/config"
	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/models"
	"github.com/wfunc/gamebot/persistence"
)

// TagPortion is one slice of a planned tag consumption.
type TagPortion struct {
	Tag    *models.MerchantTag
	Amount int64
}

// MerchantService 商户标记消耗与佣金。
// 消耗产生 pending 佣金，到期后由扫描批量发放；庄家抽成里商户的那份
// 在结算时立刻到账。
type MerchantService struct {
	db  persistence.Database
	cfg config.CommissionConfig
}

func NewMerchantService(db persistence.Database, cfg config.CommissionConfig) *MerchantService {
	return &MerchantService{db: db, cfg: cfg}
}

// TaggedAvailable returns the user's total remaining tagged credit.
func (m *MerchantService) TaggedAvailable(userID int64) (int64, error) {
	tags, err := m.db.ActiveTagsForUser(userID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, t := range tags {
		total += t.Remaining
	}
	return total, nil
}

// PlanConsumption splits amount across the user's active tags, oldest
// first. The returned total may be less than amount; the caller funds the
// rest from the primary balance.
func (m *MerchantService) PlanConsumption(userID int64, amount int64) ([]TagPortion, int64, error) {
	tags, err := m.db.ActiveTagsForUser(userID)
	if err != nil {
		return nil, 0, err
	}
	var plan []TagPortion
	var total int64
	for _, t := range tags {
		if total >= amount {
			break
		}
		portion := amount - total
		if portion > t.Remaining {
			portion = t.Remaining
		}
		plan = append(plan, TagPortion{Tag: t, Amount: portion})
		total += portion
	}
	return plan, total, nil
}

// ConsumePlanned executes a plan: decrements each tag, records the spend
// and accrues the pending commissions. Returns the amount actually
// consumed; on error the caller covers the difference elsewhere.
func (m *MerchantService) ConsumePlanned(plan []TagPortion, userID int64, variant models.Variant, sessionID string) (int64, error) {
	var consumed int64
	for _, p := range plan {
		if err := m.db.ConsumeTag(p.Tag.ID, p.Amount); err != nil {
			return consumed, err
		}
		consumed += p.Amount

		spendID, err := m.db.CreateTagSpend(&models.TagSpend{
			TagID:         p.Tag.ID,
			MerchantID:    p.Tag.MerchantID,
			TaggedUserID:  userID,
			Variant:       variant,
			SpendAmount:   p.Amount,
			GameSessionID: sessionID,
		})
		if err != nil {
			logger.Log.Errorw("tag spend record failed", "tag", p.Tag.ID, "error", err)
			continue
		}

		merchantShare := int64(float64(p.Amount) * m.cfg.MerchantRate)
		userShare := int64(float64(p.Amount) * m.cfg.UserRate)
		if merchantShare == 0 && userShare == 0 {
			continue
		}
		err = m.db.CreateCommission(&models.CommissionRecord{
			SpendID:        spendID,
			TagID:          p.Tag.ID,
			MerchantID:     p.Tag.MerchantID,
			MerchantUserID: p.Tag.MerchantUserID,
			TaggedUserID:   userID,
			SpendAmount:    p.Amount,
			MerchantShare:  merchantShare,
			UserShare:      userShare,
			Status:         "pending",
			MatureAt:       time.Now().Add(m.cfg.MatureDelay),
		})
		if err != nil {
			logger.Log.Errorw("commission accrual failed", "spend", spendID, "error", err)
		}
	}
	return consumed, nil
}

// TrackSpend accrues commission on the user's FULL entry amount, on top
// of whatever ConsumePlanned accrued for the tagged portion. Applies to
// users carrying a tag in active or exhausted status: a player who burned
// through their tagged credit keeps earning their merchant commission on
// primary-balance spending. No-op for untagged users.
func (m *MerchantService) TrackSpend(userID int64, variant models.Variant, amount int64, sessionID string) error {
	if amount <= 0 {
		return nil
	}
	tag, err := m.db.TagForUser(userID)
	if err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if err := m.db.AddTagSpent(tag.ID, amount); err != nil {
		logger.Log.Errorw("tag spend total update failed", "tag", tag.ID, "error", err)
	}
	spendID, err := m.db.CreateTagSpend(&models.TagSpend{
		TagID:         tag.ID,
		MerchantID:    tag.MerchantID,
		TaggedUserID:  userID,
		Variant:       variant,
		SpendAmount:   amount,
		GameSessionID: sessionID,
	})
	if err != nil {
		return err
	}

	merchantShare := int64(float64(amount) * m.cfg.MerchantRate)
	userShare := int64(float64(amount) * m.cfg.UserRate)
	if merchantShare == 0 && userShare == 0 {
		return nil
	}
	return m.db.CreateCommission(&models.CommissionRecord{
		SpendID:        spendID,
		TagID:          tag.ID,
		MerchantID:     tag.MerchantID,
		MerchantUserID: tag.MerchantUserID,
		TaggedUserID:   userID,
		SpendAmount:    amount,
		MerchantShare:  merchantShare,
		UserShare:      userShare,
		Status:         "pending",
		MatureAt:       time.Now().Add(m.cfg.MatureDelay),
	})
}

// PayHouseFeeShare credits the winner's tagging merchant their cut of the
// house fee, immediately. No-op when the winner has no active tag.
func (m *MerchantService) PayHouseFeeShare(winnerID int64, houseFee int64, reason string) error {
	if houseFee <= 0 {
		return nil
	}
	tags, err := m.db.ActiveTagsForUser(winnerID)
	if err != nil || len(tags) == 0 {
		return err
	}
	share := int64(float64(houseFee) * m.cfg.HouseFeeRate)
	if share <= 0 {
		return nil
	}
	merchant := tags[0]
	if err := m.db.AddCredits(merchant.MerchantUserID, share); err != nil {
		return err
	}
	return m.db.RecordTransaction(&models.WagerTransaction{
		UserID: merchant.MerchantUserID,
		Amount: share,
		TxType: "tag_commission",
		Source: "primary",
		Reason: reason,
	})
}

// ProcessMatured pays out one batch of matured pending commissions and
// marks them with a fresh batch id. Returns nil when nothing matured.
func (m *MerchantService) ProcessMatured(now time.Time, limit int) (*models.PayoutBatch, error) {
	recs, err := m.db.MaturedCommissions(now, limit)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	batch := &models.PayoutBatch{
		BatchID: uuid.NewString(),
		Note:    fmt.Sprintf("commission payout %s", now.Format("2006-01-02 15:04")),
	}
	var paid []uint
	for _, rec := range recs {
		if rec.MerchantShare > 0 {
			if err := m.db.AddCredits(rec.MerchantUserID, rec.MerchantShare); err != nil {
				logger.Log.Errorw("merchant commission payout failed",
					"commission", rec.ID, "merchant", rec.MerchantUserID, "error", err)
				continue
			}
			m.db.RecordTransaction(&models.WagerTransaction{
				UserID: rec.MerchantUserID,
				Amount: rec.MerchantShare,
				TxType: "tag_commission",
				Source: "primary",
				Reason: fmt.Sprintf("matured merchant commission, batch %s", batch.BatchID),
			})
			batch.MerchantPayout += rec.MerchantShare
		}
		if rec.UserShare > 0 {
			if err := m.db.AddCredits(rec.TaggedUserID, rec.UserShare); err != nil {
				logger.Log.Errorw("user commission payout failed",
					"commission", rec.ID, "user", rec.TaggedUserID, "error", err)
			} else {
				m.db.RecordTransaction(&models.WagerTransaction{
					UserID: rec.TaggedUserID,
					Amount: rec.UserShare,
					TxType: "tag_commission",
					Source: "primary",
					Reason: fmt.Sprintf("matured user commission, batch %s", batch.BatchID),
				})
				batch.UserPayout += rec.UserShare
			}
		}
		paid = append(paid, rec.ID)
	}

	if err := m.db.MarkCommissionsPaid(paid, batch.BatchID, now); err != nil {
		return nil, err
	}
	batch.Count = len(paid)
	if err := m.db.CreatePayoutBatch(batch); err != nil {
		logger.Log.Errorw("payout batch record failed", "batch", batch.BatchID, "error", err)
	}
	logger.Log.Infow("commission batch paid",
		"batch", batch.BatchID, "count", batch.Count,
		"merchant_total", batch.MerchantPayout, "user_total", batch.UserPayout)
	return batch, nil
}
