// services/credit_service.go
package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/models"
	"github.com/wfunc/gamebot/persistence"
	"github.com/wfunc/gamebot/store"
)

const balanceCacheTTL = 30 * time.Second

// ErrInsufficientCredits 余额（含标记额度）不足
var ErrInsufficientCredits = persistence.ErrInsufficientCredits

// CreditService 入场扣款、派彩、退款，全部写流水。
// 扣款优先消耗商户标记额度，差额走主余额的条件扣减。
type CreditService struct {
	db       persistence.Database
	merchant *MerchantService
	cache    store.Store
}

// NewCreditService wires the service. cache may be the shared store; pass
// nil to disable balance caching.
func NewCreditService(db persistence.Database, merchant *MerchantService, cache store.Store) *CreditService {
	return &CreditService{db: db, merchant: merchant, cache: cache}
}

func balanceKey(userID int64) string {
	return fmt.Sprintf("balance:%d", userID)
}

// Balance returns the user's primary balance, cached briefly.
func (c *CreditService) Balance(userID int64) (int64, error) {
	if c.cache != nil {
		if data, _, err := c.cache.Get(balanceKey(userID)); err == nil {
			if v, perr := strconv.ParseInt(string(data), 10, 64); perr == nil {
				return v, nil
			}
		}
	}
	credits, err := c.db.GetCredits(userID)
	if err != nil {
		return 0, err
	}
	if c.cache != nil {
		c.cache.SetNX(balanceKey(userID), strconv.FormatInt(credits, 10), balanceCacheTTL)
	}
	return credits, nil
}

func (c *CreditService) invalidate(userID int64) {
	if c.cache != nil {
		c.cache.Delete(balanceKey(userID))
	}
}

// DeductEntry takes amount from the user, merchant-tagged credit first and
// the remainder from the primary balance. The primary deduction is a
// conditional decrement, so a concurrent spender cannot drive the balance
// negative. Returns the funding source: tagged, primary or mixed.
func (c *CreditService) DeductEntry(userID int64, username string, amount int64, variant models.Variant, sessionID, reason string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("invalid deduct amount %d", amount)
	}
	if err := c.db.EnsureUser(userID, username); err != nil {
		return "", err
	}

	var plan []TagPortion
	var taggedTotal int64
	if c.merchant != nil {
		var err error
		plan, taggedTotal, err = c.merchant.PlanConsumption(userID, amount)
		if err != nil {
			return "", err
		}
	}
	remainder := amount - taggedTotal

	// Primary first: if it cannot cover the remainder nothing has been
	// touched yet and the whole deduction fails cleanly.
	if remainder > 0 {
		if err := c.db.DeductCredits(userID, remainder); err != nil {
			return "", err
		}
	}

	var consumed int64
	var consumeErr error
	if c.merchant != nil && len(plan) > 0 {
		consumed, consumeErr = c.merchant.ConsumePlanned(plan, userID, variant, sessionID)
	}
	if consumeErr != nil {
		// A tag raced away between plan and consume. Take the shortfall
		// from the primary balance instead.
		shortfall := taggedTotal - consumed
		logger.Log.Warnw("tag consumption raced, falling back to primary",
			"user", userID, "shortfall", shortfall, "error", consumeErr)
		if derr := c.db.DeductCredits(userID, shortfall); derr != nil {
			if remainder > 0 {
				c.db.AddCredits(userID, remainder)
			}
			if consumed > 0 {
				c.db.AddCredits(userID, consumed)
			}
			c.invalidate(userID)
			return "", derr
		}
	}
	c.invalidate(userID)

	// Full-amount commission for tagged users, even when the tag is
	// exhausted and the whole entry came from the primary balance.
	if c.merchant != nil {
		if terr := c.merchant.TrackSpend(userID, variant, amount, sessionID); terr != nil {
			logger.Log.Errorw("spend tracking failed", "user", userID, "error", terr)
		}
	}

	source := "primary"
	switch {
	case consumed >= amount:
		source = "tagged"
	case consumed > 0:
		source = "mixed"
	}

	err := c.db.RecordTransaction(&models.WagerTransaction{
		UserID:   userID,
		Username: username,
		Amount:   -amount,
		TxType:   "game_bet",
		Source:   source,
		Reason:   reason,
	})
	if err != nil {
		logger.Log.Errorw("ledger write failed", "user", userID, "error", err)
	}
	return source, nil
}

// Credit pays amount to the user's primary balance and writes the ledger
// row. Used for winnings and matured commissions.
func (c *CreditService) Credit(userID int64, username string, amount int64, txType, reason string) error {
	if amount <= 0 {
		return nil
	}
	if err := c.db.EnsureUser(userID, username); err != nil {
		return err
	}
	if err := c.db.AddCredits(userID, amount); err != nil {
		return err
	}
	c.invalidate(userID)
	return c.db.RecordTransaction(&models.WagerTransaction{
		UserID:   userID,
		Username: username,
		Amount:   amount,
		TxType:   txType,
		Source:   "primary",
		Reason:   reason,
	})
}

// Refund returns a cancelled entry to the primary balance. Tagged credit
// is not restored to the tag; the user keeps the refund as primary.
func (c *CreditService) Refund(userID int64, username string, amount int64, reason string) error {
	if amount <= 0 {
		return nil
	}
	if err := c.db.AddCredits(userID, amount); err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			if uerr := c.db.EnsureUser(userID, username); uerr != nil {
				return uerr
			}
			if aerr := c.db.AddCredits(userID, amount); aerr != nil {
				return aerr
			}
		} else {
			return err
		}
	}
	c.invalidate(userID)
	return c.db.RecordTransaction(&models.WagerTransaction{
		UserID:   userID,
		Username: username,
		Amount:   amount,
		TxType:   "game_refund",
		Source:   "primary",
		Reason:   reason,
	})
}
