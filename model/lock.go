package model

import (
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/llmgateway/llmgateway/common/config"
	"github.com/llmgateway/llmgateway/common/helper"
	"github.com/llmgateway/llmgateway/common/logger"
)

// Lock is a coarse database mutex. Acquisition deletes expired rows for the
// key and then relies on the primary-key constraint: whichever process inserts
// first wins, everyone else gets a duplicate-key error and backs off.
type Lock struct {
	Key       string `json:"key" gorm:"primaryKey"`
	Owner     string `json:"owner"`
	ExpiresAt int64  `json:"expires_at" gorm:"bigint"`
	CreatedAt int64  `json:"created_at" gorm:"bigint"`
}

// AcquireLock tries to take the named lock. Returns false without error when
// another live owner holds it.
func AcquireLock(key, owner string) (bool, error) {
	now := helper.GetTimestamp()

	if err := DB.Where("key = ? AND expires_at < ?", key, now).Delete(&Lock{}).Error; err != nil {
		return false, errors.Wrapf(err, "purge expired lock %s", key)
	}

	lock := Lock{
		Key:       key,
		Owner:     owner,
		ExpiresAt: now + config.LockTTLSeconds,
		CreatedAt: now,
	}
	if err := DB.Create(&lock).Error; err != nil {
		// Duplicate key means someone else holds it. gorm does not expose a
		// portable sentinel across drivers, so any insert failure is treated
		// as contention.
		return false, nil
	}
	return true, nil
}

// ReleaseLock drops the lock if still owned by the caller.
func ReleaseLock(key, owner string) error {
	err := DB.Where("key = ? AND owner = ?", key, owner).Delete(&Lock{}).Error
	return errors.Wrapf(err, "release lock %s", key)
}

// WithLock runs fn while holding the named lock. Skips silently when the lock
// is contended; the next tick retries.
func WithLock(key, owner string, fn func() error) error {
	ok, err := AcquireLock(key, owner)
	if err != nil {
		return errors.Wrapf(err, "acquire lock %s", key)
	}
	if !ok {
		logger.Logger.Debug("lock contended, skipping",
			zap.String("key", key), zap.String("owner", owner))
		return nil
	}
	start := time.Now()
	defer func() {
		if err := ReleaseLock(key, owner); err != nil {
			logger.Logger.Warn("failed to release lock",
				zap.String("key", key), zap.Error(err))
		}
		logger.Logger.Debug("lock released",
			zap.String("key", key), zap.Duration("held", time.Since(start)))
	}()
	return fn()
}
