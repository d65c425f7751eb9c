package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"gorm.io/gorm"

	"github.com/llmgateway/llmgateway/common"
	"github.com/llmgateway/llmgateway/common/logger"
)

const (
	KeyStatusActive   = "active"
	KeyStatusDisabled = "disabled"
)

// ApiKey authenticates callers. Usage accumulates lifetime spend in USD and
// is maintained exclusively by the worker sweep.
type ApiKey struct {
	Id        string `json:"id" gorm:"primaryKey"`
	Token     string `json:"token" gorm:"uniqueIndex"`
	ProjectId string `json:"project_id" gorm:"index"`
	Name      string `json:"name"`
	Status    string `json:"status" gorm:"default:'active'"`
	Usage     float64 `json:"usage" gorm:"type:decimal(20,10);default:0"`
	// UsageLimit, when set, caps lifetime usage; usage >= limit rejects.
	UsageLimit *float64 `json:"usage_limit" gorm:"type:decimal(20,10)"`
	CreatedAt  int64    `json:"created_at" gorm:"bigint"`
	UpdatedAt  int64    `json:"updated_at" gorm:"bigint;autoUpdateTime:milli"`
}

const apiKeyCacheTTL = 30 * time.Second

// GetApiKeyByToken resolves a bearer token, consulting Redis first. The cached
// value may be stale by up to the TTL; usage-limit enforcement tolerates this.
func GetApiKeyByToken(token string) (*ApiKey, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("empty token")
	}

	cacheKey := "apikey:" + token
	if common.IsRedisEnabled() {
		if raw, err := common.RedisGet(cacheKey); err == nil {
			var key ApiKey
			if err := json.Unmarshal([]byte(raw), &key); err == nil {
				return &key, nil
			}
		}
	}

	var key ApiKey
	if err := DB.Where("token = ?", token).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Errorf("api key not found for token")
		}
		return nil, errors.Wrap(err, "query api key")
	}

	if common.IsRedisEnabled() {
		if raw, err := json.Marshal(&key); err == nil {
			if err := common.RedisSet(cacheKey, string(raw), apiKeyCacheTTL); err != nil {
				logger.Logger.Warn("failed to cache api key", zap.Error(err))
			}
		}
	}
	return &key, nil
}

// ExceedsUsageLimit reports whether the key has spent its lifetime budget.
func (k *ApiKey) ExceedsUsageLimit() bool {
	return k.UsageLimit != nil && k.Usage >= *k.UsageLimit
}

// IncrementUsage adds swept cost to the key inside the worker transaction and
// drops the lookup cache entry so the next request observes the new total.
func IncrementUsage(tx *gorm.DB, keyId string, amount float64) error {
	if amount == 0 {
		return nil
	}
	var key ApiKey
	if err := tx.Where("id = ?", keyId).First(&key).Error; err != nil {
		return errors.Wrapf(err, "load api key %s", keyId)
	}
	err := tx.Model(&ApiKey{}).Where("id = ?", keyId).
		Update("usage", gorm.Expr("usage + ?", amount)).Error
	if err != nil {
		return errors.Wrapf(err, "increment usage of api key %s", keyId)
	}
	if common.IsRedisEnabled() {
		_ = common.RedisDel("apikey:" + key.Token)
	}
	return nil
}
