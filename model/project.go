package model

import (
	"github.com/Laisky/errors/v2"

	"github.com/llmgateway/llmgateway/common/config"
)

const (
	ModeAPIKeys = "api-keys"
	ModeCredits = "credits"
	ModeHybrid  = "hybrid"
)

// Project scopes API keys and selects how upstream credentials are resolved.
type Project struct {
	Id             string `json:"id" gorm:"primaryKey"`
	OrganizationId string `json:"organization_id" gorm:"index"`
	Name           string `json:"name"`
	Mode           string `json:"mode" gorm:"default:'credits'"`
	CachingEnabled bool   `json:"caching_enabled" gorm:"default:false"`
	// CacheDurationSeconds is clamped to [10, 31536000] when read.
	CacheDurationSeconds int   `json:"cache_duration_seconds" gorm:"default:60"`
	CreatedAt            int64 `json:"created_at" gorm:"bigint"`
	UpdatedAt            int64 `json:"updated_at" gorm:"bigint;autoUpdateTime:milli"`
}

func GetProjectById(id string) (*Project, error) {
	if id == "" {
		return nil, errors.New("project id is empty")
	}
	var project Project
	if err := DB.Where("id = ?", id).First(&project).Error; err != nil {
		return nil, errors.Wrapf(err, "get project %s", id)
	}
	return &project, nil
}

// EffectiveCacheDuration returns the project TTL clamped to the allowed range.
func (p *Project) EffectiveCacheDuration() int {
	d := p.CacheDurationSeconds
	if d < config.CacheMinDurationSeconds {
		return config.CacheMinDurationSeconds
	}
	if d > config.CacheMaxDurationSeconds {
		return config.CacheMaxDurationSeconds
	}
	return d
}
